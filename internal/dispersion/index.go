package dispersion

import (
	"slices"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/lexical-dispersion/pkg/errors"
)

// Index names one dispersion or frequency-adjustment measure. The string
// value is the wire name used in requests and result records.
type Index string

const (
	IndexRange                Index = "range"
	IndexStdDev               Index = "sd_population"
	IndexVariationCoefficient Index = "vc_population"
	IndexJuillandD            Index = "juilland_d"
	IndexCarrollD2            Index = "carroll_d2"
	IndexRosengrenS           Index = "roschengren_s_adj"
	IndexDP                   Index = "dp"
	IndexDPNorm               Index = "dp_norm"
	IndexKLDivergence         Index = "kl_divergence"
	IndexJSD                  Index = "jsd_dispersion"
	IndexHellinger            Index = "hellinger_dispersion"
	IndexMeanTextFrequency    Index = "mean_text_frequency_ft"
	IndexPervasiveness        Index = "pervasiveness_pt"
	IndexEvenness             Index = "evenness_da"
	IndexFtAdjustedByPt       Index = "ft_adjusted_by_pt"
	IndexFtAdjustedByDa       Index = "ft_adjusted_by_da"
)

var allIndices = []Index{
	IndexRange,
	IndexStdDev,
	IndexVariationCoefficient,
	IndexJuillandD,
	IndexCarrollD2,
	IndexRosengrenS,
	IndexDP,
	IndexDPNorm,
	IndexKLDivergence,
	IndexJSD,
	IndexHellinger,
	IndexMeanTextFrequency,
	IndexPervasiveness,
	IndexEvenness,
	IndexFtAdjustedByPt,
	IndexFtAdjustedByDa,
}

// unitIndices are bounded to [0, 1].
var unitIndices = map[Index]struct{}{
	IndexJuillandD:     {},
	IndexCarrollD2:     {},
	IndexRosengrenS:    {},
	IndexDP:            {},
	IndexDPNorm:        {},
	IndexJSD:           {},
	IndexHellinger:     {},
	IndexPervasiveness: {},
	IndexEvenness:      {},
}

// AllIndices returns every index in canonical order.
func AllIndices() []Index {
	return slices.Clone(allIndices)
}

// Bounded reports whether the index always lies in [0, 1].
func (i Index) Bounded() bool {
	_, ok := unitIndices[i]
	return ok
}

func (i Index) Valid() bool {
	return slices.Contains(allIndices, i)
}

func (i Index) String() string {
	return string(i)
}

// ParseIndex resolves a wire name, ignoring case and surrounding space.
func ParseIndex(name string) (Index, error) {
	idx := Index(strings.ToLower(strings.TrimSpace(name)))
	if !idx.Valid() {
		return "", apperrors.InvalidInput("unknown index %q", name)
	}
	return idx, nil
}

// ParseIndices resolves names, dropping duplicates and keeping first-seen
// order. An empty list selects every index.
func ParseIndices(names []string) ([]Index, error) {
	if len(names) == 0 {
		return AllIndices(), nil
	}
	out := make([]Index, 0, len(names))
	for _, name := range names {
		idx, err := ParseIndex(name)
		if err != nil {
			return nil, err
		}
		if !slices.Contains(out, idx) {
			out = append(out, idx)
		}
	}
	return out, nil
}
