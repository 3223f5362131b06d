package dispersion

import (
	"fmt"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/lexical-dispersion/pkg/errors"
)

// Metrics is the full result record for one word. Range is always defined;
// every other field is nil when the index is undefined for the word.
type Metrics struct {
	Range               int      `json:"range"`
	SDPopulation        *float64 `json:"sd_population,omitempty"`
	VCPopulation        *float64 `json:"vc_population,omitempty"`
	JuillandD           *float64 `json:"juilland_d,omitempty"`
	CarrollD2           *float64 `json:"carroll_d2,omitempty"`
	RosengrenSAdj       *float64 `json:"roschengren_s_adj,omitempty"`
	DP                  *float64 `json:"dp,omitempty"`
	DPNorm              *float64 `json:"dp_norm,omitempty"`
	KLDivergence        *float64 `json:"kl_divergence,omitempty"`
	JSDDispersion       *float64 `json:"jsd_dispersion,omitempty"`
	HellingerDispersion *float64 `json:"hellinger_dispersion,omitempty"`
	MeanTextFrequencyFt *float64 `json:"mean_text_frequency_ft,omitempty"`
	PervasivenessPt     *float64 `json:"pervasiveness_pt,omitempty"`
	EvennessDa          *float64 `json:"evenness_da,omitempty"`
	FtAdjustedByPt      *float64 `json:"ft_adjusted_by_pt,omitempty"`
	FtAdjustedByDa      *float64 `json:"ft_adjusted_by_da,omitempty"`
}

// Compute evaluates a single index by name.
func (d *WordDistribution) Compute(idx Index) (float64, error) {
	switch idx {
	case IndexRange:
		return float64(d.Range()), nil
	case IndexStdDev:
		return d.StdDev()
	case IndexVariationCoefficient:
		return d.VariationCoefficient()
	case IndexJuillandD:
		return d.JuillandD()
	case IndexCarrollD2:
		return d.CarrollD2()
	case IndexRosengrenS:
		return d.RosengrenS()
	case IndexDP:
		return d.DP()
	case IndexDPNorm:
		return d.DPNorm()
	case IndexKLDivergence:
		return d.KLDivergence()
	case IndexJSD:
		return d.JSDDispersion()
	case IndexHellinger:
		return d.HellingerDispersion()
	case IndexMeanTextFrequency:
		return d.MeanTextFrequency()
	case IndexPervasiveness:
		return d.Pervasiveness()
	case IndexEvenness:
		return d.EvennessDa()
	case IndexFtAdjustedByPt:
		return d.FtAdjustedByPt()
	case IndexFtAdjustedByDa:
		return d.FtAdjustedByDa()
	default:
		return 0, apperrors.InvalidInput("unknown index %q", idx)
	}
}

// Metrics evaluates every index.
func (d *WordDistribution) Metrics() Metrics {
	return Metrics{
		Range:               d.Range(),
		SDPopulation:        optional(d.StdDev()),
		VCPopulation:        optional(d.VariationCoefficient()),
		JuillandD:           optional(d.JuillandD()),
		CarrollD2:           optional(d.CarrollD2()),
		RosengrenSAdj:       optional(d.RosengrenS()),
		DP:                  optional(d.DP()),
		DPNorm:              optional(d.DPNorm()),
		KLDivergence:        optional(d.KLDivergence()),
		JSDDispersion:       optional(d.JSDDispersion()),
		HellingerDispersion: optional(d.HellingerDispersion()),
		MeanTextFrequencyFt: optional(d.MeanTextFrequency()),
		PervasivenessPt:     optional(d.Pervasiveness()),
		EvennessDa:          optional(d.EvennessDa()),
		FtAdjustedByPt:      optional(d.FtAdjustedByPt()),
		FtAdjustedByDa:      optional(d.FtAdjustedByDa()),
	}
}

func (m Metrics) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Metrics(range=%d", m.Range)
	for _, f := range []struct {
		name  string
		value *float64
	}{
		{"juilland_d", m.JuillandD},
		{"carroll_d2", m.CarrollD2},
		{"dp", m.DP},
		{"evenness_da", m.EvennessDa},
	} {
		if f.value == nil {
			fmt.Fprintf(&b, ", %s=n/a", f.name)
			continue
		}
		fmt.Fprintf(&b, ", %s=%.3f", f.name, *f.value)
	}
	b.WriteString(", ...)")
	return b.String()
}

func optional(v float64, err error) *float64 {
	if err != nil {
		return nil
	}
	return &v
}
