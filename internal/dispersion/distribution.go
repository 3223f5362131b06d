// Package dispersion computes lexical dispersion statistics: how evenly a
// word's occurrences are spread over the parts of a corpus.
//
// A WordDistribution pairs one word's per-part frequencies with a shared
// Corpus of part sizes. Aggregates used by several indices (means, variances,
// the number of parts containing the word) are derived once, on first use,
// and memoised for the lifetime of the distribution. Every index returns
// either a finite number or an error wrapping ErrUndefined / ErrComputation
// from pkg/errors; NaN and Inf never reach the caller.
package dispersion

import (
	"math"
	"slices"
	"sync"

	"gonum.org/v1/gonum/floats"

	apperrors "github.com/Adithya-Monish-Kumar-K/lexical-dispersion/pkg/errors"
)

// FloatEpsilon is the tolerance for every zero and equality comparison.
const FloatEpsilon = 1e-12

// WordDistribution is one word's observation over a corpus. It is immutable
// after construction and safe for concurrent reads.
type WordDistribution struct {
	corpus      *Corpus
	frequencies []float64
	total       float64
	// proportions is nil when the word never occurs.
	proportions []float64

	once  sync.Once
	stats *Stats
}

// New validates sizes and frequencies and builds a distribution over a
// private corpus. Use Corpus.Word to share one corpus between many words.
func New(sizes, frequencies []float64) (*WordDistribution, error) {
	if len(sizes) != len(frequencies) {
		return nil, apperrors.InvalidInput("got %d sizes and %d frequencies", len(sizes), len(frequencies))
	}
	corpus, err := NewCorpus(sizes)
	if err != nil {
		return nil, err
	}
	return corpus.Word(frequencies)
}

func newWordDistribution(corpus *Corpus, frequencies []float64) (*WordDistribution, error) {
	total := floats.Sum(frequencies)
	if math.IsInf(total, 0) {
		return nil, apperrors.InvalidInput("total frequency overflows")
	}
	d := &WordDistribution{
		corpus:      corpus,
		frequencies: frequencies,
		total:       total,
	}
	if !isZero(total) {
		d.proportions = make([]float64, len(frequencies))
		floats.ScaleTo(d.proportions, 1/total, frequencies)
	}
	return d, nil
}

// Len returns the number of corpus parts n.
func (d *WordDistribution) Len() int {
	return len(d.frequencies)
}

func (d *WordDistribution) Corpus() *Corpus {
	return d.corpus
}

// Frequencies returns a copy of the raw per-part counts v.
func (d *WordDistribution) Frequencies() []float64 {
	return slices.Clone(d.frequencies)
}

// Total returns sum(v).
func (d *WordDistribution) Total() float64 {
	return d.total
}

// Proportions returns a copy of p[i] = v[i] / sum(v). ok is false when the
// word does not occur at all, in which case p is undefined.
func (d *WordDistribution) Proportions() (p []float64, ok bool) {
	if d.proportions == nil {
		return nil, false
	}
	return slices.Clone(d.proportions), true
}

// RelativeSizes returns a copy of the corpus relative sizes s.
func (d *WordDistribution) RelativeSizes() []float64 {
	return d.corpus.RelativeSizes()
}

func isZero(x float64) bool {
	return math.Abs(x) < FloatEpsilon
}
