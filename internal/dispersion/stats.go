package dispersion

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Stats holds the aggregates shared by several indices. All moments are
// population moments (divide by n).
type Stats struct {
	MeanV     float64
	VarianceV float64
	// MeanP, VarianceP and SumP are zero when HasMass is false.
	MeanP     float64
	VarianceP float64
	SumP      float64
	MinS      float64
	// PartsWithWord counts parts with v > 0, however small.
	PartsWithWord int
	// Range is PartsWithWord - 1, or 0 when the word is absent everywhere.
	Range   int
	HasMass bool
}

// Stats returns the derived aggregates, computing them on the first call.
func (d *WordDistribution) Stats() Stats {
	return *d.ensureComputed()
}

// ensureComputed derives the cache exactly once; later calls return the
// stored value. Every index reads aggregates through here.
func (d *WordDistribution) ensureComputed() *Stats {
	d.once.Do(func() {
		d.stats = computeStats(d)
	})
	return d.stats
}

func computeStats(d *WordDistribution) *Stats {
	s := &Stats{
		MinS:    d.corpus.minRel,
		HasMass: d.proportions != nil,
	}
	s.MeanV, s.VarianceV = stat.PopMeanVariance(d.frequencies, nil)
	s.VarianceV = max(s.VarianceV, 0)

	if s.HasMass {
		s.MeanP, s.VarianceP = stat.PopMeanVariance(d.proportions, nil)
		s.VarianceP = max(s.VarianceP, 0)
		s.SumP = floats.Sum(d.proportions)
	}

	for _, v := range d.frequencies {
		if v > 0 {
			s.PartsWithWord++
		}
	}
	s.Range = max(s.PartsWithWord-1, 0)
	return s
}
