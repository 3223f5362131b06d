package dispersion

import (
	"slices"

	apperrors "github.com/Adithya-Monish-Kumar-K/lexical-dispersion/pkg/errors"
)

// EvennessDa is Burch et al.'s Da: 1 - MAD(p) / (2 * mean(p)), where MAD is
// the mean absolute difference over all unordered pairs of parts. A word
// confined to one part scores 0, a perfectly even word 1.
func (d *WordDistribution) EvennessDa() (float64, error) {
	s := d.ensureComputed()
	if err := d.requireMass(IndexEvenness); err != nil {
		return 0, err
	}
	if isZero(s.MeanP) {
		return 0, apperrors.Undefined("%s: mean proportion is zero", IndexEvenness)
	}
	mad := MeanAbsoluteDifference(d.proportions)
	return finite(IndexEvenness, clampUnit(1-mad/(2*s.MeanP)))
}

// MeanAbsoluteDifference returns the mean of |x[i] - x[j]| over all n(n-1)/2
// unordered pairs in O(n log n). After sorting ascending, element i is larger
// than i predecessors and smaller than n-1-i successors, so the pairwise sum
// collapses to sum((2i - n + 1) * x_sorted[i]). xs is not modified.
func MeanAbsoluteDifference(xs []float64) float64 {
	n := len(xs)
	if n < 2 {
		return 0
	}
	sorted := slices.Clone(xs)
	slices.Sort(sorted)

	var sum float64
	for i, x := range sorted {
		sum += float64(2*i-n+1) * x
	}
	pairs := float64(n) * float64(n-1) / 2
	return sum / pairs
}
