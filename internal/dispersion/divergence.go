package dispersion

import (
	"math"

	apperrors "github.com/Adithya-Monish-Kumar-K/lexical-dispersion/pkg/errors"
)

// KLDivergence is the Kullback-Leibler divergence of the observed proportions
// p from the expected proportions s, in bits. Parts without the word are
// skipped; a part with the word but a vanishing relative size makes the
// divergence undefined.
func (d *WordDistribution) KLDivergence() (float64, error) {
	if err := d.requireMass(IndexKLDivergence); err != nil {
		return 0, err
	}
	var kl float64
	for i, p := range d.proportions {
		if isZero(p) {
			continue
		}
		s := d.corpus.relative[i]
		if isZero(s) {
			return 0, apperrors.Computation("%s: part %d has relative size ~0", IndexKLDivergence, i)
		}
		kl += p * math.Log2(p/s)
	}
	return finite(IndexKLDivergence, max(kl, 0))
}

// JSDDispersion is the Jensen-Shannon divergence between p and s in bits,
// 0.5*KL(p||m) + 0.5*KL(s||m) with m the pointwise mean. With base-2 logs it
// already lies in [0, 1] and is symmetric in its two arguments.
func (d *WordDistribution) JSDDispersion() (float64, error) {
	if err := d.requireMass(IndexJSD); err != nil {
		return 0, err
	}
	return finite(IndexJSD, jensenShannon(d.proportions, d.corpus.relative))
}

// HellingerDispersion is the Hellinger distance between p and s. It is
// defined for every valid distribution: a word that never occurs is treated
// as the zero vector.
func (d *WordDistribution) HellingerDispersion() (float64, error) {
	var sum float64
	for i, s := range d.corpus.relative {
		var p float64
		if d.proportions != nil {
			p = d.proportions[i]
		}
		diff := math.Sqrt(p) - math.Sqrt(s)
		sum += diff * diff
	}
	return finite(IndexHellinger, clampUnit(math.Sqrt(0.5*sum)))
}

// jensenShannon divides by log2(2) = 1, so no further normalisation applies.
func jensenShannon(p, q []float64) float64 {
	var pm, qm float64
	for i := range p {
		m := 0.5 * (p[i] + q[i])
		if !isZero(p[i]) {
			pm += p[i] * math.Log2(p[i]/m)
		}
		if !isZero(q[i]) {
			qm += q[i] * math.Log2(q[i]/m)
		}
	}
	return clampUnit(0.5*pm + 0.5*qm)
}
