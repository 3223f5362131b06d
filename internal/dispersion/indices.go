package dispersion

import (
	"math"

	apperrors "github.com/Adithya-Monish-Kumar-K/lexical-dispersion/pkg/errors"
)

// Range is the number of parts containing the word minus one.
func (d *WordDistribution) Range() int {
	return d.ensureComputed().Range
}

// StdDev is the population standard deviation of the raw frequencies.
func (d *WordDistribution) StdDev() (float64, error) {
	return finite(IndexStdDev, math.Sqrt(d.ensureComputed().VarianceV))
}

// VariationCoefficient is StdDev divided by the mean frequency.
func (d *WordDistribution) VariationCoefficient() (float64, error) {
	s := d.ensureComputed()
	if isZero(s.MeanV) {
		return 0, apperrors.Computation("%s: mean frequency is zero", IndexVariationCoefficient)
	}
	return finite(IndexVariationCoefficient, math.Sqrt(s.VarianceV)/s.MeanV)
}

// JuillandD is 1 - VC(p) / sqrt(n-1), computed over normalised proportions.
// A word confined to one part scores 0, a perfectly even word 1.
func (d *WordDistribution) JuillandD() (float64, error) {
	s := d.ensureComputed()
	if err := d.requireMass(IndexJuillandD); err != nil {
		return 0, err
	}
	if isZero(s.MeanP) {
		return 0, apperrors.Undefined("%s: mean proportion is zero", IndexJuillandD)
	}
	vc := math.Sqrt(s.VarianceP) / s.MeanP
	return finite(IndexJuillandD, clampUnit(1-vc/math.Sqrt(float64(d.Len()-1))))
}

// CarrollD2 is the Shannon entropy of p in bits divided by log2(n). Terms
// with p[i] ~ 0 contribute nothing.
func (d *WordDistribution) CarrollD2() (float64, error) {
	if err := d.requireMass(IndexCarrollD2); err != nil {
		return 0, err
	}
	var entropy float64
	for _, p := range d.proportions {
		if isZero(p) {
			continue
		}
		entropy -= p * math.Log2(p)
	}
	return finite(IndexCarrollD2, clampUnit(entropy/math.Log2(float64(d.Len()))))
}

// RosengrenS is Rosengren's S = (sum sqrt(v[i]*s[i]))^2 / sum(v), rescaled
// from its natural range [min_s, 1] onto [0, 1] as (S - min_s) / (1 - min_s).
func (d *WordDistribution) RosengrenS() (float64, error) {
	s := d.ensureComputed()
	if err := d.requireMass(IndexRosengrenS); err != nil {
		return 0, err
	}
	denom := 1 - s.MinS
	if isZero(denom) {
		return 0, apperrors.Computation("%s: minimum relative part size is 1", IndexRosengrenS)
	}
	var root float64
	for i, v := range d.frequencies {
		root += math.Sqrt(v * d.corpus.relative[i])
	}
	raw := root * root / d.total
	return finite(IndexRosengrenS, clampUnit((raw-s.MinS)/denom))
}

// DP is Gries' deviation of proportions, 0.5 * sum |p[i] - s[i]|.
func (d *WordDistribution) DP() (float64, error) {
	if err := d.requireMass(IndexDP); err != nil {
		return 0, err
	}
	var sum float64
	for i, p := range d.proportions {
		sum += math.Abs(p - d.corpus.relative[i])
	}
	return finite(IndexDP, clampUnit(0.5*sum))
}

// DPNorm is DP / (1 - min_s) (Lijffijt & Gries 2012), which reaches 1 for a
// word confined to the smallest part.
func (d *WordDistribution) DPNorm() (float64, error) {
	s := d.ensureComputed()
	denom := 1 - s.MinS
	if isZero(denom) {
		return 0, apperrors.Computation("%s: minimum relative part size is 1", IndexDPNorm)
	}
	dp, err := d.DP()
	if err != nil {
		return 0, err
	}
	return finite(IndexDPNorm, clampUnit(dp/denom))
}

// MeanTextFrequency (Ft) is the mean raw frequency per part.
func (d *WordDistribution) MeanTextFrequency() (float64, error) {
	return finite(IndexMeanTextFrequency, d.ensureComputed().MeanV)
}

// Pervasiveness (Pt) is the share of parts containing the word.
func (d *WordDistribution) Pervasiveness() (float64, error) {
	parts := d.ensureComputed().PartsWithWord
	return finite(IndexPervasiveness, float64(parts)/float64(d.Len()))
}

func (d *WordDistribution) FtAdjustedByPt() (float64, error) {
	ft, err := d.MeanTextFrequency()
	if err != nil {
		return 0, err
	}
	pt, err := d.Pervasiveness()
	if err != nil {
		return 0, err
	}
	return finite(IndexFtAdjustedByPt, ft*pt)
}

func (d *WordDistribution) FtAdjustedByDa() (float64, error) {
	ft, err := d.MeanTextFrequency()
	if err != nil {
		return 0, err
	}
	da, err := d.EvennessDa()
	if err != nil {
		return 0, err
	}
	return finite(IndexFtAdjustedByDa, ft*da)
}

func (d *WordDistribution) requireMass(idx Index) error {
	if d.ensureComputed().HasMass {
		return nil
	}
	return apperrors.Undefined("%s: word does not occur in any part", idx)
}

// clampUnit pins rounding residue back into [0, 1].
func clampUnit(x float64) float64 {
	return min(max(x, 0), 1)
}

func finite(idx Index, x float64) (float64, error) {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return 0, apperrors.Computation("%s: result is not a finite number", idx)
	}
	return x, nil
}
