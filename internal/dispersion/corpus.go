package dispersion

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"

	apperrors "github.com/Adithya-Monish-Kumar-K/lexical-dispersion/pkg/errors"
)

// Corpus is the ordered list of corpus part sizes. It is immutable once
// built and is shared by pointer between every WordDistribution analysed
// against the same corpus, so the size data exists once per batch.
type Corpus struct {
	sizes    []float64
	relative []float64
	total    float64
	minRel   float64
}

// NewCorpus validates and copies sizes. At least two parts are required and
// every size must be a finite positive number.
func NewCorpus(sizes []float64) (*Corpus, error) {
	if len(sizes) < 2 {
		return nil, apperrors.InvalidInput("corpus needs at least 2 parts, got %d", len(sizes))
	}
	for i, size := range sizes {
		if math.IsNaN(size) || math.IsInf(size, 0) {
			return nil, apperrors.InvalidInput("part %d size is not a finite number", i)
		}
		if size <= 0 {
			return nil, apperrors.InvalidInput("part %d size must be positive, got %g", i, size)
		}
	}

	owned := slices.Clone(sizes)
	total := floats.Sum(owned)
	if math.IsInf(total, 0) {
		return nil, apperrors.InvalidInput("total corpus size overflows")
	}
	relative := make([]float64, len(owned))
	floats.ScaleTo(relative, 1/total, owned)

	return &Corpus{
		sizes:    owned,
		relative: relative,
		total:    total,
		minRel:   floats.Min(relative),
	}, nil
}

// Len returns the number of corpus parts.
func (c *Corpus) Len() int {
	return len(c.sizes)
}

// Sizes returns a copy of the raw part sizes.
func (c *Corpus) Sizes() []float64 {
	return slices.Clone(c.sizes)
}

// RelativeSizes returns a copy of size[i] / sum(size).
func (c *Corpus) RelativeSizes() []float64 {
	return slices.Clone(c.relative)
}

func (c *Corpus) TotalSize() float64 {
	return c.total
}

// MinRelativeSize is the smallest relative part size (min_s).
func (c *Corpus) MinRelativeSize() float64 {
	return c.minRel
}

// Word builds the distribution of one word over this corpus. The returned
// value references the corpus instead of copying its sizes.
func (c *Corpus) Word(frequencies []float64) (*WordDistribution, error) {
	if len(frequencies) != len(c.sizes) {
		return nil, apperrors.InvalidInput("got %d frequencies for %d corpus parts", len(frequencies), len(c.sizes))
	}
	for i, f := range frequencies {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, apperrors.InvalidInput("part %d frequency is not a finite number", i)
		}
		if f < 0 {
			return nil, apperrors.InvalidInput("part %d frequency must not be negative, got %g", i, f)
		}
	}
	return newWordDistribution(c, slices.Clone(frequencies))
}
