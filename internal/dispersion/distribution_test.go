package dispersion

import (
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Adithya-Monish-Kumar-K/lexical-dispersion/pkg/errors"
)

func TestNewRejectsInvalidInput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		sizes []float64
		freqs []float64
	}{
		{"length mismatch", []float64{1, 2, 3}, []float64{1, 2}},
		{"single part", []float64{10}, []float64{3}},
		{"no parts", nil, nil},
		{"zero size", []float64{10, 0}, []float64{1, 1}},
		{"negative size", []float64{10, -5}, []float64{1, 1}},
		{"negative frequency", []float64{10, 10}, []float64{1, -1}},
		{"nan size", []float64{math.NaN(), 10}, []float64{1, 1}},
		{"inf frequency", []float64{10, 10}, []float64{math.Inf(1), 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			d, err := New(tt.sizes, tt.freqs)
			require.Error(t, err)
			assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
			assert.Nil(t, d)
		})
	}
}

func TestNewDerivesProportionsAndRelativeSizes(t *testing.T) {
	t.Parallel()

	d, err := New([]float64{100, 300}, []float64{2, 6})
	require.NoError(t, err)

	assert.Equal(t, 2, d.Len())
	assert.InDelta(t, 8, d.Total(), FloatEpsilon)

	p, ok := d.Proportions()
	require.True(t, ok)
	assert.InDeltaSlice(t, []float64{0.25, 0.75}, p, FloatEpsilon)
	assert.InDeltaSlice(t, []float64{0.25, 0.75}, d.RelativeSizes(), FloatEpsilon)
	assert.InDelta(t, 0.25, d.Corpus().MinRelativeSize(), FloatEpsilon)
	assert.InDelta(t, 400, d.Corpus().TotalSize(), FloatEpsilon)
}

func TestAccessorsReturnCopies(t *testing.T) {
	t.Parallel()

	sizes := []float64{10, 20}
	freqs := []float64{1, 2}
	d, err := New(sizes, freqs)
	require.NoError(t, err)

	sizes[0] = 999
	freqs[0] = 999
	got := d.Frequencies()
	got[1] = 999

	assert.Equal(t, []float64{1, 2}, d.Frequencies())
	assert.Equal(t, []float64{10, 20}, d.Corpus().Sizes())
}

func TestProportionsUndefinedForAbsentWord(t *testing.T) {
	t.Parallel()

	d, err := New([]float64{10, 20, 30}, []float64{0, 0, 0})
	require.NoError(t, err)

	p, ok := d.Proportions()
	assert.False(t, ok)
	assert.Nil(t, p)
}

func TestCorpusWordSharesSizes(t *testing.T) {
	t.Parallel()

	corpus, err := NewCorpus([]float64{10, 20, 30})
	require.NoError(t, err)

	a, err := corpus.Word([]float64{1, 0, 0})
	require.NoError(t, err)
	b, err := corpus.Word([]float64{0, 1, 1})
	require.NoError(t, err)

	assert.Same(t, corpus, a.Corpus())
	assert.Same(t, corpus, b.Corpus())

	_, err = corpus.Word([]float64{1, 2})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestStatsComputedOnce(t *testing.T) {
	t.Parallel()

	d, err := New([]float64{100, 100, 100, 100}, []float64{4, 0, 2, 2})
	require.NoError(t, err)
	assert.Nil(t, d.stats)

	first := d.ensureComputed()
	second := d.ensureComputed()
	assert.Same(t, first, second)

	s := d.Stats()
	assert.InDelta(t, 2, s.MeanV, FloatEpsilon)
	assert.InDelta(t, 2, s.VarianceV, FloatEpsilon)
	assert.InDelta(t, 0.25, s.MeanP, FloatEpsilon)
	assert.InDelta(t, 1, s.SumP, FloatEpsilon)
	assert.InDelta(t, 0.25, s.MinS, FloatEpsilon)
	assert.Equal(t, 3, s.PartsWithWord)
	assert.Equal(t, 2, s.Range)
	assert.True(t, s.HasMass)
}

func TestStatsConcurrentFirstUse(t *testing.T) {
	t.Parallel()

	d, err := New([]float64{1, 2, 3, 4, 5}, []float64{5, 0, 1, 0, 9})
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]Metrics, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = d.Metrics()
		}(i)
	}
	wg.Wait()

	for _, m := range results[1:] {
		assert.Equal(t, results[0], m)
	}
}

func TestStatsAbsentWord(t *testing.T) {
	t.Parallel()

	d, err := New([]float64{1, 1}, []float64{0, 0})
	require.NoError(t, err)

	s := d.Stats()
	assert.False(t, s.HasMass)
	assert.Equal(t, 0, s.PartsWithWord)
	assert.Equal(t, 0, s.Range)
	assert.Zero(t, s.SumP)
}

func TestStatsTinyFrequenciesCountAsPresent(t *testing.T) {
	t.Parallel()

	d, err := New([]float64{1, 1, 1}, []float64{5e-13, 5e-13, 0})
	require.NoError(t, err)

	p, ok := d.Proportions()
	require.True(t, ok)
	assert.InDeltaSlice(t, []float64{0.5, 0.5, 0}, p, FloatEpsilon)

	s := d.Stats()
	assert.Equal(t, 2, s.PartsWithWord)
	assert.Equal(t, 1, s.Range)
	pt, err := d.Pervasiveness()
	require.NoError(t, err)
	assert.InDelta(t, 2.0/3.0, pt, FloatEpsilon)
}
