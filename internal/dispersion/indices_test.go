package dispersion

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Adithya-Monish-Kumar-K/lexical-dispersion/pkg/errors"
)

const delta = 1e-9

func mustNew(t *testing.T, sizes, freqs []float64) *WordDistribution {
	t.Helper()
	d, err := New(sizes, freqs)
	require.NoError(t, err)
	return d
}

func mustCompute(t *testing.T, d *WordDistribution, idx Index) float64 {
	t.Helper()
	v, err := d.Compute(idx)
	require.NoError(t, err, "index %s", idx)
	return v
}

func TestEvenWordOverEqualParts(t *testing.T) {
	t.Parallel()

	d := mustNew(t, []float64{100, 100, 100}, []float64{10, 10, 10})

	assert.Equal(t, 2, d.Range())
	want := map[Index]float64{
		IndexStdDev:               0,
		IndexVariationCoefficient: 0,
		IndexJuillandD:            1,
		IndexCarrollD2:            1,
		IndexRosengrenS:           1,
		IndexDP:                   0,
		IndexDPNorm:               0,
		IndexKLDivergence:         0,
		IndexJSD:                  0,
		IndexHellinger:            0,
		IndexMeanTextFrequency:    10,
		IndexPervasiveness:        1,
		IndexEvenness:             1,
		IndexFtAdjustedByPt:       10,
		IndexFtAdjustedByDa:       10,
	}
	for idx, expected := range want {
		assert.InDelta(t, expected, mustCompute(t, d, idx), delta, "index %s", idx)
	}
}

func TestWordConfinedToOnePart(t *testing.T) {
	t.Parallel()

	d := mustNew(t, []float64{100, 100, 100}, []float64{30, 0, 0})

	assert.Equal(t, 0, d.Range())
	want := map[Index]float64{
		IndexStdDev:               math.Sqrt(200),
		IndexVariationCoefficient: math.Sqrt2,
		IndexJuillandD:            0,
		IndexCarrollD2:            0,
		IndexRosengrenS:           0,
		IndexDP:                   2.0 / 3.0,
		IndexDPNorm:               1,
		IndexKLDivergence:         math.Log2(3),
		IndexJSD:                  0.5*math.Log2(1.5) + 0.5*(1.0/3.0),
		IndexHellinger:            math.Sqrt(0.5 * (math.Pow(1-math.Sqrt(1.0/3.0), 2) + 2.0/3.0)),
		IndexMeanTextFrequency:    10,
		IndexPervasiveness:        1.0 / 3.0,
		IndexEvenness:             0,
		IndexFtAdjustedByPt:       10.0 / 3.0,
		IndexFtAdjustedByDa:       0,
	}
	for idx, expected := range want {
		assert.InDelta(t, expected, mustCompute(t, d, idx), delta, "index %s", idx)
	}
}

func TestSingleOccurrenceAcrossManyParts(t *testing.T) {
	t.Parallel()

	for _, n := range []int{2, 5, 17} {
		sizes := make([]float64, n)
		freqs := make([]float64, n)
		for i := range sizes {
			sizes[i] = float64(10 + i)
		}
		freqs[n-1] = 7

		d := mustNew(t, sizes, freqs)
		assert.Equal(t, 0, d.Range())
		assert.InDelta(t, 1/float64(n), mustCompute(t, d, IndexPervasiveness), delta)
		assert.InDelta(t, 0, mustCompute(t, d, IndexJuillandD), delta)
		assert.InDelta(t, 0, mustCompute(t, d, IndexEvenness), delta)
	}
}

func TestProportionalToPartSizes(t *testing.T) {
	t.Parallel()

	d := mustNew(t, []float64{10, 30, 60}, []float64{2, 6, 12})

	for _, idx := range []Index{IndexDP, IndexDPNorm, IndexKLDivergence, IndexJSD, IndexHellinger} {
		assert.InDelta(t, 0, mustCompute(t, d, idx), delta, "index %s", idx)
	}
	assert.InDelta(t, 1, mustCompute(t, d, IndexRosengrenS), delta)
}

func TestDPNormReachesOneInSmallestPart(t *testing.T) {
	t.Parallel()

	d := mustNew(t, []float64{10, 30, 60}, []float64{5, 0, 0})

	dp := mustCompute(t, d, IndexDP)
	assert.InDelta(t, 0.9, dp, delta)
	assert.InDelta(t, 1, mustCompute(t, d, IndexDPNorm), delta)
	assert.InDelta(t, 0, mustCompute(t, d, IndexRosengrenS), delta)
}

func TestAbsentWord(t *testing.T) {
	t.Parallel()

	d := mustNew(t, []float64{10, 20, 30}, []float64{0, 0, 0})

	assert.Equal(t, 0, d.Range())
	assert.InDelta(t, 0, mustCompute(t, d, IndexPervasiveness), delta)
	assert.InDelta(t, 0, mustCompute(t, d, IndexMeanTextFrequency), delta)
	assert.InDelta(t, 0, mustCompute(t, d, IndexStdDev), delta)
	assert.InDelta(t, 0, mustCompute(t, d, IndexFtAdjustedByPt), delta)
	assert.InDelta(t, math.Sqrt(0.5), mustCompute(t, d, IndexHellinger), delta)

	_, err := d.VariationCoefficient()
	assert.ErrorIs(t, err, apperrors.ErrComputation)

	for _, idx := range []Index{
		IndexJuillandD, IndexCarrollD2, IndexRosengrenS, IndexDP, IndexDPNorm,
		IndexKLDivergence, IndexJSD, IndexEvenness, IndexFtAdjustedByDa,
	} {
		_, err := d.Compute(idx)
		assert.ErrorIs(t, err, apperrors.ErrUndefined, "index %s", idx)
	}
}

func TestComputeUnknownIndex(t *testing.T) {
	t.Parallel()

	d := mustNew(t, []float64{1, 1}, []float64{1, 1})
	_, err := d.Compute(Index("gini"))
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestMetricsRecord(t *testing.T) {
	t.Parallel()

	m := mustNew(t, []float64{100, 100, 100}, []float64{30, 0, 0}).Metrics()
	assert.Equal(t, 0, m.Range)
	require.NotNil(t, m.DP)
	assert.InDelta(t, 2.0/3.0, *m.DP, delta)
	require.NotNil(t, m.EvennessDa)
	assert.InDelta(t, 0, *m.EvennessDa, delta)
	assert.Equal(t, "Metrics(range=0, juilland_d=0.000, carroll_d2=0.000, dp=0.667, evenness_da=0.000, ...)", m.String())

	absent := mustNew(t, []float64{1, 1}, []float64{0, 0}).Metrics()
	assert.Nil(t, absent.VCPopulation)
	assert.Nil(t, absent.JuillandD)
	assert.Nil(t, absent.FtAdjustedByDa)
	assert.NotNil(t, absent.HellingerDispersion)
	assert.Contains(t, absent.String(), "juilland_d=n/a")
}

func TestParseIndices(t *testing.T) {
	t.Parallel()

	all, err := ParseIndices(nil)
	require.NoError(t, err)
	assert.Equal(t, AllIndices(), all)
	assert.Len(t, all, 16)

	got, err := ParseIndices([]string{" DP ", "evenness_da", "dp"})
	require.NoError(t, err)
	assert.Equal(t, []Index{IndexDP, IndexEvenness}, got)

	_, err = ParseIndices([]string{"dp", "gini"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	assert.True(t, IndexJSD.Bounded())
	assert.False(t, IndexKLDivergence.Bounded())
	assert.False(t, IndexRange.Bounded())
}
