package stationarity

import (
	"context"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfold/driftlab/internal/timeseries"
	"github.com/quantfold/driftlab/internal/transform"
)

// trendSeries builds a 250-point strictly increasing linear trend with added
// periodic noise, the canonical non-stationary fixture.
func trendSeries(t *testing.T) *timeseries.Series {
	t.Helper()
	rng := rand.New(rand.NewSource(42))
	values := make([]float64, 250)
	for i := range values {
		values[i] = 100 + 0.5*float64(i) + 5*math.Sin(float64(i)/6) + rng.Float64()
	}
	return timeseries.Synthetic("TREND", time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC), values)
}

func TestDifferencingInducesStationarity(t *testing.T) {
	const alpha = 0.05
	oracle := NewOracle(0)
	ctx := context.Background()
	raw := trendSeries(t)

	rawVerdict, err := oracle.TestUnitRoot(ctx, raw)
	require.NoError(t, err)
	assert.Equal(t, "adf", rawVerdict.TestName)
	assert.Equal(t, "unit root", rawVerdict.NullHypothesis)
	assert.False(t, rawVerdict.RejectsNullAt(alpha),
		"trending series must not reject the unit-root null (p=%v)", rawVerdict.PValue)

	diffed, err := transform.Difference(raw, 1)
	require.NoError(t, err)

	diffVerdict, err := oracle.TestUnitRoot(ctx, diffed)
	require.NoError(t, err)
	assert.True(t, diffVerdict.RejectsNullAt(alpha),
		"differenced series must reject the unit-root null (p=%v)", diffVerdict.PValue)
}

func TestTrendStationarityVerdict(t *testing.T) {
	oracle := NewOracle(0)
	raw := trendSeries(t)

	verdict, err := oracle.TestTrendStationarity(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, "kpss", verdict.TestName)
	assert.Equal(t, "stationary", verdict.NullHypothesis)
	// KPSS has the opposite null: a trending series rejects it.
	assert.True(t, verdict.RejectsNullAt(0.05), "p=%v", verdict.PValue)
	assert.NotEmpty(t, verdict.CriticalValues)
}

func TestOpposingNullsAreBothReported(t *testing.T) {
	// The two tests may disagree; the oracle reports both without collapsing
	// them into one boolean.
	oracle := NewOracle(0)
	ctx := context.Background()
	raw := trendSeries(t)

	ur, err := oracle.TestUnitRoot(ctx, raw)
	require.NoError(t, err)
	ts, err := oracle.TestTrendStationarity(ctx, raw)
	require.NoError(t, err)
	assert.NotEqual(t, ur.NullHypothesis, ts.NullHypothesis)
}

func TestInsufficientData(t *testing.T) {
	oracle := NewOracle(8)
	short := timeseries.Synthetic("S", time.Now(), []float64{1, 2, 3, 4, 5})

	_, err := oracle.TestUnitRoot(context.Background(), short)
	assert.ErrorIs(t, err, ErrInsufficientData)

	_, err = oracle.TestTrendStationarity(context.Background(), short)
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestContextCancellation(t *testing.T) {
	oracle := NewOracle(0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := oracle.TestUnitRoot(ctx, trendSeries(t))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestACF(t *testing.T) {
	raw := trendSeries(t)
	acf := ACF(raw, 10)
	require.NotEmpty(t, acf)
	assert.InDelta(t, 1.0, acf[0], 1e-12, "lag 0 autocorrelation is 1")
	// A trending series stays strongly autocorrelated at short lags.
	assert.Greater(t, acf[1], 0.9)
}
