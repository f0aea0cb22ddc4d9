package forecast

import (
	"context"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfold/driftlab/internal/timeseries"
)

var testStart = time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)

func TestArimaOrderValidate(t *testing.T) {
	cases := []struct {
		order ArimaOrder
		ok    bool
	}{
		{ArimaOrder{P: 5, D: 1, Q: 1}, true},
		{ArimaOrder{P: 1, D: 0, Q: 0}, true},
		{ArimaOrder{P: 0, D: 1, Q: 0}, true},
		{ArimaOrder{P: 0, D: 0, Q: 0}, false},
		{ArimaOrder{P: -1, D: 1, Q: 1}, false},
		{ArimaOrder{P: 1, D: -1, Q: 1}, false},
	}
	for _, tc := range cases {
		err := tc.order.Validate()
		if tc.ok {
			assert.NoError(t, err, tc.order.String())
		} else {
			assert.ErrorIs(t, err, ErrInvalidOrder, tc.order.String())
		}
	}
}

func TestGarchOrderValidate(t *testing.T) {
	assert.NoError(t, GarchOrder{P: 1, Q: 1}.Validate())
	assert.NoError(t, GarchOrder{P: 2, Q: 0}.Validate())
	assert.ErrorIs(t, GarchOrder{P: 0, Q: 1}.Validate(), ErrInvalidOrder)
	assert.ErrorIs(t, GarchOrder{P: 1, Q: -1}.Validate(), ErrInvalidOrder)
}

// randomWalk builds a mildly drifting price series long enough for both
// backends.
func randomWalk(name string, n int, seed int64) *timeseries.Series {
	rng := rand.New(rand.NewSource(seed))
	values := make([]float64, n)
	values[0] = 100
	for i := 1; i < n; i++ {
		values[i] = values[i-1] + 0.05 + rng.NormFloat64()
	}
	return timeseries.Synthetic(name, testStart, values)
}

func TestArimaForecastShape(t *testing.T) {
	model, err := NewArima(ArimaOrder{P: 2, D: 1, Q: 1})
	require.NoError(t, err)
	assert.Equal(t, "arima", model.Family())

	train := randomWalk("WALK", 120, 7)
	const horizon = 12

	res, err := model.FitAndForecast(context.Background(), train, horizon)
	require.NoError(t, err)
	require.Len(t, res.Values, horizon)
	require.Len(t, res.Times, horizon)
	assert.Nil(t, res.Variances, "mean-only model carries no variance path")

	for i, v := range res.Values {
		assert.False(t, math.IsNaN(v) || math.IsInf(v, 0), "step %d", i+1)
	}

	// The forecast axis continues the training axis at its spacing.
	lastT, _ := train.Last()
	assert.True(t, res.Times[0].After(lastT))
	step := res.Times[1].Sub(res.Times[0])
	assert.Equal(t, 24*time.Hour, step)
}

func TestArimaInsufficientData(t *testing.T) {
	model, err := NewArima(ArimaOrder{P: 5, D: 1, Q: 1})
	require.NoError(t, err)

	short := randomWalk("SHORT", 10, 1)
	_, err = model.FitAndForecast(context.Background(), short, 5)
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestArimaInvalidHorizon(t *testing.T) {
	model, err := NewArima(ArimaOrder{P: 1, D: 1, Q: 0})
	require.NoError(t, err)

	train := randomWalk("WALK", 60, 2)
	_, err = model.FitAndForecast(context.Background(), train, 0)
	assert.ErrorIs(t, err, ErrInvalidHorizon)
	_, err = model.FitAndForecast(context.Background(), train, -3)
	assert.ErrorIs(t, err, ErrInvalidHorizon)
}

func TestArimaContextCancellation(t *testing.T) {
	model, err := NewArima(ArimaOrder{P: 1, D: 1, Q: 0})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = model.FitAndForecast(ctx, randomWalk("WALK", 60, 3), 5)
	assert.ErrorIs(t, err, context.Canceled)
}

// noisyReturns builds a zero-ish mean return series with volatility clusters.
func noisyReturns(n int, seed int64) *timeseries.Series {
	rng := rand.New(rand.NewSource(seed))
	values := make([]float64, n)
	vol := 0.01
	for i := range values {
		if i%40 == 0 {
			vol = 0.005 + 0.02*rng.Float64()
		}
		values[i] = vol * rng.NormFloat64()
	}
	return timeseries.Synthetic("RET", testStart, values)
}

func TestGarchForecastShape(t *testing.T) {
	model, err := NewGarch(GarchOrder{P: 1, Q: 1})
	require.NoError(t, err)
	assert.Equal(t, "garch", model.Family())

	train := noisyReturns(300, 11)
	const horizon = 10

	res, err := model.FitAndForecast(context.Background(), train, horizon)
	require.NoError(t, err)
	require.Len(t, res.Values, horizon)
	require.Len(t, res.Variances, horizon)
	require.Len(t, res.Times, horizon)

	// Flat mean path at the fitted mean.
	for i := 1; i < horizon; i++ {
		assert.Equal(t, res.Values[0], res.Values[i])
	}
	for i, v := range res.Variances {
		assert.Greater(t, v, 0.0, "variance at step %d must be positive", i+1)
		assert.False(t, math.IsNaN(v) || math.IsInf(v, 0), "step %d", i+1)
	}
}

func TestGarchInsufficientData(t *testing.T) {
	model, err := NewGarch(GarchOrder{P: 1, Q: 1})
	require.NoError(t, err)

	_, err = model.FitAndForecast(context.Background(), noisyReturns(15, 4), 5)
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestGarchZeroVarianceSeries(t *testing.T) {
	model, err := NewGarch(GarchOrder{P: 1, Q: 1})
	require.NoError(t, err)

	flat := make([]float64, 50)
	train := timeseries.Synthetic("FLAT", testStart, flat)
	_, err = model.FitAndForecast(context.Background(), train, 5)
	assert.ErrorIs(t, err, ErrConvergence)
}
