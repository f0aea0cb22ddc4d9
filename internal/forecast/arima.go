package forecast

import (
	"context"
	"fmt"
	"math"

	"github.com/sartorproj/goarima/arima"
	gots "github.com/sartorproj/goarima/timeseries"

	"github.com/quantfold/driftlab/internal/timeseries"
)

// ArimaForecaster fits an ARIMA(p,d,q) model via the goarima backend using
// conditional sum of squares and forecasts the mean path.
type ArimaForecaster struct {
	Order ArimaOrder
}

// NewArima validates the order and returns an ARIMA forecaster.
func NewArima(order ArimaOrder) (*ArimaForecaster, error) {
	if err := order.Validate(); err != nil {
		return nil, err
	}
	return &ArimaForecaster{Order: order}, nil
}

// Family identifies the model family in reports.
func (f *ArimaForecaster) Family() string { return "arima" }

// FitAndForecast fits on train and returns horizon mean forecasts on the
// original scale, integrated back through d differences by the backend.
func (f *ArimaForecaster) FitAndForecast(ctx context.Context, train *timeseries.Series, horizon int) (*Result, error) {
	if horizon < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidHorizon, horizon)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	// Backend floor: p+d+q+10 observations.
	need := f.Order.P + f.Order.D + f.Order.Q + 10
	if train.Len() < need {
		return nil, fmt.Errorf("%w: %s needs %d points, got %d", ErrInsufficientData, f.Order, need, train.Len())
	}

	model := arima.New(f.Order.P, f.Order.D, f.Order.Q)
	gtrain := &gots.Series{Timestamps: train.Timestamps, Values: train.Values, Name: train.Name}
	if err := model.Fit(gtrain); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrConvergence, f.Order, err)
	}
	values, err := model.Predict(horizon)
	if err != nil {
		return nil, fmt.Errorf("%w: %s predict: %v", ErrConvergence, f.Order, err)
	}
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: %s produced non-finite forecast at step %d", ErrConvergence, f.Order, i+1)
		}
	}
	return &Result{
		Times:  train.Extend(horizon),
		Values: values,
	}, nil
}
