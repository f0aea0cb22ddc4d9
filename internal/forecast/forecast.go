// Package forecast wraps external model-fitting capabilities behind a single
// oracle interface: fit on a training series, forecast a fixed horizon.
// ARIMA fitting is delegated to the goarima backend; the GARCH variant adds a
// conditional-variance path on top of a constant mean.
package forecast

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/quantfold/driftlab/internal/timeseries"
)

var (
	// ErrInvalidOrder is returned for structurally invalid model orders.
	ErrInvalidOrder = errors.New("forecast: invalid model order")
	// ErrInvalidHorizon is returned for a non-positive forecast horizon.
	ErrInvalidHorizon = errors.New("forecast: horizon must be >= 1")
	// ErrConvergence is returned when the estimator fails to converge. This
	// is surfaced, never swallowed.
	ErrConvergence = errors.New("forecast: estimator did not converge")
	// ErrInsufficientData is returned when the training series is too short
	// for the requested order.
	ErrInsufficientData = errors.New("forecast: insufficient training data")
)

// ArimaOrder is the (p, d, q) order of an ARIMA model.
type ArimaOrder struct {
	P int `json:"p" mapstructure:"p"`
	D int `json:"d" mapstructure:"d"`
	Q int `json:"q" mapstructure:"q"`
}

// Validate rejects negative components and the degenerate all-zero order.
func (o ArimaOrder) Validate() error {
	if o.P < 0 || o.D < 0 || o.Q < 0 {
		return fmt.Errorf("%w: arima(%d,%d,%d)", ErrInvalidOrder, o.P, o.D, o.Q)
	}
	if o.P == 0 && o.D == 0 && o.Q == 0 {
		return fmt.Errorf("%w: arima(0,0,0) has nothing to estimate", ErrInvalidOrder)
	}
	return nil
}

func (o ArimaOrder) String() string {
	return fmt.Sprintf("arima(%d,%d,%d)", o.P, o.D, o.Q)
}

// GarchOrder is the (p, q) order of a GARCH model: p ARCH lags on squared
// innovations, q lags on past conditional variances.
type GarchOrder struct {
	P int `json:"p" mapstructure:"p"`
	Q int `json:"q" mapstructure:"q"`
}

// Validate rejects non-positive ARCH order and negative GARCH order.
func (o GarchOrder) Validate() error {
	if o.P < 1 || o.Q < 0 {
		return fmt.Errorf("%w: garch(%d,%d)", ErrInvalidOrder, o.P, o.Q)
	}
	return nil
}

func (o GarchOrder) String() string {
	return fmt.Sprintf("garch(%d,%d)", o.P, o.Q)
}

// Result is a fixed-horizon forecast. Values always has exactly the requested
// horizon; Variances is nil for mean-only models and horizon-length for
// variance-modeling ones. Times continues the training axis.
type Result struct {
	Times     []time.Time `json:"times"`
	Values    []float64   `json:"values"`
	Variances []float64   `json:"variances,omitempty"`
}

// Oracle fits a model on the training series and forecasts horizon steps
// ahead. Implementations must be safe for concurrent use; each call fits a
// fresh model.
type Oracle interface {
	FitAndForecast(ctx context.Context, train *timeseries.Series, horizon int) (*Result, error)
	Family() string
}
