package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/quantfold/driftlab/internal/evaluate"
	"github.com/quantfold/driftlab/internal/forecast"
	"github.com/quantfold/driftlab/internal/marketdata"
	"github.com/quantfold/driftlab/internal/stationarity"
	"github.com/quantfold/driftlab/internal/timeseries"
	"github.com/quantfold/driftlab/internal/transform"
)

// ErrStepTimeout is returned when a single chain step exceeds the configured
// step timeout. It fails that symbol only.
var ErrStepTimeout = errors.New("pipeline: step timed out")

// Failure classes recorded in per-series reports and mapped to CLI exit
// codes.
const (
	ClassData             = "data"
	ClassDomain           = "domain"
	ClassInsufficientData = "insufficient_data"
	ClassConfig           = "config"
	ClassConvergence      = "convergence"
	ClassTimeout          = "timeout"
	ClassCanceled         = "canceled"
	ClassInternal         = "internal"
)

// Classify maps an error to its failure class.
func Classify(err error) string {
	switch {
	case errors.Is(err, ErrStepTimeout), errors.Is(err, context.DeadlineExceeded):
		return ClassTimeout
	case errors.Is(err, context.Canceled):
		return ClassCanceled
	case errors.Is(err, forecast.ErrConvergence):
		return ClassConvergence
	case errors.Is(err, transform.ErrDomain):
		return ClassDomain
	case errors.Is(err, transform.ErrInsufficientLength),
		errors.Is(err, stationarity.ErrInsufficientData),
		errors.Is(err, forecast.ErrInsufficientData):
		return ClassInsufficientData
	case errors.Is(err, evaluate.ErrInvalidFraction),
		errors.Is(err, evaluate.ErrLengthMismatch),
		errors.Is(err, forecast.ErrInvalidOrder),
		errors.Is(err, forecast.ErrInvalidHorizon),
		errors.Is(err, transform.ErrInvalidWindow),
		errors.Is(err, transform.ErrInvalidOrder):
		return ClassConfig
	case errors.Is(err, marketdata.ErrNoData),
		errors.Is(err, timeseries.ErrEmpty),
		errors.Is(err, timeseries.ErrNonFinite),
		errors.Is(err, timeseries.ErrUnsortedIndex),
		errors.Is(err, timeseries.ErrLengthMismatch),
		errors.Is(err, timeseries.ErrAlreadyLoaded):
		return ClassData
	default:
		return ClassInternal
	}
}

// ClassifyFetch classifies an error from the data-source stage. Transport
// failures (network, bad payloads) carry no sentinel, so anything unrecognized
// at this stage is a data failure rather than an internal one.
func ClassifyFetch(err error) string {
	if class := Classify(err); class != ClassInternal {
		return class
	}
	return ClassData
}

// callWithTimeout bounds a chain step. The step runs in its own goroutine;
// on timeout the goroutine is abandoned (the backends are CPU-bound and do
// not observe cancellation mid-computation).
func callWithTimeout[T any](ctx context.Context, d time.Duration, fn func(context.Context) (T, error)) (T, error) {
	if d <= 0 {
		return fn(ctx)
	}
	stepCtx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	type outcome struct {
		value T
		err   error
	}
	done := make(chan outcome, 1)
	go func() {
		v, err := fn(stepCtx)
		done <- outcome{value: v, err: err}
	}()

	select {
	case out := <-done:
		return out.value, out.err
	case <-stepCtx.Done():
		var zero T
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		return zero, ErrStepTimeout
	}
}
