// Package transform implements the stationarity-inducing transforms applied
// ahead of testing and forecasting. Each transform is a pure function from
// series to series; differencing and log-returns shrink the index by dropping
// the leading point(s), rolling detrend keeps the full index.
package transform

import (
	"errors"
	"fmt"
	"math"

	"github.com/quantfold/driftlab/internal/timeseries"
)

var (
	// ErrInsufficientLength is returned when a transform needs more points
	// than the series has.
	ErrInsufficientLength = errors.New("transform: insufficient series length")
	// ErrDomain is returned when log-return is undefined for an adjacent
	// pair, i.e. the implied return is <= -100% or the prior price is zero.
	ErrDomain = errors.New("transform: log-return undefined")
	// ErrInvalidWindow is returned for a detrend window < 1.
	ErrInvalidWindow = errors.New("transform: window must be >= 1")
	// ErrInvalidOrder is returned for a differencing order < 1.
	ErrInvalidOrder = errors.New("transform: order must be >= 1")
)

// Detrend subtracts the trailing rolling mean from each point. The window at
// index i covers [max(0,i-window+1), i], so the first point's window is the
// point itself and output[0] is exactly zero. Output length equals input
// length.
func Detrend(s *timeseries.Series, window int) (*timeseries.Series, error) {
	if window < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidWindow, window)
	}
	out := make([]float64, s.Len())
	sum := 0.0
	for i, v := range s.Values {
		sum += v
		if i >= window {
			sum -= s.Values[i-window]
		}
		n := i + 1
		if n > window {
			n = window
		}
		out[i] = v - sum/float64(n)
	}
	return s.Derive(s.Name+"_detrend", 0, out)
}

// Difference computes the order-th difference: out[i] = v[i] - v[i-order].
// The first order points are dropped, not zero-filled, so the result is
// order points shorter and indexed from position order of the input.
func Difference(s *timeseries.Series, order int) (*timeseries.Series, error) {
	if order < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidOrder, order)
	}
	if s.Len() <= order {
		return nil, fmt.Errorf("%w: need more than %d points, got %d", ErrInsufficientLength, order, s.Len())
	}
	out := make([]float64, s.Len()-order)
	for i := order; i < s.Len(); i++ {
		out[i-order] = s.Values[i] - s.Values[i-order]
	}
	return s.Derive(s.Name+"_diff", order, out)
}

// LogReturn computes ln(1 + pct) where pct is the one-step percent change.
// The first point is dropped. Fails if any adjacent pair implies a return at
// or below -100%, or if a prior price is zero.
func LogReturn(s *timeseries.Series) (*timeseries.Series, error) {
	if s.Len() < 2 {
		return nil, fmt.Errorf("%w: need at least 2 points, got %d", ErrInsufficientLength, s.Len())
	}
	out := make([]float64, s.Len()-1)
	for i := 1; i < s.Len(); i++ {
		prev := s.Values[i-1]
		if prev == 0 {
			return nil, fmt.Errorf("%w: zero price at index %d", ErrDomain, i-1)
		}
		pct := (s.Values[i] - prev) / prev
		if 1+pct <= 0 {
			return nil, fmt.Errorf("%w: return %.4f at index %d implies 1+pct <= 0", ErrDomain, pct, i)
		}
		out[i-1] = math.Log(1 + pct)
	}
	return s.Derive(s.Name+"_logret", 1, out)
}
