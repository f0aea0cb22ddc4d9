// Package timeseries provides the core time series data structures shared by
// every analysis stage: an immutable named series of (timestamp, value) pairs
// and an append-only store of loaded series.
package timeseries

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"
)

var (
	// ErrEmpty is returned when a series has no observations.
	ErrEmpty = errors.New("timeseries: empty series")
	// ErrLengthMismatch is returned when timestamps and values differ in length.
	ErrLengthMismatch = errors.New("timeseries: timestamps and values must have the same length")
	// ErrUnsortedIndex is returned when timestamps are not strictly increasing.
	ErrUnsortedIndex = errors.New("timeseries: timestamps must be strictly increasing")
	// ErrNonFinite is returned when a value is NaN or infinite. Missing values
	// must be dropped by the caller before a series is constructed.
	ErrNonFinite = errors.New("timeseries: values must be finite")
)

// Series is an ordered sequence of (timestamp, value) pairs with strictly
// increasing timestamps and finite values. Treat a constructed Series as
// read-only; derived series share the timestamp axis but own their values.
type Series struct {
	Name       string
	Timestamps []time.Time
	Values     []float64
}

// New constructs a validated series. Timestamps must be strictly increasing
// (no duplicates) and every value must be finite.
func New(name string, timestamps []time.Time, values []float64) (*Series, error) {
	if len(timestamps) != len(values) {
		return nil, fmt.Errorf("%w: %d timestamps vs %d values", ErrLengthMismatch, len(timestamps), len(values))
	}
	if len(values) == 0 {
		return nil, ErrEmpty
	}
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: value at index %d is %v", ErrNonFinite, i, v)
		}
		if i > 0 && !timestamps[i].After(timestamps[i-1]) {
			return nil, fmt.Errorf("%w: index %d (%s) not after %s",
				ErrUnsortedIndex, i, timestamps[i].Format(time.RFC3339), timestamps[i-1].Format(time.RFC3339))
		}
	}
	return &Series{Name: name, Timestamps: timestamps, Values: values}, nil
}

// Synthetic builds a series from values alone, spacing observations one day
// apart from start. Intended for tests and demos.
func Synthetic(name string, start time.Time, values []float64) *Series {
	timestamps := make([]time.Time, len(values))
	for i := range values {
		timestamps[i] = start.AddDate(0, 0, i)
	}
	return &Series{Name: name, Timestamps: timestamps, Values: values}
}

// Derive creates a new series that shares s's timestamp axis from offset
// onward and owns the given value buffer. len(values) must equal
// s.Len()-offset.
func (s *Series) Derive(name string, offset int, values []float64) (*Series, error) {
	if offset < 0 || offset > s.Len() {
		return nil, fmt.Errorf("timeseries: derive offset %d out of range [0,%d]", offset, s.Len())
	}
	if len(values) != s.Len()-offset {
		return nil, fmt.Errorf("%w: %d values for %d timestamps", ErrLengthMismatch, len(values), s.Len()-offset)
	}
	return &Series{Name: name, Timestamps: s.Timestamps[offset:], Values: values}, nil
}

// Len returns the number of observations.
func (s *Series) Len() int {
	return len(s.Values)
}

// Slice returns a view of the series over [start, end). The underlying
// buffers are shared, not copied.
func (s *Series) Slice(start, end int) *Series {
	return &Series{
		Name:       s.Name,
		Timestamps: s.Timestamps[start:end],
		Values:     s.Values[start:end],
	}
}

// Mean returns the arithmetic mean of the values.
func (s *Series) Mean() float64 {
	if len(s.Values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range s.Values {
		sum += v
	}
	return sum / float64(len(s.Values))
}

// Variance returns the sample variance of the values.
func (s *Series) Variance() float64 {
	n := len(s.Values)
	if n < 2 {
		return 0
	}
	mean := s.Mean()
	sumSq := 0.0
	for _, v := range s.Values {
		d := v - mean
		sumSq += d * d
	}
	return sumSq / float64(n-1)
}

// Std returns the sample standard deviation of the values.
func (s *Series) Std() float64 {
	return math.Sqrt(s.Variance())
}

// Last returns the final (timestamp, value) pair.
func (s *Series) Last() (time.Time, float64) {
	n := len(s.Values)
	return s.Timestamps[n-1], s.Values[n-1]
}

// Step estimates the index spacing as the median of adjacent timestamp
// deltas. Used to extend the axis when forecasting past the last point.
func (s *Series) Step() time.Duration {
	if len(s.Timestamps) < 2 {
		return 24 * time.Hour
	}
	deltas := make([]time.Duration, 0, len(s.Timestamps)-1)
	for i := 1; i < len(s.Timestamps); i++ {
		deltas = append(deltas, s.Timestamps[i].Sub(s.Timestamps[i-1]))
	}
	sort.Slice(deltas, func(i, j int) bool { return deltas[i] < deltas[j] })
	return deltas[len(deltas)/2]
}

// Extend returns n timestamps continuing past the last observation at the
// series' estimated step.
func (s *Series) Extend(n int) []time.Time {
	step := s.Step()
	last := s.Timestamps[len(s.Timestamps)-1]
	out := make([]time.Time, n)
	for i := 0; i < n; i++ {
		last = last.Add(step)
		out[i] = last
	}
	return out
}
