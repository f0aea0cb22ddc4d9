// Package evaluate partitions a series into a training prefix and test
// suffix and scores forecasts against held-out actuals.
package evaluate

import (
	"errors"
	"fmt"
	"math"

	"github.com/quantfold/driftlab/internal/timeseries"
)

var (
	// ErrInvalidFraction is returned when the test fraction is outside (0,1)
	// or would leave an empty train or test side.
	ErrInvalidFraction = errors.New("evaluate: invalid test fraction")
	// ErrLengthMismatch is returned when actual and predicted differ in length.
	ErrLengthMismatch = errors.New("evaluate: length mismatch")
	// ErrEmpty is returned when scoring empty inputs.
	ErrEmpty = errors.New("evaluate: empty input")
)

// SplitDataset is the result of a train/test split. Train and Test are views
// over the source series; concatenated they reproduce the original index
// exactly once.
type SplitDataset struct {
	Train *timeseries.Series
	Test  *timeseries.Series
}

// Split partitions s at floor(len * (1 - testFraction)). The fraction must be
// strictly inside (0,1) and the split must leave both sides non-empty.
func Split(s *timeseries.Series, testFraction float64) (SplitDataset, error) {
	if testFraction <= 0 || testFraction >= 1 || math.IsNaN(testFraction) {
		return SplitDataset{}, fmt.Errorf("%w: %v not in (0,1)", ErrInvalidFraction, testFraction)
	}
	n := s.Len()
	splitIdx := int(math.Floor(float64(n) * (1 - testFraction)))
	if splitIdx <= 0 || splitIdx >= n {
		return SplitDataset{}, fmt.Errorf("%w: fraction %v on %d points leaves an empty side", ErrInvalidFraction, testFraction, n)
	}
	return SplitDataset{
		Train: s.Slice(0, splitIdx),
		Test:  s.Slice(splitIdx, n),
	}, nil
}

// RMSE computes sqrt(mean((actual-predicted)^2)). Inputs must be non-empty
// and of equal length. The result is >= 0 and exactly 0 iff the slices are
// pointwise equal.
func RMSE(actual, predicted []float64) (float64, error) {
	if len(actual) != len(predicted) {
		return 0, fmt.Errorf("%w: %d actual vs %d predicted", ErrLengthMismatch, len(actual), len(predicted))
	}
	if len(actual) == 0 {
		return 0, ErrEmpty
	}
	sum := 0.0
	for i := range actual {
		d := actual[i] - predicted[i]
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(actual))), nil
}
