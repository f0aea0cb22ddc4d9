// Package stationarity wraps external unit-root and trend-stationarity
// hypothesis tests behind a small oracle interface. The test numerics are
// deliberately not implemented here: the default oracle delegates to the
// goarima statistical backend and only interprets results mechanically.
//
// The two tests have opposite null hypotheses (ADF: "has a unit root", KPSS:
// "is stationary") and may disagree; callers get both verdicts and must not
// collapse them into one boolean.
package stationarity

import (
	"context"
	"errors"
	"fmt"

	"github.com/sartorproj/goarima/stats"
	gots "github.com/sartorproj/goarima/timeseries"

	"github.com/quantfold/driftlab/internal/timeseries"
)

// ErrInsufficientData is returned when a series is too short for the tests
// to be meaningful.
var ErrInsufficientData = errors.New("stationarity: insufficient data")

// ErrTestFailed is returned when the backend cannot produce a result for a
// series that met the length floor.
var ErrTestFailed = errors.New("stationarity: test failed")

// DefaultMinObservations is the floor below which tests are refused outright.
// The backend itself needs at least 10 points; results near either floor are
// statistically weak.
const DefaultMinObservations = 8

// Verdict is the structured outcome of one hypothesis test.
type Verdict struct {
	TestName       string             `json:"test_name"`
	NullHypothesis string             `json:"null_hypothesis"`
	Statistic      float64            `json:"statistic"`
	PValue         float64            `json:"p_value"`
	Lags           int                `json:"lags"`
	CriticalValues map[string]float64 `json:"critical_values"`
}

// RejectsNullAt reports whether the null hypothesis is rejected at the given
// significance level.
func (v Verdict) RejectsNullAt(alpha float64) bool {
	return v.PValue < alpha
}

// Oracle runs the two stationarity diagnostics. Implementations must be safe
// for concurrent use.
type Oracle interface {
	// TestUnitRoot tests H0 "series has a unit root"; rejecting the null
	// suggests stationarity.
	TestUnitRoot(ctx context.Context, s *timeseries.Series) (Verdict, error)
	// TestTrendStationarity tests H0 "series is stationary"; rejecting the
	// null suggests non-stationarity.
	TestTrendStationarity(ctx context.Context, s *timeseries.Series) (Verdict, error)
}

// BackendOracle delegates to the goarima test implementations.
type BackendOracle struct {
	// MinObservations is the refusal floor; zero means DefaultMinObservations.
	MinObservations int
}

// NewOracle creates a backend oracle with the given length floor.
func NewOracle(minObservations int) *BackendOracle {
	if minObservations <= 0 {
		minObservations = DefaultMinObservations
	}
	return &BackendOracle{MinObservations: minObservations}
}

func (o *BackendOracle) check(ctx context.Context, s *timeseries.Series) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.Len() < o.MinObservations {
		return fmt.Errorf("%w: %d points, floor is %d", ErrInsufficientData, s.Len(), o.MinObservations)
	}
	return nil
}

// TestUnitRoot runs an Augmented Dickey-Fuller test with automatic lag
// selection.
func (o *BackendOracle) TestUnitRoot(ctx context.Context, s *timeseries.Series) (Verdict, error) {
	if err := o.check(ctx, s); err != nil {
		return Verdict{}, err
	}
	res := stats.ADF(toBackend(s), 0)
	if res == nil {
		return Verdict{}, fmt.Errorf("%w: ADF needs more observations than the %d provided", ErrInsufficientData, s.Len())
	}
	return Verdict{
		TestName:       "adf",
		NullHypothesis: "unit root",
		Statistic:      res.Statistic,
		PValue:         res.PValue,
		Lags:           res.Lags,
		CriticalValues: res.CriticalVals,
	}, nil
}

// TestTrendStationarity runs a KPSS test with level regression and automatic
// lag selection.
func (o *BackendOracle) TestTrendStationarity(ctx context.Context, s *timeseries.Series) (Verdict, error) {
	if err := o.check(ctx, s); err != nil {
		return Verdict{}, err
	}
	res := stats.KPSS(toBackend(s), "c", 0)
	if res == nil {
		return Verdict{}, fmt.Errorf("%w: KPSS needs more observations than the %d provided", ErrInsufficientData, s.Len())
	}
	return Verdict{
		TestName:       "kpss",
		NullHypothesis: "stationary",
		Statistic:      res.Statistic,
		PValue:         res.PValue,
		Lags:           res.Lags,
		CriticalValues: res.CriticalVals,
	}, nil
}

// ACF returns the autocorrelation function of s up to maxLag, a diagnostic
// carried alongside the formal tests.
func ACF(s *timeseries.Series, maxLag int) []float64 {
	return stats.ACF(toBackend(s), maxLag)
}

func toBackend(s *timeseries.Series) *gots.Series {
	return &gots.Series{
		Timestamps: s.Timestamps,
		Values:     s.Values,
		Name:       s.Name,
	}
}
