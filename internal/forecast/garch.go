package forecast

import (
	"context"
	"fmt"
	"math"

	"github.com/quantfold/driftlab/internal/timeseries"
)

// GarchForecaster fits a GARCH(p,q) model with a constant mean by Gaussian
// quasi-maximum-likelihood and forecasts the conditional variance path. The
// mean forecast is flat at the fitted mean.
//
// No library in the Go ecosystem ships a maintained GARCH estimator, so the
// numerics live here, behind the same Oracle interface as the delegated
// backends, keeping the implementation swappable.
type GarchForecaster struct {
	Order GarchOrder
}

// NewGarch validates the order and returns a GARCH forecaster.
func NewGarch(order GarchOrder) (*GarchForecaster, error) {
	if err := order.Validate(); err != nil {
		return nil, err
	}
	return &GarchForecaster{Order: order}, nil
}

// Family identifies the model family in reports.
func (f *GarchForecaster) Family() string { return "garch" }

const (
	garchMaxIter   = 500
	garchTolerance = 1e-7
	// Upper bound on alpha+beta keeps the variance process covariance
	// stationary during estimation.
	garchPersistenceCap = 0.999
)

type garchFit struct {
	mu    float64
	omega float64
	alpha []float64
	beta  []float64
	eps   []float64 // demeaned residuals
	h     []float64 // fitted conditional variances
}

// FitAndForecast estimates the model on train and returns a flat mean path
// plus horizon conditional-variance forecasts.
func (f *GarchForecaster) FitAndForecast(ctx context.Context, train *timeseries.Series, horizon int) (*Result, error) {
	if horizon < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidHorizon, horizon)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	need := f.Order.P + f.Order.Q + 20
	if train.Len() < need {
		return nil, fmt.Errorf("%w: %s needs %d points, got %d", ErrInsufficientData, f.Order, need, train.Len())
	}

	fit, err := f.fit(train.Values)
	if err != nil {
		return nil, err
	}

	return &Result{
		Times:     train.Extend(horizon),
		Values:    flat(fit.mu, horizon),
		Variances: fit.forecastVariance(f.Order, horizon),
	}, nil
}

func (f *GarchForecaster) fit(values []float64) (*garchFit, error) {
	n := len(values)
	p, q := f.Order.P, f.Order.Q

	mu := 0.0
	for _, v := range values {
		mu += v
	}
	mu /= float64(n)

	eps := make([]float64, n)
	uncond := 0.0
	for i, v := range values {
		eps[i] = v - mu
		uncond += eps[i] * eps[i]
	}
	uncond /= float64(n)
	if uncond <= 0 {
		return nil, fmt.Errorf("%w: %s on a zero-variance series", ErrConvergence, f.Order)
	}

	// Start from a mildly persistent process anchored at the unconditional
	// variance.
	theta := make([]float64, 1+p+q)
	theta[0] = 0.1 * uncond
	for i := 0; i < p; i++ {
		theta[1+i] = 0.05 / float64(p)
	}
	for j := 0; j < q; j++ {
		theta[1+p+j] = 0.85 / float64(q)
	}
	clampGarchParams(theta, p, q, uncond)

	nll := garchNLL(theta, p, q, eps, uncond)
	if math.IsNaN(nll) || math.IsInf(nll, 0) {
		return nil, fmt.Errorf("%w: %s initial likelihood undefined", ErrConvergence, f.Order)
	}

	// Projected gradient descent with numeric gradients and backtracking.
	step := 1e-3
	converged := false
	grad := make([]float64, len(theta))
	trial := make([]float64, len(theta))
	for iter := 0; iter < garchMaxIter; iter++ {
		numericGradient(theta, p, q, eps, uncond, grad)

		improved := false
		for ; step > 1e-14; step /= 2 {
			for k := range theta {
				trial[k] = theta[k] - step*grad[k]
			}
			clampGarchParams(trial, p, q, uncond)
			trialNLL := garchNLL(trial, p, q, eps, uncond)
			if trialNLL < nll {
				if nll-trialNLL < garchTolerance*(math.Abs(nll)+1) {
					converged = true
				}
				copy(theta, trial)
				nll = trialNLL
				improved = true
				step *= 4 // re-expand after a successful move
				break
			}
		}
		if !improved {
			// No admissible descent direction left: at a local optimum.
			converged = true
		}
		if converged {
			break
		}
	}
	if !converged {
		return nil, fmt.Errorf("%w: %s after %d iterations", ErrConvergence, f.Order, garchMaxIter)
	}

	fit := &garchFit{
		mu:    mu,
		omega: theta[0],
		alpha: append([]float64(nil), theta[1:1+p]...),
		beta:  append([]float64(nil), theta[1+p:]...),
		eps:   eps,
	}
	fit.h = garchVariancePath(theta, p, q, eps, uncond)
	return fit, nil
}

// forecastVariance iterates the variance recursion past the sample, replacing
// future squared innovations by their conditional expectation h.
func (g *garchFit) forecastVariance(order GarchOrder, horizon int) []float64 {
	p, q := order.P, order.Q
	n := len(g.eps)

	// sq and hv are extended with forecasts as they are produced.
	sq := make([]float64, n, n+horizon)
	for i, e := range g.eps {
		sq[i] = e * e
	}
	hv := append(make([]float64, 0, n+horizon), g.h...)

	out := make([]float64, horizon)
	for k := 0; k < horizon; k++ {
		t := n + k
		h := g.omega
		for i := 0; i < p; i++ {
			h += g.alpha[i] * sq[t-i-1]
		}
		for j := 0; j < q; j++ {
			h += g.beta[j] * hv[t-j-1]
		}
		out[k] = h
		sq = append(sq, h) // E[e^2] = h beyond the sample
		hv = append(hv, h)
	}
	return out
}

// garchVariancePath computes the in-sample conditional variance recursion,
// seeding presample terms with the unconditional variance.
func garchVariancePath(theta []float64, p, q int, eps []float64, uncond float64) []float64 {
	n := len(eps)
	h := make([]float64, n)
	for t := 0; t < n; t++ {
		v := theta[0]
		for i := 0; i < p; i++ {
			if t-i-1 >= 0 {
				v += theta[1+i] * eps[t-i-1] * eps[t-i-1]
			} else {
				v += theta[1+i] * uncond
			}
		}
		for j := 0; j < q; j++ {
			if t-j-1 >= 0 {
				v += theta[1+p+j] * h[t-j-1]
			} else {
				v += theta[1+p+j] * uncond
			}
		}
		if v < 1e-12 {
			v = 1e-12
		}
		h[t] = v
	}
	return h
}

// garchNLL is the Gaussian negative log-likelihood up to constants.
func garchNLL(theta []float64, p, q int, eps []float64, uncond float64) float64 {
	h := garchVariancePath(theta, p, q, eps, uncond)
	nll := 0.0
	for t, e := range eps {
		nll += 0.5 * (math.Log(h[t]) + e*e/h[t])
	}
	return nll
}

func numericGradient(theta []float64, p, q int, eps []float64, uncond float64, grad []float64) {
	base := garchNLL(theta, p, q, eps, uncond)
	for k := range theta {
		dk := 1e-6 * (math.Abs(theta[k]) + 1e-6)
		orig := theta[k]
		theta[k] = orig + dk
		grad[k] = (garchNLL(theta, p, q, eps, uncond) - base) / dk
		theta[k] = orig
	}
}

// clampGarchParams projects parameters back into the admissible region:
// omega > 0, alpha/beta >= 0, total persistence below the cap.
func clampGarchParams(theta []float64, p, q int, uncond float64) {
	if theta[0] < 1e-10*uncond {
		theta[0] = 1e-10 * uncond
	}
	persistence := 0.0
	for k := 1; k < len(theta); k++ {
		if theta[k] < 0 {
			theta[k] = 0
		}
		persistence += theta[k]
	}
	if persistence > garchPersistenceCap {
		scale := garchPersistenceCap / persistence
		for k := 1; k < len(theta); k++ {
			theta[k] *= scale
		}
	}
}

func flat(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}
