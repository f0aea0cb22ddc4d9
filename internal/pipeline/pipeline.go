// Package pipeline sequences the per-symbol analysis chain — fetch,
// transform, stationarity tests, train/test split, fit-and-forecast, score —
// and runs independent symbols concurrently. A failure in one symbol's chain
// is recorded in its report entry and never aborts sibling symbols.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/quantfold/driftlab/internal/evaluate"
	"github.com/quantfold/driftlab/internal/forecast"
	"github.com/quantfold/driftlab/internal/marketdata"
	"github.com/quantfold/driftlab/internal/report"
	"github.com/quantfold/driftlab/internal/stationarity"
	"github.com/quantfold/driftlab/internal/timeseries"
	"github.com/quantfold/driftlab/internal/transform"
)

// Params is the explicit per-run configuration. There are no process-wide
// defaults that change behavior between runs.
type Params struct {
	TestFraction  float64
	Alpha         float64
	DetrendWindow int
	DiffOrder     int
	ArimaOrder    forecast.ArimaOrder
	GarchOrder    forecast.GarchOrder
	Workers       int
	StepTimeout   time.Duration
	ACFLags       int
}

// Validate rejects bad caller configuration before any computation.
func (p Params) Validate() error {
	if p.TestFraction <= 0 || p.TestFraction >= 1 {
		return fmt.Errorf("%w: test fraction %v not in (0,1)", evaluate.ErrInvalidFraction, p.TestFraction)
	}
	if p.Alpha <= 0 || p.Alpha >= 1 {
		return fmt.Errorf("pipeline: alpha %v not in (0,1)", p.Alpha)
	}
	if p.DetrendWindow < 1 {
		return fmt.Errorf("%w: got %d", transform.ErrInvalidWindow, p.DetrendWindow)
	}
	if p.DiffOrder < 1 {
		return fmt.Errorf("%w: got %d", transform.ErrInvalidOrder, p.DiffOrder)
	}
	if err := p.ArimaOrder.Validate(); err != nil {
		return err
	}
	if err := p.GarchOrder.Validate(); err != nil {
		return err
	}
	if p.Workers < 1 {
		return fmt.Errorf("pipeline: workers must be >= 1, got %d", p.Workers)
	}
	return nil
}

func (p Params) variants() []transform.Spec {
	return []transform.Spec{
		{Kind: transform.KindRaw},
		{Kind: transform.KindDetrend, Window: p.DetrendWindow},
		{Kind: transform.KindDiff, Order: p.DiffOrder},
		{Kind: transform.KindLogReturn},
	}
}

// Runner wires the external collaborators into the per-symbol chain.
type Runner struct {
	source    marketdata.Source
	tests     stationarity.Oracle
	meanModel forecast.Oracle
	volModel  forecast.Oracle
	params    Params
	logger    *logrus.Logger
}

// NewRunner validates params and builds a runner. meanModel forecasts every
// variant; volModel (variance-modeling) runs on the log-return variant only
// and may be nil to skip volatility forecasting.
func NewRunner(source marketdata.Source, tests stationarity.Oracle, meanModel, volModel forecast.Oracle,
	params Params, logger *logrus.Logger) (*Runner, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if source == nil || tests == nil || meanModel == nil {
		return nil, fmt.Errorf("pipeline: source, tests and mean model are required")
	}
	return &Runner{
		source:    source,
		tests:     tests,
		meanModel: meanModel,
		volModel:  volModel,
		params:    params,
		logger:    logger,
	}, nil
}

// Run analyzes every symbol over [start, end] and aggregates the outcomes.
// Symbols run on a bounded worker pool; caller cancellation stops scheduling
// further symbols.
func (r *Runner) Run(ctx context.Context, symbols []string, start, end time.Time) *report.Report {
	rep := &report.Report{
		RunID:     uuid.NewString(),
		Alpha:     r.params.Alpha,
		StartedAt: time.Now().UTC(),
	}

	// One store per run: every fetched series and derived variant is
	// registered here and read back by the later chain stages.
	store := timeseries.NewStore()

	jobs := make(chan string)
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	workers := r.params.Workers
	if workers > len(symbols) {
		workers = len(symbols)
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for symbol := range jobs {
				sr := r.analyzeSymbol(ctx, store, symbol, start, end)
				mu.Lock()
				rep.Series = append(rep.Series, sr)
				mu.Unlock()
			}
		}()
	}

dispatch:
	for _, symbol := range symbols {
		select {
		case jobs <- symbol:
		case <-ctx.Done():
			r.logger.WithError(ctx.Err()).Warn("run canceled, not scheduling remaining symbols")
			break dispatch
		}
	}
	close(jobs)
	wg.Wait()

	rep.FinishedAt = time.Now().UTC()
	rep.Sort()
	return rep
}

// analyzeSymbol runs the strictly sequential chain for one symbol: the fetched
// series and its derived variants are registered in the run store, and the
// test and evaluation stages read them back from it. Any error terminates this
// symbol only and is recorded with its failure class.
func (r *Runner) analyzeSymbol(ctx context.Context, store *timeseries.Store, symbol string, start, end time.Time) report.SeriesReport {
	began := time.Now()
	log := r.logger.WithField("symbol", symbol)
	sr := report.SeriesReport{Symbol: symbol}

	fail := func(err error, class string) report.SeriesReport {
		log.WithError(err).WithField("class", class).Warn("series chain failed")
		sr.FailureClass = class
		sr.FailureReason = err.Error()
		sr.Elapsed = time.Since(began)
		return sr
	}

	raw, err := callWithTimeout(ctx, r.params.StepTimeout, func(ctx context.Context) (*timeseries.Series, error) {
		return r.source.Fetch(ctx, symbol, start, end)
	})
	if err != nil {
		return fail(fmt.Errorf("fetch: %w", err), ClassifyFetch(err))
	}
	log.WithField("observations", raw.Len()).Debug("series loaded")

	if err := store.Load(raw); err != nil {
		return fail(fmt.Errorf("load: %w", err), Classify(err))
	}

	sr.MarketContext = report.ComputeMarketContext(raw)

	for _, spec := range r.params.variants() {
		variantName, err := r.loadVariant(store, raw, spec)
		if err != nil {
			return fail(fmt.Errorf("transform %s: %w", spec.Name(), err), Classify(err))
		}

		vr, err := r.testVariant(ctx, store, spec.Name(), variantName)
		if err != nil {
			return fail(fmt.Errorf("stationarity %s: %w", spec.Name(), err), Classify(err))
		}
		sr.Variants = append(sr.Variants, vr)

		eval, err := r.evaluateVariant(ctx, store, spec, variantName)
		if err != nil {
			return fail(fmt.Errorf("forecast %s: %w", spec.Name(), err), Classify(err))
		}
		sr.Evaluations = append(sr.Evaluations, eval...)
	}

	sr.Elapsed = time.Since(began)
	log.WithField("elapsed", sr.Elapsed).Info("series chain complete")
	return sr
}

// loadVariant applies spec to raw and registers the derived series in the run
// store under its own name. The raw variant is the already-loaded source
// series itself.
func (r *Runner) loadVariant(store *timeseries.Store, raw *timeseries.Series, spec transform.Spec) (string, error) {
	variant, err := spec.Apply(raw)
	if err != nil {
		return "", err
	}
	if variant == raw {
		return raw.Name, nil
	}
	if err := store.Load(variant); err != nil {
		return "", err
	}
	return variant.Name, nil
}

// testVariant reads the variant back from the run store and runs both
// stationarity diagnostics plus the ACF correlogram.
func (r *Runner) testVariant(ctx context.Context, store *timeseries.Store, label, seriesName string) (report.VariantReport, error) {
	variant, err := store.Get(seriesName)
	if err != nil {
		return report.VariantReport{}, err
	}

	unitRoot, err := callWithTimeout(ctx, r.params.StepTimeout, func(ctx context.Context) (stationarity.Verdict, error) {
		return r.tests.TestUnitRoot(ctx, variant)
	})
	if err != nil {
		return report.VariantReport{}, err
	}
	trendStat, err := callWithTimeout(ctx, r.params.StepTimeout, func(ctx context.Context) (stationarity.Verdict, error) {
		return r.tests.TestTrendStationarity(ctx, variant)
	})
	if err != nil {
		return report.VariantReport{}, err
	}

	lags := r.params.ACFLags
	if lags <= 0 {
		lags = 20
	}
	if max := variant.Len()/2 - 1; lags > max {
		lags = max
	}
	var acf []float64
	if lags > 0 {
		acf = stationarity.ACF(variant, lags)
	}

	return report.VariantReport{
		Name:         label,
		Observations: variant.Len(),
		Stationarity: report.StationarityPair{UnitRoot: unitRoot, TrendStationarity: trendStat},
		ACF:          acf,
	}, nil
}

// evaluateVariant reads the variant back from the run store, splits it,
// forecasts the held-out horizon and scores RMSE. The variance model
// additionally runs on the log-return variant, scored against squared
// held-out returns as the volatility proxy.
func (r *Runner) evaluateVariant(ctx context.Context, store *timeseries.Store, spec transform.Spec, seriesName string) ([]report.Evaluation, error) {
	variant, err := store.Get(seriesName)
	if err != nil {
		return nil, err
	}

	split, err := evaluate.Split(variant, r.params.TestFraction)
	if err != nil {
		return nil, err
	}
	horizon := split.Test.Len()

	var evals []report.Evaluation

	meanResult, err := callWithTimeout(ctx, r.params.StepTimeout, func(ctx context.Context) (*forecast.Result, error) {
		return r.meanModel.FitAndForecast(ctx, split.Train, horizon)
	})
	if err != nil {
		return nil, err
	}
	rmse, err := evaluate.RMSE(split.Test.Values, meanResult.Values)
	if err != nil {
		return nil, err
	}
	evals = append(evals, report.Evaluation{
		Variant: spec.Name(),
		Family:  r.meanModel.Family(),
		Order:   r.params.ArimaOrder.String(),
		Horizon: horizon,
		RMSE:    rmse,
	})

	if r.volModel != nil && spec.Kind == transform.KindLogReturn {
		volResult, err := callWithTimeout(ctx, r.params.StepTimeout, func(ctx context.Context) (*forecast.Result, error) {
			return r.volModel.FitAndForecast(ctx, split.Train, horizon)
		})
		if err != nil {
			return nil, err
		}
		actualVol := make([]float64, horizon)
		mean := split.Train.Mean()
		for i, v := range split.Test.Values {
			d := v - mean
			actualVol[i] = d * d
		}
		volRMSE, err := evaluate.RMSE(actualVol, volResult.Variances)
		if err != nil {
			return nil, err
		}
		evals = append(evals, report.Evaluation{
			Variant: spec.Name(),
			Family:  r.volModel.Family(),
			Order:   r.params.GarchOrder.String(),
			Horizon: horizon,
			RMSE:    volRMSE,
		})
	}
	return evals, nil
}
