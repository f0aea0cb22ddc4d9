// Package report defines the aggregate output of an analysis run and its
// rendering. A run report carries, per symbol, either the full set of
// stationarity verdicts and forecast scores or a failure reason — never a
// silent omission.
package report

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/quantfold/driftlab/internal/stationarity"
)

// StationarityPair holds both diagnostics for one series variant. The two
// tests have opposite nulls and may disagree; both verdicts are preserved.
type StationarityPair struct {
	UnitRoot          stationarity.Verdict `json:"unit_root"`
	TrendStationarity stationarity.Verdict `json:"trend_stationarity"`
}

// VariantReport is the diagnostic output for one transform variant of a
// symbol's series.
type VariantReport struct {
	Name         string           `json:"name"`
	Observations int              `json:"observations"`
	Stationarity StationarityPair `json:"stationarity"`
	ACF          []float64        `json:"acf,omitempty"`
}

// Evaluation scores one (variant, model family) forecast against held-out
// actuals. Immutable once created.
type Evaluation struct {
	Variant string  `json:"variant"`
	Family  string  `json:"family"`
	Order   string  `json:"order"`
	Horizon int     `json:"horizon"`
	RMSE    float64 `json:"rmse"`
}

// MarketContext is supplemental indicator state computed on the raw series.
type MarketContext struct {
	SMA float64 `json:"sma"`
	RSI float64 `json:"rsi"`
}

// SeriesReport is the per-symbol outcome: complete diagnostics and scores, or
// a failure class and reason.
type SeriesReport struct {
	Symbol        string          `json:"symbol"`
	Variants      []VariantReport `json:"variants,omitempty"`
	Evaluations   []Evaluation    `json:"evaluations,omitempty"`
	MarketContext *MarketContext  `json:"market_context,omitempty"`
	FailureClass  string          `json:"failure_class,omitempty"`
	FailureReason string          `json:"failure_reason,omitempty"`
	Elapsed       time.Duration   `json:"elapsed"`
}

// Failed reports whether the symbol's chain ended in a failure.
func (r SeriesReport) Failed() bool {
	return r.FailureReason != ""
}

// Report aggregates all per-symbol outcomes of a run.
type Report struct {
	RunID      string         `json:"run_id"`
	Alpha      float64        `json:"alpha"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Series     []SeriesReport `json:"series"`
}

// Sort orders per-symbol reports by symbol for stable output.
func (r *Report) Sort() {
	sort.Slice(r.Series, func(i, j int) bool { return r.Series[i].Symbol < r.Series[j].Symbol })
}

// Failures returns the symbols whose chains failed.
func (r *Report) Failures() []SeriesReport {
	var out []SeriesReport
	for _, sr := range r.Series {
		if sr.Failed() {
			out = append(out, sr)
		}
	}
	return out
}

// Render writes a plain-text summary.
func (r *Report) Render(w io.Writer) {
	fmt.Fprintf(w, "run %s  alpha=%.2f  %d series  %s\n",
		r.RunID, r.Alpha, len(r.Series), r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond))
	for _, sr := range r.Series {
		fmt.Fprintf(w, "\n== %s (%s)\n", sr.Symbol, sr.Elapsed.Round(time.Millisecond))
		if sr.Failed() {
			fmt.Fprintf(w, "  FAILED [%s]: %s\n", sr.FailureClass, sr.FailureReason)
			continue
		}
		if sr.MarketContext != nil {
			fmt.Fprintf(w, "  context: sma=%.2f rsi=%.1f\n", sr.MarketContext.SMA, sr.MarketContext.RSI)
		}
		for _, v := range sr.Variants {
			ur := v.Stationarity.UnitRoot
			ts := v.Stationarity.TrendStationarity
			fmt.Fprintf(w, "  %-12s n=%-5d adf: stat=%8.4f p=%.3f reject=%-5v  kpss: stat=%7.4f p=%.3f reject=%v\n",
				v.Name, v.Observations,
				ur.Statistic, ur.PValue, ur.RejectsNullAt(r.Alpha),
				ts.Statistic, ts.PValue, ts.RejectsNullAt(r.Alpha))
		}
		for _, e := range sr.Evaluations {
			fmt.Fprintf(w, "  %-12s %s %-14s horizon=%-4d rmse=%.6f\n",
				e.Variant, e.Family, e.Order, e.Horizon, e.RMSE)
		}
	}
	if failures := r.Failures(); len(failures) > 0 {
		names := make([]string, len(failures))
		for i, f := range failures {
			names[i] = f.Symbol
		}
		fmt.Fprintf(w, "\n%d of %d series failed: %s\n", len(failures), len(r.Series), strings.Join(names, ", "))
	}
}
