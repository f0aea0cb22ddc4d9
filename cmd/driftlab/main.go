// Command driftlab runs the stationarity and forecast analysis for a list of
// symbols and prints the report.
//
// Exit codes: 0 success, 2 invalid configuration, 3 data fetch failure,
// 4 estimator convergence failure, 1 any other failure.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/quantfold/driftlab/internal/forecast"
	"github.com/quantfold/driftlab/internal/logging"
	"github.com/quantfold/driftlab/internal/marketdata"
	"github.com/quantfold/driftlab/internal/pipeline"
	"github.com/quantfold/driftlab/internal/report"
	"github.com/quantfold/driftlab/internal/stationarity"
)

const (
	exitOK          = 0
	exitFailure     = 1
	exitConfig      = 2
	exitData        = 3
	exitConvergence = 4
)

func main() {
	os.Exit(run())
}

func run() int {
	_ = godotenv.Load()

	var (
		symbolsFlag  = flag.String("symbols", "", "comma-separated symbols, e.g. AAPL,MSFT (required)")
		startFlag    = flag.String("start", "", "range start, YYYY-MM-DD (required)")
		endFlag      = flag.String("end", "", "range end, YYYY-MM-DD (required)")
		baseURL      = flag.String("base-url", "http://localhost:3001", "quote service base URL")
		testFraction = flag.Float64("test-fraction", 0.2, "held-out fraction in (0,1)")
		alpha        = flag.Float64("alpha", 0.05, "significance level for hypothesis tests")
		window       = flag.Int("window", 30, "rolling detrend window")
		arimaFlag    = flag.String("arima", "5,1,1", "ARIMA order p,d,q")
		garchFlag    = flag.String("garch", "1,1", "GARCH order p,q")
		workers      = flag.Int("workers", 4, "concurrent symbol chains")
		stepTimeout  = flag.Duration("step-timeout", time.Minute, "per-step timeout (0 disables)")
		verbose      = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	level := "info"
	if *verbose {
		level = "debug"
	}
	logger := logging.New(level, "development")
	logger.SetOutput(os.Stderr)

	symbols := splitSymbols(*symbolsFlag)
	if len(symbols) == 0 {
		fmt.Fprintln(os.Stderr, "driftlab: -symbols is required")
		return exitConfig
	}
	start, err := time.Parse("2006-01-02", *startFlag)
	if err != nil {
		fmt.Fprintln(os.Stderr, "driftlab: -start must be YYYY-MM-DD")
		return exitConfig
	}
	end, err := time.Parse("2006-01-02", *endFlag)
	if err != nil {
		fmt.Fprintln(os.Stderr, "driftlab: -end must be YYYY-MM-DD")
		return exitConfig
	}
	if !end.After(start) {
		fmt.Fprintln(os.Stderr, "driftlab: -end must be after -start")
		return exitConfig
	}

	arimaOrder, err := parseArima(*arimaFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "driftlab: %v\n", err)
		return exitConfig
	}
	garchOrder, err := parseGarch(*garchFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "driftlab: %v\n", err)
		return exitConfig
	}

	arimaModel, err := forecast.NewArima(arimaOrder)
	if err != nil {
		fmt.Fprintf(os.Stderr, "driftlab: %v\n", err)
		return exitConfig
	}
	garchModel, err := forecast.NewGarch(garchOrder)
	if err != nil {
		fmt.Fprintf(os.Stderr, "driftlab: %v\n", err)
		return exitConfig
	}

	source := marketdata.NewHTTPSource(*baseURL, 30*time.Second, logger)
	runner, err := pipeline.NewRunner(
		source,
		stationarity.NewOracle(0),
		arimaModel,
		garchModel,
		pipeline.Params{
			TestFraction:  *testFraction,
			Alpha:         *alpha,
			DetrendWindow: *window,
			DiffOrder:     1,
			ArimaOrder:    arimaOrder,
			GarchOrder:    garchOrder,
			Workers:       *workers,
			StepTimeout:   *stepTimeout,
		},
		logger,
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "driftlab: %v\n", err)
		return exitConfig
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rep := runner.Run(ctx, symbols, start, end)
	rep.Render(os.Stdout)

	return exitCode(rep)
}

// exitCode maps per-series failure classes to the process exit code; data
// failures outrank convergence failures, anything else is a generic failure.
func exitCode(rep *report.Report) int {
	failures := rep.Failures()
	if len(failures) == 0 {
		return exitOK
	}
	code := exitFailure
	for _, f := range failures {
		switch f.FailureClass {
		case pipeline.ClassData:
			return exitData
		case pipeline.ClassConvergence:
			code = exitConvergence
		case pipeline.ClassConfig:
			if code == exitFailure {
				code = exitConfig
			}
		}
	}
	return code
}

func splitSymbols(raw string) []string {
	var out []string
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, strings.ToUpper(s))
		}
	}
	return out
}

func parseArima(raw string) (forecast.ArimaOrder, error) {
	var o forecast.ArimaOrder
	if _, err := fmt.Sscanf(strings.TrimSpace(raw), "%d,%d,%d", &o.P, &o.D, &o.Q); err != nil {
		return o, fmt.Errorf("-arima must be p,d,q: %w", err)
	}
	return o, nil
}

func parseGarch(raw string) (forecast.GarchOrder, error) {
	var o forecast.GarchOrder
	if _, err := fmt.Sscanf(strings.TrimSpace(raw), "%d,%d", &o.P, &o.Q); err != nil {
		return o, fmt.Errorf("-garch must be p,q: %w", err)
	}
	return o, nil
}
