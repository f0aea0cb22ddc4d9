package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfold/driftlab/internal/forecast"
	"github.com/quantfold/driftlab/internal/pipeline"
	"github.com/quantfold/driftlab/internal/report"
	"github.com/quantfold/driftlab/internal/stationarity"
	"github.com/quantfold/driftlab/internal/timeseries"
)

type fixedSource struct{}

func (fixedSource) Fetch(ctx context.Context, symbol string, start, end time.Time) (*timeseries.Series, error) {
	values := make([]float64, 60)
	for i := range values {
		values[i] = 100 + float64(i) + float64(i%5)
	}
	return timeseries.Synthetic(symbol, start, values), nil
}

type fixedTests struct{}

func (fixedTests) TestUnitRoot(ctx context.Context, s *timeseries.Series) (stationarity.Verdict, error) {
	return stationarity.Verdict{TestName: "adf", NullHypothesis: "unit root", PValue: 0.01}, nil
}

func (fixedTests) TestTrendStationarity(ctx context.Context, s *timeseries.Series) (stationarity.Verdict, error) {
	return stationarity.Verdict{TestName: "kpss", NullHypothesis: "stationary", PValue: 0.1}, nil
}

type fixedMean struct{}

func (fixedMean) Family() string { return "fixed" }

func (fixedMean) FitAndForecast(ctx context.Context, train *timeseries.Series, horizon int) (*forecast.Result, error) {
	_, last := train.Last()
	values := make([]float64, horizon)
	for i := range values {
		values[i] = last
	}
	return &forecast.Result{Times: train.Extend(horizon), Values: values}, nil
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	runner, err := pipeline.NewRunner(fixedSource{}, fixedTests{}, fixedMean{}, nil, pipeline.Params{
		TestFraction:  0.2,
		Alpha:         0.05,
		DetrendWindow: 10,
		DiffOrder:     1,
		ArimaOrder:    forecast.ArimaOrder{P: 1, D: 1, Q: 0},
		GarchOrder:    forecast.GarchOrder{P: 1, Q: 1},
		Workers:       2,
	}, logger)
	require.NoError(t, err)

	router := gin.New()
	router.POST("/api/v1/analysis/run", NewAnalysisHandler(runner, nil).Run)
	return router
}

func postRun(t *testing.T, router *gin.Engine, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/analysis/run", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRunEndpoint(t *testing.T) {
	router := newTestRouter(t)

	w := postRun(t, router, RunRequest{
		Symbols: []string{"AAPL", "MSFT"},
		Start:   "2024-01-01",
		End:     "2024-06-30",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var rep report.Report
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rep))
	assert.NotEmpty(t, rep.RunID)
	require.Len(t, rep.Series, 2)
	for _, sr := range rep.Series {
		assert.False(t, sr.Failed(), sr.FailureReason)
		assert.Len(t, sr.Variants, 4)
	}
}

func TestRunEndpointValidation(t *testing.T) {
	router := newTestRouter(t)

	cases := []struct {
		name string
		body any
	}{
		{"missing symbols", gin.H{"start": "2024-01-01", "end": "2024-06-30"}},
		{"empty symbols", gin.H{"symbols": []string{}, "start": "2024-01-01", "end": "2024-06-30"}},
		{"bad start", gin.H{"symbols": []string{"AAPL"}, "start": "Jan 1", "end": "2024-06-30"}},
		{"bad end", gin.H{"symbols": []string{"AAPL"}, "start": "2024-01-01", "end": "soon"}},
		{"end before start", gin.H{"symbols": []string{"AAPL"}, "start": "2024-06-30", "end": "2024-01-01"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := postRun(t, router, tc.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), "error")
		})
	}
}
