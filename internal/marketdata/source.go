// Package marketdata fetches daily close price series from an external
// provider. The pipeline depends only on the Source interface; the concrete
// provider speaks CSV over HTTP and an optional layer caches fetched series
// in Redis.
package marketdata

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/quantfold/driftlab/internal/timeseries"
)

// ErrNoData is returned when the provider has no usable observations for the
// requested symbol and range.
var ErrNoData = errors.New("marketdata: no data for symbol")

// Source fetches the daily close series for a symbol over [start, end].
// Returned series are NaN-free: rows with missing closes are dropped.
type Source interface {
	Fetch(ctx context.Context, symbol string, start, end time.Time) (*timeseries.Series, error)
}

// HTTPSource fetches CSV daily bars from a quote service. Expected response:
// a header row followed by date,open,high,low,close,volume rows, dates in
// 2006-01-02 form, ascending.
type HTTPSource struct {
	httpClient *http.Client
	baseURL    string
	logger     *logrus.Logger
}

// NewHTTPSource creates a source against baseURL with the given request
// timeout.
func NewHTTPSource(baseURL string, timeout time.Duration, logger *logrus.Logger) *HTTPSource {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &HTTPSource{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		logger:     logger,
	}
}

// Fetch downloads and parses the daily close series. Rows with an empty or
// unparsable close are dropped; an entirely empty result is ErrNoData.
func (s *HTTPSource) Fetch(ctx context.Context, symbol string, start, end time.Time) (*timeseries.Series, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("start", start.Format("2006-01-02"))
	params.Set("end", end.Format("2006-01-02"))
	reqURL := fmt.Sprintf("%s/daily?%s", s.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("marketdata: build request for %s: %w", symbol, err)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("marketdata: fetch %s: %w", symbol, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrNoData, symbol)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("marketdata: fetch %s: unexpected status %d", symbol, resp.StatusCode)
	}

	series, dropped, err := parseDailyCSV(symbol, resp.Body)
	if err != nil {
		return nil, err
	}
	if dropped > 0 {
		s.logger.WithFields(logrus.Fields{"symbol": symbol, "dropped": dropped}).
			Warn("dropped rows with missing close")
	}
	return series, nil
}

// parseDailyCSV reads date/close pairs out of a daily bars CSV, returning the
// series and how many rows were dropped for missing values.
func parseDailyCSV(symbol string, r io.Reader) (*timeseries.Series, int, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %s: empty response", ErrNoData, symbol)
	}
	closeIdx, dateIdx := -1, -1
	for i, col := range header {
		switch strings.ToLower(strings.TrimSpace(col)) {
		case "date":
			dateIdx = i
		case "close":
			closeIdx = i
		}
	}
	if dateIdx < 0 || closeIdx < 0 {
		return nil, 0, fmt.Errorf("marketdata: %s: response missing date/close columns", symbol)
	}

	var (
		timestamps []time.Time
		values     []float64
		dropped    int
	)
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, 0, fmt.Errorf("marketdata: %s: malformed csv: %w", symbol, err)
		}
		if len(row) <= closeIdx || len(row) <= dateIdx {
			dropped++
			continue
		}
		ts, err := time.Parse("2006-01-02", strings.TrimSpace(row[dateIdx]))
		if err != nil {
			dropped++
			continue
		}
		raw := strings.TrimSpace(row[closeIdx])
		if raw == "" || raw == "." || strings.EqualFold(raw, "null") {
			dropped++
			continue
		}
		price, err := decimal.NewFromString(raw)
		if err != nil {
			dropped++
			continue
		}
		timestamps = append(timestamps, ts)
		values = append(values, price.InexactFloat64())
	}
	if len(values) == 0 {
		return nil, dropped, fmt.Errorf("%w: %s", ErrNoData, symbol)
	}
	series, err := timeseries.New(symbol, timestamps, values)
	if err != nil {
		return nil, dropped, fmt.Errorf("marketdata: %s: %w", symbol, err)
	}
	return series, dropped, nil
}
