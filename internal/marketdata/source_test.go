package marketdata

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

var (
	rangeStart = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rangeEnd   = time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
)

func TestHTTPSourceFetch(t *testing.T) {
	const body = `date,open,high,low,close,volume
2024-01-02,185.1,186.7,184.3,185.64,5000
2024-01-03,185.6,186.0,183.9,184.25,6100
2024-01-04,184.2,185.5,183.0,181.91,7200
`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/daily", r.URL.Path)
		assert.Equal(t, "AAPL", r.URL.Query().Get("symbol"))
		assert.Equal(t, "2024-01-01", r.URL.Query().Get("start"))
		assert.Equal(t, "2024-01-31", r.URL.Query().Get("end"))
		io.WriteString(w, body)
	}))
	defer srv.Close()

	source := NewHTTPSource(srv.URL, 5*time.Second, testLogger())
	s, err := source.Fetch(context.Background(), "AAPL", rangeStart, rangeEnd)
	require.NoError(t, err)
	assert.Equal(t, "AAPL", s.Name)
	require.Equal(t, 3, s.Len())
	assert.InDelta(t, 185.64, s.Values[0], 1e-9)
	assert.True(t, s.Timestamps[0].Equal(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)))
}

func TestHTTPSourceDropsMissingCloses(t *testing.T) {
	const body = `date,close
2024-01-02,185.64
2024-01-03,
2024-01-04,null
2024-01-05,.
2024-01-06,181.91
not-a-date,100
`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, body)
	}))
	defer srv.Close()

	source := NewHTTPSource(srv.URL, 0, testLogger())
	s, err := source.Fetch(context.Background(), "AAPL", rangeStart, rangeEnd)
	require.NoError(t, err)
	assert.Equal(t, 2, s.Len(), "only rows with parsable date and close survive")
}

func TestHTTPSourceNoData(t *testing.T) {
	t.Run("404", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.NotFound(w, r)
		}))
		defer srv.Close()

		source := NewHTTPSource(srv.URL, 0, testLogger())
		_, err := source.Fetch(context.Background(), "NOPE", rangeStart, rangeEnd)
		assert.ErrorIs(t, err, ErrNoData)
	})

	t.Run("header only", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, "date,close\n")
		}))
		defer srv.Close()

		source := NewHTTPSource(srv.URL, 0, testLogger())
		_, err := source.Fetch(context.Background(), "EMPTY", rangeStart, rangeEnd)
		assert.ErrorIs(t, err, ErrNoData)
	})

	t.Run("empty body", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		defer srv.Close()

		source := NewHTTPSource(srv.URL, 0, testLogger())
		_, err := source.Fetch(context.Background(), "EMPTY", rangeStart, rangeEnd)
		assert.ErrorIs(t, err, ErrNoData)
	})
}

func TestHTTPSourceUnexpectedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	source := NewHTTPSource(srv.URL, 0, testLogger())
	_, err := source.Fetch(context.Background(), "AAPL", rangeStart, rangeEnd)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoData)
}

func TestParseDailyCSVMissingColumns(t *testing.T) {
	_, _, err := parseDailyCSV("AAPL", strings.NewReader("open,high,low\n1,2,3\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "date/close")
}
