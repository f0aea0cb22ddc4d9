package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/quantfold/driftlab/internal/timeseries"
)

// cachedSeries is the JSON shape stored in Redis.
type cachedSeries struct {
	Symbol     string      `json:"symbol"`
	Timestamps []time.Time `json:"timestamps"`
	Values     []float64   `json:"values"`
	CachedAt   time.Time   `json:"cached_at"`
}

// CachedSource caches fetched series in Redis keyed by symbol and date
// range. Cache failures degrade to a direct fetch, never to a hard error.
type CachedSource struct {
	next   Source
	redis  *redis.Client
	ttl    time.Duration
	logger *logrus.Logger
}

// NewCachedSource wraps next with a Redis cache.
func NewCachedSource(next Source, redisClient *redis.Client, ttl time.Duration, logger *logrus.Logger) *CachedSource {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &CachedSource{next: next, redis: redisClient, ttl: ttl, logger: logger}
}

func cacheKey(symbol string, start, end time.Time) string {
	return fmt.Sprintf("series:%s:%s:%s", symbol, start.Format("2006-01-02"), end.Format("2006-01-02"))
}

// Fetch returns the cached series when present, otherwise delegates and
// stores the result.
func (c *CachedSource) Fetch(ctx context.Context, symbol string, start, end time.Time) (*timeseries.Series, error) {
	key := cacheKey(symbol, start, end)

	data, err := c.redis.Get(ctx, key).Result()
	if err == nil {
		var entry cachedSeries
		if jsonErr := json.Unmarshal([]byte(data), &entry); jsonErr == nil {
			series, newErr := timeseries.New(entry.Symbol, entry.Timestamps, entry.Values)
			if newErr == nil {
				return series, nil
			}
			c.logger.WithField("key", key).WithError(newErr).Warn("discarding corrupt cached series")
		}
	} else if err != redis.Nil {
		c.logger.WithField("key", key).WithError(err).Warn("series cache read failed")
	}

	series, err := c.next.Fetch(ctx, symbol, start, end)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(cachedSeries{
		Symbol:     series.Name,
		Timestamps: series.Timestamps,
		Values:     series.Values,
		CachedAt:   time.Now().UTC(),
	})
	if err == nil {
		if setErr := c.redis.Set(ctx, key, payload, c.ttl).Err(); setErr != nil {
			c.logger.WithField("key", key).WithError(setErr).Warn("series cache write failed")
		}
	}
	return series, nil
}
