package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/gokhangum/gumruk360-sub002/internal/usecase"
)

// RedisRateCache is the read side of the FX rate collaborator. Ticks land
// here from the fx.rates Kafka consumer; a cache miss is the explicit
// "rate unavailable" signal, never a zero rate.
type RedisRateCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisRateCache(rdb *redis.Client, ttl time.Duration) *RedisRateCache {
	return &RedisRateCache{rdb: rdb, ttl: ttl}
}

type rateEntry struct {
	Rate float64   `json:"rate"`
	AsOf time.Time `json:"asOf"`
}

func (r *RedisRateCache) SetRate(ctx context.Context, currency string, rate float64, asOf time.Time) error {
	b, err := json.Marshal(rateEntry{Rate: rate, AsOf: asOf})
	if err != nil {
		return err
	}
	return r.rdb.Set(ctx, "fx:rate:"+currency, b, r.ttl).Err()
}

func (r *RedisRateCache) Rate(ctx context.Context, currency string) (usecase.RateQuote, bool, error) {
	val, err := r.rdb.Get(ctx, "fx:rate:"+currency).Bytes()
	if err == redis.Nil {
		return usecase.RateQuote{}, false, nil
	}
	if err != nil {
		return usecase.RateQuote{}, false, err
	}
	var e rateEntry
	if err := json.Unmarshal(val, &e); err != nil {
		return usecase.RateQuote{}, false, err
	}
	if e.Rate <= 0 {
		return usecase.RateQuote{}, false, nil
	}
	return usecase.RateQuote{Rate: e.Rate, AsOf: e.AsOf}, true, nil
}

var _ usecase.RateSource = (*RedisRateCache)(nil)
