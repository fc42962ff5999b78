package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/gokhangum/gumruk360-sub002/internal/adapter/cache"
	"github.com/gokhangum/gumruk360-sub002/internal/usecase"
)

// RateTickHandler lands fx.rates ticks in the rate cache read by the
// currency lock. Stale or nonsense ticks are dropped: a missing rate is
// always safer than a wrong one.
type RateTickHandler struct {
	Rates *cache.RedisRateCache
}

func NewRateTickHandler(rates *cache.RedisRateCache) *RateTickHandler {
	return &RateTickHandler{Rates: rates}
}

func (h *RateTickHandler) Handle(ctx context.Context, ev usecase.RateTickMsg) error {
	if ev.Currency == "" || ev.Rate <= 0 {
		return fmt.Errorf("malformed rate tick: currency=%q rate=%v", ev.Currency, ev.Rate)
	}
	asOf := ev.AsOf
	if asOf.IsZero() {
		asOf = time.Now().UTC()
	}
	return h.Rates.SetRate(ctx, ev.Currency, ev.Rate, asOf)
}
