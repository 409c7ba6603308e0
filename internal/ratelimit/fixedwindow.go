package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	limiter "github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	limiterredis "github.com/ulule/limiter/v3/drivers/store/redis"
)

// Fixed is a fixed-window limiter used for the general API budget. It keeps
// counters in Redis when a client is given and in process memory otherwise.
type Fixed struct {
	instance *limiter.Limiter
}

// NewFixed builds a limiter from a formatted rate such as "120-M".
func NewFixed(client *redis.Client, prefix, formatted string) (*Fixed, error) {
	rate, err := limiter.NewRateFromFormatted(formatted)
	if err != nil {
		return nil, fmt.Errorf("parse rate %q: %w", formatted, err)
	}
	opts := limiter.StoreOptions{Prefix: prefix, MaxRetry: 3}
	var store limiter.Store
	if client != nil {
		store, err = limiterredis.NewStoreWithOptions(client, opts)
		if err != nil {
			return nil, fmt.Errorf("limiter store: %w", err)
		}
	} else {
		store = memory.NewStoreWithOptions(opts)
	}
	return &Fixed{instance: limiter.New(store, rate)}, nil
}

// Allow increments the counter for key.
func (f *Fixed) Allow(ctx context.Context, key string) (Decision, error) {
	res, err := f.instance.Get(ctx, key)
	if err != nil {
		return Decision{}, err
	}
	return Decision{
		Allowed:   !res.Reached,
		Limit:     int(res.Limit),
		Remaining: int(res.Remaining),
		Reset:     time.Unix(res.Reset, 0),
	}, nil
}
