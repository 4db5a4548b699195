package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"fxbot/internal/provider"
	"fxbot/internal/repository"
)

// BaseCurrency is the only base all rates are expressed against.
const BaseCurrency = "USD"

// DefaultFreshnessWindow bounds how old a served snapshot may be.
const DefaultFreshnessWindow = 10 * time.Minute

// DefaultRefreshTimeout bounds one shared refresh (provider call plus store write).
const DefaultRefreshTimeout = 30 * time.Second

const hotKeyPrefix = "rates:latest:"

func hotKey(base string) string {
	return hotKeyPrefix + "{" + base + "}"
}

// RateCache serves the latest rate snapshot from the store while it is fresh and
// refreshes it from the provider otherwise. Every refresh is written to the store
// before it is returned.
type RateCache struct {
	store          repository.SnapshotRepository
	provider       provider.RatesProvider
	hot            *redis.Client
	window         time.Duration
	refreshTimeout time.Duration
	group          singleflight.Group
	log            *zap.SugaredLogger
	now            func() time.Time
}

// NewRateCache creates a RateCache. hot is optional; when set, the validated snapshot is
// mirrored into Redis so most reads skip the store.
func NewRateCache(store repository.SnapshotRepository, prov provider.RatesProvider, hot *redis.Client, window time.Duration, logger *zap.SugaredLogger) *RateCache {
	if window <= 0 {
		window = DefaultFreshnessWindow
	}
	return &RateCache{
		store:          store,
		provider:       prov,
		hot:            hot,
		window:         window,
		refreshTimeout: DefaultRefreshTimeout,
		log:            logger,
		now:            time.Now,
	}
}

// LatestRates returns a code->rate mapping no older than the freshness window.
// The returned map is shared and must not be modified.
func (c *RateCache) LatestRates(ctx context.Context) (map[string]float64, error) {
	threshold := c.now().Add(-c.window)

	if snap, ok := c.hotGet(ctx, threshold); ok {
		return snap.Rates, nil
	}

	snap, err := c.store.LatestAfter(ctx, BaseCurrency, threshold)
	if err != nil {
		c.log.Errorw("Snapshot store read failed", "error", err)
		return nil, fmt.Errorf("%w: read latest snapshot: %w", ErrStore, err)
	}
	if snap != nil {
		c.hotSet(ctx, snap)
		return snap.Rates, nil
	}

	// Concurrent misses share one provider call and one durable write. The flight
	// ignores caller cancellation; each caller stops waiting on its own ctx.
	ch := c.group.DoChan(BaseCurrency, func() (any, error) {
		flightCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.refreshTimeout)
		defer cancel()
		return c.refresh(flightCtx)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			c.log.Debugw("Joined in-flight rate refresh", "base", BaseCurrency)
		}
		return res.Val.(*repository.RateSnapshot).Rates, nil
	}
}

func (c *RateCache) refresh(ctx context.Context) (*repository.RateSnapshot, error) {
	rates, err := c.provider.GetRates(ctx, provider.Query{Base: BaseCurrency})
	if err != nil {
		c.log.Errorw("Rate refresh failed", "base", BaseCurrency, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrProvider, err)
	}

	snap := &repository.RateSnapshot{
		CapturedAt: c.now().UTC().Truncate(time.Second),
		Base:       BaseCurrency,
		Rates:      rates,
	}
	if err := c.store.Put(ctx, *snap); err != nil {
		c.log.Errorw("Snapshot store write failed", "error", err)
		return nil, fmt.Errorf("%w: write snapshot: %w", ErrStore, err)
	}

	c.hotSet(ctx, snap)
	c.log.Infow("Rates refreshed", "base", BaseCurrency, "currencies", len(rates))
	return snap, nil
}

func (c *RateCache) hotGet(ctx context.Context, threshold time.Time) (*repository.RateSnapshot, bool) {
	if c.hot == nil {
		return nil, false
	}

	vals, err := c.hot.HMGet(ctx, hotKey(BaseCurrency), "captured_at", "rates").Result()
	if err != nil || len(vals) != 2 || vals[0] == nil || vals[1] == nil {
		return nil, false
	}

	tsStr, ok := asString(vals[0])
	if !ok {
		return nil, false
	}
	ts, err := strconv.ParseInt(tsStr, 10, 64)
	if err != nil {
		return nil, false
	}
	capturedAt := time.Unix(ts, 0).UTC()
	if !capturedAt.After(threshold) {
		return nil, false
	}

	raw, ok := asString(vals[1])
	if !ok {
		return nil, false
	}
	var rates map[string]float64
	if err := json.Unmarshal([]byte(raw), &rates); err != nil {
		return nil, false
	}

	return &repository.RateSnapshot{CapturedAt: capturedAt, Base: BaseCurrency, Rates: rates}, true
}

func (c *RateCache) hotSet(ctx context.Context, snap *repository.RateSnapshot) {
	if c.hot == nil {
		return
	}

	ttl := snap.CapturedAt.Add(c.window).Sub(c.now())
	if ttl <= 0 {
		return
	}
	raw, err := json.Marshal(snap.Rates)
	if err != nil {
		return
	}

	key := hotKey(snap.Base)
	pipe := c.hot.Pipeline()
	pipe.HSet(ctx, key, "captured_at", snap.CapturedAt.Unix(), "rates", string(raw))
	pipe.Expire(ctx, key, ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		c.log.Warnw("Failed to update rate cache", "key", key, "error", err)
	}
}

func asString(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case []byte:
		return string(x), true
	default:
		return "", false
	}
}
