package discovery

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"actionbroker/internal/common"
)

// DefaultTTL is the freshness window applied when config supplies none.
const DefaultTTL = 30 * time.Second

// Snapshot is an immutable discovery result: the full endpoint set plus
// the time it was built. Callers must not mutate the endpoint slice.
type Snapshot struct {
	Endpoints []Endpoint
	BuiltAt   time.Time
}

// Cache serves discovery snapshots within a freshness window. The current
// snapshot is held behind an atomic pointer and replaced wholesale on
// re-scan, so concurrent readers always observe either the old or the
// fully-built new set. Concurrent expiry collapses to a single scan.
type Cache struct {
	source Source
	ttl    time.Duration
	logger *common.Logger

	current atomic.Pointer[Snapshot]
	group   singleflight.Group
	scans   atomic.Int64
}

// NewCache creates a Cache over source. ttl <= 0 selects DefaultTTL.
func NewCache(source Source, ttl time.Duration, logger *common.Logger) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		source: source,
		ttl:    ttl,
		logger: logger,
	}
}

// Snapshot returns the current endpoint snapshot, re-scanning first if the
// freshness window has lapsed. A failed re-scan serves the previous
// snapshot and logs a warning; only a failure with no previous snapshot
// is returned as an error.
func (c *Cache) Snapshot(ctx context.Context) (*Snapshot, error) {
	if snap := c.current.Load(); snap != nil && time.Since(snap.BuiltAt) < c.ttl {
		return snap, nil
	}
	return c.rescan(ctx, false)
}

// Refresh forces a re-scan regardless of freshness and returns the new
// snapshot. The previous snapshot stays in place when the scan fails.
func (c *Cache) Refresh(ctx context.Context) (*Snapshot, error) {
	return c.rescan(ctx, true)
}

// Invalidate marks the current snapshot stale so the next access
// re-scans. The endpoint set is retained for failure fallback.
func (c *Cache) Invalidate() {
	for {
		cur := c.current.Load()
		if cur == nil || cur.BuiltAt.IsZero() {
			return
		}
		stale := &Snapshot{Endpoints: cur.Endpoints}
		if c.current.CompareAndSwap(cur, stale) {
			return
		}
	}
}

// ScanCount reports how many source scans have been attempted. Exposed
// for observability and for verifying freshness-window behavior.
func (c *Cache) ScanCount() int64 {
	return c.scans.Load()
}

// TTL returns the freshness window the cache was built with.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// rescan performs the scan under singleflight so that concurrent callers
// share one result. When force is false, a snapshot refreshed by another
// caller while waiting is returned as-is.
func (c *Cache) rescan(ctx context.Context, force bool) (*Snapshot, error) {
	v, err, _ := c.group.Do("scan", func() (interface{}, error) {
		if !force {
			if snap := c.current.Load(); snap != nil && time.Since(snap.BuiltAt) < c.ttl {
				return snap, nil
			}
		}

		c.scans.Add(1)
		endpoints, scanErr := c.source.Scan(ctx)
		if scanErr != nil {
			if prev := c.current.Load(); prev != nil {
				// Serve the previous set and re-arm the window so a broken
				// source is retried at TTL cadence, not on every call.
				stale := &Snapshot{Endpoints: prev.Endpoints, BuiltAt: time.Now()}
				c.current.Store(stale)
				c.logger.Warn().
					Str("root", c.source.Root()).
					Str("error", scanErr.Error()).
					Msg("discovery re-scan failed, serving previous snapshot")
				return stale, nil
			}
			return nil, scanErr
		}

		snap := &Snapshot{Endpoints: endpoints, BuiltAt: time.Now()}
		c.current.Store(snap)
		c.logger.Debug().
			Int("endpoints", len(endpoints)).
			Str("root", c.source.Root()).
			Msg("discovery snapshot replaced")
		return snap, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Snapshot), nil
}
