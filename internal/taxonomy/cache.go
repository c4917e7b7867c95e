package taxonomy

import (
	"context"
	"encoding/json"
	"time"

	"safetyreport_backend/platform/logger"

	"github.com/redis/go-redis/v9"
)

const snapshotCacheKey = "taxonomy:snapshot"

// Loader loads a taxonomy snapshot from its source of truth.
type Loader interface {
	Load(ctx context.Context) (Snapshot, error)
}

// CachedProvider serves taxonomy snapshots through a short-lived Redis cache.
// The taxonomy changes rarely and handlers read it on every message, so a
// small TTL keeps the database out of the hot path while staying close to
// point-in-time semantics.
type CachedProvider struct {
	loader Loader
	rdb    *redis.Client
	ttl    time.Duration
	log    *logger.Logger
}

func NewCachedProvider(loader Loader, rdb *redis.Client, ttl time.Duration, log *logger.Logger) *CachedProvider {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachedProvider{loader: loader, rdb: rdb, ttl: ttl, log: log}
}

// Snapshot returns the current taxonomy snapshot, from cache when possible.
// Cache failures degrade to a direct load; they never fail the message.
func (p *CachedProvider) Snapshot(ctx context.Context) (Snapshot, error) {
	if p.rdb != nil {
		raw, err := p.rdb.Get(ctx, snapshotCacheKey).Bytes()
		if err == nil {
			var snap Snapshot
			if unmarshalErr := json.Unmarshal(raw, &snap); unmarshalErr == nil {
				return snap, nil
			}
		} else if err != redis.Nil {
			p.log.Warn("taxonomy cache read failed", "error", err)
		}
	}

	snap, err := p.loader.Load(ctx)
	if err != nil {
		return Snapshot{}, err
	}

	if p.rdb != nil {
		if raw, err := json.Marshal(snap); err == nil {
			if err := p.rdb.Set(ctx, snapshotCacheKey, raw, p.ttl).Err(); err != nil {
				p.log.Warn("taxonomy cache write failed", "error", err)
			}
		}
	}

	return snap, nil
}
