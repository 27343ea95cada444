package cache

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/autocura/governance-core/internal/domain/ethics"
)

// Verification cache key prefix
const verificationPrefix = "agc:verify:"

// Default TTL for cached verification results
const DefaultVerificationTTL = 6 * time.Hour

// VerificationCacheStats tracks cache effectiveness.
type VerificationCacheStats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
	Errors int64 `json:"errors"`
}

// VerificationCache is a write-through Redis cache for verification
// results, letting audit consumers read recent verdicts without
// touching the in-process history.
type VerificationCache struct {
	cache  Cache
	logger *zap.Logger
	ttl    time.Duration

	mu    sync.Mutex
	stats VerificationCacheStats
}

// NewVerificationCache creates the verification result cache.
func NewVerificationCache(cache Cache, logger *zap.Logger, ttl time.Duration) *VerificationCache {
	if ttl <= 0 {
		ttl = DefaultVerificationTTL
	}
	return &VerificationCache{
		cache:  cache,
		logger: logger,
		ttl:    ttl,
	}
}

// StoreResult caches a verification result under its id.
func (c *VerificationCache) StoreResult(ctx context.Context, result *ethics.VerificationResult) error {
	err := c.cache.SetJSON(ctx, verificationPrefix+result.ID.String(), result, c.ttl)
	if err != nil {
		c.bump(func(s *VerificationCacheStats) { s.Errors++ })
	}
	return err
}

// GetResult retrieves a cached verification result.
func (c *VerificationCache) GetResult(ctx context.Context, id uuid.UUID) (*ethics.VerificationResult, error) {
	var result ethics.VerificationResult
	err := c.cache.GetJSON(ctx, verificationPrefix+id.String(), &result)
	if err != nil {
		if IsMiss(err) {
			c.bump(func(s *VerificationCacheStats) { s.Misses++ })
		} else {
			c.bump(func(s *VerificationCacheStats) { s.Errors++ })
		}
		return nil, err
	}
	c.bump(func(s *VerificationCacheStats) { s.Hits++ })
	return &result, nil
}

// Invalidate drops a cached result.
func (c *VerificationCache) Invalidate(ctx context.Context, id uuid.UUID) error {
	return c.cache.Delete(ctx, verificationPrefix+id.String())
}

// Stats returns a snapshot of the cache counters.
func (c *VerificationCache) Stats() VerificationCacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

func (c *VerificationCache) bump(update func(*VerificationCacheStats)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	update(&c.stats)
}
