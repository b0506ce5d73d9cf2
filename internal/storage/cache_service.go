package storage

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/arxiv-daily/internal/models"
)

// CacheService keeps parsed day files and the tag pool in Redis so that
// several server processes share one parse of each file version.
type CacheService struct {
	redis *RedisCache
	ttl   time.Duration
}

// NewCacheService creates a new cache service
func NewCacheService(redis *RedisCache, ttl time.Duration) *CacheService {
	return &CacheService{
		redis: redis,
		ttl:   ttl,
	}
}

// CacheKeyType represents different types of cache keys
type CacheKeyType string

const (
	// CacheKeyDay is for the parsed papers of one data file
	CacheKeyDay CacheKeyType = "papers:day"
	// CacheKeyTagPool is for the sorted tag pool
	CacheKeyTagPool CacheKeyType = "papers:tags"
)

// GenerateCacheKey generates a cache key for a given type and parameters
// Format: <type>:<param1>:<param2>:...
func (c *CacheService) GenerateCacheKey(keyType CacheKeyType, params ...string) string {
	parts := make([]string, 0, len(params)+1)
	parts = append(parts, string(keyType))
	for _, p := range params {
		parts = append(parts, strings.ToLower(p))
	}
	return strings.Join(parts, ":")
}

// GenerateDayKey keys a day by date and file version, so a rewritten file
// never serves stale papers.
// Format: papers:day:<date>:<version>
func (c *CacheService) GenerateDayKey(date string, version int64) string {
	return c.GenerateCacheKey(CacheKeyDay, date, strconv.FormatInt(version, 10))
}

// GetDay returns the cached papers of a day file at the given version
func (c *CacheService) GetDay(ctx context.Context, date string, version int64) ([]models.Paper, bool, error) {
	var papers []models.Paper
	ok, err := c.redis.GetJSON(ctx, c.GenerateDayKey(date, version), &papers)
	if err != nil || !ok {
		return nil, false, err
	}
	return papers, true, nil
}

// SetDay caches the papers of a day file and drops older versions of it
func (c *CacheService) SetDay(ctx context.Context, date string, version int64, papers []models.Paper) error {
	if papers == nil {
		papers = []models.Paper{}
	}
	return c.redis.ReplaceInFamily(ctx, c.GenerateCacheKey(CacheKeyDay, date), c.GenerateDayKey(date, version), papers, c.ttl)
}

// GetTagPool returns the cached tag pool for a data set signature
func (c *CacheService) GetTagPool(ctx context.Context, signature string) ([]string, bool, error) {
	var tags []string
	ok, err := c.redis.GetJSON(ctx, c.GenerateCacheKey(CacheKeyTagPool, signature), &tags)
	if err != nil || !ok {
		return nil, false, err
	}
	return tags, true, nil
}

// SetTagPool caches the tag pool, replacing pools of older signatures
func (c *CacheService) SetTagPool(ctx context.Context, signature string, tags []string) error {
	if tags == nil {
		tags = []string{}
	}
	return c.redis.ReplaceInFamily(ctx, c.GenerateCacheKey(CacheKeyTagPool), c.GenerateCacheKey(CacheKeyTagPool, signature), tags, c.ttl)
}
