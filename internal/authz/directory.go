package authz

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const roleCachePrefix = "authz:teacher:"

// CachedDirectory decorates a RoleDirectory with a short-lived redis cache.
// Roles are fixed at provisioning, so a short TTL only bounds staleness for
// freshly created profiles. Cache failures fall through to the inner lookup.
type CachedDirectory struct {
	next     RoleDirectory
	client   *redis.Client
	ttl      time.Duration
	logger   *zap.Logger
	observer CacheObserver
}

// CacheObserver receives role cache hit/miss observations.
type CacheObserver interface {
	RecordRoleCacheLookup(hit bool)
}

// NewCachedDirectory wraps next with a redis boolean cache.
func NewCachedDirectory(next RoleDirectory, client *redis.Client, ttl time.Duration, logger *zap.Logger) *CachedDirectory {
	if ttl <= 0 {
		ttl = time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedDirectory{next: next, client: client, ttl: ttl, logger: logger}
}

// WithCacheObserver attaches a hit/miss observer.
func (d *CachedDirectory) WithCacheObserver(o CacheObserver) *CachedDirectory {
	d.observer = o
	return d
}

// IsTeacher answers from cache when possible, otherwise consults the inner
// directory and stores the result best effort.
func (d *CachedDirectory) IsTeacher(ctx context.Context, identityID string) (bool, error) {
	if identityID == "" {
		return false, nil
	}

	key := roleCachePrefix + identityID
	val, err := d.client.Get(ctx, key).Result()
	if err == nil {
		d.observe(true)
		return val == "1", nil
	}
	d.observe(false)
	if !errors.Is(err, redis.Nil) {
		d.logger.Warn("role cache lookup failed", zap.Error(err))
	}

	isTeacher, err := d.next.IsTeacher(ctx, identityID)
	if err != nil {
		return false, err
	}

	cached := "0"
	if isTeacher {
		cached = "1"
	}
	if err := d.client.Set(ctx, key, cached, d.ttl).Err(); err != nil {
		d.logger.Warn("role cache store failed", zap.Error(err))
	}

	return isTeacher, nil
}

func (d *CachedDirectory) observe(hit bool) {
	if d.observer != nil {
		d.observer.RecordRoleCacheLookup(hit)
	}
}
