package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/firmsync/tenantcore/internal/domain/firm"
	"github.com/firmsync/tenantcore/internal/domain/ghost"
	"github.com/firmsync/tenantcore/internal/domain/user"
	"github.com/firmsync/tenantcore/internal/port/cache"
	"github.com/firmsync/tenantcore/internal/port/directory"
)

// CachedDirectory fronts the central firm directory with a short-TTL cache
// on the firm lookups that sit on the hot request path. Ghost session and
// user lookups are never cached: access revocation has to take effect
// immediately.
type CachedDirectory struct {
	inner directory.Directory
	cache cache.Cache
	ttl   time.Duration
	log   *slog.Logger
}

// NewCachedDirectory wraps dir with a firm-lookup cache. A nil cache
// disables caching entirely.
func NewCachedDirectory(dir directory.Directory, c cache.Cache, ttl time.Duration, log *slog.Logger) *CachedDirectory {
	return &CachedDirectory{inner: dir, cache: c, ttl: ttl, log: log}
}

func (d *CachedDirectory) GetFirm(ctx context.Context, id string) (*firm.Firm, error) {
	return d.cachedFirm(ctx, "firm:id:"+id, func() (*firm.Firm, error) {
		return d.inner.GetFirm(ctx, id)
	})
}

func (d *CachedDirectory) GetFirmByCode(ctx context.Context, code string) (*firm.Firm, error) {
	return d.cachedFirm(ctx, "firm:code:"+code, func() (*firm.Firm, error) {
		return d.inner.GetFirmByCode(ctx, code)
	})
}

func (d *CachedDirectory) GetUser(ctx context.Context, id string) (*user.User, error) {
	return d.inner.GetUser(ctx, id)
}

func (d *CachedDirectory) ListActiveGhostSessions(ctx context.Context, adminID string) ([]ghost.Session, error) {
	return d.inner.ListActiveGhostSessions(ctx, adminID)
}

// Invalidate drops the cached entries for a firm. Called after any firm
// mutation so status changes propagate within one request, not one TTL.
func (d *CachedDirectory) Invalidate(ctx context.Context, f *firm.Firm) {
	if d.cache == nil || f == nil {
		return
	}
	for _, key := range []string{"firm:id:" + f.ID, "firm:code:" + f.Code} {
		if err := d.cache.Delete(ctx, key); err != nil && d.log != nil {
			d.log.Warn("firm cache invalidation failed", "key", key, "error", err)
		}
	}
}

func (d *CachedDirectory) cachedFirm(ctx context.Context, key string, load func() (*firm.Firm, error)) (*firm.Firm, error) {
	if d.cache == nil {
		return load()
	}

	if raw, ok, err := d.cache.Get(ctx, key); err == nil && ok {
		var f firm.Firm
		if err := json.Unmarshal(raw, &f); err == nil {
			return &f, nil
		}
		// Undecodable entry: fall through to the store and overwrite it.
	}

	f, err := load()
	if err != nil {
		return nil, err
	}

	raw, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("encode firm for cache: %w", err)
	}
	if err := d.cache.Set(ctx, key, raw, d.ttl); err != nil && d.log != nil {
		d.log.Warn("firm cache write failed", "key", key, "error", err)
	}
	return f, nil
}
