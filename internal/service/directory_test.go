package service_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/firmsync/tenantcore/internal/domain"
	"github.com/firmsync/tenantcore/internal/domain/firm"
	"github.com/firmsync/tenantcore/internal/service"
)

// countingDir wraps memStore and counts firm lookups hitting the store.
type countingDir struct {
	*memStore
	mu      sync.Mutex
	lookups int
}

func (d *countingDir) GetFirm(ctx context.Context, id string) (*firm.Firm, error) {
	d.mu.Lock()
	d.lookups++
	d.mu.Unlock()
	return d.memStore.GetFirm(ctx, id)
}

func (d *countingDir) GetFirmByCode(ctx context.Context, code string) (*firm.Firm, error) {
	d.mu.Lock()
	d.lookups++
	d.mu.Unlock()
	return d.memStore.GetFirmByCode(ctx, code)
}

// memCache is a TTL-less in-memory cache.Cache.
type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemCache() *memCache { return &memCache{data: map[string][]byte{}} }

func (c *memCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *memCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

func (c *memCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

func newDirEnv(t *testing.T) (*service.CachedDirectory, *countingDir, *memCache) {
	t.Helper()
	store := &countingDir{memStore: newMemStore()}
	store.addFirm(&firm.Firm{ID: "firm-1", Code: "acme", Name: "Acme Legal", Status: firm.StatusActive})
	c := newMemCache()
	return service.NewCachedDirectory(store, c, 30*time.Second, testLogger()), store, c
}

func TestCachedDirectoryServesSecondLookupFromCache(t *testing.T) {
	dir, store, _ := newDirEnv(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		f, err := dir.GetFirmByCode(ctx, "acme")
		if err != nil {
			t.Fatalf("lookup %d: %v", i, err)
		}
		if f.ID != "firm-1" {
			t.Fatalf("lookup %d returned firm %s", i, f.ID)
		}
	}

	if store.lookups != 1 {
		t.Errorf("store lookups = %d, want 1", store.lookups)
	}
}

func TestCachedDirectoryNeverCachesConnString(t *testing.T) {
	dir, store, c := newDirEnv(t)
	store.addFirm(&firm.Firm{
		ID: "firm-2", Code: "blackstone", Status: firm.StatusActive,
		ConnString: "sealed-secret-material",
	})
	ctx := context.Background()

	if _, err := dir.GetFirmByCode(ctx, "blackstone"); err != nil {
		t.Fatal(err)
	}

	for key, raw := range c.data {
		if strings.Contains(string(raw), "sealed-secret-material") {
			t.Fatalf("cache entry %s holds the sealed connection string", key)
		}
	}

	// The cached copy consequently has no connection string.
	f, err := dir.GetFirmByCode(ctx, "blackstone")
	if err != nil {
		t.Fatal(err)
	}
	if f.ConnString != "" {
		t.Error("cached firm carries a connection string")
	}
}

func TestCachedDirectoryMissIsNotCached(t *testing.T) {
	dir, store, _ := newDirEnv(t)
	ctx := context.Background()

	if _, err := dir.GetFirmByCode(ctx, "nowhere"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v", err)
	}

	store.addFirm(&firm.Firm{ID: "firm-9", Code: "nowhere", Status: firm.StatusActive})
	f, err := dir.GetFirmByCode(ctx, "nowhere")
	if err != nil {
		t.Fatalf("after create: %v", err)
	}
	if f.ID != "firm-9" {
		t.Errorf("firm = %s", f.ID)
	}
}

func TestCachedDirectoryInvalidate(t *testing.T) {
	dir, store, _ := newDirEnv(t)
	ctx := context.Background()

	f, err := dir.GetFirmByCode(ctx, "acme")
	if err != nil {
		t.Fatal(err)
	}
	if err := store.UpdateFirmStatus(ctx, "firm-1", firm.StatusSuspended); err != nil {
		t.Fatal(err)
	}

	dir.Invalidate(ctx, f)

	got, err := dir.GetFirmByCode(ctx, "acme")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != firm.StatusSuspended {
		t.Errorf("status after invalidation = %s, want suspended", got.Status)
	}
}

func TestCachedDirectoryGhostSessionsBypassCache(t *testing.T) {
	dir, store, _ := newDirEnv(t)
	ctx := context.Background()

	if _, err := store.StartGhostSession(ctx, "admin-1", "firm-1", "support", time.Hour); err != nil {
		t.Fatal(err)
	}
	active, err := dir.ListActiveGhostSessions(ctx, "admin-1")
	if err != nil || len(active) != 1 {
		t.Fatalf("active = %v, err = %v", active, err)
	}

	// Revocation must be visible immediately.
	if err := store.EndGhostSession(ctx, "admin-1", "firm-1"); err != nil {
		t.Fatal(err)
	}
	active, err = dir.ListActiveGhostSessions(ctx, "admin-1")
	if err != nil || len(active) != 0 {
		t.Fatalf("active after revocation = %v, err = %v", active, err)
	}
}

func TestCachedDirectoryNilCache(t *testing.T) {
	store := &countingDir{memStore: newMemStore()}
	store.addFirm(&firm.Firm{ID: "firm-1", Code: "acme", Status: firm.StatusActive})
	dir := service.NewCachedDirectory(store, nil, 0, testLogger())

	for i := 0; i < 2; i++ {
		if _, err := dir.GetFirm(context.Background(), "firm-1"); err != nil {
			t.Fatal(err)
		}
	}
	if store.lookups != 2 {
		t.Errorf("lookups = %d, want pass-through without a cache", store.lookups)
	}
}
