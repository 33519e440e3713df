package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"github.com/firmsync/tenantcore/internal/adapter/otel"
	"github.com/firmsync/tenantcore/internal/domain"
	"github.com/firmsync/tenantcore/internal/domain/firm"
	"github.com/firmsync/tenantcore/internal/port/database"
	"github.com/firmsync/tenantcore/internal/port/directory"
	"github.com/firmsync/tenantcore/internal/port/provisioner"
	"github.com/firmsync/tenantcore/internal/secrets"
)

// ConnectionManager owns the per-firm connection pools. Each firm's physical
// database gets at most one pool per process; pools are created lazily on
// first access and live until CloseAll.
type ConnectionManager struct {
	store   directory.Store
	dial    database.Dialer
	migrate database.Migrator
	prov    provisioner.Provisioner
	sealer  *secrets.Sealer
	log     *slog.Logger
	metrics *otel.Metrics

	maxParallelMigrations int64

	mu    sync.RWMutex
	pools map[string]database.TenantPool
	group singleflight.Group
}

// NewConnectionManager wires the manager. metrics may be nil.
func NewConnectionManager(
	store directory.Store,
	dial database.Dialer,
	migrate database.Migrator,
	prov provisioner.Provisioner,
	sealer *secrets.Sealer,
	maxParallelMigrations int,
	log *slog.Logger,
	metrics *otel.Metrics,
) *ConnectionManager {
	if maxParallelMigrations < 1 {
		maxParallelMigrations = 1
	}
	return &ConnectionManager{
		store:                 store,
		dial:                  dial,
		migrate:               migrate,
		prov:                  prov,
		sealer:                sealer,
		log:                   log,
		metrics:               metrics,
		maxParallelMigrations: int64(maxParallelMigrations),
		pools:                 make(map[string]database.TenantPool),
	}
}

// GetTenantConnection returns the pool for the firm's database, creating it
// on first use. Concurrent first requests for the same firm share a single
// dial via singleflight; losers receive the winner's pool.
func (m *ConnectionManager) GetTenantConnection(ctx context.Context, firmID string) (database.TenantPool, error) {
	m.mu.RLock()
	pool, ok := m.pools[firmID]
	m.mu.RUnlock()
	if ok {
		return pool, nil
	}

	v, err, _ := m.group.Do(firmID, func() (any, error) {
		// Re-check under the group: a previous winner may have filled the map
		// between our miss and this call.
		m.mu.RLock()
		existing, ok := m.pools[firmID]
		m.mu.RUnlock()
		if ok {
			return existing, nil
		}

		created, err := m.openPool(ctx, firmID)
		if err != nil {
			return nil, err
		}

		m.mu.Lock()
		m.pools[firmID] = created
		m.mu.Unlock()

		if m.metrics != nil {
			m.metrics.TenantPoolsOpen.Add(ctx, 1)
		}
		m.log.Info("tenant pool opened", "firm_id", firmID)
		return created, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(database.TenantPool), nil
}

// openPool resolves the firm, verifies it may be served, and dials its
// database. All checks run before the dial so a bad firm never costs a
// connection attempt.
func (m *ConnectionManager) openPool(ctx context.Context, firmID string) (database.TenantPool, error) {
	f, err := m.store.GetFirm(ctx, firmID)
	if err != nil {
		return nil, fmt.Errorf("firm %s: %w", firmID, err)
	}
	switch f.Status {
	case firm.StatusActive:
	case firm.StatusSuspended:
		return nil, fmt.Errorf("firm %s: %w", firmID, domain.ErrFirmSuspended)
	default:
		return nil, fmt.Errorf("firm %s: %w", firmID, domain.ErrFirmInactive)
	}
	if f.ProvisionState != firm.ProvisionReady {
		return nil, fmt.Errorf("firm %s in state %s: %w", firmID, f.ProvisionState, domain.ErrNotProvisioned)
	}

	dsn, err := m.sealer.Open(f.ConnString)
	if err != nil {
		return nil, fmt.Errorf("unseal connection string for firm %s: %w", firmID, err)
	}

	pool, err := m.dial(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("dial firm %s database: %w", firmID, err)
	}
	return pool, nil
}

// ProvisionFirmDatabase creates, migrates, and activates the physical
// database for a firm. The persisted provisioning state guards every
// transition: a concurrent or repeated call on a pending or ready firm
// fails with domain.ErrConflict, while a firm stranded in created or
// migrated (a crash or a transient store error after the database already
// exists) is resumed from where it stopped instead of being re-created.
func (m *ConnectionManager) ProvisionFirmDatabase(ctx context.Context, firmID string) (*firm.Firm, error) {
	start := time.Now()

	f, err := m.store.GetFirm(ctx, firmID)
	if err != nil {
		return nil, fmt.Errorf("firm %s: %w", firmID, err)
	}

	state := f.ProvisionState
	var dsn string

	switch state {
	case firm.ProvisionUnprovisioned, firm.ProvisionFailed:
		// Claim the firm. Losing the claim means another provisioner got
		// here first.
		if err := m.store.SetFirmProvisionState(ctx, firmID, state, firm.ProvisionPending); err != nil {
			return nil, fmt.Errorf("claim provisioning of firm %s: %w", firmID, err)
		}

		m.log.Info("provisioning firm database", "firm_id", firmID, "firm_code", f.Code)

		db, err := m.prov.CreateDatabase(ctx, f.Code)
		if err != nil {
			m.failProvision(ctx, firmID, firm.ProvisionPending)
			return nil, fmt.Errorf("create database for firm %s: %w", firmID, err)
		}

		sealed, err := m.sealer.Seal(db.ConnString)
		if err != nil {
			m.failProvision(ctx, firmID, firm.ProvisionPending)
			return nil, fmt.Errorf("seal connection string for firm %s: %w", firmID, err)
		}

		// Coordinates and state land in one statement. A failure after
		// this point leaves a resumable created/migrated firm, never
		// half-written coordinates.
		if err := m.store.SetFirmConnection(ctx, firmID, db.Host, db.Name, sealed, firm.ProvisionCreated); err != nil {
			m.failProvision(ctx, firmID, firm.ProvisionPending)
			return nil, fmt.Errorf("store connection for firm %s: %w", firmID, err)
		}
		dsn = db.ConnString
		state = firm.ProvisionCreated

	case firm.ProvisionCreated, firm.ProvisionMigrated:
		// The database exists and its coordinates are stored; pick up
		// from the step that did not complete.
		m.log.Info("resuming firm provisioning", "firm_id", firmID, "firm_code", f.Code, "state", state)
		dsn, err = m.sealer.Open(f.ConnString)
		if err != nil {
			return nil, fmt.Errorf("unseal connection string for firm %s: %w", firmID, err)
		}

	default:
		return nil, fmt.Errorf("firm %s already in state %s: %w", firmID, state, domain.ErrConflict)
	}

	if state == firm.ProvisionCreated {
		if err := m.migrate(ctx, dsn); err != nil {
			m.failProvision(ctx, firmID, firm.ProvisionCreated)
			return nil, fmt.Errorf("baseline schema for firm %s: %w", firmID, err)
		}
		// A failure on this write keeps the firm in created; the next
		// call resumes by re-running the idempotent baseline.
		if err := m.store.SetFirmProvisionState(ctx, firmID, firm.ProvisionCreated, firm.ProvisionMigrated); err != nil {
			return nil, fmt.Errorf("record migration of firm %s: %w", firmID, err)
		}
	}

	if err := m.store.SetFirmProvisionState(ctx, firmID, firm.ProvisionMigrated, firm.ProvisionReady); err != nil {
		return nil, fmt.Errorf("activate firm %s: %w", firmID, err)
	}

	if m.metrics != nil {
		m.metrics.ProvisionDuration.Record(ctx, time.Since(start).Seconds())
	}

	ready, err := m.store.GetFirm(ctx, firmID)
	if err != nil {
		return nil, fmt.Errorf("firm %s: %w", firmID, err)
	}
	m.log.Info("firm database provisioned",
		"firm_id", firmID,
		"firm_code", ready.Code,
		"database", ready.DatabaseName,
		"duration", time.Since(start),
	)
	return ready, nil
}

func (m *ConnectionManager) failProvision(ctx context.Context, firmID string, from firm.ProvisionState) {
	if err := m.store.SetFirmProvisionState(ctx, firmID, from, firm.ProvisionFailed); err != nil {
		m.log.Error("marking firm provisioning failed", "firm_id", firmID, "error", err)
	}
}

// FleetMigrationResult summarizes a fleet-wide migration run.
type FleetMigrationResult struct {
	Total     int               `json:"total"`
	Succeeded int               `json:"succeeded"`
	Failed    int               `json:"failed"`
	Failures  map[string]string `json:"failures,omitempty"`
}

// RunMigrationOnAllFirms applies pending tenant schema migrations to every
// ready firm, at most maxParallelMigrations at a time. One firm's failure
// never stops the rest; each outcome is recorded in the central store.
func (m *ConnectionManager) RunMigrationOnAllFirms(ctx context.Context) (*FleetMigrationResult, error) {
	firms, err := m.store.ListReadyFirms(ctx)
	if err != nil {
		return nil, fmt.Errorf("list ready firms: %w", err)
	}

	result := &FleetMigrationResult{Total: len(firms), Failures: map[string]string{}}
	var resMu sync.Mutex

	sem := semaphore.NewWeighted(m.maxParallelMigrations)
	var wg sync.WaitGroup

	for i := range firms {
		f := firms[i]
		if err := sem.Acquire(ctx, 1); err != nil {
			return nil, fmt.Errorf("fleet migration interrupted: %w", err)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)

			err := m.migrateFirm(ctx, &f)

			resMu.Lock()
			if err != nil {
				result.Failed++
				result.Failures[f.Code] = err.Error()
			} else {
				result.Succeeded++
			}
			resMu.Unlock()

			if m.metrics != nil {
				m.metrics.FleetMigrationFirms.Add(ctx, 1,
					metric.WithAttributes(attribute.Bool("ok", err == nil)))
			}
		}()
	}
	wg.Wait()

	m.log.Info("fleet migration finished",
		"total", result.Total,
		"succeeded", result.Succeeded,
		"failed", result.Failed,
	)
	return result, nil
}

func (m *ConnectionManager) migrateFirm(ctx context.Context, f *firm.Firm) error {
	dsn, err := m.sealer.Open(f.ConnString)
	if err != nil {
		err = fmt.Errorf("unseal connection string: %w", err)
		m.recordMigration(ctx, f, err)
		return err
	}

	if err := m.migrate(ctx, dsn); err != nil {
		m.log.Error("firm migration failed", "firm_id", f.ID, "firm_code", f.Code, "error", err)
		m.recordMigration(ctx, f, err)
		return err
	}

	m.recordMigration(ctx, f, nil)
	return nil
}

func (m *ConnectionManager) recordMigration(ctx context.Context, f *firm.Firm, migErr error) {
	detail := ""
	if migErr != nil {
		detail = migErr.Error()
	}
	if err := m.store.RecordFirmMigration(ctx, f.ID, migErr == nil, detail); err != nil {
		m.log.Error("recording firm migration", "firm_id", f.ID, "error", err)
	}
}

// CloseAll closes every cached pool. Called once during shutdown.
func (m *ConnectionManager) CloseAll() {
	m.mu.Lock()
	pools := m.pools
	m.pools = make(map[string]database.TenantPool)
	m.mu.Unlock()

	for firmID, pool := range pools {
		pool.Close()
		m.log.Debug("tenant pool closed", "firm_id", firmID)
	}
	if m.metrics != nil && len(pools) > 0 {
		m.metrics.TenantPoolsOpen.Add(context.Background(), -int64(len(pools)))
	}
}
