package service_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/firmsync/tenantcore/internal/domain"
	"github.com/firmsync/tenantcore/internal/domain/firm"
	"github.com/firmsync/tenantcore/internal/domain/ghost"
	"github.com/firmsync/tenantcore/internal/domain/user"
	"github.com/firmsync/tenantcore/internal/port/database"
	"github.com/firmsync/tenantcore/internal/port/provisioner"
	"github.com/firmsync/tenantcore/internal/secrets"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testSealer(t *testing.T) *secrets.Sealer {
	t.Helper()
	key := base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{7}, 32))
	s, err := secrets.NewSealer(key)
	if err != nil {
		t.Fatalf("new sealer: %v", err)
	}
	return s
}

func seal(t *testing.T, s *secrets.Sealer, plain string) string {
	t.Helper()
	v, err := s.Seal(plain)
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	return v
}

// memStore is an in-memory directory.Store.
type memStore struct {
	mu         sync.Mutex
	firms      map[string]*firm.Firm
	users      map[string]*user.User
	ghosts     []ghost.Session
	migrations []migrationRecord
	nextID     int

	failGetFirm    error
	failListGhosts error
	failStateOnce  map[firm.ProvisionState]error
}

type migrationRecord struct {
	firmID string
	ok     bool
	detail string
}

func newMemStore() *memStore {
	return &memStore{
		firms: map[string]*firm.Firm{},
		users: map[string]*user.User{},
	}
}

func (s *memStore) addFirm(f *firm.Firm) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *f
	s.firms[f.ID] = &cp
}

func (s *memStore) addUser(u *user.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *u
	s.users[u.ID] = &cp
}

func (s *memStore) firmState(t *testing.T, id string) firm.ProvisionState {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.firms[id]
	if !ok {
		t.Fatalf("firm %s not in store", id)
	}
	return f.ProvisionState
}

func (s *memStore) GetFirm(_ context.Context, id string) (*firm.Firm, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failGetFirm != nil {
		return nil, s.failGetFirm
	}
	f, ok := s.firms[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *f
	return &cp, nil
}

func (s *memStore) GetFirmByCode(_ context.Context, code string) (*firm.Firm, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range s.firms {
		if f.Code == code {
			cp := *f
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *memStore) GetUser(_ context.Context, id string) (*user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *memStore) ListActiveGhostSessions(_ context.Context, adminID string) ([]ghost.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failListGhosts != nil {
		return nil, s.failListGhosts
	}
	var out []ghost.Session
	now := time.Now()
	for _, g := range s.ghosts {
		if g.AdminID == adminID && g.Active && now.Before(g.ExpiresAt) {
			out = append(out, g)
		}
	}
	return out, nil
}

func (s *memStore) CreateFirm(_ context.Context, req firm.CreateRequest) (*firm.Firm, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range s.firms {
		if f.Code == req.Code {
			return nil, domain.ErrConflict
		}
	}
	s.nextID++
	f := &firm.Firm{
		ID:             fmt.Sprintf("firm-%d", s.nextID),
		Name:           req.Name,
		Code:           req.Code,
		Status:         firm.StatusActive,
		Plan:           req.Plan,
		ProvisionState: firm.ProvisionUnprovisioned,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}
	s.firms[f.ID] = f
	cp := *f
	return &cp, nil
}

func (s *memStore) ListFirms(_ context.Context) ([]firm.Firm, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]firm.Firm, 0, len(s.firms))
	for _, f := range s.firms {
		out = append(out, *f)
	}
	return out, nil
}

func (s *memStore) ListReadyFirms(_ context.Context) ([]firm.Firm, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []firm.Firm
	for _, f := range s.firms {
		if f.Status == firm.StatusActive && f.ProvisionState == firm.ProvisionReady {
			out = append(out, *f)
		}
	}
	return out, nil
}

func (s *memStore) UpdateFirmStatus(_ context.Context, id string, status firm.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.firms[id]
	if !ok {
		return domain.ErrNotFound
	}
	f.Status = status
	f.UpdatedAt = time.Now()
	return nil
}

func (s *memStore) SetFirmProvisionState(_ context.Context, id string, expect, next firm.ProvisionState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, hit := s.failStateOnce[next]; hit {
		delete(s.failStateOnce, next)
		return err
	}
	f, ok := s.firms[id]
	if !ok {
		return domain.ErrNotFound
	}
	if expect != "" && f.ProvisionState != expect {
		return domain.ErrConflict
	}
	f.ProvisionState = next
	f.UpdatedAt = time.Now()
	return nil
}

func (s *memStore) SetFirmConnection(_ context.Context, id, host, dbName, sealedConnString string, state firm.ProvisionState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.firms[id]
	if !ok {
		return domain.ErrNotFound
	}
	now := time.Now()
	f.DatabaseHost = host
	f.DatabaseName = dbName
	f.ConnString = sealedConnString
	f.ProvisionState = state
	f.ProvisionedAt = &now
	f.UpdatedAt = now
	return nil
}

func (s *memStore) CreateUser(_ context.Context, req user.CreateRequest) (*user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	u := &user.User{
		ID:     fmt.Sprintf("user-%d", s.nextID),
		Email:  req.Email,
		Name:   req.Name,
		Role:   req.Role,
		FirmID: req.FirmID,
	}
	s.users[u.ID] = u
	cp := *u
	return &cp, nil
}

func (s *memStore) StartGhostSession(_ context.Context, adminID, targetFirmID, reason string, ttl time.Duration) (*ghost.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.ghosts {
		if s.ghosts[i].AdminID == adminID && s.ghosts[i].TargetFirmID == targetFirmID {
			s.ghosts[i].Active = false
		}
	}
	s.nextID++
	g := ghost.Session{
		ID:           fmt.Sprintf("ghost-%d", s.nextID),
		AdminID:      adminID,
		TargetFirmID: targetFirmID,
		Reason:       reason,
		Active:       true,
		StartedAt:    time.Now(),
		ExpiresAt:    time.Now().Add(ttl),
	}
	s.ghosts = append(s.ghosts, g)
	cp := g
	return &cp, nil
}

func (s *memStore) EndGhostSession(_ context.Context, adminID, targetFirmID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.ghosts {
		if s.ghosts[i].AdminID == adminID && s.ghosts[i].TargetFirmID == targetFirmID {
			s.ghosts[i].Active = false
		}
	}
	return nil
}

func (s *memStore) EndGhostSessionsForAdmin(_ context.Context, adminID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.ghosts {
		if s.ghosts[i].AdminID == adminID {
			s.ghosts[i].Active = false
		}
	}
	return nil
}

func (s *memStore) RecordFirmMigration(_ context.Context, firmID string, ok bool, detail string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.migrations = append(s.migrations, migrationRecord{firmID: firmID, ok: ok, detail: detail})
	return nil
}

// fakePool is an in-memory database.TenantPool that records the DSN it was
// dialed with.
type fakePool struct {
	dsn    string
	mu     sync.Mutex
	closed bool
	rows   []map[string]any
	lastQ  string
	args   []any
}

func (p *fakePool) Query(_ context.Context, sql string, args ...any) ([]map[string]any, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastQ = sql
	p.args = args
	return p.rows, nil
}

func (p *fakePool) Exec(_ context.Context, sql string, args ...any) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastQ = sql
	p.args = args
	return 1, nil
}

func (p *fakePool) Ping(context.Context) error { return nil }

func (p *fakePool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
}

// fakeDialer counts dials per DSN and hands out fakePools.
type fakeDialer struct {
	mu    sync.Mutex
	dials int
	pools []*fakePool
	err   error
	delay time.Duration
}

func (d *fakeDialer) dial(_ context.Context, dsn string) (database.TenantPool, error) {
	if d.delay > 0 {
		time.Sleep(d.delay)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return nil, d.err
	}
	d.dials++
	p := &fakePool{dsn: dsn}
	d.pools = append(d.pools, p)
	return p, nil
}

// fakeProvisioner implements provisioner.Provisioner.
type fakeProvisioner struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (p *fakeProvisioner) CreateDatabase(_ context.Context, firmCode string) (*provisioner.Database, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	name := "firm_" + firmCode
	return &provisioner.Database{
		Host:       "db-7.firmsync.internal",
		Name:       name,
		ConnString: "postgres://svc:pw@db-7.firmsync.internal:5432/" + name,
	}, nil
}
