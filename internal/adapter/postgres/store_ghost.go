package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/firmsync/tenantcore/internal/domain/ghost"
)

// StartGhostSession deactivates any existing session for the (admin, firm)
// pair and inserts a fresh one, atomically. At most one session per pair is
// ever active.
func (s *Store) StartGhostSession(ctx context.Context, adminID, targetFirmID, reason string, ttl time.Duration) (*ghost.Session, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("start ghost session: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx,
		`UPDATE ghost_sessions SET active = false
		 WHERE admin_id = $1 AND target_firm_id = $2 AND active`,
		adminID, targetFirmID)
	if err != nil {
		return nil, fmt.Errorf("start ghost session: supersede: %w", err)
	}

	var g ghost.Session
	err = tx.QueryRow(ctx,
		`INSERT INTO ghost_sessions (admin_id, target_firm_id, reason, active, expires_at)
		 VALUES ($1, $2, $3, true, $4)
		 RETURNING id, admin_id, target_firm_id, coalesce(reason, ''), active, started_at, expires_at`,
		adminID, targetFirmID, reason, time.Now().UTC().Add(ttl),
	).Scan(&g.ID, &g.AdminID, &g.TargetFirmID, &g.Reason, &g.Active, &g.StartedAt, &g.ExpiresAt)
	if err != nil {
		return nil, translateErr("start ghost session", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("start ghost session: commit: %w", err)
	}
	return &g, nil
}

func (s *Store) EndGhostSession(ctx context.Context, adminID, targetFirmID string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE ghost_sessions SET active = false
		 WHERE admin_id = $1 AND target_firm_id = $2 AND active`,
		adminID, targetFirmID)
	if err != nil {
		return fmt.Errorf("end ghost session: %w", err)
	}
	return nil
}

// EndGhostSessionsForAdmin deactivates every session of one admin, the
// logout hook.
func (s *Store) EndGhostSessionsForAdmin(ctx context.Context, adminID string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE ghost_sessions SET active = false WHERE admin_id = $1 AND active`,
		adminID)
	if err != nil {
		return fmt.Errorf("end ghost sessions for admin: %w", err)
	}
	return nil
}

// ListActiveGhostSessions returns sessions that are both flagged active and
// unexpired. Expiry is filtered in SQL so stale rows never reach the gate.
func (s *Store) ListActiveGhostSessions(ctx context.Context, adminID string) ([]ghost.Session, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, admin_id, target_firm_id, coalesce(reason, ''), active, started_at, expires_at
		 FROM ghost_sessions
		 WHERE admin_id = $1 AND active AND expires_at > now()
		 ORDER BY started_at DESC`,
		adminID)
	if err != nil {
		return nil, fmt.Errorf("list ghost sessions: %w", err)
	}
	defer rows.Close()

	var sessions []ghost.Session
	for rows.Next() {
		var g ghost.Session
		if err := rows.Scan(&g.ID, &g.AdminID, &g.TargetFirmID, &g.Reason, &g.Active, &g.StartedAt, &g.ExpiresAt); err != nil {
			return nil, fmt.Errorf("scan ghost session: %w", err)
		}
		sessions = append(sessions, g)
	}
	return sessions, rows.Err()
}
