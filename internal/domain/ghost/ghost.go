// Package ghost defines the ghost session domain model: a time-boxed,
// explicitly granted capability letting a platform admin act within one
// firm's scope for support purposes.
package ghost

import (
	"fmt"
	"strings"
	"time"

	"github.com/firmsync/tenantcore/internal/domain"
)

// Session represents a cross-firm impersonation grant. A session authorizes
// exactly one (admin, target firm) pair; a session for firm X never grants
// access to firm Y.
type Session struct {
	ID           string    `json:"id"`
	AdminID      string    `json:"admin_id"`
	TargetFirmID string    `json:"target_firm_id"`
	Reason       string    `json:"reason,omitempty"`
	Active       bool      `json:"active"`
	StartedAt    time.Time `json:"started_at"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// ActiveAt reports whether the session grants access at the given instant.
// An expired-but-not-yet-cleaned-up row must never grant access, so the
// expiry is checked here rather than trusting the Active flag alone.
func (s *Session) ActiveAt(now time.Time) bool {
	return s.Active && now.Before(s.ExpiresAt)
}

// StartRequest is the input for starting a ghost session. AdminID is filled
// from the authenticated principal, never from the request body.
type StartRequest struct {
	AdminID      string `json:"-"`
	TargetFirmID string `json:"target_firm_id"`
	Reason       string `json:"reason"`
}

// Validate checks that the StartRequest has all required fields.
func (r *StartRequest) Validate() error {
	if r.AdminID == "" {
		return fmt.Errorf("%w: admin id is required", domain.ErrValidation)
	}
	if r.TargetFirmID == "" {
		return fmt.Errorf("%w: target firm id is required", domain.ErrValidation)
	}
	if strings.TrimSpace(r.Reason) == "" {
		return fmt.Errorf("%w: a reason is required to start a ghost session", domain.ErrValidation)
	}
	return nil
}
