// Package firm defines the firm (tenant) domain model for multi-tenancy.
package firm

import (
	"fmt"
	"regexp"
	"time"

	"github.com/firmsync/tenantcore/internal/domain"
)

// Status is the lifecycle status of a firm. Firms are never hard-deleted;
// they transition between statuses instead.
type Status string

const (
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
	StatusInactive  Status = "inactive"
)

// ValidStatuses is the set of all valid firm statuses.
var ValidStatuses = map[Status]bool{
	StatusActive:    true,
	StatusSuspended: true,
	StatusInactive:  true,
}

// Plan is the subscription tier of a firm.
type Plan string

const (
	PlanStarter      Plan = "starter"
	PlanProfessional Plan = "professional"
	PlanEnterprise   Plan = "enterprise"
)

// ProvisionState tracks the per-firm database provisioning state machine:
// unprovisioned -> pending -> created -> migrated -> ready, or failed at any step.
type ProvisionState string

const (
	ProvisionUnprovisioned ProvisionState = "unprovisioned"
	ProvisionPending       ProvisionState = "pending"
	ProvisionCreated       ProvisionState = "created"
	ProvisionMigrated      ProvisionState = "migrated"
	ProvisionReady         ProvisionState = "ready"
	ProvisionFailed        ProvisionState = "failed"
)

// codeRegex restricts firm codes to URL-safe slugs: alphanumeric with interior
// hyphens or underscores, 3-64 characters.
var codeRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{1,62}[A-Za-z0-9]$`)

// ValidateCode reports whether code is a syntactically valid firm code.
func ValidateCode(code string) bool {
	return codeRegex.MatchString(code)
}

// Firm represents one customer law firm, isolated from all others.
// Each ready firm owns a dedicated physical database; ConnString is stored
// encrypted and must never be logged.
type Firm struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	Code           string         `json:"code"`
	Status         Status         `json:"status"`
	Plan           Plan           `json:"plan"`
	DatabaseHost   string         `json:"database_host,omitempty"`
	DatabaseName   string         `json:"database_name,omitempty"`
	ConnString     string         `json:"-"` // encrypted at rest, never serialized
	ProvisionState ProvisionState `json:"provision_state"`
	ProvisionedAt  *time.Time     `json:"provisioned_at,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// CreateRequest holds the fields required to register a new firm.
type CreateRequest struct {
	Name string `json:"name"`
	Code string `json:"code"`
	Plan Plan   `json:"plan"`
}

// Validate checks that the CreateRequest has all required fields.
func (r *CreateRequest) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("%w: firm name is required", domain.ErrValidation)
	}
	if !ValidateCode(r.Code) {
		return fmt.Errorf("%w: invalid firm code %q: must be 3-64 alphanumeric, hyphen or underscore characters", domain.ErrValidation, r.Code)
	}
	switch r.Plan {
	case PlanStarter, PlanProfessional, PlanEnterprise:
	case "":
		r.Plan = PlanStarter
	default:
		return fmt.Errorf("%w: invalid plan %q", domain.ErrValidation, r.Plan)
	}
	return nil
}
