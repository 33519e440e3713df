// Package user defines the principal domain model for authorization.
package user

import (
	"fmt"
	"net/mail"
	"time"

	"github.com/firmsync/tenantcore/internal/domain"
)

// Role represents the authorization level of a principal.
type Role string

const (
	// Firm-scoped roles.
	RoleParalegal Role = "paralegal"
	RoleAttorney  Role = "attorney"
	RoleFirmAdmin Role = "firm_admin"

	// Platform roles. These may cross firm boundaries, but only through an
	// active ghost session.
	RolePlatformAdmin Role = "platform_admin"
	RoleSuperAdmin    Role = "super_admin"
)

// ValidRoles is the set of all valid roles.
var ValidRoles = map[Role]bool{
	RoleParalegal:     true,
	RoleAttorney:      true,
	RoleFirmAdmin:     true,
	RolePlatformAdmin: true,
	RoleSuperAdmin:    true,
}

// IsPlatformAdmin reports whether the role may cross firm boundaries.
// This is the single canonical admin-role predicate; both the HTTP tenant
// gate and TenantRouter.ValidateAccess must use it so they never drift apart.
func (r Role) IsPlatformAdmin() bool {
	return r == RolePlatformAdmin || r == RoleSuperAdmin
}

// User represents an authenticated principal. FirmID is the principal's home
// firm; it is empty for platform-level principals with no home firm.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      Role      `json:"role"`
	FirmID    string    `json:"firm_id,omitempty"`
	Enabled   bool      `json:"enabled"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreateRequest is the input for registering a new principal.
type CreateRequest struct {
	Email  string `json:"email"`
	Name   string `json:"name"`
	Role   Role   `json:"role"`
	FirmID string `json:"firm_id,omitempty"`
}

// Validate checks that the CreateRequest has all required fields.
func (r *CreateRequest) Validate() error {
	if r.Email == "" {
		return fmt.Errorf("%w: email is required", domain.ErrValidation)
	}
	if _, err := mail.ParseAddress(r.Email); err != nil {
		return fmt.Errorf("%w: invalid email format", domain.ErrValidation)
	}
	if r.Name == "" {
		return fmt.Errorf("%w: name is required", domain.ErrValidation)
	}
	if !ValidRoles[r.Role] {
		return fmt.Errorf("%w: invalid role %q", domain.ErrValidation, r.Role)
	}
	if !r.Role.IsPlatformAdmin() && r.FirmID == "" {
		return fmt.Errorf("%w: firm_id is required for firm-scoped roles", domain.ErrValidation)
	}
	return nil
}
