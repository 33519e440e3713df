// Package audit defines the security audit event emitted by the tenant gate.
package audit

import "time"

// Decision is the outcome of a tenant access check.
type Decision string

const (
	DecisionGranted Decision = "granted"
	DecisionDenied  Decision = "denied"
)

// Event is one tenant-boundary access decision. Denied events are security
// alerts; granted cross-firm admin access is flagged with IsAdminAccess.
type Event struct {
	ID              string    `json:"id"`
	Time            time.Time `json:"time"`
	PrincipalID     string    `json:"principal_id"`
	PrincipalEmail  string    `json:"principal_email"`
	PrincipalRole   string    `json:"principal_role"`
	PrincipalFirmID string    `json:"principal_firm_id,omitempty"`
	TargetFirmID    string    `json:"target_firm_id,omitempty"`
	TargetFirmCode  string    `json:"target_firm_code"`
	TargetFirmName  string    `json:"target_firm_name,omitempty"`
	SourceIP        string    `json:"source_ip"`
	URL             string    `json:"url"`
	Decision        Decision  `json:"decision"`
	Reason          string    `json:"reason,omitempty"` // error code on denial
	IsAdminAccess   bool      `json:"is_admin_access"`
}
