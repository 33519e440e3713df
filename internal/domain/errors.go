// Package domain provides shared domain-level sentinel errors.
package domain

import "errors"

// ErrNotFound indicates the requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict indicates a uniqueness or concurrent modification conflict.
var ErrConflict = errors.New("conflict: resource already exists or was modified")

// ErrValidation indicates invalid caller input.
var ErrValidation = errors.New("validation failed")

// ErrAccessDenied indicates the principal is not a member of the target firm.
var ErrAccessDenied = errors.New("tenant access denied")

// ErrGhostRequired indicates a platform admin attempted cross-firm access
// without an active ghost session for the target firm.
var ErrGhostRequired = errors.New("ghost session required")

// ErrFirmInactive indicates the target firm exists but is inactive.
var ErrFirmInactive = errors.New("firm inactive")

// ErrFirmSuspended indicates the target firm is suspended.
var ErrFirmSuspended = errors.New("firm suspended")

// ErrNotProvisioned indicates the firm's database has not reached the ready state.
var ErrNotProvisioned = errors.New("firm database not provisioned")
