// Package middleware provides the HTTP middleware chain for FirmSync,
// including the tenant isolation gate.
package middleware

import (
	"encoding/json"
	"net/http"
)

// Error codes returned by the middleware chain. Clients only ever see these
// coded responses; detail stays in the audit trail and server logs.
const (
	CodeMissingFirmCode       = "MISSING_FIRM_CODE"
	CodeInvalidFirmCodeFormat = "INVALID_FIRM_CODE_FORMAT"
	CodeUnauthenticated       = "UNAUTHENTICATED"
	CodeFirmNotFound          = "FIRM_NOT_FOUND"
	CodeFirmSuspended         = "FIRM_SUSPENDED"
	CodeTenantAccessDenied    = "TENANT_ACCESS_DENIED"
	CodeGhostSessionRequired  = "GHOST_SESSION_REQUIRED"
	CodeTenantValidationError = "TENANT_VALIDATION_ERROR"
	CodeMissingTenantContext  = "MISSING_TENANT_CONTEXT"
	CodeForbidden             = "FORBIDDEN"
)

type codedError struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// writeCoded writes a JSON error body with a stable machine-readable code.
func writeCoded(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(codedError{Error: message, Code: code})
}
