package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/firmsync/tenantcore/internal/logger"
)

func runRequestID(t *testing.T, incoming string) (ctxID string, headerID string) {
	t.Helper()
	h := RequestID(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		ctxID = logger.RequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	if incoming != "" {
		req.Header.Set("X-Request-ID", incoming)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return ctxID, rec.Header().Get("X-Request-ID")
}

func TestRequestIDGeneratesUUIDWhenAbsent(t *testing.T) {
	ctxID, headerID := runRequestID(t, "")
	if ctxID == "" || ctxID != headerID {
		t.Fatalf("context id %q and header id %q must match and be set", ctxID, headerID)
	}
	if _, err := uuid.Parse(ctxID); err != nil {
		t.Errorf("generated id %q is not a UUID: %v", ctxID, err)
	}
}

func TestRequestIDKeepsCallerSuppliedID(t *testing.T) {
	ctxID, headerID := runRequestID(t, "trace-4411")
	if ctxID != "trace-4411" {
		t.Errorf("context id = %q, want the caller's id", ctxID)
	}
	if headerID != "trace-4411" {
		t.Errorf("header id = %q, want the caller's id echoed back", headerID)
	}
}
