package dbaas

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/firmsync/tenantcore/internal/config"
)

func testConfig(url string) config.Provisioner {
	return config.Provisioner{
		URL:                url,
		APIKey:             "test-key",
		Timeout:            5 * time.Second,
		BreakerMaxFailures: 3,
		BreakerTimeout:     time.Second,
	}
}

func TestCreateDatabase(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/databases" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}

		var req map[string]string
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req["name"] != "firm_acme-legal" {
			t.Errorf("name = %q, want firm_acme-legal", req["name"])
		}

		_ = json.NewEncoder(w).Encode(map[string]string{
			"host":              "db-7.provider.internal",
			"database":          "firm_acme_legal",
			"connection_string": "postgres://u:p@db-7.provider.internal:5432/firm_acme_legal",
		})
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL))
	db, err := c.CreateDatabase(context.Background(), "acme-legal")
	if err != nil {
		t.Fatalf("CreateDatabase: %v", err)
	}
	if db.Host != "db-7.provider.internal" {
		t.Errorf("Host = %s", db.Host)
	}
	if db.ConnString == "" {
		t.Error("empty conn string")
	}
}

func TestCreateDatabaseAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":"quota exceeded"}`, http.StatusPaymentRequired)
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL))
	if _, err := c.CreateDatabase(context.Background(), "acme"); err == nil {
		t.Fatal("expected error from 402 response")
	}
}

func TestCreateDatabaseMissingConnString(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"host": "h", "database": "d"})
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL))
	if _, err := c.CreateDatabase(context.Background(), "acme"); err == nil {
		t.Fatal("expected error when connection string absent")
	}
}

func TestBreakerOpensAfterFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL))
	ctx := context.Background()
	for range 3 {
		_, _ = c.CreateDatabase(ctx, "acme")
	}

	// Circuit is now open; the next call fails fast without reaching the server.
	_, err := c.CreateDatabase(ctx, "acme")
	if err == nil {
		t.Fatal("expected breaker error")
	}
}
