package logger

import (
	"context"
	"testing"

	"github.com/firmsync/tenantcore/internal/config"
)

func TestNewReturnsUsableLogger(t *testing.T) {
	for _, async := range []bool{false, true} {
		l, closer := New(config.Logging{Level: "debug", Service: "firmsync-test", Async: async})
		if l == nil {
			t.Fatalf("async=%v: nil logger", async)
		}
		l.Info("probe", "k", "v")
		closer.Close()
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]string{
		"debug":   "DEBUG",
		"info":    "INFO",
		"warn":    "WARN",
		"warning": "WARN",
		"error":   "ERROR",
		"":        "INFO",
		"trace":   "INFO", // anything unrecognized falls back to info
	}
	for in, want := range cases {
		if got := parseLevel(in).String(); got != want {
			t.Errorf("parseLevel(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestRequestIDRoundTrip(t *testing.T) {
	ctx := context.Background()
	if got := RequestID(ctx); got != "" {
		t.Errorf("RequestID on a bare context = %q", got)
	}
	ctx = WithRequestID(ctx, "req-4411")
	if got := RequestID(ctx); got != "req-4411" {
		t.Errorf("RequestID = %q, want req-4411", got)
	}
}
