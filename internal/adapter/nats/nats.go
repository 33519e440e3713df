// Package nats implements the audit sink port using NATS JetStream, for
// shipping tenant-boundary security events to an external SIEM pipeline.
package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/firmsync/tenantcore/internal/domain/audit"
)

// Sink publishes audit events to a JetStream stream.
type Sink struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	stream string
}

// Connect establishes a connection to NATS and ensures the audit stream exists.
func Connect(ctx context.Context, url, stream string) (*Sink, error) {
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream init: %w", err)
	}

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     stream,
		Subjects: []string{"audit.>"},
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream stream create: %w", err)
	}

	slog.Info("audit stream connected", "url", url, "stream", stream)
	return &Sink{nc: nc, js: js, stream: stream}, nil
}

// Record publishes one audit event. The subject encodes the decision so
// consumers can subscribe to denials only.
func (s *Sink) Record(ctx context.Context, ev audit.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}

	subject := "audit.tenant_access." + string(ev.Decision)
	if _, err := s.js.Publish(ctx, subject, data); err != nil {
		return fmt.Errorf("publish audit event: %w", err)
	}
	return nil
}

// Close shuts down the NATS connection.
func (s *Sink) Close() error {
	s.nc.Close()
	return nil
}
