// Package audit defines the port interface for the security audit sink.
package audit

import (
	"context"

	"github.com/firmsync/tenantcore/internal/domain/audit"
)

// Sink receives tenant-boundary access events. Implementations must be safe
// for concurrent use. A sink failure must never fail the request that
// produced the event.
type Sink interface {
	Record(ctx context.Context, ev audit.Event) error
}
