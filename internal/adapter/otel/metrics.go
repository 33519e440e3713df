package otel

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "firmsync"

// Metrics holds all FirmSync metric instruments.
type Metrics struct {
	AccessGranted       metric.Int64Counter
	AccessDenied        metric.Int64Counter
	GhostAccess         metric.Int64Counter
	TenantPoolsOpen     metric.Int64UpDownCounter
	ProvisionDuration   metric.Float64Histogram
	FleetMigrationFirms metric.Int64Counter
}

// NewMetrics creates all metric instruments.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.AccessGranted, err = meter.Int64Counter("firmsync.tenant.access_granted",
		metric.WithDescription("Tenant gate decisions that granted access"))
	if err != nil {
		return nil, err
	}

	m.AccessDenied, err = meter.Int64Counter("firmsync.tenant.access_denied",
		metric.WithDescription("Tenant gate decisions that denied access"))
	if err != nil {
		return nil, err
	}

	m.GhostAccess, err = meter.Int64Counter("firmsync.tenant.ghost_access",
		metric.WithDescription("Cross-firm admin requests granted via ghost session"))
	if err != nil {
		return nil, err
	}

	m.TenantPoolsOpen, err = meter.Int64UpDownCounter("firmsync.pools.open",
		metric.WithDescription("Per-firm connection pools currently cached"))
	if err != nil {
		return nil, err
	}

	m.ProvisionDuration, err = meter.Float64Histogram("firmsync.provision.duration_seconds",
		metric.WithDescription("Firm database provisioning duration in seconds"))
	if err != nil {
		return nil, err
	}

	m.FleetMigrationFirms, err = meter.Int64Counter("firmsync.migrations.firms",
		metric.WithDescription("Per-firm fleet migration attempts"))
	if err != nil {
		return nil, err
	}

	return m, nil
}
