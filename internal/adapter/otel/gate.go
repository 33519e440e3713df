package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// GateMetrics adapts Metrics to the tenant gate's decision callbacks.
type GateMetrics struct {
	m *Metrics
}

// NewGateMetrics wraps m. A nil m yields a recorder that drops everything.
func NewGateMetrics(m *Metrics) *GateMetrics {
	return &GateMetrics{m: m}
}

// AccessGranted records a granted gate decision.
func (g *GateMetrics) AccessGranted(ctx context.Context, adminAccess bool) {
	if g.m == nil {
		return
	}
	g.m.AccessGranted.Add(ctx, 1, metric.WithAttributes(attribute.Bool("admin_access", adminAccess)))
	if adminAccess {
		g.m.GhostAccess.Add(ctx, 1)
	}
}

// AccessDenied records a denied gate decision with its reason code.
func (g *GateMetrics) AccessDenied(ctx context.Context, code string) {
	if g.m == nil {
		return
	}
	g.m.AccessDenied.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", code)))
}
