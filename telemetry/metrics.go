package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "hrms-service"

// Metrics counts domain events. A nil *Metrics records nothing.
type Metrics struct {
	logins    metric.Int64Counter
	checkIns  metric.Int64Counter
	checkOuts metric.Int64Counter
}

// NewMetrics registers counters on the global meter provider, so call it
// after Init.
func NewMetrics() (*Metrics, error) {
	return newMetrics(otel.Meter(meterName))
}

func newMetrics(meter metric.Meter) (*Metrics, error) {
	logins, err := meter.Int64Counter("hrms.auth.logins",
		metric.WithDescription("Login attempts by outcome"))
	if err != nil {
		return nil, fmt.Errorf("logins counter: %w", err)
	}
	checkIns, err := meter.Int64Counter("hrms.attendance.check_ins",
		metric.WithDescription("Successful check-ins"))
	if err != nil {
		return nil, fmt.Errorf("check-ins counter: %w", err)
	}
	checkOuts, err := meter.Int64Counter("hrms.attendance.check_outs",
		metric.WithDescription("Successful check-outs"))
	if err != nil {
		return nil, fmt.Errorf("check-outs counter: %w", err)
	}
	return &Metrics{logins: logins, checkIns: checkIns, checkOuts: checkOuts}, nil
}

func (m *Metrics) RecordLogin(ctx context.Context, success bool) {
	if m == nil {
		return
	}
	m.logins.Add(ctx, 1, metric.WithAttributes(attribute.Bool("success", success)))
}

func (m *Metrics) RecordCheckIn(ctx context.Context, created bool) {
	if m == nil {
		return
	}
	m.checkIns.Add(ctx, 1, metric.WithAttributes(attribute.Bool("created", created)))
}

func (m *Metrics) RecordCheckOut(ctx context.Context) {
	if m == nil {
		return
	}
	m.checkOuts.Add(ctx, 1)
}
