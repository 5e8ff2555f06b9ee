package service

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/xiaot623/gogo/deskrunner/internal/domain"
)

type runMetrics struct {
	runsStarted        metric.Int64Counter
	runsFinished       metric.Int64Counter
	stepsExecuted      metric.Int64Counter
	approvalsRequested metric.Int64Counter
}

func newRunMetrics(meter metric.Meter, logger *slog.Logger) *runMetrics {
	fallback := noop.NewMeterProvider().Meter(instrumentationName)
	counter := func(name, desc string) metric.Int64Counter {
		c, err := meter.Int64Counter(name, metric.WithDescription(desc))
		if err != nil {
			logger.Warn("failed to create counter", "name", name, "error", err)
			c, _ = fallback.Int64Counter(name)
		}
		return c
	}
	return &runMetrics{
		runsStarted:        counter("deskrunner.runs.started", "Runs whose loop started or resumed"),
		runsFinished:       counter("deskrunner.runs.finished", "Runs that reached a terminal status"),
		stepsExecuted:      counter("deskrunner.steps.executed", "Actions handed to the executor"),
		approvalsRequested: counter("deskrunner.approvals.requested", "Approvals requested by runs"),
	}
}

func (m *runMetrics) runFinished(ctx context.Context, status domain.RunStatus) {
	m.runsFinished.Add(ctx, 1, metric.WithAttributes(attribute.String("status", string(status))))
}

func (m *runMetrics) stepExecuted(ctx context.Context, actionType string, status domain.TimelineStatus) {
	m.stepsExecuted.Add(ctx, 1, metric.WithAttributes(
		attribute.String("type", actionType),
		attribute.String("status", string(status)),
	))
}
