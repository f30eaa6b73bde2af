package operations

import (
	"context"
	"fmt"
	"time"

	"groutflow/internal/infrastructure"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const TracerName = "groutflow.operations"

// OperationTracer provides OpenTelemetry instrumentation for analysis
// runs: one span per run, one child span per step, plus the business
// metric instruments.
type OperationTracer struct {
	tracer          trace.Tracer
	meter           metric.Meter
	businessMetrics *infrastructure.BusinessMetrics
}

// NewOperationTracer creates a tracer backed by the given providers
func NewOperationTracer(providers *infrastructure.OTelProviders) (*OperationTracer, error) {
	businessMetrics, err := infrastructure.CreateBusinessMetrics(providers.Meter)
	if err != nil {
		return nil, fmt.Errorf("create business metrics: %w", err)
	}

	return &OperationTracer{
		tracer:          otel.Tracer(TracerName),
		meter:           providers.Meter,
		businessMetrics: businessMetrics,
	}, nil
}

// BusinessMetrics exposes the metric instruments so other layers can
// record their own measurements against the same meters.
func (t *OperationTracer) BusinessMetrics() *infrastructure.BusinessMetrics {
	return t.businessMetrics
}

// TraceRun starts the span covering an entire analysis run
func (t *OperationTracer) TraceRun(ctx context.Context, operationID, mode string) (context.Context, trace.Span) {
	ctx, span := t.tracer.Start(ctx, fmt.Sprintf("operation.execute.%s", mode),
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("operation.id", operationID),
			attribute.String("operation.mode", mode),
		),
	)

	infrastructure.RecordActiveOperationChange(ctx, t.businessMetrics, 1, mode)
	return ctx, span
}

// RecordRunCompletion closes out the run span and records the run
// metrics in one place.
func (t *OperationTracer) RecordRunCompletion(ctx context.Context, span trace.Span, operationID, mode string, duration time.Duration, err error) {
	success := err == nil
	status := "success"
	if !success {
		status = "failure"
	}

	span.SetAttributes(
		attribute.String("operation.status", status),
		attribute.Float64("operation.duration_seconds", duration.Seconds()),
	)

	infrastructure.RecordOperationMetrics(ctx, t.businessMetrics, operationID, mode, duration, success, err)
	infrastructure.RecordActiveOperationChange(ctx, t.businessMetrics, -1, mode)

	if err != nil {
		if GetErrorType(err) == ErrorTypeCancellation {
			infrastructure.RecordOperationCancellation(ctx, t.businessMetrics, operationID, mode, "context cancelled")
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}
	span.SetStatus(codes.Ok, "analysis completed")
}

// TraceStep starts the span covering one step attempt
func (t *OperationTracer) TraceStep(ctx context.Context, operationID, stepID string) (context.Context, trace.Span) {
	ctx, span := t.tracer.Start(ctx, fmt.Sprintf("operation.step.%s", stepID),
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("operation.id", operationID),
			attribute.String("step.id", stepID),
		),
	)
	return ctx, span
}

// RecordStepCompletion closes out a step span with its metrics
func (t *OperationTracer) RecordStepCompletion(ctx context.Context, span trace.Span, operationID, stepID string, duration time.Duration, err error) {
	success := err == nil
	status := "success"
	if !success {
		status = "failure"
	}

	span.SetAttributes(
		attribute.String("step.status", status),
		attribute.Float64("step.duration_seconds", duration.Seconds()),
	)

	infrastructure.RecordOperationStepMetrics(ctx, t.businessMetrics, operationID, stepID, stepID, duration, success)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}
	span.SetStatus(codes.Ok, "step completed")
}

// startRunSpan opens the run span when a tracer is attached. The
// returned func finishes the span with the final state; without a
// tracer it does nothing.
func (m *Manager) startRunSpan(ctx context.Context, req OperationRequest, mode string) (context.Context, func(state *OperationState, err error)) {
	if m.tracer == nil {
		return ctx, func(*OperationState, error) {}
	}

	ctx, span := m.tracer.TraceRun(ctx, req.ID, mode)
	return ctx, func(state *OperationState, err error) {
		m.tracer.RecordRunCompletion(ctx, span, req.ID, mode, state.Duration(), err)
		span.End()
	}
}

// startStepSpan opens a step span when a tracer is attached
func (m *Manager) startStepSpan(ctx context.Context, operationID, stepID string) (context.Context, func(duration time.Duration, err error)) {
	if m.tracer == nil {
		return ctx, func(time.Duration, error) {}
	}

	ctx, span := m.tracer.TraceStep(ctx, operationID, stepID)
	return ctx, func(duration time.Duration, err error) {
		m.tracer.RecordStepCompletion(ctx, span, operationID, stepID, duration, err)
		span.End()
	}
}
