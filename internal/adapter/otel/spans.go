package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "quorumgate"

// StartRunSpan starts a span for an orchestration run.
func StartRunSpan(ctx context.Context, runID, taskID, changeType string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "orchestrate",
		trace.WithAttributes(
			attribute.String("run.id", runID),
			attribute.String("task.id", taskID),
			attribute.String("change.type", changeType),
		),
	)
}

// StartPhaseSpan starts a span for one circuit-breaker-guarded phase.
func StartPhaseSpan(ctx context.Context, op string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "phase",
		trace.WithAttributes(attribute.String("phase.operation", op)),
	)
}

// StartValidationSpan starts a span for one agent execution.
func StartValidationSpan(ctx context.Context, agentID, agentName string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "validation",
		trace.WithAttributes(
			attribute.String("agent.id", agentID),
			attribute.String("agent.name", agentName),
		),
	)
}

// EndSpan records err on the span, if any, and ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
