package orchestrator

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName = "loom.orchestrator"
	meterName  = "loom.orchestrator"
)

// Telemetry is a scaled-down version of the teacher's WorkflowTelemetry: one
// span per Process call plus counters of transitions taken and of step
// failures, instead of the teacher's full run/step/duration metric set — the orchestrator
// has no notion of "run" separate from "task", so there is nothing here to
// aggregate a run-level span over.
type Telemetry struct {
	tracer             trace.Tracer
	transitionsCounter metric.Int64Counter
	failureCounter     metric.Int64Counter
}

// NewTelemetry builds a Telemetry bound to the global otel providers
// (meter/tracer providers are configured by the embedding application; this
// core never calls otel.SetTracerProvider/SetMeterProvider itself).
func NewTelemetry() (*Telemetry, error) {
	t := &Telemetry{tracer: otel.Tracer(tracerName)}

	meter := otel.Meter(meterName)
	var err error
	t.transitionsCounter, err = meter.Int64Counter(
		"loom_orchestrator_transitions_total",
		metric.WithDescription("Total number of transitions taken by the orchestrator"),
		metric.WithUnit("{transition}"),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry: create transitions counter: %w", err)
	}

	t.failureCounter, err = meter.Int64Counter(
		"loom_orchestrator_failures_total",
		metric.WithDescription("Total number of step failures observed by the orchestrator"),
		metric.WithUnit("{failure}"),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry: create failure counter: %w", err)
	}
	return t, nil
}

func (t *Telemetry) startProcessSpan(ctx context.Context, taskID, stepID string) (context.Context, trace.Span) {
	if t == nil {
		return ctx, nil
	}
	return t.tracer.Start(ctx, "orchestrator.process",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("loom.task_id", taskID),
			attribute.String("loom.step_id", stepID),
		),
	)
}

func (t *Telemetry) endProcessSpan(span trace.Span, out Outcome, err error) {
	if t == nil || span == nil {
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetAttributes(
			attribute.String("loom.next_step", out.NextStep),
			attribute.Bool("loom.terminal", out.Terminal),
			attribute.Bool("loom.failed", out.Failed),
		)
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

func (t *Telemetry) recordTransition(ctx context.Context, from, to string) {
	if t == nil {
		return
	}
	t.transitionsCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("loom.from_step", from),
			attribute.String("loom.to_step", to),
		),
	)
}

func (t *Telemetry) recordFailure(ctx context.Context, stepID string) {
	if t == nil {
		return
	}
	t.failureCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("loom.step_id", stepID)))
}
