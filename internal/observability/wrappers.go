package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jkaninda/mlinzi/internal/trigger"
)

// Interceptor is the trigger interception surface wrapped with observability.
type Interceptor interface {
	Intercept(ctx context.Context, req *trigger.Request) (*trigger.Decision, error)
}

// InstrumentedInterceptor wraps a trigger interceptor with metrics and tracing.
type InstrumentedInterceptor struct {
	inner   Interceptor
	metrics *MetricsCollector
	tracer  trace.Tracer
}

// NewInstrumentedInterceptor wraps an interceptor with observability.
func NewInstrumentedInterceptor(inner Interceptor, metrics *MetricsCollector, ts *TracerSetup) *InstrumentedInterceptor {
	var tracer trace.Tracer
	if ts != nil {
		tracer = ts.Tracer()
	}
	return &InstrumentedInterceptor{
		inner:   inner,
		metrics: metrics,
		tracer:  tracer,
	}
}

func (i *InstrumentedInterceptor) Intercept(ctx context.Context, req *trigger.Request) (*trigger.Decision, error) {
	source := req.Source.String()

	if i.tracer != nil {
		var span trace.Span
		ctx, span = i.tracer.Start(ctx, "trigger.intercept",
			trace.WithAttributes(
				attribute.String("trigger.agent_id", req.AgentID),
				attribute.String("trigger.source", source),
			))
		defer span.End()
	}

	start := time.Now()
	decision, err := i.inner.Intercept(ctx, req)
	duration := time.Since(start).Seconds()

	if err != nil {
		if i.tracer != nil {
			span := trace.SpanFromContext(ctx)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	} else if i.tracer != nil {
		span := trace.SpanFromContext(ctx)
		span.SetAttributes(
			attribute.String("trigger.path", decision.Path.String()),
			attribute.Bool("trigger.execute", decision.Execute),
		)
	}

	if i.metrics != nil {
		i.metrics.InterceptLatency.WithLabelValues(source).Observe(duration)
		if decision != nil {
			i.metrics.TriggersTotal.WithLabelValues(source, decision.Path.String(), decision.Maturity.String()).Inc()
			if decision.Blocked != nil {
				i.metrics.BlockedRecorded.Inc()
			}
			if decision.ProposalID != "" {
				i.metrics.ProposalsCreated.WithLabelValues(proposalKind(decision.Path)).Inc()
			}
			if decision.Session != nil {
				i.metrics.SessionsOpened.Inc()
			}
		}
	}

	return decision, err
}

func proposalKind(p trigger.Path) string {
	if p == trigger.PathTraining {
		return "training"
	}
	return "approval"
}

var _ Interceptor = (*InstrumentedInterceptor)(nil)
