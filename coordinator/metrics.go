package coordinator

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	gestureTracerName  = "boardsync/coordinator"
	gestureSpanName    = "boardsync.gesture"
	gestureEventName   = "boardsync.gesture.persisted"
	gestureEventDomain = "boardsync"
	observabilityEvent = "observability.event"
)

const (
	outcomeApplied       = "applied"
	outcomeSuperseded    = "superseded"
	outcomeRolledBack    = "rolled-back"
	outcomeRefetchFailed = "refetch-failed"
)

type gestureMetrics struct {
	logger            *log.Logger
	span              trace.Span
	start             time.Time
	mutation          *Mutation
	persistDuration   time.Duration
	reconcileDuration time.Duration
	generation        uint64
}

func newGestureMetrics(ctx context.Context, logger *log.Logger, m *Mutation) (*gestureMetrics, context.Context) {
	ctx, span := otel.Tracer(gestureTracerName).Start(ctx, gestureSpanName, trace.WithSpanKind(trace.SpanKindClient))
	return &gestureMetrics{
		logger:   logger,
		span:     span,
		start:    time.Now(),
		mutation: m,
	}, ctx
}

func (g *gestureMetrics) ObservePersist(d time.Duration) {
	if d <= 0 {
		return
	}
	g.persistDuration = d
}

// ObserveReconcile records the refetch duration and the store generation it
// left behind.
func (g *gestureMetrics) ObserveReconcile(d time.Duration, generation uint64) {
	g.generation = generation
	if d <= 0 {
		return
	}
	g.reconcileDuration = d
}

// Log ends the span and emits one structured event for the gesture.
func (g *gestureMetrics) Log(outcome string, err error) {
	if g == nil {
		return
	}
	severityText, severityNumber := severityForOutcome(outcome)

	attrs := []attribute.KeyValue{
		attribute.String("boardsync.mutation.id", g.mutation.ID),
		attribute.String("boardsync.mutation.op", string(g.mutation.Op)),
		attribute.Int("boardsync.board_id", g.mutation.BoardID),
		attribute.String("boardsync.gesture.outcome", outcome),
		attribute.Float64("boardsync.gesture.total_ms", durationToMillis(time.Since(g.start))),
	}
	if g.mutation.CardID != 0 {
		attrs = append(attrs, attribute.Int("boardsync.card_id", g.mutation.CardID))
	}
	if g.mutation.ColumnID != 0 {
		attrs = append(attrs, attribute.Int("boardsync.column_id", g.mutation.ColumnID))
	}
	if keys := g.mutation.token.Keys(); len(keys) > 0 {
		attrs = append(attrs, attribute.StringSlice("boardsync.mutation.keys", keys))
	}
	if g.generation > 0 {
		attrs = append(attrs, attribute.Int64("boardsync.store.generation", int64(g.generation)))
	}
	if g.persistDuration > 0 {
		attrs = append(attrs, attribute.Float64("boardsync.gesture.persist_ms", durationToMillis(g.persistDuration)))
	}
	if g.reconcileDuration > 0 {
		attrs = append(attrs, attribute.Float64("boardsync.gesture.reconcile_ms", durationToMillis(g.reconcileDuration)))
	}
	if err != nil {
		attrs = append(attrs, attribute.String("error.message", err.Error()))
	}

	g.span.SetAttributes(attrs...)
	eventAttrs := append([]attribute.KeyValue{
		attribute.String("event.name", gestureEventName),
		attribute.String("event.domain", gestureEventDomain),
		attribute.String("severity_text", severityText),
		attribute.Int("severity_number", severityNumber),
	}, attrs...)
	g.span.AddEvent(observabilityEvent, trace.WithAttributes(eventAttrs...))
	if err != nil && outcome != outcomeSuperseded {
		g.span.RecordError(err)
		g.span.SetStatus(codes.Error, err.Error())
	} else {
		g.span.SetStatus(codes.Ok, "")
	}
	spanCtx := g.span.SpanContext()
	g.span.End()

	if g.logger == nil {
		return
	}
	fields := log.Fields{
		"event.name":      gestureEventName,
		"event.domain":    gestureEventDomain,
		"severity_text":   severityText,
		"severity_number": severityNumber,
		"attributes":      attributesToMap(attrs),
	}
	if spanCtx.HasTraceID() {
		fields["trace_id"] = spanCtx.TraceID().String()
	}
	if spanCtx.HasSpanID() {
		fields["span_id"] = spanCtx.SpanID().String()
	}
	g.logger.WithFields(fields).Log(logLevelFor(severityNumber), observabilityEvent)
}

func severityForOutcome(outcome string) (string, int) {
	switch outcome {
	case outcomeApplied:
		return "INFO", 9
	case outcomeSuperseded:
		return "WARN", 13
	default:
		return "ERROR", 17
	}
}

func logLevelFor(severity int) log.Level {
	switch {
	case severity >= 17:
		return log.ErrorLevel
	case severity >= 13:
		return log.WarnLevel
	default:
		return log.InfoLevel
	}
}

func attributesToMap(attrs []attribute.KeyValue) map[string]any {
	out := make(map[string]any, len(attrs))
	for _, kv := range attrs {
		out[string(kv.Key)] = kv.Value.AsInterface()
	}
	return out
}

func durationToMillis(d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(d) / float64(time.Millisecond)
}
