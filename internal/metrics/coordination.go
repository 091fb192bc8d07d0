package metrics

import (
	"context"
	"time"
)

// CoordinationMetrics records saga, outbox and self-event consumer outcomes
// on top of the generic business metrics. It satisfies the metrics interfaces
// the coordination use cases accept.
type CoordinationMetrics struct {
	business BusinessMetrics
}

// NewCoordinationMetrics creates a new CoordinationMetrics.
func NewCoordinationMetrics(business BusinessMetrics) *CoordinationMetrics {
	return &CoordinationMetrics{business: business}
}

// RecordSagaStarted counts a new saga.
func (c *CoordinationMetrics) RecordSagaStarted(ctx context.Context) {
	c.business.RecordOperation(ctx, "saga", "started", "success")
}

// RecordSagaCompleted counts a saga reaching a terminal state and records
// its total duration.
func (c *CoordinationMetrics) RecordSagaCompleted(ctx context.Context, finalState string, elapsed time.Duration) {
	c.business.RecordOperation(ctx, "saga", "completed", finalState)
	c.business.RecordDuration(ctx, "saga", "completed", elapsed, finalState)
}

// RecordCompensationStarted counts a saga entering the failure branch.
func (c *CoordinationMetrics) RecordCompensationStarted(ctx context.Context, reason string) {
	c.business.RecordOperation(ctx, "saga", "compensation_started", "success")
}

// RecordEventDropped counts an event the orchestrator dropped, by cause.
func (c *CoordinationMetrics) RecordEventDropped(ctx context.Context, cause string) {
	c.business.RecordOperation(ctx, "saga", "event_dropped", cause)
}

// RecordEventPublished counts an outbox event delivered to the broker.
func (c *CoordinationMetrics) RecordEventPublished(ctx context.Context, eventType string) {
	c.business.RecordOperation(ctx, "outbox", "published", "success")
}

// RecordEventFailed counts an outbox event whose retries are exhausted.
func (c *CoordinationMetrics) RecordEventFailed(ctx context.Context, eventType string) {
	c.business.RecordOperation(ctx, "outbox", "published", "failed")
}

// RecordEventsReaped counts expired outbox events deleted by the relay.
func (c *CoordinationMetrics) RecordEventsReaped(ctx context.Context, count int64) {
	for i := int64(0); i < count; i++ {
		c.business.RecordOperation(ctx, "outbox", "reaped", "expired")
	}
}

// RecordFailedBacklog reports the number of outbox events whose retries are
// exhausted and are waiting for manual intervention.
func (c *CoordinationMetrics) RecordFailedBacklog(ctx context.Context, count int64) {
	c.business.RecordGauge(ctx, "outbox", "failed_backlog", count)
}

// RecordSelfEventVerified counts a successfully verified self event.
func (c *CoordinationMetrics) RecordSelfEventVerified(ctx context.Context, eventType string) {
	c.business.RecordOperation(ctx, "selfevent", "verified", "success")
}

// RecordSelfEventUnknown counts a self event of an unrecognized type. A
// non-zero rate here means a producer schema drifted.
func (c *CoordinationMetrics) RecordSelfEventUnknown(ctx context.Context, eventType string) {
	c.business.RecordOperation(ctx, "selfevent", "unknown_type", eventType)
}

// RecordSelfEventEscalated counts a self event that exceeded its attempt cap.
func (c *CoordinationMetrics) RecordSelfEventEscalated(ctx context.Context, eventType string) {
	c.business.RecordOperation(ctx, "selfevent", "escalated", eventType)
}
