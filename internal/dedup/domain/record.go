// Package domain defines deduplication records used to make at-least-once
// delivery safe for consumers.
package domain

import "time"

// Record marks that a given event has been processed by a given consumer
// scope. Records are append-once: created when processing succeeds and never
// updated, so a later redelivery short-circuits.
type Record struct {
	ConsumerScope string
	EventID       string
	ProcessedAt   time.Time
}

// NewRecord creates a processed marker for the given scope and event.
func NewRecord(consumerScope, eventID string) *Record {
	return &Record{
		ConsumerScope: consumerScope,
		EventID:       eventID,
		ProcessedAt:   time.Now().UTC(),
	}
}
