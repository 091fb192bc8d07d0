package cdc

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdh/booking/internal/kafka"
)

type recordingHandler struct {
	creates []*Envelope
	updates []*Envelope
	deletes []*Envelope
	err     error
}

func (h *recordingHandler) HandleCreate(_ context.Context, envelope *Envelope) error {
	h.creates = append(h.creates, envelope)
	return h.err
}

func (h *recordingHandler) HandleUpdate(_ context.Context, envelope *Envelope) error {
	h.updates = append(h.updates, envelope)
	return h.err
}

func (h *recordingHandler) HandleDelete(_ context.Context, envelope *Envelope) error {
	h.deletes = append(h.deletes, envelope)
	return h.err
}

func newTestConsumer(handler Handler) *Consumer {
	return NewConsumer(handler, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestConsumerDispatchesByOperation(t *testing.T) {
	handler := &recordingHandler{}
	consumer := newTestConsumer(handler)

	tests := []struct {
		op   string
		want func() int
	}{
		{"c", func() int { return len(handler.creates) }},
		{"u", func() int { return len(handler.updates) }},
		{"d", func() int { return len(handler.deletes) }},
	}

	for _, tt := range tests {
		err := consumer.Handle(context.Background(), &kafka.Message{
			Topic: "bookings-changelog",
			Key:   "b-1",
			Value: []byte(`{"key":"b-1","op":"` + tt.op + `","payload":{"id":"b-1"}}`),
		})
		require.NoError(t, err)
		assert.Equal(t, 1, tt.want())
	}
}

func TestConsumerFallsBackToMessageKey(t *testing.T) {
	handler := &recordingHandler{}
	consumer := newTestConsumer(handler)

	err := consumer.Handle(context.Background(), &kafka.Message{
		Topic: "bookings-changelog",
		Key:   "from-message",
		Value: []byte(`{"op":"c","payload":{}}`),
	})
	require.NoError(t, err)
	require.Len(t, handler.creates, 1)
	assert.Equal(t, "from-message", handler.creates[0].Key)
}

func TestConsumerSkipsMalformedMessages(t *testing.T) {
	handler := &recordingHandler{}
	consumer := newTestConsumer(handler)

	// Poison messages are dropped, not retried, so the partition advances.
	err := consumer.Handle(context.Background(), &kafka.Message{
		Topic: "bookings-changelog",
		Value: []byte("not json"),
	})
	require.NoError(t, err)
	assert.Empty(t, handler.creates)
}

func TestConsumerSkipsUnknownOperations(t *testing.T) {
	handler := &recordingHandler{}
	consumer := newTestConsumer(handler)

	err := consumer.Handle(context.Background(), &kafka.Message{
		Topic: "bookings-changelog",
		Value: []byte(`{"key":"b-1","op":"r","payload":{}}`),
	})
	require.NoError(t, err)
	assert.Empty(t, handler.creates)
	assert.Empty(t, handler.updates)
	assert.Empty(t, handler.deletes)
}

func TestConsumerPropagatesHandlerErrors(t *testing.T) {
	handler := &recordingHandler{err: errors.New("handler broke")}
	consumer := newTestConsumer(handler)

	err := consumer.Handle(context.Background(), &kafka.Message{
		Topic: "bookings-changelog",
		Value: []byte(`{"key":"b-1","op":"u","payload":{}}`),
	})
	assert.EqualError(t, err, "handler broke")
}
