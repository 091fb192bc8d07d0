package kafka

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubGroupSession struct {
	ctx    context.Context
	marked []*sarama.ConsumerMessage
}

func (s *stubGroupSession) Claims() map[string][]int32              { return nil }
func (s *stubGroupSession) MemberID() string                        { return "member-1" }
func (s *stubGroupSession) GenerationID() int32                     { return 1 }
func (s *stubGroupSession) MarkOffset(string, int32, int64, string) {}
func (s *stubGroupSession) Commit()                                 {}

func (s *stubGroupSession) ResetOffset(string, int32, int64, string) {}

func (s *stubGroupSession) MarkMessage(msg *sarama.ConsumerMessage, _ string) {
	s.marked = append(s.marked, msg)
}

func (s *stubGroupSession) Context() context.Context { return s.ctx }

type stubGroupClaim struct {
	messages chan *sarama.ConsumerMessage
}

func (c *stubGroupClaim) Topic() string                            { return "booking-events" }
func (c *stubGroupClaim) Partition() int32                         { return 0 }
func (c *stubGroupClaim) InitialOffset() int64                     { return 0 }
func (c *stubGroupClaim) HighWaterMarkOffset() int64               { return 0 }
func (c *stubGroupClaim) Messages() <-chan *sarama.ConsumerMessage { return c.messages }

func newConsumerMessage(offset int64) *sarama.ConsumerMessage {
	return &sarama.ConsumerMessage{
		Topic:     "booking-events",
		Partition: 0,
		Offset:    offset,
		Key:       []byte("b-1"),
		Value:     []byte(`{"eventType":"BookingCreated"}`),
		Headers: []*sarama.RecordHeader{
			{Key: []byte("event_type"), Value: []byte("BookingCreated")},
		},
		Timestamp: time.Now(),
	}
}

func TestConsumeClaimMarksProcessedMessages(t *testing.T) {
	session := &stubGroupSession{ctx: context.Background()}
	claim := &stubGroupClaim{messages: make(chan *sarama.ConsumerMessage, 2)}
	claim.messages <- newConsumerMessage(1)
	claim.messages <- newConsumerMessage(2)
	close(claim.messages)

	var handled []*Message
	groupHandler := &consumerGroupHandler{
		handler: func(_ context.Context, message *Message) error {
			handled = append(handled, message)
			return nil
		},
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	require.NoError(t, groupHandler.ConsumeClaim(session, claim))

	require.Len(t, handled, 2)
	assert.Equal(t, "booking-events", handled[0].Topic)
	assert.Equal(t, "b-1", handled[0].Key)
	assert.Equal(t, "BookingCreated", handled[0].Headers["event_type"])

	require.Len(t, session.marked, 2)
	assert.Equal(t, int64(1), session.marked[0].Offset)
	assert.Equal(t, int64(2), session.marked[1].Offset)
}

func TestConsumeClaimLeavesFailedMessagesUnmarked(t *testing.T) {
	session := &stubGroupSession{ctx: context.Background()}
	claim := &stubGroupClaim{messages: make(chan *sarama.ConsumerMessage, 1)}
	claim.messages <- newConsumerMessage(1)
	close(claim.messages)

	handlerErr := errors.New("version conflict")
	groupHandler := &consumerGroupHandler{
		handler: func(context.Context, *Message) error { return handlerErr },
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	err := groupHandler.ConsumeClaim(session, claim)
	require.ErrorIs(t, err, handlerErr)

	// The offset stays uncommitted so the broker redelivers the message.
	assert.Empty(t, session.marked)
}

func TestConsumeClaimStopsWhenSessionEnds(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	session := &stubGroupSession{ctx: ctx}
	claim := &stubGroupClaim{messages: make(chan *sarama.ConsumerMessage)}

	groupHandler := &consumerGroupHandler{
		handler: func(context.Context, *Message) error { return nil },
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	require.NoError(t, groupHandler.ConsumeClaim(session, claim))
	assert.Empty(t, session.marked)
}
