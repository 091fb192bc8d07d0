// Package kafka wraps sarama producers and consumer groups behind small
// message-oriented interfaces.
package kafka

import (
	"log/slog"
	"time"

	"github.com/IBM/sarama"

	apperrors "github.com/pdh/booking/internal/errors"
)

// Message is a single record bound for a topic. Key selects the partition so
// records sharing a key keep their relative order.
type Message struct {
	Topic     string
	Key       string
	Value     []byte
	Headers   map[string]string
	Timestamp time.Time
}

// Producer publishes messages synchronously with idempotent delivery.
type Producer struct {
	producer sarama.SyncProducer
	logger   *slog.Logger
}

// NewProducer creates a new Producer connected to the given brokers.
func NewProducer(brokers []string, clientID string, logger *slog.Logger) (*Producer, error) {
	config := sarama.NewConfig()
	config.ClientID = clientID
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5
	config.Producer.Retry.Backoff = 100 * time.Millisecond
	config.Producer.Return.Successes = true
	config.Producer.Return.Errors = true
	config.Producer.Idempotent = true
	config.Net.MaxOpenRequests = 1
	config.Producer.Compression = sarama.CompressionSnappy
	config.Net.DialTimeout = 30 * time.Second
	config.Net.ReadTimeout = 30 * time.Second
	config.Net.WriteTimeout = 30 * time.Second

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, apperrors.Wrap(err, "create kafka producer")
	}

	return &Producer{
		producer: producer,
		logger:   logger,
	}, nil
}

// Publish sends a single message and waits for broker acknowledgement.
func (p *Producer) Publish(message *Message) error {
	msg := &sarama.ProducerMessage{
		Topic:     message.Topic,
		Value:     sarama.ByteEncoder(message.Value),
		Timestamp: message.Timestamp,
	}
	if message.Key != "" {
		msg.Key = sarama.StringEncoder(message.Key)
	}
	for key, value := range message.Headers {
		msg.Headers = append(msg.Headers, sarama.RecordHeader{
			Key:   []byte(key),
			Value: []byte(value),
		})
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		return apperrors.Wrap(err, "publish message")
	}

	p.logger.Debug("message published",
		slog.String("topic", message.Topic),
		slog.Int64("partition", int64(partition)),
		slog.Int64("offset", offset),
	)
	return nil
}

// Close shuts down the underlying producer.
func (p *Producer) Close() error {
	return p.producer.Close()
}
