// Package usecase implements webhook notification fan-out for booking
// lifecycle events.
package usecase

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/pdh/booking/internal/kafka"
)

// Config holds notifier configuration.
type Config struct {
	Endpoints      []string
	Workers        int
	RequestTimeout time.Duration
	RatePerSecond  float64
	RateBurst      int
}

// Delivery is the outcome of one webhook call.
type Delivery struct {
	URL        string
	StatusCode int
	Err        error
	Elapsed    time.Duration
}

// Succeeded reports whether the endpoint acknowledged the notification.
func (d Delivery) Succeeded() bool {
	return d.Err == nil && d.StatusCode >= 200 && d.StatusCode < 300
}

// Notifier fans a booking event out to all configured webhook endpoints with
// a bounded worker pool. One slow or failing endpoint never blocks or aborts
// the others.
type Notifier struct {
	config  Config
	client  *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewNotifier creates a new Notifier.
func NewNotifier(config Config, logger *slog.Logger) *Notifier {
	if config.Workers <= 0 {
		config.Workers = 4
	}
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = 10 * time.Second
	}
	if config.RatePerSecond <= 0 {
		config.RatePerSecond = 50
	}
	if config.RateBurst <= 0 {
		config.RateBurst = int(config.RatePerSecond)
	}

	return &Notifier{
		config:  config,
		client:  &http.Client{Timeout: config.RequestTimeout},
		limiter: rate.NewLimiter(rate.Limit(config.RatePerSecond), config.RateBurst),
		logger:  logger,
	}
}

// Broadcast delivers the payload to every endpoint and returns the per
// endpoint outcomes in endpoint order.
func (n *Notifier) Broadcast(ctx context.Context, eventType string, payload []byte) []Delivery {
	deliveries := make([]Delivery, len(n.config.Endpoints))

	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(n.config.Workers)

	for i, endpoint := range n.config.Endpoints {
		i, endpoint := i, endpoint
		group.Go(func() error {
			deliveries[i] = n.deliver(ctx, endpoint, eventType, payload)
			// Failures are reported per delivery, never through the group.
			return nil
		})
	}
	_ = group.Wait() //nolint:errcheck

	for _, d := range deliveries {
		if !d.Succeeded() {
			n.logger.Warn("webhook delivery failed",
				slog.String("url", d.URL),
				slog.String("event_type", eventType),
				slog.Int("status_code", d.StatusCode),
				slog.Any("error", d.Err),
			)
		}
	}
	return deliveries
}

func (n *Notifier) deliver(ctx context.Context, endpoint, eventType string, payload []byte) Delivery {
	start := time.Now()
	delivery := Delivery{URL: endpoint}

	if err := n.limiter.Wait(ctx); err != nil {
		delivery.Err = err
		delivery.Elapsed = time.Since(start)
		return delivery
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		delivery.Err = err
		delivery.Elapsed = time.Since(start)
		return delivery
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Event-Type", eventType)

	resp, err := n.client.Do(req)
	if err != nil {
		delivery.Err = err
		delivery.Elapsed = time.Since(start)
		return delivery
	}
	defer resp.Body.Close() //nolint:errcheck

	delivery.StatusCode = resp.StatusCode
	delivery.Elapsed = time.Since(start)
	return delivery
}

// HandleMessage adapts a consumed booking event into Broadcast.
func (n *Notifier) HandleMessage(ctx context.Context, message *kafka.Message) error {
	eventType := message.Headers["event_type"]
	n.logger.Info("broadcasting booking event",
		slog.String("event_type", eventType),
		slog.String("key", message.Key),
		slog.Int("endpoints", len(n.config.Endpoints)),
	)
	n.Broadcast(ctx, eventType, message.Value)
	return nil
}
