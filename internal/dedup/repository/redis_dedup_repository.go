package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisDedupRepository handles deduplication records in Redis. Keys carry a
// TTL so the store does not grow without bound; the TTL must exceed the
// broker's maximum redelivery window.
type RedisDedupRepository struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisDedupRepository creates a new RedisDedupRepository.
func NewRedisDedupRepository(client *redis.Client, ttl time.Duration) *RedisDedupRepository {
	return &RedisDedupRepository{
		client: client,
		ttl:    ttl,
	}
}

func (r *RedisDedupRepository) processedKey(consumerScope, eventID string) string {
	return fmt.Sprintf("dedup:processed:%s:%s", consumerScope, eventID)
}

func (r *RedisDedupRepository) attemptsKey(eventID string) string {
	return fmt.Sprintf("dedup:attempts:%s", eventID)
}

// IsProcessed reports whether an event was already processed in the given
// consumer scope.
func (r *RedisDedupRepository) IsProcessed(ctx context.Context, consumerScope, eventID string) (bool, error) {
	exists, err := r.client.Exists(ctx, r.processedKey(consumerScope, eventID)).Result()
	if err != nil {
		return false, err
	}
	return exists > 0, nil
}

// MarkProcessed records an event as processed. SetNX keeps the original
// processed_at when two consumers race on the same event.
func (r *RedisDedupRepository) MarkProcessed(ctx context.Context, consumerScope, eventID string) error {
	processedAt := time.Now().UTC().Format(time.RFC3339Nano)
	return r.client.SetNX(ctx, r.processedKey(consumerScope, eventID), processedAt, r.ttl).Err()
}

// AttemptCount returns how many processing attempts the event has seen.
func (r *RedisDedupRepository) AttemptCount(ctx context.Context, eventID string) (int, error) {
	count, err := r.client.Get(ctx, r.attemptsKey(eventID)).Int()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return count, nil
}

// IncrementAttempts bumps the attempt counter for an event and returns the
// new count.
func (r *RedisDedupRepository) IncrementAttempts(ctx context.Context, eventID string) (int, error) {
	key := r.attemptsKey(eventID)

	count, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if count == 1 {
		if err := r.client.Expire(ctx, key, r.ttl).Err(); err != nil {
			return 0, err
		}
	}
	return int(count), nil
}
