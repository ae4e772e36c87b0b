package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/illegalcall/thumbdesk/internal/models"
)

const (
	idempotencyKeyTemplate = "idempotency:%s:%s"
	inFlightMarker         = "in-flight"
	maxIdempotencyKeyLen   = 128

	// inFlightTTL bounds how long a claimed key blocks retries when the
	// attempt never records its outcome. It covers a submission's uploads.
	inFlightTTL = 5 * time.Minute
)

// IdempotencyStore remembers which request a client-supplied Idempotency-Key
// produced, so a retried submission never deducts credits twice.
type IdempotencyStore struct {
	client   *redis.Client
	ttl      time.Duration
	inFlight time.Duration
}

// NewIdempotencyStore returns a store whose completed keys expire after ttl.
// Claims that are never completed or released lapse much sooner.
func NewIdempotencyStore(client *redis.Client, ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{client: client, ttl: ttl, inFlight: min(ttl, inFlightTTL)}
}

func redisKey(userID, key string) string {
	return fmt.Sprintf(idempotencyKeyTemplate, userID, key)
}

// Begin claims key for userID. It returns the id of the request a completed
// earlier attempt created, or "" when the caller now owns the key.
// models.ErrSubmissionInFlight means another attempt still holds it.
func (s *IdempotencyStore) Begin(ctx context.Context, userID, key string) (string, error) {
	k := redisKey(userID, key)
	ok, err := s.client.SetNX(ctx, k, inFlightMarker, s.inFlight).Result()
	if err != nil {
		return "", fmt.Errorf("claim idempotency key: %w", err)
	}
	if ok {
		return "", nil
	}

	val, err := s.client.Get(ctx, k).Result()
	if errors.Is(err, redis.Nil) {
		// Expired between SETNX and GET; try once more.
		ok, err = s.client.SetNX(ctx, k, inFlightMarker, s.inFlight).Result()
		if err != nil {
			return "", fmt.Errorf("claim idempotency key: %w", err)
		}
		if ok {
			return "", nil
		}
		return "", models.ErrSubmissionInFlight
	}
	if err != nil {
		return "", fmt.Errorf("read idempotency key: %w", err)
	}
	if val == inFlightMarker {
		return "", models.ErrSubmissionInFlight
	}
	return val, nil
}

// Complete records the request created under key.
func (s *IdempotencyStore) Complete(ctx context.Context, userID, key, requestID string) error {
	return s.client.Set(ctx, redisKey(userID, key), requestID, s.ttl).Err()
}

// Release frees key after a failed attempt so the client can retry.
func (s *IdempotencyStore) Release(ctx context.Context, userID, key string) error {
	return s.client.Del(ctx, redisKey(userID, key)).Err()
}
