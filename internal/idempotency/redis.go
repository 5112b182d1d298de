// Package idempotency remembers the outcome of POST requests that carry an
// Idempotency-Key header so a retried request is answered without repeating
// its side effects.
package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "idempotency:"

const (
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
)

var (
	ErrInProgress = errors.New("request in progress")
	ErrMismatch   = errors.New("key reuse with mismatched payload")
)

// Record is what is stored under a key.
type Record struct {
	Status         string          `json:"status"`
	RequestHash    string          `json:"requestHash"`
	ResponseStatus int             `json:"responseStatus,omitempty"`
	ResponseBody   json.RawMessage `json:"responseBody,omitempty"`
}

type RedisStore struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewRedisStore(client redis.Cmdable, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

// HashRequest fingerprints a request body.
func HashRequest(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// Begin reserves key for a new request. It returns (nil, nil) when the caller
// owns the key and must run the request, or the stored record when a
// completed response can be replayed.
func (s *RedisStore) Begin(ctx context.Context, key, requestHash string) (*Record, error) {
	reservation, err := json.Marshal(Record{Status: StatusInProgress, RequestHash: requestHash})
	if err != nil {
		return nil, err
	}

	ok, err := s.client.SetNX(ctx, keyPrefix+key, string(reservation), s.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("reserve idempotency key: %w", err)
	}
	if ok {
		return nil, nil
	}

	raw, err := s.client.Get(ctx, keyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		// Expired between SETNX and GET; the client can simply retry.
		return nil, ErrInProgress
	}
	if err != nil {
		return nil, fmt.Errorf("read idempotency key: %w", err)
	}

	var rec Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, fmt.Errorf("decode idempotency record: %w", err)
	}
	if rec.RequestHash != requestHash {
		return nil, ErrMismatch
	}
	if rec.Status != StatusCompleted {
		return nil, ErrInProgress
	}
	return &rec, nil
}

// Complete stores the response for later replays.
func (s *RedisStore) Complete(ctx context.Context, key, requestHash string, status int, body []byte) error {
	payload, err := json.Marshal(Record{
		Status:         StatusCompleted,
		RequestHash:    requestHash,
		ResponseStatus: status,
		ResponseBody:   body,
	})
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, keyPrefix+key, string(payload), s.ttl).Err(); err != nil {
		return fmt.Errorf("store idempotent response: %w", err)
	}
	return nil
}

// Release drops a reservation so a failed request can be retried with the same key.
func (s *RedisStore) Release(ctx context.Context, key string) error {
	return s.client.Del(ctx, keyPrefix+key).Err()
}
