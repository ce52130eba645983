package registry

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"

	"cymbalrag/internal/errs"
	"cymbalrag/internal/models"
)

const sessionKeyPrefix = "validation:"

// SessionStore parks validation sessions until they are promoted or expire.
type SessionStore interface {
	Put(ctx context.Context, session *models.ValidationSession) error
	Get(ctx context.Context, validationID string) (*models.ValidationSession, error)
	Delete(ctx context.Context, validationID string) error
}

// RedisSessionStore keeps sessions in Redis with a TTL. Expiry handles
// abandoned sessions without a sweeper.
type RedisSessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisSessionStore creates a RedisSessionStore with the given session
// lifetime.
func NewRedisSessionStore(client *redis.Client, ttl time.Duration) *RedisSessionStore {
	return &RedisSessionStore{client: client, ttl: ttl}
}

// Put stores the session under its validation ID for the configured TTL.
func (s *RedisSessionStore) Put(ctx context.Context, session *models.ValidationSession) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return err
	}
	return s.client.SetEX(ctx, sessionKeyPrefix+session.ValidationID, payload, s.ttl).Err()
}

// Get retrieves a session. Expired and unknown sessions are not found.
func (s *RedisSessionStore) Get(ctx context.Context, validationID string) (*models.ValidationSession, error) {
	payload, err := s.client.Get(ctx, sessionKeyPrefix+validationID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, errs.NotFoundf("validation session '%s' not found or expired", validationID)
	}
	if err != nil {
		return nil, err
	}

	var session models.ValidationSession
	if err := json.Unmarshal(payload, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// Delete removes a session after promotion or cleanup.
func (s *RedisSessionStore) Delete(ctx context.Context, validationID string) error {
	return s.client.Del(ctx, sessionKeyPrefix+validationID).Err()
}

var _ SessionStore = (*RedisSessionStore)(nil)
