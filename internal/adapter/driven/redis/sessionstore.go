// Package redis keeps admin sessions in Redis so that several gate servers
// share one login and expiry is enforced by key TTLs.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/ericfisherdev/gatecheck/internal/domain/model"
	"github.com/ericfisherdev/gatecheck/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.SessionStore = (*SessionStore)(nil)

const keyPrefix = "gatecheck:session:"

// SessionStore is the Redis implementation of the SessionStore port interface.
type SessionStore struct {
	client *goredis.Client
}

// NewSessionStore parses redisURL and verifies the server is reachable.
func NewSessionStore(ctx context.Context, redisURL string) (*SessionStore, error) {
	opts, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := goredis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &SessionStore{client: client}, nil
}

// Close releases the client connections.
func (s *SessionStore) Close() error {
	return s.client.Close()
}

type sessionValue struct {
	Subject   string    `json:"subject"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Create stores the session with a TTL ending at its expiry.
func (s *SessionStore) Create(ctx context.Context, sess model.Session) error {
	ttl := time.Until(sess.ExpiresAt)
	if ttl <= 0 {
		return nil
	}

	body, err := json.Marshal(sessionValue{Subject: sess.Subject, CreatedAt: sess.CreatedAt.UTC(), ExpiresAt: sess.ExpiresAt.UTC()})
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	if err := s.client.Set(ctx, keyPrefix+sess.TokenHash, body, ttl).Err(); err != nil {
		return fmt.Errorf("create session: %w", classify(err))
	}
	return nil
}

// Get returns the live session for tokenHash.
func (s *SessionStore) Get(ctx context.Context, tokenHash string, now time.Time) (*model.Session, error) {
	body, err := s.client.Get(ctx, keyPrefix+tokenHash).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, driven.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", classify(err))
	}

	var v sessionValue
	if err := json.Unmarshal(body, &v); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}

	sess := &model.Session{TokenHash: tokenHash, Subject: v.Subject, CreatedAt: v.CreatedAt, ExpiresAt: v.ExpiresAt}
	if sess.Expired(now) {
		return nil, driven.ErrSessionNotFound
	}
	return sess, nil
}

// Extend rewrites a live session with a later expiry and TTL.
func (s *SessionStore) Extend(ctx context.Context, tokenHash string, expiresAt time.Time, now time.Time) error {
	sess, err := s.Get(ctx, tokenHash, now)
	if err != nil {
		return err
	}

	body, err := json.Marshal(sessionValue{Subject: sess.Subject, CreatedAt: sess.CreatedAt, ExpiresAt: expiresAt.UTC()})
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	ok, err := s.client.SetXX(ctx, keyPrefix+tokenHash, body, expiresAt.Sub(now)).Result()
	if err != nil {
		return fmt.Errorf("extend session: %w", classify(err))
	}
	if !ok {
		return driven.ErrSessionNotFound
	}
	return nil
}

// Delete removes a session. Missing sessions are not an error.
func (s *SessionStore) Delete(ctx context.Context, tokenHash string) error {
	if err := s.client.Del(ctx, keyPrefix+tokenHash).Err(); err != nil {
		return fmt.Errorf("delete session: %w", classify(err))
	}
	return nil
}

// DeleteExpired is a no-op: Redis evicts expired keys itself.
func (s *SessionStore) DeleteExpired(context.Context, time.Time) (int64, error) {
	return 0, nil
}

func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", driven.ErrStorageUnavailable, err)
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) {
		return fmt.Errorf("%w: %w", driven.ErrStorageUnavailable, err)
	}
	return err
}
