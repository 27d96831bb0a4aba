package application

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/ericfisherdev/gatecheck/internal/domain/model"
	"github.com/ericfisherdev/gatecheck/internal/domain/port/driven"
)

// DefaultSessionTTL is the sliding lifetime of an admin session.
const DefaultSessionTTL = 24 * time.Hour

const (
	sessionTokenBytes = 32
	adminSubject      = "admin"
)

// AuthService checks the single admin password and manages admin sessions.
// Only SHA-256 hashes of session tokens reach the session store.
type AuthService struct {
	sessions     driven.SessionStore
	passwordHash []byte
	ttl          time.Duration
	random       io.Reader
	now          func() time.Time
}

// NewAuthService creates an AuthService for the given bcrypt password hash.
func NewAuthService(sessions driven.SessionStore, passwordHash []byte, ttl time.Duration) *AuthService {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &AuthService{
		sessions:     sessions,
		passwordHash: passwordHash,
		ttl:          ttl,
		random:       rand.Reader,
		now:          time.Now,
	}
}

// SetClock replaces the time source. Intended for tests.
func (s *AuthService) SetClock(now func() time.Time) {
	s.now = now
}

// Login checks password and starts a session. The returned token is the
// bearer secret; it is never stored.
func (s *AuthService) Login(ctx context.Context, password string) (string, model.Session, error) {
	if err := bcrypt.CompareHashAndPassword(s.passwordHash, []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			slog.Warn("admin login failed")
			return "", model.Session{}, ErrInvalidPassword
		}
		return "", model.Session{}, fmt.Errorf("compare password: %w", err)
	}

	buf := make([]byte, sessionTokenBytes)
	if _, err := io.ReadFull(s.random, buf); err != nil {
		return "", model.Session{}, fmt.Errorf("%w: %w", ErrGeneration, err)
	}
	token := hex.EncodeToString(buf)

	now := s.now().UTC()
	sess := model.Session{
		TokenHash: hashToken(token),
		Subject:   adminSubject,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return "", model.Session{}, fmt.Errorf("create session: %w", err)
	}

	slog.Info("admin logged in")
	return token, sess, nil
}

// Authenticate resolves token to a live session and slides its expiry.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*model.Session, error) {
	if token == "" {
		return nil, ErrUnauthorized
	}

	hash := hashToken(token)
	now := s.now().UTC()

	sess, err := s.sessions.Get(ctx, hash, now)
	if errors.Is(err, driven.ErrSessionNotFound) {
		return nil, ErrUnauthorized
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	expiresAt := now.Add(s.ttl)
	if err := s.sessions.Extend(ctx, hash, expiresAt, now); err != nil {
		if errors.Is(err, driven.ErrSessionNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, fmt.Errorf("extend session: %w", err)
	}
	sess.ExpiresAt = expiresAt

	return sess, nil
}

// Logout ends the session for token. Unknown tokens are ignored.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := s.sessions.Delete(ctx, hashToken(token)); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// TTL returns the sliding session lifetime.
func (s *AuthService) TTL() time.Duration {
	return s.ttl
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
