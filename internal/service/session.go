package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	domainauth "github.com/coursedesk/coursedesk/internal/domain/auth"
	"github.com/coursedesk/coursedesk/internal/ports"
)

// SessionServiceOptions groups dependencies for SessionService.
type SessionServiceOptions struct {
	Repo   ports.SessionRepository
	Logger *slog.Logger
	// Now overrides the clock (tests).
	Now func() time.Time
}

// SessionService owns the canonical copy of each caller's session.
// Everything else works on the snapshot returned by Current.
type SessionService struct {
	repo   ports.SessionRepository
	logger *slog.Logger
	now    func() time.Time
}

// NewSessionService constructs a SessionService.
func NewSessionService(opts SessionServiceOptions) *SessionService {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &SessionService{repo: opts.Repo, logger: opts.Logger, now: now}
}

func (s *SessionService) log() *slog.Logger {
	if s.logger != nil {
		return s.logger
	}
	return slog.Default()
}

// NewSessionKey returns a fresh opaque browser session id.
func NewSessionKey() string {
	return uuid.NewString()
}

// Save persists the session under key, overwriting any prior one.
// The token format is not inspected.
func (s *SessionService) Save(ctx context.Context, key string, sess domainauth.Session) error {
	if err := s.repo.Save(ctx, key, sess); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Current returns the stored session for key. Missing, expired, unreadable
// or unreachable storage all read as absent; failures are logged, never returned.
func (s *SessionService) Current(ctx context.Context, key string) (domainauth.Session, bool) {
	if key == "" {
		return domainauth.Session{}, false
	}

	sess, err := s.repo.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ports.ErrNotFound) {
			s.log().WarnContext(ctx, "session read failed; treating as absent",
				"component", "session", "error", err)
		}
		return domainauth.Session{}, false
	}

	switch sess.StateAt(s.now()) {
	case domainauth.StateValid:
		return sess, true
	case domainauth.StateExpired:
		s.log().DebugContext(ctx, "session expired", "component", "session")
		return domainauth.Session{}, false
	default:
		return domainauth.Session{}, false
	}
}

// Clear removes the session for key. Clearing an absent session is a no-op.
func (s *SessionService) Clear(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}
	if err := s.repo.Delete(ctx, key); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

// HasValidToken reports whether a non-empty token is stored for key.
// Role and identity are not examined.
func (s *SessionService) HasValidToken(ctx context.Context, key string) bool {
	sess, ok := s.Current(ctx, key)
	return ok && sess.HasToken()
}

// Token returns the stored token for key, or "" when absent.
func (s *SessionService) Token(ctx context.Context, key string) string {
	sess, ok := s.Current(ctx, key)
	if !ok {
		return ""
	}
	return sess.Token
}
