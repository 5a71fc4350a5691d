package service

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/coursedesk/coursedesk/internal/observability/metrics"
)

// ExpiredSessionDeleter is implemented by session stores that keep expired
// rows until they are swept. Redis expires keys on its own and does not need it.
type ExpiredSessionDeleter interface {
	DeleteExpired(ctx context.Context) (int, error)
}

// SessionReaperOptions groups dependencies for SessionReaper.
type SessionReaperOptions struct {
	Repo     ExpiredSessionDeleter // Required
	Interval time.Duration         // Required: sweep period
	Logger   *slog.Logger
}

// SessionReaper periodically deletes expired sessions.
type SessionReaper struct {
	repo     ExpiredSessionDeleter
	interval time.Duration
	logger   *slog.Logger
}

// NewSessionReaper constructs a SessionReaper.
func NewSessionReaper(opts SessionReaperOptions) (*SessionReaper, error) {
	if opts.Repo == nil {
		return nil, errors.New("session reaper: repository is required")
	}
	if opts.Interval <= 0 {
		return nil, errors.New("session reaper: interval must be positive")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionReaper{
		repo:     opts.Repo,
		interval: opts.Interval,
		logger:   logger.With("component", "session_reaper"),
	}, nil
}

// Run sweeps once after a short jitter and then every interval until ctx is
// canceled. Sweep failures are logged and do not stop the loop.
func (r *SessionReaper) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "starting session reaper", "interval", r.interval)
	r.waitWithJitter(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		if _, err := r.Sweep(ctx); err != nil && !isContextCancellation(err) {
			r.logger.WarnContext(ctx, "session sweep failed", "error", err)
		}
		select {
		case <-ctx.Done():
			r.logger.InfoContext(ctx, "session reaper stopping", "reason", ctx.Err())
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Sweep deletes expired sessions once and returns how many were removed.
func (r *SessionReaper) Sweep(ctx context.Context) (int, error) {
	if ctx.Err() != nil {
		return 0, ctx.Err()
	}
	n, err := r.repo.DeleteExpired(ctx)
	if err != nil {
		metrics.SessionsReapedTotal.WithLabelValues("error").Inc()
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	if n > 0 {
		metrics.SessionsReapedTotal.WithLabelValues("deleted").Add(float64(n))
		r.logger.InfoContext(ctx, "deleted expired sessions", "count", n)
	}
	return n, nil
}

// waitWithJitter delays up to 10% of the interval so replicas do not sweep in step.
func (r *SessionReaper) waitWithJitter(ctx context.Context) {
	maxJitter := int64(r.interval / 10)
	if maxJitter <= 0 {
		return
	}
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		r.logger.WarnContext(ctx, "failed to generate jitter, skipping", "error", err)
		return
	}
	jitter := time.Duration(int64(binary.BigEndian.Uint64(buf[:]) % uint64(maxJitter))) // #nosec G115 - bounded by maxJitter

	select {
	case <-time.After(jitter):
	case <-ctx.Done():
	}
}

func isContextCancellation(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
