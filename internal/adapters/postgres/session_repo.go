// Package postgres provides the PostgreSQL-backed session repository.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	domainauth "github.com/coursedesk/coursedesk/internal/domain/auth"
	apperrors "github.com/coursedesk/coursedesk/internal/errors"
	"github.com/coursedesk/coursedesk/internal/ports"
)

// DB is the subset of pgxpool.Pool used by the repository.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

var (
	_ ports.SessionRepository = (*SessionRepo)(nil)
	_ ports.SessionAdmin      = (*SessionRepo)(nil)
)

// SessionRepo stores sessions in the sessions table.
type SessionRepo struct {
	db  DB
	now func() time.Time
}

// NewSessionRepo creates a repository over db.
func NewSessionRepo(db DB) *SessionRepo {
	return &SessionRepo{db: db, now: time.Now}
}

const upsertSessionSQL = `
	INSERT INTO sessions (id, token, identity, role, expires_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, now())
	ON CONFLICT (id) DO UPDATE SET
		token = EXCLUDED.token,
		identity = EXCLUDED.identity,
		role = EXCLUDED.role,
		expires_at = EXCLUDED.expires_at,
		updated_at = now()`

// Save upserts the session under key.
func (r *SessionRepo) Save(ctx context.Context, key string, sess domainauth.Session) error {
	if key == "" {
		return apperrors.ValidationField("id", "session key cannot be empty")
	}

	identity, err := json.Marshal(sess.Identity)
	if err != nil {
		return fmt.Errorf("marshal identity: %w", err)
	}

	if _, err := r.db.Exec(ctx, upsertSessionSQL,
		key, sess.Token, identity, string(sess.Identity.Role), nullableTime(sess.ExpiresAt),
	); err != nil {
		return fmt.Errorf("save session: %w", apperrors.MapDBError(err))
	}
	return nil
}

const getSessionSQL = `
	SELECT token, identity, expires_at
	FROM sessions
	WHERE id = $1 AND (expires_at IS NULL OR expires_at > $2)`

// Get returns the live session under key or ports.ErrNotFound.
func (r *SessionRepo) Get(ctx context.Context, key string) (domainauth.Session, error) {
	if key == "" {
		return domainauth.Session{}, ports.ErrNotFound
	}

	var (
		sess      domainauth.Session
		identity  []byte
		expiresAt *time.Time
	)
	err := r.db.QueryRow(ctx, getSessionSQL, key, r.now()).Scan(&sess.Token, &identity, &expiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domainauth.Session{}, ports.ErrNotFound
		}
		return domainauth.Session{}, fmt.Errorf("get session: %w", apperrors.MapDBError(err))
	}

	if err := json.Unmarshal(identity, &sess.Identity); err != nil {
		return domainauth.Session{}, fmt.Errorf("unmarshal identity: %w", err)
	}
	if expiresAt != nil {
		sess.ExpiresAt = *expiresAt
	}
	return sess, nil
}

// Delete removes the session under key. Deleting a missing key is not an error.
func (r *SessionRepo) Delete(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}
	if _, err := r.db.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, key); err != nil {
		return fmt.Errorf("delete session: %w", apperrors.MapDBError(err))
	}
	return nil
}

// List returns every stored session ordered by most recent update.
func (r *SessionRepo) List(ctx context.Context) ([]ports.StoredSession, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, identity, expires_at FROM sessions ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", apperrors.MapDBError(err))
	}
	defer rows.Close()

	var out []ports.StoredSession
	for rows.Next() {
		var (
			s         ports.StoredSession
			identity  []byte
			expiresAt *time.Time
		)
		if err := rows.Scan(&s.Key, &identity, &expiresAt); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		if err := json.Unmarshal(identity, &s.Identity); err != nil {
			continue
		}
		if expiresAt != nil {
			s.ExpiresAt = *expiresAt
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", apperrors.MapDBError(err))
	}
	return out, nil
}

// Purge deletes every session.
func (r *SessionRepo) Purge(ctx context.Context) (int, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM sessions`)
	if err != nil {
		return 0, fmt.Errorf("purge sessions: %w", apperrors.MapDBError(err))
	}
	return int(tag.RowsAffected()), nil
}

// DeleteExpired removes sessions whose expiry has passed.
func (r *SessionRepo) DeleteExpired(ctx context.Context) (int, error) {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM sessions WHERE expires_at IS NOT NULL AND expires_at <= $1`, r.now())
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", apperrors.MapDBError(err))
	}
	return int(tag.RowsAffected()), nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
