package httpx

import (
	"context"

	domainauth "github.com/coursedesk/coursedesk/internal/domain/auth"
)

// sessionKey is the context key for the guard's session snapshot.
type sessionKey struct{}

// SetSessionInContext returns a child context carrying the session snapshot
// the guard evaluated. A nil session leaves ctx unchanged.
func SetSessionInContext(ctx context.Context, session *domainauth.Session) context.Context {
	if session == nil {
		return ctx
	}
	return context.WithValue(ctx, sessionKey{}, session)
}

// GetSessionFromContext returns the snapshot stored by the guard.
func GetSessionFromContext(ctx context.Context) (*domainauth.Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(*domainauth.Session)
	return s, ok && s != nil
}

// IdentityFromContext returns the identity of the guarded request, or the zero value.
func IdentityFromContext(ctx context.Context) domainauth.Identity {
	if s, ok := GetSessionFromContext(ctx); ok {
		return s.Identity
	}
	return domainauth.Identity{}
}
