package gateway

import "context"

type sessionKeyCtxKey struct{}

// WithSessionKey returns a context carrying the session key whose token the
// gateway attaches to outbound requests.
func WithSessionKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, sessionKeyCtxKey{}, key)
}

// SessionKeyFrom returns the session key carried by ctx.
func SessionKeyFrom(ctx context.Context) (string, bool) {
	key, ok := ctx.Value(sessionKeyCtxKey{}).(string)
	return key, ok && key != ""
}
