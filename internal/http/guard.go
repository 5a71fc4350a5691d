package httpx

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/coursedesk/coursedesk/internal/domain/access"
	domainauth "github.com/coursedesk/coursedesk/internal/domain/auth"
	"github.com/coursedesk/coursedesk/internal/domain/nav"
	"github.com/coursedesk/coursedesk/internal/gateway"
	"github.com/coursedesk/coursedesk/internal/observability/metrics"
)

// SessionReader is the read side of the session store the guard consults.
type SessionReader interface {
	Current(ctx context.Context, key string) (domainauth.Session, bool)
}

// GuardOptions configures Guard.
type GuardOptions struct {
	Sessions SessionReader
	Routes   nav.RoleRouteMap
	Cookie   CookieConfig
	Logger   *slog.Logger
}

// Guard evaluates the access policy for every request against a fresh store
// read. Allowed requests carry the session snapshot and the gateway session key
// in their context; everything else is redirected without reaching next.
func Guard(opts GuardOptions) func(http.Handler) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := opts.Cookie.sessionKeyFromRequest(r)
			var sess *domainauth.Session
			if s, ok := opts.Sessions.Current(r.Context(), key); ok {
				sess = &s
			}

			res := opts.Routes.Resolve(sess, r.URL.Path)
			metrics.GuardDecisionsTotal.WithLabelValues(res.Decision.Kind.String()).Inc()

			switch res.Decision.Kind {
			case access.KindAllow:
				ctx := SetSessionInContext(r.Context(), sess)
				if key != "" {
					ctx = gateway.WithSessionKey(ctx, key)
				}
				next.ServeHTTP(w, r.WithContext(ctx))
			case access.KindRedirectHome:
				logger.DebugContext(r.Context(), "route guard redirect",
					"component", "guard", "path", r.URL.Path, "role", string(res.Decision.Role), "to", res.Target)
				Navigate(w, r, res.Target)
			default:
				if key != "" && sess == nil {
					opts.Cookie.clear(w, r)
				}
				logger.DebugContext(r.Context(), "route guard redirect",
					"component", "guard", "path", r.URL.Path, "to", res.Target)
				Navigate(w, r, res.Target)
			}
		})
	}
}

// EventSource is the subscription side of the gateway's unauthorized bus.
type EventSource interface {
	Subscribe(fn func(gateway.Unauthorized)) (unsubscribe func())
}

// UnauthorizedRedirect buffers the response of next and, when the gateway
// reported a rejected credential for this request's session during the call,
// discards it and navigates to the login route instead.
func UnauthorizedRedirect(events EventSource, cookie CookieConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := cookie.sessionKeyFromRequest(r)
			if key == "" || events == nil {
				next.ServeHTTP(w, r)
				return
			}

			var (
				mu       sync.Mutex
				rejected *gateway.Unauthorized
			)
			unsubscribe := events.Subscribe(func(ev gateway.Unauthorized) {
				if ev.Key != key {
					return
				}
				mu.Lock()
				if rejected == nil {
					rejected = &ev
				}
				mu.Unlock()
			})
			defer unsubscribe()

			cw := newCaptureWriter(w)
			next.ServeHTTP(cw, r)

			mu.Lock()
			ev := rejected
			mu.Unlock()
			if ev == nil {
				cw.flushTo(w)
				return
			}

			target := ev.LoginPath
			if target == "" {
				target = nav.LoginPath
			}
			cookie.clear(w, r)
			Navigate(w, r, target)
		})
	}
}

// LogUnauthorized returns a bus subscriber that records rejected credentials.
func LogUnauthorized(logger *slog.Logger) func(gateway.Unauthorized) {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ev gateway.Unauthorized) {
		logger.Warn("backend rejected session credential",
			"component", "gateway", "path", ev.Path, "login_path", ev.LoginPath)
	}
}
