package httpx

import (
	"net/http"

	domainauth "github.com/coursedesk/coursedesk/internal/domain/auth"
	"github.com/coursedesk/coursedesk/internal/domain/nav"
)

// SessionHandlers serves the session status endpoint and the root redirect.
type SessionHandlers struct {
	Sessions SessionReader
	Routes   nav.RoleRouteMap
	Cookie   CookieConfig
}

type sessionStatus struct {
	Authenticated bool                 `json:"authenticated"`
	User          *domainauth.Identity `json:"user,omitempty"`
	Home          string               `json:"home,omitempty"`
	Menu          []nav.MenuItem       `json:"menu"`
}

// Status reports the caller's session. GET /api/session.
func (h *SessionHandlers) Status(w http.ResponseWriter, r *http.Request) {
	out := sessionStatus{Menu: []nav.MenuItem{}}
	if sess, ok := h.Sessions.Current(r.Context(), h.Cookie.sessionKeyFromRequest(r)); ok && sess.HasToken() {
		id := sess.Identity
		out.Authenticated = true
		out.User = &id
		out.Home, _ = h.Routes.HomeFor(id.Role)
		out.Menu = h.Routes.Compose(id.Role, r.URL.Query().Get("path"))
	}
	w.Header().Set("Cache-Control", "no-store")
	WriteJSON(w, http.StatusOK, out)
}

// Home sends the visitor to their role home, or to the login page.
// It serves "/" and every unmatched path.
func (h *SessionHandlers) Home(w http.ResponseWriter, r *http.Request) {
	target := nav.LoginPath
	if sess, ok := h.Sessions.Current(r.Context(), h.Cookie.sessionKeyFromRequest(r)); ok && sess.HasToken() {
		if home, ok := h.Routes.HomeFor(sess.Identity.Role); ok {
			target = home
		}
	}
	Navigate(w, r, target)
}
