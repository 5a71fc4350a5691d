package httpx

import (
	"net/http"
	"time"
)

// DefaultSessionCookie names the cookie holding the opaque session key.
const DefaultSessionCookie = "session_id"

// CookieConfig controls the session cookie.
type CookieConfig struct {
	Name   string
	Domain string
	// MaxAge mirrors the session TTL; zero makes it a browser-session cookie.
	MaxAge time.Duration
}

func (c CookieConfig) name() string {
	if c.Name == "" {
		return DefaultSessionCookie
	}
	return c.Name
}

// sessionKeyFromRequest returns the session key cookie value, or "".
func (c CookieConfig) sessionKeyFromRequest(r *http.Request) string {
	ck, err := r.Cookie(c.name())
	if err != nil {
		return ""
	}
	return ck.Value
}

func (c CookieConfig) set(w http.ResponseWriter, r *http.Request, key string) {
	ck := &http.Cookie{
		Name:     c.name(),
		Value:    key,
		Path:     "/",
		Domain:   c.Domain,
		HttpOnly: true,
		Secure:   isSecureRequest(r),
		SameSite: http.SameSiteLaxMode,
	}
	if c.MaxAge > 0 {
		ck.MaxAge = int(c.MaxAge.Seconds())
	}
	http.SetCookie(w, ck)
}

func (c CookieConfig) clear(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.name(),
		Value:    "",
		Path:     "/",
		Domain:   c.Domain,
		HttpOnly: true,
		Secure:   isSecureRequest(r),
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}
