package httpx

import (
	"bytes"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/coursedesk/coursedesk"
	"github.com/coursedesk/coursedesk/internal/domain/nav"
	"github.com/coursedesk/coursedesk/internal/http/validation"
	"github.com/coursedesk/coursedesk/internal/service"
)

// RouterServices holds everything the HTTP router needs.
type RouterServices struct {
	Sessions SessionStore
	Auth     AuthFlows
	Screens  *service.ScreenService
	Events   EventSource
	Routes   nav.RoleRouteMap
	Renderer *TemplateRenderer
	Cookie   CookieConfig
	// CSRF enables double-submit protection on unsafe methods.
	CSRF bool
	// Metrics serves /metrics when set.
	Metrics http.Handler
	IsDev   bool
	Logger  *slog.Logger
}

// NewRouter creates the web client's router. Middleware other than CSRF is
// applied by the caller (see Chain).
func NewRouter(s RouterServices) http.Handler {
	mux := http.NewServeMux()
	v := validation.New()

	authHandlers := &AuthHandlers{
		Svc:       s.Auth,
		Sessions:  s.Sessions,
		Renderer:  s.Renderer,
		Routes:    s.Routes,
		Cookie:    s.Cookie,
		Validator: v,
		Logger:    s.Logger,
	}
	sessionHandlers := &SessionHandlers{Sessions: s.Sessions, Routes: s.Routes, Cookie: s.Cookie}
	screenHandlers := &ScreenHandlers{
		Renderer:    s.Renderer,
		Routes:      s.Routes,
		Assignments: s.Screens,
		Validator:   v,
		Logger:      s.Logger,
	}

	registerAuthRoutes(mux, authHandlers)
	mux.HandleFunc("GET /api/session", sessionHandlers.Status)
	mux.HandleFunc("GET /healthz", healthHandler)
	mux.HandleFunc("HEAD /healthz", healthHandler)
	if s.Metrics != nil {
		mux.Handle("GET /metrics", s.Metrics)
	}
	mux.Handle("GET /static/", staticHandler(s.IsDev))
	mux.HandleFunc("GET /{$}", sessionHandlers.Home)

	protect := func(h http.Handler) http.Handler {
		guarded := Guard(GuardOptions{Sessions: s.Sessions, Routes: s.Routes, Cookie: s.Cookie, Logger: s.Logger})(h)
		return UnauthorizedRedirect(s.Events, s.Cookie)(guarded)
	}
	registerScreenRoutes(mux, screenHandlers, s.Screens, protect)

	var handler http.Handler = &notFoundHandler{mux: mux, fallback: sessionHandlers}
	if s.CSRF {
		handler = CSRFProtection(CSRFConfig{CookieDomain: s.Cookie.Domain})(handler)
	}
	return handler
}

// Chain wraps h with the standard middleware, outermost first:
// Recover, Logging, Metrics, then Compression when enabled.
func Chain(h http.Handler, logger *slog.Logger, compression *CompressionConfig) http.Handler {
	if compression != nil {
		h = Compression(*compression)(h)
	}
	h = Metrics()(h)
	h = Logging(logger)(h)
	return Recover(logger)(h)
}

func registerAuthRoutes(mux *http.ServeMux, h *AuthHandlers) {
	mux.HandleFunc("GET /login", h.LoginPage)
	mux.HandleFunc("POST /login", h.Login)
	mux.HandleFunc("POST /login/sms", h.LoginSMS)
	mux.HandleFunc("GET /register", h.RegisterPage)
	mux.HandleFunc("POST /register", h.Register)
	mux.HandleFunc("GET /forgot-password", h.ForgotPasswordPage)
	mux.HandleFunc("POST /forgot-password", h.ForgotPassword)
	mux.HandleFunc("POST /auth/send-code", h.SendCode)
	mux.HandleFunc("POST /logout", h.Logout)
}

type screenRoute struct {
	pattern string
	load    service.ScreenFunc
	params  []string
}

func screenRoutes(s *service.ScreenService) []screenRoute {
	return []screenRoute{
		{pattern: "/teacher/dashboard", load: s.TeacherDashboard},
		{pattern: "/teacher/grading", load: s.TeacherGrading},
		{pattern: "/teacher/courses", load: s.TeacherCourses},
		{pattern: "/teacher/resources", load: s.TeacherResources},
		{pattern: "/teacher/feedback", load: s.TeacherFeedback},
		{pattern: "/admin/dashboard", load: s.OfficerDashboard},
		{pattern: "/admin/courses", load: s.AllCourses},
		{pattern: "/admin/users", load: s.Users},
		{pattern: "/student/dashboard", load: s.StudentDashboard},
		{pattern: "/student/courses", load: s.AllCourses},
		{pattern: "/student/courses/{courseId}", load: s.StudentCourseDetail, params: []string{"courseId"}},
		{pattern: "/student/assignments/{assignmentId}", load: s.StudentAssignment, params: []string{"assignmentId"}},
		{pattern: "/student/grades", load: s.StudentGrades},
		{pattern: "/student/feedback", load: s.StudentFeedback},
		{pattern: "/student/profile", load: s.Profile},
	}
}

func registerScreenRoutes(
	mux *http.ServeMux,
	h *ScreenHandlers,
	screens *service.ScreenService,
	protect func(http.Handler) http.Handler,
) {
	for _, rt := range screenRoutes(screens) {
		mux.Handle("GET "+rt.pattern, protect(h.Screen(rt.load, rt.params...)))
	}
	const newAssignment = "/teacher/courses/{courseId}/assignments/new"
	mux.Handle("GET "+newAssignment, protect(http.HandlerFunc(h.NewAssignmentPage)))
	mux.Handle("POST "+newAssignment, protect(http.HandlerFunc(h.CreateAssignment)))
}

// TemplateFS returns the template filesystem: the working tree in dev mode,
// the embedded copy otherwise.
func TemplateFS(isDev bool) (fs.FS, error) {
	if isDev {
		return os.DirFS("frontend/templates"), nil
	}
	return fs.Sub(coursedesk.TemplateFS, "frontend/templates")
}

// staticHandler serves /static/* from disk in dev mode and from the embedded FS otherwise.
func staticHandler(isDev bool) http.Handler {
	if isDev {
		return staticWithCacheHeaders(http.StripPrefix("/static/", http.FileServer(http.Dir("frontend/static"))), false)
	}
	sub, err := fs.Sub(coursedesk.StaticFS, "frontend/static")
	if err != nil {
		slog.Default().Error("static sub-filesystem unavailable; serving from disk", "error", err)
		return staticWithCacheHeaders(http.StripPrefix("/static/", http.FileServer(http.Dir("frontend/static"))), false)
	}
	return staticWithCacheHeaders(http.StripPrefix("/static/", http.FileServerFS(sub)), true)
}

func staticWithCacheHeaders(handler http.Handler, cacheable bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if cacheable {
			w.Header().Set("Cache-Control", "public, max-age=3600")
		} else {
			w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
		}
		handler.ServeHTTP(w, r)
	})
}

// notFoundHandler wraps a ServeMux and sends unmatched page requests home.
type notFoundHandler struct {
	mux      *http.ServeMux
	fallback *SessionHandlers
}

func (h *notFoundHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if _, pattern := h.mux.Handler(r); pattern != "" {
		recordRoute(r, pattern)
		h.mux.ServeHTTP(w, r)
		return
	}
	switch {
	case strings.HasPrefix(r.URL.Path, "/api/"):
		WriteError(w, ErrorParams{Code: http.StatusNotFound, ErrCode: "not_found", Err: errors.New("not found")})
	case r.Method != http.MethodGet && r.Method != http.MethodHead:
		h.mux.ServeHTTP(w, r)
	default:
		h.fallback.Home(w, r)
	}
}

// captureWriter buffers headers, status and body so we can decide post-dispatch.
type captureWriter struct {
	rw     http.ResponseWriter
	header http.Header
	status int
	buf    bytes.Buffer
}

func newCaptureWriter(w http.ResponseWriter) *captureWriter {
	return &captureWriter{rw: w, header: make(http.Header), status: http.StatusOK}
}

func (c *captureWriter) Header() http.Header         { return c.header }
func (c *captureWriter) WriteHeader(code int)        { c.status = code }
func (c *captureWriter) Write(b []byte) (int, error) { return c.buf.Write(b) }

func (c *captureWriter) flushTo(w http.ResponseWriter) {
	for k, vs := range c.header {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	w.WriteHeader(c.status)
	if _, err := w.Write(c.buf.Bytes()); err != nil {
		slog.Default().Warn("failed to write captured response", "error", err)
	}
}
