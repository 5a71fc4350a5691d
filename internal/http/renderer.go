package httpx

import (
	"bytes"
	"errors"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"

	domainauth "github.com/coursedesk/coursedesk/internal/domain/auth"
)

// Page names; each maps to a "page-<name>" template.
const (
	PageLogin          = "login"
	PageRegister       = "register"
	PageForgotPassword = "forgot-password"
	PageScreen         = "screen"
	PageAssignmentNew  = "assignment-new"
)

var contentTemplates = map[string]string{
	PageLogin:          "page-login",
	PageRegister:       "page-register",
	PageForgotPassword: "page-forgot-password",
	PageScreen:         "page-screen",
	PageAssignmentNew:  "page-assignment-new",
}

// ContentTemplateFor returns the template that renders the main section of page.
func ContentTemplateFor(page string) string {
	if name, ok := contentTemplates[page]; ok {
		return name
	}
	return "page-screen"
}

// TemplateRenderer renders HTML templates for UI responses.
type TemplateRenderer struct {
	t      *template.Template
	logger *slog.Logger
}

// TemplateRendererConfig holds configuration for creating a TemplateRenderer.
type TemplateRendererConfig struct {
	TemplateFS fs.FS        // Filesystem containing templates (required)
	Logger     *slog.Logger // Logger for template errors (optional)
}

// NewTemplateRenderer parses every template under TemplateFS.
func NewTemplateRenderer(cfg TemplateRendererConfig) (*TemplateRenderer, error) {
	if cfg.TemplateFS == nil {
		return nil, errors.New("TemplateFS is required")
	}
	r := &TemplateRenderer{logger: cfg.Logger}

	var t *template.Template
	t, err := template.New("root").Funcs(templateFuncs(&t)).ParseFS(cfg.TemplateFS,
		"*.tmpl",
		"pages/*.tmpl",
		"partials/*.tmpl",
	)
	if err != nil {
		r.log().Error("template parsing failed",
			slog.Any("error", err),
			slog.String("phase", "initialization"),
		)
		return nil, err
	}
	r.t = t
	return r, nil
}

func (r *TemplateRenderer) log() *slog.Logger {
	if r.logger != nil {
		return r.logger
	}
	return slog.Default()
}

// Render writes the main section alone for htmx swaps and the full layout otherwise.
func (r *TemplateRenderer) Render(w http.ResponseWriter, req *http.Request, status int, data any) error {
	name := "layout"
	if WantsPartial(req) {
		name = "content"
	}
	return r.renderTemplate(w, name, status, data)
}

// RenderError renders the standalone error page.
func (r *TemplateRenderer) RenderError(w http.ResponseWriter, _ *http.Request, status int, data any) error {
	return r.renderTemplate(w, "error-layout", status, data)
}

func (r *TemplateRenderer) renderTemplate(w http.ResponseWriter, name string, status int, data any) error {
	var buf bytes.Buffer
	if err := r.t.ExecuteTemplate(&buf, name, data); err != nil {
		r.log().Error("template execution failed",
			slog.String("template", name),
			slog.Any("error", err),
		)
		return err
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if _, err := buf.WriteTo(w); err != nil {
		r.log().Error("failed to write rendered template",
			slog.String("template", name),
			slog.Any("error", err),
		)
		return err
	}
	return nil
}

func roleLabel(role domainauth.Role) string {
	switch role {
	case domainauth.RoleTeacher:
		return "教师"
	case domainauth.RoleOfficer:
		return "教务"
	case domainauth.RoleStudent:
		return "学生"
	default:
		return string(role)
	}
}

func templateFuncs(t **template.Template) template.FuncMap {
	return template.FuncMap{
		"sectionTmpl": ContentTemplateFor,
		"renderSection": func(page string, data any) (template.HTML, error) {
			if t == nil || *t == nil {
				return "", errors.New("template not initialized")
			}
			var buf bytes.Buffer
			if err := (*t).ExecuteTemplate(&buf, ContentTemplateFor(page), data); err != nil {
				return "", err
			}
			// #nosec G203 - output of our own html/template set, already escaped.
			return template.HTML(buf.String()), nil
		},
		"fieldError": func(errs map[string]string, field string) string {
			return errs[field]
		},
		"roleLabel": roleLabel,
	}
}
