package httpx

import (
	"net/http"

	"github.com/coursedesk/coursedesk/internal/domain/nav"
)

// PageMeta names the page being rendered.
type PageMeta struct {
	Title string
	Page  string
}

// TemplateDataBuilder provides a fluent API for building template data maps.
type TemplateDataBuilder struct {
	data map[string]any
}

// NewTemplateData creates a builder initialized with the per-request basics:
// title, page, CSRF token, current path and the signed-in user when the guard
// attached one.
func NewTemplateData(r *http.Request, meta PageMeta) *TemplateDataBuilder {
	data := map[string]any{
		"Title":       meta.Title,
		"Page":        meta.Page,
		"CSRFToken":   GetCSRFToken(r),
		"CurrentPath": r.URL.Path,
		"Menu":        []nav.MenuItem{},
	}
	if s, ok := GetSessionFromContext(r.Context()); ok {
		data["User"] = s.Identity
		data["LoggedIn"] = true
	}
	return &TemplateDataBuilder{data: data}
}

// WithMenu sets the role menu.
func (b *TemplateDataBuilder) WithMenu(items []nav.MenuItem) *TemplateDataBuilder {
	b.data["Menu"] = items
	return b
}

// WithError sets a general error message.
func (b *TemplateDataBuilder) WithError(msg string) *TemplateDataBuilder {
	if msg != "" {
		b.data["Error"] = true
		b.data["ErrorMessage"] = msg
	}
	return b
}

// WithNotice sets an informational banner.
func (b *TemplateDataBuilder) WithNotice(msg string) *TemplateDataBuilder {
	if msg != "" {
		b.data["Notice"] = msg
	}
	return b
}

// WithFieldErrors adds field-level validation errors.
func (b *TemplateDataBuilder) WithFieldErrors(errs map[string]string) *TemplateDataBuilder {
	if len(errs) > 0 {
		b.data["Errors"] = errs
	}
	return b
}

// With adds a custom field to the template data.
func (b *TemplateDataBuilder) With(key string, value any) *TemplateDataBuilder {
	b.data[key] = value
	return b
}

// Build returns the final template data map.
func (b *TemplateDataBuilder) Build() map[string]any {
	return b.data
}
