package httpx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	domainauth "github.com/coursedesk/coursedesk/internal/domain/auth"
	"github.com/coursedesk/coursedesk/internal/domain/nav"
	apperrors "github.com/coursedesk/coursedesk/internal/errors"
	"github.com/coursedesk/coursedesk/internal/gateway"
	"github.com/coursedesk/coursedesk/internal/http/validation"
	"github.com/coursedesk/coursedesk/internal/service"
)

// AssignmentCreator posts new assignments to the course backend.
type AssignmentCreator interface {
	CreateAssignment(ctx context.Context, teacher domainauth.Identity, courseID string, in service.AssignmentInput) error
}

// ScreenHandlers renders the role screens behind the guard.
type ScreenHandlers struct {
	Renderer    *TemplateRenderer
	Routes      nav.RoleRouteMap
	Assignments AssignmentCreator
	Validator   *validation.Validator
	Logger      *slog.Logger
}

func (h *ScreenHandlers) logger() *slog.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

// Screen returns a handler that loads a screen and renders it with the role
// menu. params names the path wildcards passed through to the loader.
func (h *ScreenHandlers) Screen(load service.ScreenFunc, params ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := IdentityFromContext(r.Context())
		req := service.ScreenRequest{
			Identity: id,
			Params:   make(map[string]string, len(params)),
			Query:    r.URL.Query(),
		}
		for _, p := range params {
			req.Params[p] = r.PathValue(p)
		}

		screen, err := load(r.Context(), req)
		builder := h.page(r, id, screen.Title)
		status := http.StatusOK
		if err != nil {
			status = h.failure(r, builder, err)
		}
		h.render(w, r, status, builder.With("Screen", screen).Build())
	}
}

type assignmentForm struct {
	AssignmentTitle   string `form:"assignmentTitle" validate:"required,max=100"`
	AssignmentContent string `form:"assignmentContent" validate:"max=5000"`
	StartTime         string `form:"startTime"`
	EndTime           string `form:"endTime"`
}

// NewAssignmentPage renders the assignment form.
// GET /teacher/courses/{courseId}/assignments/new.
func (h *ScreenHandlers) NewAssignmentPage(w http.ResponseWriter, r *http.Request) {
	id := IdentityFromContext(r.Context())
	data := h.assignmentPage(r, id, map[string]string{}).Build()
	h.render(w, r, http.StatusOK, data)
}

// CreateAssignment submits the assignment form.
// POST /teacher/courses/{courseId}/assignments/new.
func (h *ScreenHandlers) CreateAssignment(w http.ResponseWriter, r *http.Request) {
	id := IdentityFromContext(r.Context())
	form := assignmentForm{
		AssignmentTitle:   strings.TrimSpace(r.PostFormValue("assignmentTitle")),
		AssignmentContent: strings.TrimSpace(r.PostFormValue("assignmentContent")),
		StartTime:         strings.TrimSpace(r.PostFormValue("startTime")),
		EndTime:           strings.TrimSpace(r.PostFormValue("endTime")),
	}
	values := map[string]string{
		"assignmentTitle":   form.AssignmentTitle,
		"assignmentContent": form.AssignmentContent,
		"startTime":         form.StartTime,
		"endTime":           form.EndTime,
	}

	if err := h.Validator.Struct(form); err != nil {
		var fe validation.FieldErrors
		if !errors.As(err, &fe) {
			fe = validation.FieldErrors{}
		}
		h.render(w, r, http.StatusUnprocessableEntity, h.assignmentPage(r, id, values).WithFieldErrors(fe).Build())
		return
	}

	err := h.Assignments.CreateAssignment(r.Context(), id, r.PathValue("courseId"), service.AssignmentInput{
		AssignmentTitle:   form.AssignmentTitle,
		AssignmentContent: form.AssignmentContent,
		StartTime:         form.StartTime,
		EndTime:           form.EndTime,
	})
	if err != nil {
		builder := h.assignmentPage(r, id, values)
		status := h.failure(r, builder, err)
		if f := apperrors.GetField(err); f != "" {
			builder.WithFieldErrors(map[string]string{f: apperrors.UserMessage(err, "")})
		}
		h.render(w, r, status, builder.Build())
		return
	}
	Navigate(w, r, "/teacher/courses")
}

func (h *ScreenHandlers) assignmentPage(r *http.Request, id domainauth.Identity, values map[string]string) *TemplateDataBuilder {
	return NewTemplateData(r, PageMeta{Title: "发布作业", Page: PageAssignmentNew}).
		WithMenu(h.Routes.Compose(id.Role, r.URL.Path)).
		With("CourseID", r.PathValue("courseId")).
		With("Form", values)
}

func (h *ScreenHandlers) page(r *http.Request, id domainauth.Identity, title string) *TemplateDataBuilder {
	return NewTemplateData(r, PageMeta{Title: title, Page: PageScreen}).
		WithMenu(h.Routes.Compose(id.Role, r.URL.Path))
}

// failure sets the banner for err and returns the response status.
func (h *ScreenHandlers) failure(r *http.Request, b *TemplateDataBuilder, err error) int {
	status, _ := StatusFor(err)
	switch {
	case errors.Is(err, gateway.ErrCredentialRejected):
		b.WithError("登录已失效，请重新登录")
	case IsClientError(err):
		b.WithError(apperrors.UserMessage(err, "请求的内容不存在"))
	default:
		h.logger().ErrorContext(r.Context(), "screen load failed",
			"component", "screens", "path", r.URL.Path, "error", err)
		b.WithError("数据加载失败，请稍后再试")
	}
	return status
}

func (h *ScreenHandlers) render(w http.ResponseWriter, r *http.Request, status int, data map[string]any) {
	if err := h.Renderer.Render(w, r, status, data); err != nil {
		http.Error(w, "template error", http.StatusInternalServerError)
	}
}
