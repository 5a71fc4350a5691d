package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/coursedesk/coursedesk/internal/domain/auth"
	apperrors "github.com/coursedesk/coursedesk/internal/errors"
	authmocks "github.com/coursedesk/coursedesk/internal/mocks/auth"
	"github.com/coursedesk/coursedesk/internal/service"
)

func TestCreateAssignment_PostsAndRedirects(t *testing.T) {
	var gotPath string
	var got service.AssignmentInput
	data := &authmocks.FakeDataBackend{
		PostFunc: func(_ context.Context, path string, body any) (json.RawMessage, error) {
			gotPath = path
			got, _ = body.(service.AssignmentInput)
			return json.RawMessage(`{"assignmentId":9}`), nil
		},
	}
	h := newHarness(t, harnessOptions{data: data})
	h.seed(t, "tea", domainauth.RoleTeacher)

	rec := h.postForm("/teacher/courses/7/assignments/new", "tea", url.Values{
		"assignmentTitle":   {" 第一次作业 "},
		"assignmentContent": {"完成习题 1-10"},
		"endTime":           {"2026-11-01T23:59"},
	})

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/teacher/courses", rec.Header().Get("Location"))
	assert.Equal(t, "/assignments", gotPath)
	assert.Equal(t, service.AssignmentInput{
		CourseID:          "7",
		TeacherID:         "1",
		AssignmentTitle:   "第一次作业",
		AssignmentContent: "完成习题 1-10",
		EndTime:           "2026-11-01T23:59",
	}, got)
}

func TestCreateAssignment_MissingTitle(t *testing.T) {
	posted := false
	data := &authmocks.FakeDataBackend{
		PostFunc: func(context.Context, string, any) (json.RawMessage, error) {
			posted = true
			return nil, nil
		},
	}
	h := newHarness(t, harnessOptions{data: data})
	h.seed(t, "tea", domainauth.RoleTeacher)

	rec := h.postForm("/teacher/courses/7/assignments/new", "tea", url.Values{"assignmentContent": {"草稿"}})

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "此项为必填项")
	assert.Contains(t, rec.Body.String(), "草稿")
	assert.False(t, posted)
}

func TestCreateAssignment_BackendRejection(t *testing.T) {
	data := &authmocks.FakeDataBackend{
		PostFunc: func(context.Context, string, any) (json.RawMessage, error) {
			return nil, apperrors.Validation("课程已结课，无法发布作业")
		},
	}
	h := newHarness(t, harnessOptions{data: data})
	h.seed(t, "tea", domainauth.RoleTeacher)

	rec := h.postForm("/teacher/courses/7/assignments/new", "tea", url.Values{"assignmentTitle": {"期末作业"}})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "课程已结课，无法发布作业")
}

func TestCreateAssignment_StudentIsSentHome(t *testing.T) {
	h := newHarness(t, harnessOptions{})
	h.seed(t, "stu", domainauth.RoleStudent)

	rec := h.postForm("/teacher/courses/7/assignments/new", "stu", url.Values{"assignmentTitle": {"x"}})

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/student/dashboard", rec.Header().Get("Location"))
}

func TestNewAssignmentPage(t *testing.T) {
	h := newHarness(t, harnessOptions{})
	h.seed(t, "tea", domainauth.RoleTeacher)

	rec := h.get("/teacher/courses/7/assignments/new", "tea")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `action="/teacher/courses/7/assignments/new"`)
}
