package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coursedesk/coursedesk/internal/adapters/devapi"
	"github.com/coursedesk/coursedesk/internal/adapters/filestore"
	domainauth "github.com/coursedesk/coursedesk/internal/domain/auth"
)

type harness struct {
	backend     *devapi.Server
	configFile  string
	sessionFile string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	t.Setenv("NO_COLOR", "1")
	backend, err := devapi.New(devapi.Config{
		Secret: "cli-test-secret",
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)
	srv := httptest.NewServer(backend)
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	h := &harness{
		backend:     backend,
		configFile:  filepath.Join(dir, "coursedesk.yaml"),
		sessionFile: filepath.Join(dir, "sessions.json"),
	}
	yaml := "server:\n  base_url: " + srv.URL + "\n  timeout: 5s\n" +
		"session:\n  file: " + h.sessionFile + "\n" +
		"output:\n  colors: false\n" +
		"logging:\n  level: error\n"
	require.NoError(t, os.WriteFile(h.configFile, []byte(yaml), 0o600))
	return h
}

type result struct {
	out string
	err string
}

func (h *harness) run(t *testing.T, stdin string, args ...string) (result, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	args = append([]string{"--config", h.configFile}, args...)
	err := Execute(context.Background(), args, Options{
		Version: "1.2.3",
		In:      strings.NewReader(stdin),
		Out:     &out,
		Err:     &errOut,
	})
	return result{out: out.String(), err: errOut.String()}, err
}

func (h *harness) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	res, err := h.run(t, "", args...)
	require.NoError(t, err, "stderr: %s", res.err)
	return res.out
}

func TestLogin_ThenWhoamiAndMenu(t *testing.T) {
	h := newHarness(t)

	out := h.mustRun(t, "login", "13800000001", "--password", "teacher123")
	assert.Contains(t, out, "王老师")
	assert.Contains(t, out, "/teacher/dashboard")

	out = h.mustRun(t, "whoami", "--json")
	var id domainauth.Identity
	require.NoError(t, json.Unmarshal([]byte(out), &id))
	assert.Equal(t, domainauth.RoleTeacher, id.Role)
	assert.Equal(t, "王老师", id.RealName)

	out = h.mustRun(t, "whoami")
	assert.Contains(t, out, "teacher")
	assert.Contains(t, out, "default")

	out = h.mustRun(t, "menu")
	assert.Contains(t, out, "/teacher/grading")
	assert.NotContains(t, out, "/student")
	for _, line := range strings.Split(out, "\n") {
		if strings.Contains(line, "/teacher/dashboard") {
			assert.Contains(t, line, "*")
		}
	}

	out = h.mustRun(t, "menu", "--path", "/teacher/courses/7/assignments/new")
	for _, line := range strings.Split(out, "\n") {
		if strings.Contains(line, "/teacher/courses") {
			assert.Contains(t, line, "*")
		}
	}
}

func TestLogin_ReadsPasswordFromStdin(t *testing.T) {
	h := newHarness(t)

	res, err := h.run(t, "student123\n", "login", "13800000002")
	require.NoError(t, err)
	assert.Contains(t, res.out, "张三")
	assert.Contains(t, res.err, "Password:")
}

func TestLogin_WrongPasswordStoresNothing(t *testing.T) {
	h := newHarness(t)

	_, err := h.run(t, "", "login", "13800000001", "--password", "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "手机号或密码错误")

	_, err = h.run(t, "", "whoami")
	assert.ErrorIs(t, err, errNotSignedIn)
}

func TestLogout(t *testing.T) {
	h := newHarness(t)
	h.mustRun(t, "login", "13800000001", "--password", "teacher123")

	h.mustRun(t, "logout")

	_, err := h.run(t, "", "menu")
	assert.ErrorIs(t, err, errNotSignedIn)
}

func TestProfilesAreIndependent(t *testing.T) {
	h := newHarness(t)
	h.mustRun(t, "--profile", "work", "login", "13800000001", "--password", "teacher123")
	h.mustRun(t, "--profile", "kid", "login", "13800000002", "--password", "student123")

	out := h.mustRun(t, "--profile", "work", "whoami", "--json")
	assert.Contains(t, out, `"role": "teacher"`)
	out = h.mustRun(t, "--profile", "kid", "whoami", "--json")
	assert.Contains(t, out, `"role": "student"`)

	_, err := h.run(t, "", "whoami")
	assert.ErrorIs(t, err, errNotSignedIn, "default profile was never used")
}

func TestOpen(t *testing.T) {
	h := newHarness(t)

	res, err := h.run(t, "", "open", "/teacher/grading")
	require.NoError(t, err)
	assert.Contains(t, res.out, "/login")

	res, err = h.run(t, "", "open", "register")
	require.NoError(t, err)
	assert.Contains(t, res.out, "/register")

	h.mustRun(t, "login", "13800000002", "--password", "student123")

	res, err = h.run(t, "", "open", "/teacher/grading")
	require.NoError(t, err)
	assert.Contains(t, res.out, "/student/dashboard")
	assert.Contains(t, res.err, "student")

	res, err = h.run(t, "", "open", "/student/grades")
	require.NoError(t, err)
	assert.Contains(t, res.out, "[OK] /student/grades")
}

func TestGet(t *testing.T) {
	h := newHarness(t)

	_, err := h.run(t, "", "get", "/courses")
	assert.ErrorIs(t, err, errNotSignedIn)

	h.mustRun(t, "login", "13800000001", "--password", "teacher123")
	out := h.mustRun(t, "get", "/courses")

	var courses []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &courses))
	assert.NotEmpty(t, courses)
}

func TestGet_RejectedTokenClearsProfile(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, filestore.New(h.sessionFile).Save(context.Background(), "default", domainauth.Session{
		Token:     "forged",
		Identity:  domainauth.Identity{UserID: "1", Role: domainauth.RoleTeacher},
		ExpiresAt: time.Now().Add(time.Hour),
	}))

	res, err := h.run(t, "", "get", "/courses")
	assert.ErrorIs(t, err, errNotSignedIn)
	assert.Contains(t, res.err, "会话已失效")

	_, err = h.run(t, "", "whoami")
	assert.ErrorIs(t, err, errNotSignedIn)
}

func TestSendCodeThenLoginSMS(t *testing.T) {
	h := newHarness(t)

	out := h.mustRun(t, "send-code", "13800000003")
	assert.Contains(t, out, "验证码已发送")
	code := h.backend.LastCode("13800000003")
	require.NotEmpty(t, code)

	out = h.mustRun(t, "login-sms", "13800000003", "--code", code)
	assert.Contains(t, out, "/admin/dashboard")

	_, err := h.run(t, "", "send-code", "13800000003", "--type", "bogus")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "验证码类型无效")
}

func TestDevAPIFlag(t *testing.T) {
	h := newHarness(t)

	out := h.mustRun(t, "--devapi", "login", "13800000001", "--password", "teacher123")
	assert.Contains(t, out, "王老师")
	out = h.mustRun(t, "--devapi", "get", "/courses")
	assert.Contains(t, out, "[")
}

func TestVersion(t *testing.T) {
	h := newHarness(t)

	assert.Equal(t, "1.2.3\n", h.mustRun(t, "version", "--short"))

	var info map[string]string
	require.NoError(t, json.Unmarshal([]byte(h.mustRun(t, "version", "--json")), &info))
	for _, key := range []string{"version", "commit", "built", "goVersion", "platform"} {
		assert.Contains(t, info, key)
	}

	out := h.mustRun(t, "version")
	assert.Contains(t, out, "coursedesk-cli version 1.2.3")
}
