package courseapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coursedesk/coursedesk/internal/adapters/authroles"
	domainauth "github.com/coursedesk/coursedesk/internal/domain/auth"
	apperrors "github.com/coursedesk/coursedesk/internal/errors"
	"github.com/coursedesk/coursedesk/internal/gateway"
	"github.com/coursedesk/coursedesk/internal/ports"
)

func newBackend(t *testing.T, h http.HandlerFunc) *Backend {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	client, err := gateway.New(gateway.Options{BaseURL: srv.URL})
	require.NoError(t, err)
	b, err := New(Options{Client: client, Roles: authroles.NewStaticRoleMapper(nil)})
	require.NoError(t, err)
	return b
}

func TestBackend_LoginMapsRole(t *testing.T) {
	var body ports.PasswordLoginInput
	b := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/users/login", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		_ = json.NewDecoder(r.Body).Decode(&body)
		_, _ = io.WriteString(w, `{"code":200,"user":{"userId":1,"username":"zhao","role":"OFFICER","token":"T1"}}`)
	})

	sess, err := b.Login(context.Background(), ports.PasswordLoginInput{PhoneNumber: "13800000000", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, "T1", sess.Token)
	assert.Equal(t, domainauth.RoleOfficer, sess.Identity.Role)
	assert.Equal(t, "13800000000", body.PhoneNumber)
}

func TestBackend_LoginKeepsUnknownRole(t *testing.T) {
	b := newBackend(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"code":200,"user":{"userId":1,"username":"root","role":"admin","token":"T1"}}`)
	})

	sess, err := b.Login(context.Background(), ports.PasswordLoginInput{PhoneNumber: "13800000000", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, domainauth.Role("admin"), sess.Identity.Role)
	assert.False(t, sess.Identity.Role.Valid())
}

func TestBackend_LoginRejected(t *testing.T) {
	b := newBackend(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := b.Login(context.Background(), ports.PasswordLoginInput{PhoneNumber: "1", Password: "x"})
	require.Error(t, err)
	assert.True(t, apperrors.IsUnauthorized(err))
	assert.Equal(t, "手机号或密码错误", apperrors.UserMessage(err, ""))
}

func TestBackend_EnvelopeMessageSurfaces(t *testing.T) {
	b := newBackend(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"code":400,"message":"该手机号已注册"}`)
	})

	err := b.Register(context.Background(), ports.RegisterInput{PhoneNumber: "13800000000"})
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
	assert.Equal(t, "该手机号已注册", apperrors.UserMessage(err, ""))
}

func TestBackend_UpstreamFailure(t *testing.T) {
	b := newBackend(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	err := b.SendCode(context.Background(), "13800000000", ports.CodeLogin)
	require.Error(t, err)
	assert.True(t, apperrors.IsUpstream(err))
	var se *gateway.StatusError
	assert.ErrorAs(t, err, &se)
}

func TestBackend_SendCodePayload(t *testing.T) {
	var got map[string]string
	b := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/sms/send", r.URL.Path)
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = io.WriteString(w, `{"code":200,"message":"发送成功"}`)
	})

	require.NoError(t, b.SendCode(context.Background(), "13800000000", ports.CodeResetPassword))
	assert.Equal(t, map[string]string{"phoneNumber": "13800000000", "type": "RESET_PASSWORD"}, got)
}

func TestBackend_LoginMissingIdentity(t *testing.T) {
	b := newBackend(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"code":200,"message":"ok"}`)
	})

	_, err := b.LoginBySMS(context.Background(), ports.SMSLoginInput{PhoneNumber: "1", Code: "123456"})
	require.Error(t, err)
	assert.True(t, apperrors.IsUpstream(err))
}
