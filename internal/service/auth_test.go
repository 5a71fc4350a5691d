package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	domainauth "github.com/coursedesk/coursedesk/internal/domain/auth"
	apperrors "github.com/coursedesk/coursedesk/internal/errors"
	"github.com/coursedesk/coursedesk/internal/mocks"
	mockauth "github.com/coursedesk/coursedesk/internal/mocks/auth"
	"github.com/coursedesk/coursedesk/internal/ports"
)

var authNow = time.Date(2025, 10, 1, 9, 0, 0, 0, time.UTC)

func newAuth(t *testing.T, backend ports.AuthBackend, ttl time.Duration) (*AuthService, *SessionService) {
	t.Helper()
	sessions := NewSessionService(SessionServiceOptions{
		Repo: mockauth.NewMemorySessionRepository(),
		Now:  func() time.Time { return authNow },
	})
	svc := NewAuthService(AuthServiceOptions{
		Backend:    backend,
		Sessions:   sessions,
		SessionTTL: ttl,
		Now:        func() time.Time { return authNow },
	})
	return svc, sessions
}

func backendSession(role domainauth.Role) domainauth.Session {
	return domainauth.Session{
		Token:    "T1",
		Identity: domainauth.Identity{UserID: "3", Username: "zhao", RealName: "赵老师", Role: role},
	}
}

func TestAuthService_LoginWithPassword_Success(t *testing.T) {
	backend := &mockauth.FakeAuthBackend{
		LoginFunc: func(_ context.Context, in ports.PasswordLoginInput) (domainauth.Session, error) {
			assert.Equal(t, "13800000000", in.PhoneNumber)
			return backendSession(domainauth.RoleTeacher), nil
		},
	}
	svc, sessions := newAuth(t, backend, 2*time.Hour)
	ctx := context.Background()

	_, ok := sessions.Current(ctx, "sid")
	require.False(t, ok)

	sess, err := svc.LoginWithPassword(ctx, "sid", ports.PasswordLoginInput{PhoneNumber: " 13800000000 ", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, domainauth.RoleTeacher, sess.Identity.Role)
	assert.Equal(t, authNow.Add(2*time.Hour), sess.ExpiresAt)

	assert.True(t, sessions.HasValidToken(ctx, "sid"))
	cur, ok := sessions.Current(ctx, "sid")
	require.True(t, ok)
	assert.Equal(t, domainauth.RoleTeacher, cur.Identity.Role)
}

func TestAuthService_SessionWithoutTTLLastsUntilClear(t *testing.T) {
	backend := &mockauth.FakeAuthBackend{
		LoginFunc: func(context.Context, ports.PasswordLoginInput) (domainauth.Session, error) {
			return backendSession(domainauth.RoleStudent), nil
		},
	}
	clock := authNow
	sessions := NewSessionService(SessionServiceOptions{
		Repo: mockauth.NewMemorySessionRepository(),
		Now:  func() time.Time { return clock },
	})
	svc := NewAuthService(AuthServiceOptions{Backend: backend, Sessions: sessions, Now: func() time.Time { return clock }})
	ctx := context.Background()

	sess, err := svc.LoginWithPassword(ctx, "sid", ports.PasswordLoginInput{PhoneNumber: "13800000000", Password: "pw"})
	require.NoError(t, err)
	assert.True(t, sess.ExpiresAt.IsZero())

	for _, elapsed := range []time.Duration{12 * time.Hour, 30 * 24 * time.Hour} {
		clock = authNow.Add(elapsed)
		assert.True(t, sessions.HasValidToken(ctx, "sid"), "after %v", elapsed)
		assert.Equal(t, "T1", sessions.Token(ctx, "sid"))
	}

	require.NoError(t, sessions.Clear(ctx, "sid"))
	assert.False(t, sessions.HasValidToken(ctx, "sid"))
}

func TestAuthService_LoginWithPassword_Validation(t *testing.T) {
	backend := &mockauth.FakeAuthBackend{}
	svc, _ := newAuth(t, backend, 0)

	_, err := svc.LoginWithPassword(context.Background(), "sid", ports.PasswordLoginInput{PhoneNumber: "138"})
	assert.True(t, apperrors.IsValidation(err))
	assert.Empty(t, backend.Calls)
}

func TestAuthService_LoginRejectsUnknownRole(t *testing.T) {
	backend := &mockauth.FakeAuthBackend{
		LoginFunc: func(context.Context, ports.PasswordLoginInput) (domainauth.Session, error) {
			return backendSession("janitor"), nil
		},
	}
	svc, sessions := newAuth(t, backend, 0)

	_, err := svc.LoginWithPassword(context.Background(), "sid", ports.PasswordLoginInput{PhoneNumber: "1", Password: "p"})
	require.Error(t, err)
	assert.True(t, IsCredentialError(err))
	assert.False(t, sessions.HasValidToken(context.Background(), "sid"))
}

func TestAuthService_LoginRejectsMissingToken(t *testing.T) {
	backend := &mockauth.FakeAuthBackend{
		LoginBySMSFunc: func(context.Context, ports.SMSLoginInput) (domainauth.Session, error) {
			s := backendSession(domainauth.RoleStudent)
			s.Token = ""
			return s, nil
		},
	}
	svc, _ := newAuth(t, backend, 0)

	_, err := svc.LoginWithSMS(context.Background(), "sid", ports.SMSLoginInput{PhoneNumber: "1", Code: "123456"})
	assert.True(t, apperrors.IsUpstream(err))
}

func TestAuthService_LoginBackendErrorPropagates(t *testing.T) {
	ctrl := gomock.NewController(t)
	backend := mocks.NewMockAuthBackend(ctrl)
	backend.EXPECT().
		Login(gomock.Any(), ports.PasswordLoginInput{PhoneNumber: "13800000000", Password: "bad"}).
		Return(domainauth.Session{}, apperrors.Unauthorized("手机号或密码错误"))

	svc, sessions := newAuth(t, backend, 0)
	_, err := svc.LoginWithPassword(context.Background(), "sid", ports.PasswordLoginInput{PhoneNumber: "13800000000", Password: "bad"})
	require.Error(t, err)
	assert.True(t, IsCredentialError(err))
	assert.False(t, sessions.HasValidToken(context.Background(), "sid"))
}

func TestAuthService_SendCodeCooldown(t *testing.T) {
	backend := &mockauth.FakeAuthBackend{}
	svc, _ := newAuth(t, backend, 0)
	ctx := context.Background()

	require.NoError(t, svc.SendCode(ctx, "13800000000", ports.CodeLogin))
	err := svc.SendCode(ctx, "13800000000", ports.CodeLogin)
	require.Error(t, err)
	assert.True(t, apperrors.IsRateLimited(err))
	assert.Contains(t, apperrors.UserMessage(err, ""), "秒后再试")
	assert.Equal(t, []string{"SendCode"}, backend.Calls)
}

func TestAuthService_SendCodeFailureReleasesCooldown(t *testing.T) {
	fail := true
	backend := &mockauth.FakeAuthBackend{
		SendCodeFunc: func(context.Context, string, ports.CodePurpose) error {
			if fail {
				return apperrors.Upstream("down")
			}
			return nil
		},
	}
	svc, _ := newAuth(t, backend, 0)

	require.Error(t, svc.SendCode(context.Background(), "13800000000", ports.CodeRegister))
	fail = false
	require.NoError(t, svc.SendCode(context.Background(), "13800000000", ports.CodeRegister))
}

func TestAuthService_SendCodeValidation(t *testing.T) {
	svc, _ := newAuth(t, &mockauth.FakeAuthBackend{}, 0)

	err := svc.SendCode(context.Background(), "", ports.CodeLogin)
	assert.Equal(t, "phoneNumber", apperrors.GetField(err))

	err = svc.SendCode(context.Background(), "13800000000", "BOGUS")
	assert.Equal(t, "type", apperrors.GetField(err))
}

func TestAuthService_RegisterLogsIn(t *testing.T) {
	backend := &mockauth.FakeAuthBackend{
		RegisterFunc: func(_ context.Context, in ports.RegisterInput) error {
			assert.Equal(t, "student", in.Role)
			return nil
		},
		LoginFunc: func(_ context.Context, in ports.PasswordLoginInput) (domainauth.Session, error) {
			assert.Equal(t, "secret1", in.Password)
			return backendSession(domainauth.RoleStudent), nil
		},
	}
	svc, sessions := newAuth(t, backend, 0)

	res, err := svc.Register(context.Background(), "sid", ports.RegisterInput{
		PhoneNumber: "13800000000", Username: "new", Password: "secret1", Role: "Student", Code: "111111",
	})
	require.NoError(t, err)
	assert.True(t, res.LoggedIn)
	assert.Equal(t, []string{"Register", "Login"}, backend.Calls)
	assert.True(t, sessions.HasValidToken(context.Background(), "sid"))
}

func TestAuthService_RegisterFollowUpFailureIsNotError(t *testing.T) {
	backend := &mockauth.FakeAuthBackend{
		LoginFunc: func(context.Context, ports.PasswordLoginInput) (domainauth.Session, error) {
			return domainauth.Session{}, errors.New("backend busy")
		},
	}
	svc, sessions := newAuth(t, backend, 0)

	res, err := svc.Register(context.Background(), "sid", ports.RegisterInput{
		PhoneNumber: "13800000000", Password: "pw", Role: "teacher",
	})
	require.NoError(t, err)
	assert.False(t, res.LoggedIn)
	assert.False(t, sessions.HasValidToken(context.Background(), "sid"))
}

func TestAuthService_RegisterRejectsBadRole(t *testing.T) {
	backend := &mockauth.FakeAuthBackend{}
	svc, _ := newAuth(t, backend, 0)

	_, err := svc.Register(context.Background(), "sid", ports.RegisterInput{Role: "officer2"})
	assert.Equal(t, "role", apperrors.GetField(err))
	assert.Empty(t, backend.Calls)
}

func TestAuthService_ResetPasswordLogsIn(t *testing.T) {
	backend := &mockauth.FakeAuthBackend{
		LoginFunc: func(_ context.Context, in ports.PasswordLoginInput) (domainauth.Session, error) {
			assert.Equal(t, "newpw", in.Password)
			return backendSession(domainauth.RoleOfficer), nil
		},
	}
	svc, _ := newAuth(t, backend, 0)

	res, err := svc.ResetPassword(context.Background(), "sid", ports.ResetPasswordInput{
		PhoneNumber: "13800000000", Code: "222222", NewPassword: "newpw",
	})
	require.NoError(t, err)
	assert.True(t, res.LoggedIn)
	assert.Equal(t, domainauth.RoleOfficer, res.Session.Identity.Role)
}

func TestAuthService_ResetPasswordError(t *testing.T) {
	backend := &mockauth.FakeAuthBackend{
		ResetPasswordFunc: func(context.Context, ports.ResetPasswordInput) error {
			return apperrors.Validation("验证码错误或已过期")
		},
	}
	svc, _ := newAuth(t, backend, 0)

	_, err := svc.ResetPassword(context.Background(), "sid", ports.ResetPasswordInput{})
	assert.True(t, apperrors.IsValidation(err))
	assert.Equal(t, []string{"ResetPassword"}, backend.Calls)
}

func TestAuthService_Logout(t *testing.T) {
	backend := &mockauth.FakeAuthBackend{
		LoginFunc: func(context.Context, ports.PasswordLoginInput) (domainauth.Session, error) {
			return backendSession(domainauth.RoleTeacher), nil
		},
	}
	svc, sessions := newAuth(t, backend, 0)
	ctx := context.Background()

	_, err := svc.LoginWithPassword(ctx, "sid", ports.PasswordLoginInput{PhoneNumber: "1", Password: "p"})
	require.NoError(t, err)
	require.NoError(t, svc.Logout(ctx, "sid"))
	require.NoError(t, svc.Logout(ctx, "sid"))
	assert.False(t, sessions.HasValidToken(ctx, "sid"))
}
