package service

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	domainauth "github.com/coursedesk/coursedesk/internal/domain/auth"
	apperrors "github.com/coursedesk/coursedesk/internal/errors"
	"github.com/coursedesk/coursedesk/internal/ports"
)

// AuthServiceOptions groups dependencies for AuthService.
type AuthServiceOptions struct {
	Backend  ports.AuthBackend
	Sessions *SessionService
	Cooldown *CodeCooldown
	// SessionTTL sets ExpiresAt on new sessions; zero keeps them until logout or 401.
	SessionTTL time.Duration
	Logger     *slog.Logger
	Now        func() time.Time
}

// AuthService runs the credential flows and persists the resulting session.
type AuthService struct {
	backend  ports.AuthBackend
	sessions *SessionService
	cooldown *CodeCooldown
	ttl      time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// NewAuthService constructs a new AuthService.
func NewAuthService(opts AuthServiceOptions) *AuthService {
	cooldown := opts.Cooldown
	if cooldown == nil {
		cooldown = NewCodeCooldown(DefaultCodeCooldown)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &AuthService{
		backend:  opts.Backend,
		sessions: opts.Sessions,
		cooldown: cooldown,
		ttl:      opts.SessionTTL,
		logger:   opts.Logger,
		now:      now,
	}
}

func (s *AuthService) log() *slog.Logger {
	if s.logger != nil {
		return s.logger
	}
	return slog.Default()
}

var errRoleUnknown = apperrors.Unauthorized("该账号未分配有效角色，请联系管理员")

// LoginWithPassword authenticates with phone and password and stores the session under key.
func (s *AuthService) LoginWithPassword(
	ctx context.Context,
	key string,
	in ports.PasswordLoginInput,
) (domainauth.Session, error) {
	in.PhoneNumber = strings.TrimSpace(in.PhoneNumber)
	if in.PhoneNumber == "" || in.Password == "" {
		return domainauth.Session{}, apperrors.Validation("请输入手机号和密码")
	}
	sess, err := s.backend.Login(ctx, in)
	if err != nil {
		return domainauth.Session{}, err
	}
	return s.establish(ctx, key, sess, "password")
}

// LoginWithSMS authenticates with phone and verification code and stores the session under key.
func (s *AuthService) LoginWithSMS(ctx context.Context, key string, in ports.SMSLoginInput) (domainauth.Session, error) {
	in.PhoneNumber = strings.TrimSpace(in.PhoneNumber)
	in.Code = strings.TrimSpace(in.Code)
	if in.PhoneNumber == "" || in.Code == "" {
		return domainauth.Session{}, apperrors.Validation("请输入手机号和验证码")
	}
	sess, err := s.backend.LoginBySMS(ctx, in)
	if err != nil {
		return domainauth.Session{}, err
	}
	return s.establish(ctx, key, sess, "sms")
}

// establish validates the backend's answer and persists it.
// Sessions without a token or a known role are never stored.
func (s *AuthService) establish(
	ctx context.Context,
	key string,
	sess domainauth.Session,
	method string,
) (domainauth.Session, error) {
	if !sess.HasToken() {
		return domainauth.Session{}, apperrors.Upstream("登录响应缺少令牌")
	}
	if !sess.Identity.Role.Valid() {
		s.log().WarnContext(ctx, "login rejected: unknown role",
			"component", "auth", "user_id", sess.Identity.UserID, "role", string(sess.Identity.Role))
		return domainauth.Session{}, errRoleUnknown
	}
	if s.ttl > 0 {
		sess.ExpiresAt = s.now().Add(s.ttl)
	}
	if err := s.sessions.Save(ctx, key, sess); err != nil {
		return domainauth.Session{}, apperrors.Wrap(err, apperrors.ErrCodeInternal, "会话保存失败，请重试")
	}
	s.log().InfoContext(ctx, "user logged in",
		"component", "auth", "method", method, "user_id", sess.Identity.UserID, "role", string(sess.Identity.Role))
	return sess, nil
}

// SendCode asks the backend to deliver a verification code, at most once per
// phone per cooldown interval.
func (s *AuthService) SendCode(ctx context.Context, phone string, purpose ports.CodePurpose) error {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return apperrors.ValidationField("phoneNumber", "请输入手机号")
	}
	switch purpose {
	case ports.CodeRegister, ports.CodeLogin, ports.CodeResetPassword:
	default:
		return apperrors.ValidationField("type", "验证码类型无效")
	}

	if ok, wait := s.cooldown.Reserve(phone); !ok {
		secs := int(math.Ceil(wait.Seconds()))
		return apperrors.RateLimited(fmt.Sprintf("请 %d 秒后再试", secs))
	}
	if err := s.backend.SendCode(ctx, phone, purpose); err != nil {
		s.cooldown.Release(phone)
		return err
	}
	s.log().InfoContext(ctx, "verification code requested", "component", "auth", "purpose", string(purpose))
	return nil
}

// FollowUpResult reports whether the automatic login after registration or
// password reset produced a session.
type FollowUpResult struct {
	Session  domainauth.Session
	LoggedIn bool
}

// Register creates an account and then tries to log in with the new password.
// A failed follow-up login is not an error; the caller sends the user to /login.
func (s *AuthService) Register(ctx context.Context, key string, in ports.RegisterInput) (FollowUpResult, error) {
	if !domainauth.ParseRole(in.Role).Valid() {
		return FollowUpResult{}, apperrors.ValidationField("role", "请选择身份")
	}
	in.Role = string(domainauth.ParseRole(in.Role))
	if err := s.backend.Register(ctx, in); err != nil {
		return FollowUpResult{}, err
	}
	s.log().InfoContext(ctx, "account registered", "component", "auth", "role", in.Role)
	return s.followUpLogin(ctx, key, in.PhoneNumber, in.Password), nil
}

// ResetPassword sets a new password via verification code and then tries to log in.
func (s *AuthService) ResetPassword(
	ctx context.Context,
	key string,
	in ports.ResetPasswordInput,
) (FollowUpResult, error) {
	if err := s.backend.ResetPassword(ctx, in); err != nil {
		return FollowUpResult{}, err
	}
	s.log().InfoContext(ctx, "password reset", "component", "auth")
	return s.followUpLogin(ctx, key, in.PhoneNumber, in.NewPassword), nil
}

func (s *AuthService) followUpLogin(ctx context.Context, key, phone, password string) FollowUpResult {
	sess, err := s.LoginWithPassword(ctx, key, ports.PasswordLoginInput{PhoneNumber: phone, Password: password})
	if err != nil {
		s.log().WarnContext(ctx, "automatic login failed", "component", "auth", "error", err)
		return FollowUpResult{}
	}
	return FollowUpResult{Session: sess, LoggedIn: true}
}

// Logout clears the session for key.
func (s *AuthService) Logout(ctx context.Context, key string) error {
	if err := s.sessions.Clear(ctx, key); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	s.log().InfoContext(ctx, "user logged out", "component", "auth")
	return nil
}

// IsCredentialError reports whether err means the credentials were wrong
// rather than the backend being unavailable.
func IsCredentialError(err error) bool {
	return apperrors.IsUnauthorized(err) || apperrors.IsValidation(err)
}
