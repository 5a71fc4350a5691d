// Package courseapi implements the credential endpoints of the course backend over the gateway.
package courseapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	domainauth "github.com/coursedesk/coursedesk/internal/domain/auth"
	apperrors "github.com/coursedesk/coursedesk/internal/errors"
	"github.com/coursedesk/coursedesk/internal/gateway"
	"github.com/coursedesk/coursedesk/internal/ports"
)

// Backend paths, relative to the API prefix.
const (
	PathLogin         = "/users/login"
	PathLoginSMS      = "/users/login-sms"
	PathSendCode      = "/sms/send"
	PathRegister      = "/users/register"
	PathResetPassword = "/users/reset-password"
)

// Options configures Backend.
type Options struct {
	Client    *gateway.Client
	Extractor *gateway.Extractor
	Roles     ports.RoleMapper
}

// Backend implements ports.AuthBackend.
type Backend struct {
	client    *gateway.Client
	extractor *gateway.Extractor
	roles     ports.RoleMapper
}

var _ ports.AuthBackend = (*Backend)(nil)

// New constructs a Backend. A nil Extractor selects the default expressions.
func New(opts Options) (*Backend, error) {
	if opts.Client == nil {
		return nil, errors.New("courseapi: client is required")
	}
	x := opts.Extractor
	if x == nil {
		var err error
		if x, err = gateway.NewExtractor("", ""); err != nil {
			return nil, err
		}
	}
	return &Backend{client: opts.Client, extractor: x, roles: opts.Roles}, nil
}

func (b *Backend) Login(ctx context.Context, in ports.PasswordLoginInput) (domainauth.Session, error) {
	return b.login(ctx, PathLogin, in, "手机号或密码错误")
}

func (b *Backend) LoginBySMS(ctx context.Context, in ports.SMSLoginInput) (domainauth.Session, error) {
	return b.login(ctx, PathLoginSMS, in, "验证码错误或已过期")
}

func (b *Backend) login(ctx context.Context, path string, body any, rejected string) (domainauth.Session, error) {
	resp, err := b.client.Do(ctx, gateway.Request{Method: http.MethodPost, Path: path, Body: body})
	if err != nil {
		return domainauth.Session{}, mapError(err, rejected)
	}

	token, identity, err := b.extractor.Extract(resp.Raw)
	if err != nil {
		return domainauth.Session{}, apperrors.Wrap(err, apperrors.ErrCodeUpstream, "登录响应无法识别")
	}
	if b.roles != nil {
		identity.Role = b.roles.Map(string(identity.Role))
	} else {
		identity.Role = domainauth.ParseRole(string(identity.Role))
	}
	return domainauth.Session{Token: token, Identity: identity}, nil
}

func (b *Backend) SendCode(ctx context.Context, phone string, purpose ports.CodePurpose) error {
	body := map[string]string{"phoneNumber": phone, "type": string(purpose)}
	if _, err := b.client.PostData(ctx, PathSendCode, body); err != nil {
		return mapError(err, "验证码发送失败")
	}
	return nil
}

func (b *Backend) Register(ctx context.Context, in ports.RegisterInput) error {
	if _, err := b.client.PostData(ctx, PathRegister, in); err != nil {
		return mapError(err, "注册失败")
	}
	return nil
}

func (b *Backend) ResetPassword(ctx context.Context, in ports.ResetPasswordInput) error {
	if _, err := b.client.PostData(ctx, PathResetPassword, in); err != nil {
		return mapError(err, "验证码错误或已过期")
	}
	return nil
}

// mapError turns gateway failures into user-facing AppErrors.
// Envelope messages from the backend are shown verbatim.
func mapError(err error, rejected string) error {
	var env *gateway.EnvelopeError
	switch {
	case errors.Is(err, gateway.ErrCredentialRejected):
		return apperrors.Wrap(err, apperrors.ErrCodeUnauthorized, rejected)
	case errors.As(err, &env):
		msg := env.Message
		if msg == "" {
			msg = rejected
		}
		return apperrors.Wrap(err, apperrors.ErrCodeValidation, msg)
	default:
		return apperrors.Wrap(fmt.Errorf("course backend: %w", err), apperrors.ErrCodeUpstream, "课程服务暂时不可用，请稍后再试")
	}
}
