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
	"github.com/coursedesk/coursedesk/internal/http/validation"
	"github.com/coursedesk/coursedesk/internal/ports"
	"github.com/coursedesk/coursedesk/internal/service"
)

// AuthFlows defines the credential operations the auth handlers drive.
type AuthFlows interface {
	LoginWithPassword(ctx context.Context, key string, in ports.PasswordLoginInput) (domainauth.Session, error)
	LoginWithSMS(ctx context.Context, key string, in ports.SMSLoginInput) (domainauth.Session, error)
	SendCode(ctx context.Context, phone string, purpose ports.CodePurpose) error
	Register(ctx context.Context, key string, in ports.RegisterInput) (service.FollowUpResult, error)
	ResetPassword(ctx context.Context, key string, in ports.ResetPasswordInput) (service.FollowUpResult, error)
	Logout(ctx context.Context, key string) error
}

// SessionStore is the part of the session store the handlers use directly.
type SessionStore interface {
	SessionReader
	Clear(ctx context.Context, key string) error
}

// AuthHandlers provides HTTP handlers for the login, registration and
// password reset pages.
type AuthHandlers struct {
	Svc       AuthFlows
	Sessions  SessionStore
	Renderer  *TemplateRenderer
	Routes    nav.RoleRouteMap
	Cookie    CookieConfig
	Validator *validation.Validator
	Logger    *slog.Logger
}

func (h *AuthHandlers) logger() *slog.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

const unavailableMessage = "服务暂时不可用，请稍后再试"

var loginNotices = map[string]string{
	"registered": "注册成功，请登录",
	"reset":      "密码已重置，请使用新密码登录",
	"expired":    "登录已过期，请重新登录",
}

type loginForm struct {
	PhoneNumber string `form:"phoneNumber" validate:"required,cnphone"`
	Password    string `form:"password" validate:"required"`
}

type smsLoginForm struct {
	PhoneNumber string `form:"phoneNumber" validate:"required,cnphone"`
	Code        string `form:"code" validate:"required,smscode"`
}

type registerForm struct {
	PhoneNumber     string `form:"phoneNumber" validate:"required,cnphone"`
	Code            string `form:"code" validate:"required,smscode"`
	Username        string `form:"username" validate:"required,max=50"`
	RealName        string `form:"realName" validate:"max=50"`
	Email           string `form:"email" validate:"omitempty,email"`
	Password        string `form:"password" validate:"required,min=6,max=64"`
	ConfirmPassword string `form:"confirmPassword" validate:"eqfield=Password"`
	Role            string `form:"role" validate:"required,oneof=teacher student officer"`
}

type resetForm struct {
	PhoneNumber     string `form:"phoneNumber" validate:"required,cnphone"`
	Code            string `form:"code" validate:"required,smscode"`
	NewPassword     string `form:"newPassword" validate:"required,min=6,max=64"`
	ConfirmPassword string `form:"confirmPassword" validate:"eqfield=NewPassword"`
}

// LoginPage renders the login form. GET /login.
func (h *AuthHandlers) LoginPage(w http.ResponseWriter, r *http.Request) {
	notice := loginNotices[r.URL.Query().Get("notice")]
	h.renderForm(w, r, formView{page: nav.LoginPath, name: PageLogin, title: "登录", notice: notice})
}

// Login handles phone/password login. POST /login.
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	form := loginForm{
		PhoneNumber: strings.TrimSpace(r.PostFormValue("phoneNumber")),
		Password:    r.PostFormValue("password"),
	}
	view := formView{page: nav.LoginPath, name: PageLogin, title: "登录", values: map[string]string{
		"phoneNumber": form.PhoneNumber, "mode": "password",
	}}
	if !h.validate(w, r, form, view) {
		return
	}
	h.establish(w, r, view, func(ctx context.Context, key string) error {
		_, err := h.Svc.LoginWithPassword(ctx, key, ports.PasswordLoginInput(form))
		return err
	})
}

// LoginSMS handles phone/verification code login. POST /login/sms.
func (h *AuthHandlers) LoginSMS(w http.ResponseWriter, r *http.Request) {
	form := smsLoginForm{
		PhoneNumber: strings.TrimSpace(r.PostFormValue("phoneNumber")),
		Code:        strings.TrimSpace(r.PostFormValue("code")),
	}
	view := formView{page: nav.LoginPath, name: PageLogin, title: "登录", values: map[string]string{
		"phoneNumber": form.PhoneNumber, "mode": "sms",
	}}
	if !h.validate(w, r, form, view) {
		return
	}
	h.establish(w, r, view, func(ctx context.Context, key string) error {
		_, err := h.Svc.LoginWithSMS(ctx, key, ports.SMSLoginInput(form))
		return err
	})
}

// RegisterPage renders the registration form. GET /register.
func (h *AuthHandlers) RegisterPage(w http.ResponseWriter, r *http.Request) {
	h.renderForm(w, r, formView{page: "/register", name: PageRegister, title: "注册"})
}

// Register creates an account and signs the user in when possible. POST /register.
func (h *AuthHandlers) Register(w http.ResponseWriter, r *http.Request) {
	form := registerForm{
		PhoneNumber:     strings.TrimSpace(r.PostFormValue("phoneNumber")),
		Code:            strings.TrimSpace(r.PostFormValue("code")),
		Username:        strings.TrimSpace(r.PostFormValue("username")),
		RealName:        strings.TrimSpace(r.PostFormValue("realName")),
		Email:           strings.TrimSpace(r.PostFormValue("email")),
		Password:        r.PostFormValue("password"),
		ConfirmPassword: r.PostFormValue("confirmPassword"),
		Role:            r.PostFormValue("role"),
	}
	view := formView{page: "/register", name: PageRegister, title: "注册", values: map[string]string{
		"phoneNumber": form.PhoneNumber, "username": form.Username, "realName": form.RealName,
		"email": form.Email, "role": form.Role,
	}}
	if !h.validate(w, r, form, view) {
		return
	}
	h.followUp(w, r, view, "registered", func(ctx context.Context, key string) (service.FollowUpResult, error) {
		return h.Svc.Register(ctx, key, ports.RegisterInput{
			PhoneNumber: form.PhoneNumber,
			Username:    form.Username,
			Password:    form.Password,
			Role:        form.Role,
			Code:        form.Code,
			RealName:    form.RealName,
			Email:       form.Email,
		})
	})
}

// ForgotPasswordPage renders the reset form. GET /forgot-password.
func (h *AuthHandlers) ForgotPasswordPage(w http.ResponseWriter, r *http.Request) {
	h.renderForm(w, r, formView{page: "/forgot-password", name: PageForgotPassword, title: "找回密码"})
}

// ForgotPassword resets the password with a verification code. POST /forgot-password.
func (h *AuthHandlers) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	form := resetForm{
		PhoneNumber:     strings.TrimSpace(r.PostFormValue("phoneNumber")),
		Code:            strings.TrimSpace(r.PostFormValue("code")),
		NewPassword:     r.PostFormValue("newPassword"),
		ConfirmPassword: r.PostFormValue("confirmPassword"),
	}
	view := formView{page: "/forgot-password", name: PageForgotPassword, title: "找回密码", values: map[string]string{
		"phoneNumber": form.PhoneNumber,
	}}
	if !h.validate(w, r, form, view) {
		return
	}
	h.followUp(w, r, view, "reset", func(ctx context.Context, key string) (service.FollowUpResult, error) {
		return h.Svc.ResetPassword(ctx, key, ports.ResetPasswordInput{
			PhoneNumber: form.PhoneNumber,
			Code:        form.Code,
			NewPassword: form.NewPassword,
		})
	})
}

type sendCodeRequest struct {
	PhoneNumber string `json:"phoneNumber"`
	Type        string `json:"type"`
}

// SendCode requests a verification code. POST /auth/send-code (JSON).
func (h *AuthHandlers) SendCode(w http.ResponseWriter, r *http.Request) {
	var req sendCodeRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	if !validation.Phone(req.PhoneNumber) {
		WriteError(w, ErrorParams{
			Code:    http.StatusBadRequest,
			ErrCode: string(apperrors.ErrCodeValidation),
			Err:     errors.New("请输入有效的11位手机号"),
			Field:   "phoneNumber",
		})
		return
	}
	purpose := ports.CodePurpose(strings.ToUpper(strings.TrimSpace(req.Type)))
	if err := h.Svc.SendCode(r.Context(), strings.TrimSpace(req.PhoneNumber), purpose); err != nil {
		if !IsClientError(err) {
			h.logger().WarnContext(r.Context(), "send code failed", "component", "auth", "error", err)
		}
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"message": "验证码已发送"})
}

// Logout clears the session and the cookie. POST /logout.
func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	if key := h.Cookie.sessionKeyFromRequest(r); key != "" {
		if err := h.Svc.Logout(r.Context(), key); err != nil {
			h.logger().ErrorContext(r.Context(), "logout failed", "component", "auth", "error", err)
		}
	}
	h.Cookie.clear(w, r)
	Navigate(w, r, nav.LoginPath)
}

// IsClientError reports errors caused by the request rather than the system.
func IsClientError(err error) bool {
	return service.IsCredentialError(err) || apperrors.IsRateLimited(err) || apperrors.IsNotFound(err)
}

type formView struct {
	page   string
	name   string
	title  string
	notice string
	values map[string]string
}

func (h *AuthHandlers) renderForm(w http.ResponseWriter, r *http.Request, v formView) {
	h.renderFormStatus(w, r, v, http.StatusOK, "", nil)
}

func (h *AuthHandlers) renderFormStatus(
	w http.ResponseWriter,
	r *http.Request,
	v formView,
	status int,
	msg string,
	fieldErrs map[string]string,
) {
	values := v.values
	if values == nil {
		values = map[string]string{}
	}
	data := NewTemplateData(r, PageMeta{Title: v.title, Page: v.name}).
		WithNotice(v.notice).
		WithError(msg).
		WithFieldErrors(fieldErrs).
		With("Form", values).
		With("FormAction", v.page).
		Build()
	if err := h.Renderer.Render(w, r, status, data); err != nil {
		http.Error(w, "template error", http.StatusInternalServerError)
	}
}

// validate renders the form with field messages and reports false on failure.
func (h *AuthHandlers) validate(w http.ResponseWriter, r *http.Request, form any, v formView) bool {
	err := h.Validator.Struct(form)
	if err == nil {
		return true
	}
	var fe validation.FieldErrors
	if errors.As(err, &fe) {
		h.renderFormStatus(w, r, v, http.StatusUnprocessableEntity, "", fe)
		return false
	}
	h.logger().ErrorContext(r.Context(), "form validation failed", "component", "auth", "error", err)
	h.renderFormStatus(w, r, v, http.StatusInternalServerError, unavailableMessage, nil)
	return false
}

// establish logs in under a fresh session key, replacing any previous session.
func (h *AuthHandlers) establish(
	w http.ResponseWriter,
	r *http.Request,
	v formView,
	login func(ctx context.Context, key string) error,
) {
	key := service.NewSessionKey()
	if err := login(r.Context(), key); err != nil {
		h.renderFailure(w, r, v, err)
		return
	}
	h.signIn(w, r, key)
}

func (h *AuthHandlers) followUp(
	w http.ResponseWriter,
	r *http.Request,
	v formView,
	notice string,
	run func(ctx context.Context, key string) (service.FollowUpResult, error),
) {
	key := service.NewSessionKey()
	res, err := run(r.Context(), key)
	if err != nil {
		h.renderFailure(w, r, v, err)
		return
	}
	if !res.LoggedIn {
		Navigate(w, r, nav.LoginPath+"?notice="+notice)
		return
	}
	h.signIn(w, r, key)
}

func (h *AuthHandlers) signIn(w http.ResponseWriter, r *http.Request, key string) {
	if old := h.Cookie.sessionKeyFromRequest(r); old != "" && old != key {
		if err := h.Sessions.Clear(r.Context(), old); err != nil {
			h.logger().WarnContext(r.Context(), "clearing previous session failed", "component", "auth", "error", err)
		}
	}
	h.Cookie.set(w, r, key)

	target := nav.LoginPath
	if sess, ok := h.Sessions.Current(r.Context(), key); ok {
		if home, ok := h.Routes.HomeFor(sess.Identity.Role); ok {
			target = home
		}
	}
	Navigate(w, r, target)
}

func (h *AuthHandlers) renderFailure(w http.ResponseWriter, r *http.Request, v formView, err error) {
	status, _ := StatusFor(err)
	msg := apperrors.UserMessage(err, unavailableMessage)
	if !IsClientError(err) {
		h.logger().ErrorContext(r.Context(), "auth flow failed", "component", "auth", "page", v.name, "error", err)
		msg = unavailableMessage
	}
	var fieldErrs map[string]string
	if f := apperrors.GetField(err); f != "" {
		fieldErrs = map[string]string{f: msg}
	}
	h.renderFormStatus(w, r, v, status, msg, fieldErrs)
}
