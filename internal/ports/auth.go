package ports

// Package ports defines interfaces (hexagonal ports) for session and backend behavior.
// Implementations live in internal/adapters and internal/gateway; orchestration in internal/service.

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"time"

	domainauth "github.com/coursedesk/coursedesk/internal/domain/auth"
)

// ErrNotFound is returned by SessionRepository.Get when no session is stored under a key.
var ErrNotFound = errors.New("session not found")

// SessionRepository persists sessions under an opaque key
// (browser session id or CLI profile name).
type SessionRepository interface {
	Save(ctx context.Context, key string, sess domainauth.Session) error
	Get(ctx context.Context, key string) (domainauth.Session, error)
	Delete(ctx context.Context, key string) error
}

// RoleMapper maps the backend's raw role string to an application role.
type RoleMapper interface {
	Map(raw string) domainauth.Role
}

// CodePurpose selects which flow a verification code is issued for.
type CodePurpose string

const (
	CodeRegister      CodePurpose = "REGISTER"
	CodeLogin         CodePurpose = "LOGIN"
	CodeResetPassword CodePurpose = "RESET_PASSWORD"
)

// PasswordLoginInput carries phone/password credentials.
type PasswordLoginInput struct {
	PhoneNumber string `json:"phoneNumber"`
	Password    string `json:"password"`
}

// SMSLoginInput carries phone/verification code credentials.
type SMSLoginInput struct {
	PhoneNumber string `json:"phoneNumber"`
	Code        string `json:"code"`
}

// RegisterInput is the self-registration payload.
type RegisterInput struct {
	PhoneNumber string `json:"phoneNumber"`
	Username    string `json:"username"`
	Password    string `json:"password"`
	Role        string `json:"role"`
	Code        string `json:"code"`
	RealName    string `json:"realName,omitempty"`
	Email       string `json:"email,omitempty"`
}

// ResetPasswordInput is the forgot-password payload.
type ResetPasswordInput struct {
	PhoneNumber string `json:"phoneNumber"`
	Code        string `json:"code"`
	NewPassword string `json:"newPassword"`
}

// AuthBackend is the course backend's credential surface.
// Login calls return the issued token together with the identity.
type AuthBackend interface {
	Login(ctx context.Context, in PasswordLoginInput) (domainauth.Session, error)
	LoginBySMS(ctx context.Context, in SMSLoginInput) (domainauth.Session, error)
	SendCode(ctx context.Context, phone string, purpose CodePurpose) error
	Register(ctx context.Context, in RegisterInput) error
	ResetPassword(ctx context.Context, in ResetPasswordInput) error
}

// DataBackend reads and writes the envelope data of arbitrary backend resources.
// Paths are relative to the API prefix, e.g. "/courses".
type DataBackend interface {
	GetData(ctx context.Context, path string, query url.Values) (json.RawMessage, error)
	PostData(ctx context.Context, path string, body any) (json.RawMessage, error)
}

// StoredSession is the administrative view of a persisted session; the token is omitted.
type StoredSession struct {
	Key       string
	Identity  domainauth.Identity
	ExpiresAt time.Time
}

// SessionAdmin is implemented by repositories that can enumerate and purge sessions.
type SessionAdmin interface {
	List(ctx context.Context) ([]StoredSession, error)
	Purge(ctx context.Context) (int, error)
}
