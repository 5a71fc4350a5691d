package auth

// Package auth contains simple hand-written test doubles for auth ports.
// These are lightweight and suitable for unit tests without codegen.

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"sync"

	domainauth "github.com/coursedesk/coursedesk/internal/domain/auth"
	"github.com/coursedesk/coursedesk/internal/ports"
)

// Ensure compile-time conformance to ports.
var (
	_ ports.SessionRepository = (*MemorySessionRepository)(nil)
	_ ports.RoleMapper        = (*StaticRoleMapper)(nil)
	_ ports.AuthBackend       = (*FakeAuthBackend)(nil)
	_ ports.DataBackend       = (*FakeDataBackend)(nil)
)

// MemorySessionRepository is an in-memory repository for unit tests.
// GetErr, when set, is returned by every Get to simulate a broken backend.
type MemorySessionRepository struct {
	mu       sync.Mutex
	sessions map[string]domainauth.Session
	GetErr   error
	Deletes  int
}

// NewMemorySessionRepository creates an empty repository.
func NewMemorySessionRepository() *MemorySessionRepository {
	return &MemorySessionRepository{sessions: make(map[string]domainauth.Session)}
}

func (m *MemorySessionRepository) Save(_ context.Context, key string, sess domainauth.Session) error {
	if key == "" {
		return errors.New("session key cannot be empty")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[key] = sess
	return nil
}

func (m *MemorySessionRepository) Get(_ context.Context, key string) (domainauth.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetErr != nil {
		return domainauth.Session{}, m.GetErr
	}
	sess, ok := m.sessions[key]
	if !ok || key == "" {
		return domainauth.Session{}, ports.ErrNotFound
	}
	return sess, nil
}

func (m *MemorySessionRepository) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Deletes++
	delete(m.sessions, key)
	return nil
}

// Len returns the number of stored sessions.
func (m *MemorySessionRepository) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// StaticRoleMapper maps raw roles through a fixed alias table, then ParseRole.
type StaticRoleMapper struct {
	Aliases map[string]domainauth.Role
}

func (m StaticRoleMapper) Map(raw string) domainauth.Role {
	if r, ok := m.Aliases[raw]; ok {
		return r
	}
	return domainauth.ParseRole(raw)
}

// FakeAuthBackend lets tests script each backend call.
// Unset funcs succeed with zero values; calls are recorded.
type FakeAuthBackend struct {
	LoginFunc         func(ctx context.Context, in ports.PasswordLoginInput) (domainauth.Session, error)
	LoginBySMSFunc    func(ctx context.Context, in ports.SMSLoginInput) (domainauth.Session, error)
	SendCodeFunc      func(ctx context.Context, phone string, purpose ports.CodePurpose) error
	RegisterFunc      func(ctx context.Context, in ports.RegisterInput) error
	ResetPasswordFunc func(ctx context.Context, in ports.ResetPasswordInput) error

	mu    sync.Mutex
	Calls []string
}

func (f *FakeAuthBackend) record(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, name)
}

func (f *FakeAuthBackend) Login(ctx context.Context, in ports.PasswordLoginInput) (domainauth.Session, error) {
	f.record("Login")
	if f.LoginFunc != nil {
		return f.LoginFunc(ctx, in)
	}
	return domainauth.Session{}, nil
}

func (f *FakeAuthBackend) LoginBySMS(ctx context.Context, in ports.SMSLoginInput) (domainauth.Session, error) {
	f.record("LoginBySMS")
	if f.LoginBySMSFunc != nil {
		return f.LoginBySMSFunc(ctx, in)
	}
	return domainauth.Session{}, nil
}

func (f *FakeAuthBackend) SendCode(ctx context.Context, phone string, purpose ports.CodePurpose) error {
	f.record("SendCode")
	if f.SendCodeFunc != nil {
		return f.SendCodeFunc(ctx, phone, purpose)
	}
	return nil
}

func (f *FakeAuthBackend) Register(ctx context.Context, in ports.RegisterInput) error {
	f.record("Register")
	if f.RegisterFunc != nil {
		return f.RegisterFunc(ctx, in)
	}
	return nil
}

func (f *FakeAuthBackend) ResetPassword(ctx context.Context, in ports.ResetPasswordInput) error {
	f.record("ResetPassword")
	if f.ResetPasswordFunc != nil {
		return f.ResetPasswordFunc(ctx, in)
	}
	return nil
}

// FakeDataBackend serves canned envelope data. Keys are "path?encodedQuery"
// first, then the bare path. Unknown paths return an empty list.
type FakeDataBackend struct {
	Data     map[string]string
	Err      map[string]error
	PostFunc func(ctx context.Context, path string, body any) (json.RawMessage, error)

	mu   sync.Mutex
	Gets []string
}

func (f *FakeDataBackend) GetData(_ context.Context, path string, query url.Values) (json.RawMessage, error) {
	keys := []string{path}
	if len(query) > 0 {
		keys = []string{path + "?" + query.Encode(), path}
	}
	f.mu.Lock()
	f.Gets = append(f.Gets, keys[0])
	f.mu.Unlock()

	for _, k := range keys {
		if err, ok := f.Err[k]; ok {
			return nil, err
		}
		if raw, ok := f.Data[k]; ok {
			return json.RawMessage(raw), nil
		}
	}
	return json.RawMessage("[]"), nil
}

func (f *FakeDataBackend) PostData(ctx context.Context, path string, body any) (json.RawMessage, error) {
	if f.PostFunc != nil {
		return f.PostFunc(ctx, path, body)
	}
	return json.RawMessage("null"), nil
}
