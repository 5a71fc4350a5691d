// Package mocks provides gomock implementations of the coursedesk ports.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	repo := mocks.NewMockSessionRepository(ctrl)
//	repo.EXPECT().Get(gomock.Any(), "sid").Return(auth.Session{}, ports.ErrNotFound)
package mocks

// Save, Get, Delete
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=session_repository_mock.go github.com/coursedesk/coursedesk/internal/ports SessionRepository

// Login, LoginBySMS, SendCode, Register, ResetPassword
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=auth_backend_mock.go github.com/coursedesk/coursedesk/internal/ports AuthBackend

// GetData, PostData
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=data_backend_mock.go github.com/coursedesk/coursedesk/internal/ports DataBackend
