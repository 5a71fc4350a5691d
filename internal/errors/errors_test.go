package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *AppError
		want string
	}{
		{
			name: "error without cause",
			err:  &AppError{Code: ErrCodeNotFound, Message: "session not found"},
			want: "session not found",
		},
		{
			name: "error with cause",
			err: &AppError{
				Code:    ErrCodeUpstream,
				Message: "course backend failed",
				Cause:   errors.New("connection refused"),
			},
			want: "course backend failed: connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("AppError.Error() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	cause := errors.New("underlying error")
	err := &AppError{Code: ErrCodeInternal, Message: "wrapped error", Cause: cause}

	if unwrapped := err.Unwrap(); !errors.Is(unwrapped, cause) {
		t.Errorf("AppError.Unwrap() = %v, want %v", unwrapped, cause)
	}
}

func TestConstructors(t *testing.T) {
	tests := []struct {
		name  string
		err   *AppError
		code  ErrorCode
		check func(error) bool
	}{
		{"not found", NotFound("x"), ErrCodeNotFound, IsNotFound},
		{"validation", Validation("x"), ErrCodeValidation, IsValidation},
		{"unauthorized", Unauthorized("x"), ErrCodeUnauthorized, IsUnauthorized},
		{"upstream", Upstream("x"), ErrCodeUpstream, IsUpstream},
		{"rate limited", RateLimited("x"), ErrCodeRateLimited, IsRateLimited},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.code {
				t.Errorf("Code = %v, want %v", tt.err.Code, tt.code)
			}
			if !tt.check(tt.err) {
				t.Errorf("Is* helper returned false for %v", tt.code)
			}
		})
	}
}

func TestValidationField(t *testing.T) {
	err := ValidationField("phoneNumber", "手机号格式不正确")
	if err.Field != "phoneNumber" {
		t.Errorf("Field = %q, want phoneNumber", err.Field)
	}
	wrapped := fmt.Errorf("register: %w", err)
	if GetField(wrapped) != "phoneNumber" {
		t.Errorf("GetField(wrapped) = %q", GetField(wrapped))
	}
	if GetField(errors.New("plain")) != "" {
		t.Error("GetField(plain) should be empty")
	}
}

func TestWrap(t *testing.T) {
	if Wrap(nil, ErrCodeInternal, "x") != nil {
		t.Error("Wrap(nil) should return nil")
	}
	if Wrapf(nil, ErrCodeInternal, "x %d", 1) != nil {
		t.Error("Wrapf(nil) should return nil")
	}

	cause := errors.New("dial tcp: timeout")
	err := Wrapf(cause, ErrCodeTimeout, "fetch %s", "/courses")
	if err.Message != "fetch /courses" {
		t.Errorf("Message = %q", err.Message)
	}
	if !errors.Is(err, cause) {
		t.Error("Wrapf should preserve cause")
	}
	if !IsTimeout(err) {
		t.Error("expected timeout code")
	}
}

func TestIsHelpers_WrappedChain(t *testing.T) {
	err := fmt.Errorf("outer: %w", fmt.Errorf("inner: %w", Unauthorized("token rejected")))
	if !IsUnauthorized(err) {
		t.Error("IsUnauthorized should see through wrapping")
	}
	if IsNotFound(err) {
		t.Error("IsNotFound should be false")
	}
	if GetCode(err) != ErrCodeUnauthorized {
		t.Errorf("GetCode = %v", GetCode(err))
	}
	if GetCode(errors.New("plain")) != "" {
		t.Error("GetCode(plain) should be empty")
	}
}

func TestUserMessage(t *testing.T) {
	if got := UserMessage(Validation("请输入手机号"), "fallback"); got != "请输入手机号" {
		t.Errorf("UserMessage = %q", got)
	}
	if got := UserMessage(errors.New("boom"), "fallback"); got != "fallback" {
		t.Errorf("UserMessage(plain) = %q", got)
	}
	if got := UserMessage(&AppError{Code: ErrCodeInternal}, "fallback"); got != "fallback" {
		t.Errorf("UserMessage(empty message) = %q", got)
	}
}
