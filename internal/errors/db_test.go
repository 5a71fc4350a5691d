package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestMapDBError_NilError(t *testing.T) {
	if err := MapDBError(nil); err != nil {
		t.Errorf("MapDBError(nil) = %v, want nil", err)
	}
}

func TestMapDBError_ContextErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode ErrorCode
	}{
		{name: "deadline exceeded", err: context.DeadlineExceeded, wantCode: ErrCodeTimeout},
		{name: "canceled", err: context.Canceled, wantCode: ErrCodeCanceled},
		{name: "wrapped deadline", err: fmt.Errorf("query: %w", context.DeadlineExceeded), wantCode: ErrCodeTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetCode(MapDBError(tt.err)); got != tt.wantCode {
				t.Errorf("MapDBError() code = %v, want %v", got, tt.wantCode)
			}
		})
	}
}

func TestMapDBError_NoRows(t *testing.T) {
	err := MapDBError(pgx.ErrNoRows)
	if !IsNotFound(err) {
		t.Errorf("MapDBError(pgx.ErrNoRows) should be NotFound, got %v", GetCode(err))
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		t.Error("cause should be preserved")
	}
}

func TestMapDBError_PgErrors(t *testing.T) {
	tests := []struct {
		name        string
		code        string
		wantCode    ErrorCode
		wantMessage string
	}{
		{name: "undefined table", code: pgerrcode.UndefinedTable, wantCode: ErrCodeInternal, wantMessage: "migrate"},
		{name: "connection failure", code: pgerrcode.ConnectionFailure, wantCode: ErrCodeInternal, wantMessage: "connection"},
		{name: "invalid json", code: pgerrcode.InvalidTextRepresentation, wantCode: ErrCodeValidation, wantMessage: "invalid"},
		{name: "other", code: pgerrcode.SerializationFailure, wantCode: ErrCodeInternal, wantMessage: "database error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pgErr := &pgconn.PgError{Code: tt.code, Message: "boom"}
			err := MapDBError(pgErr)
			if got := GetCode(err); got != tt.wantCode {
				t.Errorf("code = %v, want %v", got, tt.wantCode)
			}
			if !strings.Contains(err.Error(), tt.wantMessage) {
				t.Errorf("message %q should contain %q", err.Error(), tt.wantMessage)
			}
			var got *pgconn.PgError
			if !errors.As(err, &got) {
				t.Error("PgError cause should be preserved")
			}
		})
	}
}

func TestMapDBError_Unrecognized(t *testing.T) {
	orig := errors.New("something else")
	if got := MapDBError(orig); !errors.Is(got, orig) || GetCode(got) != "" {
		t.Errorf("unrecognized errors should pass through unchanged, got %v", got)
	}
}
