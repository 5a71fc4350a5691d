package httpx

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"

	apperrors "github.com/coursedesk/coursedesk/internal/errors"
	"github.com/coursedesk/coursedesk/internal/gateway"
)

// DecodeJSON decodes the request body into dst. On failure it writes a 400
// and returns false.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_json", Err: err})
		return false
	}
	return true
}

// WriteJSON writes a JSON response with the given status code and data.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = buf.WriteTo(w)
}

// ErrorParams groups parameters for WriteError.
type ErrorParams struct {
	Code    int
	ErrCode string
	Err     error
	Field   string
}

// WriteError writes a JSON error response.
func WriteError(w http.ResponseWriter, p ErrorParams) {
	body := map[string]string{"error": p.ErrCode, "message": p.Err.Error()}
	if p.Field != "" {
		body["field"] = p.Field
	}
	WriteJSON(w, p.Code, body)
}

// WriteAppError maps err to a status and writes it with its user-facing message.
func WriteAppError(w http.ResponseWriter, err error) {
	code, errCode := StatusFor(err)
	WriteError(w, ErrorParams{
		Code:    code,
		ErrCode: errCode,
		Err:     errors.New(apperrors.UserMessage(err, "服务暂时不可用，请稍后再试")),
		Field:   apperrors.GetField(err),
	})
}

// StatusFor returns the HTTP status and machine code for err.
func StatusFor(err error) (int, string) {
	switch {
	case errors.Is(err, gateway.ErrCredentialRejected):
		return http.StatusUnauthorized, string(apperrors.ErrCodeUnauthorized)
	case apperrors.IsValidation(err):
		return http.StatusBadRequest, string(apperrors.ErrCodeValidation)
	case apperrors.IsUnauthorized(err):
		return http.StatusUnauthorized, string(apperrors.ErrCodeUnauthorized)
	case apperrors.IsRateLimited(err):
		return http.StatusTooManyRequests, string(apperrors.ErrCodeRateLimited)
	case apperrors.IsNotFound(err):
		return http.StatusNotFound, string(apperrors.ErrCodeNotFound)
	case apperrors.IsTimeout(err):
		return http.StatusGatewayTimeout, string(apperrors.ErrCodeTimeout)
	case apperrors.IsUpstream(err):
		return http.StatusBadGateway, string(apperrors.ErrCodeUpstream)
	default:
		return http.StatusInternalServerError, string(apperrors.ErrCodeInternal)
	}
}
