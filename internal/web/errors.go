package web

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/vbonduro/domeok/internal/domain"
	"github.com/vbonduro/domeok/internal/store"
)

// errorBody is the JSON envelope of every error response.
type errorBody struct {
	StatusCode int    `json:"status_code"`
	Code       string `json:"code"`
	Detail     string `json:"detail"`
}

type kindMapping struct {
	status int
	code   string
}

// kindStatus is the only place error kinds are translated to HTTP.
var kindStatus = map[domain.Kind]kindMapping{
	domain.KindInvalidRequest:     {http.StatusBadRequest, "AI_INVALID_REQUEST"},
	domain.KindRefusal:            {http.StatusBadRequest, "AI_REFUSAL_ERROR"},
	domain.KindQuotaExceeded:      {http.StatusTooManyRequests, "AI_QUOTA_EXCEEDED"},
	domain.KindServiceUnavailable: {http.StatusServiceUnavailable, "AI_SERVICE_ERROR"},
	domain.KindConnectionFailed:   {http.StatusServiceUnavailable, "AI_CONNECTION_ERROR"},
	domain.KindTimeout:            {http.StatusGatewayTimeout, "AI_TIMEOUT_ERROR"},
	domain.KindEmptyResponse:      {http.StatusInternalServerError, "AI_NULL_RESPONSE"},
	domain.KindDecode:             {http.StatusInternalServerError, "AI_JSON_PARSE_ERROR"},
	domain.KindSchemaMismatch:     {http.StatusInternalServerError, "AI_SCHEMA_ERROR"},
}

const (
	codeInternal     = "INTERNAL_SERVER_ERROR"
	codeNotFound     = "NOT_FOUND"
	codeUnauthorized = "UNAUTHORIZED"
)

// statusFor returns the HTTP status, code and caller-facing detail for err.
func statusFor(err error) (int, string, string) {
	if errors.Is(err, store.ErrNotFound) {
		return http.StatusNotFound, codeNotFound, err.Error()
	}
	if m, ok := kindStatus[domain.KindOf(err)]; ok {
		return m.status, m.code, domain.DetailOf(err)
	}
	return http.StatusInternalServerError, codeInternal, "internal server error"
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, detail := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "code", code, "error", err)
	}
	writeJSON(w, status, errorBody{StatusCode: status, Code: code, Detail: detail}, s.logger)
}

func writeJSON(w http.ResponseWriter, status int, v any, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		logger.Error("failed to write response", "error", err)
	}
}
