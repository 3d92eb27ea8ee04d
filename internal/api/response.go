package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/erazemk/evidenca/internal/backend"
	"github.com/erazemk/evidenca/internal/form"
)

// errorBody is the envelope of every failed response.
type errorBody struct {
	Message string      `json:"message"`
	Fields  form.Errors `json:"fields,omitempty"`
}

// jsonResponse writes a JSON response with the given status code.
func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("encoding response", "error", err)
		}
	}
}

// jsonError writes a JSON error response.
func jsonError(w http.ResponseWriter, status int, message string) {
	jsonResponse(w, status, errorBody{Message: message})
}

// validationError reports field-level validation failures.
func validationError(w http.ResponseWriter, errs form.Errors) {
	jsonResponse(w, http.StatusBadRequest, errorBody{Message: "validation failed: " + errs.Error(), Fields: errs})
}

// writeError maps backend errors to HTTP responses. Unexpected errors are
// logged and reported without detail.
func writeError(w http.ResponseWriter, r *http.Request, entity string, err error) {
	var rule *backend.RuleError
	switch {
	case errors.Is(err, backend.ErrNotFound):
		jsonError(w, http.StatusNotFound, entity+" not found")
	case errors.Is(err, backend.ErrConflict):
		jsonError(w, http.StatusConflict, entity+" already exists")
	case errors.As(err, &rule):
		jsonError(w, http.StatusBadRequest, rule.Message)
	default:
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "entity", entity, "error", err)
		jsonError(w, http.StatusInternalServerError, "internal error")
	}
}

// decodeJSON decodes a JSON request body into the given target.
func decodeJSON(r *http.Request, target any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(target)
}

const maxBodyBytes = 1 << 20
