package devserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rendis/flowcode/pkg/schema"
)

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeText(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}

// statusFor maps a FlowError code to an HTTP status.
func statusFor(err error) int {
	var fe *schema.FlowError
	if !errors.As(err, &fe) {
		return http.StatusInternalServerError
	}
	switch fe.Code {
	case schema.ErrCodeNotFound:
		return http.StatusNotFound
	case schema.ErrCodeEmptyGraph, schema.ErrCodeDanglingEdge, schema.ErrCodeCycleDetected,
		schema.ErrCodeValidation, schema.ErrCodeDependencyParse:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
