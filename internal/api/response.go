package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gyaneshwarpardhi/nodeflow/internal/config"
	"github.com/gyaneshwarpardhi/nodeflow/internal/engine"
)

// writeJSON encodes v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// errorResponse is the standard error envelope.
type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, config.ErrWorkflowNotFound), errors.Is(err, engine.ErrRunNotFound):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrQueueFull):
		return http.StatusTooManyRequests
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return 499 // client closed request
	}
	return http.StatusUnprocessableEntity
}
