// Package handler provides HTTP request handlers.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/promptgate/promptgate/internal/gateway"
	"github.com/promptgate/promptgate/internal/handler/dto"
)

// Handler serves the catch-all routes.
type Handler struct{}

// New creates a new Handler instance.
func New() *Handler {
	return &Handler{}
}

// NotFound handles 404 responses.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Route not found"})
}

// MethodNotAllowed handles 405 responses.
func (h *Handler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusMethodNotAllowed, dto.ErrorResponse{Error: "Method not allowed"})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, dto.ErrorResponse{Error: message})
}

// statusFor maps a gateway failure kind to its HTTP status.
func statusFor(kind gateway.Kind) int {
	switch kind {
	case gateway.KindInvalidInput:
		return http.StatusBadRequest
	case gateway.KindUnauthorized:
		return http.StatusForbidden
	case gateway.KindNotFound:
		return http.StatusNotFound
	case gateway.KindQuotaExceeded, gateway.KindUpstreamQuotaFailure:
		return http.StatusTooManyRequests
	case gateway.KindUpstreamAttachmentFailure:
		return http.StatusUnsupportedMediaType
	case gateway.KindUpstreamCredentialFailure:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// writeGatewayError renders a controller error. Causes are logged, never sent.
func writeGatewayError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	gerr, ok := gateway.AsError(err)
	if !ok {
		logger.ErrorContext(r.Context(), "unclassified error", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	status := statusFor(gerr.Kind)
	if status >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "request failed", "kind", gerr.Kind.String(), "error", err)
	}

	if gerr.Kind == gateway.KindQuotaExceeded {
		writeJSON(w, status, dto.QuotaErrorResponse{
			Error:     gerr.Message,
			CallsMade: gerr.CallsMade,
			MaxCalls:  gerr.MaxCalls,
		})
		return
	}

	writeError(w, status, gerr.Message)
}

// decodeJSON decodes the request body into v.
func decodeJSON(r *http.Request, v any) error {
	if r.Body == nil {
		return errors.New("empty body")
	}
	return json.NewDecoder(r.Body).Decode(v)
}
