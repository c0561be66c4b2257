package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/promptgate/promptgate/internal/handler/dto"
)

// AdminHandler serves operator endpoints gated by the admin secret.
type AdminHandler struct {
	gw     Gateway
	logger *slog.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(gw Gateway, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{gw: gw, logger: logger}
}

// ResetCalls handles POST /api/admin/user/{key}/reset with body {adminKey}.
func (h *AdminHandler) ResetCalls(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if !h.gw.ValidKey(key) {
		writeError(w, http.StatusForbidden, "Unauthorized")
		return
	}

	var req dto.ResetRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.gw.ResetCalls(r.Context(), key, req.AdminKey); err != nil {
		writeGatewayError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ResetResponse{Success: true, Message: "Call count reset"})
}
