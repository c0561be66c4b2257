package handler

import (
	"context"
	"errors"
	"log/slog"
	"mime/multipart"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/promptgate/promptgate/internal/handler/dto"
	"github.com/promptgate/promptgate/internal/model"
)

// multipartMemory is how much of a multipart body is held in memory before
// parts spill to disk.
const multipartMemory = 1 << 20

// Gateway is the controller behind the user and admin endpoints.
type Gateway interface {
	ValidKey(key string) bool
	HandleGeneration(ctx context.Context, req model.GenerationRequest) (*model.GenerationOutcome, error)
	GetAccount(ctx context.Context, key string) (*model.AccountResponse, error)
	CheckKey(ctx context.Context, key string) (bool, error)
	ResetCalls(ctx context.Context, key, adminSecret string) error
}

// UserHandler handles the account and generation endpoints.
type UserHandler struct {
	gw     Gateway
	logger *slog.Logger
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(gw Gateway, logger *slog.Logger) *UserHandler {
	return &UserHandler{gw: gw, logger: logger}
}

// Get handles GET /api/user/{key}.
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	account, err := h.gw.GetAccount(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		writeGatewayError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, account)
}

// CheckKey handles POST /api/user/check-key.
func (h *UserHandler) CheckKey(w http.ResponseWriter, r *http.Request) {
	var req dto.CheckKeyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	exists, err := h.gw.CheckKey(r.Context(), req.UserKey)
	if err != nil {
		writeGatewayError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.NewCheckKeyResponse(exists, req.ReturnAPIKey))
}

// Generate handles POST /api/user/{key}/gemini-call with a multipart body:
// prompt, optional systemInstruction, and an image file.
func (h *UserHandler) Generate(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if !h.gw.ValidKey(key) {
		writeError(w, http.StatusForbidden, "Unauthorized")
		return
	}

	if err := r.ParseMultipartForm(multipartMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "Invalid multipart body")
		return
	}
	if r.MultipartForm != nil {
		defer func() { _ = r.MultipartForm.RemoveAll() }()
	}

	req := model.GenerationRequest{
		Key:               key,
		Prompt:            r.FormValue("prompt"),
		SystemInstruction: r.FormValue("systemInstruction"),
	}

	file, header, err := r.FormFile("image")
	switch {
	case err == nil:
		defer file.Close()
		req.Attachment = attachmentFrom(file, header)
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
		// Left nil; the controller rejects it.
	default:
		h.logger.WarnContext(r.Context(), "failed to read image part", "error", err)
	}

	outcome, err := h.gw.HandleGeneration(r.Context(), req)
	if err != nil {
		writeGatewayError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.GenerationResponse{
		Success:        true,
		Response:       outcome.Result,
		CallsMade:      outcome.CallsMade,
		CallsRemaining: outcome.CallsRemaining,
	})
}

func attachmentFrom(file multipart.File, header *multipart.FileHeader) *model.Attachment {
	return &model.Attachment{
		Content:   file,
		Filename:  header.Filename,
		MediaType: header.Header.Get("Content-Type"),
	}
}
