package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/cabinet-legal/case-messaging/internal/middleware"
	"github.com/cabinet-legal/case-messaging/internal/model"
	"github.com/cabinet-legal/case-messaging/internal/store"
	"github.com/cabinet-legal/case-messaging/internal/trash"
	"github.com/cabinet-legal/case-messaging/pkg/logger"
)

// TrashHandler handles trash listing and restore endpoints.
type TrashHandler struct {
	service *trash.Service
	logger  *logger.Logger
}

// NewTrashHandler creates a new trash handler.
func NewTrashHandler(svc *trash.Service, log *logger.Logger) *TrashHandler {
	return &TrashHandler{
		service: svc,
		logger:  log,
	}
}

// List handles GET /api/v1/trash
func (h *TrashHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := middleware.CurrentUser(ctx)

	entries, err := h.service.List(ctx, actor)
	if err != nil {
		h.logger.Error("failed to list trash", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list trash")
		return
	}

	writeJSON(w, http.StatusOK, model.ListTrashResponse{Entries: entries})
}

// Restore handles POST /api/v1/trash/{id}/restore
func (h *TrashHandler) Restore(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	entryID := chi.URLParam(r, "id")

	msg, err := h.service.Restore(ctx, entryID)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "trash entry not found")
		case errors.Is(err, trash.ErrRestoreConflict):
			writeError(w, http.StatusConflict, "original record already exists")
		default:
			h.logger.Error("failed to restore trash entry",
				zap.String("entry_id", entryID),
				zap.Error(err),
			)
			writeError(w, http.StatusInternalServerError, "failed to restore trash entry")
		}
		return
	}

	writeJSON(w, http.StatusOK, msg)
}
