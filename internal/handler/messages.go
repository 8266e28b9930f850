package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/cabinet-legal/case-messaging/internal/messaging"
	"github.com/cabinet-legal/case-messaging/internal/middleware"
	"github.com/cabinet-legal/case-messaging/internal/model"
	"github.com/cabinet-legal/case-messaging/internal/routing"
	"github.com/cabinet-legal/case-messaging/pkg/logger"
)

// MessageHandler handles message and thread endpoints.
type MessageHandler struct {
	service *messaging.Service
	logger  *logger.Logger
}

// NewMessageHandler creates a new message handler.
func NewMessageHandler(svc *messaging.Service, log *logger.Logger) *MessageHandler {
	return &MessageHandler{
		service: svc,
		logger:  log,
	}
}

// Create handles POST /api/v1/messages
func (h *MessageHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := middleware.CurrentUser(ctx)

	var req model.CreateMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := middleware.ValidateSubject(req.Subject); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := middleware.ValidateBody(req.Body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.ParentID != "" {
		if err := middleware.ValidateMessageID(req.ParentID); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	resp, err := h.service.Create(ctx, user, &req)
	if err != nil {
		status, msg := createErrorStatus(err)
		if status == http.StatusInternalServerError {
			h.logger.Error("failed to create message", zap.Error(err))
		}
		writeError(w, status, msg)
		return
	}

	writeJSON(w, http.StatusCreated, resp)
}

// Inbox handles GET /api/v1/messages/inbox
func (h *MessageHandler) Inbox(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := middleware.CurrentUser(ctx)

	filter := r.URL.Query().Get("filter")
	if err := middleware.ValidateInboxFilter(filter); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.service.Inbox(ctx, user, model.InboxFilter(filter))
	if err != nil {
		h.logger.Error("failed to build inbox", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to build inbox")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// Thread handles GET /api/v1/threads/{id}. Viewing a thread marks
// the caller's addressed messages as read; pass peek=true to read without
// the side effect.
func (h *MessageHandler) Thread(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := middleware.CurrentUser(ctx)
	threadID := chi.URLParam(r, "id")

	if err := middleware.ValidateThreadID(threadID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var (
		t   *model.Thread
		err error
	)
	if r.URL.Query().Get("peek") == "true" {
		t, err = h.service.PeekThread(ctx, user, threadID)
	} else {
		t, err = h.service.ViewThread(ctx, user, threadID)
	}
	if err != nil {
		if errors.Is(err, messaging.ErrThreadNotFound) {
			writeError(w, http.StatusNotFound, "thread not found")
			return
		}
		h.logger.Error("failed to load thread",
			zap.String("thread_id", threadID),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "failed to load thread")
		return
	}

	writeJSON(w, http.StatusOK, t)
}

// MarkRead handles PUT /api/v1/messages/{id}/read
func (h *MessageHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := middleware.CurrentUser(ctx)
	messageID := chi.URLParam(r, "id")

	if err := middleware.ValidateMessageID(messageID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	markers, err := h.service.MarkRead(ctx, user, messageID)
	if err != nil {
		h.writeLifecycleError(w, err, "failed to mark read")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"read_by": markers,
	})
}

// MarkUnread handles DELETE /api/v1/messages/{id}/read
func (h *MessageHandler) MarkUnread(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := middleware.CurrentUser(ctx)
	messageID := chi.URLParam(r, "id")

	if err := middleware.ValidateMessageID(messageID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.service.MarkUnread(ctx, user, messageID); err != nil {
		h.writeLifecycleError(w, err, "failed to mark unread")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// BatchMarkRead handles PUT /api/v1/messages/read
func (h *MessageHandler) BatchMarkRead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := middleware.CurrentUser(ctx)

	var req model.BatchMarkReadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.MessageIDs) == 0 {
		writeError(w, http.StatusBadRequest, "message_ids must not be empty")
		return
	}

	updated, err := h.service.BatchMarkRead(ctx, user, req.MessageIDs)
	if err != nil {
		h.logger.Error("failed to batch mark read", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to mark messages read")
		return
	}

	writeJSON(w, http.StatusOK, model.BatchMarkReadResponse{Updated: updated})
}

// Archive handles PUT /api/v1/messages/{id}/archive
func (h *MessageHandler) Archive(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := middleware.CurrentUser(ctx)
	messageID := chi.URLParam(r, "id")

	if err := middleware.ValidateMessageID(messageID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.service.Archive(ctx, user, messageID); err != nil {
		h.writeLifecycleError(w, err, "failed to archive")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Unarchive handles DELETE /api/v1/messages/{id}/archive
func (h *MessageHandler) Unarchive(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := middleware.CurrentUser(ctx)
	messageID := chi.URLParam(r, "id")

	if err := middleware.ValidateMessageID(messageID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.service.Unarchive(ctx, user, messageID); err != nil {
		h.writeLifecycleError(w, err, "failed to unarchive")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Delete handles DELETE /api/v1/messages/{id}
func (h *MessageHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := middleware.CurrentUser(ctx)
	messageID := chi.URLParam(r, "id")

	if err := middleware.ValidateMessageID(messageID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.service.Delete(ctx, user, messageID); err != nil {
		h.writeLifecycleError(w, err, "failed to delete message")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *MessageHandler) writeLifecycleError(w http.ResponseWriter, err error, logMsg string) {
	switch {
	case errors.Is(err, messaging.ErrMessageNotFound):
		writeError(w, http.StatusNotFound, "message not found")
	case errors.Is(err, messaging.ErrNotAllowed):
		writeError(w, http.StatusForbidden, "not allowed")
	default:
		h.logger.Error(logMsg, zap.Error(err))
		writeError(w, http.StatusInternalServerError, logMsg)
	}
}

// createErrorStatus maps creation failures to HTTP statuses. Routing
// failures are the caller's to correct, so they surface as 4xx with the
// sentinel's message.
func createErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, messaging.ErrSubjectRequired),
		errors.Is(err, messaging.ErrBodyRequired),
		errors.Is(err, messaging.ErrCaseRefRequired),
		errors.Is(err, routing.ErrTargetRequired),
		errors.Is(err, routing.ErrSelfAddressed),
		errors.Is(err, routing.ErrInvalidTarget),
		errors.Is(err, routing.ErrClientToClientForbidden),
		errors.Is(err, routing.ErrUnknownRole):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, messaging.ErrParentNotFound),
		errors.Is(err, routing.ErrRecipientNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, routing.ErrInvalidCopyRecipient):
		return http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, routing.ErrNotAuthorizedForCase):
		return http.StatusForbidden, err.Error()
	case errors.Is(err, routing.ErrNoStaffAvailable):
		return http.StatusConflict, err.Error()
	}
	return http.StatusInternalServerError, "failed to create message"
}
