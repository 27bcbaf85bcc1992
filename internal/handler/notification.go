package handler

import (
	"log/slog"
	"net/http"

	"github.com/taskquest/taskquest/internal/auth"
	"github.com/taskquest/taskquest/internal/engine"
	"github.com/taskquest/taskquest/internal/model"
	"github.com/taskquest/taskquest/internal/store"
)

type NotificationHandler struct {
	notificationStore *store.NotificationStore
	engine            *engine.Engine
	logger            *slog.Logger
}

func NewNotificationHandler(ns *store.NotificationStore, eng *engine.Engine, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{notificationStore: ns, engine: eng, logger: logger}
}

// List returns the caller's unread notifications, newest first.
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	notifications, err := h.notificationStore.ListUnread(auth.UserID(r.Context()))
	if err != nil {
		h.logger.Error("list notifications", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	if notifications == nil {
		notifications = []model.Notification{}
	}
	writeJSON(w, http.StatusOK, notifications)
}

// MarkRead dismisses a notification. Dismissing one that is already read is a
// no-op success.
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	p, _ := auth.FromContext(r.Context())
	if err := h.engine.DismissNotification(p, id); err != nil {
		writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
