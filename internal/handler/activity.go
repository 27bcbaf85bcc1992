package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/taskquest/taskquest/internal/auth"
	"github.com/taskquest/taskquest/internal/model"
	"github.com/taskquest/taskquest/internal/store"
)

type ActivityHandler struct {
	activityStore *store.ActivityStore
	logger        *slog.Logger
}

func NewActivityHandler(as *store.ActivityStore, logger *slog.Logger) *ActivityHandler {
	return &ActivityHandler{activityStore: as, logger: logger}
}

// List returns the family's recent activity feed. Parent only.
func (h *ActivityHandler) List(w http.ResponseWriter, r *http.Request) {
	if !auth.IsParent(r.Context()) {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "not allowed"})
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	activities, err := h.activityStore.ListByParent(auth.UserID(r.Context()), limit)
	if err != nil {
		h.logger.Error("list activities", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	if activities == nil {
		activities = []model.Activity{}
	}
	writeJSON(w, http.StatusOK, activities)
}
