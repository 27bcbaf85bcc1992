package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/taskquest/taskquest/internal/auth"
	"github.com/taskquest/taskquest/internal/engine"
	"github.com/taskquest/taskquest/internal/model"
	"github.com/taskquest/taskquest/internal/store"
	"github.com/taskquest/taskquest/internal/websocket"
)

type TaskHandler struct {
	taskStore *store.TaskStore
	userStore *store.UserStore
	engine    *engine.Engine
	hub       *websocket.Hub
	logger    *slog.Logger
}

func NewTaskHandler(ts *store.TaskStore, us *store.UserStore, eng *engine.Engine, hub *websocket.Hub, logger *slog.Logger) *TaskHandler {
	return &TaskHandler{taskStore: ts, userStore: us, engine: eng, hub: hub, logger: logger}
}

type taskRequest struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	CoinValue   int     `json:"coin_value"`
	Type        string  `json:"type"`
	Icon        string  `json:"icon"`
	AssignedTo  []int64 `json:"assigned_to"`
}

func (req *taskRequest) validate() string {
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		return "title is required"
	}
	if req.CoinValue <= 0 {
		return "coin_value must be positive"
	}
	if req.Type != model.TaskTypeDaily && req.Type != model.TaskTypeOneTime {
		return "type must be daily or one_time"
	}
	if len(req.AssignedTo) == 0 {
		return "at least one assignee is required"
	}
	return ""
}

// assigneesOwned verifies every requested assignee is a child of the caller.
func (h *TaskHandler) assigneesOwned(parentID int64, assignedTo []int64) (bool, error) {
	for _, childID := range assignedTo {
		child, err := h.userStore.GetByID(childID)
		if err != nil {
			return false, err
		}
		if child == nil || child.Role != model.RoleChild || child.ParentID == nil || *child.ParentID != parentID {
			return false, nil
		}
	}
	return true, nil
}

func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	if !auth.IsParent(r.Context()) {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "not allowed"})
		return
	}

	var req taskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if msg := req.validate(); msg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
		return
	}

	parentID := auth.UserID(r.Context())
	ok, err := h.assigneesOwned(parentID, req.AssignedTo)
	if err != nil {
		h.logger.Error("check assignees", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "assignees must be your own children"})
		return
	}

	task, err := h.taskStore.Create(req.Title, req.Description, req.CoinValue, req.Type, req.Icon, parentID, req.AssignedTo)
	if err != nil {
		h.logger.Error("create task", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	h.notifyFamily(task, websocket.NewMessage("task", "created", task.ID, nil))
	writeJSON(w, http.StatusCreated, task)
}

// List returns the caller's view of the task board: a parent sees what they
// created, a child sees what is assigned to them.
func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	var tasks []model.Task
	var err error
	if auth.IsParent(r.Context()) {
		tasks, err = h.taskStore.ListByCreator(auth.UserID(r.Context()))
	} else {
		tasks, err = h.taskStore.ListByAssignee(auth.UserID(r.Context()))
	}
	if err != nil {
		h.logger.Error("list tasks", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	if tasks == nil {
		tasks = []model.Task{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	task, err := h.taskStore.GetByID(id)
	if err != nil {
		h.logger.Error("get task", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	if task == nil || !h.visible(r, task) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "task not found"})
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// visible reports whether the caller may see the task: its creator, or a
// child it is assigned to.
func (h *TaskHandler) visible(r *http.Request, task *model.Task) bool {
	userID := auth.UserID(r.Context())
	if task.CreatedBy == userID {
		return true
	}
	for _, childID := range task.AssignedTo {
		if childID == userID {
			return true
		}
	}
	return false
}

// owned loads a task and verifies the caller is the parent who created it.
func (h *TaskHandler) owned(w http.ResponseWriter, r *http.Request) *model.Task {
	if !auth.IsParent(r.Context()) {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "not allowed"})
		return nil
	}

	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return nil
	}

	task, err := h.taskStore.GetByID(id)
	if err != nil {
		h.logger.Error("get task", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return nil
	}
	if task == nil || task.CreatedBy != auth.UserID(r.Context()) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "task not found"})
		return nil
	}
	return task
}

func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	task := h.owned(w, r)
	if task == nil {
		return
	}

	var req taskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if msg := req.validate(); msg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
		return
	}

	ok, err := h.assigneesOwned(auth.UserID(r.Context()), req.AssignedTo)
	if err != nil {
		h.logger.Error("check assignees", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "assignees must be your own children"})
		return
	}

	// Editing a task returns it to pending so the new terms apply fresh.
	updated, err := h.taskStore.Update(task.ID, req.Title, req.Description, req.CoinValue, req.Type, req.Icon, req.AssignedTo, true)
	if err != nil {
		h.logger.Error("update task", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	h.notifyFamily(updated, websocket.NewMessage("task", "updated", updated.ID, nil))
	writeJSON(w, http.StatusOK, updated)
}

func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	task := h.owned(w, r)
	if task == nil {
		return
	}

	if err := h.taskStore.Delete(task.ID); err != nil {
		h.logger.Error("delete task", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	h.notifyFamily(task, websocket.NewMessage("task", "deleted", task.ID, nil))
	w.WriteHeader(http.StatusNoContent)
}

// Complete marks the task done and credits its coins to the calling child.
// Repeating a completion is answered with the current state instead of an
// error, so a stale client that retries sees success without a second credit.
func (h *TaskHandler) Complete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	p, _ := auth.FromContext(r.Context())
	result, err := h.engine.CompleteTask(p, id)
	if errors.Is(err, engine.ErrTaskAlreadyCompleted) {
		task, loadErr := h.taskStore.GetByID(id)
		if loadErr != nil || task == nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"task": task, "already_completed": true})
		return
	}
	if err != nil {
		writeEngineError(w, err)
		return
	}

	task, err := h.taskStore.GetByID(id)
	if err != nil {
		h.logger.Error("reload task", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	if task != nil {
		h.notifyFamily(task, websocket.NewMessage("task", "completed", task.ID, map[string]any{
			"child_id":   p.UserID,
			"coin_value": result.CoinValue,
		}))
	}
	writeJSON(w, http.StatusOK, map[string]any{"task": task, "result": result})
}

// notifyFamily pushes a task event to the creating parent and every assignee.
func (h *TaskHandler) notifyFamily(task *model.Task, msg websocket.Message) {
	h.hub.SendTo(task.CreatedBy, msg)
	for _, childID := range task.AssignedTo {
		h.hub.SendTo(childID, msg)
	}
}
