package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/taskquest/taskquest/internal/auth"
	"github.com/taskquest/taskquest/internal/model"
	"github.com/taskquest/taskquest/internal/store"
	"github.com/taskquest/taskquest/internal/websocket"
)

// ChildHandler lets a parent provision and manage child accounts.
type ChildHandler struct {
	userStore *store.UserStore
	hub       *websocket.Hub
	logger    *slog.Logger
}

func NewChildHandler(us *store.UserStore, hub *websocket.Hub, logger *slog.Logger) *ChildHandler {
	return &ChildHandler{userStore: us, hub: hub, logger: logger}
}

type childRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

func (h *ChildHandler) List(w http.ResponseWriter, r *http.Request) {
	if !auth.IsParent(r.Context()) {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "not allowed"})
		return
	}

	children, err := h.userStore.ListChildren(auth.UserID(r.Context()))
	if err != nil {
		h.logger.Error("list children", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	if children == nil {
		children = []model.User{}
	}
	writeJSON(w, http.StatusOK, children)
}

func (h *ChildHandler) Create(w http.ResponseWriter, r *http.Request) {
	if !auth.IsParent(r.Context()) {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "not allowed"})
		return
	}

	var req childRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Name = strings.TrimSpace(req.Name)
	if req.Email == "" || req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "email and name are required"})
		return
	}
	if len(req.Password) < minPasswordLen {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "password must be at least 8 characters"})
		return
	}

	existing, err := h.userStore.GetByEmail(req.Email)
	if err != nil {
		h.logger.Error("child lookup", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	if existing != nil {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "email already registered"})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		h.logger.Error("hash password", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	child, err := h.userStore.CreateChild(auth.UserID(r.Context()), req.Email, req.Name, string(hash))
	if err != nil {
		h.logger.Error("create child", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	writeJSON(w, http.StatusCreated, child)
}

// owned loads a child and verifies it belongs to the calling parent.
func (h *ChildHandler) owned(w http.ResponseWriter, r *http.Request) *model.User {
	if !auth.IsParent(r.Context()) {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "not allowed"})
		return nil
	}

	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return nil
	}

	child, err := h.userStore.GetByID(id)
	if err != nil {
		h.logger.Error("get child", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return nil
	}
	if child == nil || child.Role != model.RoleChild || child.ParentID == nil || *child.ParentID != auth.UserID(r.Context()) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "child not found"})
		return nil
	}
	return child
}

func (h *ChildHandler) Update(w http.ResponseWriter, r *http.Request) {
	child := h.owned(w, r)
	if child == nil {
		return
	}

	var req childRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Name = strings.TrimSpace(req.Name)
	if req.Email == "" || req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "email and name are required"})
		return
	}

	updated, err := h.userStore.UpdateProfile(child.ID, req.Email, req.Name)
	if err != nil {
		h.logger.Error("update child", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	if req.Password != "" {
		if len(req.Password) < minPasswordLen {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "password must be at least 8 characters"})
			return
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			h.logger.Error("hash password", "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
			return
		}
		if err := h.userStore.UpdatePassword(child.ID, string(hash)); err != nil {
			h.logger.Error("update child password", "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
			return
		}
	}

	h.hub.SendTo(child.ID, websocket.NewMessage("user", "updated", child.ID, nil))
	writeJSON(w, http.StatusOK, updated)
}

func (h *ChildHandler) Delete(w http.ResponseWriter, r *http.Request) {
	child := h.owned(w, r)
	if child == nil {
		return
	}

	if err := h.userStore.Delete(child.ID); err != nil {
		h.logger.Error("delete child", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
