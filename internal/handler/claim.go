package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/taskquest/taskquest/internal/auth"
	"github.com/taskquest/taskquest/internal/engine"
	"github.com/taskquest/taskquest/internal/model"
	"github.com/taskquest/taskquest/internal/store"
	"github.com/taskquest/taskquest/internal/websocket"
)

type ClaimHandler struct {
	claimStore *store.ClaimStore
	engine     *engine.Engine
	hub        *websocket.Hub
	logger     *slog.Logger
}

func NewClaimHandler(cs *store.ClaimStore, eng *engine.Engine, hub *websocket.Hub, logger *slog.Logger) *ClaimHandler {
	return &ClaimHandler{claimStore: cs, engine: eng, hub: hub, logger: logger}
}

// List returns the caller's claims: a parent sees claims addressed to them
// (optionally only pending via ?status=pending), a child sees their own
// history.
func (h *ClaimHandler) List(w http.ResponseWriter, r *http.Request) {
	var claims []model.RewardClaim
	var err error

	userID := auth.UserID(r.Context())
	if auth.IsParent(r.Context()) {
		if r.URL.Query().Get("status") == model.ClaimStatusPending {
			claims, err = h.claimStore.ListPendingByParent(userID)
		} else {
			claims, err = h.claimStore.ListByParent(userID)
		}
	} else {
		claims, err = h.claimStore.ListByChild(userID)
	}
	if err != nil {
		h.logger.Error("list claims", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	if claims == nil {
		claims = []model.RewardClaim{}
	}
	writeJSON(w, http.StatusOK, claims)
}

func (h *ClaimHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	claim, err := h.claimStore.GetByID(id)
	if err != nil {
		h.logger.Error("get claim", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	userID := auth.UserID(r.Context())
	if claim == nil || (claim.ParentID != userID && claim.ChildID != userID) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "claim not found"})
		return
	}
	writeJSON(w, http.StatusOK, claim)
}

// Approve resolves a pending claim and debits the child. An already-resolved
// claim is answered with its current state rather than an error, so a double
// click cannot double-debit.
func (h *ClaimHandler) Approve(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, h.engine.ApproveClaim, "approved")
}

// Deny resolves a pending claim without moving coins.
func (h *ClaimHandler) Deny(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, h.engine.DenyClaim, "denied")
}

func (h *ClaimHandler) decide(w http.ResponseWriter, r *http.Request, op func(auth.Principal, int64) error, action string) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	p, _ := auth.FromContext(r.Context())
	err = op(p, id)
	if err != nil && !errors.Is(err, engine.ErrClaimResolved) {
		writeEngineError(w, err)
		return
	}
	alreadyResolved := errors.Is(err, engine.ErrClaimResolved)

	claim, loadErr := h.claimStore.GetByID(id)
	if loadErr != nil || claim == nil {
		h.logger.Error("reload claim", "error", loadErr)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	if !alreadyResolved {
		msg := websocket.NewMessage("claim", action, claim.ID, map[string]any{"ref": claim.Ref})
		h.hub.SendTo(claim.ParentID, msg)
		h.hub.SendTo(claim.ChildID, msg)
		h.hub.SendTo(claim.ChildID, websocket.NewMessage("notification", "created", 0, nil))
	}
	writeJSON(w, http.StatusOK, map[string]any{"claim": claim, "already_resolved": alreadyResolved})
}
