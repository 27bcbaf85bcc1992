package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/taskquest/taskquest/internal/auth"
	"github.com/taskquest/taskquest/internal/engine"
	"github.com/taskquest/taskquest/internal/model"
	"github.com/taskquest/taskquest/internal/store"
	"github.com/taskquest/taskquest/internal/websocket"
)

type RewardHandler struct {
	rewardStore *store.RewardStore
	userStore   *store.UserStore
	claimStore  *store.ClaimStore
	engine      *engine.Engine
	hub         *websocket.Hub
	logger      *slog.Logger
}

func NewRewardHandler(rs *store.RewardStore, us *store.UserStore, cs *store.ClaimStore, eng *engine.Engine, hub *websocket.Hub, logger *slog.Logger) *RewardHandler {
	return &RewardHandler{rewardStore: rs, userStore: us, claimStore: cs, engine: eng, hub: hub, logger: logger}
}

type rewardRequest struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	CoinCost    int     `json:"coin_cost"`
	ImageURL    *string `json:"image_url"`
}

func (req *rewardRequest) validate() string {
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		return "title is required"
	}
	if req.CoinCost <= 0 {
		return "coin_cost must be positive"
	}
	return ""
}

func (h *RewardHandler) Create(w http.ResponseWriter, r *http.Request) {
	if !auth.IsParent(r.Context()) {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "not allowed"})
		return
	}

	var req rewardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if msg := req.validate(); msg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
		return
	}

	reward, err := h.rewardStore.Create(auth.UserID(r.Context()), req.Title, req.Description, req.CoinCost, req.ImageURL)
	if err != nil {
		h.logger.Error("create reward", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	h.notifyFamily(reward.ParentID, websocket.NewMessage("reward", "created", reward.ID, nil))
	writeJSON(w, http.StatusCreated, reward)
}

// List returns the family catalog: a parent's own rewards, or for a child the
// rewards published by their parent.
func (h *RewardHandler) List(w http.ResponseWriter, r *http.Request) {
	parentID := auth.UserID(r.Context())
	if !auth.IsParent(r.Context()) {
		child, err := h.userStore.GetByID(parentID)
		if err != nil {
			h.logger.Error("load child", "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
			return
		}
		if child == nil || child.ParentID == nil {
			writeJSON(w, http.StatusOK, []model.Reward{})
			return
		}
		parentID = *child.ParentID
	}

	rewards, err := h.rewardStore.ListByParent(parentID)
	if err != nil {
		h.logger.Error("list rewards", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	if rewards == nil {
		rewards = []model.Reward{}
	}
	writeJSON(w, http.StatusOK, rewards)
}

// owned loads a reward and verifies the caller is the parent who published it.
func (h *RewardHandler) owned(w http.ResponseWriter, r *http.Request) *model.Reward {
	if !auth.IsParent(r.Context()) {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "not allowed"})
		return nil
	}

	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return nil
	}

	reward, err := h.rewardStore.GetByID(id)
	if err != nil {
		h.logger.Error("get reward", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return nil
	}
	if reward == nil || reward.ParentID != auth.UserID(r.Context()) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "reward not found"})
		return nil
	}
	return reward
}

func (h *RewardHandler) Update(w http.ResponseWriter, r *http.Request) {
	reward := h.owned(w, r)
	if reward == nil {
		return
	}

	var req rewardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if msg := req.validate(); msg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
		return
	}

	updated, err := h.rewardStore.Update(reward.ID, req.Title, req.Description, req.CoinCost, req.ImageURL)
	if err != nil {
		h.logger.Error("update reward", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	h.notifyFamily(updated.ParentID, websocket.NewMessage("reward", "updated", updated.ID, nil))
	writeJSON(w, http.StatusOK, updated)
}

// Delete removes a reward from the catalog. Existing claims keep their
// captured title and cost; only the live reward reference goes away.
func (h *RewardHandler) Delete(w http.ResponseWriter, r *http.Request) {
	reward := h.owned(w, r)
	if reward == nil {
		return
	}

	if err := h.rewardStore.Delete(reward.ID); err != nil {
		h.logger.Error("delete reward", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	h.notifyFamily(reward.ParentID, websocket.NewMessage("reward", "deleted", reward.ID, nil))
	w.WriteHeader(http.StatusNoContent)
}

// Redeem files a claim for the calling child. Coins are checked but not
// deducted; the debit happens when the parent approves.
func (h *RewardHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	p, _ := auth.FromContext(r.Context())
	result, err := h.engine.RedeemReward(p, id)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	claim, err := h.claimStore.GetByID(result.ClaimID)
	if err != nil {
		h.logger.Error("load claim", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	if claim != nil {
		msg := websocket.NewMessage("claim", "created", claim.ID, map[string]any{"ref": claim.Ref})
		h.hub.SendTo(claim.ParentID, msg)
		h.hub.SendTo(claim.ChildID, msg)
		h.hub.SendTo(claim.ParentID, websocket.NewMessage("notification", "created", 0, nil))
	}
	writeJSON(w, http.StatusCreated, claim)
}

// notifyFamily pushes a catalog event to the parent and all their children.
func (h *RewardHandler) notifyFamily(parentID int64, msg websocket.Message) {
	h.hub.SendTo(parentID, msg)
	children, err := h.userStore.ListChildren(parentID)
	if err != nil {
		h.logger.Error("list children for push", "error", err)
		return
	}
	for _, child := range children {
		h.hub.SendTo(child.ID, msg)
	}
}
