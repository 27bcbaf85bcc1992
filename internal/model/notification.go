package model

import "time"

const (
	NotifTypeRewardRequested = "reward_approval_request"
	NotifTypeRewardApproved  = "reward_approved"
	NotifTypeRewardDenied    = "reward_denied"
)

// Notification is an ephemeral relay record between roles. Terminal state is
// read = true; the unread set is what clients render.
type Notification struct {
	ID        int64          `json:"id"`
	UserID    int64          `json:"user_id"`
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	Type      string         `json:"type"`
	Metadata  map[string]any `json:"metadata"`
	Read      bool           `json:"read"`
	CreatedAt time.Time      `json:"created_at"`
}
