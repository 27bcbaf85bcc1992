package model

import "time"

const (
	ClaimStatusPending  = "pending"
	ClaimStatusApproved = "approved"
	ClaimStatusDenied   = "denied"
)

// RewardClaim is an append-only ledger entry recording a child's request to
// redeem a reward. CoinCost is captured at claim time so later catalog edits
// never change what a pending claim will debit. Status moves from pending to
// approved or denied exactly once.
type RewardClaim struct {
	ID          int64      `json:"id"`
	Ref         string     `json:"ref"`
	RewardID    *int64     `json:"reward_id"`
	RewardTitle string     `json:"reward_title"`
	ChildID     int64      `json:"child_id"`
	ChildName   string     `json:"child_name"`
	ParentID    int64      `json:"parent_id"`
	CoinCost    int        `json:"coin_cost"`
	ImageURL    *string    `json:"image_url"`
	Status      string     `json:"status"`
	ClaimedAt   time.Time  `json:"claimed_at"`
	ApprovedAt  *time.Time `json:"approved_at"`
	DeniedAt    *time.Time `json:"denied_at"`
}
