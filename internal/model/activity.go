package model

import "time"

const (
	ActivityTaskCompletion = "task_completion"
	ActivityRewardClaim    = "reward_claim"
)

// Activity is a feed row for the parent dashboard, recorded alongside the
// ledger mutation that produced it.
type Activity struct {
	ID          int64     `json:"id"`
	ParentID    int64     `json:"parent_id"`
	ChildID     int64     `json:"child_id"`
	ChildName   string    `json:"child_name"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Type        string    `json:"type"`
	TaskID      *int64    `json:"task_id"`
	RewardID    *int64    `json:"reward_id"`
	CreatedAt   time.Time `json:"created_at"`
}
