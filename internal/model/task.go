package model

import "time"

const (
	TaskTypeDaily   = "daily"
	TaskTypeOneTime = "one_time"
)

// Task is a quest a parent assigns to one or more children. Completed and
// LastCompletedAt jointly encode the cycle state: a daily task is only
// "done" within the calendar day of its last completion.
type Task struct {
	ID              int64      `json:"id"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	CoinValue       int        `json:"coin_value"`
	Type            string     `json:"type"`
	Icon            string     `json:"icon"`
	Completed       bool       `json:"completed"`
	LastCompletedAt *time.Time `json:"last_completed_at"`
	AssignedTo      []int64    `json:"assigned_to"`
	CreatedBy       int64      `json:"created_by"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}
