package model

import "time"

const (
	RoleParent = "parent"
	RoleChild  = "child"
)

// User is a single principal, either parent or child. Coin balance,
// completion counters, and the parent reference only apply to children.
type User struct {
	ID             int64     `json:"id"`
	Email          string    `json:"email"`
	Name           string    `json:"name"`
	Role           string    `json:"role"`
	Coins          int       `json:"coins"`
	TasksCompleted int       `json:"tasks_completed"`
	DailyStreak    int       `json:"daily_streak"`
	ParentID       *int64    `json:"parent_id"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
