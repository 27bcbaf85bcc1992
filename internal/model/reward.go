package model

import "time"

type Reward struct {
	ID          int64     `json:"id"`
	ParentID    int64     `json:"parent_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	CoinCost    int       `json:"coin_cost"`
	ImageURL    *string   `json:"image_url"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
