package store

import (
	"database/sql"
	"fmt"

	"github.com/taskquest/taskquest/internal/model"
)

type RewardStore struct {
	db *sql.DB
}

func NewRewardStore(db *sql.DB) *RewardStore {
	return &RewardStore{db: db}
}

func scanReward(scanner interface{ Scan(...any) error }) (*model.Reward, error) {
	var r model.Reward
	var imageURL sql.NullString

	err := scanner.Scan(
		&r.ID, &r.ParentID, &r.Title, &r.Description, &r.CoinCost,
		&imageURL, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if imageURL.Valid {
		r.ImageURL = &imageURL.String
	}
	return &r, nil
}

const rewardCols = `id, parent_id, title, description, coin_cost, image_url, created_at, updated_at`

func (s *RewardStore) Create(parentID int64, title, description string, coinCost int, imageURL *string) (*model.Reward, error) {
	var img sql.NullString
	if imageURL != nil {
		img = sql.NullString{String: *imageURL, Valid: true}
	}

	result, err := s.db.Exec(
		`INSERT INTO rewards (parent_id, title, description, coin_cost, image_url) VALUES (?, ?, ?, ?, ?)`,
		parentID, title, description, coinCost, img,
	)
	if err != nil {
		return nil, fmt.Errorf("insert reward: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *RewardStore) GetByID(id int64) (*model.Reward, error) {
	row := s.db.QueryRow(`SELECT `+rewardCols+` FROM rewards WHERE id = ?`, id)
	r, err := scanReward(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get reward: %w", err)
	}
	return r, nil
}

// ListByParent returns a parent's reward catalog, ordered by cost then title.
func (s *RewardStore) ListByParent(parentID int64) ([]model.Reward, error) {
	rows, err := s.db.Query(
		`SELECT `+rewardCols+` FROM rewards WHERE parent_id = ? ORDER BY coin_cost ASC, title ASC`,
		parentID,
	)
	if err != nil {
		return nil, fmt.Errorf("list rewards: %w", err)
	}
	defer rows.Close()

	var rewards []model.Reward
	for rows.Next() {
		r, err := scanReward(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reward: %w", err)
		}
		rewards = append(rewards, *r)
	}
	return rewards, rows.Err()
}

func (s *RewardStore) Update(id int64, title, description string, coinCost int, imageURL *string) (*model.Reward, error) {
	var img sql.NullString
	if imageURL != nil {
		img = sql.NullString{String: *imageURL, Valid: true}
	}

	_, err := s.db.Exec(
		`UPDATE rewards SET title = ?, description = ?, coin_cost = ?, image_url = ?, updated_at = datetime('now') WHERE id = ?`,
		title, description, coinCost, img, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update reward: %w", err)
	}
	return s.GetByID(id)
}

func (s *RewardStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM rewards WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete reward: %w", err)
	}
	return nil
}
