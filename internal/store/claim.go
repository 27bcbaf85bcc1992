package store

import (
	"database/sql"
	"fmt"

	"github.com/taskquest/taskquest/internal/model"
)

type ClaimStore struct {
	db *sql.DB
}

func NewClaimStore(db *sql.DB) *ClaimStore {
	return &ClaimStore{db: db}
}

func scanClaim(scanner interface{ Scan(...any) error }) (*model.RewardClaim, error) {
	var c model.RewardClaim
	var rewardID sql.NullInt64
	var imageURL sql.NullString
	var approvedAt, deniedAt sql.NullTime

	err := scanner.Scan(
		&c.ID, &c.Ref, &rewardID, &c.RewardTitle, &c.ChildID, &c.ChildName,
		&c.ParentID, &c.CoinCost, &imageURL, &c.Status,
		&c.ClaimedAt, &approvedAt, &deniedAt,
	)
	if err != nil {
		return nil, err
	}

	if rewardID.Valid {
		c.RewardID = &rewardID.Int64
	}
	if imageURL.Valid {
		c.ImageURL = &imageURL.String
	}
	if approvedAt.Valid {
		c.ApprovedAt = &approvedAt.Time
	}
	if deniedAt.Valid {
		c.DeniedAt = &deniedAt.Time
	}
	return &c, nil
}

const claimCols = `id, ref, reward_id, reward_title, child_id, child_name, parent_id, coin_cost, image_url, status, claimed_at, approved_at, denied_at`

func (s *ClaimStore) GetByID(id int64) (*model.RewardClaim, error) {
	row := s.db.QueryRow(`SELECT `+claimCols+` FROM reward_claims WHERE id = ?`, id)
	c, err := scanClaim(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get claim: %w", err)
	}
	return c, nil
}

func (s *ClaimStore) listBy(column string, id int64) ([]model.RewardClaim, error) {
	rows, err := s.db.Query(
		`SELECT `+claimCols+` FROM reward_claims WHERE `+column+` = ? ORDER BY claimed_at DESC, id DESC`,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("list claims by %s: %w", column, err)
	}
	defer rows.Close()

	var claims []model.RewardClaim
	for rows.Next() {
		c, err := scanClaim(rows)
		if err != nil {
			return nil, fmt.Errorf("scan claim: %w", err)
		}
		claims = append(claims, *c)
	}
	return claims, rows.Err()
}

// ListByParent returns claims addressed to a parent, newest first.
func (s *ClaimStore) ListByParent(parentID int64) ([]model.RewardClaim, error) {
	return s.listBy("parent_id", parentID)
}

// ListByChild returns a child's claim history, newest first.
func (s *ClaimStore) ListByChild(childID int64) ([]model.RewardClaim, error) {
	return s.listBy("child_id", childID)
}

// ListPendingByParent returns only the claims still awaiting a decision.
func (s *ClaimStore) ListPendingByParent(parentID int64) ([]model.RewardClaim, error) {
	rows, err := s.db.Query(
		`SELECT `+claimCols+` FROM reward_claims WHERE parent_id = ? AND status = ? ORDER BY claimed_at DESC, id DESC`,
		parentID, model.ClaimStatusPending,
	)
	if err != nil {
		return nil, fmt.Errorf("list pending claims: %w", err)
	}
	defer rows.Close()

	var claims []model.RewardClaim
	for rows.Next() {
		c, err := scanClaim(rows)
		if err != nil {
			return nil, fmt.Errorf("scan claim: %w", err)
		}
		claims = append(claims, *c)
	}
	return claims, rows.Err()
}
