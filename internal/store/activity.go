package store

import (
	"database/sql"
	"fmt"

	"github.com/taskquest/taskquest/internal/model"
)

type ActivityStore struct {
	db *sql.DB
}

func NewActivityStore(db *sql.DB) *ActivityStore {
	return &ActivityStore{db: db}
}

func scanActivity(scanner interface{ Scan(...any) error }) (*model.Activity, error) {
	var a model.Activity
	var taskID, rewardID sql.NullInt64

	err := scanner.Scan(
		&a.ID, &a.ParentID, &a.ChildID, &a.ChildName, &a.Title,
		&a.Description, &a.Type, &taskID, &rewardID, &a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if taskID.Valid {
		a.TaskID = &taskID.Int64
	}
	if rewardID.Valid {
		a.RewardID = &rewardID.Int64
	}
	return &a, nil
}

const activityCols = `id, parent_id, child_id, child_name, title, description, type, task_id, reward_id, created_at`

// ListByParent returns the most recent activity rows for a parent's family.
func (s *ActivityStore) ListByParent(parentID int64, limit int) ([]model.Activity, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(
		`SELECT `+activityCols+` FROM activities WHERE parent_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`,
		parentID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}
	defer rows.Close()

	var activities []model.Activity
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		activities = append(activities, *a)
	}
	return activities, rows.Err()
}
