package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/taskquest/taskquest/internal/model"
)

type NotificationStore struct {
	db *sql.DB
}

func NewNotificationStore(db *sql.DB) *NotificationStore {
	return &NotificationStore{db: db}
}

func scanNotification(scanner interface{ Scan(...any) error }) (*model.Notification, error) {
	var n model.Notification
	var read int
	var metadata string

	err := scanner.Scan(
		&n.ID, &n.UserID, &n.Title, &n.Message, &n.Type,
		&metadata, &read, &n.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	n.Read = read != 0
	if err := json.Unmarshal([]byte(metadata), &n.Metadata); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	return &n, nil
}

const notificationCols = `id, user_id, title, message, type, metadata, read, created_at`

// Create appends an unread notification for the recipient.
func (s *NotificationStore) Create(userID int64, title, message, notifType string, metadata map[string]any) (*model.Notification, error) {
	meta, err := encodeMetadata(metadata)
	if err != nil {
		return nil, err
	}

	result, err := s.db.Exec(
		`INSERT INTO notifications (user_id, title, message, type, metadata) VALUES (?, ?, ?, ?, ?)`,
		userID, title, message, notifType, meta,
	)
	if err != nil {
		return nil, fmt.Errorf("insert notification: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func encodeMetadata(metadata map[string]any) (string, error) {
	if metadata == nil {
		return "{}", nil
	}
	data, err := json.Marshal(metadata)
	if err != nil {
		return "", fmt.Errorf("encode metadata: %w", err)
	}
	return string(data), nil
}

func (s *NotificationStore) GetByID(id int64) (*model.Notification, error) {
	row := s.db.QueryRow(`SELECT `+notificationCols+` FROM notifications WHERE id = ?`, id)
	n, err := scanNotification(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get notification: %w", err)
	}
	return n, nil
}

// ListUnread returns the recipient's current unread set, newest first.
func (s *NotificationStore) ListUnread(userID int64) ([]model.Notification, error) {
	rows, err := s.db.Query(
		`SELECT `+notificationCols+` FROM notifications WHERE user_id = ? AND read = 0 ORDER BY created_at DESC, id DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list unread notifications: %w", err)
	}
	defer rows.Close()

	var notifications []model.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		notifications = append(notifications, *n)
	}
	return notifications, rows.Err()
}

// DeleteRead removes notifications already dismissed before the given cutoff,
// keeping the table from growing without bound.
func (s *NotificationStore) DeleteRead(before string) (int64, error) {
	result, err := s.db.Exec(
		`DELETE FROM notifications WHERE read = 1 AND created_at < ?`,
		before,
	)
	if err != nil {
		return 0, fmt.Errorf("delete read notifications: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return count, nil
}
