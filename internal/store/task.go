package store

import (
	"database/sql"
	"fmt"

	"github.com/taskquest/taskquest/internal/model"
)

type TaskStore struct {
	db *sql.DB
}

func NewTaskStore(db *sql.DB) *TaskStore {
	return &TaskStore{db: db}
}

func scanTask(scanner interface{ Scan(...any) error }) (*model.Task, error) {
	var t model.Task
	var completed int
	var lastCompletedAt sql.NullTime

	err := scanner.Scan(
		&t.ID, &t.Title, &t.Description, &t.CoinValue, &t.Type, &t.Icon,
		&completed, &lastCompletedAt, &t.CreatedBy, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	t.Completed = completed != 0
	if lastCompletedAt.Valid {
		t.LastCompletedAt = &lastCompletedAt.Time
	}
	return &t, nil
}

const taskCols = `id, title, description, coin_value, type, icon, completed, last_completed_at, created_by, created_at, updated_at`

// Create inserts a task and its assignment rows in one transaction.
func (s *TaskStore) Create(title, description string, coinValue int, taskType, icon string, createdBy int64, assignedTo []int64) (*model.Task, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(
		`INSERT INTO tasks (title, description, coin_value, type, icon, created_by) VALUES (?, ?, ?, ?, ?, ?)`,
		title, description, coinValue, taskType, icon, createdBy,
	)
	if err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	for _, childID := range assignedTo {
		if _, err := tx.Exec(
			`INSERT INTO task_assignments (task_id, child_id) VALUES (?, ?)`,
			id, childID,
		); err != nil {
			return nil, fmt.Errorf("insert assignment: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return s.GetByID(id)
}

func (s *TaskStore) GetByID(id int64) (*model.Task, error) {
	row := s.db.QueryRow(`SELECT `+taskCols+` FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	if err := s.loadAssignments(t); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *TaskStore) loadAssignments(t *model.Task) error {
	rows, err := s.db.Query(
		`SELECT child_id FROM task_assignments WHERE task_id = ? ORDER BY child_id ASC`,
		t.ID,
	)
	if err != nil {
		return fmt.Errorf("load assignments: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var childID int64
		if err := rows.Scan(&childID); err != nil {
			return fmt.Errorf("scan assignment: %w", err)
		}
		t.AssignedTo = append(t.AssignedTo, childID)
	}
	return rows.Err()
}

func (s *TaskStore) collect(rows *sql.Rows) ([]model.Task, error) {
	defer rows.Close()

	var tasks []model.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}
	for i := range tasks {
		if err := s.loadAssignments(&tasks[i]); err != nil {
			return nil, err
		}
	}
	return tasks, nil
}

// ListByCreator returns the tasks a parent created, newest first.
func (s *TaskStore) ListByCreator(parentID int64) ([]model.Task, error) {
	rows, err := s.db.Query(
		`SELECT `+taskCols+` FROM tasks WHERE created_by = ? ORDER BY created_at DESC, id DESC`,
		parentID,
	)
	if err != nil {
		return nil, fmt.Errorf("list tasks by creator: %w", err)
	}
	return s.collect(rows)
}

// ListByAssignee returns the tasks assigned to a child, newest first.
func (s *TaskStore) ListByAssignee(childID int64) ([]model.Task, error) {
	rows, err := s.db.Query(
		`SELECT `+taskCols+` FROM tasks t
		 JOIN task_assignments a ON a.task_id = t.id
		 WHERE a.child_id = ? ORDER BY t.created_at DESC, t.id DESC`,
		childID,
	)
	if err != nil {
		return nil, fmt.Errorf("list tasks by assignee: %w", err)
	}
	return s.collect(rows)
}

// Update rewrites a task's fields and replaces its assignment set. A parent
// edit also clears the completion flag so the task returns to pending.
func (s *TaskStore) Update(id int64, title, description string, coinValue int, taskType, icon string, assignedTo []int64, resetCompletion bool) (*model.Task, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if resetCompletion {
		_, err = tx.Exec(
			`UPDATE tasks SET title = ?, description = ?, coin_value = ?, type = ?, icon = ?,
			 completed = 0, last_completed_at = NULL, updated_at = datetime('now') WHERE id = ?`,
			title, description, coinValue, taskType, icon, id,
		)
	} else {
		_, err = tx.Exec(
			`UPDATE tasks SET title = ?, description = ?, coin_value = ?, type = ?, icon = ?,
			 updated_at = datetime('now') WHERE id = ?`,
			title, description, coinValue, taskType, icon, id,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM task_assignments WHERE task_id = ?`, id); err != nil {
		return nil, fmt.Errorf("clear assignments: %w", err)
	}
	for _, childID := range assignedTo {
		if _, err := tx.Exec(
			`INSERT INTO task_assignments (task_id, child_id) VALUES (?, ?)`,
			id, childID,
		); err != nil {
			return nil, fmt.Errorf("insert assignment: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return s.GetByID(id)
}

func (s *TaskStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return nil
}

// IsAssigned reports whether the task is assigned to the given child.
func (s *TaskStore) IsAssigned(taskID, childID int64) (bool, error) {
	var one int
	err := s.db.QueryRow(
		`SELECT 1 FROM task_assignments WHERE task_id = ? AND child_id = ?`,
		taskID, childID,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check assignment: %w", err)
	}
	return true, nil
}
