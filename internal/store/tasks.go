// ABOUTME: SQLite implementation of TaskStore for owner-scoped task persistence.
// ABOUTME: Every query filters by owner_id; a foreign owner's task reads as absent.

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Ensure SQLiteStore implements TaskStore.
var _ TaskStore = (*SQLiteStore)(nil)

// CreateTask creates a new task. Generates ID and timestamps if not set.
func (s *SQLiteStore) CreateTask(ctx context.Context, task *Task) error {
	if task.ID == "" {
		task.ID = uuid.New().String()
	}
	if task.Status == "" {
		task.Status = TaskStatusPending
	}
	now := time.Now()
	if task.CreatedAt.IsZero() {
		task.CreatedAt = now
	}
	if task.UpdatedAt.IsZero() {
		task.UpdatedAt = now
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tasks (id, owner_id, title, description, status, due_date, recurrence, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		task.ID,
		task.OwnerID,
		task.Title,
		nullString(task.Description),
		task.Status,
		nullTime(task.DueDate),
		nullString(task.Recurrence),
		task.CreatedAt.UTC().Format(time.RFC3339),
		task.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting task: %w", err)
	}

	s.logger.Debug("created task", "id", task.ID, "owner_id", task.OwnerID, "title", task.Title)
	return nil
}

// GetTask retrieves a task by id, scoped to the owner.
// Returns ErrNotFound for both an absent id and an ownership mismatch.
func (s *SQLiteStore) GetTask(ctx context.Context, ownerID, id string) (*Task, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, owner_id, title, description, status, due_date, recurrence, created_at, updated_at
		FROM tasks
		WHERE id = ? AND owner_id = ?
	`, id, ownerID)
	return scanTask(row.Scan)
}

// ListTasks returns the owner's tasks ordered by creation time.
// status is "all", "pending" or "completed"; empty behaves like "all".
func (s *SQLiteStore) ListTasks(ctx context.Context, ownerID, status string) ([]*Task, error) {
	query := `
		SELECT id, owner_id, title, description, status, due_date, recurrence, created_at, updated_at
		FROM tasks
		WHERE owner_id = ?
	`
	args := []any{ownerID}

	if status != "" && status != "all" {
		query += ` AND status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*Task
	for rows.Next() {
		task, err := scanTask(rows.Scan)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating task rows: %w", err)
	}
	return tasks, nil
}

// UpdateTask updates a task's mutable fields. The WHERE clause is scoped to
// the task's owner, so a mismatched owner updates zero rows and reads as
// ErrNotFound.
func (s *SQLiteStore) UpdateTask(ctx context.Context, task *Task) error {
	task.UpdatedAt = time.Now()

	result, err := s.db.ExecContext(ctx, `
		UPDATE tasks
		SET title = ?, description = ?, status = ?, due_date = ?, recurrence = ?, updated_at = ?
		WHERE id = ? AND owner_id = ?
	`,
		task.Title,
		nullString(task.Description),
		task.Status,
		nullTime(task.DueDate),
		nullString(task.Recurrence),
		task.UpdatedAt.UTC().Format(time.RFC3339),
		task.ID,
		task.OwnerID,
	)
	if err != nil {
		return fmt.Errorf("updating task: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	s.logger.Debug("updated task", "id", task.ID, "owner_id", task.OwnerID)
	return nil
}

// CompleteTask marks a task completed and returns the updated row.
// Completing an already-completed task is idempotent: the status stays
// completed and only updated_at changes.
func (s *SQLiteStore) CompleteTask(ctx context.Context, ownerID, id string) (*Task, error) {
	now := time.Now()

	result, err := s.db.ExecContext(ctx, `
		UPDATE tasks
		SET status = ?, updated_at = ?
		WHERE id = ? AND owner_id = ?
	`, TaskStatusCompleted, now.UTC().Format(time.RFC3339), id, ownerID)
	if err != nil {
		return nil, fmt.Errorf("completing task: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return nil, ErrNotFound
	}

	s.logger.Debug("completed task", "id", id, "owner_id", ownerID)
	return s.GetTask(ctx, ownerID, id)
}

// DeleteTask removes a task. Returns ErrNotFound for an absent id or an
// ownership mismatch.
func (s *SQLiteStore) DeleteTask(ctx context.Context, ownerID, id string) error {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM tasks WHERE id = ? AND owner_id = ?`, id, ownerID)
	if err != nil {
		return fmt.Errorf("deleting task: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	s.logger.Debug("deleted task", "id", id, "owner_id", ownerID)
	return nil
}

// scanTask scans a task row from either *sql.Row or *sql.Rows.
func scanTask(scan func(dest ...any) error) (*Task, error) {
	var task Task
	var description, dueDate, recurrence sql.NullString
	var createdAtStr, updatedAtStr string

	err := scan(
		&task.ID,
		&task.OwnerID,
		&task.Title,
		&description,
		&task.Status,
		&dueDate,
		&recurrence,
		&createdAtStr,
		&updatedAtStr,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning task: %w", err)
	}

	if description.Valid {
		task.Description = description.String
	}
	if recurrence.Valid {
		task.Recurrence = recurrence.String
	}
	if dueDate.Valid {
		t, err := time.Parse(time.RFC3339, dueDate.String)
		if err != nil {
			return nil, fmt.Errorf("parsing due_date: %w", err)
		}
		task.DueDate = &t
	}

	task.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	task.UpdatedAt, err = time.Parse(time.RFC3339, updatedAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}

	return &task, nil
}
