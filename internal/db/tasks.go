package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/baiirun/taskboard/internal/model"
)

// CreateTask inserts a new task and sets its ID. Timestamps default to now.
func (db *DB) CreateTask(ctx context.Context, task *model.Task) error {
	if !task.Status.IsValid() {
		return fmt.Errorf("invalid status: %s", task.Status)
	}
	if !task.Priority.IsValid() {
		return fmt.Errorf("invalid priority: %d", task.Priority)
	}
	now := time.Now().UTC()
	if task.CreatedAt.IsZero() {
		task.CreatedAt = now
	}
	if task.UpdatedAt.IsZero() {
		task.UpdatedAt = task.CreatedAt
	}

	result, err := db.ExecContext(ctx, `
		INSERT INTO tasks (header, description, priority, status, end_date, author, assigned_user, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		task.Title, task.Description, task.Priority, task.Status, task.EndDate.UTC(),
		task.Author, task.AssignedUser, task.CreatedAt, task.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read task id: %w", err)
	}
	task.ID = id
	return nil
}

const taskSelect = `
	SELECT t.id, t.header, t.description, t.priority, t.status, t.end_date,
	       t.author, t.assigned_user, t.created_at, t.updated_at,
	       u.id, u.first_name, u.second_name
	FROM tasks t
	LEFT JOIN users u ON u.id = t.assigned_user`

// GetTask retrieves a task by ID with its assignee summary.
func (db *DB) GetTask(ctx context.Context, id int64) (*model.Task, error) {
	row := db.QueryRowContext(ctx, taskSelect+` WHERE t.id = ?`, id)
	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: task %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return task, nil
}

// ListTasks returns every task in creation order with assignee summaries.
func (db *DB) ListTasks(ctx context.Context) ([]model.Task, error) {
	rows, err := db.QueryContext(ctx, taskSelect+` ORDER BY t.id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var tasks []model.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, *task)
	}
	return tasks, rows.Err()
}

// UpdateTask replaces every mutable field of the stored task with task's values.
// ID and CreatedAt are never written.
func (db *DB) UpdateTask(ctx context.Context, task *model.Task) error {
	if !task.Status.IsValid() {
		return fmt.Errorf("invalid status: %s", task.Status)
	}
	if !task.Priority.IsValid() {
		return fmt.Errorf("invalid priority: %d", task.Priority)
	}
	if task.UpdatedAt.IsZero() {
		task.UpdatedAt = time.Now().UTC()
	}

	result, err := db.ExecContext(ctx, `
		UPDATE tasks
		SET header = ?, description = ?, priority = ?, status = ?, end_date = ?,
		    author = ?, assigned_user = ?, updated_at = ?
		WHERE id = ?`,
		task.Title, task.Description, task.Priority, task.Status, task.EndDate.UTC(),
		task.Author, task.AssignedUser, task.UpdatedAt, task.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("%w: task %d", ErrNotFound, task.ID)
	}
	return nil
}

// UpdateTaskStatus changes only a task's status and updated_at.
func (db *DB) UpdateTaskStatus(ctx context.Context, id int64, status model.Status, at time.Time) error {
	if !status.IsValid() {
		return fmt.Errorf("invalid status: %s", status)
	}

	result, err := db.ExecContext(ctx, `
		UPDATE tasks SET status = ?, updated_at = ? WHERE id = ?`,
		status, at.UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update status: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("%w: task %d", ErrNotFound, id)
	}
	return nil
}

// DeleteTask removes a task.
func (db *DB) DeleteTask(ctx context.Context, id int64) error {
	result, err := db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("%w: task %d", ErrNotFound, id)
	}
	return nil
}

func scanTask(row rowScanner) (*model.Task, error) {
	task := &model.Task{}
	var (
		createdAt, updatedAt sql.NullTime
		assigneeID           sql.NullInt64
		firstName, lastName  sql.NullString
	)
	err := row.Scan(
		&task.ID, &task.Title, &task.Description, &task.Priority, &task.Status, &task.EndDate,
		&task.Author, &task.AssignedUser, &createdAt, &updatedAt,
		&assigneeID, &firstName, &lastName,
	)
	if err != nil {
		return nil, err
	}
	if createdAt.Valid {
		task.CreatedAt = createdAt.Time
	}
	if updatedAt.Valid {
		task.UpdatedAt = updatedAt.Time
	}
	if assigneeID.Valid {
		task.Assignee = &model.UserSummary{
			ID:         assigneeID.Int64,
			FirstName:  firstName.String,
			SecondName: lastName.String,
		}
	}
	return task, nil
}
