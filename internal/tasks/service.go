// Package tasks applies create, update and delete operations to the task store.
//
// Callers are expected to have run the auth.Guard first: Create, UpdateFull and
// Delete assume an admin caller, UpdateStatusOnly any authenticated one. Update
// performs the role branch itself for callers holding an identity.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/baiirun/taskboard/internal/auth"
	"github.com/baiirun/taskboard/internal/db"
	"github.com/baiirun/taskboard/internal/model"
)

var (
	ErrNotFound      = errors.New("task not found")
	ErrInvalidStatus = errors.New("invalid status")
)

// ValidationError reports a malformed task draft.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Store is the persistence the service needs. *db.DB satisfies it.
type Store interface {
	CreateTask(ctx context.Context, task *model.Task) error
	GetTask(ctx context.Context, id int64) (*model.Task, error)
	ListTasks(ctx context.Context) ([]model.Task, error)
	UpdateTask(ctx context.Context, task *model.Task) error
	UpdateTaskStatus(ctx context.Context, id int64, status model.Status, at time.Time) error
	DeleteTask(ctx context.Context, id int64) error
	UserExists(ctx context.Context, id int64) (bool, error)
}

type Service struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

func NewService(store Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, logger: logger, now: time.Now}
}

// Create stores a new task authored by authorID. Status always starts at
// model.DefaultStatus; draft.Status and draft.Author are ignored.
func (s *Service) Create(ctx context.Context, draft model.TaskDraft, authorID int64) (*model.Task, error) {
	if err := s.validateDraft(ctx, draft); err != nil {
		return nil, err
	}
	if err := s.requireUser(ctx, "author", authorID); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	task := &model.Task{
		Title:        draft.Title,
		Description:  draft.Description,
		Priority:     draft.Priority,
		Status:       model.DefaultStatus,
		EndDate:      draft.EndDate,
		Author:       authorID,
		AssignedUser: draft.AssignedUser,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.CreateTask(ctx, task); err != nil {
		return nil, err
	}
	s.logger.Info("Task created",
		slog.Int64("task_id", task.ID),
		slog.Int64("author", authorID),
		slog.Int64("assigned_user", task.AssignedUser))

	return s.get(ctx, task.ID)
}

// ListAll returns every task in creation order. The result is never nil.
func (s *Service) ListAll(ctx context.Context) ([]model.Task, error) {
	tasks, err := s.store.ListTasks(ctx)
	if err != nil {
		return nil, err
	}
	if tasks == nil {
		tasks = []model.Task{}
	}
	return tasks, nil
}

// UpdateFull replaces every mutable field of task id. An empty draft.Status
// and a zero draft.Author keep the stored values.
func (s *Service) UpdateFull(ctx context.Context, id int64, draft model.TaskDraft) (*model.Task, error) {
	current, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	status := current.Status
	if draft.Status != "" {
		if !draft.Status.IsValid() {
			return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, draft.Status)
		}
		status = draft.Status
	}
	if err := s.validateDraft(ctx, draft); err != nil {
		return nil, err
	}
	author := current.Author
	if draft.Author != 0 {
		if err := s.requireUser(ctx, "author", draft.Author); err != nil {
			return nil, err
		}
		author = draft.Author
	}

	task := &model.Task{
		ID:           id,
		Title:        draft.Title,
		Description:  draft.Description,
		Priority:     draft.Priority,
		Status:       status,
		EndDate:      draft.EndDate,
		Author:       author,
		AssignedUser: draft.AssignedUser,
		CreatedAt:    current.CreatedAt,
		UpdatedAt:    s.now().UTC(),
	}
	if err := s.store.UpdateTask(ctx, task); err != nil {
		return nil, mapNotFound(err, id)
	}
	s.logger.Info("Task updated", slog.Int64("task_id", id), slog.String("status", string(task.Status)))

	return s.get(ctx, id)
}

// UpdateStatusOnly sets the status of task id and leaves every other field
// untouched. Any status may follow any other.
func (s *Service) UpdateStatusOnly(ctx context.Context, id int64, status model.Status) (*model.Task, error) {
	if !status.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	if err := s.store.UpdateTaskStatus(ctx, id, status, s.now().UTC()); err != nil {
		return nil, mapNotFound(err, id)
	}
	s.logger.Info("Task status changed", slog.Int64("task_id", id), slog.String("status", string(status)))

	return s.get(ctx, id)
}

// Delete removes task id.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.store.DeleteTask(ctx, id); err != nil {
		return mapNotFound(err, id)
	}
	s.logger.Info("Task deleted", slog.Int64("task_id", id))
	return nil
}

// Update dispatches on the caller's role: admins get a full update, users a
// status-only update of draft.Status. Non-admin callers may change the status
// of any task, not only those assigned to them.
func (s *Service) Update(ctx context.Context, caller auth.Identity, id int64, draft model.TaskDraft) (*model.Task, error) {
	switch caller.Role {
	case model.RoleAdmin:
		return s.UpdateFull(ctx, id, draft)
	case model.RoleUser:
		return s.UpdateStatusOnly(ctx, id, draft.Status)
	default:
		return nil, fmt.Errorf("%w: role %q", auth.ErrForbidden, caller.Role)
	}
}

func (s *Service) get(ctx context.Context, id int64) (*model.Task, error) {
	task, err := s.store.GetTask(ctx, id)
	if err != nil {
		return nil, mapNotFound(err, id)
	}
	return task, nil
}

func (s *Service) validateDraft(ctx context.Context, draft model.TaskDraft) error {
	if strings.TrimSpace(draft.Title) == "" {
		return &ValidationError{Field: "header", Reason: "must not be empty"}
	}
	if !draft.Priority.IsValid() {
		return &ValidationError{Field: "priority", Reason: fmt.Sprintf("%d is not one of 1, 2, 3", draft.Priority)}
	}
	if draft.EndDate.IsZero() {
		return &ValidationError{Field: "endDate", Reason: "is required"}
	}
	return s.requireUser(ctx, "assignedUser", draft.AssignedUser)
}

func (s *Service) requireUser(ctx context.Context, field string, id int64) error {
	if id <= 0 {
		return &ValidationError{Field: field, Reason: "is required"}
	}
	ok, err := s.store.UserExists(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return &ValidationError{Field: field, Reason: fmt.Sprintf("user %d does not exist", id)}
	}
	return nil
}

func mapNotFound(err error, id int64) error {
	if errors.Is(err, db.ErrNotFound) {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return err
}
