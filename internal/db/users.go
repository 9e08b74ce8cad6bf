package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/baiirun/taskboard/internal/model"
)

// CreateUser inserts a new user and sets its ID.
func (db *DB) CreateUser(ctx context.Context, user *model.User) error {
	if !user.Role.IsValid() {
		return fmt.Errorf("invalid role: %s", user.Role)
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	result, err := db.ExecContext(ctx, `
		INSERT INTO users (first_name, second_name, login, password_hash, role, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		user.FirstName, user.SecondName, user.Login, user.PasswordHash, user.Role, user.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrDuplicateLogin, user.Login)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read user id: %w", err)
	}
	user.ID = id
	return nil
}

const userColumns = `id, first_name, second_name, login, password_hash, role, created_at`

// GetUser retrieves a user by ID.
func (db *DB) GetUser(ctx context.Context, id int64) (*model.User, error) {
	row := db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: user %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// GetUserByLogin retrieves a user by login name.
func (db *DB) GetUserByLogin(ctx context.Context, login string) (*model.User, error) {
	row := db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE login = ?`, login)
	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: user %q", ErrNotFound, login)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// ListUsers returns all users ordered by ID.
func (db *DB) ListUsers(ctx context.Context) ([]model.User, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var users []model.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, *user)
	}
	return users, rows.Err()
}

// UserExists reports whether a user with the given ID is stored.
func (db *DB) UserExists(ctx context.Context, id int64) (bool, error) {
	var count int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE id = ?`, id).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check user: %w", err)
	}
	return count > 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*model.User, error) {
	user := &model.User{}
	var createdAt sql.NullTime
	err := row.Scan(
		&user.ID, &user.FirstName, &user.SecondName, &user.Login,
		&user.PasswordHash, &user.Role, &createdAt,
	)
	if err != nil {
		return nil, err
	}
	if createdAt.Valid {
		user.CreatedAt = createdAt.Time
	}
	return user, nil
}
