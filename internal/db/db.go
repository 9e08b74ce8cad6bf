// Package db provides the SQL-backed credential and task stores for taskboard.
//
// SQLite (modernc.org/sqlite) is the default driver and the database is stored at
// ~/.taskboard/taskboard.db. MySQL is supported for shared deployments.
// Use Open() to connect and Init() to create the schema.
package db

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-sql-driver/mysql"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const (
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
)

var (
	// ErrNotFound is returned when a user or task id does not match a stored row.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateLogin is returned when a user is created with a login already in use.
	ErrDuplicateLogin = errors.New("login already exists")
)

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	first_name TEXT NOT NULL,
	second_name TEXT NOT NULL,
	login TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	role TEXT NOT NULL DEFAULT 'user',
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP
)`,
	`CREATE TABLE IF NOT EXISTS tasks (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	header TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	priority INTEGER NOT NULL DEFAULT 2,
	status TEXT NOT NULL DEFAULT 'pending',
	end_date DATETIME NOT NULL,
	author INTEGER NOT NULL REFERENCES users(id),
	assigned_user INTEGER NOT NULL REFERENCES users(id),
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
)`,
	`CREATE INDEX IF NOT EXISTS idx_tasks_assigned_user ON tasks(assigned_user)`,
	`CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status)`,
}

var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
	id BIGINT AUTO_INCREMENT PRIMARY KEY,
	first_name VARCHAR(255) NOT NULL,
	second_name VARCHAR(255) NOT NULL,
	login VARCHAR(255) NOT NULL UNIQUE,
	password_hash VARCHAR(255) NOT NULL,
	role VARCHAR(16) NOT NULL DEFAULT 'user',
	created_at DATETIME(6) DEFAULT CURRENT_TIMESTAMP(6)
)`,
	`CREATE TABLE IF NOT EXISTS tasks (
	id BIGINT AUTO_INCREMENT PRIMARY KEY,
	header VARCHAR(255) NOT NULL,
	description TEXT NOT NULL,
	priority INT NOT NULL DEFAULT 2,
	status VARCHAR(16) NOT NULL DEFAULT 'pending',
	end_date DATETIME(6) NOT NULL,
	author BIGINT NOT NULL,
	assigned_user BIGINT NOT NULL,
	created_at DATETIME(6) DEFAULT CURRENT_TIMESTAMP(6),
	updated_at DATETIME(6) DEFAULT CURRENT_TIMESTAMP(6),
	INDEX idx_tasks_assigned_user (assigned_user),
	INDEX idx_tasks_status (status),
	FOREIGN KEY (author) REFERENCES users(id),
	FOREIGN KEY (assigned_user) REFERENCES users(id)
)`,
}

// DB wraps a SQL database connection with user and task operations.
type DB struct {
	*sql.DB
	driver string
}

// DefaultPath returns the default SQLite database path (~/.taskboard/taskboard.db)
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".taskboard", "taskboard.db"), nil
}

// Open opens or creates the SQLite database at the given path.
func Open(path string) (*DB, error) {
	return OpenDriver(DriverSQLite, path)
}

// OpenDriver connects using the named driver. For sqlite the dsn is a file path,
// for mysql it is a go-sql-driver DSN.
func OpenDriver(driver, dsn string) (*DB, error) {
	switch driver {
	case DriverSQLite:
		return openSQLite(dsn)
	case DriverMySQL:
		return openMySQL(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver: %q", driver)
	}
}

func openSQLite(path string) (*DB, error) {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection keeps the foreign_keys pragma in effect and serializes writers.
	db.SetMaxOpenConns(1)

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return &DB{DB: db, driver: DriverSQLite}, nil
}

func openMySQL(dsn string) (*DB, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse mysql dsn: %w", err)
	}
	// DATETIME columns scan into time.Time, and UPDATE reports matched rather
	// than changed rows so an unchanged full update is not mistaken for a miss.
	cfg.ParseTime = true
	cfg.ClientFoundRows = true

	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db := sql.OpenDB(connector)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{DB: db, driver: DriverMySQL}, nil
}

// Driver returns the name of the driver the connection was opened with.
func (db *DB) Driver() string {
	return db.driver
}

// Init creates the schema.
func (db *DB) Init() error {
	schema := sqliteSchema
	if db.driver == DriverMySQL {
		schema = mysqlSchema
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

// isUniqueViolation reports whether err is a unique-constraint failure from
// either supported driver.
func isUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE ||
			strings.Contains(sqliteErr.Error(), "UNIQUE constraint failed")
	}
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	return false
}
