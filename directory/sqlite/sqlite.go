// Package sqlite implements the directory.UserStore interface over a local
// SQLite database using the pure-Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/opsboard/auth/directory"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	user_id        TEXT PRIMARY KEY,
	auth0_id       TEXT NOT NULL UNIQUE,
	email          TEXT NOT NULL,
	name           TEXT NOT NULL,
	picture        TEXT NOT NULL DEFAULT '',
	email_verified INTEGER NOT NULL DEFAULT 0,
	created_at     INTEGER NOT NULL,
	last_login     INTEGER NOT NULL,
	role           TEXT NOT NULL DEFAULT 'user',
	is_active      INTEGER NOT NULL DEFAULT 1
);
`

// toMillis normalizes timestamps into millisecond precision for storage.
func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

// fromMillis restores millisecond precision and keeps UTC normalization.
func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Store implements directory persistence over SQLite.
type Store struct {
	db *sql.DB
}

// Compile-time interface check
var _ directory.UserStore = (*Store)(nil)

// Open opens the user directory store and creates the schema if needed.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the underlying database
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the raw database handle for administrative callers
func (s *Store) DB() *sql.DB {
	if s == nil {
		return nil
	}
	return s.db
}

// FindByProviderID looks up a user by provider subject identifier
func (s *Store) FindByProviderID(ctx context.Context, auth0ID string) (*directory.LocalUser, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT user_id, auth0_id, email, name, picture, email_verified,
       created_at, last_login, role, is_active
FROM users
WHERE auth0_id = ?`, auth0ID)

	return scanUser(row)
}

// Insert creates a new user record
func (s *Store) Insert(ctx context.Context, user *directory.LocalUser) (*directory.LocalUser, error) {
	if user == nil || user.Auth0ID == "" {
		return nil, fmt.Errorf("invalid user")
	}

	_, err := s.db.ExecContext(ctx, `
INSERT INTO users (
	user_id, auth0_id, email, name, picture, email_verified,
	created_at, last_login, role, is_active
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.UserID,
		user.Auth0ID,
		user.Email,
		user.Name,
		user.Picture,
		boolToInt(user.EmailVerified),
		toMillis(user.CreatedAt),
		toMillis(user.LastLogin),
		user.Role,
		boolToInt(user.IsActive),
	)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}

	return s.FindByProviderID(ctx, user.Auth0ID)
}

// Update refreshes the provider-sourced fields of an existing record.
// Role and active flag are administrator-controlled and never written here.
func (s *Store) Update(ctx context.Context, user *directory.LocalUser) (*directory.LocalUser, error) {
	if user == nil || user.Auth0ID == "" {
		return nil, fmt.Errorf("invalid user")
	}

	res, err := s.db.ExecContext(ctx, `
UPDATE users
SET email = ?,
    name = ?,
    picture = ?,
    email_verified = ?,
    last_login = ?
WHERE auth0_id = ?`,
		user.Email,
		user.Name,
		user.Picture,
		boolToInt(user.EmailVerified),
		toMillis(user.LastLogin),
		user.Auth0ID,
	)
	if err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	if affected == 0 {
		return nil, directory.ErrUserNotFound
	}

	return s.FindByProviderID(ctx, user.Auth0ID)
}

// SetActive flips the active flag for administrative tooling
func (s *Store) SetActive(ctx context.Context, auth0ID string, active bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET is_active = ? WHERE auth0_id = ?`,
		boolToInt(active), auth0ID)
	if err != nil {
		return fmt.Errorf("set active: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set active: %w", err)
	}
	if affected == 0 {
		return directory.ErrUserNotFound
	}
	return nil
}

// SetRole assigns a role for administrative tooling
func (s *Store) SetRole(ctx context.Context, auth0ID string, role string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET role = ? WHERE auth0_id = ?`,
		role, auth0ID)
	if err != nil {
		return fmt.Errorf("set role: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set role: %w", err)
	}
	if affected == 0 {
		return directory.ErrUserNotFound
	}
	return nil
}

func scanUser(row *sql.Row) (*directory.LocalUser, error) {
	var user directory.LocalUser
	var emailVerified, isActive int
	var createdAt, lastLogin int64

	err := row.Scan(
		&user.UserID,
		&user.Auth0ID,
		&user.Email,
		&user.Name,
		&user.Picture,
		&emailVerified,
		&createdAt,
		&lastLogin,
		&user.Role,
		&isActive,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, directory.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}

	user.EmailVerified = emailVerified != 0
	user.IsActive = isActive != 0
	user.CreatedAt = fromMillis(createdAt)
	user.LastLogin = fromMillis(lastLogin)
	return &user, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
