package data

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrUsernameDuplicate = errors.New("username already exists")
)

// DBTX is a common interface for *sql.DB and *sql.Tx
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

type User struct {
	ID           uuid.UUID
	Username     string
	DisplayName  string
	Role         string
	PasswordHash string
	IsDisabled   bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type UserModel struct {
	DB DBTX
}

// GetByUsername retrieves a console account
func (m UserModel) GetByUsername(ctx context.Context, username string) (*User, error) {
	query := `
		SELECT id, username, display_name, role, password_hash, is_disabled, created_at, updated_at
		FROM users
		WHERE username = $1
	`
	var u User
	err := m.DB.QueryRowContext(ctx, query, username).Scan(
		&u.ID, &u.Username, &u.DisplayName, &u.Role, &u.PasswordHash, &u.IsDisabled, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (m UserModel) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	query := `
		SELECT id, username, display_name, role, password_hash, is_disabled, created_at, updated_at
		FROM users
		WHERE id = $1
	`
	var u User
	err := m.DB.QueryRowContext(ctx, query, id).Scan(
		&u.ID, &u.Username, &u.DisplayName, &u.Role, &u.PasswordHash, &u.IsDisabled, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

// Create inserts a new account. Username is unique.
func (m UserModel) Create(ctx context.Context, u *User) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	query := `
		INSERT INTO users (id, username, display_name, role, password_hash, is_disabled, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
	`
	_, err := m.DB.ExecContext(ctx, query, u.ID, u.Username, u.DisplayName, u.Role, u.PasswordHash, u.IsDisabled)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrUsernameDuplicate
		}
		return err
	}
	return nil
}

// SetDisabled flips the account flag. Disabled accounts cannot log in.
func (m UserModel) SetDisabled(ctx context.Context, id uuid.UUID, disabled bool) error {
	query := `UPDATE users SET is_disabled = $2, updated_at = NOW() WHERE id = $1`
	res, err := m.DB.ExecContext(ctx, query, id, disabled)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrUserNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505" // unique_violation
	}
	return false
}
