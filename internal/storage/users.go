package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shindakun/supportdesk/internal/models"
)

// ErrEmailTaken is returned when creating a user whose email already exists
var ErrEmailTaken = errors.New("email already registered")

func nowUTC() time.Time {
	return time.Now().UTC()
}

// CreateUser inserts a new user
func CreateUser(ctx context.Context, db *sql.DB, user *models.User) error {
	if err := user.Validate(); err != nil {
		return fmt.Errorf("invalid user: %w", err)
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = nowUTC()
	}

	query := `
		INSERT INTO users (id, email, display_name, password_hash, failed_attempts, created_at)
		VALUES (?, ?, ?, ?, 0, ?)
	`

	_, err := db.ExecContext(ctx, query,
		user.ID,
		models.NormalizeEmail(user.Email),
		user.DisplayName,
		user.PasswordHash,
		user.CreatedAt.UTC(),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrEmailTaken
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

const userColumns = `id, email, display_name, password_hash, failed_attempts, locked_until, last_login_at, created_at`

func scanUser(row *sql.Row) (*models.User, error) {
	var (
		user        models.User
		lockedUntil sql.NullTime
		lastLogin   sql.NullTime
	)

	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.DisplayName,
		&user.PasswordHash,
		&user.FailedAttempts,
		&lockedUntil,
		&lastLogin,
		&user.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}

	if lockedUntil.Valid {
		t := lockedUntil.Time
		user.LockedUntil = &t
	}
	if lastLogin.Valid {
		t := lastLogin.Time
		user.LastLoginAt = &t
	}

	return &user, nil
}

// GetUserByEmail looks a user up by normalized email
func GetUserByEmail(ctx context.Context, db *sql.DB, email string) (*models.User, error) {
	row := db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ?`,
		models.NormalizeEmail(email),
	)
	return scanUser(row)
}

// GetUserByID looks a user up by id
func GetUserByID(ctx context.Context, db *sql.DB, id string) (*models.User, error) {
	row := db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return scanUser(row)
}

// UpdateLoginState persists failure tracking and last login time
func UpdateLoginState(ctx context.Context, db *sql.DB, user *models.User) error {
	var lockedUntil, lastLogin any
	if user.LockedUntil != nil {
		lockedUntil = user.LockedUntil.UTC()
	}
	if user.LastLoginAt != nil {
		lastLogin = user.LastLoginAt.UTC()
	}

	result, err := db.ExecContext(ctx, `
		UPDATE users
		SET failed_attempts = ?, locked_until = ?, last_login_at = ?
		WHERE id = ?
	`, user.FailedAttempts, lockedUntil, lastLogin, user.ID)
	if err != nil {
		return fmt.Errorf("failed to update login state: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

// UpdatePasswordHash replaces a user's password hash
func UpdatePasswordHash(ctx context.Context, db *sql.DB, userID, hash string) error {
	result, err := db.ExecContext(ctx, `UPDATE users SET password_hash = ? WHERE id = ?`, hash, userID)
	if err != nil {
		return fmt.Errorf("failed to update password hash: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// CountUsers returns the number of registered users
func CountUsers(ctx context.Context, db *sql.DB) (int, error) {
	var n int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return n, nil
}
