package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shindakun/supportdesk/internal/models"
)

// SaveSession stores a new session row
func SaveSession(ctx context.Context, db *sql.DB, session *models.Session) error {
	if err := session.Validate(); err != nil {
		return fmt.Errorf("invalid session: %w", err)
	}

	query := `
		INSERT INTO sessions (id, user_id, user_agent, ip_address, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := db.ExecContext(ctx, query,
		session.ID,
		session.UserID,
		session.UserAgent,
		session.IPAddress,
		session.ExpiresAt.UTC(),
		session.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save session to database: %w", err)
	}

	return nil
}

// GetSession loads a session joined with its user
func GetSession(ctx context.Context, db *sql.DB, id string) (*models.Session, error) {
	var session models.Session
	query := `
		SELECT s.id, s.user_id, u.email, u.display_name, s.user_agent, s.ip_address, s.expires_at, s.created_at
		FROM sessions s
		JOIN users u ON u.id = s.user_id
		WHERE s.id = ?
	`

	err := db.QueryRowContext(ctx, query, id).Scan(
		&session.ID,
		&session.UserID,
		&session.Email,
		&session.DisplayName,
		&session.UserAgent,
		&session.IPAddress,
		&session.ExpiresAt,
		&session.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve session from database: %w", err)
	}

	return &session, nil
}

// DeleteSession removes a session row and reports whether it existed.
// Deleting a missing session is not an error.
func DeleteSession(ctx context.Context, db *sql.DB, id string) (bool, error) {
	result, err := db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete session from database: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows > 0, nil
}
