package storage

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shindakun/supportdesk/internal/models"
)

// setupTestDB creates an in-memory database with the full schema
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := OpenMemory()
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return db
}

func insertTestUser(t *testing.T, db *sql.DB, email string) *models.User {
	t.Helper()

	user := &models.User{
		ID:           uuid.New().String(),
		Email:        email,
		DisplayName:  "Test Agent",
		PasswordHash: "$2a$04$placeholderplaceholderplaceholderplaceholderpla",
	}
	if err := CreateUser(context.Background(), db, user); err != nil {
		t.Fatalf("Failed to create user: %v", err)
	}
	return user
}

func TestInitDBCreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "test.db")

	db, err := InitDB(path)
	if err != nil {
		t.Fatalf("InitDB failed: %v", err)
	}
	defer db.Close()

	var version int
	if err := db.QueryRow("SELECT MAX(version) FROM schema_version").Scan(&version); err != nil {
		t.Fatalf("Failed to read schema version: %v", err)
	}
	if version != 1 {
		t.Errorf("Expected schema version 1, got %d", version)
	}
}

func TestCreateAndGetUser(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	created := insertTestUser(t, db, "  Agent@Example.COM ")

	user, err := GetUserByEmail(ctx, db, "agent@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail failed: %v", err)
	}
	if user.ID != created.ID {
		t.Errorf("Expected id %s, got %s", created.ID, user.ID)
	}
	if user.Email != "agent@example.com" {
		t.Errorf("Expected normalized email, got %q", user.Email)
	}
	if user.LockedUntil != nil || user.LastLoginAt != nil {
		t.Error("Expected new user to have no lockout or last login")
	}

	byID, err := GetUserByID(ctx, db, created.ID)
	if err != nil {
		t.Fatalf("GetUserByID failed: %v", err)
	}
	if byID.DisplayName != "Test Agent" {
		t.Errorf("Unexpected display name %q", byID.DisplayName)
	}

	n, err := CountUsers(ctx, db)
	if err != nil {
		t.Fatalf("CountUsers failed: %v", err)
	}
	if n != 1 {
		t.Errorf("Expected 1 user, got %d", n)
	}
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	db := setupTestDB(t)
	insertTestUser(t, db, "agent@example.com")

	dup := &models.User{
		ID:           uuid.New().String(),
		Email:        "AGENT@example.com",
		PasswordHash: "hash",
	}
	err := CreateUser(context.Background(), db, dup)
	if !errors.Is(err, ErrEmailTaken) {
		t.Errorf("Expected ErrEmailTaken, got %v", err)
	}
}

func TestGetUserNotFound(t *testing.T) {
	db := setupTestDB(t)
	if _, err := GetUserByEmail(context.Background(), db, "nobody@example.com"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestUpdateLoginState(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	user := insertTestUser(t, db, "agent@example.com")

	user.RecordFailure(2, time.Hour)
	user.RecordFailure(2, time.Hour)
	if err := UpdateLoginState(ctx, db, user); err != nil {
		t.Fatalf("UpdateLoginState failed: %v", err)
	}

	locked, err := GetUserByID(ctx, db, user.ID)
	if err != nil {
		t.Fatalf("GetUserByID failed: %v", err)
	}
	if locked.FailedAttempts != 2 {
		t.Errorf("Expected 2 failed attempts, got %d", locked.FailedAttempts)
	}
	if !locked.IsLocked() {
		t.Error("Expected user to be locked")
	}

	locked.RecordSuccess()
	if err := UpdateLoginState(ctx, db, locked); err != nil {
		t.Fatalf("UpdateLoginState failed: %v", err)
	}

	cleared, err := GetUserByID(ctx, db, user.ID)
	if err != nil {
		t.Fatalf("GetUserByID failed: %v", err)
	}
	if cleared.FailedAttempts != 0 || cleared.LockedUntil != nil {
		t.Errorf("Expected failure tracking cleared, got %+v", cleared)
	}
	if cleared.LastLoginAt == nil {
		t.Error("Expected last login recorded")
	}

	missing := &models.User{ID: "missing"}
	if err := UpdateLoginState(ctx, db, missing); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestSessionLifecycle(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	user := insertTestUser(t, db, "agent@example.com")

	session := &models.Session{
		ID:        uuid.New().String(),
		UserID:    user.ID,
		UserAgent: "test",
		IPAddress: "127.0.0.1",
		ExpiresAt: time.Now().Add(time.Hour),
		CreatedAt: time.Now(),
	}
	if err := SaveSession(ctx, db, session); err != nil {
		t.Fatalf("SaveSession failed: %v", err)
	}

	loaded, err := GetSession(ctx, db, session.ID)
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if loaded.Email != "agent@example.com" || loaded.UserID != user.ID {
		t.Errorf("Unexpected session: %+v", loaded)
	}
	if !loaded.IsActive() {
		t.Error("Expected session to be active")
	}

	deleted, err := DeleteSession(ctx, db, session.ID)
	if err != nil {
		t.Fatalf("DeleteSession failed: %v", err)
	}
	if !deleted {
		t.Error("Expected DeleteSession to report the removed row")
	}
	if deleted, err := DeleteSession(ctx, db, session.ID); err != nil || deleted {
		t.Errorf("Expected second delete to be a no-op, got deleted=%v err=%v", deleted, err)
	}
	if _, err := GetSession(ctx, db, session.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound after delete, got %v", err)
	}
}

func TestDeleteExpiredSessions(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	user := insertTestUser(t, db, "agent@example.com")

	live := &models.Session{ID: uuid.New().String(), UserID: user.ID, ExpiresAt: time.Now().Add(time.Hour), CreatedAt: time.Now()}
	if err := SaveSession(ctx, db, live); err != nil {
		t.Fatalf("SaveSession failed: %v", err)
	}

	// Expired rows cannot pass Validate, so insert directly.
	if _, err := db.Exec(`INSERT INTO sessions (id, user_id, expires_at, created_at) VALUES (?, ?, ?, ?)`,
		uuid.New().String(), user.ID, time.Now().Add(-time.Hour).UTC(), time.Now().Add(-2*time.Hour).UTC()); err != nil {
		t.Fatalf("Failed to insert expired session: %v", err)
	}

	removed, err := DeleteExpiredSessions(db)
	if err != nil {
		t.Fatalf("DeleteExpiredSessions failed: %v", err)
	}
	if removed != 1 {
		t.Errorf("Expected 1 expired session removed, got %d", removed)
	}
	if _, err := GetSession(ctx, db, live.ID); err != nil {
		t.Errorf("Expected live session to survive, got %v", err)
	}
}
