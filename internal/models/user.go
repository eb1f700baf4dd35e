package models

import (
	"fmt"
	"strings"
	"time"
)

// User is a support agent who can sign in
type User struct {
	ID             string     `json:"id"`
	Email          string     `json:"email"`
	DisplayName    string     `json:"display_name"`
	PasswordHash   string     `json:"-"`
	FailedAttempts int        `json:"-"`
	LockedUntil    *time.Time `json:"-"`
	CreatedAt      time.Time  `json:"created_at"`
	LastLoginAt    *time.Time `json:"last_login_at,omitempty"`
}

// Validate checks that the user can be stored
func (u *User) Validate() error {
	if u.ID == "" {
		return fmt.Errorf("user id is required")
	}
	if strings.TrimSpace(u.Email) == "" {
		return fmt.Errorf("email is required")
	}
	if !strings.Contains(u.Email, "@") {
		return fmt.Errorf("email must contain '@'")
	}
	if u.PasswordHash == "" {
		return fmt.Errorf("password hash is required")
	}
	return nil
}

// IsLocked reports whether the account is inside a lockout window
func (u *User) IsLocked() bool {
	return u.LockedUntil != nil && u.LockedUntil.After(time.Now())
}

// RecordFailure bumps the failure counter and starts a lockout once threshold is reached
func (u *User) RecordFailure(threshold int, lockout time.Duration) {
	u.FailedAttempts++
	if threshold > 0 && u.FailedAttempts >= threshold {
		until := time.Now().Add(lockout)
		u.LockedUntil = &until
	}
}

// RecordSuccess clears failure tracking after a good login
func (u *User) RecordSuccess() {
	now := time.Now()
	u.FailedAttempts = 0
	u.LockedUntil = nil
	u.LastLoginAt = &now
}

// NormalizeEmail is the form emails are looked up by
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
