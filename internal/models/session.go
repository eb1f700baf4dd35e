package models

import (
	"errors"
	"time"
)

// Session is a signed-in agent's web session. The cookie only carries ID.
type Session struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	UserAgent   string    `json:"-"`
	IPAddress   string    `json:"-"`
	ExpiresAt   time.Time `json:"expires_at"`
	CreatedAt   time.Time `json:"created_at"`
}

// Validate checks a session before it is stored
func (s *Session) Validate() error {
	switch {
	case s.ID == "":
		return errors.New("session id is required")
	case s.UserID == "":
		return errors.New("user id is required")
	case s.ExpiresAt.IsZero():
		return errors.New("expires_at is required")
	case s.ExpiredAt(time.Now()):
		return errors.New("expires_at must be a future timestamp")
	}
	return nil
}

// ExpiredAt reports whether the session is no longer valid at now
func (s *Session) ExpiredAt(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// IsExpired reports whether the session has expired
func (s *Session) IsExpired() bool {
	return s.ExpiredAt(time.Now())
}

// IsActive reports whether the session can still be used
func (s *Session) IsActive() bool {
	return !s.IsExpired()
}
