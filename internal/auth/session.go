package auth

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gorilla/sessions"

	"github.com/shindakun/supportdesk/internal/models"
)

const (
	sessionName         = "supportdesk-session"
	sessionKeySessionID = "session_id"
)

type contextKey string

const sessionContextKey contextKey = "session"

// SessionManager ties the session cookie to session rows
type SessionManager struct {
	store   *sessions.CookieStore
	service *Service
}

// InitSessions creates a new session manager with HTTP-only cookies
func InitSessions(secret string, maxAge int, secure bool, sameSite http.SameSite, service *Service) *SessionManager {
	store := sessions.NewCookieStore([]byte(secret))

	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true, // Prevent JavaScript access
		Secure:   secure,
		SameSite: sameSite,
	}

	return &SessionManager{
		store:   store,
		service: service,
	}
}

// SaveSession writes the session id into the cookie
func (sm *SessionManager) SaveSession(w http.ResponseWriter, r *http.Request, session *models.Session) error {
	if session == nil || session.ID == "" {
		return fmt.Errorf("session id is required")
	}

	cookieSession, err := sm.store.Get(r, sessionName)
	if err != nil && cookieSession == nil {
		return fmt.Errorf("failed to get cookie session: %w", err)
	}

	cookieSession.Values[sessionKeySessionID] = session.ID

	if err := cookieSession.Save(r, w); err != nil {
		return fmt.Errorf("failed to save cookie session: %w", err)
	}

	return nil
}

// GetSession retrieves session data from cookie and database
func (sm *SessionManager) GetSession(r *http.Request) (*models.Session, error) {
	cookieSession, err := sm.store.Get(r, sessionName)
	if err != nil {
		return nil, fmt.Errorf("failed to get cookie session: %w", err)
	}

	sessionID, ok := cookieSession.Values[sessionKeySessionID].(string)
	if !ok || sessionID == "" {
		return nil, fmt.Errorf("no session found in cookie")
	}

	session, err := sm.service.Session(r.Context(), sessionID)
	if err != nil {
		return nil, err
	}

	return session, nil
}

// ClearSession removes session from cookie and database (logout).
// ended is true only when a stored session was deleted.
func (sm *SessionManager) ClearSession(w http.ResponseWriter, r *http.Request) (ended bool, err error) {
	cookieSession, getErr := sm.store.Get(r, sessionName)
	if getErr != nil {
		// If we can't decode the cookie there is nothing to clear server side
		cookieSession = sessions.NewSession(sm.store, sessionName)
		opts := *sm.store.Options
		cookieSession.Options = &opts
	}

	if sessionID, ok := cookieSession.Values[sessionKeySessionID].(string); ok && sessionID != "" {
		ended, err = sm.service.Logout(r.Context(), sessionID)
		if err != nil {
			return false, err
		}
	}

	cookieSession.Options.MaxAge = -1
	if err := cookieSession.Save(r, w); err != nil {
		return ended, fmt.Errorf("failed to clear cookie session: %w", err)
	}

	return ended, nil
}

// GetSessionFromContext retrieves session from request context
func GetSessionFromContext(ctx context.Context) (*models.Session, bool) {
	session, ok := ctx.Value(sessionContextKey).(*models.Session)
	return session, ok
}

// SetSessionInContext stores session in request context
func SetSessionInContext(ctx context.Context, session *models.Session) context.Context {
	return context.WithValue(ctx, sessionContextKey, session)
}
