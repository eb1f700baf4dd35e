package middleware

import (
	"net/http"
	"net/url"

	"github.com/shindakun/supportdesk/internal/auth"
)

// LoginPath is where unauthenticated requests are sent
const LoginPath = "/login"

// RequireAuth is a middleware that requires authentication.
// Redirects to /login?redirect=<original path> if no valid session is found.
func RequireAuth(sessionManager *auth.SessionManager) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session, err := sessionManager.GetSession(r)
			if err != nil || session == nil {
				target := LoginURL(r.URL.RequestURI())

				// HTMX requests follow HX-Redirect on the client
				if r.Header.Get("HX-Request") == "true" {
					w.Header().Set("HX-Redirect", target)
					w.WriteHeader(http.StatusUnauthorized)
					return
				}
				http.Redirect(w, r, target, http.StatusSeeOther)
				return
			}

			ctx := auth.SetSessionInContext(r.Context(), session)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// LoadSession attaches the session to the context when one exists, without requiring it
func LoadSession(sessionManager *auth.SessionManager) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if session, err := sessionManager.GetSession(r); err == nil && session != nil {
				r = r.WithContext(auth.SetSessionInContext(r.Context(), session))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// LoginURL returns the login page URL that brings the user back to returnTo
func LoginURL(returnTo string) string {
	if returnTo == "" || returnTo == "/" || returnTo == LoginPath {
		return LoginPath
	}
	return LoginPath + "?" + url.Values{"redirect": {returnTo}}.Encode()
}
