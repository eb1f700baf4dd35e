package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/shindakun/supportdesk/internal/auth"
	"github.com/shindakun/supportdesk/internal/loginview"
	"github.com/shindakun/supportdesk/internal/metrics"
)

// apiError is the body of every failed API response
type apiError struct {
	Error apiErrorBody `json:"error"`
}

type apiErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type createSessionResponse struct {
	Redirect  string    `json:"redirect"`
	ExpiresAt time.Time `json:"expires_at"`
}

type meResponse struct {
	UserID      string    `json:"user_id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// APICreateSession signs in with a JSON {"email","password"} body
func (h *Handlers) APICreateSession(w http.ResponseWriter, r *http.Request) {
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		writeAPIError(w, http.StatusUnsupportedMediaType, "REQUEST_INVALID", "Content-Type must be application/json.")
		return
	}

	var creds loginview.Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeAPIError(w, http.StatusBadRequest, "REQUEST_INVALID", "Request body must be a JSON object with email and password.")
		return
	}

	start := time.Now()
	session, err := h.authService.Login(r.Context(), creds.Email, creds.Password, r.UserAgent(), clientIP(r))
	metrics.RecordLogin(metrics.SurfaceAPI, outcomeFor(err), time.Since(start))
	if err != nil {
		h.logger.Info("api login rejected",
			zap.String("request_id", requestID(r)),
			zap.String("code", auth.CodeOf(err)),
			zap.Error(err),
		)
		code := auth.CodeOf(err)
		if code == "" {
			code = auth.CodeLoginFailed
		}
		writeAPIError(w, statusFor(err), code, loginview.MessageFor(err))
		return
	}

	if err := h.sessionManager.SaveSession(w, r, session); err != nil {
		h.logger.Error("failed to save session cookie", zap.Error(err))
		writeAPIError(w, http.StatusInternalServerError, auth.CodeLoginFailed, "Could not start a session.")
		return
	}

	redirect := loginview.Mount(loginview.Initial(h.cfg.Login.DefaultRedirect), r.URL.RawQuery).Redirect
	writeJSON(w, http.StatusCreated, createSessionResponse{
		Redirect:  h.redirectTarget(redirect),
		ExpiresAt: session.ExpiresAt,
	})
}

// APIDeleteSession signs out the current session
func (h *Handlers) APIDeleteSession(w http.ResponseWriter, r *http.Request) {
	ended, err := h.sessionManager.ClearSession(w, r)
	if ended {
		metrics.RecordLogout()
	}
	if err != nil {
		h.logger.Warn("failed to clear session", zap.Error(err))
		writeAPIError(w, http.StatusInternalServerError, "AUTH_LOGOUT_FAILED", "Could not end the session.")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// APIMe returns the agent behind the session cookie
func (h *Handlers) APIMe(w http.ResponseWriter, r *http.Request) {
	session, ok := h.sessionFromRequest(r)
	if !ok {
		writeAPIError(w, http.StatusUnauthorized, auth.CodeSessionInvalid, "Please sign in.")
		return
	}

	writeJSON(w, http.StatusOK, meResponse{
		UserID:      session.UserID,
		Email:       session.Email,
		DisplayName: session.DisplayName,
		ExpiresAt:   session.ExpiresAt,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeAPIError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, apiError{Error: apiErrorBody{Code: code, Message: message}})
}
