package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/shindakun/supportdesk/internal/auth"
	"github.com/shindakun/supportdesk/internal/loginview"
	"github.com/shindakun/supportdesk/internal/metrics"
	"github.com/shindakun/supportdesk/internal/models"
)

const loggedOutMessage = "You have been signed out."

// LoginForm renders the login form, or sends signed-in users straight to their redirect
func (h *Handlers) LoginForm(w http.ResponseWriter, r *http.Request) {
	state := loginview.Mount(loginview.Initial(h.cfg.Login.DefaultRedirect), r.URL.RawQuery)

	if _, ok := h.sessionFromRequest(r); ok {
		http.Redirect(w, r, h.redirectTarget(state.Redirect), http.StatusSeeOther)
		return
	}

	page := h.loginPageData(state)
	if r.URL.Query().Get("status") == "logged_out" {
		page.Message = loggedOutMessage
	}
	h.renderLogin(w, r, http.StatusOK, page)
}

// LoginSubmit runs one submit of the login form.
//
// The form is mounted from the posted redirect field, the posted email and password are applied
// verbatim, and the submit result is awaited. If the client goes away first the view is
// unmounted and the late result is dropped.
func (h *Handlers) LoginSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		state := loginview.Initial(h.cfg.Login.DefaultRedirect)
		page := h.loginPageData(state)
		page.Error = "The form could not be read. Please try again."
		status := http.StatusBadRequest
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		h.renderLogin(w, r, status, page)
		return
	}

	userAgent, ip := r.UserAgent(), clientIP(r)
	logger := h.logger.With(zap.String("request_id", requestID(r)), zap.String("ip_address", ip))

	var (
		issued    *models.Session
		submitErr error
		navigated bool
	)

	authenticator := loginview.AuthenticatorFunc(func(ctx context.Context, creds loginview.Credentials) error {
		start := time.Now()
		session, err := h.authService.Login(ctx, creds.Email, creds.Password, userAgent, ip)
		metrics.RecordLogin(metrics.SurfaceForm, outcomeFor(err), time.Since(start))
		if err != nil {
			submitErr = err
			return err
		}
		issued = session
		return nil
	})

	// Navigate runs under the view lock, so it cannot race with Unmount below
	navigator := loginview.NavigatorFunc(func(path string) {
		if issued == nil {
			return
		}
		if err := h.sessionManager.SaveSession(w, r, issued); err != nil {
			logger.Error("failed to save session cookie", zap.Error(err))
			return
		}

		target := h.redirectTarget(path)
		if r.Header.Get("HX-Request") == "true" {
			w.Header().Set("HX-Redirect", target)
			w.WriteHeader(http.StatusNoContent)
		} else {
			http.Redirect(w, r, target, http.StatusSeeOther)
		}
		navigated = true
	})

	view := loginview.New(authenticator, navigator,
		loginview.WithLogger(logger),
		loginview.WithDefaultRedirect(h.cfg.Login.DefaultRedirect),
	)
	view.Mount(mountQuery(r))
	view.ChangeEmail(r.PostFormValue("email"))
	view.ChangePassword(r.PostFormValue("password"))

	ctx, cancel := context.WithTimeout(r.Context(), h.cfg.Login.SubmitTimeout)
	defer cancel()

	done, err := view.Submit(ctx)
	if err != nil {
		logger.Error("failed to start login submit", zap.Error(err))
		h.RenderError(w, r, http.StatusInternalServerError)
		return
	}

	select {
	case <-done:
	case <-r.Context().Done():
		view.Unmount()
		logger.Debug("client went away during login")

		// After Unmount nothing navigates, so a session issued from here on has no cookie
		go func() {
			<-done
			if issued != nil && !navigated {
				metrics.RecordStaleResult()
				h.discardSession(r.Context(), logger, issued)
			}
		}()
		return
	}
	view.Unmount()

	if navigated {
		return
	}

	state := view.State()
	if state.Phase == loginview.PhaseNavigating {
		// Credentials were accepted but the cookie could not be written
		if issued != nil {
			h.discardSession(r.Context(), logger, issued)
		}
		h.RenderError(w, r, http.StatusInternalServerError)
		return
	}

	page := h.loginPageData(state)
	h.renderLogin(w, r, statusFor(submitErr), page)
}

// discardSession deletes a session whose cookie never reached the client
func (h *Handlers) discardSession(ctx context.Context, logger *zap.Logger, session *models.Session) {
	ended, err := h.authService.Logout(context.WithoutCancel(ctx), session.ID)
	if err != nil {
		logger.Warn("failed to discard unused session", zap.String("session_id", session.ID), zap.Error(err))
	}
	if ended {
		metrics.RecordLogout()
	}
}

// mountQuery returns the query string the form is mounted from.
// The hidden redirect field wins; without it the page's own query is used.
func mountQuery(r *http.Request) string {
	if values, ok := r.PostForm["redirect"]; ok {
		return url.Values{"redirect": values}.Encode()
	}
	return r.URL.RawQuery
}

// loginPageData projects the form state onto the template model.
// The password is never written back into the page.
func (h *Handlers) loginPageData(state loginview.FormState) models.LoginPageData {
	return models.LoginPageData{
		Title:    "Sign in",
		Email:    state.Email,
		Error:    state.ErrorText(),
		Loading:  state.Loading,
		Redirect: state.Redirect,
		Action:   "/login",
		Branding: h.cfg.Branding,
	}
}

func (h *Handlers) renderLogin(w http.ResponseWriter, r *http.Request, status int, page models.LoginPageData) {
	data := TemplateData{
		Title: page.Title,
		Login: page,
	}
	if err := h.renderTemplate(w, r, "login", status, data); err != nil {
		h.logger.Error("failed to render login template", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

// outcomeFor maps a login result onto its metrics label
func outcomeFor(err error) string {
	if err == nil {
		return metrics.OutcomeSuccess
	}
	switch auth.CodeOf(err) {
	case auth.CodeInvalidCredentials:
		return metrics.OutcomeInvalidCredentials
	case auth.CodeAccountLocked:
		return metrics.OutcomeLocked
	case auth.CodeRateLimited:
		return metrics.OutcomeRateLimited
	default:
		return metrics.OutcomeError
	}
}

// statusFor picks the HTTP status for a failed login
func statusFor(err error) int {
	switch auth.CodeOf(err) {
	case auth.CodeRateLimited:
		return http.StatusTooManyRequests
	case auth.CodeLoginFailed:
		return http.StatusInternalServerError
	default:
		return http.StatusUnauthorized
	}
}
