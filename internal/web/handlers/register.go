package handlers

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/shindakun/supportdesk/internal/loginview"
	"github.com/shindakun/supportdesk/internal/metrics"
)

// RegisterForm renders the self-service registration form
func (h *Handlers) RegisterForm(w http.ResponseWriter, r *http.Request) {
	state := loginview.Mount(loginview.Initial(h.cfg.Login.DefaultRedirect), r.URL.RawQuery)

	if _, ok := h.sessionFromRequest(r); ok {
		http.Redirect(w, r, h.redirectTarget(state.Redirect), http.StatusSeeOther)
		return
	}

	h.renderRegister(w, r, http.StatusOK, state, "", "")
}

// RegisterSubmit creates the account, signs it in and follows the redirect
func (h *Handlers) RegisterSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderRegister(w, r, http.StatusBadRequest, loginview.Initial(h.cfg.Login.DefaultRedirect), "", "The form could not be read. Please try again.")
		return
	}

	state := loginview.Mount(loginview.Initial(h.cfg.Login.DefaultRedirect), mountQuery(r))
	state = loginview.ChangeEmail(state, r.PostFormValue("email"))
	displayName := r.PostFormValue("display_name")

	if _, err := h.authService.Register(r.Context(), state.Email, r.PostFormValue("password"), displayName); err != nil {
		h.logger.Info("registration rejected", zap.String("request_id", requestID(r)), zap.Error(err))
		h.renderRegister(w, r, http.StatusUnprocessableEntity, state, displayName, loginview.MessageFor(err))
		return
	}

	start := time.Now()
	session, err := h.authService.Login(r.Context(), state.Email, r.PostFormValue("password"), r.UserAgent(), clientIP(r))
	metrics.RecordLogin(metrics.SurfaceForm, outcomeFor(err), time.Since(start))
	if err != nil {
		// The account exists; send the user to the login form instead
		h.logger.Warn("sign in after registration failed", zap.Error(err))
		http.Redirect(w, r, "/login?"+mountQuery(r), http.StatusSeeOther)
		return
	}

	if err := h.sessionManager.SaveSession(w, r, session); err != nil {
		h.logger.Error("failed to save session cookie", zap.Error(err))
		h.RenderError(w, r, http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, h.redirectTarget(state.Redirect), http.StatusSeeOther)
}

func (h *Handlers) renderRegister(w http.ResponseWriter, r *http.Request, status int, state loginview.FormState, displayName, errText string) {
	page := h.loginPageData(state)
	page.Title = "Create account"
	page.Action = "/register"
	page.Error = errText

	data := TemplateData{
		Title:       page.Title,
		Login:       page,
		DisplayName: displayName,
	}
	if err := h.renderTemplate(w, r, "register", status, data); err != nil {
		h.logger.Error("failed to render register template", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
