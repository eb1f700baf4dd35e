// Package loginview holds the login form state machine.
//
// The form state is a plain value and every transition is a pure function, so the
// login flow can be exercised without an HTTP server or a browser. View wraps the
// state with the collaborators a running login form needs.
package loginview

import (
	"net/url"
)

// DefaultRedirect is where a user lands after login when no redirect was requested
const DefaultRedirect = "/conversations"

// Phase identifies where the form is in the idle -> submitting -> navigating|failed cycle
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseSubmitting Phase = "submitting"
	PhaseNavigating Phase = "navigating"
	PhaseFailed     Phase = "failed"
)

// FormState is the transient state of a single login form
type FormState struct {
	Email    string
	Password string
	Loading  bool
	Error    *string
	Redirect string
	Phase    Phase
}

// Credentials is what the form hands to the auth collaborator
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Initial returns the state of a freshly mounted form.
// An empty defaultRedirect falls back to DefaultRedirect.
func Initial(defaultRedirect string) FormState {
	if defaultRedirect == "" {
		defaultRedirect = DefaultRedirect
	}
	return FormState{
		Redirect: defaultRedirect,
		Phase:    PhaseIdle,
	}
}

// Mount reads the redirect target from a raw query string.
// A missing, empty or unparseable redirect keeps the current value. The value is
// otherwise taken verbatim; when the parameter repeats, the first occurrence wins.
func Mount(s FormState, rawQuery string) FormState {
	values, err := url.ParseQuery(rawQuery)
	if err != nil {
		return s
	}
	candidates, ok := values["redirect"]
	if !ok || len(candidates) == 0 || candidates[0] == "" {
		return s
	}
	s.Redirect = candidates[0]
	return s
}

// ChangeEmail replaces the email field as typed
func ChangeEmail(s FormState, email string) FormState {
	s.Email = email
	return s
}

// ChangePassword replaces the password field as typed
func ChangePassword(s FormState, password string) FormState {
	s.Password = password
	return s
}

// BeginSubmit marks the form as submitting and clears any previous error
func BeginSubmit(s FormState) FormState {
	s.Loading = true
	s.Error = nil
	s.Phase = PhaseSubmitting
	return s
}

// SubmitSucceeded moves the form to navigating.
// Loading is intentionally left set: the form is expected to go away on navigation.
func SubmitSucceeded(s FormState) FormState {
	s.Phase = PhaseNavigating
	return s
}

// SubmitFailed records the failure message and returns the form to idle
func SubmitFailed(s FormState, message string) FormState {
	s.Loading = false
	s.Error = &message
	s.Phase = PhaseFailed
	return s
}

// Credentials returns the values the collaborator should verify
func (s FormState) Credentials() Credentials {
	return Credentials{Email: s.Email, Password: s.Password}
}

// ErrorText returns the error message or an empty string
func (s FormState) ErrorText() string {
	if s.Error == nil {
		return ""
	}
	return *s.Error
}

// HasError reports whether a failure message is set
func (s FormState) HasError() bool {
	return s.Error != nil
}
