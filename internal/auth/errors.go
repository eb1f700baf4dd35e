package auth

import (
	"github.com/samber/oops"
)

// Error codes carried by oops errors returned from this package
const (
	CodeInvalidCredentials = "AUTH_INVALID_CREDENTIALS"
	CodeAccountLocked      = "AUTH_ACCOUNT_LOCKED"
	CodeRateLimited        = "AUTH_RATE_LIMITED"
	CodeLoginFailed        = "AUTH_LOGIN_FAILED"
	CodeInvalidPassword    = "AUTH_INVALID_PASSWORD"
	CodeInvalidEmail       = "AUTH_INVALID_EMAIL"
	CodeEmailTaken         = "AUTH_EMAIL_TAKEN"
	CodeSessionInvalid     = "SESSION_INVALID"
)

// Public messages shown to the person at the login form
const (
	MessageInvalidCredentials = "Invalid email or password."
	MessageAccountLocked      = "Account is temporarily locked. Please try again later."
	MessageRateLimited        = "Too many login attempts. Please wait a moment and try again."
)

var knownCodes = []string{
	CodeInvalidCredentials,
	CodeAccountLocked,
	CodeRateLimited,
	CodeLoginFailed,
	CodeInvalidPassword,
	CodeInvalidEmail,
	CodeEmailTaken,
	CodeSessionInvalid,
}

// HasCode reports whether err is an oops error carrying code
func HasCode(err error, code string) bool {
	oopsErr, ok := oops.AsOops(err)
	return ok && oopsErr.Code() == code
}

// CodeOf returns the code of err when it is one of this package's codes, or ""
func CodeOf(err error) string {
	for _, code := range knownCodes {
		if HasCode(err, code) {
			return code
		}
	}
	return ""
}

func invalidCredentials() error {
	return oops.Code(CodeInvalidCredentials).
		Public(MessageInvalidCredentials).
		Errorf("invalid email or password")
}
