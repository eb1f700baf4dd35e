package loginview

import (
	"errors"
	"strings"

	"github.com/samber/oops"
)

// FallbackMessage is shown when a failed login carries no readable message
const FallbackMessage = "Invalid credentials"

// ErrSubmitInFlight is returned when Submit is called while a submit is pending
var ErrSubmitInFlight = errors.New("login submit already in flight")

// ErrUnmounted is returned when an operation is attempted on an unmounted view
var ErrUnmounted = errors.New("login view is unmounted")

// Rejection is the structured failure an auth collaborator reports.
// Message is the human-readable text supplied by the collaborator, if any.
type Rejection struct {
	Code    string
	Message string
	Err     error
}

func (r *Rejection) Error() string {
	switch {
	case r.Message != "" && r.Err != nil:
		return r.Message + ": " + r.Err.Error()
	case r.Message != "":
		return r.Message
	case r.Err != nil:
		return r.Err.Error()
	case r.Code != "":
		return "login rejected: " + r.Code
	default:
		return "login rejected"
	}
}

func (r *Rejection) Unwrap() error {
	return r.Err
}

// MessageFor picks the text to show for a failed submit.
// A collaborator-supplied Rejection message wins, then the public message of a coded
// oops error, then FallbackMessage.
func MessageFor(err error) string {
	if err == nil {
		return FallbackMessage
	}

	var rejection *Rejection
	if errors.As(err, &rejection) && strings.TrimSpace(rejection.Message) != "" {
		return rejection.Message
	}

	if oopsErr, ok := oops.AsOops(err); ok {
		if public := strings.TrimSpace(oopsErr.Public()); public != "" {
			return public
		}
	}

	return FallbackMessage
}
