package loginview

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Authenticator verifies credentials and establishes the session.
// A nil error means the user is signed in.
type Authenticator interface {
	Login(ctx context.Context, creds Credentials) error
}

// AuthenticatorFunc adapts a function to Authenticator
type AuthenticatorFunc func(ctx context.Context, creds Credentials) error

// Login calls f(ctx, creds)
func (f AuthenticatorFunc) Login(ctx context.Context, creds Credentials) error {
	return f(ctx, creds)
}

// Navigator moves the user to path after a successful login
type Navigator interface {
	Navigate(path string)
}

// NavigatorFunc adapts a function to Navigator
type NavigatorFunc func(path string)

// Navigate calls f(path)
func (f NavigatorFunc) Navigate(path string) {
	f(path)
}

// View is a mounted login form.
//
// All state changes go through the pure transitions in state.go. Submit runs the
// authenticator on its own goroutine; results that arrive after Unmount, or that
// belong to an older submit, are dropped.
type View struct {
	auth   Authenticator
	nav    Navigator
	logger *zap.Logger

	mu      sync.Mutex
	state   FormState
	active  bool
	attempt uint64
	cancel  context.CancelFunc
}

// Option configures a View
type Option func(*View)

// WithLogger sets the logger that receives submit failures
func WithLogger(logger *zap.Logger) Option {
	return func(v *View) {
		if logger != nil {
			v.logger = logger
		}
	}
}

// WithDefaultRedirect overrides DefaultRedirect for this view
func WithDefaultRedirect(path string) Option {
	return func(v *View) {
		v.state = Initial(path)
	}
}

// New creates an active view in its initial state
func New(auth Authenticator, nav Navigator, opts ...Option) *View {
	v := &View{
		auth:   auth,
		nav:    nav,
		logger: zap.NewNop(),
		state:  Initial(""),
		active: true,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Mount applies the redirect query parameter from rawQuery
func (v *View) Mount(rawQuery string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.active {
		return
	}
	v.state = Mount(v.state, rawQuery)
}

// ChangeEmail records an edit to the email input
func (v *View) ChangeEmail(email string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.active {
		return
	}
	v.state = ChangeEmail(v.state, email)
}

// ChangePassword records an edit to the password input
func (v *View) ChangePassword(password string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.active {
		return
	}
	v.state = ChangePassword(v.state, password)
}

// State returns a copy of the current form state
func (v *View) State() FormState {
	v.mu.Lock()
	defer v.mu.Unlock()
	s := v.state
	if s.Error != nil {
		msg := *s.Error
		s.Error = &msg
	}
	return s
}

// Active reports whether the view is still mounted
func (v *View) Active() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.active
}

// Submit starts a login attempt with the current email and password.
// The returned channel is closed once the attempt has been applied to the state or
// dropped. The error state is cleared before Submit returns.
func (v *View) Submit(ctx context.Context) (<-chan struct{}, error) {
	v.mu.Lock()
	if !v.active {
		v.mu.Unlock()
		return nil, ErrUnmounted
	}
	if v.state.Loading {
		v.mu.Unlock()
		return nil, ErrSubmitInFlight
	}

	v.state = BeginSubmit(v.state)
	v.attempt++
	attempt := v.attempt
	creds := v.state.Credentials()

	submitCtx, cancel := context.WithCancel(ctx)
	v.cancel = cancel
	v.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		defer cancel()

		err := v.auth.Login(submitCtx, creds)
		v.finish(attempt, err)
	}()

	return done, nil
}

// finish applies the outcome of attempt unless the view moved on
func (v *View) finish(attempt uint64, err error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !v.active || attempt != v.attempt {
		v.logger.Debug("dropping stale login result",
			zap.Uint64("attempt", attempt),
			zap.Bool("active", v.active),
			zap.Error(err),
		)
		return
	}
	v.cancel = nil

	if err != nil {
		v.logger.Error("login failed", zap.Error(err))
		v.state = SubmitFailed(v.state, MessageFor(err))
		return
	}

	v.state = SubmitSucceeded(v.state)
	v.nav.Navigate(v.state.Redirect)
}

// Unmount discards the view. A pending submit is cancelled and its result ignored.
func (v *View) Unmount() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.active {
		return
	}
	v.active = false
	if v.cancel != nil {
		v.cancel()
		v.cancel = nil
	}
}
