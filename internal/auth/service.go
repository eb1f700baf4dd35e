// Package auth verifies agent credentials and manages web sessions.
package auth

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/oops"
	"go.uber.org/zap"

	"github.com/shindakun/supportdesk/internal/models"
	"github.com/shindakun/supportdesk/internal/storage"
)

// Options tunes the credential check
type Options struct {
	LockoutThreshold int
	LockoutDuration  time.Duration
	SessionTTL       time.Duration
}

// Service checks credentials against the users table and issues sessions
type Service struct {
	db       *sql.DB
	hasher   PasswordHasher
	throttle *Throttle
	opts     Options
	logger   *zap.Logger

	dummyOnce sync.Once
	dummyHash string
}

// NewService creates a new Service. throttle may be nil to disable per-client limits.
func NewService(db *sql.DB, hasher PasswordHasher, throttle *Throttle, opts Options, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 7 * 24 * time.Hour
	}
	return &Service{
		db:       db,
		hasher:   hasher,
		throttle: throttle,
		opts:     opts,
		logger:   logger,
	}
}

// dummy returns a real hash of a random password. Unknown emails are verified against it so
// that the response time does not reveal whether an account exists.
func (s *Service) dummy() string {
	s.dummyOnce.Do(func() {
		secret := make([]byte, 32)
		_, _ = rand.Read(secret)
		hash, err := s.hasher.Hash(string(secret))
		if err != nil {
			s.logger.Warn("failed to prepare dummy hash", zap.Error(err))
			return
		}
		s.dummyHash = hash
	})
	return s.dummyHash
}

// Login verifies email and password and stores a new session.
// All credential failures return the same AUTH_INVALID_CREDENTIALS error.
func (s *Service) Login(ctx context.Context, email, password, userAgent, ipAddress string) (*models.Session, error) {
	if s.throttle != nil && ipAddress != "" && !s.throttle.Allow(ipAddress) {
		return nil, oops.Code(CodeRateLimited).
			Public(MessageRateLimited).
			With("ip_address", ipAddress).
			Errorf("too many login attempts")
	}

	user, lookupErr := storage.GetUserByEmail(ctx, s.db, email)

	var targetHash string
	userExists := false
	switch {
	case lookupErr == nil:
		targetHash = user.PasswordHash
		userExists = true
	case errors.Is(lookupErr, storage.ErrNotFound):
		targetHash = s.dummy()
	default:
		return nil, oops.Code(CodeLoginFailed).
			With("operation", "get user by email").
			Wrap(lookupErr)
	}

	valid, verifyErr := s.hasher.Verify(password, targetHash)
	if verifyErr != nil {
		if !userExists {
			return nil, invalidCredentials()
		}
		return nil, oops.Code(CodeLoginFailed).
			With("operation", "verify password").
			With("user_id", user.ID).
			Wrap(verifyErr)
	}

	if !userExists || !valid {
		if userExists {
			user.RecordFailure(s.opts.LockoutThreshold, s.opts.LockoutDuration)
			if err := storage.UpdateLoginState(ctx, s.db, user); err != nil {
				s.logger.Warn("failed to record login failure", zap.String("user_id", user.ID), zap.Error(err))
			}
		}
		return nil, invalidCredentials()
	}

	// Lockout is checked after verification so both paths cost the same
	if user.IsLocked() {
		return nil, oops.Code(CodeAccountLocked).
			Public(MessageAccountLocked).
			With("locked_until", user.LockedUntil).
			Errorf("account is temporarily locked")
	}

	user.RecordSuccess()
	if s.throttle != nil && ipAddress != "" {
		s.throttle.Reset(ipAddress)
	}
	if err := storage.UpdateLoginState(ctx, s.db, user); err != nil {
		s.logger.Warn("failed to reset login state", zap.String("user_id", user.ID), zap.Error(err))
	}

	if s.hasher.NeedsUpgrade(user.PasswordHash) {
		if hash, err := s.hasher.Hash(password); err == nil {
			if err := storage.UpdatePasswordHash(ctx, s.db, user.ID, hash); err != nil {
				s.logger.Warn("failed to upgrade password hash", zap.String("user_id", user.ID), zap.Error(err))
			}
		}
	}

	now := time.Now()
	session := &models.Session{
		ID:          uuid.New().String(),
		UserID:      user.ID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		UserAgent:   userAgent,
		IPAddress:   ipAddress,
		ExpiresAt:   now.Add(s.opts.SessionTTL),
		CreatedAt:   now,
	}
	if err := storage.SaveSession(ctx, s.db, session); err != nil {
		return nil, oops.Code(CodeLoginFailed).
			With("operation", "persist session").
			Wrap(err)
	}

	s.logger.Info("login succeeded",
		zap.String("user_id", user.ID),
		zap.String("session_id", session.ID),
		zap.String("ip_address", ipAddress),
	)
	return session, nil
}

// Register creates a new agent account
func (s *Service) Register(ctx context.Context, email, password, displayName string) (*models.User, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(email))
	if err != nil || addr.Address != strings.TrimSpace(email) {
		return nil, oops.Code(CodeInvalidEmail).
			Public("Email address is invalid.").
			With("email", email).
			Errorf("invalid email address")
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		ID:           uuid.New().String(),
		Email:        models.NormalizeEmail(addr.Address),
		DisplayName:  strings.TrimSpace(displayName),
		PasswordHash: hash,
	}
	if err := storage.CreateUser(ctx, s.db, user); err != nil {
		if errors.Is(err, storage.ErrEmailTaken) {
			return nil, oops.Code(CodeEmailTaken).
				Public("An account with this email already exists.").
				With("email", user.Email).
				Wrap(err)
		}
		return nil, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "create user").
			Wrap(err)
	}

	return user, nil
}

// Session returns the active session with the given id
func (s *Service) Session(ctx context.Context, id string) (*models.Session, error) {
	session, err := storage.GetSession(ctx, s.db, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, oops.Code(CodeSessionInvalid).Errorf("session not found")
		}
		return nil, oops.Code("SESSION_VALIDATE_FAILED").Wrap(err)
	}
	if session.IsExpired() {
		if _, err := storage.DeleteSession(ctx, s.db, id); err != nil {
			s.logger.Warn("failed to delete expired session", zap.String("session_id", id), zap.Error(err))
		}
		return nil, oops.Code(CodeSessionInvalid).Errorf("session has expired")
	}
	return session, nil
}

// Logout deletes the session with the given id and reports whether a row was removed
func (s *Service) Logout(ctx context.Context, id string) (bool, error) {
	deleted, err := storage.DeleteSession(ctx, s.db, id)
	if err != nil {
		return false, oops.Code("AUTH_LOGOUT_FAILED").
			With("session_id", id).
			Wrap(err)
	}
	return deleted, nil
}
