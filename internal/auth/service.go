// Package auth implements registration, vault unlock and the in-memory
// session lifecycle. The master password exists only as an argument to
// Register and Unlock; everything else works from the session key.
package auth

import (
	"context"
	"errors"
	"time"

	"github.com/vibevault/vibevault/internal/common"
	"github.com/vibevault/vibevault/internal/cryptox"
	"github.com/vibevault/vibevault/internal/logging"
	"github.com/vibevault/vibevault/internal/models"
	"github.com/vibevault/vibevault/internal/repositories/entries"
	"github.com/vibevault/vibevault/internal/repositories/users"
)

// tombstoneRetention is how long soft-deleted rows are kept before the
// unlock-time prune removes them.
const tombstoneRetention = 90 * 24 * time.Hour

// Service wires the users table, the session table and the rate limiter
// into the unlock flow.
type Service struct {
	users    users.Repository
	entries  entries.Repository
	sessions *SessionManager
	limiter  *RateLimiter
	logger   logging.Logger
	now      func() time.Time
}

// NewService constructs the auth service.
func NewService(userRepo users.Repository, entryRepo entries.Repository, sessions *SessionManager, logger logging.Logger) *Service {
	return &Service{
		users:    userRepo,
		entries:  entryRepo,
		sessions: sessions,
		limiter:  NewRateLimiter(),
		logger:   logger,
		now:      time.Now,
	}
}

// Sessions exposes the session manager to sibling services.
func (s *Service) Sessions() *SessionManager { return s.sessions }

// IsRegistered reports whether this device already has its user.
func (s *Service) IsRegistered(ctx context.Context) (bool, error) {
	return s.users.IsRegistered(ctx)
}

// Register creates the device user: a fresh 16-byte auth salt feeding
// the Argon2id PHC hash, and an independent 32-byte encryption salt for
// key derivation.
func (s *Service) Register(ctx context.Context, username string, password []byte) error {
	if username == "" {
		return common.NewValidationError("username", "must not be empty")
	}
	if len(password) == 0 {
		return common.NewValidationError("password", "must not be empty")
	}

	authSalt := common.GenerateRandByteArray(common.AuthSaltLen)
	encryptionSalt := common.GenerateRandByteArray(common.EncryptionSaltLen)

	u := &models.User{
		Username:       username,
		PasswordHash:   cryptox.HashPassword(password, authSalt),
		AuthSalt:       authSalt,
		EncryptionSalt: encryptionSalt,
	}

	if err := s.users.Register(ctx, u); err != nil {
		return err
	}

	s.logger.Info(ctx, "user registered", "username", username)
	return nil
}

// Unlock verifies the password, derives the encryption key and opens a
// session. Failed attempts feed the per-username rate limiter; the
// sixth consecutive failure fails fast with TooManyAttempts.
func (s *Service) Unlock(ctx context.Context, username string, password []byte) (string, error) {
	if err := s.limiter.Check(username); err != nil {
		return "", err
	}

	u, err := s.users.Get(ctx, username)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			s.limiter.RecordFailure(username)
			return "", common.ErrInvalidCredentials
		}
		return "", err
	}

	ok, err := cryptox.VerifyPassword(password, u.PasswordHash)
	if err != nil {
		return "", err
	}
	if !ok {
		s.limiter.RecordFailure(username)
		s.logger.Warn(ctx, "failed unlock attempt", "username", username)
		return "", common.ErrInvalidCredentials
	}

	s.limiter.Reset(username)

	key := cryptox.DeriveKey(password, u.EncryptionSalt)

	s.pruneTombstones(ctx)

	token, err := s.sessions.Create(username, key, 1)
	if err != nil {
		common.WipeByteArray(key)
		return "", err
	}

	s.logger.Info(ctx, "vault unlocked", "username", username)
	return token, nil
}

// pruneTombstones removes soft-deleted rows past retention. Failure is
// logged and otherwise ignored; unlock must not depend on housekeeping.
func (s *Service) pruneTombstones(ctx context.Context) {
	cutoff := s.now().UTC().Add(-tombstoneRetention).Format(common.TimeLayout)
	n, err := s.entries.PruneTombstones(ctx, cutoff)
	if err != nil {
		s.logger.Warn(ctx, "tombstone prune failed", "error", err)
		return
	}
	if n > 0 {
		s.logger.Info(ctx, "pruned tombstones", "count", n)
	}
}

// Lock destroys the session and zeroizes its key.
func (s *Service) Lock(token string) {
	s.sessions.Lock(token)
}

// TouchActivity resets the session's inactivity clock.
func (s *Service) TouchActivity(token string) error {
	return s.sessions.Touch(token)
}
