// Package vault implements encrypted CRUD over entries. Encryption
// happens on save and decryption on read, always under the session key;
// plaintext never leaves this package except inside an EntryView.
package vault

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vibevault/vibevault/internal/auth"
	"github.com/vibevault/vibevault/internal/common"
	"github.com/vibevault/vibevault/internal/cryptox"
	"github.com/vibevault/vibevault/internal/logging"
	"github.com/vibevault/vibevault/internal/models"
	"github.com/vibevault/vibevault/internal/repositories/entries"
)

// Service performs encrypt-on-save / decrypt-on-read over the entries
// repository. Every method requires a live session token.
type Service struct {
	entries  entries.Repository
	sessions *auth.SessionManager
	logger   logging.Logger
	now      func() time.Time
}

// NewService constructs the vault service.
func NewService(entryRepo entries.Repository, sessions *auth.SessionManager, logger logging.Logger) *Service {
	return &Service{
		entries:  entryRepo,
		sessions: sessions,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *Service) nowISO() string {
	return s.now().UTC().Format(common.TimeLayout)
}

// Save serializes the payload to canonical JSON, encrypts it with the
// session key and a fresh nonce, and inserts a new entry. Returns the
// new entry's sync identity.
func (s *Service) Save(ctx context.Context, token, label string, payload models.Payload, profileID *int64) (string, error) {
	if label == "" {
		return "", common.NewValidationError("label", "must not be empty")
	}

	key, err := s.sessions.Key(token)
	if err != nil {
		return "", err
	}
	defer common.WipeByteArray(key)

	pid := int64(0)
	if profileID != nil {
		pid = *profileID
	} else {
		pid, err = s.sessions.ActiveProfile(token)
		if err != nil {
			return "", err
		}
	}

	ciphertext, nonce, err := s.seal(key, payload)
	if err != nil {
		return "", err
	}

	now := s.nowISO()
	e := &models.Entry{
		EntryUUID: uuid.NewString(),
		Label:     label,
		DataBlob:  ciphertext,
		Nonce:     nonce,
		ProfileID: pid,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := s.entries.Save(ctx, e); err != nil {
		return "", err
	}
	return e.EntryUUID, nil
}

func (s *Service) seal(key []byte, payload models.Payload) (ciphertext, nonce []byte, err error) {
	plaintext, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal payload: %w", err)
	}
	defer common.WipeByteArray(plaintext)

	return cryptox.Encrypt(key, plaintext)
}

// Update re-encrypts an entry with new content under a fresh nonce and
// bumps its version. The entry must be live and belong to the session's
// active profile.
func (s *Service) Update(ctx context.Context, token string, id int64, label string, payload models.Payload) error {
	if label == "" {
		return common.NewValidationError("label", "must not be empty")
	}

	key, err := s.sessions.Key(token)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(key)

	if _, err := s.visibleEntry(ctx, token, id); err != nil {
		return err
	}

	ciphertext, nonce, err := s.seal(key, payload)
	if err != nil {
		return err
	}

	return s.entries.Update(ctx, id, ciphertext, nonce, label, s.nowISO())
}

// visibleEntry loads a live entry and confirms the session may see it.
func (s *Service) visibleEntry(ctx context.Context, token string, id int64) (*models.Entry, error) {
	e, err := s.entries.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	pid, err := s.sessions.ActiveProfile(token)
	if err != nil {
		return nil, err
	}
	if e.ProfileID != pid || e.IsTombstone() {
		return nil, common.ErrNotFound
	}
	return e, nil
}

// SoftDelete tombstones an entry, bumping its version so the deletion
// propagates on the next sync.
func (s *Service) SoftDelete(ctx context.Context, token string, id int64) error {
	if _, err := s.sessions.Key(token); err != nil {
		return err
	}
	if _, err := s.visibleEntry(ctx, token, id); err != nil {
		return err
	}
	return s.entries.SoftDelete(ctx, id, s.nowISO())
}

// Get decrypts a single entry.
func (s *Service) Get(ctx context.Context, token string, id int64) (*models.EntryView, error) {
	key, err := s.sessions.Key(token)
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(key)

	e, err := s.visibleEntry(ctx, token, id)
	if err != nil {
		return nil, err
	}

	view, err := s.open(key, e)
	if err != nil {
		return nil, err
	}
	return view, nil
}

func (s *Service) open(key []byte, e *models.Entry) (*models.EntryView, error) {
	plaintext, err := cryptox.Decrypt(key, e.DataBlob, e.Nonce)
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(plaintext)

	var payload models.Payload
	if err := json.Unmarshal(plaintext, &payload); err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}

	return &models.EntryView{
		ID:        e.ID,
		EntryUUID: e.EntryUUID,
		Label:     e.Label,
		Payload:   payload,
	}, nil
}

// List decrypts every live entry of the session's active profile. Rows
// that fail authentication are dropped from the result and logged; the
// error surfaces only when every row fails.
func (s *Service) List(ctx context.Context, token string) ([]models.EntryView, error) {
	key, err := s.sessions.Key(token)
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(key)

	pid, err := s.sessions.ActiveProfile(token)
	if err != nil {
		return nil, err
	}

	rows, err := s.entries.GetActive(ctx, pid)
	if err != nil {
		return nil, err
	}

	result := make([]models.EntryView, 0, len(rows))
	failed := 0
	for i := range rows {
		view, err := s.open(key, &rows[i])
		if err != nil {
			failed++
			s.logger.Warn(ctx, "dropping undecryptable entry", "id", rows[i].ID, "error", err)
			continue
		}
		result = append(result, *view)
	}

	if len(rows) > 0 && failed == len(rows) {
		return nil, common.ErrDecrypt
	}
	return result, nil
}
