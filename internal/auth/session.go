package auth

import (
	"context"
	"sync"
	"time"

	"github.com/vibevault/vibevault/internal/common"
)

// session holds the in-memory state behind one token. The key buffer is
// owned by the manager and overwritten with zeros when the session ends,
// whatever the reason.
type session struct {
	username     string
	key          []byte
	profileID    int64
	lastActivity time.Time
}

// SessionManager owns the token → session table. All access is
// serialized through its mutex; the encryption key never leaves this
// package except as a short-lived copy the caller must wipe.
type SessionManager struct {
	mu          sync.Mutex
	sessions    map[string]*session
	idleTimeout time.Duration
	now         func() time.Time
}

// NewSessionManager returns a manager locking sessions idle for longer
// than idleTimeout.
func NewSessionManager(idleTimeout time.Duration) *SessionManager {
	if idleTimeout <= 0 {
		idleTimeout = common.DefaultIdleTimeout
	}
	return &SessionManager{
		sessions:    make(map[string]*session),
		idleTimeout: idleTimeout,
		now:         time.Now,
	}
}

// Create registers a new session around the derived encryption key and
// returns its opaque token. The manager takes ownership of key.
func (m *SessionManager) Create(username string, key []byte, profileID int64) (string, error) {
	token, err := common.MakeRandHexString(common.SessionTokenLen)
	if err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[token] = &session{
		username:     username,
		key:          key,
		profileID:    profileID,
		lastActivity: m.now(),
	}
	return token, nil
}

// get returns the live session for token, expiring it lazily. Callers
// must hold m.mu.
func (m *SessionManager) get(token string) (*session, error) {
	s, ok := m.sessions[token]
	if !ok {
		return nil, common.ErrSessionExpired
	}
	if m.now().Sub(s.lastActivity) > m.idleTimeout {
		m.destroy(token)
		return nil, common.ErrSessionExpired
	}
	return s, nil
}

// destroy wipes and removes a session. Callers must hold m.mu.
func (m *SessionManager) destroy(token string) {
	if s, ok := m.sessions[token]; ok {
		common.WipeByteArray(s.key)
		delete(m.sessions, token)
	}
}

// Key returns a copy of the session's encryption key and counts as
// activity. The caller must wipe the copy before returning.
func (m *SessionManager) Key(token string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := m.get(token)
	if err != nil {
		return nil, err
	}
	s.lastActivity = m.now()

	key := make([]byte, len(s.key))
	copy(key, s.key)
	return key, nil
}

// Touch resets the inactivity clock.
func (m *SessionManager) Touch(token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := m.get(token)
	if err != nil {
		return err
	}
	s.lastActivity = m.now()
	return nil
}

// ActiveProfile returns the profile the session operates on.
func (m *SessionManager) ActiveProfile(token string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := m.get(token)
	if err != nil {
		return 0, err
	}
	return s.profileID, nil
}

// SetActiveProfile switches the session to another profile.
func (m *SessionManager) SetActiveProfile(token string, profileID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := m.get(token)
	if err != nil {
		return err
	}
	s.profileID = profileID
	s.lastActivity = m.now()
	return nil
}

// Lock destroys the session eagerly and zeroizes its key. Locking an
// already-gone session is not an error.
func (m *SessionManager) Lock(token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.destroy(token)
}

// Sweep invalidates every session idle past the timeout and returns how
// many were removed.
func (m *SessionManager) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for token, s := range m.sessions {
		if m.now().Sub(s.lastActivity) > m.idleTimeout {
			m.destroy(token)
			n++
		}
	}
	return n
}

// StartSweeper runs Sweep on the given interval until ctx is done.
func (m *SessionManager) StartSweeper(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.Sweep()
			}
		}
	}()
}
