package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vibevault/vibevault/internal/common"
)

func newTestSessions(idle time.Duration) (*SessionManager, *time.Time) {
	now := time.Unix(1_700_000_000, 0)
	m := NewSessionManager(idle)
	m.now = func() time.Time { return now }
	return m, &now
}

func TestSessionManager_CreateAndKey(t *testing.T) {
	m, _ := newTestSessions(10 * time.Minute)

	key := []byte{1, 2, 3, 4}
	token, err := m.Create("alice", key, 1)
	require.NoError(t, err)
	assert.Len(t, token, 2*common.SessionTokenLen, "token is hex over 128 bits")

	got, err := m.Key(token)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4}, got)

	// callers get a copy; wiping it must not affect the session
	common.WipeByteArray(got)
	got2, err := m.Key(token)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4}, got2)
}

func TestSessionManager_UnknownToken(t *testing.T) {
	m, _ := newTestSessions(10 * time.Minute)

	_, err := m.Key("deadbeef")
	assert.ErrorIs(t, err, common.ErrSessionExpired)
	assert.ErrorIs(t, m.Touch("deadbeef"), common.ErrSessionExpired)
}

func TestSessionManager_IdleExpiry(t *testing.T) {
	m, now := newTestSessions(10 * time.Minute)

	token, err := m.Create("alice", []byte{9}, 1)
	require.NoError(t, err)

	*now = now.Add(11 * time.Minute)
	_, err = m.Key(token)
	assert.ErrorIs(t, err, common.ErrSessionExpired)
}

func TestSessionManager_TouchExtends(t *testing.T) {
	m, now := newTestSessions(10 * time.Minute)

	token, err := m.Create("alice", []byte{9}, 1)
	require.NoError(t, err)

	*now = now.Add(9 * time.Minute)
	require.NoError(t, m.Touch(token))

	*now = now.Add(9 * time.Minute)
	_, err = m.Key(token)
	assert.NoError(t, err, "touch within the window extends the session")
}

func TestSessionManager_LockZeroizes(t *testing.T) {
	m, _ := newTestSessions(10 * time.Minute)

	key := []byte{1, 2, 3, 4}
	token, err := m.Create("alice", key, 1)
	require.NoError(t, err)

	m.Lock(token)

	assert.Equal(t, []byte{0, 0, 0, 0}, key, "manager-owned buffer wiped")
	_, err = m.Key(token)
	assert.ErrorIs(t, err, common.ErrSessionExpired)

	m.Lock(token) // locking twice is fine
}

func TestSessionManager_ActiveProfile(t *testing.T) {
	m, _ := newTestSessions(10 * time.Minute)

	token, err := m.Create("alice", []byte{9}, 1)
	require.NoError(t, err)

	id, err := m.ActiveProfile(token)
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)

	require.NoError(t, m.SetActiveProfile(token, 3))
	id, err = m.ActiveProfile(token)
	require.NoError(t, err)
	assert.Equal(t, int64(3), id)
}

func TestSessionManager_Sweep(t *testing.T) {
	m, now := newTestSessions(10 * time.Minute)

	keyA := []byte{1}
	tokenA, err := m.Create("alice", keyA, 1)
	require.NoError(t, err)

	*now = now.Add(5 * time.Minute)
	tokenB, err := m.Create("alice", []byte{2}, 1)
	require.NoError(t, err)

	*now = now.Add(6 * time.Minute)
	n := m.Sweep()
	assert.Equal(t, 1, n)
	assert.Equal(t, []byte{0}, keyA, "swept session key wiped")

	_, err = m.Key(tokenA)
	assert.ErrorIs(t, err, common.ErrSessionExpired)
	_, err = m.Key(tokenB)
	assert.NoError(t, err)
}
