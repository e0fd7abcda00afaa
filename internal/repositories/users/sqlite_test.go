package users

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vibevault/vibevault/internal/common"
	"github.com/vibevault/vibevault/internal/models"

	_ "modernc.org/sqlite"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`
CREATE TABLE users (
  username TEXT PRIMARY KEY,
  password_hash TEXT NOT NULL,
  auth_salt BLOB NOT NULL,
  encryption_salt BLOB NOT NULL
);
`)
	require.NoError(t, err)

	return db
}

func testUser(name string) *models.User {
	return &models.User{
		Username:       name,
		PasswordHash:   "$argon2id$v=19$m=19456,t=2,p=1$c2FsdA$aGFzaA",
		AuthSalt:       []byte("0123456789abcdef"),
		EncryptionSalt: []byte("0123456789abcdef0123456789abcdef"),
	}
}

func TestRegister_OncePerDevice(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	require.NoError(t, r.Register(ctx, testUser("alice")))

	// a second user on the same device is rejected, regardless of name
	err := r.Register(ctx, testUser("bob"))
	assert.ErrorIs(t, err, common.ErrAlreadyRegistered)
}

func TestGetAndFirst(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	_, err := r.Get(ctx, "alice")
	assert.ErrorIs(t, err, common.ErrNotFound)

	require.NoError(t, r.Register(ctx, testUser("alice")))

	u, err := r.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", u.Username)
	assert.Len(t, u.AuthSalt, 16)
	assert.Len(t, u.EncryptionSalt, 32)

	first, err := r.First(ctx)
	require.NoError(t, err)
	assert.Equal(t, "alice", first.Username)
}

func TestIsRegistered(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	ok, err := r.IsRegistered(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, r.Register(ctx, testUser("alice")))

	ok, err = r.IsRegistered(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}
