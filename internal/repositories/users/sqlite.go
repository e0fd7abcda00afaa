package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vibevault/vibevault/internal/common"
	"github.com/vibevault/vibevault/internal/dbx"
	"github.com/vibevault/vibevault/internal/models"
)

// SQLiteRepository implements Repository using a DBTX (either *sql.DB or
// *sql.Tx).
type SQLiteRepository struct {
	db dbx.DBTX
}

// NewSQLiteRepository returns a new SQLiteRepository bound to the given DBTX.
func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Register inserts the singleton user row. The guarded insert keeps the
// existence check and the write in one statement.
func (r *SQLiteRepository) Register(ctx context.Context, u *models.User) error {
	query := `INSERT INTO users (username, password_hash, auth_salt, encryption_salt)
		SELECT ?, ?, ?, ?
		WHERE NOT EXISTS (SELECT 1 FROM users)`
	res, err := r.db.ExecContext(ctx, query,
		u.Username, u.PasswordHash, u.AuthSalt, u.EncryptionSalt)
	if err != nil {
		return &common.StoreError{Op: "register user", Err: err}
	}
	ra, err := res.RowsAffected()
	if err != nil {
		return &common.StoreError{Op: "register user", Err: err}
	}
	if ra == 0 {
		return common.ErrAlreadyRegistered
	}
	return nil
}

func (r *SQLiteRepository) Get(ctx context.Context, username string) (*models.User, error) {
	query := `SELECT username, password_hash, auth_salt, encryption_salt
		FROM users WHERE username = ?`
	return r.scanUser(r.db.QueryRowContext(ctx, query, username))
}

func (r *SQLiteRepository) First(ctx context.Context) (*models.User, error) {
	query := `SELECT username, password_hash, auth_salt, encryption_salt
		FROM users LIMIT 1`
	return r.scanUser(r.db.QueryRowContext(ctx, query))
}

func (r *SQLiteRepository) scanUser(row *sql.Row) (*models.User, error) {
	u := &models.User{}
	err := row.Scan(&u.Username, &u.PasswordHash, &u.AuthSalt, &u.EncryptionSalt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return u, nil
}

func (r *SQLiteRepository) IsRegistered(ctx context.Context) (bool, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n)
	if err != nil {
		return false, &common.StoreError{Op: "count users", Err: err}
	}
	return n > 0, nil
}
