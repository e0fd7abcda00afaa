package profiles

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

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

func isUniqueViolation(err error) bool {
	// modernc.org/sqlite surfaces constraint failures in the message;
	// there is no portable error code through database/sql.
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func (r *SQLiteRepository) Create(ctx context.Context, name, createdAt string) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO profiles (name, created_at) VALUES (?, ?)`, name, createdAt)
	if isUniqueViolation(err) {
		return 0, common.ErrConflict
	}
	if err != nil {
		return 0, &common.StoreError{Op: "create profile", Err: err}
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, &common.StoreError{Op: "create profile", Err: err}
	}
	return id, nil
}

func (r *SQLiteRepository) GetByID(ctx context.Context, id int64) (*models.Profile, error) {
	p := &models.Profile{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, created_at FROM profiles WHERE id = ?`, id).
		Scan(&p.ID, &p.Name, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan profile: %w", err)
	}
	return p, nil
}

// GetAll lists profiles with live entry counts, mirroring what the UI
// shows in the profile switcher.
func (r *SQLiteRepository) GetAll(ctx context.Context) ([]models.Profile, error) {
	query := `SELECT p.id, p.name, p.created_at, COUNT(v.id)
		FROM profiles p
		LEFT JOIN vault_entries v ON v.profile_id = p.id AND v.deleted_at IS NULL
		GROUP BY p.id
		ORDER BY p.id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, &common.StoreError{Op: "list profiles", Err: err}
	}
	defer rows.Close()

	var result []models.Profile
	for rows.Next() {
		var p models.Profile
		if err := rows.Scan(&p.ID, &p.Name, &p.CreatedAt, &p.EntryCount); err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *SQLiteRepository) Rename(ctx context.Context, id int64, name string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE profiles SET name = ? WHERE id = ?`, name, id)
	if isUniqueViolation(err) {
		return common.ErrConflict
	}
	if err != nil {
		return &common.StoreError{Op: "rename profile", Err: err}
	}
	ra, err := res.RowsAffected()
	if err != nil {
		return &common.StoreError{Op: "rename profile", Err: err}
	}
	if ra == 0 {
		return common.ErrNotFound
	}
	return nil
}

// Delete enforces the destruction guards: a profile with live entries
// and the last remaining profile are both protected.
func (r *SQLiteRepository) Delete(ctx context.Context, id int64) error {
	var entryCount int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM vault_entries WHERE profile_id = ? AND deleted_at IS NULL`, id).
		Scan(&entryCount)
	if err != nil {
		return &common.StoreError{Op: "delete profile", Err: err}
	}
	if entryCount > 0 {
		return common.ErrProfileNotEmpty
	}

	total, err := r.Count(ctx)
	if err != nil {
		return err
	}
	if total <= 1 {
		return common.ErrLastProfile
	}

	res, err := r.db.ExecContext(ctx, `DELETE FROM profiles WHERE id = ?`, id)
	if err != nil {
		return &common.StoreError{Op: "delete profile", Err: err}
	}
	ra, err := res.RowsAffected()
	if err != nil {
		return &common.StoreError{Op: "delete profile", Err: err}
	}
	if ra == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM profiles`).Scan(&n); err != nil {
		return 0, &common.StoreError{Op: "count profiles", Err: err}
	}
	return n, nil
}
