package entries

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

const entryColumns = `id, entry_uuid, label, data_blob, nonce, profile_id,
	created_at, updated_at, deleted_at, sync_version`

func (r *SQLiteRepository) Save(ctx context.Context, e *models.Entry) (int64, error) {
	query := `INSERT INTO vault_entries
		(entry_uuid, label, data_blob, nonce, profile_id, created_at, updated_at, sync_version)
		VALUES (?, ?, ?, ?, ?, ?, ?, 1)`
	res, err := r.db.ExecContext(ctx, query,
		e.EntryUUID, e.Label, e.DataBlob, e.Nonce, e.ProfileID, e.CreatedAt, e.UpdatedAt)
	if err != nil {
		return 0, &common.StoreError{Op: "save entry", Err: err}
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, &common.StoreError{Op: "save entry", Err: err}
	}
	return id, nil
}

func (r *SQLiteRepository) Update(ctx context.Context, id int64, dataBlob, nonce []byte, label, updatedAt string) error {
	query := `UPDATE vault_entries
		SET data_blob = ?, nonce = ?, label = ?, updated_at = ?, sync_version = sync_version + 1
		WHERE id = ? AND deleted_at IS NULL`
	res, err := r.db.ExecContext(ctx, query, dataBlob, nonce, label, updatedAt, id)
	if err != nil {
		return &common.StoreError{Op: "update entry", Err: err}
	}
	return oneRow(res, "update entry")
}

func (r *SQLiteRepository) SoftDelete(ctx context.Context, id int64, deletedAt string) error {
	query := `UPDATE vault_entries
		SET deleted_at = ?, updated_at = ?, sync_version = sync_version + 1
		WHERE id = ? AND deleted_at IS NULL`
	res, err := r.db.ExecContext(ctx, query, deletedAt, deletedAt, id)
	if err != nil {
		return &common.StoreError{Op: "soft delete entry", Err: err}
	}
	return oneRow(res, "soft delete entry")
}

func oneRow(res sql.Result, op string) error {
	ra, err := res.RowsAffected()
	if err != nil {
		return &common.StoreError{Op: op, Err: err}
	}
	if ra == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) GetByID(ctx context.Context, id int64) (*models.Entry, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM vault_entries WHERE id = ?`, id)
	return scanEntry(row)
}

func (r *SQLiteRepository) GetByUUID(ctx context.Context, entryUUID string) (*models.Entry, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM vault_entries WHERE entry_uuid = ?`, entryUUID)
	return scanEntry(row)
}

func scanEntry(row *sql.Row) (*models.Entry, error) {
	e := &models.Entry{}
	var deletedAt sql.NullString
	err := row.Scan(&e.ID, &e.EntryUUID, &e.Label, &e.DataBlob, &e.Nonce,
		&e.ProfileID, &e.CreatedAt, &e.UpdatedAt, &deletedAt, &e.SyncVersion)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan entry: %w", err)
	}
	if deletedAt.Valid {
		e.DeletedAt = &deletedAt.String
	}
	return e, nil
}

func (r *SQLiteRepository) GetActive(ctx context.Context, profileID int64) ([]models.Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM vault_entries
		WHERE profile_id = ? AND deleted_at IS NULL
		ORDER BY id`
	return r.list(ctx, query, profileID)
}

func (r *SQLiteRepository) GetAllSince(ctx context.Context, profileID, since int64) ([]models.Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM vault_entries
		WHERE profile_id = ? AND sync_version > ?
		ORDER BY id`
	return r.list(ctx, query, profileID, since)
}

func (r *SQLiteRepository) list(ctx context.Context, query string, args ...any) ([]models.Entry, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &common.StoreError{Op: "list entries", Err: err}
	}
	defer rows.Close()

	var result []models.Entry
	for rows.Next() {
		var e models.Entry
		var deletedAt sql.NullString
		if err := rows.Scan(&e.ID, &e.EntryUUID, &e.Label, &e.DataBlob, &e.Nonce,
			&e.ProfileID, &e.CreatedAt, &e.UpdatedAt, &deletedAt, &e.SyncVersion); err != nil {
			return nil, err
		}
		if deletedAt.Valid {
			e.DeletedAt = &deletedAt.String
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// UpsertByUUID writes a merge winner. The incoming sync_version and
// updated_at are stored verbatim; merge has already decided the winner.
func (r *SQLiteRepository) UpsertByUUID(ctx context.Context, e *models.Entry) error {
	query := `INSERT INTO vault_entries
		(entry_uuid, label, data_blob, nonce, profile_id, created_at, updated_at, deleted_at, sync_version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(entry_uuid) DO UPDATE SET
			label = excluded.label,
			data_blob = excluded.data_blob,
			nonce = excluded.nonce,
			updated_at = excluded.updated_at,
			deleted_at = excluded.deleted_at,
			sync_version = excluded.sync_version`
	var deletedAt any
	if e.DeletedAt != nil {
		deletedAt = *e.DeletedAt
	}
	_, err := r.db.ExecContext(ctx, query,
		e.EntryUUID, e.Label, e.DataBlob, e.Nonce, e.ProfileID,
		e.CreatedAt, e.UpdatedAt, deletedAt, e.SyncVersion)
	if err != nil {
		return &common.StoreError{Op: "upsert entry", Err: err}
	}
	return nil
}

// PruneTombstones hard-deletes tombstones older than the cutoff. Runs
// at unlock, never during a sync.
func (r *SQLiteRepository) PruneTombstones(ctx context.Context, cutoff string) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM vault_entries WHERE deleted_at IS NOT NULL AND deleted_at < ?`, cutoff)
	if err != nil {
		return 0, &common.StoreError{Op: "prune tombstones", Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, &common.StoreError{Op: "prune tombstones", Err: err}
	}
	return n, nil
}
