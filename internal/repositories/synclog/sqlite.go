package synclog

import (
	"context"
	"database/sql"

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

func (r *SQLiteRepository) Append(ctx context.Context, e *models.SyncLogEntry) error {
	query := `INSERT INTO sync_log
		(device_id, direction, entries_sent, entries_received, status, started_at, completed_at, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	var completedAt, errorMessage any
	if e.CompletedAt != nil {
		completedAt = *e.CompletedAt
	}
	if e.ErrorMessage != nil {
		errorMessage = *e.ErrorMessage
	}
	_, err := r.db.ExecContext(ctx, query,
		e.DeviceID, e.Direction, e.EntriesSent, e.EntriesReceived,
		e.Status, e.StartedAt, completedAt, errorMessage)
	if err != nil {
		return &common.StoreError{Op: "append sync log", Err: err}
	}
	return nil
}

func (r *SQLiteRepository) GetRecent(ctx context.Context, limit int) ([]models.SyncLogEntry, error) {
	query := `SELECT id, device_id, direction, entries_sent, entries_received,
			status, started_at, completed_at, error_message
		FROM sync_log ORDER BY started_at DESC, id DESC LIMIT ?`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, &common.StoreError{Op: "list sync log", Err: err}
	}
	defer rows.Close()

	var result []models.SyncLogEntry
	for rows.Next() {
		var e models.SyncLogEntry
		var completedAt, errorMessage sql.NullString
		if err := rows.Scan(&e.ID, &e.DeviceID, &e.Direction, &e.EntriesSent,
			&e.EntriesReceived, &e.Status, &e.StartedAt, &completedAt, &errorMessage); err != nil {
			return nil, err
		}
		if completedAt.Valid {
			e.CompletedAt = &completedAt.String
		}
		if errorMessage.Valid {
			e.ErrorMessage = &errorMessage.String
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
