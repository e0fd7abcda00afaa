// Package storage opens the local SQLite database, applies the embedded
// goose migrations and wires the entity repositories.
package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/pressly/goose/v3"

	"github.com/vibevault/vibevault/internal/repositories/devices"
	"github.com/vibevault/vibevault/internal/repositories/entries"
	"github.com/vibevault/vibevault/internal/repositories/profiles"
	"github.com/vibevault/vibevault/internal/repositories/synclog"
	"github.com/vibevault/vibevault/internal/repositories/users"
	"github.com/vibevault/vibevault/internal/storage/migrations"
)

// Repositories bundles the per-entity repositories over one database.
type Repositories struct {
	Users    users.Repository
	Profiles profiles.Repository
	Entries  entries.Repository
	Devices  devices.Repository
	SyncLog  synclog.Repository
	DB       *sql.DB
}

// RunMigrations applies the embedded migrations. Goose tracks applied
// versions, so repeated calls are no-ops.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}

	return goose.UpContext(ctx, db, ".")
}

// InitDatabase opens (creating if needed) the database at dsn, runs
// migrations and backfills sync identities on rows that predate them.
func InitDatabase(ctx context.Context, dsn string) (*Repositories, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	if err := backfillEntryUUIDs(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	repos := &Repositories{
		Users:    users.NewSQLiteRepository(db),
		Profiles: profiles.NewSQLiteRepository(db),
		Entries:  entries.NewSQLiteRepository(db),
		Devices:  devices.NewSQLiteRepository(db),
		SyncLog:  synclog.NewSQLiteRepository(db),
		DB:       db,
	}
	return repos, nil
}

// backfillEntryUUIDs assigns a fresh UUIDv4 to rows created before the
// sync columns existed. Their sync_version stays at the column default.
func backfillEntryUUIDs(ctx context.Context, db *sql.DB) error {
	rows, err := db.QueryContext(ctx,
		`SELECT id FROM vault_entries WHERE entry_uuid IS NULL OR entry_uuid = ''`)
	if err != nil {
		return fmt.Errorf("backfill query: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, id := range ids {
		if _, err := db.ExecContext(ctx,
			`UPDATE vault_entries SET entry_uuid = ? WHERE id = ?`,
			uuid.NewString(), id); err != nil {
			return fmt.Errorf("backfill entry %d: %w", id, err)
		}
	}
	return nil
}
