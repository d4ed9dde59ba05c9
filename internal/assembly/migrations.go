package assembly

import (
	"context"
	"database/sql"
	"fmt"
)

// migration is a single idempotent schema step, run in order at store-open
// time (mirrors the teacher's ordered migrationsList/RunMigrations shape,
// trimmed to the three tables this kernel needs).
type migration struct {
	name string
	fn   func(context.Context, *sql.DB) error
}

var migrationsList = []migration{
	{"workspace_documents_table", migrateWorkspaceDocumentsTable},
	{"published_documents_table", migratePublishedDocumentsTable},
	{"metadata_table", migrateMetadataTable},
}

func runMigrations(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `PRAGMA foreign_keys = OFF`); err != nil {
		return fmt.Errorf("disable foreign keys for migrations: %w", err)
	}
	defer func() { _, _ = db.ExecContext(ctx, `PRAGMA foreign_keys = ON`) }()

	for _, m := range migrationsList {
		if err := m.fn(ctx, db); err != nil {
			return fmt.Errorf("migration %s failed: %w", m.name, err)
		}
	}
	return nil
}

func migrateWorkspaceDocumentsTable(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS workspace_documents (
			key        TEXT PRIMARY KEY,
			document   TEXT NOT NULL,
			last_seq   INTEGER NOT NULL DEFAULT 0,
			byte_size  INTEGER NOT NULL DEFAULT 0,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`)
	return err
}

func migratePublishedDocumentsTable(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS published_documents (
			key        TEXT PRIMARY KEY,
			document   TEXT NOT NULL,
			last_seq   INTEGER NOT NULL DEFAULT 0,
			byte_size  INTEGER NOT NULL DEFAULT 0,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`)
	return err
}

func migrateMetadataTable(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS store_metadata (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)
	`)
	return err
}
