package assembly

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"golang.org/x/mod/semver"
)

// EngineVersion is this build's storage-compatibility version. It is
// distinct from types.SnapshotVersion (the per-document schema the reducer
// and renderer understand): EngineVersion guards the store file itself, so
// that an older binary opening a store last written by a newer one fails
// fast instead of silently misreading metadata it doesn't recognise yet.
const EngineVersion = "v1.0.0"

// ErrEngineTooOld is returned by Open when the store was last written by a
// newer engine than the one opening it now.
var ErrEngineTooOld = errors.New("assembly: store was written by a newer engine version")

// ErrNotFound is returned by Store.Load when no document exists for a page
// id or slug.
var ErrNotFound = errors.New("assembly: document not found")

// storedDocument is the row shape shared by the workspace and published
// tables: a self-describing HTML document plus the bookkeeping Store needs
// to implement last-write-wins saves without re-parsing the document.
type storedDocument struct {
	Key        string
	Document   string
	LastSeq    uint64
	ByteSize   int
	UpdatedAt  string
}

// Store is the persistence seam load/save/publish operate against. The
// workspace store is keyed by page id; the published store is keyed by
// slug (§6.1, §6.2). Both are backed by the same SQLite schema.
type Store struct {
	db   *sql.DB
	path string
}

// Open creates (or reuses) a SQLite-backed document store at path, applying
// schema and migrations. path may be a filesystem path or ":memory:"/
// "file::memory:?cache=shared" for tests.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("assembly: open store %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // single-writer SQLite file; the orchestrator's per-page lock is the real serializer

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode = WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("assembly: set journal mode: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("assembly: set busy timeout: %w", err)
	}

	if err := runMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("assembly: migrate: %w", err)
	}

	if err := checkEngineVersion(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db, path: path}, nil
}

// checkEngineVersion compares EngineVersion against the version recorded by
// whichever engine last wrote to this store, rejecting a downgrade and
// otherwise recording the current (possibly newer) version.
func checkEngineVersion(ctx context.Context, db *sql.DB) error {
	var stored string
	err := db.QueryRowContext(ctx, `SELECT value FROM store_metadata WHERE key = 'engine_version'`).Scan(&stored)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// First open of this store.
	case err != nil:
		return fmt.Errorf("assembly: read engine version: %w", err)
	default:
		if semver.Compare(EngineVersion, stored) < 0 {
			return fmt.Errorf("%w: store=%s engine=%s", ErrEngineTooOld, stored, EngineVersion)
		}
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO store_metadata (key, value) VALUES ('engine_version', ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, EngineVersion)
	if err != nil {
		return fmt.Errorf("assembly: record engine version: %w", err)
	}
	return nil
}

// Close releases the underlying database connection.
func (s *Store) Close() error { return s.db.Close() }

// Path returns the store's backing location.
func (s *Store) Path() string { return s.path }

// LoadWorkspace fetches the stored workspace document for pageID.
func (s *Store) LoadWorkspace(ctx context.Context, pageID string) (storedDocument, error) {
	return s.load(ctx, "workspace_documents", pageID)
}

// SaveWorkspace performs an atomic last-write-wins upsert of doc under
// pageID (§4.4 "save"). On failure the caller should retry once before
// surfacing the error (§7 "Save failure").
func (s *Store) SaveWorkspace(ctx context.Context, pageID string, doc storedDocument) error {
	return s.save(ctx, "workspace_documents", pageID, doc)
}

// LoadPublished fetches the published document for slug.
func (s *Store) LoadPublished(ctx context.Context, slug string) (storedDocument, error) {
	return s.load(ctx, "published_documents", slug)
}

// SavePublished upserts the published document under slug (§4.4 "publish").
func (s *Store) SavePublished(ctx context.Context, slug string, doc storedDocument) error {
	return s.save(ctx, "published_documents", slug, doc)
}

func (s *Store) load(ctx context.Context, table, key string) (storedDocument, error) {
	row := s.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT key, document, last_seq, byte_size, updated_at FROM %s WHERE key = ?`, table),
		key,
	)
	var doc storedDocument
	if err := row.Scan(&doc.Key, &doc.Document, &doc.LastSeq, &doc.ByteSize, &doc.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storedDocument{}, ErrNotFound
		}
		return storedDocument{}, fmt.Errorf("assembly: load %s/%s: %w", table, key, err)
	}
	return doc, nil
}

func (s *Store) save(ctx context.Context, table, key string, doc storedDocument) error {
	doc.Key = key
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, fmt.Sprintf(`
			INSERT INTO %s (key, document, last_seq, byte_size, updated_at)
			VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
			ON CONFLICT(key) DO UPDATE SET
				document = excluded.document,
				last_seq = excluded.last_seq,
				byte_size = excluded.byte_size,
				updated_at = excluded.updated_at
		`, table), doc.Key, doc.Document, doc.LastSeq, doc.ByteSize)
		return err
	})
	if err != nil {
		return fmt.Errorf("assembly: save %s/%s: %w", table, key, err)
	}
	return nil
}

// withTx runs fn inside a transaction opened with the driver's default
// BeginTx options, rolling back on any error or panic and committing
// otherwise. Writers are serialized by the single open connection (see
// Open's SetMaxOpenConns(1)) rather than by an IMMEDIATE write lock.
func withTx(ctx context.Context, db *sql.DB, fn func(*sql.Tx) error) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("assembly: begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()
	if err = fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("assembly: commit tx: %w", err)
	}
	return nil
}
