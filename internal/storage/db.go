package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"path/filepath"

	_ "modernc.org/sqlite"

	"todo-man/internal/config"
)

// DB is a single-table key/value store in a SQLite file, laid out like
// VS Code's state.vscdb: ItemTable(key TEXT PRIMARY KEY, value BLOB).
type DB struct {
	db    *sql.DB
	path  string
	debug bool
}

// Open opens or creates the database at path, creating parent directories.
func Open(path string, debug bool) (*DB, error) {
	if path == "" { return nil, errors.New("empty database path") }
	if err := config.EnsureDir(filepath.Dir(path)); err != nil { return nil, err }
	db, err := sql.Open("sqlite", path)
	if err != nil { return nil, err }
	// One connection keeps BEGIN IMMEDIATE and the statements after it on the same handle
	db.SetMaxOpenConns(1)
	// WAL + busy timeout to avoid lock issues with a second process
	_, _ = db.Exec("PRAGMA busy_timeout=5000")
	_, _ = db.Exec("PRAGMA journal_mode=WAL")
	if _, err := db.Exec("CREATE TABLE IF NOT EXISTS ItemTable (key TEXT PRIMARY KEY, value BLOB)"); err != nil {
		db.Close()
		return nil, fmt.Errorf("init %s: %w", path, err)
	}
	if debug { log.Printf("[storage] opened %s", path) }
	return &DB{db: db, path: path, debug: debug}, nil
}

func (d *DB) Path() string { return d.path }

func (d *DB) Close() error { return d.db.Close() }

// Get returns the value stored under key. The bool is false when the key is absent.
func (d *DB) Get(key string) ([]byte, bool, error) {
	var raw []byte
	err := d.db.QueryRow("SELECT value FROM ItemTable WHERE key = ?", key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) { return nil, false, nil }
	if err != nil { return nil, false, err }
	return raw, true, nil
}

// Put upserts value under key in an immediate transaction and checkpoints the WAL.
func (d *DB) Put(key string, value []byte) error {
	ctx := context.Background()
	conn, err := d.db.Conn(ctx)
	if err != nil { return err }
	defer conn.Close()
	if _, err := conn.ExecContext(ctx, "BEGIN IMMEDIATE"); err != nil { return err }
	if _, err := conn.ExecContext(ctx, "INSERT INTO ItemTable(key, value) VALUES(?, ?) ON CONFLICT(key) DO UPDATE SET value=excluded.value", key, value); err != nil {
		_, _ = conn.ExecContext(ctx, "ROLLBACK")
		return err
	}
	if _, err := conn.ExecContext(ctx, "COMMIT"); err != nil {
		_, _ = conn.ExecContext(ctx, "ROLLBACK")
		return err
	}
	// Ensure WAL is checkpointed so changes persist to main db file
	_, _ = conn.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)")
	if d.debug { log.Printf("[storage] wrote key=%s bytes=%d db=%s", key, len(value), d.path) }
	return nil
}
