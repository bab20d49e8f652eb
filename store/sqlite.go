package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
	CREATE TABLE IF NOT EXISTS objects (
		key TEXT PRIMARY KEY,
		data BLOB NOT NULL
	);
`

// sqliteBackend packs the whole store namespace into one SQLite database
// file, keyed by object key. Handy when a store has to travel as a single
// artifact.
type sqliteBackend struct {
	db         *sql.DB
	insertStmt *sql.Stmt
	selectStmt *sql.Stmt
}

var _ Backend = (*sqliteBackend)(nil)

func openSQLiteDB(path string) (*sql.DB, error) {
	dsn := fmt.Sprintf("%s?_journal_mode=%s&_synchronous=%s&_busy_timeout=%d",
		path, "WAL", "NORMAL", 5000)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}
	// The store namespace is written by one goroutine and read sequentially.
	db.SetMaxOpenConns(1)

	return db, nil
}

func newSQLiteBackend(db *sql.DB) (*sqliteBackend, error) {
	b := &sqliteBackend{db: db}

	var err error
	b.insertStmt, err = db.Prepare(`INSERT OR REPLACE INTO objects (key, data) VALUES (?, ?)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("prepare insert statement: %w", err)
	}

	b.selectStmt, err = db.Prepare(`SELECT data FROM objects WHERE key = ?`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("prepare select statement: %w", err)
	}

	return b, nil
}

func createSQLiteBackend(path string) (*sqliteBackend, error) {
	db, err := openSQLiteDB(path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return newSQLiteBackend(db)
}

func openSQLiteBackend(path string) (*sqliteBackend, error) {
	db, err := openSQLiteDB(path)
	if err != nil {
		return nil, err
	}
	// Opening never creates tables; a foreign file surfaces as a query error
	// and is reported as corruption by the reader.
	return newSQLiteBackend(db)
}

func (b *sqliteBackend) Put(ctx context.Context, key string, data []byte) error {
	if _, err := b.insertStmt.ExecContext(ctx, key, data); err != nil {
		return fmt.Errorf("write object %s: %w", key, err)
	}

	return nil
}

func (b *sqliteBackend) Get(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := b.selectStmt.QueryRowContext(ctx, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("object %s: %w", key, fs.ErrNotExist)
	}
	if err != nil {
		return nil, fmt.Errorf("read object %s: %w", key, err)
	}

	return data, nil
}

func (b *sqliteBackend) Close() error {
	if b.insertStmt != nil {
		b.insertStmt.Close()
	}
	if b.selectStmt != nil {
		b.selectStmt.Close()
	}

	return b.db.Close()
}
