package hashing

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/mattn/go-sqlite3"
)

const createFileHashesTable = `
CREATE TABLE IF NOT EXISTS file_hashes (
    file_path TEXT PRIMARY KEY,
    hash TEXT NOT NULL,
    updated_at TEXT NOT NULL
)`

// Store persists a hash database between runs in SQLite.
type Store struct {
	db *sql.DB
}

// OpenStore opens (or creates) the hash store at dbPath.
func OpenStore(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create hash store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open hash store: %w", err)
	}
	// A single connection keeps :memory: databases alive across calls.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(createFileHashesTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create file_hashes table: %w", err)
	}

	return &Store{db: db}, nil
}

// Load returns the stored database. An empty store yields an empty database.
func (s *Store) Load(ctx context.Context) (Database, error) {
	rows, err := sq.Select("file_path", "hash").
		From("file_hashes").
		RunWith(s.db).
		QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query file hashes: %w", err)
	}
	defer rows.Close()

	db := make(Database)
	for rows.Next() {
		var path, hash string
		if err := rows.Scan(&path, &hash); err != nil {
			return nil, fmt.Errorf("failed to scan file hash: %w", err)
		}
		db[path] = hash
	}
	return db, rows.Err()
}

// Save replaces the stored database with db in a single transaction.
func (s *Store) Save(ctx context.Context, db Database) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // Safe to call even after commit

	if _, err := sq.Delete("file_hashes").RunWith(tx).ExecContext(ctx); err != nil {
		return fmt.Errorf("failed to clear file hashes: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	for path, hash := range db {
		_, err := sq.Insert("file_hashes").
			Columns("file_path", "hash", "updated_at").
			Values(path, hash, now).
			RunWith(tx).
			ExecContext(ctx)
		if err != nil {
			return fmt.Errorf("failed to write hash for %s: %w", path, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit file hashes: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
