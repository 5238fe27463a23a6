// internal/storage/sqlite.go
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStorage keeps named text slots in a single SQLite file.
type SQLiteStorage struct {
	db *sql.DB
}

func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// one connection so :memory: databases are shared and writes serialize
	db.SetMaxOpenConns(1)

	storage := &SQLiteStorage{db: db}
	if err := storage.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return storage, nil
}

func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func (s *SQLiteStorage) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS slots (
        name TEXT PRIMARY KEY,
        value TEXT NOT NULL,
        updated_at DATETIME NOT NULL
    );
    `

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

// Get returns the slot value and whether the slot exists.
func (s *SQLiteStorage) Get(ctx context.Context, name string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM slots WHERE name = ?`, name).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read slot %s: %w", name, err)
	}
	return value, true, nil
}

// Put replaces the slot value in full.
func (s *SQLiteStorage) Put(ctx context.Context, name, value string) error {
	query := `
        INSERT INTO slots (name, value, updated_at)
        VALUES (?, ?, ?)
        ON CONFLICT(name) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
    `
	if _, err := s.db.ExecContext(ctx, query, name, value, time.Now().UTC().Format(time.RFC3339Nano)); err != nil {
		return fmt.Errorf("failed to write slot %s: %w", name, err)
	}
	return nil
}

func (s *SQLiteStorage) Delete(ctx context.Context, name string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM slots WHERE name = ?`, name); err != nil {
		return fmt.Errorf("failed to delete slot %s: %w", name, err)
	}
	return nil
}

// SlotPersister binds one slot of a SQLiteStorage to the log store's
// persistence interface.
type SlotPersister struct {
	Storage *SQLiteStorage
	Name    string
}

func (p SlotPersister) Load(ctx context.Context) ([]byte, bool, error) {
	value, ok, err := p.Storage.Get(ctx, p.Name)
	if err != nil || !ok {
		return nil, ok, err
	}
	return []byte(value), true, nil
}

func (p SlotPersister) Save(ctx context.Context, data []byte) error {
	return p.Storage.Put(ctx, p.Name, string(data))
}
