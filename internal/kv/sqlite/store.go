package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mcuadros/go-defaults"
	"github.com/pkg/errors"

	_ "github.com/mattn/go-sqlite3"

	"logsync/internal/kv"
)

// Config holds the configurations for the SQLite key-value store.
type Config struct {
	// Database file path.
	Path string `default:"./data/logsync.db"`

	// Table shared by every record.
	Table string `default:"kv_store"`
}

func DefaultConfig() (config Config) {
	defaults.SetDefaults(&config)
	return
}

// Store is a kv.Store backed by one SQLite table.
type Store struct {
	db    *sql.DB
	table string
}

// NewStore opens or creates the database file and its table.
func NewStore(ctx context.Context, config Config) (*Store, error) {
	defaults.SetDefaults(&config)
	if err := kv.ValidateTableName(config.Table); err != nil {
		return nil, err
	}

	if dir := filepath.Dir(config.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.WithMessage(err, "Failed to create database dir")
		}
	}

	db, err := sql.Open("sqlite3", config.Path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, errors.WithMessagef(err, "Failed to open sqlite database %v", config.Path)
	}

	store := &Store{db: db, table: config.Table}
	if err := store.ensureTable(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (s *Store) ensureTable(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		)`, s.table))
	return errors.WithMessagef(err, "Failed to create table %v", s.table)
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value string
	row := s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT value FROM %s WHERE key = ?`, s.table), key)
	if err := row.Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, errors.WithMessagef(err, "Failed to get key %v", key)
	}
	return []byte(value), true, nil
}

func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, s.table), key, string(value), time.Now().Unix())
	return errors.WithMessagef(err, "Failed to put key %v", key)
}

func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE key = ?`, s.table), key)
	return errors.WithMessagef(err, "Failed to delete key %v", key)
}

func (s *Store) Scan(ctx context.Context, prefix string, fn func(kv.Entry) error) error {
	query := fmt.Sprintf(`SELECT key, value FROM %s WHERE key >= ?`, s.table)
	args := []interface{}{prefix}
	if end := kv.PrefixEnd(prefix); end != "" {
		query += ` AND key < ?`
		args = append(args, end)
	}
	query += ` ORDER BY key`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return errors.WithMessagef(err, "Failed to scan prefix %v", prefix)
	}
	defer rows.Close()

	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return errors.WithMessage(err, "Failed to read row")
		}
		if err := fn(kv.Entry{Key: key, Value: []byte(value)}); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (s *Store) Close() error {
	return s.db.Close()
}
