package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"logsync/internal/kv"
)

// Store keeps every record as one row of a JSONB key-value table.
type Store struct {
	pool  *pgxpool.Pool
	table string
}

func NewStore(ctx context.Context, dsn, table string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	if table == "" {
		table = "kv_store"
	}
	if err := kv.ValidateTableName(table); err != nil {
		return nil, err
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	store := &Store{pool: pool, table: table}
	if err := store.ensureTable(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

func (s *Store) ensureTable(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			key TEXT COLLATE "C" PRIMARY KEY,
			value JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, s.table))
	if err != nil {
		return fmt.Errorf("create table %s: %w", s.table, err)
	}
	return nil
}

func (s *Store) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value string
	err := s.pool.QueryRow(ctx, fmt.Sprintf(`SELECT value::text FROM %s WHERE key = $1`, s.table), key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return []byte(value), true, nil
}

// Put inserts or updates one record. Values must be valid JSON.
func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	_, err := s.pool.Exec(ctx, fmt.Sprintf(`
		INSERT INTO %s (key, value, updated_at)
		VALUES ($1, $2::jsonb, now())
		ON CONFLICT (key)
		DO UPDATE SET
			value = EXCLUDED.value,
			updated_at = now()
	`, s.table), key, string(value))
	return err
}

// PutBatch upserts many records in one round trip.
func (s *Store) PutBatch(ctx context.Context, entries []kv.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, entry := range entries {
		batch.Queue(fmt.Sprintf(`
			INSERT INTO %s (key, value, updated_at)
			VALUES ($1, $2::jsonb, now())
			ON CONFLICT (key)
			DO UPDATE SET
				value = EXCLUDED.value,
				updated_at = now()
		`, s.table), entry.Key, string(entry.Value))
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range entries {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE key = $1`, s.table), key)
	return err
}

func (s *Store) Scan(ctx context.Context, prefix string, fn func(kv.Entry) error) error {
	query := fmt.Sprintf(`SELECT key, value::text FROM %s WHERE key LIKE $1 ORDER BY key`, s.table)

	rows, err := s.pool.Query(ctx, query, likePrefix(prefix))
	if err != nil {
		return err
	}

	// collect first so fn runs with the connection released
	var entries []kv.Entry
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			rows.Close()
			return err
		}
		entries = append(entries, kv.Entry{Key: key, Value: []byte(value)})
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, entry := range entries {
		if err := fn(entry); err != nil {
			return err
		}
	}
	return nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// likePrefix builds a LIKE pattern matching every key that starts with prefix. Unlike an
// upper range bound it never produces invalid UTF-8.
func likePrefix(prefix string) string {
	return likeEscaper.Replace(prefix) + "%"
}
