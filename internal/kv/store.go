package kv

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/sugawarayuuta/sonnet"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("kv store is closed")

// Entry is one key/value pair returned by Scan.
type Entry struct {
	Key   string
	Value []byte
}

// Store is a persistent map from string keys to JSON documents. All backends keep their
// records in a single table or collection shared with unrelated keys.
type Store interface {
	// Get returns the raw value of key, or found=false when absent.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Put creates or overwrites key.
	Put(ctx context.Context, key string, value []byte) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Scan calls fn for every key starting with prefix in ascending key order. An empty
	// prefix walks the whole store. fn must not call back into the store.
	Scan(ctx context.Context, prefix string, fn func(Entry) error) error
	Close() error
}

// GetJSON reads key and unmarshals it into out.
func GetJSON(ctx context.Context, store Store, key string, out interface{}) (bool, error) {
	value, ok, err := store.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := sonnet.Unmarshal(value, out); err != nil {
		return false, fmt.Errorf("unmarshal %s: %w", key, err)
	}
	return true, nil
}

// PutJSON marshals value and writes it under key.
func PutJSON(ctx context.Context, store Store, key string, value interface{}) error {
	data, err := sonnet.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	return store.Put(ctx, key, data)
}

// PrefixEnd returns the smallest key greater than every key starting with prefix, or ""
// when no such bound exists.
func PrefixEnd(prefix string) string {
	end := []byte(prefix)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xff {
			end[i]++
			return string(end[:i+1])
		}
	}
	return ""
}

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidateTableName guards table and collection names interpolated into queries.
func ValidateTableName(name string) error {
	if !tableNamePattern.MatchString(name) {
		return fmt.Errorf("invalid table name %q", name)
	}
	return nil
}
