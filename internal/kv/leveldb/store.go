package leveldb

import (
	"context"

	"github.com/mcuadros/go-defaults"
	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb"
	dberrors "github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"
	"go.uber.org/zap"

	"logsync/internal/kv"
)

// Config holds the configurations for LevelDB database.
type Config struct {
	// LevelDB database path.
	Path string `default:"./data/kv"`

	// Table namespaces keys so that several stores may share one database.
	Table string `default:"kv_store"`
}

func DefaultConfig() (config Config) {
	defaults.SetDefaults(&config)
	return
}

// Store is a kv.Store on top of an embedded LevelDB database. Keys are stored as
// "<table>/<key>".
type Store struct {
	db     *leveldb.DB
	prefix []byte
}

// NewStore opens or creates a DB for the given path.
//
// If corruption detected for an existing DB, it will try to recover the DB.
func NewStore(config Config, logger *zap.Logger, options ...opt.Options) (*Store, error) {
	defaults.SetDefaults(&config)
	if err := kv.ValidateTableName(config.Table); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	var o *opt.Options
	if len(options) > 0 {
		o = &options[0]
	}

	db, err := leveldb.OpenFile(config.Path, o)
	if dberrors.IsCorrupted(err) {
		logger.Warn("failed to open corrupted database, try to recover", zap.String("path", config.Path), zap.Error(err))
		db, err = leveldb.RecoverFile(config.Path, o)
		if err != nil {
			return nil, errors.WithMessagef(err, "Failed to recover file %v", config.Path)
		}
	} else if err != nil {
		return nil, errors.WithMessagef(err, "Failed to open file %v", config.Path)
	}

	return &Store{db: db, prefix: []byte(config.Table + "/")}, nil
}

func (s *Store) key(key string) []byte {
	out := make([]byte, 0, len(s.prefix)+len(key))
	out = append(out, s.prefix...)
	return append(out, key...)
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := s.db.Get(s.key(key), nil)
	if err == dberrors.ErrNotFound {
		return nil, false, nil
	}
	if err == leveldb.ErrClosed {
		return nil, false, kv.ErrClosed
	}
	if err != nil {
		return nil, false, errors.WithMessagef(err, "Failed to get key %v", key)
	}
	return value, true, nil
}

func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	err := s.db.Put(s.key(key), value, nil)
	if err == leveldb.ErrClosed {
		return kv.ErrClosed
	}
	return errors.WithMessagef(err, "Failed to put key %v", key)
}

func (s *Store) Delete(ctx context.Context, key string) error {
	err := s.db.Delete(s.key(key), nil)
	if err == leveldb.ErrClosed {
		return kv.ErrClosed
	}
	return errors.WithMessagef(err, "Failed to delete key %v", key)
}

func (s *Store) Scan(ctx context.Context, prefix string, fn func(kv.Entry) error) error {
	iter := s.db.NewIterator(util.BytesPrefix(s.key(prefix)), nil)
	defer iter.Release()

	for iter.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}

		// iterator buffers are reused between steps
		value := append([]byte(nil), iter.Value()...)
		key := string(iter.Key()[len(s.prefix):])

		if err := fn(kv.Entry{Key: key, Value: value}); err != nil {
			return err
		}
	}

	return errors.WithMessage(iter.Error(), "Failed to iterate database")
}

func (s *Store) Close() error {
	return s.db.Close()
}
