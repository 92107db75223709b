package storage

import "logsync/internal/model"

// Storage defines a sink for log records.
type Storage interface {
	PutLogBatch(logs []model.LogRecord) error
}

// EntrySink receives raw entries scanned out of a key-value store.
type EntrySink interface {
	PutEntries(entries []model.StoredEntry) error
}
