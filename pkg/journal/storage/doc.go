// Package storage provides journal backends.
//
// SQLiteStorage runs on either SQLite driver linked into the binary:
// "sqlite3" (github.com/mattn/go-sqlite3, cgo) or "sqlite" (modernc.org/sqlite,
// pure Go). Both share one schema; timestamps are stored as unix nanoseconds
// and latency as milliseconds. MemoryStorage keeps entries in a slice.
//
// Open picks the backend from the journal configuration:
//
//	store, err := storage.Open(cfg.Journal, logger)
//	if err != nil {
//		return err
//	}
//	defer store.Close()
package storage
