package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"

	"mercator-hq/tracebridge/pkg/journal"
)

// Supported SQLite driver names.
const (
	// DriverMattn is github.com/mattn/go-sqlite3 (cgo).
	DriverMattn = "sqlite3"

	// DriverModernc is modernc.org/sqlite (pure Go).
	DriverModernc = "sqlite"
)

// SQLiteConfig contains configuration for the SQLite journal backend.
type SQLiteConfig struct {
	// Driver is DriverMattn or DriverModernc.
	// Default: DriverModernc
	Driver string

	// Path is the database file path.
	Path string

	// MaxOpenConns is the maximum number of open connections.
	// Default: 4
	MaxOpenConns int

	// WALMode enables Write-Ahead Logging mode for better concurrency.
	// Default: true
	WALMode bool

	// BusyTimeout is the duration to wait when the database is locked.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// DefaultSQLiteConfig returns the default SQLite configuration.
func DefaultSQLiteConfig() *SQLiteConfig {
	return &SQLiteConfig{
		Driver:       DriverModernc,
		Path:         "data/journal.db",
		MaxOpenConns: 4,
		WALMode:      true,
		BusyTimeout:  5 * time.Second,
	}
}

// SQLiteStorage implements journal.Storage on SQLite.
type SQLiteStorage struct {
	db     *sql.DB
	config *SQLiteConfig
	logger *slog.Logger
}

// NewSQLiteStorage opens the database, creating the parent directory and
// schema when needed.
func NewSQLiteStorage(config *SQLiteConfig, logger *slog.Logger) (*SQLiteStorage, error) {
	if config == nil {
		config = DefaultSQLiteConfig()
	}
	if config.Driver == "" {
		config.Driver = DriverModernc
	}
	if config.MaxOpenConns <= 0 {
		config.MaxOpenConns = 4
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "journal.storage.sqlite", "driver", config.Driver)

	dsn, err := buildDSN(config)
	if err != nil {
		return nil, journal.NewStorageError(config.Driver, "open", err)
	}

	if dir := filepath.Dir(config.Path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, journal.NewStorageError(config.Driver, "mkdir", err)
		}
	}

	db, err := sql.Open(config.Driver, dsn)
	if err != nil {
		return nil, journal.NewStorageError(config.Driver, "open", err)
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxOpenConns)

	s := &SQLiteStorage{
		db:     db,
		config: config,
		logger: logger,
	}

	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("SQLite journal initialized",
		"path", config.Path,
		"wal_mode", config.WALMode,
		"max_open_conns", config.MaxOpenConns,
	)

	return s, nil
}

// buildDSN encodes busy timeout and journal mode in the connection string so
// every pooled connection gets them. The two drivers use different syntax.
func buildDSN(config *SQLiteConfig) (string, error) {
	if config.Path == "" {
		return "", errors.New("path is required")
	}

	busyMs := config.BusyTimeout.Milliseconds()
	params := url.Values{}

	switch config.Driver {
	case DriverMattn:
		params.Set("_busy_timeout", fmt.Sprintf("%d", busyMs))
		if config.WALMode {
			params.Set("_journal_mode", "WAL")
		}
	case DriverModernc:
		params.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", busyMs))
		if config.WALMode {
			params.Add("_pragma", "journal_mode(WAL)")
		}
	default:
		return "", fmt.Errorf("unsupported driver %q", config.Driver)
	}

	return "file:" + config.Path + "?" + params.Encode(), nil
}

func (s *SQLiteStorage) initialize() error {
	if _, err := s.db.Exec(Schema); err != nil {
		return journal.NewStorageError(s.config.Driver, "create_schema", err)
	}

	if _, err := s.db.Exec(InsertSchemaVersion, SchemaVersion, time.Now().UnixNano()); err != nil {
		return journal.NewStorageError(s.config.Driver, "insert_schema_version", err)
	}

	var version int
	err := s.db.QueryRow(GetSchemaVersion).Scan(&version)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return journal.NewStorageError(s.config.Driver, "get_schema_version", err)
	}
	if version != SchemaVersion {
		return journal.NewStorageError(s.config.Driver, "schema_version_mismatch",
			fmt.Errorf("expected schema version %d, got %d", SchemaVersion, version))
	}

	s.logger.Debug("schema version verified", "version", version)
	return nil
}

// Append persists one entry.
func (s *SQLiteStorage) Append(ctx context.Context, e *journal.Entry) error {
	_, err := s.db.ExecContext(ctx, insertEntry,
		e.ID, e.RecordedAt.UnixNano(),
		e.ChatID, e.Email, e.Role, e.Source,
		nullString(e.SessionID), nullString(e.Model), nullString(e.Message), nullString(e.Response),
		e.Endpoint, e.StatusCode, e.Success,
		nullString(e.TraceID), nullString(e.Error), nullString(e.ErrorKind),
		e.Latency.Milliseconds(), e.PayloadBytes,
	)
	if err != nil {
		return journal.NewStorageError(s.config.Driver, "append", err)
	}
	return nil
}

// Query retrieves entries matching the filters.
func (s *SQLiteStorage) Query(ctx context.Context, q *journal.Query) ([]*journal.Entry, error) {
	if q == nil {
		q = &journal.Query{}
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}

	where, args := buildWhereClause(q)

	sqlQuery := "SELECT " + selectColumns + " FROM deliveries"
	if where != "" {
		sqlQuery += " WHERE " + where
	}

	order := "DESC"
	if q.Ascending {
		order = "ASC"
	}
	sqlQuery += fmt.Sprintf(" ORDER BY recorded_at %s, id %s", order, order)

	limit := journal.DefaultQueryLimit
	if q.Limit > 0 {
		limit = q.Limit
	}
	sqlQuery += fmt.Sprintf(" LIMIT %d", limit)
	if q.Offset > 0 {
		sqlQuery += fmt.Sprintf(" OFFSET %d", q.Offset)
	}

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, journal.NewStorageError(s.config.Driver, "query", err)
	}
	defer rows.Close()

	entries := []*journal.Entry{}
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, journal.NewStorageError(s.config.Driver, "scan", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, journal.NewStorageError(s.config.Driver, "query", err)
	}

	return entries, nil
}

// Count returns the number of entries matching the filters.
func (s *SQLiteStorage) Count(ctx context.Context, q *journal.Query) (int64, error) {
	if q == nil {
		q = &journal.Query{}
	}
	where, args := buildWhereClause(q)

	sqlQuery := "SELECT COUNT(*) FROM deliveries"
	if where != "" {
		sqlQuery += " WHERE " + where
	}

	var count int64
	if err := s.db.QueryRowContext(ctx, sqlQuery, args...).Scan(&count); err != nil {
		return 0, journal.NewStorageError(s.config.Driver, "count", err)
	}
	return count, nil
}

// Delete removes entries matching the filters.
func (s *SQLiteStorage) Delete(ctx context.Context, q *journal.Query) (int64, error) {
	if q == nil {
		q = &journal.Query{}
	}
	where, args := buildWhereClause(q)

	sqlQuery := "DELETE FROM deliveries"
	if where != "" {
		sqlQuery += " WHERE " + where
	}

	result, err := s.db.ExecContext(ctx, sqlQuery, args...)
	if err != nil {
		return 0, journal.NewStorageError(s.config.Driver, "delete", err)
	}

	count, err := result.RowsAffected()
	if err != nil {
		return 0, journal.NewStorageError(s.config.Driver, "delete", err)
	}
	return count, nil
}

// Trim keeps the newest keep entries.
func (s *SQLiteStorage) Trim(ctx context.Context, keep int64) (int64, error) {
	if keep < 0 {
		return 0, &journal.QueryError{Field: "keep", Cause: fmt.Errorf("must be non-negative, got %d", keep)}
	}

	result, err := s.db.ExecContext(ctx, `
		DELETE FROM deliveries WHERE id IN (
			SELECT id FROM deliveries ORDER BY recorded_at DESC, id DESC LIMIT -1 OFFSET ?
		)`, keep)
	if err != nil {
		return 0, journal.NewStorageError(s.config.Driver, "trim", err)
	}

	count, err := result.RowsAffected()
	if err != nil {
		return 0, journal.NewStorageError(s.config.Driver, "trim", err)
	}
	return count, nil
}

// Ping verifies the database connection.
func (s *SQLiteStorage) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return journal.NewStorageError(s.config.Driver, "ping", err)
	}
	return nil
}

// Close releases the database handle.
func (s *SQLiteStorage) Close() error {
	if err := s.db.Close(); err != nil {
		return journal.NewStorageError(s.config.Driver, "close", err)
	}
	s.logger.Info("SQLite journal closed")
	return nil
}

// buildWhereClause builds a SQL WHERE clause (without the keyword) and its
// arguments from the query filters.
func buildWhereClause(q *journal.Query) (string, []any) {
	var conditions []string
	var args []any

	if q.Since != nil {
		conditions = append(conditions, "recorded_at >= ?")
		args = append(args, q.Since.UnixNano())
	}
	if q.Until != nil {
		conditions = append(conditions, "recorded_at <= ?")
		args = append(args, q.Until.UnixNano())
	}
	if q.ChatID != "" {
		conditions = append(conditions, "chat_id = ?")
		args = append(args, q.ChatID)
	}
	if q.Email != "" {
		conditions = append(conditions, "email = ?")
		args = append(args, q.Email)
	}
	if q.Role != "" {
		conditions = append(conditions, "role = ?")
		args = append(args, q.Role)
	}
	if q.SessionID != "" {
		conditions = append(conditions, "session_id = ?")
		args = append(args, q.SessionID)
	}
	switch q.Status {
	case journal.StatusSuccess:
		conditions = append(conditions, "success = 1")
	case journal.StatusFailure:
		conditions = append(conditions, "success = 0")
	}

	return strings.Join(conditions, " AND "), args
}

func scanEntry(rows *sql.Rows) (*journal.Entry, error) {
	var e journal.Entry
	var recordedAt, latencyMs int64
	var sessionID, model, message, response, traceID, errText, errKind sql.NullString

	err := rows.Scan(
		&e.ID, &recordedAt,
		&e.ChatID, &e.Email, &e.Role, &e.Source, &sessionID, &model, &message, &response,
		&e.Endpoint, &e.StatusCode, &e.Success, &traceID, &errText, &errKind, &latencyMs, &e.PayloadBytes,
	)
	if err != nil {
		return nil, err
	}

	e.RecordedAt = time.Unix(0, recordedAt).UTC()
	e.Latency = time.Duration(latencyMs) * time.Millisecond
	e.SessionID = sessionID.String
	e.Model = model.String
	e.Message = message.String
	e.Response = response.String
	e.TraceID = traceID.String
	e.Error = errText.String
	e.ErrorKind = errKind.String

	return &e, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
