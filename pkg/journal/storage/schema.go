package storage

// SchemaVersion is the current database schema version.
const SchemaVersion = 1

// Schema contains the SQL statements to create the journal schema.
// Timestamps are unix nanoseconds so both SQLite drivers store them the
// same way.
const Schema = `
CREATE TABLE IF NOT EXISTS deliveries (
    id TEXT PRIMARY KEY,
    recorded_at INTEGER NOT NULL,

    -- Event envelope
    chat_id TEXT NOT NULL,
    email TEXT NOT NULL,
    role TEXT NOT NULL,
    source TEXT NOT NULL,
    session_id TEXT,
    model TEXT,
    message TEXT,
    response TEXT,

    -- Outcome
    endpoint TEXT NOT NULL,
    status_code INTEGER NOT NULL DEFAULT 0,
    success BOOLEAN NOT NULL,
    trace_id TEXT,
    error TEXT,
    error_kind TEXT,
    latency_ms INTEGER NOT NULL DEFAULT 0,
    payload_bytes INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_deliveries_recorded_at ON deliveries(recorded_at);
CREATE INDEX IF NOT EXISTS idx_deliveries_chat_id ON deliveries(chat_id);
CREATE INDEX IF NOT EXISTS idx_deliveries_session_id ON deliveries(session_id);
`

// InsertSchemaVersion records the schema version once.
const InsertSchemaVersion = `
INSERT INTO schema_version (version, applied_at)
VALUES (?, ?)
ON CONFLICT(version) DO NOTHING;
`

// GetSchemaVersion retrieves the current schema version.
const GetSchemaVersion = `
SELECT version FROM schema_version ORDER BY version DESC LIMIT 1;
`

const insertEntry = `
INSERT INTO deliveries (
    id, recorded_at,
    chat_id, email, role, source, session_id, model, message, response,
    endpoint, status_code, success, trace_id, error, error_kind, latency_ms, payload_bytes
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

const selectColumns = `
    id, recorded_at,
    chat_id, email, role, source, session_id, model, message, response,
    endpoint, status_code, success, trace_id, error, error_kind, latency_ms, payload_bytes
`
