// Package sqlite persists conversations, invoices and tickets in SQLite.
package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

const schema = `
CREATE TABLE IF NOT EXISTS conversations (
	session_id TEXT PRIMARY KEY,
	domain TEXT NOT NULL,
	stage TEXT NOT NULL,
	facts TEXT NOT NULL DEFAULT '{}',
	record_id TEXT NOT NULL DEFAULT '',
	linked_record_ids TEXT NOT NULL DEFAULT '[]',
	awaiting TEXT NOT NULL DEFAULT '',
	metadata TEXT NOT NULL DEFAULT '{}',
	started_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL,
	ended_at DATETIME
);
CREATE INDEX IF NOT EXISTS idx_conversations_stage ON conversations(stage, updated_at);

CREATE TABLE IF NOT EXISTS turns (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT NOT NULL REFERENCES conversations(session_id) ON DELETE CASCADE,
	role TEXT NOT NULL,
	content TEXT NOT NULL,
	metadata TEXT NOT NULL DEFAULT '{}',
	created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_turns_session ON turns(session_id, id);

CREATE TABLE IF NOT EXISTS invoices (
	id TEXT PRIMARY KEY,
	customer_name TEXT NOT NULL,
	name_folded TEXT NOT NULL,
	rut TEXT NOT NULL,
	address TEXT NOT NULL DEFAULT '',
	issue_date DATETIME NOT NULL,
	period TEXT NOT NULL,
	consumption REAL NOT NULL,
	amount INTEGER NOT NULL,
	previous_reading REAL,
	current_reading REAL,
	due_date DATETIME,
	status TEXT NOT NULL,
	notes TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL,
	UNIQUE (rut, period)
);
CREATE INDEX IF NOT EXISTS idx_invoices_rut ON invoices(rut);

CREATE TABLE IF NOT EXISTS tickets (
	id TEXT PRIMARY KEY,
	reporter_name TEXT NOT NULL,
	phone TEXT NOT NULL,
	sector TEXT NOT NULL,
	address TEXT NOT NULL,
	description TEXT NOT NULL,
	type TEXT NOT NULL,
	meter_running INTEGER,
	water_amount TEXT NOT NULL DEFAULT '',
	has_photo INTEGER NOT NULL DEFAULT 0,
	status TEXT NOT NULL,
	priority TEXT NOT NULL,
	wants_contact INTEGER,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);
`

// DB is the shared handle for the repositories in this package.
type DB struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// Open opens or creates the database at path and applies the schema.
func Open(path string, logger *zap.Logger) (*DB, error) {
	if path == "" {
		path = filepath.Join("data", "coopchat.db")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	db, err := sqlx.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	logger = logger.With(zap.String("component", "sqlite_storage"), zap.String("path", path))
	logger.Debug("database ready")
	return &DB{db: db, logger: logger}, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

// Conversations returns the conversation repository.
func (d *DB) Conversations() *Conversations {
	return &Conversations{db: d.db}
}

// Invoices returns the invoice repository.
func (d *DB) Invoices() *Invoices {
	return &Invoices{db: d.db}
}

// Tickets returns the ticket repository.
func (d *DB) Tickets() *Tickets {
	return &Tickets{db: d.db}
}

func isConstraint(err error, code sqlite3.ErrNoExtended) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == code
}

func encodeJSON(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func floatPtr(f sql.NullFloat64) *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Float64
	return &v
}

func nullBool(b *bool) sql.NullBool {
	if b == nil {
		return sql.NullBool{}
	}
	return sql.NullBool{Bool: *b, Valid: true}
}

func boolPtr(b sql.NullBool) *bool {
	if !b.Valid {
		return nil
	}
	v := b.Bool
	return &v
}
