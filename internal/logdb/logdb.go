package logdb

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaFS embed.FS

// ErrStorage marks connect/read/write failures against the log table.
// Callers can test for it with errors.Is.
var ErrStorage = errors.New("log storage")

// Levels is the fixed severity vocabulary, most severe first.
var Levels = []string{"CRITICAL", "ERROR", "WARN", "INFO", "DEBUG"}

// Record is one log row. It is immutable once written.
type Record struct {
	ID         int64  `json:"id,omitempty"`
	Timestamp  int64  `json:"timestamp"` // milliseconds since epoch, UTC
	Level      string `json:"level"`
	Source     string `json:"source,omitempty"`
	Process    string `json:"process,omitempty"`
	Module     string `json:"module"`
	Version    string `json:"version,omitempty"`
	Message    string `json:"message"`
	Traceback  string `json:"traceback,omitempty"`
	EventRunID string `json:"event_run_id,omitempty"`
	Context    any    `json:"context,omitempty"`
}

// Time returns the record timestamp as a UTC time.
func (r Record) Time() time.Time { return time.UnixMilli(r.Timestamp).UTC() }

// HourBucket is one row of the per-hour volume stats.
type HourBucket struct {
	Hour  string `json:"hour"` // "2006-01-02 15:00"
	Count int64  `json:"count"`
}

// Config configures the store.
type Config struct {
	Path        string
	BusyTimeout time.Duration // 0 means driver default
}

// Store wraps the SQLite database holding the logs table.
//
// database/sql checks a connection out per operation; with MaxOpenConns(1)
// that matches SQLite's preference for a single writer and keeps one
// record's failure isolated from the next.
type Store struct {
	db *sql.DB
}

// Open creates the database directory and the logs table if absent, then
// returns a ready store. Schema creation always runs before any read or
// write goes through.
func Open(cfg Config) (*Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, fmt.Errorf("%w: path is required", ErrStorage)
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, fmt.Errorf("%w: mkdir: %w", ErrStorage, err)
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: open: %w", ErrStorage, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	s := &Store{db: db}
	if err := s.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	b, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		return fmt.Errorf("%w: schema: %w", ErrStorage, err)
	}
	if _, err := s.db.ExecContext(ctx, string(b)); err != nil {
		return fmt.Errorf("%w: migrate: %w", ErrStorage, err)
	}
	return nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Append inserts one record. The caller owns the timestamp; Append never
// fills it in.
func (s *Store) Append(ctx context.Context, r Record) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("%w: store is closed", ErrStorage)
	}
	if r.Message == "" || r.Module == "" {
		return fmt.Errorf("%w: message and module are required", ErrStorage)
	}
	if !validLevel(r.Level) {
		return fmt.Errorf("%w: unknown level %q", ErrStorage, r.Level)
	}

	ctxText, err := serializeContext(r.Context)
	if err != nil {
		return fmt.Errorf("%w: context: %w", ErrStorage, err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO logs (timestamp, level, source, process, module, version, message, traceback, event_run_id, context)
		 VALUES (?,?,?,?,?,?,?,?,?,?)`,
		r.Timestamp, r.Level, nullStr(r.Source), nullStr(r.Process), r.Module,
		nullStr(r.Version), r.Message, nullStr(r.Traceback), nullStr(r.EventRunID), ctxText,
	)
	if err != nil {
		return fmt.Errorf("%w: insert: %w", ErrStorage, err)
	}
	return nil
}

// Maintain runs lightweight upkeep: it truncates the WAL and refreshes
// planner statistics. It never deletes rows.
func (s *Store) Maintain(ctx context.Context) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("%w: store is closed", ErrStorage)
	}
	if _, err := s.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return fmt.Errorf("%w: checkpoint: %w", ErrStorage, err)
	}
	if _, err := s.db.ExecContext(ctx, "ANALYZE"); err != nil {
		return fmt.Errorf("%w: analyze: %w", ErrStorage, err)
	}
	return nil
}

func validLevel(level string) bool {
	for _, l := range Levels {
		if l == level {
			return true
		}
	}
	return false
}

func serializeContext(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	if s, ok := v.(string); ok {
		return nullStr(s), nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
