// Package journal persists monitoring sessions and level transitions in
// SQLite so past alerts can be reviewed after the fact.
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"github.com/teslashibe/go-vigil/internal/log"
	"github.com/teslashibe/go-vigil/pkg/drowsiness"
	"github.com/teslashibe/go-vigil/pkg/headpose"
	"github.com/teslashibe/go-vigil/pkg/monitor"
)

// ErrSessionNotFound is returned when closing an unknown session.
var ErrSessionNotFound = errors.New("journal: session not found")

// DefaultLimit and MaxLimit bound listing queries.
const (
	DefaultLimit = 50
	MaxLimit     = 1000
)

var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA foreign_keys=ON",
}

// Journal is safe for concurrent use.
type Journal struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (creating if needed) the database at path and brings its
// schema up to date. Use ":memory:" for a throwaway journal.
func Open(path string, logger *slog.Logger) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("journal: open %s: %w", path, err)
	}
	// One writer keeps SQLite from returning SQLITE_BUSY under load, and
	// keeps an in-memory database on a single connection.
	db.SetMaxOpenConns(1)

	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("journal: %s: %w", p, err)
		}
	}

	j := &Journal{db: db, logger: log.Or(logger).With("component", "journal")}
	if err := j.migrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	j.logger.Info("journal opened", "path", path)
	return j, nil
}

// Close closes the database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Session is one monitoring run.
type Session struct {
	ID        string          `json:"id"`
	StartedAt time.Time       `json:"started_at"`
	EndedAt   *time.Time      `json:"ended_at,omitempty"`
	Config    json.RawMessage `json:"config,omitempty"`
}

// Event is a recorded level transition.
type Event struct {
	ID        int64              `json:"id"`
	SessionID string             `json:"session_id"`
	At        time.Time          `json:"at"`
	From      drowsiness.Level   `json:"from"`
	To        drowsiness.Level   `json:"to"`
	Perclos   float64            `json:"perclos"`
	Direction headpose.Direction `json:"direction"`
}

// OpenSession records the start of a session. config is stored as JSON
// and may be nil. Opening a session whose row already exists, e.g. one
// created by an early transition, keeps the earlier start time and fills
// in the config.
func (j *Journal) OpenSession(ctx context.Context, id string, startedAt time.Time, config any) error {
	var cfg sql.NullString
	if config != nil {
		data, err := json.Marshal(config)
		if err != nil {
			return fmt.Errorf("journal: encode session config: %w", err)
		}
		cfg = sql.NullString{String: string(data), Valid: true}
	}
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO sessions (id, started_at, config_json) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   started_at  = MIN(sessions.started_at, excluded.started_at),
		   config_json = COALESCE(excluded.config_json, sessions.config_json)`,
		id, startedAt.UnixNano(), cfg)
	if err != nil {
		return fmt.Errorf("journal: open session: %w", err)
	}
	return nil
}

// CloseSession stamps the end time of a session.
func (j *Journal) CloseSession(ctx context.Context, id string, endedAt time.Time) error {
	res, err := j.db.ExecContext(ctx,
		`UPDATE sessions SET ended_at = ? WHERE id = ?`, endedAt.UnixNano(), id)
	if err != nil {
		return fmt.Errorf("journal: close session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// RecordTransition stores tr, creating its session row if needed.
func (j *Journal) RecordTransition(ctx context.Context, tr monitor.Transition) error {
	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("journal: begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO sessions (id, started_at) VALUES (?, ?)`,
		tr.Session, tr.At.UnixNano()); err != nil {
		return fmt.Errorf("journal: ensure session: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO transitions (session_id, at, from_level, to_level, perclos, direction)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		tr.Session, tr.At.UnixNano(), tr.From.String(), tr.To.String(), tr.Perclos, tr.Direction.String()); err != nil {
		return fmt.Errorf("journal: insert transition: %w", err)
	}
	return tx.Commit()
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	default:
		return limit
	}
}

// RecentTransitions returns up to limit transitions, newest first.
func (j *Journal) RecentTransitions(ctx context.Context, limit int) ([]Event, error) {
	return j.queryEvents(ctx,
		`SELECT id, session_id, at, from_level, to_level, perclos, direction
		 FROM transitions ORDER BY at DESC, id DESC LIMIT ?`, clampLimit(limit))
}

// SessionTransitions returns a session's transitions, oldest first.
func (j *Journal) SessionTransitions(ctx context.Context, sessionID string) ([]Event, error) {
	return j.queryEvents(ctx,
		`SELECT id, session_id, at, from_level, to_level, perclos, direction
		 FROM transitions WHERE session_id = ? ORDER BY at, id`, sessionID)
}

func (j *Journal) queryEvents(ctx context.Context, query string, args ...any) ([]Event, error) {
	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("journal: query transitions: %w", err)
	}
	defer rows.Close()

	events := []Event{}
	for rows.Next() {
		var (
			e             Event
			at            int64
			from, to, dir string
		)
		if err := rows.Scan(&e.ID, &e.SessionID, &at, &from, &to, &e.Perclos, &dir); err != nil {
			return nil, fmt.Errorf("journal: scan transition: %w", err)
		}
		e.At = time.Unix(0, at).UTC()
		if e.From, err = drowsiness.ParseLevel(from); err != nil {
			return nil, fmt.Errorf("journal: transition %d: %w", e.ID, err)
		}
		if e.To, err = drowsiness.ParseLevel(to); err != nil {
			return nil, fmt.Errorf("journal: transition %d: %w", e.ID, err)
		}
		if e.Direction, err = headpose.ParseDirection(dir); err != nil {
			return nil, fmt.Errorf("journal: transition %d: %w", e.ID, err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// Sessions returns up to limit sessions, newest first.
func (j *Journal) Sessions(ctx context.Context, limit int) ([]Session, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, started_at, ended_at, config_json FROM sessions
		 ORDER BY started_at DESC LIMIT ?`, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("journal: query sessions: %w", err)
	}
	defer rows.Close()

	sessions := []Session{}
	for rows.Next() {
		var (
			s       Session
			started int64
			ended   sql.NullInt64
			cfg     sql.NullString
		)
		if err := rows.Scan(&s.ID, &started, &ended, &cfg); err != nil {
			return nil, fmt.Errorf("journal: scan session: %w", err)
		}
		s.StartedAt = time.Unix(0, started).UTC()
		if ended.Valid {
			t := time.Unix(0, ended.Int64).UTC()
			s.EndedAt = &t
		}
		if cfg.Valid {
			s.Config = json.RawMessage(cfg.String)
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}
