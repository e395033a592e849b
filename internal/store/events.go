// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vigil Contributors

// Package store persists the watchdog's append-only event log. An in-memory
// bounded ring fronts the SQLite database so recency queries made on every
// monitor tick never touch disk, and so monitoring keeps working when the
// database does not.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	vigilerr "github.com/vigil-watch/vigil/pkg/errors"
)

// Kind classifies an event.
type Kind string

const (
	KindHeartbeat Kind = "heartbeat"
	KindFailure   Kind = "failure"
	KindAnomaly   Kind = "anomaly"
	KindRecovery  Kind = "recovery"
	KindAlert     Kind = "alert"
	KindStartup   Kind = "startup"
	KindWake      Kind = "wake"
)

// Event is an immutable log record.
type Event struct {
	ID        string         `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	Kind      Kind           `json:"kind"`
	Source    string         `json:"source"`
	Message   string         `json:"message"`
	Detail    map[string]any `json:"detail,omitempty"`
}

// NewEvent builds an Event with a fresh ID.
func NewEvent(kind Kind, source, message string, detail map[string]any, now time.Time) Event {
	return Event{
		ID:        uuid.NewString(),
		Timestamp: now,
		Kind:      kind,
		Source:    source,
		Message:   message,
		Detail:    detail,
	}
}

const ringCap = 1000

// EventStore is the append-only event log.
type EventStore struct {
	mu   sync.Mutex
	ring []Event
	db   *sql.DB // nil in memory-only mode
}

// Open creates (or reopens) the event store at dbPath. The most recent
// events are loaded back into the ring so recency queries survive restarts.
func Open(dbPath string) (*EventStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, vigilerr.Wrapf(err, vigilerr.CodeStoreDatabaseFailure, "opening event db")
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, vigilerr.Wrapf(err, vigilerr.CodeStoreDatabaseFailure, "pinging event db")
	}

	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &EventStore{db: db}
	if err := s.reload(); err != nil {
		// The ring starts empty; monitoring proceeds regardless.
		slog.Warn("event store reload failed", "error", err)
	}
	return s, nil
}

// NewMemory creates an event store with no database behind the ring.
func NewMemory() *EventStore {
	return &EventStore{}
}

func migrate(db *sql.DB) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS events (
	id        TEXT PRIMARY KEY,
	timestamp TEXT NOT NULL,
	kind      TEXT NOT NULL,
	source    TEXT NOT NULL,
	message   TEXT NOT NULL DEFAULT '',
	detail    TEXT NOT NULL DEFAULT '{}'
);

CREATE INDEX IF NOT EXISTS idx_events_timestamp ON events(timestamp);
CREATE INDEX IF NOT EXISTS idx_events_kind ON events(kind, timestamp);
`
	if _, err := db.Exec(ddl); err != nil {
		return vigilerr.Wrapf(err, vigilerr.CodeStoreDatabaseFailure, "migrating event db")
	}
	return nil
}

func (s *EventStore) reload() error {
	rows, err := s.db.Query(
		`SELECT id, timestamp, kind, source, message, detail
		 FROM events ORDER BY timestamp DESC LIMIT ?`, ringCap)
	if err != nil {
		return vigilerr.Wrapf(err, vigilerr.CodeStoreDatabaseFailure, "loading recent events")
	}
	defer func() { _ = rows.Close() }()

	var newestFirst []Event
	for rows.Next() {
		var e Event
		var ts, detail string
		if err := rows.Scan(&e.ID, &ts, &e.Kind, &e.Source, &e.Message, &detail); err != nil {
			return vigilerr.Wrapf(err, vigilerr.CodeStoreDatabaseFailure, "scanning event row")
		}
		if e.Timestamp, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			return vigilerr.Wrapf(err, vigilerr.CodeStoreDatabaseFailure, "parsing event timestamp")
		}
		if detail != "" && detail != "{}" {
			_ = json.Unmarshal([]byte(detail), &e.Detail)
		}
		newestFirst = append(newestFirst, e)
	}
	if err := rows.Err(); err != nil {
		return vigilerr.Wrapf(err, vigilerr.CodeStoreDatabaseFailure, "iterating event rows")
	}

	// Ring holds oldest first.
	for i := len(newestFirst) - 1; i >= 0; i-- {
		s.ring = append(s.ring, newestFirst[i])
	}
	return nil
}

// Append records the event. The ring always gets it; a database write
// failure is logged and otherwise ignored so slow or broken storage never
// stalls the monitor.
func (s *EventStore) Append(ctx context.Context, e Event) {
	s.mu.Lock()
	s.ring = append(s.ring, e)
	if len(s.ring) > ringCap {
		s.ring = s.ring[len(s.ring)-ringCap:]
	}
	db := s.db
	s.mu.Unlock()

	slog.Info("event", "kind", e.Kind, "source", e.Source, "message", e.Message)

	if db == nil {
		return
	}

	detail := "{}"
	if e.Detail != nil {
		if raw, err := json.Marshal(e.Detail); err == nil {
			detail = string(raw)
		}
	}
	_, err := db.ExecContext(ctx,
		`INSERT INTO events (id, timestamp, kind, source, message, detail) VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.Timestamp.Format(time.RFC3339Nano), string(e.Kind), e.Source, e.Message, detail)
	if err != nil {
		slog.Error("event persist failed", "kind", e.Kind, "error", err)
	}
}

// Recent returns ring events at or after since, oldest first.
func (s *EventStore) Recent(since time.Time) []Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Event
	for _, e := range s.ring {
		if !e.Timestamp.Before(since) {
			out = append(out, e)
		}
	}
	return out
}

// RecentByKind returns ring events of the given kind at or after since,
// optionally filtered by source ("" matches all).
func (s *EventStore) RecentByKind(kind Kind, source string, since time.Time) []Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Event
	for _, e := range s.ring {
		if e.Kind != kind || e.Timestamp.Before(since) {
			continue
		}
		if source != "" && e.Source != source {
			continue
		}
		out = append(out, e)
	}
	return out
}

// Close releases the database handle.
func (s *EventStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return vigilerr.Wrapf(err, vigilerr.CodeStoreDatabaseFailure, "closing event db")
}
