// Package logdb is the sqlite read model behind the admin surface:
// sessions, their log entries, and their movement traces. Writes go
// through a single goroutine fed by a bounded channel so the session
// loops never block on the database.
package logdb

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"wanderlab.app/internal/sim/session"
)

type Store struct {
	db *sql.DB

	ch     chan req
	wg     sync.WaitGroup
	closed atomic.Bool

	droppedTotal atomic.Uint64
}

type reqKind int

const (
	reqStart reqKind = iota + 1
	reqEnd
	reqEvent
	reqTrace
	reqFlush
)

type req struct {
	kind reqKind

	sessionID string
	playerID  string
	startedAt time.Time
	endedAt   time.Time
	outcome   string
	minutes   int

	event session.LogEntry
	trace session.TracePoint
	done  chan struct{}
}

func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &Store{
		db: db,
		ch: make(chan req, 16384),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	// WAL suits the append-style workload; NORMAL is enough durability for
	// a secondary copy of the JSONL logs.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			player_id TEXT NOT NULL,
			started_at TEXT NOT NULL,
			ended_at TEXT,
			outcome TEXT,
			minutes INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE TABLE IF NOT EXISTS events (
			session_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			tick INTEGER NOT NULL,
			room TEXT NOT NULL,
			task TEXT NOT NULL,
			choice TEXT NOT NULL,
			result TEXT NOT NULL,
			sim_minutes INTEGER NOT NULL,
			decision_seconds REAL NOT NULL,
			at TEXT NOT NULL,
			PRIMARY KEY (session_id, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_events_session ON events(session_id);`,
		`CREATE TABLE IF NOT EXISTS trace (
			session_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			tick INTEGER NOT NULL,
			x REAL NOT NULL,
			y REAL NOT NULL,
			sim_minutes INTEGER NOT NULL,
			real_ms INTEGER NOT NULL,
			PRIMARY KEY (session_id, seq)
		);`,
	}
	for _, q := range stmts {
		if _, err := db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	close(s.ch)
	s.wg.Wait()
	return s.db.Close()
}

func (s *Store) enqueue(r req) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- r:
	default:
		s.droppedTotal.Add(1)
	}
}

func (s *Store) StartSession(sessionID, playerID string, startedAt time.Time) {
	s.enqueue(req{kind: reqStart, sessionID: sessionID, playerID: playerID, startedAt: startedAt})
}

func (s *Store) EndSession(sessionID, outcome string, minutes int, endedAt time.Time) {
	s.enqueue(req{kind: reqEnd, sessionID: sessionID, outcome: outcome, minutes: minutes, endedAt: endedAt})
}

// WriteEvent implements session.EventLogger.
func (s *Store) WriteEvent(e session.LogEntry) error {
	s.enqueue(req{kind: reqEvent, event: e})
	return nil
}

// WriteTrace implements session.TraceLogger.
func (s *Store) WriteTrace(sessionID string, p session.TracePoint) {
	s.enqueue(req{kind: reqTrace, sessionID: sessionID, trace: p})
}

func (s *Store) loop() {
	eventSeq := map[string]int{}
	traceSeq := map[string]int{}
	for r := range s.ch {
		switch r.kind {
		case reqStart:
			_, _ = s.db.Exec(
				`INSERT OR IGNORE INTO sessions (id, player_id, started_at) VALUES (?, ?, ?)`,
				r.sessionID, r.playerID, r.startedAt.UTC().Format(time.RFC3339))
		case reqEnd:
			_, _ = s.db.Exec(
				`UPDATE sessions SET ended_at = ?, outcome = ?, minutes = ? WHERE id = ?`,
				r.endedAt.UTC().Format(time.RFC3339), r.outcome, r.minutes, r.sessionID)
		case reqEvent:
			eventSeq[r.event.SessionID]++
			_, _ = s.db.Exec(
				`INSERT OR IGNORE INTO events
				 (session_id, seq, tick, room, task, choice, result, sim_minutes, decision_seconds, at)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				r.event.SessionID, eventSeq[r.event.SessionID], r.event.Tick, r.event.Room, r.event.Task,
				r.event.Choice, r.event.Result, r.event.SimMinutes, r.event.DecisionSeconds,
				r.event.At.UTC().Format(time.RFC3339Nano))
		case reqTrace:
			traceSeq[r.sessionID]++
			_, _ = s.db.Exec(
				`INSERT OR IGNORE INTO trace (session_id, seq, tick, x, y, sim_minutes, real_ms)
				 VALUES (?, ?, ?, ?, ?, ?, ?)`,
				r.sessionID, traceSeq[r.sessionID], r.trace.Tick, r.trace.X, r.trace.Y,
				r.trace.SimMinutes, r.trace.RealMs)
		case reqFlush:
			close(r.done)
		}
	}
}

// Dropped reports writes discarded because the queue was saturated.
func (s *Store) Dropped() uint64 { return s.droppedTotal.Load() }
