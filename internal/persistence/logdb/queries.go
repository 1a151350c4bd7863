package logdb

import (
	"database/sql"
	"time"
)

type SessionRow struct {
	ID        string `json:"id"`
	PlayerID  string `json:"player_id"`
	StartedAt string `json:"started_at"`
	EndedAt   string `json:"ended_at,omitempty"`
	Outcome   string `json:"outcome,omitempty"`
	Minutes   int    `json:"minutes"`
}

type EventRow struct {
	Seq             int     `json:"seq"`
	Tick            uint64  `json:"tick"`
	Room            string  `json:"room"`
	Task            string  `json:"task"`
	Choice          string  `json:"choice"`
	Result          string  `json:"result"`
	SimMinutes      int     `json:"sim_minutes"`
	DecisionSeconds float64 `json:"decision_seconds"`
	At              string  `json:"at"`
}

func (s *Store) ListSessions() ([]SessionRow, error) {
	rows, err := s.db.Query(
		`SELECT id, player_id, started_at, COALESCE(ended_at, ''), COALESCE(outcome, ''), minutes
		 FROM sessions ORDER BY started_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SessionRow
	for rows.Next() {
		var r SessionRow
		if err := rows.Scan(&r.ID, &r.PlayerID, &r.StartedAt, &r.EndedAt, &r.Outcome, &r.Minutes); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) EventsForSession(sessionID string) ([]EventRow, error) {
	rows, err := s.db.Query(
		`SELECT seq, tick, room, task, choice, result, sim_minutes, decision_seconds, at
		 FROM events WHERE session_id = ? ORDER BY seq`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EventRow
	for rows.Next() {
		var r EventRow
		if err := rows.Scan(&r.Seq, &r.Tick, &r.Room, &r.Task, &r.Choice, &r.Result, &r.SimMinutes, &r.DecisionSeconds, &r.At); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Flush waits until every write enqueued before the call has been applied,
// bounded by the timeout. The admin endpoints call it before reading so
// fresh sessions show up. A barrier through the writer goroutine, not a
// queue-length poll, so the in-flight write is covered too.
func (s *Store) Flush(timeout time.Duration) {
	if s == nil || s.closed.Load() {
		return
	}
	done := make(chan struct{})
	select {
	case s.ch <- req{kind: reqFlush, done: done}:
	default:
		return
	}
	select {
	case <-done:
	case <-time.After(timeout):
	}
}

// DB exposes the handle for the admin CLI's ad-hoc queries.
func (s *Store) DB() *sql.DB { return s.db }
