package session

import "time"

// LogEntry is one resolved or held interaction. Entries are immutable:
// they are written once and relayed immediately.
type LogEntry struct {
	SessionID       string    `json:"session_id"`
	PlayerID        string    `json:"player_id"`
	StartedAt       time.Time `json:"started_at"`
	Tick            uint64    `json:"tick"`
	Room            string    `json:"room"`
	Task            string    `json:"task"`
	Choice          string    `json:"choice"` // "deferred" for a room-level hold
	Result          string    `json:"result"`
	SimMinutes      int       `json:"sim_minutes"`
	DecisionSeconds float64   `json:"decision_seconds"`
	At              time.Time `json:"at"`
}

// HoldChoice is the choice text recorded when the player holds a room's
// event instead of resolving it.
const HoldChoice = "deferred"

// TracePoint is one sampled position on the movement trace.
type TracePoint struct {
	Tick       uint64  `json:"tick"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	SimMinutes int     `json:"sim_minutes"`
	RealMs     int64   `json:"real_ms"`
}

// EndOfSession is handed to the collector exactly once, when the session
// reaches its terminal state or the client goes away.
type EndOfSession struct {
	SessionID     string
	PlayerID      string
	StartedAt     time.Time
	Outcome       string // "finished" or "abandoned"
	Minutes       int
	Trace         []TracePoint
	SnapshotImage string // base64 JPEG from the client, may be empty
}

const (
	OutcomeFinished  = "finished"
	OutcomeAbandoned = "abandoned"
)

// EventLogger persists log entries locally. Implemented in
// internal/persistence/*.
type EventLogger interface {
	WriteEvent(e LogEntry) error
}

// TraceLogger persists trace points locally.
type TraceLogger interface {
	WriteTrace(p TracePoint) error
}

// Collector is the best-effort relay to the external spreadsheet
// collector. Calls must not block the session loop; delivery is not
// guaranteed and failures never surface to the player.
type Collector interface {
	EventLogged(e LogEntry)
	SessionEnded(end EndOfSession)
}
