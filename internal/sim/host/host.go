// Package host owns the set of live sessions: it wires a new session to
// its loggers and the collector, runs its loop, and tears everything down
// when the loop returns.
package host

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	persistlog "wanderlab.app/internal/persistence/log"
	"wanderlab.app/internal/persistence/logdb"
	"wanderlab.app/internal/protocol"
	"wanderlab.app/internal/scenario"
	"wanderlab.app/internal/sim/mask"
	"wanderlab.app/internal/sim/session"
	"wanderlab.app/internal/sim/tuning"
)

type Config struct {
	DataDir  string
	Tuning   tuning.Tuning
	Scenario *scenario.Scenario
	Mask     *mask.Mask

	Store     *logdb.Store      // optional
	Collector session.Collector // optional
}

type Host struct {
	cfg    Config
	logger *log.Logger

	mu       sync.Mutex
	sessions map[string]*entry

	startedTotal   atomic.Uint64
	finishedTotal  atomic.Uint64
	abandonedTotal atomic.Uint64
}

type entry struct {
	sess   *session.Session
	cancel context.CancelFunc
}

func New(cfg Config, logger *log.Logger) *Host {
	return &Host{
		cfg:      cfg,
		logger:   logger,
		sessions: map[string]*entry{},
	}
}

// StartSession creates and launches a session for one connected player and
// returns the handshake messages the transport sends back.
func (h *Host) StartSession(ctx context.Context, playerID string, out chan []byte) (*session.Session, protocol.WelcomeMsg, protocol.CatalogMsg) {
	t := h.cfg.Tuning
	id := uuid.NewString()
	startedAt := time.Now()

	sess := session.New(session.Config{
		ID:                    id,
		PlayerID:              playerID,
		TickRateHz:            t.TickRateHz,
		MoveSpeed:             t.MoveSpeed,
		PlayerRadius:          t.PlayerRadius,
		SpawnX:                t.SpawnX,
		SpawnY:                t.SpawnY,
		MoveTicksPerMinute:    t.MoveTicksPerMinute,
		TimeLimitMinutes:      t.TimeLimitMinutes,
		TraceSampleEveryTicks: t.TraceSampleEveryTicks,
		TraceMaxPoints:        t.TraceMaxPoints,
		StartedAt:             startedAt,
	}, h.cfg.Scenario, h.cfg.Mask, out, h.logger)

	eventLog := persistlog.NewEventLogger(h.cfg.DataDir, id)
	traceLog := persistlog.NewTraceLogger(h.cfg.DataDir, id)
	sess.SetEventLogger(multiEventLogger{a: eventLog, b: h.cfg.Store})
	sess.SetTraceLogger(multiTraceLogger{a: traceLog, store: h.cfg.Store, sessionID: id})
	if h.cfg.Collector != nil {
		sess.SetCollector(h.cfg.Collector)
	}
	if h.cfg.Store != nil {
		h.cfg.Store.StartSession(id, playerID, startedAt)
	}

	runCtx, cancel := context.WithCancel(ctx)
	h.mu.Lock()
	h.sessions[id] = &entry{sess: sess, cancel: cancel}
	h.mu.Unlock()
	h.startedTotal.Add(1)

	go func() {
		defer cancel()
		if err := sess.Run(runCtx); err != nil && err != context.Canceled {
			h.logger.Printf("session %s stopped: %v", id, err)
		}
		if h.cfg.Store != nil {
			h.cfg.Store.EndSession(id, sess.Outcome(), sess.Minutes(), time.Now())
		}
		_ = eventLog.Close()
		_ = traceLog.Close()
		switch sess.Outcome() {
		case session.OutcomeFinished:
			h.finishedTotal.Add(1)
		default:
			h.abandonedTotal.Add(1)
		}
		h.mu.Lock()
		delete(h.sessions, id)
		h.mu.Unlock()
		h.logger.Printf("session %s ended outcome=%s minutes=%d", id, sess.Outcome(), sess.Minutes())
	}()

	mapW, mapH := h.cfg.Mask.Size()
	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       id,
		PlayerID:        playerID,
		WorldParams: protocol.WorldParams{
			TickRateHz:       t.TickRateHz,
			MapWidth:         mapW,
			MapHeight:        mapH,
			SpawnX:           t.SpawnX,
			SpawnY:           t.SpawnY,
			TimeLimitMinutes: t.TimeLimitMinutes,
		},
		ScenarioDigest: h.cfg.Scenario.Digest,
	}
	catalog := protocol.CatalogMsg{
		Type:            protocol.TypeCatalog,
		ProtocolVersion: protocol.Version,
		Digest:          h.cfg.Scenario.Digest,
	}
	for _, r := range h.cfg.Scenario.Rooms {
		catalog.Rooms = append(catalog.Rooms, protocol.CatalogRoom{
			Name: r.Name, X: r.X, Y: r.Y, Radius: r.Radius, TaskCount: len(r.Tasks),
		})
	}
	return sess, welcome, catalog
}

// StopSession winds a session down; used when the client connection drops.
func (h *Host) StopSession(id string) {
	h.mu.Lock()
	e := h.sessions[id]
	h.mu.Unlock()
	if e != nil {
		e.sess.Stop()
	}
}

// Shutdown stops every live session.
func (h *Host) Shutdown() {
	h.mu.Lock()
	entries := make([]*entry, 0, len(h.sessions))
	for _, e := range h.sessions {
		entries = append(entries, e)
	}
	h.mu.Unlock()
	for _, e := range entries {
		e.sess.Stop()
	}
}

type Metrics struct {
	Active         int
	StartedTotal   uint64
	FinishedTotal  uint64
	AbandonedTotal uint64
}

func (h *Host) Metrics() Metrics {
	h.mu.Lock()
	active := len(h.sessions)
	h.mu.Unlock()
	return Metrics{
		Active:         active,
		StartedTotal:   h.startedTotal.Load(),
		FinishedTotal:  h.finishedTotal.Load(),
		AbandonedTotal: h.abandonedTotal.Load(),
	}
}

// multiEventLogger fans an entry out to the JSONL file and the sqlite
// store; either may be nil.
type multiEventLogger struct {
	a session.EventLogger
	b *logdb.Store
}

func (m multiEventLogger) WriteEvent(e session.LogEntry) error {
	if m.a != nil {
		_ = m.a.WriteEvent(e)
	}
	if m.b != nil {
		_ = m.b.WriteEvent(e)
	}
	return nil
}

type multiTraceLogger struct {
	a         session.TraceLogger
	store     *logdb.Store
	sessionID string
}

func (m multiTraceLogger) WriteTrace(p session.TracePoint) error {
	if m.a != nil {
		_ = m.a.WriteTrace(p)
	}
	if m.store != nil {
		m.store.WriteTrace(m.sessionID, p)
	}
	return nil
}
