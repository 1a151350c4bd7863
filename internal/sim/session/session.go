// Package session runs one player's exploration session as a
// single-threaded authoritative simulation. All state is owned by the
// session loop goroutine: the transport feeds actions through Inbox, the
// loop applies them at tick boundaries, and per-tick STATE frames go out
// on the client channel. Nothing here is fatal to the loop; a bad action
// or a failed write is logged and the next tick proceeds.
package session

import (
	"context"
	"log"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"wanderlab.app/internal/protocol"
	"wanderlab.app/internal/scenario"
	"wanderlab.app/internal/sim/mask"
)

type Config struct {
	ID       string // session UUID
	PlayerID string

	TickRateHz   int
	MoveSpeed    float64
	PlayerRadius float64
	SpawnX       float64
	SpawnY       float64

	MoveTicksPerMinute int
	TimeLimitMinutes   int

	TraceSampleEveryTicks int
	TraceMaxPoints        int

	StartedAt time.Time
}

// deferChoiceIndex is the reserved in-task defer slot: resolving it costs
// its listed time but leaves the task pending.
const deferChoiceIndex = 3

type popupPhase int

const (
	phaseIdle popupPhase = iota
	phaseOpen
	phaseResolved
)

func (p popupPhase) String() string {
	switch p {
	case phaseOpen:
		return "open"
	case phaseResolved:
		return "resolved"
	default:
		return "idle"
	}
}

type popup struct {
	phase    popupPhase
	room     *roomState
	task     *taskState
	openedAt time.Time
	result   string
}

type Session struct {
	cfg    Config
	mask   *mask.Mask
	logger *log.Logger

	tick atomic.Uint64

	x, y             float64
	intentX, intentY float64

	rooms    []*roomState
	pop      popup
	clk      clock
	finished bool
	outcome  string
	endFired bool

	trace         []TracePoint
	snapshotImage string

	eventLogger EventLogger
	traceLogger TraceLogger
	collector   Collector

	inbox    chan protocol.ActMsg
	out      chan []byte
	stop     chan struct{}
	stopOnce sync.Once
}

func New(cfg Config, scn *scenario.Scenario, m *mask.Mask, out chan []byte, logger *log.Logger) *Session {
	if cfg.StartedAt.IsZero() {
		cfg.StartedAt = time.Now()
	}
	s := &Session{
		cfg:    cfg,
		mask:   m,
		logger: logger,
		x:      cfg.SpawnX,
		y:      cfg.SpawnY,
		rooms:  newRooms(scn),
		clk: clock{
			limit:          cfg.TimeLimitMinutes,
			ticksPerMinute: cfg.MoveTicksPerMinute,
		},
		inbox: make(chan protocol.ActMsg, 64),
		out:   out,
		stop:  make(chan struct{}),
	}
	return s
}

func (s *Session) SetEventLogger(l EventLogger) { s.eventLogger = l }
func (s *Session) SetTraceLogger(l TraceLogger) { s.traceLogger = l }
func (s *Session) SetCollector(c Collector)     { s.collector = c }

func (s *Session) Inbox() chan<- protocol.ActMsg { return s.inbox }

func (s *Session) ID() string          { return s.cfg.ID }
func (s *Session) PlayerID() string    { return s.cfg.PlayerID }
func (s *Session) CurrentTick() uint64 { return s.tick.Load() }

// Stop asks the loop to wind down. Safe to call more than once and from
// any goroutine.
func (s *Session) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
}

// Run drives the session at the configured tick rate until the context is
// canceled or Stop is called. A session that never reached the finished
// state is ended as abandoned, with a best-effort trajectory flush.
func (s *Session) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(s.cfg.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var pending []protocol.ActMsg

	for {
		select {
		case <-ctx.Done():
			s.endSession(OutcomeAbandoned)
			return ctx.Err()
		case <-s.stop:
			s.endSession(OutcomeAbandoned)
			return nil
		case act := <-s.inbox:
			pending = append(pending, act)
		case <-ticker.C:
			s.step(pending)
			pending = pending[:0]
		}
	}
}

// StepOnce advances the session by one tick with the given actions applied
// at the boundary, using the same ordering as the live loop. For tests and
// replays.
func (s *Session) StepOnce(acts []protocol.ActMsg) uint64 {
	t := s.tick.Load()
	s.step(acts)
	return t
}

// step is one frame: actions first, then (only while no popup is open)
// movement, clock accrual, trace sampling, and trigger evaluation, then
// the outgoing state frame.
func (s *Session) step(acts []protocol.ActMsg) {
	now := s.tick.Load()

	for _, act := range acts {
		s.applyAct(act, now)
	}

	if !s.finished && s.pop.phase == phaseIdle {
		if s.systemMovement() {
			s.clk.tickMove()
			if s.clk.hasReachedLimit() {
				s.finishRun()
			}
		}
		if !s.finished {
			s.sampleTrace(now)
			s.systemTriggers(now)
		}
	}

	s.sendState(now)
	s.tick.Add(1)
}

func (s *Session) applyAct(act protocol.ActMsg, now uint64) {
	if s.finished {
		return
	}
	if act.Snapshot != nil && act.Snapshot.Image != "" {
		s.snapshotImage = act.Snapshot.Image
	}
	if act.Move != nil && s.pop.phase == phaseIdle {
		s.intentX, s.intentY = act.Move.X, act.Move.Y
	}
	switch {
	case act.Choose != nil:
		s.applyChoose(act.Choose.Index, now)
	case act.Hold:
		s.applyHold(now)
	case act.Confirm:
		s.applyConfirm(now)
	}
}

// applyChoose resolves the open popup's task with the selected choice:
// status update, time cost, log entry, then the resolved (outcome display)
// phase awaiting confirmation.
func (s *Session) applyChoose(index int, now uint64) {
	if s.pop.phase != phaseOpen {
		return
	}
	task := s.pop.task
	if index < 0 || index >= len(task.Choices) {
		s.logger.Printf("session %s: choice index %d out of range for task %s", s.cfg.ID, index, task.ID)
		return
	}
	choice := task.Choices[index]
	if index != deferChoiceIndex {
		task.Completed = true
	}
	s.clk.add(choice.Minutes)

	s.record(LogEntry{
		SessionID:       s.cfg.ID,
		PlayerID:        s.cfg.PlayerID,
		StartedAt:       s.cfg.StartedAt,
		Tick:            now,
		Room:            s.pop.room.Name,
		Task:            task.Name,
		Choice:          choice.Text,
		Result:          choice.Result,
		SimMinutes:      s.clk.minutes,
		DecisionSeconds: time.Since(s.pop.openedAt).Seconds(),
		At:              time.Now(),
	})

	s.pop.phase = phaseResolved
	s.pop.result = choice.Result
}

// applyHold silences the room until the player leaves its radius. The task
// keeps its status and the cycle pointer does not move.
func (s *Session) applyHold(now uint64) {
	if s.pop.phase != phaseOpen {
		return
	}
	room := s.pop.room
	room.IgnoreUntilExit = true

	s.record(LogEntry{
		SessionID:       s.cfg.ID,
		PlayerID:        s.cfg.PlayerID,
		StartedAt:       s.cfg.StartedAt,
		Tick:            now,
		Room:            room.Name,
		Task:            s.pop.task.Name,
		Choice:          HoldChoice,
		SimMinutes:      s.clk.minutes,
		DecisionSeconds: time.Since(s.pop.openedAt).Seconds(),
		At:              time.Now(),
	})

	s.pop = popup{}
}

// applyConfirm closes the outcome display. The pointer advances past the
// shown task regardless of its status, so a task re-deferred via the
// reserved choice is skipped this pass and only comes around again on the
// next circular scan. This is also where the clock limit ends the session.
func (s *Session) applyConfirm(now uint64) {
	if s.pop.phase != phaseResolved {
		return
	}
	s.pop.room.CurrentTaskIndex++
	s.pop = popup{}

	if s.clk.hasReachedLimit() {
		s.finishRun()
	}
}

// systemTriggers scans rooms in source order: outside the radius a held
// room becomes eligible again; inside, the first room that yields a task
// opens the popup and ends the scan. Source order is a real priority among
// overlapping radii.
func (s *Session) systemTriggers(now uint64) {
	for _, r := range s.rooms {
		if math.Hypot(s.x-r.X, s.y-r.Y) < r.Radius {
			r.Discovered = true
			if r.IgnoreUntilExit {
				continue
			}
			task, contradiction := r.selectNext()
			if contradiction {
				s.logger.Printf("session %s: task scan contradiction in room %q (pending=%d, index=%d)",
					s.cfg.ID, r.Name, r.pendingCount(), r.CurrentTaskIndex)
				continue
			}
			if task != nil {
				s.openPopup(r, task)
				return
			}
		} else {
			r.IgnoreUntilExit = false
		}
	}
}

func (s *Session) openPopup(r *roomState, t *taskState) {
	s.pop = popup{phase: phaseOpen, room: r, task: t, openedAt: time.Now()}
	// Movement input is frozen while the popup is up.
	s.intentX, s.intentY = 0, 0
}

func (s *Session) sampleTrace(now uint64) {
	every := s.cfg.TraceSampleEveryTicks
	if every <= 0 || now%uint64(every) != 0 {
		return
	}
	p := TracePoint{
		Tick:       now,
		X:          s.x,
		Y:          s.y,
		SimMinutes: s.clk.minutes,
		RealMs:     time.Now().UnixMilli(),
	}
	s.trace = append(s.trace, p)
	if s.traceLogger != nil {
		if err := s.traceLogger.WriteTrace(p); err != nil {
			s.logger.Printf("session %s: trace write: %v", s.cfg.ID, err)
		}
	}
}

func (s *Session) record(e LogEntry) {
	if s.eventLogger != nil {
		if err := s.eventLogger.WriteEvent(e); err != nil {
			s.logger.Printf("session %s: event write: %v", s.cfg.ID, err)
		}
	}
	if s.collector != nil {
		s.collector.EventLogged(e)
	}
}

// finishRun moves the session to its terminal state. Idempotent: the limit
// check may fire on a movement tick and again on a later confirm without
// ending the session twice.
func (s *Session) finishRun() {
	if s.finished {
		return
	}
	s.finished = true
	s.outcome = OutcomeFinished
	s.pop = popup{}
	s.intentX, s.intentY = 0, 0
	s.fireEnd()
}

// endSession is the loop-exit path: a session that already finished keeps
// its outcome, anything else ends as abandoned.
func (s *Session) endSession(outcome string) {
	if !s.finished {
		s.finished = true
		s.outcome = outcome
	}
	s.fireEnd()
}

func (s *Session) fireEnd() {
	if s.endFired {
		return
	}
	s.endFired = true
	if s.collector != nil {
		s.collector.SessionEnded(EndOfSession{
			SessionID:     s.cfg.ID,
			PlayerID:      s.cfg.PlayerID,
			StartedAt:     s.cfg.StartedAt,
			Outcome:       s.outcome,
			Minutes:       s.clk.minutes,
			Trace:         subsample(s.trace, s.cfg.TraceMaxPoints),
			SnapshotImage: s.snapshotImage,
		})
	}
}

// subsample thins a trace to at most max points with a fixed stride,
// keeping the final point.
func subsample(trace []TracePoint, max int) []TracePoint {
	if max <= 0 || len(trace) <= max {
		out := make([]TracePoint, len(trace))
		copy(out, trace)
		return out
	}
	stride := (len(trace) + max - 1) / max
	out := make([]TracePoint, 0, max)
	for i := 0; i < len(trace); i += stride {
		out = append(out, trace[i])
	}
	if last := trace[len(trace)-1]; len(out) == 0 || out[len(out)-1].Tick != last.Tick {
		out = append(out, last)
	}
	return out
}
