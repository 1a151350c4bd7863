// Package sessiontest is a black-box harness for driving a session through
// its exported API: actions go in via StepOnce, STATE frames come back on
// the out channel, and collector/log traffic is captured for assertions. It
// intentionally avoids touching session internals beyond the Debug helpers
// so tests can live outside the session package.
package sessiontest

import (
	"encoding/json"
	"io"
	"log"
	"testing"

	"wanderlab.app/internal/protocol"
	"wanderlab.app/internal/scenario"
	"wanderlab.app/internal/sim/mask"
	"wanderlab.app/internal/sim/session"
)

type Harness struct {
	T *testing.T
	S *session.Session

	Out chan []byte

	// Captured collector and logger traffic, in emit order.
	Events  []session.LogEntry
	Ends    []session.EndOfSession
	Written []session.LogEntry

	lastState protocol.StateMsg
}

// Config mirrors the session knobs tests care about; zero values get
// harness defaults tuned for fast, deterministic runs.
type Config struct {
	TimeLimitMinutes   int
	MoveTicksPerMinute int
	TraceMaxPoints     int
	SpawnX, SpawnY     float64
	Mask               *mask.Mask
}

func NewHarness(t *testing.T, scn *scenario.Scenario, cfg Config) *Harness {
	t.Helper()

	if cfg.TimeLimitMinutes == 0 {
		cfg.TimeLimitMinutes = 180
	}
	if cfg.MoveTicksPerMinute == 0 {
		cfg.MoveTicksPerMinute = 2
	}
	if cfg.TraceMaxPoints == 0 {
		cfg.TraceMaxPoints = 1000
	}
	if cfg.SpawnX == 0 && cfg.SpawnY == 0 {
		cfg.SpawnX, cfg.SpawnY = 500, 500
	}
	m := cfg.Mask
	if m == nil {
		m = mask.Open(1000, 1000)
	}

	out := make(chan []byte, 16)
	s := session.New(session.Config{
		ID:                    "test-session",
		PlayerID:              "tester",
		TickRateHz:            20,
		MoveSpeed:             120,
		PlayerRadius:          6,
		SpawnX:                cfg.SpawnX,
		SpawnY:                cfg.SpawnY,
		MoveTicksPerMinute:    cfg.MoveTicksPerMinute,
		TimeLimitMinutes:      cfg.TimeLimitMinutes,
		TraceSampleEveryTicks: 1,
		TraceMaxPoints:        cfg.TraceMaxPoints,
	}, scn, m, out, log.New(io.Discard, "", 0))

	h := &Harness{T: t, S: s, Out: out}
	s.SetCollector(h)
	s.SetEventLogger(h)
	return h
}

// EventLogged implements session.Collector.
func (h *Harness) EventLogged(e session.LogEntry) { h.Events = append(h.Events, e) }

// SessionEnded implements session.Collector.
func (h *Harness) SessionEnded(end session.EndOfSession) { h.Ends = append(h.Ends, end) }

// WriteEvent implements session.EventLogger.
func (h *Harness) WriteEvent(e session.LogEntry) error {
	h.Written = append(h.Written, e)
	return nil
}

// Step advances one tick with the given actions at the boundary and returns
// the resulting STATE frame.
func (h *Harness) Step(acts ...protocol.ActMsg) protocol.StateMsg {
	h.T.Helper()
	h.S.StepOnce(acts)
	h.drain()
	return h.lastState
}

// StepN runs n empty ticks.
func (h *Harness) StepN(n int) protocol.StateMsg {
	h.T.Helper()
	for i := 0; i < n; i++ {
		h.Step()
	}
	return h.lastState
}

// Teleport places the player and runs one tick so trigger evaluation sees
// the new position.
func (h *Harness) Teleport(x, y float64) protocol.StateMsg {
	h.T.Helper()
	h.S.DebugSetPos(x, y)
	return h.Step()
}

func (h *Harness) Choose(index int) protocol.StateMsg {
	h.T.Helper()
	return h.Step(act(protocol.ActMsg{Choose: &protocol.ChooseAction{Index: index}}))
}

func (h *Harness) Hold() protocol.StateMsg {
	h.T.Helper()
	return h.Step(act(protocol.ActMsg{Hold: true}))
}

func (h *Harness) Confirm() protocol.StateMsg {
	h.T.Helper()
	return h.Step(act(protocol.ActMsg{Confirm: true}))
}

func (h *Harness) Move(x, y float64) protocol.StateMsg {
	h.T.Helper()
	return h.Step(act(protocol.ActMsg{Move: &protocol.MoveIntent{X: x, Y: y}}))
}

func (h *Harness) LastState() protocol.StateMsg { return h.lastState }

func (h *Harness) Room(name string) session.RoomDebug {
	h.T.Helper()
	r, ok := h.S.DebugRoom(name)
	if !ok {
		h.T.Fatalf("unknown room %q", name)
	}
	return r
}

func (h *Harness) drain() {
	for {
		select {
		case b := <-h.Out:
			var st protocol.StateMsg
			if err := json.Unmarshal(b, &st); err != nil {
				h.T.Fatalf("bad state frame: %v", err)
			}
			h.lastState = st
		default:
			return
		}
	}
}

func act(a protocol.ActMsg) protocol.ActMsg {
	a.Type = protocol.TypeAct
	a.ProtocolVersion = protocol.Version
	return a
}

// Scenario builders.

// FourChoices pads a task to the full choice set so the reserved defer slot
// (index 3) exists.
func FourChoices(minutes int) []scenario.Choice {
	return []scenario.Choice{
		{Text: "Do it thoroughly", Result: "Done properly.", Minutes: minutes},
		{Text: "Do it quickly", Result: "Patched up.", Minutes: 1},
		{Text: "Ask for help", Result: "Help is on the way.", Minutes: 2},
		{Text: "Deal with it later", Result: "Left for later.", Minutes: 0},
	}
}

func Task(name string, order int, choices []scenario.Choice) scenario.Task {
	return scenario.Task{ID: name, Name: name, Description: name + " description", Order: order, Choices: choices}
}

func Room(name string, x, y, radius float64, tasks ...scenario.Task) scenario.Room {
	return scenario.Room{Name: name, X: x, Y: y, Radius: radius, Tasks: tasks}
}

func Scenario(rooms ...scenario.Room) *scenario.Scenario {
	return &scenario.Scenario{Rooms: rooms, Digest: "test"}
}
