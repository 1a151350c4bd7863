package session

import (
	"encoding/json"

	"wanderlab.app/internal/protocol"
)

func (s *Session) sendState(now uint64) {
	if s.out == nil {
		return
	}
	b, err := json.Marshal(s.buildState(now))
	if err != nil {
		return
	}
	sendLatest(s.out, b)
}

func (s *Session) buildState(now uint64) protocol.StateMsg {
	msg := protocol.StateMsg{
		Type:            protocol.TypeState,
		ProtocolVersion: protocol.Version,
		Tick:            now,
		X:               s.x,
		Y:               s.y,
		Minutes:         s.clk.minutes,
		Finished:        s.finished,
		Popup:           protocol.PopupView{Phase: s.pop.phase.String()},
	}
	for _, r := range s.rooms {
		if r.Discovered {
			msg.Discovered = append(msg.Discovered, r.Name)
		}
	}
	switch s.pop.phase {
	case phaseOpen:
		msg.Popup.Room = s.pop.room.Name
		msg.Popup.Task = s.pop.task.Name
		msg.Popup.Description = s.pop.task.Description
		for i, c := range s.pop.task.Choices {
			msg.Popup.Choices = append(msg.Popup.Choices, protocol.ChoiceView{Index: i, Text: c.Text})
		}
	case phaseResolved:
		msg.Popup.Room = s.pop.room.Name
		msg.Popup.Task = s.pop.task.Name
		msg.Popup.Result = s.pop.result
	}
	return msg
}

// sendLatest delivers without blocking the loop: a slow client loses the
// oldest frame, not the newest.
func sendLatest(ch chan []byte, b []byte) {
	select {
	case ch <- b:
		return
	default:
	}
	// Drop one.
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- b:
	default:
	}
}

// The accessors below are for tests, replays, and the admin surface. They
// read loop-owned state and must only be used from the loop goroutine, via
// StepOnce-driven code, or after Run has returned.

func (s *Session) Finished() bool      { return s.finished }
func (s *Session) Outcome() string     { return s.outcome }
func (s *Session) Minutes() int        { return s.clk.minutes }
func (s *Session) Pos() (x, y float64) { return s.x, s.y }
func (s *Session) TraceLen() int       { return len(s.trace) }
func (s *Session) PopupPhase() string  { return s.pop.phase.String() }

// RoomDebug exposes a room's mutable state for tests and the replay tool.
type RoomDebug struct {
	Name             string
	Discovered       bool
	IgnoreUntilExit  bool
	CurrentTaskIndex int
	TaskCount        int
	PendingCount     int
}

func (s *Session) DebugRoom(name string) (RoomDebug, bool) {
	for _, r := range s.rooms {
		if r.Name == name {
			return RoomDebug{
				Name:             r.Name,
				Discovered:       r.Discovered,
				IgnoreUntilExit:  r.IgnoreUntilExit,
				CurrentTaskIndex: r.CurrentTaskIndex,
				TaskCount:        len(r.Tasks),
				PendingCount:     r.pendingCount(),
			}, true
		}
	}
	return RoomDebug{}, false
}

// DebugSetPos teleports the player; harness-only.
func (s *Session) DebugSetPos(x, y float64) {
	s.x, s.y = x, y
}
