package session

import (
	"wanderlab.app/internal/scenario"
)

// roomState is the per-session mutable view of a scenario room. Scenario
// data is shared between sessions and never mutated; everything that moves
// during play lives here.
type roomState struct {
	Name   string
	X      float64
	Y      float64
	Radius float64

	Tasks []*taskState

	// Discovered flips on the first tick the player enters the radius and
	// never resets.
	Discovered bool

	// IgnoreUntilExit is set when the player holds the room's event. It
	// clears only on a tick that sees the player outside the radius, so a
	// held room stays silent for the remainder of the visit.
	IgnoreUntilExit bool

	// CurrentTaskIndex is where the next task scan starts. Confirming a
	// popup advances it past the shown task; it may point one past the end
	// until the next scan normalizes it.
	CurrentTaskIndex int
}

type taskState struct {
	ID          string
	Name        string
	Description string
	Choices     []scenario.Choice
	Completed   bool
}

func newRooms(scn *scenario.Scenario) []*roomState {
	rooms := make([]*roomState, 0, len(scn.Rooms))
	for _, r := range scn.Rooms {
		rs := &roomState{Name: r.Name, X: r.X, Y: r.Y, Radius: r.Radius}
		for _, t := range r.Tasks {
			rs.Tasks = append(rs.Tasks, &taskState{
				ID:          t.ID,
				Name:        t.Name,
				Description: t.Description,
				Choices:     t.Choices,
			})
		}
		rooms = append(rooms, rs)
	}
	return rooms
}

func (r *roomState) pendingCount() int {
	n := 0
	for _, t := range r.Tasks {
		if !t.Completed {
			n++
		}
	}
	return n
}

// selectNext finds the room's next pending task with a circular scan
// starting at CurrentTaskIndex, snapping the pointer to the task it finds.
// A fully resolved room yields nil. The contradiction return covers the
// case where pendingCount said there was work but the scan found none;
// with all mutation on the session goroutine it cannot happen, so callers
// log it and carry on rather than guessing a recovery.
func (r *roomState) selectNext() (t *taskState, contradiction bool) {
	if len(r.Tasks) == 0 || r.pendingCount() == 0 {
		return nil, false
	}
	if r.CurrentTaskIndex < 0 || r.CurrentTaskIndex >= len(r.Tasks) {
		r.CurrentTaskIndex = 0
	}
	for i := 0; i < len(r.Tasks); i++ {
		idx := (r.CurrentTaskIndex + i) % len(r.Tasks)
		if !r.Tasks[idx].Completed {
			r.CurrentTaskIndex = idx
			return r.Tasks[idx], false
		}
	}
	return nil, true
}
