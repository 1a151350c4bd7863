package relay

import (
	"time"

	"wanderlab.app/internal/sim/session"
)

// Sink is what sessions need from a relay; *Relay satisfies it, and tests
// use a capturing stub.
type Sink interface {
	Enqueue(m Message)
}

// Collector adapts session records to collector messages. It implements
// session.Collector.
type Collector struct {
	sink Sink
}

func NewCollector(sink Sink) *Collector {
	return &Collector{sink: sink}
}

func (c *Collector) EventLogged(e session.LogEntry) {
	c.sink.Enqueue(Message{
		PlayerID:     e.PlayerID,
		SessionUUID:  e.SessionID,
		StartTime:    stamp(e.StartedAt),
		Timestamp:    stamp(e.At),
		ElapsedTime:  e.SimMinutes,
		DecisionTime: e.DecisionSeconds,
		Location:     e.Room,
		Event:        e.Task,
		Choice:       e.Choice,
		Result:       e.Result,
	})
}

func (c *Collector) SessionEnded(end session.EndOfSession) {
	history := make([]Point, 0, len(end.Trace))
	for _, p := range end.Trace {
		history = append(history, Point{X: p.X, Y: p.Y, Time: p.SimMinutes, RealTime: p.RealMs})
	}
	c.sink.Enqueue(Message{
		Type:        "trajectory",
		PlayerID:    end.PlayerID,
		SessionUUID: end.SessionID,
		StartTime:   stamp(end.StartedAt),
		History:     history,
	})
	if end.SnapshotImage != "" {
		c.sink.Enqueue(Message{
			Type:        "image",
			PlayerID:    end.PlayerID,
			SessionUUID: end.SessionID,
			StartTime:   stamp(end.StartedAt),
			Image:       end.SnapshotImage,
		})
	}
}

func stamp(t time.Time) string {
	return t.Format("2006/01/02 15:04:05")
}
