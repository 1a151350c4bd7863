package relay

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"wanderlab.app/internal/sim/session"
)

type captureTransport struct {
	mu     sync.Mutex
	bodies [][]byte
	err    error
}

func (c *captureTransport) Post(ctx context.Context, body []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	cp := make([]byte, len(body))
	copy(cp, body)
	c.bodies = append(c.bodies, cp)
	return nil
}

func (c *captureTransport) sent() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.bodies...)
}

func discard() *log.Logger { return log.New(io.Discard, "", 0) }

func TestRelay_DeliversInOrderAndCounts(t *testing.T) {
	ct := &captureTransport{}
	r := New(ct, 8, discard())

	r.Enqueue(Message{SessionUUID: "s1", Event: "first"})
	r.Enqueue(Message{SessionUUID: "s1", Event: "second"})
	r.Close()

	bodies := ct.sent()
	if len(bodies) != 2 {
		t.Fatalf("sent %d messages, want 2", len(bodies))
	}
	var m Message
	if err := json.Unmarshal(bodies[0], &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if m.Event != "first" {
		t.Fatalf("first body = %+v", m)
	}

	st := r.Stats()
	if st.EnqueuedTotal != 2 || st.SentTotal != 2 || st.DroppedTotal != 0 || st.FailedTotal != 0 {
		t.Fatalf("stats = %+v", st)
	}
}

func TestRelay_FailuresAreCountedNotRetried(t *testing.T) {
	ct := &captureTransport{err: errors.New("endpoint down")}
	r := New(ct, 8, discard())

	r.Enqueue(Message{SessionUUID: "s1"})
	r.Close()

	st := r.Stats()
	if st.FailedTotal != 1 || st.SentTotal != 0 {
		t.Fatalf("stats = %+v", st)
	}
	if st.LastErrorUnix == 0 {
		t.Fatalf("last error timestamp not recorded")
	}
	if n := len(ct.sent()); n != 0 {
		t.Fatalf("transport saw %d bodies after failure, want 0 retries", n)
	}
}

func TestRelay_SaturatedQueueDropsInsteadOfBlocking(t *testing.T) {
	release := make(chan struct{})
	slow := transportFunc(func(ctx context.Context, body []byte) error {
		<-release
		return nil
	})
	r := New(slow, 2, discard())

	// One in flight, two queued, the rest must drop without blocking.
	for i := 0; i < 10; i++ {
		r.Enqueue(Message{SessionUUID: "s1"})
	}
	st := r.Stats()
	if st.DroppedTotal == 0 {
		t.Fatalf("expected drops on a saturated queue: %+v", st)
	}
	if st.EnqueuedTotal != 10 {
		t.Fatalf("stats = %+v", st)
	}
	close(release)
	r.Close()
}

type transportFunc func(ctx context.Context, body []byte) error

func (f transportFunc) Post(ctx context.Context, body []byte) error { return f(ctx, body) }

func TestHTTPTransport_PostsJSONAndRejectsErrorStatus(t *testing.T) {
	var gotBody []byte
	var gotType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		gotBody, _ = io.ReadAll(req.Body)
		gotType = req.Header.Get("Content-Type")
	}))
	defer srv.Close()

	tr := NewHTTPTransport(srv.URL)
	if err := tr.Post(context.Background(), []byte(`{"playerId":"p1"}`)); err != nil {
		t.Fatalf("post: %v", err)
	}
	if gotType != "application/json" || string(gotBody) != `{"playerId":"p1"}` {
		t.Fatalf("request: type=%q body=%q", gotType, gotBody)
	}

	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer bad.Close()
	if err := NewHTTPTransport(bad.URL).Post(context.Background(), []byte(`{}`)); err == nil {
		t.Fatalf("expected error on 502")
	}
}

type captureSink struct {
	msgs []Message
}

func (c *captureSink) Enqueue(m Message) { c.msgs = append(c.msgs, m) }

func TestCollector_EventMessageShape(t *testing.T) {
	sink := &captureSink{}
	c := NewCollector(sink)

	started := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	at := started.Add(95 * time.Second)
	c.EventLogged(session.LogEntry{
		SessionID:       "uuid-1",
		PlayerID:        "p1",
		StartedAt:       started,
		Room:            "Kitchen",
		Task:            "Leaking tap",
		Choice:          "Fix it",
		Result:          "Fixed",
		SimMinutes:      12,
		DecisionSeconds: 4.5,
		At:              at,
	})

	if len(sink.msgs) != 1 {
		t.Fatalf("messages = %d", len(sink.msgs))
	}
	m := sink.msgs[0]
	if m.Type != "" {
		t.Fatalf("event rows carry no type, got %q", m.Type)
	}
	if m.PlayerID != "p1" || m.SessionUUID != "uuid-1" || m.Location != "Kitchen" ||
		m.Event != "Leaking tap" || m.Choice != "Fix it" || m.Result != "Fixed" {
		t.Fatalf("message = %+v", m)
	}
	if m.StartTime != "2026/03/14 09:30:00" || m.Timestamp != "2026/03/14 09:31:35" {
		t.Fatalf("timestamps = %q / %q", m.StartTime, m.Timestamp)
	}
	if m.ElapsedTime != 12 || m.DecisionTime != 4.5 {
		t.Fatalf("times = %+v", m)
	}
}

func TestCollector_SessionEndEmitsTrajectoryThenImage(t *testing.T) {
	sink := &captureSink{}
	c := NewCollector(sink)

	c.SessionEnded(session.EndOfSession{
		SessionID: "uuid-1",
		PlayerID:  "p1",
		StartedAt: time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
		Outcome:   "finished",
		Minutes:   42,
		Trace: []session.TracePoint{
			{X: 1, Y: 2, SimMinutes: 0, RealMs: 100},
			{X: 3, Y: 4, SimMinutes: 7, RealMs: 200},
		},
		SnapshotImage: "data:image/jpeg;base64,AAAA",
	})

	if len(sink.msgs) != 2 {
		t.Fatalf("messages = %d, want trajectory + image", len(sink.msgs))
	}
	traj := sink.msgs[0]
	if traj.Type != "trajectory" || len(traj.History) != 2 {
		t.Fatalf("trajectory = %+v", traj)
	}
	if p := traj.History[1]; p.X != 3 || p.Y != 4 || p.Time != 7 || p.RealTime != 200 {
		t.Fatalf("history point = %+v", p)
	}
	img := sink.msgs[1]
	if img.Type != "image" || img.Image != "data:image/jpeg;base64,AAAA" {
		t.Fatalf("image = %+v", img)
	}

	// No snapshot, no image message.
	sink.msgs = nil
	c.SessionEnded(session.EndOfSession{SessionID: "uuid-2", Trace: nil})
	if len(sink.msgs) != 1 || sink.msgs[0].Type != "trajectory" {
		t.Fatalf("messages without snapshot = %+v", sink.msgs)
	}
}
