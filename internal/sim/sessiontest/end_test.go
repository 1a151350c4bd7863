package sessiontest

import (
	"context"
	"testing"

	"wanderlab.app/internal/protocol"
)

func TestEnd_SnapshotImageRidesOnSessionEnd(t *testing.T) {
	h := NewHarness(t, Scenario(), Config{TimeLimitMinutes: 1, MoveTicksPerMinute: 2})

	h.Step(act(protocol.ActMsg{Snapshot: &protocol.SnapshotPayload{Image: "data:image/jpeg;base64,AAAA"}}))
	h.Move(1, 0)
	h.Move(1, 0)

	if len(h.Ends) != 1 {
		t.Fatalf("ends = %+v", h.Ends)
	}
	if h.Ends[0].SnapshotImage != "data:image/jpeg;base64,AAAA" {
		t.Fatalf("snapshot image not carried to session end: %+v", h.Ends[0])
	}
	if len(h.Ends[0].Trace) == 0 {
		t.Fatalf("no trajectory on session end")
	}
}

func TestEnd_TrajectoryThinnedToCap(t *testing.T) {
	h := NewHarness(t, Scenario(), Config{TraceMaxPoints: 10})

	for i := 0; i < 100; i++ {
		h.Move(1, 0)
	}
	if h.S.TraceLen() < 50 {
		t.Fatalf("expected a long raw trace, got %d points", h.S.TraceLen())
	}

	// Ending the loop with a canceled context flushes the trajectory.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = h.S.Run(ctx)

	if len(h.Ends) != 1 {
		t.Fatalf("ends = %+v", h.Ends)
	}
	end := h.Ends[0]
	if len(end.Trace) > 11 {
		t.Fatalf("trajectory not thinned: %d points", len(end.Trace))
	}
	last := end.Trace[len(end.Trace)-1]
	x, _ := h.S.Pos()
	if last.X != x {
		t.Fatalf("thinned trajectory dropped the final position: %+v vs x=%v", last, x)
	}
}
