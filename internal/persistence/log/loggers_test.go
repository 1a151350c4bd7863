package log

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zstd"

	"wanderlab.app/internal/sim/session"
)

func TestEventLogger_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	l := NewEventLogger(dir, "s1")

	entries := []session.LogEntry{
		{SessionID: "s1", Tick: 10, Room: "Kitchen", Task: "Tap", Choice: "Fix it", SimMinutes: 5},
		{SessionID: "s1", Tick: 22, Room: "Kitchen", Task: "Stove", Choice: "deferred", SimMinutes: 5},
	}
	for _, e := range entries {
		if err := l.WriteEvent(e); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	f, err := os.Open(EventLogPath(dir, "s1"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	zr, err := zstd.NewReader(f)
	if err != nil {
		t.Fatalf("zstd: %v", err)
	}
	defer zr.Close()

	var got []session.LogEntry
	sc := bufio.NewScanner(zr)
	for sc.Scan() {
		var e session.LogEntry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			t.Fatalf("line: %v", err)
		}
		got = append(got, e)
	}
	if err := sc.Err(); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(got) != len(entries) {
		t.Fatalf("read %d entries, want %d", len(got), len(entries))
	}
	for i := range entries {
		if got[i].Tick != entries[i].Tick || got[i].Task != entries[i].Task || got[i].Choice != entries[i].Choice {
			t.Fatalf("entry %d = %+v, want %+v", i, got[i], entries[i])
		}
	}
}

func TestLoggers_CloseWithoutWritesCreatesNoFile(t *testing.T) {
	dir := t.TempDir()
	l := NewTraceLogger(dir, "s1")
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := os.Stat(TraceLogPath(dir, "s1")); !os.IsNotExist(err) {
		t.Fatalf("file created without a write: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "trace")); !os.IsNotExist(err) {
		t.Fatalf("directory created without a write: %v", err)
	}
}
