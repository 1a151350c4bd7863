// Package log writes per-session append-only records as zstd-compressed
// JSONL under the data directory: events/<session>.jsonl.zst and
// trace/<session>.jsonl.zst.
package log

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/klauspost/compress/zstd"

	"wanderlab.app/internal/sim/session"
)

type JSONLZstdWriter struct {
	path string

	mu  sync.Mutex
	f   *os.File
	enc *zstd.Encoder
	w   *bufio.Writer
}

func NewJSONLZstdWriter(path string) *JSONLZstdWriter {
	return &JSONLZstdWriter{path: path}
}

func (w *JSONLZstdWriter) Write(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.f == nil {
		if err := w.openLocked(); err != nil {
			return err
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	return w.w.Flush()
}

func (w *JSONLZstdWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	var err error
	if w.w != nil {
		_ = w.w.Flush()
	}
	if w.enc != nil {
		err = w.enc.Close()
		w.enc = nil
	}
	if w.f != nil {
		_ = w.f.Close()
		w.f = nil
	}
	w.w = nil
	return err
}

func (w *JSONLZstdWriter) openLocked() error {
	if err := os.MkdirAll(filepath.Dir(w.path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f = f
	w.enc = enc
	w.w = bufio.NewWriterSize(enc, 64*1024)
	return nil
}

// EventLogger writes one JSONL entry per resolved or held interaction.
type EventLogger struct{ w *JSONLZstdWriter }

func NewEventLogger(dataDir, sessionID string) *EventLogger {
	return &EventLogger{w: NewJSONLZstdWriter(EventLogPath(dataDir, sessionID))}
}

func (l *EventLogger) WriteEvent(e session.LogEntry) error { return l.w.Write(e) }
func (l *EventLogger) Close() error                        { return l.w.Close() }

// TraceLogger writes one JSONL entry per sampled trace point.
type TraceLogger struct{ w *JSONLZstdWriter }

func NewTraceLogger(dataDir, sessionID string) *TraceLogger {
	return &TraceLogger{w: NewJSONLZstdWriter(TraceLogPath(dataDir, sessionID))}
}

func (l *TraceLogger) WriteTrace(p session.TracePoint) error { return l.w.Write(p) }
func (l *TraceLogger) Close() error                          { return l.w.Close() }

func EventLogPath(dataDir, sessionID string) string {
	return filepath.Join(dataDir, "events", fmt.Sprintf("%s.jsonl.zst", sessionID))
}

func TraceLogPath(dataDir, sessionID string) string {
	return filepath.Join(dataDir, "trace", fmt.Sprintf("%s.jsonl.zst", sessionID))
}
