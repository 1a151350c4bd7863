// Command replay prints the event and trace logs of a finished session from
// their compressed JSONL files.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/klauspost/compress/zstd"

	persistlog "wanderlab.app/internal/persistence/log"
	"wanderlab.app/internal/sim/session"
)

func main() {
	dataDir := flag.String("data", "./data", "runtime data directory")
	sessionID := flag.String("session", "", "session id")
	withTrace := flag.Bool("trace", false, "also print movement trace points")
	flag.Parse()

	if *sessionID == "" {
		fmt.Fprintln(os.Stderr, "missing -session")
		os.Exit(2)
	}

	if err := printEvents(persistlog.EventLogPath(*dataDir, *sessionID)); err != nil {
		fmt.Fprintln(os.Stderr, "events:", err)
		os.Exit(1)
	}
	if *withTrace {
		if err := printTrace(persistlog.TraceLogPath(*dataDir, *sessionID)); err != nil {
			fmt.Fprintln(os.Stderr, "trace:", err)
			os.Exit(1)
		}
	}
}

func openLines(path string) (*bufio.Scanner, func(), error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	zr, err := zstd.NewReader(f)
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	sc := bufio.NewScanner(zr)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	return sc, func() { zr.Close(); f.Close() }, nil
}

func printEvents(path string) error {
	sc, closeFn, err := openLines(path)
	if err != nil {
		return err
	}
	defer closeFn()

	n := 0
	for sc.Scan() {
		var e session.LogEntry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			return fmt.Errorf("line %d: %w", n+1, err)
		}
		fmt.Printf("tick=%d [%s] %s -> %q (%s) sim=%dmin decision=%.1fs\n",
			e.Tick, e.Room, e.Task, e.Choice, e.Result, e.SimMinutes, e.DecisionSeconds)
		n++
	}
	if err := sc.Err(); err != nil {
		return err
	}
	fmt.Printf("%d events\n", n)
	return nil
}

func printTrace(path string) error {
	sc, closeFn, err := openLines(path)
	if err != nil {
		return err
	}
	defer closeFn()

	n := 0
	for sc.Scan() {
		var p session.TracePoint
		if err := json.Unmarshal(sc.Bytes(), &p); err != nil {
			return fmt.Errorf("line %d: %w", n+1, err)
		}
		fmt.Printf("tick=%d (%.1f, %.1f) sim=%dmin real=%dms\n", p.Tick, p.X, p.Y, p.SimMinutes, p.RealMs)
		n++
	}
	if err := sc.Err(); err != nil {
		return err
	}
	fmt.Printf("%d trace points\n", n)
	return nil
}
