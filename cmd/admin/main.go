// Command admin inspects and exports the accumulated session logs without
// going through the running server. It reads the sqlite log db directly.
package main

import (
	"database/sql"
	"encoding/csv"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	_ "modernc.org/sqlite"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "sessions":
			sessionsCmd(os.Args[2:])
			return
		case "logs":
			logsCmd(os.Args[2:])
			return
		case "export":
			exportCmd(os.Args[2:])
			return
		}
	}
	fmt.Fprintln(os.Stderr, "usage: admin {sessions|logs|export} [flags]")
	os.Exit(2)
}

func openDB(dataDir string) *sql.DB {
	path := filepath.Join(dataDir, "logs.db")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open db:", err)
		os.Exit(1)
	}
	return db
}

func sessionsCmd(args []string) {
	fs := flag.NewFlagSet("sessions", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	_ = fs.Parse(args)

	db := openDB(*dataDir)
	defer db.Close()

	rows, err := db.Query(
		`SELECT id, player_id, started_at, COALESCE(ended_at, ''), COALESCE(outcome, ''), minutes
		 FROM sessions ORDER BY started_at`)
	if err != nil {
		fmt.Fprintln(os.Stderr, "query:", err)
		os.Exit(1)
	}
	defer rows.Close()

	for rows.Next() {
		var id, player, started, ended, outcome string
		var minutes int
		if err := rows.Scan(&id, &player, &started, &ended, &outcome, &minutes); err != nil {
			fmt.Fprintln(os.Stderr, "scan:", err)
			os.Exit(1)
		}
		if outcome == "" {
			outcome = "running"
		}
		fmt.Printf("%s  player=%s  started=%s  outcome=%s  minutes=%d\n", id, player, started, outcome, minutes)
	}
	if err := rows.Err(); err != nil {
		fmt.Fprintln(os.Stderr, "rows:", err)
		os.Exit(1)
	}
}

func logsCmd(args []string) {
	fs := flag.NewFlagSet("logs", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	sessionID := fs.String("session", "", "session id")
	_ = fs.Parse(args)

	if *sessionID == "" {
		fmt.Fprintln(os.Stderr, "missing -session")
		os.Exit(2)
	}

	db := openDB(*dataDir)
	defer db.Close()

	rows, err := db.Query(
		`SELECT seq, tick, room, task, choice, result, sim_minutes, decision_seconds
		 FROM events WHERE session_id = ? ORDER BY seq`, *sessionID)
	if err != nil {
		fmt.Fprintln(os.Stderr, "query:", err)
		os.Exit(1)
	}
	defer rows.Close()

	for rows.Next() {
		var seq, minutes int
		var tick uint64
		var room, task, choice, result string
		var decision float64
		if err := rows.Scan(&seq, &tick, &room, &task, &choice, &result, &minutes, &decision); err != nil {
			fmt.Fprintln(os.Stderr, "scan:", err)
			os.Exit(1)
		}
		fmt.Printf("#%d tick=%d [%s] %s -> %q (%s) sim=%dmin decision=%.1fs\n",
			seq, tick, room, task, choice, result, minutes, decision)
	}
	if err := rows.Err(); err != nil {
		fmt.Fprintln(os.Stderr, "rows:", err)
		os.Exit(1)
	}
}

// exportCmd writes every log entry as CSV, one row per interaction, in the
// column order the collector's spreadsheet uses.
func exportCmd(args []string) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	outPath := fs.String("out", "", "output file (default stdout)")
	_ = fs.Parse(args)

	db := openDB(*dataDir)
	defer db.Close()

	out := os.Stdout
	if *outPath != "" {
		f, err := os.Create(*outPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "create:", err)
			os.Exit(1)
		}
		defer f.Close()
		out = f
	}

	rows, err := db.Query(
		`SELECT e.session_id, s.player_id, s.started_at, e.at, e.sim_minutes, e.decision_seconds,
		        e.room, e.task, e.choice, e.result
		 FROM events e JOIN sessions s ON s.id = e.session_id
		 ORDER BY s.started_at, e.session_id, e.seq`)
	if err != nil {
		fmt.Fprintln(os.Stderr, "query:", err)
		os.Exit(1)
	}
	defer rows.Close()

	w := csv.NewWriter(out)
	_ = w.Write([]string{"SessionUUID", "PlayerID", "SessionStart", "EventRealTime", "SimTime", "DecisionTime(sec)", "Location", "Event", "Choice", "Result"})
	n := 0
	for rows.Next() {
		var sessionID, player, started, at, room, task, choice, result string
		var minutes int
		var decision float64
		if err := rows.Scan(&sessionID, &player, &started, &at, &minutes, &decision, &room, &task, &choice, &result); err != nil {
			fmt.Fprintln(os.Stderr, "scan:", err)
			os.Exit(1)
		}
		_ = w.Write([]string{
			sessionID, player, started, at,
			strconv.Itoa(minutes), strconv.FormatFloat(decision, 'f', 2, 64),
			room, task, choice, result,
		})
		n++
	}
	if err := rows.Err(); err != nil {
		fmt.Fprintln(os.Stderr, "rows:", err)
		os.Exit(1)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		fmt.Fprintln(os.Stderr, "write:", err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stderr, "exported %d rows\n", n)
}
