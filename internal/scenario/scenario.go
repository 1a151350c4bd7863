// Package scenario loads the room/task table that drives a study run.
//
// The source is a delimited text file with fixed column positions:
//
//	0 room name, 1 x, 2 y, 3 radius, 4 order (may be empty),
//	5 task name, 6 task description,
//	then up to 4 groups of (choice text, result text, time cost minutes).
//
// Rows that parse to fewer than 5 fields are skipped. Consecutive rows that
// share a room name and whose centers lie within DedupTolerance on both axes
// merge into one room; the merge keeps the first row's center and radius.
package scenario

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
)

// DedupTolerance is the per-axis distance within which two source rows with
// the same room name describe the same room.
const DedupTolerance = 5.0

// MaxChoices is the most choices a task row may carry. The last slot (index
// 3) is reserved for the defer-within-event choice: resolving it leaves the
// task pending.
const MaxChoices = 4

type Choice struct {
	Text    string `json:"text"`
	Result  string `json:"result"`
	Minutes int    `json:"minutes"`
}

type Task struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Order       int      `json:"order"`
	Choices     []Choice `json:"choices"`
}

type Room struct {
	Name   string  `json:"name"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Radius float64 `json:"radius"`
	Tasks  []Task  `json:"tasks"`
}

type Scenario struct {
	Rooms  []Room
	Digest string // sha256 over the canonical JSON of Rooms
}

func Load(path string) (*Scenario, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

func Parse(r io.Reader) (*Scenario, error) {
	var rooms []Room
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	seq := 0
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		fields := splitRow(line)
		if len(fields) < 5 {
			continue
		}
		task, room, ok := parseRow(fields)
		if !ok {
			continue
		}
		seq++
		if task.Order == 0 {
			// Rows without an explicit order keep their appearance order,
			// after any explicitly ordered tasks of the same room.
			task.Order = 1000 + seq
		}
		target := findRoom(rooms, room)
		if target < 0 {
			rooms = append(rooms, room)
			target = len(rooms) - 1
		}
		task.ID = fmt.Sprintf("%s#%d", rooms[target].Name, len(rooms[target].Tasks)+1)
		rooms[target].Tasks = append(rooms[target].Tasks, task)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	for i := range rooms {
		tasks := rooms[i].Tasks
		sort.SliceStable(tasks, func(a, b int) bool { return tasks[a].Order < tasks[b].Order })
	}

	s := &Scenario{Rooms: rooms}
	s.Digest = digest(rooms)
	return s, nil
}

// parseRow builds a task and its owning room from one source row. A row
// whose numeric columns do not parse is malformed and dropped.
func parseRow(fields []string) (Task, Room, bool) {
	name := strings.TrimSpace(fields[0])
	if name == "" {
		return Task{}, Room{}, false
	}
	x, err1 := strconv.ParseFloat(strings.TrimSpace(fields[1]), 64)
	y, err2 := strconv.ParseFloat(strings.TrimSpace(fields[2]), 64)
	radius, err3 := strconv.ParseFloat(strings.TrimSpace(fields[3]), 64)
	if err1 != nil || err2 != nil || err3 != nil || radius <= 0 {
		return Task{}, Room{}, false
	}

	var task Task
	if len(fields) > 4 {
		if n, err := strconv.Atoi(strings.TrimSpace(fields[4])); err == nil && n > 0 {
			task.Order = n
		}
	}
	if len(fields) > 5 {
		task.Name = strings.TrimSpace(fields[5])
	}
	if len(fields) > 6 {
		task.Description = strings.TrimSpace(fields[6])
	}
	if task.Name == "" {
		return Task{}, Room{}, false
	}

	for g := 0; g < MaxChoices; g++ {
		base := 7 + g*3
		if base >= len(fields) {
			break
		}
		text := strings.TrimSpace(fields[base])
		if text == "" {
			continue
		}
		c := Choice{Text: text}
		if base+1 < len(fields) {
			c.Result = strings.TrimSpace(fields[base+1])
		}
		if base+2 < len(fields) {
			if n, err := strconv.Atoi(strings.TrimSpace(fields[base+2])); err == nil && n >= 0 {
				c.Minutes = n
			}
		}
		task.Choices = append(task.Choices, c)
	}
	if len(task.Choices) == 0 {
		return Task{}, Room{}, false
	}

	return task, Room{Name: name, X: x, Y: y, Radius: radius}, true
}

// findRoom returns the index of an existing room this row merges into, or -1.
// Later rows can silently merge into earlier rooms; that is a behavioral
// contract of the source format, not an optimization.
func findRoom(rooms []Room, r Room) int {
	for i := range rooms {
		if rooms[i].Name != r.Name {
			continue
		}
		if math.Abs(rooms[i].X-r.X) <= DedupTolerance && math.Abs(rooms[i].Y-r.Y) <= DedupTolerance {
			return i
		}
	}
	return -1
}

// splitRow splits one source line on commas, honoring the format's simple
// quoting rule: a quote character toggles in-quote state, and delimiters
// inside quotes are literal. Quote characters themselves are dropped.
func splitRow(line string) []string {
	var fields []string
	var cur strings.Builder
	inQuote := false
	for _, r := range line {
		switch {
		case r == '"':
			inQuote = !inQuote
		case r == ',' && !inQuote:
			fields = append(fields, cur.String())
			cur.Reset()
		default:
			cur.WriteRune(r)
		}
	}
	fields = append(fields, cur.String())
	return fields
}

func digest(rooms []Room) string {
	b, err := json.Marshal(rooms)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
