package scenario

import (
	"strings"
	"testing"
)

func TestParse_ShortAndMalformedRowsAreSkipped(t *testing.T) {
	src := strings.Join([]string{
		"Kitchen,100,200",
		"",
		"Kitchen,not-a-number,200,40,1,Tap,Leaking tap,Fix it,Fixed,5",
		"Kitchen,100,200,0,1,Tap,Leaking tap,Fix it,Fixed,5",
		"Kitchen,100,200,40,1,Tap,Leaking tap,Fix it,Fixed,5",
	}, "\n")
	s, err := Parse(strings.NewReader(src))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(s.Rooms) != 1 {
		t.Fatalf("rooms = %d, want 1", len(s.Rooms))
	}
	if len(s.Rooms[0].Tasks) != 1 {
		t.Fatalf("tasks = %d, want 1", len(s.Rooms[0].Tasks))
	}
	got := s.Rooms[0].Tasks[0]
	if got.Name != "Tap" || got.Order != 1 || len(got.Choices) != 1 {
		t.Fatalf("task = %+v", got)
	}
	if c := got.Choices[0]; c.Text != "Fix it" || c.Result != "Fixed" || c.Minutes != 5 {
		t.Fatalf("choice = %+v", c)
	}
}

func TestParse_QuotedFieldsKeepDelimiters(t *testing.T) {
	src := `Kitchen,100,200,40,1,Tap,"Water is pooling, fast","Fix it, now","Done, finally",5`
	s, err := Parse(strings.NewReader(src))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	task := s.Rooms[0].Tasks[0]
	if task.Description != "Water is pooling, fast" {
		t.Fatalf("description = %q", task.Description)
	}
	if c := task.Choices[0]; c.Text != "Fix it, now" || c.Result != "Done, finally" || c.Minutes != 5 {
		t.Fatalf("choice = %+v", c)
	}
}

func TestSplitRow_QuoteToggleRule(t *testing.T) {
	// The quote char toggles in-quote state wherever it appears, even
	// mid-field, and is always dropped.
	got := splitRow(`a,"b,c",d"e,f"g,h`)
	want := []string{"a", "b,c", "de,fg", "h"}
	if len(got) != len(want) {
		t.Fatalf("fields = %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("field %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestParse_NearbyRowsMergeIntoOneRoom(t *testing.T) {
	src := strings.Join([]string{
		"Kitchen,100,200,40,1,Tap,desc,Fix,Fixed,5",
		"Kitchen,103,196,55,2,Stove,desc,Off,Cooled,3",  // within tolerance on both axes
		"Kitchen,100,206,40,1,Sink,desc,Scrub,Clean,4",  // y off by 6: distinct room
		"Pantry,100,200,40,1,Jars,desc,Sort,Sorted,2",   // same spot, different name
	}, "\n")
	s, err := Parse(strings.NewReader(src))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(s.Rooms) != 3 {
		t.Fatalf("rooms = %d, want 3: %+v", len(s.Rooms), s.Rooms)
	}

	first := s.Rooms[0]
	if len(first.Tasks) != 2 {
		t.Fatalf("merged room tasks = %d, want 2", len(first.Tasks))
	}
	// The merge keeps the first row's geometry.
	if first.X != 100 || first.Y != 200 || first.Radius != 40 {
		t.Fatalf("merged room geometry changed: %+v", first)
	}
	if first.Tasks[0].ID != "Kitchen#1" || first.Tasks[1].ID != "Kitchen#2" {
		t.Fatalf("task ids = %q, %q", first.Tasks[0].ID, first.Tasks[1].ID)
	}
}

func TestParse_ExplicitOrderBeforeAppearanceOrder(t *testing.T) {
	src := strings.Join([]string{
		"Hall,50,50,30,,Unordered-A,desc,Go,Gone,1",
		"Hall,50,50,30,2,Second,desc,Go,Gone,1",
		"Hall,50,50,30,1,First,desc,Go,Gone,1",
		"Hall,50,50,30,,Unordered-B,desc,Go,Gone,1",
	}, "\n")
	s, err := Parse(strings.NewReader(src))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	tasks := s.Rooms[0].Tasks
	want := []string{"First", "Second", "Unordered-A", "Unordered-B"}
	if len(tasks) != len(want) {
		t.Fatalf("tasks = %d, want %d", len(tasks), len(want))
	}
	for i, name := range want {
		if tasks[i].Name != name {
			t.Fatalf("task %d = %q, want %q", i, tasks[i].Name, name)
		}
	}
}

func TestParse_AtMostFourChoices(t *testing.T) {
	row := "Hall,50,50,30,1,Busy,desc" +
		",C1,R1,1,C2,R2,2,C3,R3,3,C4,R4,4,C5,R5,5"
	s, err := Parse(strings.NewReader(row))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	choices := s.Rooms[0].Tasks[0].Choices
	if len(choices) != MaxChoices {
		t.Fatalf("choices = %d, want %d", len(choices), MaxChoices)
	}
	if choices[3].Text != "C4" {
		t.Fatalf("last kept choice = %+v", choices[3])
	}
}

func TestParse_DigestStableAcrossReparses(t *testing.T) {
	src := "Kitchen,100,200,40,1,Tap,desc,Fix,Fixed,5"
	a, err := Parse(strings.NewReader(src))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	b, err := Parse(strings.NewReader(src))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if a.Digest == "" || a.Digest != b.Digest {
		t.Fatalf("digest unstable: %q vs %q", a.Digest, b.Digest)
	}

	c, err := Parse(strings.NewReader("Kitchen,100,200,40,1,Tap,desc,Fix,Fixed,6"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if c.Digest == a.Digest {
		t.Fatalf("digest did not change with content")
	}
}
