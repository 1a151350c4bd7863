package tuning

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestLoad_OverridesOnTopOfDefaults(t *testing.T) {
	path := writeFile(t, "tick_rate_hz: 10\ntime_limit_minutes: 30\n")
	got, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.TickRateHz != 10 || got.TimeLimitMinutes != 30 {
		t.Fatalf("overrides not applied: %+v", got)
	}
	// Everything else keeps its default.
	def := Defaults()
	if got.MoveSpeed != def.MoveSpeed || got.WallThreshold != def.WallThreshold || got.TraceMaxPoints != def.TraceMaxPoints {
		t.Fatalf("defaults clobbered: %+v", got)
	}
}

func TestLoad_RejectsNonPositiveCoreValues(t *testing.T) {
	cases := []string{
		"tick_rate_hz: 0\n",
		"move_ticks_per_minute: -1\n",
		"time_limit_minutes: 0\n",
	}
	for _, body := range cases {
		if _, err := Load(writeFile(t, body)); err == nil {
			t.Fatalf("expected error for %q", body)
		}
	}
}

func TestLoad_MissingFileReturnsError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if !os.IsNotExist(err) {
		t.Fatalf("want not-exist error, got %v", err)
	}
}
