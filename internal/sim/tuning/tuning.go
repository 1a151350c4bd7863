package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	TickRateHz int `yaml:"tick_rate_hz"`

	MoveSpeed    float64 `yaml:"move_speed"` // map units per second
	PlayerRadius float64 `yaml:"player_radius"`
	SpawnX       float64 `yaml:"spawn_x"`
	SpawnY       float64 `yaml:"spawn_y"`

	WallThreshold uint8 `yaml:"wall_threshold"` // all RGB channels below this = wall

	MoveTicksPerMinute int `yaml:"move_ticks_per_minute"`
	TimeLimitMinutes   int `yaml:"time_limit_minutes"`

	TraceSampleEveryTicks int `yaml:"trace_sample_every_ticks"`
	TraceMaxPoints        int `yaml:"trace_max_points"`
}

func Defaults() Tuning {
	return Tuning{
		TickRateHz:            20,
		MoveSpeed:             120,
		PlayerRadius:          6,
		SpawnX:                64,
		SpawnY:                64,
		WallThreshold:         40,
		MoveTicksPerMinute:    30,
		TimeLimitMinutes:      180,
		TraceSampleEveryTicks: 4,
		TraceMaxPoints:        2000,
	}
}

func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if t.TickRateHz <= 0 {
		return t, fmt.Errorf("tuning.yaml: tick_rate_hz must be positive")
	}
	if t.MoveTicksPerMinute <= 0 {
		return t, fmt.Errorf("tuning.yaml: move_ticks_per_minute must be positive")
	}
	if t.TimeLimitMinutes <= 0 {
		return t, fmt.Errorf("tuning.yaml: time_limit_minutes must be positive")
	}
	return t, nil
}
