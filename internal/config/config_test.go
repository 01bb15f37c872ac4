package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SIM_TICK_HZ", "")
	t.Setenv("SESSION_EVENT_LOG", "")
	t.Setenv("FRAME_BROADCAST_EVERY", "")
	t.Setenv("MIGRATE_ON_START", "")

	cfg := Load()

	if cfg.TickHz != 60 {
		t.Errorf("expected 60 Hz default, got %d", cfg.TickHz)
	}
	if cfg.TimeScale() != 1 {
		t.Errorf("60 Hz should run in real time, got scale %v", cfg.TimeScale())
	}
	if cfg.EventLogSize != 1024 {
		t.Errorf("expected 1024 events kept in memory, got %d", cfg.EventLogSize)
	}
	if cfg.FrameBroadcastEvery != 6 {
		t.Errorf("expected broadcast every 6 frames, got %d", cfg.FrameBroadcastEvery)
	}
	if cfg.MigrateOnStart {
		t.Errorf("migrations should be off by default")
	}
	if cfg.InstanceID == "" {
		t.Errorf("instance id must never be empty")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SIM_TICK_HZ", "120")
	t.Setenv("SESSION_IDLE_MINUTES", "5")
	t.Setenv("MIGRATE_ON_START", "true")
	t.Setenv("INSTANCE_ID", "node-a")
	t.Setenv("HEATMAP_SIZE", "not-a-number")

	cfg := Load()

	if cfg.TickInterval() != time.Second/120 {
		t.Errorf("unexpected tick interval %v", cfg.TickInterval())
	}
	if cfg.SessionIdleTimeout() != 5*time.Minute {
		t.Errorf("unexpected idle timeout %v", cfg.SessionIdleTimeout())
	}
	if !cfg.MigrateOnStart {
		t.Errorf("MIGRATE_ON_START=true was ignored")
	}
	if cfg.InstanceID != "node-a" {
		t.Errorf("expected instance node-a, got %q", cfg.InstanceID)
	}
	if cfg.HeatmapSize != 256 {
		t.Errorf("invalid int should fall back to default, got %d", cfg.HeatmapSize)
	}
}

func TestTickIntervalGuardsZero(t *testing.T) {
	cfg := &Config{TickHz: 0}
	if cfg.TickInterval() != time.Second/60 {
		t.Errorf("zero Hz should fall back to 60, got %v", cfg.TickInterval())
	}
}

func TestTimeScaleFollowsWallRate(t *testing.T) {
	tests := []struct {
		hz   int
		want float64
	}{
		{60, 1},
		{120, 2},
		{30, 0.5},
		{0, 1},
	}
	for _, tt := range tests {
		cfg := &Config{TickHz: tt.hz}
		if got := cfg.TimeScale(); got != tt.want {
			t.Errorf("%d Hz: expected scale %v, got %v", tt.hz, tt.want, got)
		}
	}
}
