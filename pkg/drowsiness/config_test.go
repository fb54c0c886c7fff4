package drowsiness

import (
	"encoding/json"
	"testing"
	"time"
)

func TestDefaultConfig_Values(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.EARThreshold != 0.26 {
		t.Errorf("EARThreshold = %v, want 0.26", cfg.EARThreshold)
	}
	if cfg.Window != 20*time.Second || cfg.RecentWindow != 10*time.Second {
		t.Errorf("windows = %v/%v, want 20s/10s", cfg.Window, cfg.RecentWindow)
	}
	if cfg.AwayPeriod != time.Second {
		t.Errorf("AwayPeriod = %v, want 1s", cfg.AwayPeriod)
	}
	if cfg.VerticalTimeout != 2500*time.Millisecond || cfg.LateralTimeout != 3*time.Second {
		t.Errorf("timeouts = %v/%v, want 2.5s/3s", cfg.VerticalTimeout, cfg.LateralTimeout)
	}
	if cfg.CriticalRatio != 0.40 || cfg.MediumRatio != 0.25 {
		t.Errorf("ratios = %v/%v, want 0.40/0.25", cfg.CriticalRatio, cfg.MediumRatio)
	}
	if cfg.Evidence != EvidenceSamples {
		t.Errorf("Evidence = %v, want samples", cfg.Evidence)
	}
}

func TestPresets_Valid(t *testing.T) {
	for _, name := range PresetNames() {
		t.Run(name, func(t *testing.T) {
			cfg, ok := Preset(name)
			if !ok {
				t.Fatalf("Preset(%q) not found", name)
			}
			if errs := cfg.Validate(); len(errs) > 0 {
				t.Errorf("preset %q invalid: %v", name, errs)
			}
		})
	}

	if _, ok := Preset("paranoid"); ok {
		t.Error("unknown preset should not be found")
	}
}

func TestPresets_Ordering(t *testing.T) {
	def, sens, rel := DefaultConfig(), SensitiveConfig(), RelaxedConfig()

	if !(sens.CriticalRatio < def.CriticalRatio && def.CriticalRatio < rel.CriticalRatio) {
		t.Errorf("critical ratios not ordered: %v %v %v", sens.CriticalRatio, def.CriticalRatio, rel.CriticalRatio)
	}
	if !(sens.LateralTimeout < def.LateralTimeout && def.LateralTimeout < rel.LateralTimeout) {
		t.Errorf("lateral timeouts not ordered: %v %v %v", sens.LateralTimeout, def.LateralTimeout, rel.LateralTimeout)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"default", func(*Config) {}, false},
		{"zero threshold", func(c *Config) { c.EARThreshold = 0 }, true},
		{"zero window", func(c *Config) { c.Window = 0 }, true},
		{"recent beyond window", func(c *Config) { c.RecentWindow = 30 * time.Second }, true},
		{"zero weight", func(c *Config) { c.RecentWeight = 0 }, true},
		{"negative away", func(c *Config) { c.AwayPeriod = -time.Second }, true},
		{"zero fps", func(c *Config) { c.AvgFPS = 0 }, true},
		{"zero fps in duration mode", func(c *Config) { c.AvgFPS = 0; c.Evidence = EvidenceDuration }, false},
		{"evidence beyond window in duration mode", func(c *Config) {
			c.Evidence = EvidenceDuration
			c.MinEvidence = 25 * time.Second
		}, true},
		{"ratios inverted", func(c *Config) { c.MediumRatio, c.CriticalRatio = 0.5, 0.3 }, true},
		{"ratio above one", func(c *Config) { c.CriticalRatio = 1.5 }, true},
		{"zero timeout", func(c *Config) { c.VerticalTimeout = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			errs := cfg.Validate()
			if (len(errs) > 0) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", errs, tt.wantErr)
			}
		})
	}
}

func TestParseEvidenceMode(t *testing.T) {
	if m, err := ParseEvidenceMode("duration"); err != nil || m != EvidenceDuration {
		t.Errorf("got %v, %v", m, err)
	}
	if m, err := ParseEvidenceMode(""); err != nil || m != EvidenceSamples {
		t.Errorf("got %v, %v", m, err)
	}
	if _, err := ParseEvidenceMode("frames"); err == nil {
		t.Error("expected error for unknown mode")
	}
}

func TestLevel_StringAndColor(t *testing.T) {
	tests := []struct {
		level    Level
		name     string
		severity int
	}{
		{NotDrowsy, "NOT DROWSY", 0},
		{Medium, "MEDIUM", 1},
		{Critical, "CRITICAL", 2},
		{Distraction, "DISTRACTION", 1},
	}

	seen := map[[3]uint8]bool{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.level.String(); got != tt.name {
				t.Errorf("String() = %q, want %q", got, tt.name)
			}
			if got := tt.level.Severity(); got != tt.severity {
				t.Errorf("Severity() = %d, want %d", got, tt.severity)
			}
			c := tt.level.Color()
			key := [3]uint8{c.R, c.G, c.B}
			if seen[key] {
				t.Errorf("colour %v shared with another level", c)
			}
			seen[key] = true
		})
	}
}

func TestLevel_JSON(t *testing.T) {
	out, err := json.Marshal(Status{Level: Distraction, Perclos: 0.1})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != `{"level":"DISTRACTION","perclos":0.1}` {
		t.Errorf("got %s", out)
	}

	var l Level
	if err := json.Unmarshal([]byte(`"not_drowsy"`), &l); err != nil || l != NotDrowsy {
		t.Errorf("got %v, %v", l, err)
	}
	if err := json.Unmarshal([]byte(`"sleepy"`), &l); err == nil {
		t.Error("expected error for unknown level")
	}
}
