package storage

import (
	"encoding/json"
	"math"
	"reflect"
	"testing"
)

func TestDetectPresentKeys(t *testing.T) {
	tests := []struct {
		name     string
		json     string
		expected map[string]bool
	}{
		{
			name: "nested and top-level keys",
			json: `{
				"version": 1,
				"audio": {"volume": 1.0, "requireGesture": false},
				"pacing": {"lowWaterMark": 0.2}
			}`,
			expected: map[string]bool{
				"version": true, "audio.volume": true, "audio.requireGesture": true,
				"pacing.lowWaterMark": true,
			},
		},
		{
			name:     "empty object",
			json:     `{}`,
			expected: map[string]bool{},
		},
		{
			name: "zero values are still present",
			json: `{
				"audio": {"volume": 0, "muted": false},
				"stats": {"reportIntervalSeconds": 0}
			}`,
			expected: map[string]bool{
				"audio.volume": true, "audio.muted": true, "stats.reportIntervalSeconds": true,
			},
		},
		{
			name:     "invalid JSON returns empty",
			json:     `{not valid json`,
			expected: map[string]bool{},
		},
		{
			name:     "nested object present but empty",
			json:     `{"audio": {}, "core": {}}`,
			expected: map[string]bool{},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := detectPresentKeys([]byte(tc.json))
			if !reflect.DeepEqual(got, tc.expected) {
				t.Errorf("expected %v, got %v", tc.expected, got)
			}
		})
	}
}

func TestApplyMissingDefaults(t *testing.T) {
	raw := `{"audio": {"volume": 0, "requireGesture": false}, "pacing": {"backoffCallbacks": 0}}`
	config := &Config{}
	if err := json.Unmarshal([]byte(raw), config); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	ApplyMissingDefaults(config, detectPresentKeys([]byte(raw)))

	if config.Audio.Volume != 0 {
		t.Errorf("expected explicit volume 0 kept, got %f", config.Audio.Volume)
	}
	if config.Audio.RequireGesture {
		t.Error("expected explicit requireGesture=false kept")
	}
	if config.Pacing.BackoffCallbacks != 0 {
		t.Errorf("expected explicit backoffCallbacks 0 kept, got %d", config.Pacing.BackoffCallbacks)
	}

	defaults := DefaultConfig()
	if config.Version != defaults.Version {
		t.Errorf("expected default version, got %d", config.Version)
	}
	if config.Audio.Backend != defaults.Audio.Backend {
		t.Errorf("expected default backend, got %q", config.Audio.Backend)
	}
	if config.Pacing.LowWaterMark != defaults.Pacing.LowWaterMark {
		t.Errorf("expected default low water mark, got %f", config.Pacing.LowWaterMark)
	}
	if config.Core != defaults.Core {
		t.Errorf("expected default core config, got %+v", config.Core)
	}
}

func TestValidateConfig_Defaults(t *testing.T) {
	if problems := ValidateConfig(DefaultConfig()); len(problems) != 0 {
		t.Errorf("expected default config to be valid, got %v", problems)
	}
}

func TestValidateConfig_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"version", func(c *Config) { c.Version = 2 }},
		{"volume above 1", func(c *Config) { c.Audio.Volume = 1.5 }},
		{"volume negative", func(c *Config) { c.Audio.Volume = -0.1 }},
		{"volume NaN", func(c *Config) { c.Audio.Volume = math.NaN() }},
		{"backend", func(c *Config) { c.Audio.Backend = "alsa" }},
		{"sample rate", func(c *Config) { c.Audio.SampleRate = 1000 }},
		{"buffer size", func(c *Config) { c.Audio.BufferSize = 32 }},
		{"low water mark zero", func(c *Config) { c.Pacing.LowWaterMark = 0 }},
		{"low water mark one", func(c *Config) { c.Pacing.LowWaterMark = 1 }},
		{"max steps", func(c *Config) { c.Pacing.MaxStepsPerSecond = 0 }},
		{"backoff", func(c *Config) { c.Pacing.BackoffCallbacks = 61 }},
		{"step export", func(c *Config) { c.Core.StepExport = " " }},
		{"odd capacity", func(c *Config) { c.Core.BufferCapacity = 15 }},
		{"small capacity", func(c *Config) { c.Core.BufferCapacity = 0 }},
		{"stats window", func(c *Config) { c.Stats.WindowSeconds = 0 }},
		{"report interval", func(c *Config) { c.Stats.ReportIntervalSeconds = -1 }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			config := DefaultConfig()
			tc.mutate(config)
			problems := ValidateConfig(config)
			if len(problems) != 1 {
				t.Fatalf("expected 1 problem, got %v", problems)
			}

			CorrectConfig(config)
			if problems := ValidateConfig(config); len(problems) != 0 {
				t.Errorf("expected corrected config to be valid, got %v", problems)
			}
		})
	}
}

func TestCorrectConfig_PreservesValidFields(t *testing.T) {
	config := DefaultConfig()
	config.Audio.Volume = 0.3
	config.Audio.Backend = "headless"
	config.Audio.BufferSize = 10
	config.Core.CapacityExport = ""

	CorrectConfig(config)

	if config.Audio.Volume != 0.3 || config.Audio.Backend != "headless" {
		t.Errorf("expected valid fields kept, got volume=%f backend=%q", config.Audio.Volume, config.Audio.Backend)
	}
	if config.Audio.BufferSize != DefaultConfig().Audio.BufferSize {
		t.Errorf("expected buffer size reset, got %d", config.Audio.BufferSize)
	}
	if config.Core.CapacityExport != "" {
		t.Errorf("expected optional export to stay disabled, got %q", config.Core.CapacityExport)
	}
}
