package storage

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strings"
)

// detectPresentKeys unmarshals JSON bytes to determine which config keys
// are explicitly present in the file. Returns a flat set of dotted-path keys
// (e.g., "audio.volume", "pacing.lowWaterMark"), one level of nesting deep.
func detectPresentKeys(jsonBytes []byte) map[string]bool {
	present := make(map[string]bool)

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(jsonBytes, &raw); err != nil {
		return present
	}

	for key, value := range raw {
		var nested map[string]json.RawMessage
		if json.Unmarshal(value, &nested) != nil {
			present[key] = true
			continue
		}
		for sub := range nested {
			present[key+"."+sub] = true
		}
	}
	return present
}

// field describes one validated config key.
type field struct {
	key string
	// problem returns a description of the invalid value, or "" if valid
	problem func(c *Config) string
	// reset copies the default into c
	reset func(c, defaults *Config)
}

func intRange(name string, get func(c *Config) int, lo, hi int) func(c *Config) string {
	return func(c *Config) string {
		if v := get(c); v < lo || v > hi {
			return fmt.Sprintf("%s: %d (valid: %d-%d)", name, v, lo, hi)
		}
		return ""
	}
}

func nonEmpty(name string, get func(c *Config) string) func(c *Config) string {
	return func(c *Config) string {
		if strings.TrimSpace(get(c)) == "" {
			return fmt.Sprintf("%s: empty (valid: export name)", name)
		}
		return ""
	}
}

// fields lists every key that has a default and a validation rule.
var fields = []field{
	{
		key: "version",
		problem: func(c *Config) string {
			if c.Version != 1 {
				return fmt.Sprintf("version: %d (valid: 1)", c.Version)
			}
			return ""
		},
		reset: func(c, d *Config) { c.Version = d.Version },
	},
	{
		key: "audio.volume",
		problem: func(c *Config) string {
			if v := c.Audio.Volume; math.IsNaN(v) || v < 0 || v > 1 {
				return fmt.Sprintf("audio.volume: %.2f (valid: 0.0-1.0)", v)
			}
			return ""
		},
		reset: func(c, d *Config) { c.Audio.Volume = d.Audio.Volume },
	},
	{
		key:     "audio.muted",
		problem: func(c *Config) string { return "" },
		reset:   func(c, d *Config) { c.Audio.Muted = d.Audio.Muted },
	},
	{
		key: "audio.backend",
		problem: func(c *Config) string {
			if !slices.Contains(Backends, c.Audio.Backend) {
				return fmt.Sprintf("audio.backend: %q (valid: %v)", c.Audio.Backend, Backends)
			}
			return ""
		},
		reset: func(c, d *Config) { c.Audio.Backend = d.Audio.Backend },
	},
	{
		key:     "audio.sampleRate",
		problem: intRange("audio.sampleRate", func(c *Config) int { return c.Audio.SampleRate }, 8000, 192000),
		reset:   func(c, d *Config) { c.Audio.SampleRate = d.Audio.SampleRate },
	},
	{
		key:     "audio.bufferSize",
		problem: intRange("audio.bufferSize", func(c *Config) int { return c.Audio.BufferSize }, 64, 16384),
		reset:   func(c, d *Config) { c.Audio.BufferSize = d.Audio.BufferSize },
	},
	{
		key:     "audio.requireGesture",
		problem: func(c *Config) string { return "" },
		reset:   func(c, d *Config) { c.Audio.RequireGesture = d.Audio.RequireGesture },
	},
	{
		key: "pacing.lowWaterMark",
		problem: func(c *Config) string {
			if v := c.Pacing.LowWaterMark; !(v > 0 && v < 1) {
				return fmt.Sprintf("pacing.lowWaterMark: %.3f (valid: between 0 and 1)", v)
			}
			return ""
		},
		reset: func(c, d *Config) { c.Pacing.LowWaterMark = d.Pacing.LowWaterMark },
	},
	{
		key:     "pacing.maxStepsPerSecond",
		problem: intRange("pacing.maxStepsPerSecond", func(c *Config) int { return c.Pacing.MaxStepsPerSecond }, 1, 1000),
		reset:   func(c, d *Config) { c.Pacing.MaxStepsPerSecond = d.Pacing.MaxStepsPerSecond },
	},
	{
		key:     "pacing.backoffCallbacks",
		problem: intRange("pacing.backoffCallbacks", func(c *Config) int { return c.Pacing.BackoffCallbacks }, 0, 60),
		reset:   func(c, d *Config) { c.Pacing.BackoffCallbacks = d.Pacing.BackoffCallbacks },
	},
	{
		key:     "core.stepExport",
		problem: nonEmpty("core.stepExport", func(c *Config) string { return c.Core.StepExport }),
		reset:   func(c, d *Config) { c.Core.StepExport = d.Core.StepExport },
	},
	{
		key:     "core.baseAddressExport",
		problem: nonEmpty("core.baseAddressExport", func(c *Config) string { return c.Core.BaseAddressExport }),
		reset:   func(c, d *Config) { c.Core.BaseAddressExport = d.Core.BaseAddressExport },
	},
	{
		key:     "core.writeCursorExport",
		problem: nonEmpty("core.writeCursorExport", func(c *Config) string { return c.Core.WriteCursorExport }),
		reset:   func(c, d *Config) { c.Core.WriteCursorExport = d.Core.WriteCursorExport },
	},
	{
		// Optional exports may be set to "" to disable them
		key:     "core.capacityExport",
		problem: func(c *Config) string { return "" },
		reset:   func(c, d *Config) { c.Core.CapacityExport = d.Core.CapacityExport },
	},
	{
		key:     "core.inputExport",
		problem: func(c *Config) string { return "" },
		reset:   func(c, d *Config) { c.Core.InputExport = d.Core.InputExport },
	},
	{
		key: "core.bufferCapacity",
		problem: func(c *Config) string {
			if v := c.Core.BufferCapacity; v < 2 || v%2 != 0 {
				return fmt.Sprintf("core.bufferCapacity: %d (valid: even, >= 2)", v)
			}
			return ""
		},
		reset: func(c, d *Config) { c.Core.BufferCapacity = d.Core.BufferCapacity },
	},
	{
		key:     "stats.windowSeconds",
		problem: intRange("stats.windowSeconds", func(c *Config) int { return c.Stats.WindowSeconds }, 1, 600),
		reset:   func(c, d *Config) { c.Stats.WindowSeconds = d.Stats.WindowSeconds },
	},
	{
		key:     "stats.reportIntervalSeconds",
		problem: intRange("stats.reportIntervalSeconds", func(c *Config) int { return c.Stats.ReportIntervalSeconds }, 0, 3600),
		reset:   func(c, d *Config) { c.Stats.ReportIntervalSeconds = d.Stats.ReportIntervalSeconds },
	},
}

// ApplyMissingDefaults sets default values for config fields that are absent
// from the JSON file. Present keys keep their values, including zero values
// such as volume=0 or requireGesture=false.
func ApplyMissingDefaults(config *Config, presentKeys map[string]bool) {
	defaults := DefaultConfig()
	for _, f := range fields {
		if !presentKeys[f.key] {
			f.reset(config, defaults)
		}
	}
}

// ValidateConfig checks all config fields against valid ranges and returns
// human-readable error descriptions. An empty slice means the config is valid.
func ValidateConfig(config *Config) []string {
	var problems []string
	for _, f := range fields {
		if p := f.problem(config); p != "" {
			problems = append(problems, p)
		}
	}
	return problems
}

// CorrectConfig resets any invalid fields to their defaults from DefaultConfig().
// Valid fields are preserved.
func CorrectConfig(config *Config) *Config {
	defaults := DefaultConfig()
	for _, f := range fields {
		if f.problem(config) != "" {
			f.reset(config, defaults)
		}
	}
	return config
}
