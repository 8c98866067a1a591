package storage

// Config represents the host configuration stored in config.json
type Config struct {
	Version int          `json:"version"`
	Audio   AudioConfig  `json:"audio"`
	Pacing  PacingConfig `json:"pacing"`
	Core    CoreConfig   `json:"core"`
	Stats   StatsConfig  `json:"stats"`
}

// AudioConfig contains output device settings
type AudioConfig struct {
	Volume         float64 `json:"volume"` // 0.0-1.0
	Muted          bool    `json:"muted"`
	Backend        string  `json:"backend"`        // "oto", "beep" or "headless"
	SampleRate     int     `json:"sampleRate"`     // Hz
	BufferSize     int     `json:"bufferSize"`     // frames per callback
	RequireGesture bool    `json:"requireGesture"` // withhold output until the user resumes it
}

// PacingConfig tunes how steps are scheduled from the audio callback
type PacingConfig struct {
	LowWaterMark      float64 `json:"lowWaterMark"` // fill level that earns a catch-up step
	MaxStepsPerSecond int     `json:"maxStepsPerSecond"`
	BackoffCallbacks  int     `json:"backoffCallbacks"` // silent callbacks after an underrun
}

// CoreConfig names the simulation core and its exports
type CoreConfig struct {
	Module            string `json:"module,omitempty"` // path to a .wasm file or an archive holding one
	Entry             string `json:"entry,omitempty"`  // archive member to load
	StepExport        string `json:"stepExport"`
	BaseAddressExport string `json:"baseAddressExport"`
	WriteCursorExport string `json:"writeCursorExport"`
	CapacityExport    string `json:"capacityExport"`
	InputExport       string `json:"inputExport"`
	BufferCapacity    int    `json:"bufferCapacity"` // samples, used when the core does not report one
}

// StatsConfig contains observability settings
type StatsConfig struct {
	WindowSeconds         int `json:"windowSeconds"`         // skip/clip count reset period
	ReportIntervalSeconds int `json:"reportIntervalSeconds"` // 0 disables the status line
}

// Valid audio backends
var Backends = []string{"oto", "beep", "headless"}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Version: 1,
		Audio: AudioConfig{
			Volume:         1.0,
			Muted:          false,
			Backend:        "oto",
			SampleRate:     44100,
			BufferSize:     1024,
			RequireGesture: true,
		},
		Pacing: PacingConfig{
			LowWaterMark:      0.15,
			MaxStepsPerSecond: 90,
			BackoffCallbacks:  2,
		},
		Core: CoreConfig{
			StepExport:        "step",
			BaseAddressExport: "getBufferBaseAddress",
			WriteCursorExport: "getWriteCursor",
			CapacityExport:    "getBufferCapacity",
			InputExport:       "setInput",
			BufferCapacity:    16384,
		},
		Stats: StatsConfig{
			WindowSeconds:         10,
			ReportIntervalSeconds: 5,
		},
	}
}
