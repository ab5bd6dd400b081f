package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Serial      SerialConfig      `yaml:"serial"`
	Machine     MachineConfig     `yaml:"machine"`
	Scale       ScaleConfig       `yaml:"scale"`
	Measurement MeasurementConfig `yaml:"measurement"`
	Storage     StorageConfig     `yaml:"storage"`
	Mock        MockConfig        `yaml:"mock"`
}

// SerialConfig contains serial port configuration.
type SerialConfig struct {
	Port string `yaml:"port"`
}

// MachineConfig mirrors the machine tunables of the firmware.
type MachineConfig struct {
	Volumes       []int         `yaml:"volumes"`        // Preset volume labels (mL)
	Thresholds    []int32       `yaml:"thresholds"`     // Power-on default thresholds (counts)
	PollInterval  time.Duration `yaml:"poll_interval"`  // Main loop pacing
	PromptDelay   time.Duration `yaml:"prompt_delay"`   // Guided prompt duration
	StableSamples int           `yaml:"stable_samples"` // Averaging count for calibration capture
}

// ScaleConfig contains load cell conversion parameters.
type ScaleConfig struct {
	CountsPerGram float64 `yaml:"counts_per_gram"` // Raw sensor counts per gram
}

// MeasurementConfig contains bench measurement parameters.
type MeasurementConfig struct {
	WindowSeconds   float64 `yaml:"window_seconds"`    // Scope time window
	MinFillDuration float64 `yaml:"min_fill_duration"` // Minimum fill duration in seconds (filters chatter)
	AverageSamples  int     `yaml:"average_samples"`   // Number of samples to average (0 = disabled, default)
}

// StorageConfig contains bench-side non-volatile storage configuration.
type StorageConfig struct {
	Path string `yaml:"path"` // Calibration image file used by the bench
}

// MockConfig contains simulated machine configuration.
type MockConfig struct {
	NoiseLevel  float64       `yaml:"noise_level"`  // Reading noise amplitude (counts)
	FlowRate    float64       `yaml:"flow_rate"`    // Weight ramp while dispensing (counts/s)
	SampleRate  time.Duration `yaml:"sample_rate"`  // Telemetry sample rate
	TareWeight  int32         `yaml:"tare_weight"`  // Reading with an empty container placed
	RefillDelay time.Duration `yaml:"refill_delay"` // Pause before the next simulated bottle
}

// Default returns a default configuration with sensible values.
func Default() *Config {
	return &Config{
		Serial: SerialConfig{
			Port: "COM3", // Default for Windows, should be "/dev/ttyACM0" on Linux/Mac
		},
		Machine: MachineConfig{
			Volumes:       []int{200, 450, 900},
			Thresholds:    []int32{220000, 240000, 250000},
			PollInterval:  5 * time.Millisecond,
			PromptDelay:   2 * time.Second,
			StableSamples: 5,
		},
		Scale: ScaleConfig{
			CountsPerGram: 420.0,
		},
		Measurement: MeasurementConfig{
			WindowSeconds:   30,
			MinFillDuration: 0.5, // Filter fills shorter than half a second
			AverageSamples:  0,   // No averaging by default
		},
		Storage: StorageConfig{
			Path: "calibration.bin",
		},
		Mock: MockConfig{
			NoiseLevel:  500.0,
			FlowRate:    25000.0,
			SampleRate:  20 * time.Millisecond, // 50 samples per second
			TareWeight:  180000,
			RefillDelay: 5 * time.Second,
		},
	}
}

// Load loads configuration from a YAML file. If the file doesn't exist or
// fields are missing, it uses default values.
func Load(filename string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			// File doesn't exist, return defaults
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Ensure minimum required fields are set (use defaults if missing)
	cfg.ensureDefaults()

	return cfg, nil
}

// Save saves the configuration to a YAML file.
func (c *Config) Save(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ensureDefaults ensures that all required fields have default values if missing.
func (c *Config) ensureDefaults() {
	def := Default()

	if c.Serial.Port == "" {
		c.Serial.Port = def.Serial.Port
	}

	// The machine has exactly three presets; a partial or oversized list
	// falls back to the defaults wholesale.
	if len(c.Machine.Volumes) != len(def.Machine.Volumes) {
		c.Machine.Volumes = def.Machine.Volumes
	}
	if len(c.Machine.Thresholds) != len(def.Machine.Thresholds) {
		c.Machine.Thresholds = def.Machine.Thresholds
	}
	if c.Machine.PollInterval == 0 {
		c.Machine.PollInterval = def.Machine.PollInterval
	}
	if c.Machine.PromptDelay == 0 {
		c.Machine.PromptDelay = def.Machine.PromptDelay
	}
	if c.Machine.StableSamples == 0 {
		c.Machine.StableSamples = def.Machine.StableSamples
	}

	if c.Scale.CountsPerGram == 0 {
		c.Scale.CountsPerGram = def.Scale.CountsPerGram
	}

	if c.Measurement.WindowSeconds == 0 {
		c.Measurement.WindowSeconds = def.Measurement.WindowSeconds
	}
	if c.Measurement.MinFillDuration == 0 {
		c.Measurement.MinFillDuration = def.Measurement.MinFillDuration
	}

	if c.Storage.Path == "" {
		c.Storage.Path = def.Storage.Path
	}

	if c.Mock.NoiseLevel == 0 {
		c.Mock.NoiseLevel = def.Mock.NoiseLevel
	}
	if c.Mock.FlowRate == 0 {
		c.Mock.FlowRate = def.Mock.FlowRate
	}
	if c.Mock.SampleRate == 0 {
		c.Mock.SampleRate = def.Mock.SampleRate
	}
	if c.Mock.TareWeight == 0 {
		c.Mock.TareWeight = def.Mock.TareWeight
	}
	if c.Mock.RefillDelay == 0 {
		c.Mock.RefillDelay = def.Mock.RefillDelay
	}
}
