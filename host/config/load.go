package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	BackendSim    = "sim"
	BackendPeriph = "periph"
	BackendRPIO   = "rpio"
)

const (
	defaultFrequencyHz   = 100000
	defaultSystemClockHz = 80000000
	defaultModel         = "vl53l0x"
	defaultBaud          = 115200
	defaultIntervalMs    = 100
)

// Load reads path, fills in defaults and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML document. Unknown keys are rejected.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	Defaults(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Defaults fills zero fields.
func Defaults(cfg *Config) {
	if cfg.Bus.Backend == "" {
		cfg.Bus.Backend = BackendSim
	}
	if cfg.Bus.FrequencyHz == 0 {
		cfg.Bus.FrequencyHz = defaultFrequencyHz
	}
	if cfg.Bus.SystemClockHz == 0 {
		cfg.Bus.SystemClockHz = defaultSystemClockHz
	}
	if cfg.Sensors.Model == "" {
		cfg.Sensors.Model = defaultModel
	}
	if cfg.Serial.Device != "" && cfg.Serial.Baud == 0 {
		cfg.Serial.Baud = defaultBaud
	}
	if cfg.Poll.IntervalMs == 0 {
		cfg.Poll.IntervalMs = defaultIntervalMs
	}
}
