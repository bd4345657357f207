package config

import (
	"fmt"

	"tofbus/core"
)

// Validate checks configuration correctness.
// It does not mutate the configuration.
func Validate(cfg *Config) error {
	switch cfg.Bus.Backend {
	case BackendSim, BackendPeriph, BackendRPIO:
	default:
		return fmt.Errorf("bus: unknown backend %q", cfg.Bus.Backend)
	}

	if cfg.Bus.FrequencyHz == 0 || cfg.Bus.FrequencyHz > 400000 {
		return fmt.Errorf("bus: frequency_hz %d outside 1..400000", cfg.Bus.FrequencyHz)
	}
	if cfg.Bus.SystemClockHz < 20*cfg.Bus.FrequencyHz {
		return fmt.Errorf("bus: system_clock_hz %d too low for %d Hz", cfg.Bus.SystemClockHz, cfg.Bus.FrequencyHz)
	}

	model, ok := core.SensorModelByName(cfg.Sensors.Model)
	if !ok {
		return fmt.Errorf("sensors: unknown model %q", cfg.Sensors.Model)
	}
	// The simulated sensors implement single-shot ranging only
	if cfg.Bus.Backend == BackendSim && model.Name != core.VL53L0X.Name {
		return fmt.Errorf("sensors: backend sim cannot range model %s", model.Name)
	}

	n := len(cfg.Sensors.Addresses)
	if n == 0 {
		return fmt.Errorf("sensors: no addresses")
	}
	if n > core.MaxDevices {
		return fmt.Errorf("sensors: %d sensors, at most %d supported", n, core.MaxDevices)
	}

	seen := make(map[uint8]int)
	for i, a := range cfg.Sensors.Addresses {
		if !core.Address(a).Valid() || a == 0 {
			return fmt.Errorf("sensors: address 0x%02x of sensor %d is not a 7-bit device address", a, i)
		}
		if prev, exists := seen[a]; exists {
			return fmt.Errorf("sensors: address 0x%02x used by sensors %d and %d", a, prev, i)
		}
		seen[a] = i
	}

	// The simulator creates its own lines; real backends need one per sensor.
	if cfg.Bus.Backend != BackendSim {
		if cfg.Bus.SDA == "" || cfg.Bus.SCL == "" {
			return fmt.Errorf("bus: backend %s needs sda and scl pins", cfg.Bus.Backend)
		}
		if len(cfg.Sensors.Enable) != n {
			return fmt.Errorf("sensors: %d enable lines for %d sensors", len(cfg.Sensors.Enable), n)
		}
	} else if len(cfg.Sensors.Enable) != 0 && len(cfg.Sensors.Enable) != n {
		return fmt.Errorf("sensors: %d enable lines for %d sensors", len(cfg.Sensors.Enable), n)
	}

	if cfg.Poll.IntervalMs < 0 {
		return fmt.Errorf("poll: negative interval_ms")
	}
	if cfg.Poll.Count < 0 {
		return fmt.Errorf("poll: negative count")
	}
	if cfg.Serial.Device != "" && cfg.Serial.Baud <= 0 {
		return fmt.Errorf("serial: baud must be positive")
	}

	return nil
}
