// Package config holds the host application's YAML configuration.
package config

type Config struct {
	Bus     BusConfig     `yaml:"bus"`
	Sensors SensorsConfig `yaml:"sensors"`
	Serial  SerialConfig  `yaml:"serial"`
	Poll    PollConfig    `yaml:"poll"`
	Debug   bool          `yaml:"debug"`
}

// ---- BUS ----

type BusConfig struct {
	// sim, periph or rpio
	Backend string `yaml:"backend"`

	// Pin names as the backend knows them ("GPIO2" for periph, "2" for rpio)
	SDA string `yaml:"sda"`
	SCL string `yaml:"scl"`

	FrequencyHz   uint32 `yaml:"frequency_hz"`
	SystemClockHz uint32 `yaml:"system_clock_hz"`
}

// ---- SENSORS ----

type SensorsConfig struct {
	Model string `yaml:"model"` // vl53l0x, vl53l1x

	// One XSHUT line per sensor, in bring-up order
	Enable []string `yaml:"enable"`

	// Address per sensor; the first sensor may keep 0x29
	Addresses []uint8 `yaml:"addresses"`
}

// ---- SERIAL ----

// SerialConfig is optional; an empty device disables framed output.
type SerialConfig struct {
	Device string `yaml:"device"`
	Baud   int    `yaml:"baud"`
}

// ---- POLL ----

type PollConfig struct {
	IntervalMs int `yaml:"interval_ms"`
	Count      int `yaml:"count"` // 0 = run forever
}
