package core

// I2CCommand is a value written to a bus instance's master control register.
// The bit layout follows the common "MCS" style master found on Cortex-M parts.
type I2CCommand uint8

const (
	CmdRun   I2CCommand = 0x01 // Master enable: clock the next byte
	CmdStart I2CCommand = 0x02 // Generate start (or restart)
	CmdStop  I2CCommand = 0x04 // Generate stop after the byte (or alone)
	CmdAck   I2CCommand = 0x08 // Positive data acknowledge on receive
)

// Direction is the read/write bit carried in the low bit of a wire address.
type Direction uint8

const (
	Transmit Direction = 0
	Receive  Direction = 1
)

// I2CConfig describes how a bus instance is brought up.
type I2CConfig struct {
	// SystemClockHz is the peripheral input clock.
	SystemClockHz uint32

	// FrequencyHz is the SCL rate. Only standard (100k) and fast (400k)
	// are meaningful for the sensors this stack drives.
	FrequencyHz uint32

	// Bus selects the physical instance on parts that have several.
	Bus I2CBusID
}

// I2CBusID identifies a specific I2C bus (e.g., I2C0, I2C1).
type I2CBusID uint8

// TimerPeriod returns the clock divisor for the configured rate:
// SCL_PERIOD = 2 * (1 + TPR) * 10 * CLK_PRD.
func (c I2CConfig) TimerPeriod() uint32 {
	if c.FrequencyHz == 0 {
		return 0
	}
	tpr := c.SystemClockHz / (20 * c.FrequencyHz)
	if tpr == 0 {
		return 0
	}
	return tpr - 1
}

// I2CController is one bus-master instance as seen through its registers.
// Transport logic is written once against this interface; each physical or
// simulated instance implements it.
type I2CController interface {
	// Configure enables the master function, muxes the pins and programs
	// the clock divisor.
	Configure(cfg I2CConfig) error

	// Busy reports whether the last command is still being clocked out.
	Busy() bool

	// Status returns the error bits latched by the last command.
	Status() Status

	// SetSlaveAddress loads the wire-form address (7-bit address shifted
	// left, direction in bit 0).
	SetSlaveAddress(wire uint8)

	// SetData loads the byte to transmit with the next command.
	SetData(b uint8)

	// Data returns the last byte received (or the last byte loaded).
	Data() uint8

	// Control starts the operation described by cmd.
	Control(cmd I2CCommand)
}
