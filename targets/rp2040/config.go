//go:build rp2040

package main

import (
	"machine"
	"time"

	"tofbus/core"
)

// Board wiring. The bus is bit-banged on the I2C0 default pins.
const (
	sdaPin = core.GPIOPin(machine.GPIO4)
	sclPin = core.GPIOPin(machine.GPIO5)

	busFrequency = 100000
	pollInterval = 50 * time.Millisecond
)

// One XSHUT line per sensor, in bring-up order
var enablePins = [...]core.GPIOPin{
	core.GPIOPin(machine.GPIO10),
	core.GPIOPin(machine.GPIO11),
	core.GPIOPin(machine.GPIO12),
}

var addresses = [...]core.Address{0x29, 0x2A, 0x2B}
