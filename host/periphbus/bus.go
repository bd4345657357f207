// Package periphbus exposes the register layer as a periph.io i2c.Bus, so
// periph device drivers and tools can share the bus the sensors sit on.
package periphbus

import (
	"errors"
	"fmt"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"

	"tofbus/core"
)

var ErrSpeedFixed = errors.New("bus speed is fixed once the transport is initialized")

// Bus implements i2c.BusCloser on top of core.Registers.
type Bus struct {
	name string
	regs *core.Registers
}

func New(name string, regs *core.Registers) *Bus {
	return &Bus{name: name, regs: regs}
}

func (b *Bus) String() string {
	return b.name
}

// Tx runs one transaction. w[0] is the register index.
func (b *Bus) Tx(addr uint16, w, r []byte) error {
	if addr > 0x7F {
		return fmt.Errorf("%s: address 0x%x is not a 7-bit address", b.name, addr)
	}
	return b.regs.Tx(addr, w, r)
}

// SetSpeed accepts only the rate the transport was initialized with.
func (b *Bus) SetSpeed(f physic.Frequency) error {
	cfg := b.regs.Transport().Config()
	if f == physic.Frequency(cfg.FrequencyHz)*physic.Hertz {
		return nil
	}
	return fmt.Errorf("%s: %w (%s)", b.name, ErrSpeedFixed, physic.Frequency(cfg.FrequencyHz)*physic.Hertz)
}

func (b *Bus) Close() error {
	return nil
}

// Register makes the bus available through i2creg.Open(name).
func Register(name string, regs *core.Registers) error {
	return i2creg.Register(name, nil, -1, func() (i2c.BusCloser, error) {
		return New(name, regs), nil
	})
}

// Scan probes every address in [from, to] with a one byte read and returns
// the ones that acknowledged.
func Scan(bus i2c.Bus, from, to uint16) []uint16 {
	var found []uint16
	buf := make([]byte, 1)
	for addr := from; addr <= to; addr++ {
		dev := i2c.Dev{Bus: bus, Addr: addr}
		if err := dev.Tx(nil, buf); err == nil {
			found = append(found, addr)
		}
	}
	return found
}
