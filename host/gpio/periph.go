// Package gpio provides core.GPIODriver backends for Linux boards. Pins are
// named in the configuration; Pin maps a name to the number core code uses.
package gpio

import (
	"errors"
	"fmt"

	pgpio "periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"

	"tofbus/core"
)

var ErrUnknownPin = errors.New("unknown pin")

// Periph drives pins through periph.io.
type Periph struct {
	lookup func(name string) pgpio.PinIO
	pins   []pgpio.PinIO
}

// OpenPeriph loads the periph.io host drivers.
func OpenPeriph() (*Periph, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("could not init host: %w", err)
	}
	return NewPeriph(gpioreg.ByName), nil
}

// NewPeriph creates a backend resolving names with lookup.
func NewPeriph(lookup func(name string) pgpio.PinIO) *Periph {
	return &Periph{lookup: lookup}
}

// Pin resolves name and returns its number for this backend.
func (p *Periph) Pin(name string) (core.GPIOPin, error) {
	io := p.lookup(name)
	if io == nil {
		return 0, fmt.Errorf("%w: %s", ErrUnknownPin, name)
	}
	p.pins = append(p.pins, io)
	return core.GPIOPin(len(p.pins) - 1), nil
}

func (p *Periph) pin(pin core.GPIOPin) (pgpio.PinIO, error) {
	if int(pin) >= len(p.pins) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownPin, pin)
	}
	return p.pins[pin], nil
}

func (p *Periph) ConfigureOutput(pin core.GPIOPin) error {
	io, err := p.pin(pin)
	if err != nil {
		return err
	}
	return io.Out(pgpio.Low)
}

func (p *Periph) ConfigureInputPullUp(pin core.GPIOPin) error {
	io, err := p.pin(pin)
	if err != nil {
		return err
	}
	return io.In(pgpio.PullUp, pgpio.NoEdge)
}

func (p *Periph) SetPin(pin core.GPIOPin, value bool) error {
	io, err := p.pin(pin)
	if err != nil {
		return err
	}
	return io.Out(pgpio.Level(value))
}

func (p *Periph) GetPin(pin core.GPIOPin) (bool, error) {
	io, err := p.pin(pin)
	if err != nil {
		return false, err
	}
	return io.Read() == pgpio.High, nil
}
