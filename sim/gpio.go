package sim

import (
	"fmt"

	"tofbus/core"
)

// PinWrite is one recorded output change.
type PinWrite struct {
	Pin   core.GPIOPin
	Value bool
}

// GPIO is a simulated GPIO port. A pin can gate a device's power, modelling
// an XSHUT line.
type GPIO struct {
	outputs map[core.GPIOPin]bool
	levels  map[core.GPIOPin]bool
	power   map[core.GPIOPin]*Device
	writes  []PinWrite
}

func NewGPIO() *GPIO {
	return &GPIO{
		outputs: make(map[core.GPIOPin]bool),
		levels:  make(map[core.GPIOPin]bool),
		power:   make(map[core.GPIOPin]*Device),
	}
}

// Attach makes pin the enable line of d.
func (g *GPIO) Attach(pin core.GPIOPin, d *Device) {
	g.power[pin] = d
	d.SetPower(g.levels[pin])
}

func (g *GPIO) ConfigureOutput(pin core.GPIOPin) error {
	g.outputs[pin] = true
	return nil
}

// ConfigureInputPullUp releases the pin; the pull-up takes it high.
func (g *GPIO) ConfigureInputPullUp(pin core.GPIOPin) error {
	g.outputs[pin] = false
	g.set(pin, true)
	return nil
}

func (g *GPIO) SetPin(pin core.GPIOPin, value bool) error {
	if !g.outputs[pin] {
		return fmt.Errorf("sim: pin %d is not an output", pin)
	}
	g.writes = append(g.writes, PinWrite{Pin: pin, Value: value})
	g.set(pin, value)
	return nil
}

func (g *GPIO) GetPin(pin core.GPIOPin) (bool, error) {
	return g.levels[pin], nil
}

func (g *GPIO) set(pin core.GPIOPin, value bool) {
	g.levels[pin] = value
	if d, ok := g.power[pin]; ok {
		d.SetPower(value)
	}
}

// Level returns the current level of pin.
func (g *GPIO) Level(pin core.GPIOPin) bool {
	return g.levels[pin]
}

// Writes returns every recorded output change.
func (g *GPIO) Writes() []PinWrite {
	return g.writes
}
