package sim

import (
	"fmt"

	"tofbus/core"
)

// Rig is a bus with n sensors, each on its own enable pin (pin i powers
// sensor i).
type Rig struct {
	Controller *Controller
	GPIO       *GPIO
	Devices    []*Device
	Pins       []core.GPIOPin
}

// NewRig builds a rig of n sensors created by newDevice.
func NewRig(n int, newDevice func(name string) *Device) *Rig {
	r := &Rig{
		Controller: NewController(),
		GPIO:       NewGPIO(),
	}
	for i := 0; i < n; i++ {
		d := newDevice(fmt.Sprintf("tof%d", i))
		pin := core.GPIOPin(i)
		r.Controller.Attach(d)
		r.GPIO.Attach(pin, d)
		r.Devices = append(r.Devices, d)
		r.Pins = append(r.Pins, pin)
	}
	return r
}

// Powered returns the enable state of every device as a mask.
func (r *Rig) Powered() uint8 {
	var mask uint8
	for i, d := range r.Devices {
		if d.Powered() {
			mask |= 1 << i
		}
	}
	return mask
}
