package gpio

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/stianeikeland/go-rpio/v4"

	"tofbus/core"
)

// RPIO drives Raspberry Pi pins through /dev/gpiomem. Pins are BCM numbers,
// written either bare ("17") or prefixed ("GPIO17").
type RPIO struct{}

// OpenRPIO maps the GPIO registers. Close releases them.
func OpenRPIO() (*RPIO, error) {
	if err := rpio.Open(); err != nil {
		return nil, fmt.Errorf("could not open gpio: %w", err)
	}
	return &RPIO{}, nil
}

func (*RPIO) Close() error {
	return rpio.Close()
}

func (*RPIO) Pin(name string) (core.GPIOPin, error) {
	return ParseBCM(name)
}

// ParseBCM parses a BCM pin name.
func ParseBCM(name string) (core.GPIOPin, error) {
	n, err := strconv.ParseUint(strings.TrimPrefix(strings.ToUpper(name), "GPIO"), 10, 8)
	if err != nil || n > 53 {
		return 0, fmt.Errorf("%w: %s", ErrUnknownPin, name)
	}
	return core.GPIOPin(n), nil
}

func (*RPIO) ConfigureOutput(pin core.GPIOPin) error {
	p := rpio.Pin(pin)
	p.Low()
	p.Output()
	return nil
}

func (*RPIO) ConfigureInputPullUp(pin core.GPIOPin) error {
	p := rpio.Pin(pin)
	p.Input()
	p.PullUp()
	return nil
}

func (*RPIO) SetPin(pin core.GPIOPin, value bool) error {
	if value {
		rpio.Pin(pin).High()
	} else {
		rpio.Pin(pin).Low()
	}
	return nil
}

func (*RPIO) GetPin(pin core.GPIOPin) (bool, error) {
	return rpio.Pin(pin).Read() == rpio.High, nil
}
