package ranging

import (
	"errors"

	"tinygo.org/x/drivers/vl53l1x"

	"tofbus/core"
)

// Out-of-range readings from the VL53L1X driver are capped here
const maxDistance = 8190

var ErrNoSample = errors.New("sensor returned no sample")

// VL53L1X wraps the tinygo driver. The driver talks to a core.DeviceBus, so
// it follows the sensor to whatever address bring-up assigned.
type VL53L1X struct {
	index   int
	started bool

	// Driver entry points, held as funcs so tests can stand in for the chip
	configure func(use2v8 bool)
	budget    func(us uint32)
	start     func(periodMs uint32)
	read      func(blocking bool) uint16
}

func NewVL53L1X(regs *core.Registers, registry *core.Registry, index int) *VL53L1X {
	dev := vl53l1x.New(regs.DeviceBus(registry, index))
	return &VL53L1X{
		index:     index,
		configure: func(use2v8 bool) { dev.Configure(use2v8) },
		budget:    func(us uint32) { dev.SetMeasurementTimingBudget(us) },
		start:     func(periodMs uint32) { dev.StartContinuous(periodMs) },
		read:      func(blocking bool) uint16 { return uint16(dev.Read(blocking)) },
	}
}

func (s *VL53L1X) Index() int {
	return s.index
}

// Configure loads the default settings and starts continuous ranging with
// the given timing budget. The inter-measurement period is the budget
// rounded up to whole milliseconds.
func (s *VL53L1X) Configure(use2v8 bool, timingBudgetUs uint32) {
	s.configure(use2v8)
	s.budget(timingBudgetUs)
	s.start((timingBudgetUs + 999) / 1000)
	s.started = true
}

// Range blocks until the next sample.
func (s *VL53L1X) Range() (uint16, error) {
	if !s.started {
		s.Configure(true, 50000)
	}
	mm := s.read(true)
	if mm == 0 {
		return 0, ErrNoSample
	}
	if mm > maxDistance {
		mm = maxDistance
	}
	return mm, nil
}
