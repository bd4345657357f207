package ranging

import (
	"fmt"

	"tofbus/core"
)

// Reading is one distance sample.
type Reading struct {
	Index    int
	Distance uint16 // mm
}

// SampleError is a sample lost on one sensor.
type SampleError struct {
	Index int
	Err   error
}

func (e *SampleError) Error() string {
	return fmt.Sprintf("sensor %d: %v", e.Index, e.Err)
}

func (e *SampleError) Unwrap() error {
	return e.Err
}

// Poll takes one sample from each ranger in order. A failing sensor is
// logged and skipped; the others are still sampled.
func Poll(rangers []Ranger) (readings []Reading, skipped []error) {
	for _, r := range rangers {
		mm, err := r.Range()
		if err != nil {
			core.Debugf("ranging: sensor %d skipped: %v", r.Index(), err)
			skipped = append(skipped, &SampleError{Index: r.Index(), Err: err})
			continue
		}
		readings = append(readings, Reading{Index: r.Index(), Distance: mm})
	}
	return readings, skipped
}

// ForModel creates the ranger matching a sensor family.
func ForModel(model core.SensorModel, regs *core.Registers, registry *core.Registry, index int) (Ranger, error) {
	switch model.Name {
	case core.VL53L0X.Name:
		return NewVL53L0X(regs, registry, index), nil
	case core.VL53L1X.Name:
		return NewVL53L1X(regs, registry, index), nil
	}
	return nil, fmt.Errorf("no ranger for sensor model %q", model.Name)
}
