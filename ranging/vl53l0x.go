// Package ranging takes distance samples from sensors that bring-up has
// placed on the bus. It does no ranging mathematics of its own.
package ranging

import (
	"errors"

	"tofbus/core"
)

// VL53L0X registers used for a single-shot measurement
const (
	regSysRangeStart      = 0x00
	regSystemInterruptClr = 0x0B
	regResultInterrupt    = 0x13
	regResultRangeStatus  = 0x14
	regResultRange        = regResultRangeStatus + 10
)

// DefaultMaxPolls bounds how often the interrupt status is read before a
// measurement counts as lost.
const DefaultMaxPolls = 100

var ErrNotReady = errors.New("measurement did not complete")

// Ranger produces one distance sample for a registry slot.
type Ranger interface {
	Index() int
	Range() (uint16, error)
}

// VL53L0X runs single-shot measurements through the register layer. The
// sensor's address is resolved through the registry on every sample.
type VL53L0X struct {
	regs     *core.Registers
	registry *core.Registry
	index    int

	MaxPolls int
}

func NewVL53L0X(regs *core.Registers, registry *core.Registry, index int) *VL53L0X {
	return &VL53L0X{regs: regs, registry: registry, index: index, MaxPolls: DefaultMaxPolls}
}

func (s *VL53L0X) Index() int {
	return s.index
}

// Range starts a measurement, waits for it and returns the distance in mm.
func (s *VL53L0X) Range() (uint16, error) {
	addr, err := s.registry.Address(s.index)
	if err != nil {
		return 0, err
	}

	if status := s.regs.WriteUint8(addr, regSysRangeStart, 0x01); !status.OK() {
		return 0, status.Err(addr, regSysRangeStart)
	}

	ready := false
	for i := 0; i < s.MaxPolls; i++ {
		v, status := s.regs.ReadUint8(addr, regResultInterrupt)
		if !status.OK() {
			return 0, status.Err(addr, regResultInterrupt)
		}
		if v&0x07 != 0 {
			ready = true
			break
		}
	}
	if !ready {
		return 0, ErrNotReady
	}

	mm, status := s.regs.ReadUint16(addr, regResultRange)
	if !status.OK() {
		return 0, status.Err(addr, regResultRange)
	}

	if status := s.regs.WriteUint8(addr, regSystemInterruptClr, 0x01); !status.OK() {
		return 0, status.Err(addr, regSystemInterruptClr)
	}
	return mm, nil
}
