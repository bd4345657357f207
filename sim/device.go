// Package sim provides a simulated bus-master instance, enable lines and
// time-of-flight sensors, so the transport and bring-up logic can run without
// hardware.
package sim

import (
	"tofbus/core"
)

// VL53L0X register indices emulated by the simulator
const (
	RegSysRangeStart       = 0x00
	RegSystemInterruptClr  = 0x0B
	RegResultInterrupt     = 0x13
	RegResultRangeStatus   = 0x14
	RegResultRange         = RegResultRangeStatus + 10
	RegI2CSlaveAddress     = 0x8A
	RegIdentificationModel = 0xC0
	RegIdentificationRev   = 0xC2
)

// rangeValid is the device range status for a good sample (bits 6:3 = 11).
const rangeValid = 11 << 3

type devState uint8

const (
	stateIdle devState = iota
	stateIndex
	stateWrite
	stateRead
)

// Device is a simulated sensor with a flat register file. It answers only
// while powered, at its current address, and forgets everything when power
// is removed.
type Device struct {
	Name  string
	Model core.SensorModel

	indexWidth  int
	image       map[uint16]uint8
	mem         map[uint16]uint8
	addr        core.Address
	defaultAddr core.Address
	powered     bool

	state      devState
	index      uint16
	indexBytes int
	latch      *core.Address

	// MeasurePolls is how many interrupt-status reads return "not ready"
	// after a measurement is started.
	MeasurePolls int
	measuring    bool
	pollsLeft    int
	distance     uint16
	rangeStatus  uint8

	writes int
	reads  int
}

// NewVL53L0X returns a powered-down VL53L0X at the default address.
func NewVL53L0X(name string) *Device {
	return NewDevice(name, core.VL53L0X, 1, map[uint16]uint8{
		RegI2CSlaveAddress:     uint8(core.DefaultAddress),
		RegIdentificationModel: 0xEE,
		0xC1:                   0xAA,
		RegIdentificationRev:   0x10,
		RegResultRangeStatus:   rangeValid,
	})
}

// NewVL53L1X returns a powered-down VL53L1X. Only identification and
// address assignment are emulated.
func NewVL53L1X(name string) *Device {
	return NewDevice(name, core.VL53L1X, 2, map[uint16]uint8{
		0x0001: uint8(core.DefaultAddress),
		0x010F: 0xEA,
		0x0110: 0xCC,
		0x0111: 0x10,
	})
}

// NewDevice creates a device with the given index width (1 or 2 bytes) and
// power-on register image.
func NewDevice(name string, model core.SensorModel, indexWidth int, image map[uint16]uint8) *Device {
	d := &Device{
		Name:        name,
		Model:       model,
		indexWidth:  indexWidth,
		image:       image,
		defaultAddr: core.DefaultAddress,
	}
	d.reset()
	return d
}

func (d *Device) reset() {
	d.mem = make(map[uint16]uint8, len(d.image))
	for k, v := range d.image {
		d.mem[k] = v
	}
	d.addr = d.defaultAddr
	d.state = stateIdle
	d.latch = nil
	d.measuring = false
	d.rangeStatus = rangeValid
}

// SetPower drives the device's enable line. Removing power resets the
// device to its default address and power-on registers.
func (d *Device) SetPower(on bool) {
	if d.powered == on {
		return
	}
	d.powered = on
	if !on {
		d.reset()
	}
}

func (d *Device) Powered() bool         { return d.powered }
func (d *Device) Address() core.Address { return d.addr }

// Register returns the raw register value.
func (d *Device) Register(reg uint16) uint8 {
	return d.mem[reg]
}

// SetRegister overwrites a register without going through the bus.
func (d *Device) SetRegister(reg uint16, v uint8) {
	d.mem[reg] = v
}

// SetDistance sets the distance reported by the next measurement.
func (d *Device) SetDistance(mm uint16) {
	d.distance = mm
}

// SetRangeStatus sets the device range status (0-15) of the next
// measurement.
func (d *Device) SetRangeStatus(status uint8) {
	d.rangeStatus = (status & 0x0F) << 3
}

// Transfers returns how many data bytes the device accepted and returned.
func (d *Device) Transfers() (writes, reads int) {
	return d.writes, d.reads
}

// start resets the transaction state on a start or repeated start.
func (d *Device) start() {
	d.state = stateIdle
}

// address reports whether the device acknowledges a wire address.
func (d *Device) address(wire uint8) bool {
	if !d.powered || core.Address(wire>>1) != d.addr {
		d.state = stateIdle
		return false
	}
	if core.Direction(wire&1) == core.Receive {
		d.state = stateRead
	} else {
		d.state = stateIndex
		d.indexBytes = 0
		d.index = 0
	}
	return true
}

func (d *Device) write(b uint8) bool {
	switch d.state {
	case stateIndex:
		d.index = d.index<<8 | uint16(b)
		d.indexBytes++
		if d.indexBytes == d.indexWidth {
			d.state = stateWrite
		}
		return true
	case stateWrite:
		d.store(d.index, b)
		d.index++
		d.writes++
		return true
	}
	return false
}

func (d *Device) read() uint8 {
	if d.state != stateRead {
		return 0xFF
	}
	v := d.load(d.index)
	d.index++
	d.reads++
	return v
}

// stop ends the transaction. A new address takes effect here.
func (d *Device) stop() {
	if d.latch != nil {
		d.addr = *d.latch
		d.latch = nil
	}
	d.state = stateIdle
}

func (d *Device) addressRegister() uint16 {
	var reg uint16
	for _, b := range d.Model.AddressRegister {
		reg = reg<<8 | uint16(b)
	}
	return reg
}

func (d *Device) store(reg uint16, v uint8) {
	d.mem[reg] = v

	if reg == d.addressRegister() {
		addr := core.Address(v & 0x7F)
		d.latch = &addr
		return
	}

	if d.indexWidth != 1 {
		return
	}
	switch reg {
	case RegSysRangeStart:
		if v&0x01 != 0 {
			d.measuring = true
			d.pollsLeft = d.MeasurePolls
			d.mem[RegResultInterrupt] = 0
		}
	case RegSystemInterruptClr:
		if v&0x01 != 0 {
			d.mem[RegResultInterrupt] &^= 0x07
		}
	}
}

func (d *Device) load(reg uint16) uint8 {
	if d.indexWidth == 1 && reg == RegResultInterrupt && d.measuring {
		if d.pollsLeft > 0 {
			d.pollsLeft--
			return d.mem[reg]
		}
		d.complete()
	}
	return d.mem[reg]
}

// complete latches a finished single-shot measurement.
func (d *Device) complete() {
	d.measuring = false
	d.mem[RegSysRangeStart] &^= 0x01
	d.mem[RegResultInterrupt] = 0x04
	d.mem[RegResultRangeStatus] = d.rangeStatus
	d.mem[RegResultRange] = uint8(d.distance >> 8)
	d.mem[RegResultRange+1] = uint8(d.distance)
}
