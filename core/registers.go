package core

import (
	"encoding/binary"

	"tinygo.org/x/drivers"
)

// Registers offers typed register access on top of a Transport. Multi-byte
// values are big-endian on the wire. There is no retry logic here; the raw
// status of the underlying transaction is returned unchanged.
type Registers struct {
	t *Transport
}

// Registers satisfies the tinygo driver bus contract, so drivers from that
// collection can share the bus.
var _ drivers.I2C = (*Registers)(nil)

// NewRegisters creates the register layer for a transport.
func NewRegisters(t *Transport) *Registers {
	return &Registers{t: t}
}

// Transport returns the underlying transport.
func (r *Registers) Transport() *Transport {
	return r.t
}

func (r *Registers) ReadMulti(addr Address, reg uint8, buf []byte) Status {
	return r.t.Read(addr, reg, buf)
}

func (r *Registers) WriteMulti(addr Address, reg uint8, data []byte) Status {
	return r.t.Write(addr, reg, data)
}

func (r *Registers) ReadUint8(addr Address, reg uint8) (uint8, Status) {
	var buf [1]byte
	status := r.t.Read(addr, reg, buf[:])
	return buf[0], status
}

func (r *Registers) ReadUint16(addr Address, reg uint8) (uint16, Status) {
	var buf [2]byte
	status := r.t.Read(addr, reg, buf[:])
	return binary.BigEndian.Uint16(buf[:]), status
}

func (r *Registers) ReadUint32(addr Address, reg uint8) (uint32, Status) {
	var buf [4]byte
	status := r.t.Read(addr, reg, buf[:])
	return binary.BigEndian.Uint32(buf[:]), status
}

func (r *Registers) WriteUint8(addr Address, reg uint8, value uint8) Status {
	return r.t.Write(addr, reg, []byte{value})
}

func (r *Registers) WriteUint16(addr Address, reg uint8, value uint16) Status {
	var buf [2]byte
	binary.BigEndian.PutUint16(buf[:], value)
	return r.t.Write(addr, reg, buf[:])
}

func (r *Registers) WriteUint32(addr Address, reg uint8, value uint32) Status {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], value)
	return r.t.Write(addr, reg, buf[:])
}

// Tx implements drivers.I2C. The first written byte is the register index;
// 16-bit register maps simply carry their low index byte as data.
func (r *Registers) Tx(addr uint16, w, rd []byte) error {
	a := Address(addr)
	var reg uint8
	if len(w) > 0 {
		reg = w[0]
	}
	return r.t.Tx(a, w, rd).Err(a, reg)
}

// ReadRegister reads len(buf) bytes from an 8-bit register.
func (r *Registers) ReadRegister(addr uint8, reg uint8, buf []byte) error {
	return r.t.Read(Address(addr), reg, buf).Err(Address(addr), reg)
}

// WriteRegister writes buf to an 8-bit register.
func (r *Registers) WriteRegister(addr uint8, reg uint8, buf []byte) error {
	return r.t.Write(Address(addr), reg, buf).Err(Address(addr), reg)
}

// DeviceBus returns a drivers.I2C whose transactions always go to the
// current registry address of the sensor at index, whatever address the
// driver itself believes it is talking to.
func (r *Registers) DeviceBus(registry *Registry, index int) *DeviceBus {
	return &DeviceBus{regs: r, registry: registry, index: index}
}

// DeviceBus routes a driver to one registry slot.
type DeviceBus struct {
	regs     *Registers
	registry *Registry
	index    int
}

var _ drivers.I2C = (*DeviceBus)(nil)

// Tx implements drivers.I2C.
func (b *DeviceBus) Tx(_ uint16, w, r []byte) error {
	addr, err := b.registry.Address(b.index)
	if err != nil {
		return err
	}
	return b.regs.Tx(uint16(addr), w, r)
}

func (b *DeviceBus) ReadRegister(_ uint8, reg uint8, buf []byte) error {
	return b.Tx(0, []byte{reg}, buf)
}

func (b *DeviceBus) WriteRegister(_ uint8, reg uint8, buf []byte) error {
	return b.Tx(0, append([]byte{reg}, buf...), nil)
}
