// Enable-line (XSHUT) sequencing and address assignment for sensors that all
// power up at the same bus address
package core

import (
	"errors"
	"fmt"
	"math/bits"
)

var (
	ErrTooManyLines   = errors.New("more enable lines than a mask can hold")
	ErrAllEnabled     = errors.New("all enable lines already asserted")
	ErrInvalidAddress = errors.New("address does not fit in 7 bits")
	ErrAddressInUse   = errors.New("address already assigned to another device")
	ErrWrongModel     = errors.New("unexpected sensor model")
	ErrEnableInit     = errors.New("enable lines did not settle with exactly one device powered")
)

// SensorModel describes where a sensor family keeps the registers bring-up
// needs. Register indices longer than one byte are sent index-first.
type SensorModel struct {
	Name             string
	AddressRegister  []byte
	IDRegister       []byte
	ModelID          uint8
	RevisionRegister []byte
}

var (
	// VL53L0X keeps its 7-bit address in I2C_SLAVE_DEVICE_ADDRESS (0x8A)
	// and identifies itself with 0xEE at 0xC0.
	VL53L0X = SensorModel{
		Name:             "vl53l0x",
		AddressRegister:  []byte{0x8A},
		IDRegister:       []byte{0xC0},
		ModelID:          0xEE,
		RevisionRegister: []byte{0xC2},
	}

	// VL53L1X uses a 16-bit register map.
	VL53L1X = SensorModel{
		Name:             "vl53l1x",
		AddressRegister:  []byte{0x00, 0x01},
		IDRegister:       []byte{0x01, 0x0F},
		ModelID:          0xEA,
		RevisionRegister: []byte{0x01, 0x11},
	}
)

// SensorModelByName returns the model for a configuration name.
func SensorModelByName(name string) (SensorModel, bool) {
	switch name {
	case VL53L0X.Name:
		return VL53L0X, true
	case VL53L1X.Name:
		return VL53L1X, true
	}
	return SensorModel{}, false
}

// EnableLines drives one enable line per sensor as a bit mask: bit i is the
// line of device i. Low holds a sensor in reset, silent on the bus.
type EnableLines struct {
	gpio  GPIODriver
	pins  []GPIOPin
	state uint8
}

// NewEnableLines binds up to eight pins, in device order.
func NewEnableLines(gpio GPIODriver, pins []GPIOPin) (*EnableLines, error) {
	if len(pins) > 8 {
		return nil, ErrTooManyLines
	}
	return &EnableLines{gpio: gpio, pins: append([]GPIOPin(nil), pins...)}, nil
}

// Configure makes every line an output.
func (l *EnableLines) Configure() error {
	for _, pin := range l.pins {
		if err := l.gpio.ConfigureOutput(pin); err != nil {
			return err
		}
	}
	return nil
}

// All returns the mask with every wired line set.
func (l *EnableLines) All() uint8 {
	return uint8(uint16(1)<<len(l.pins) - 1)
}

// Write drives the lines to mask. Bits without a wired line are ignored.
func (l *EnableLines) Write(mask uint8) error {
	for i, pin := range l.pins {
		if err := l.gpio.SetPin(pin, mask&(1<<i) != 0); err != nil {
			return err
		}
	}
	l.state = mask & l.All()
	return nil
}

// Mask returns the lines currently driven high.
func (l *EnableLines) Mask() uint8 {
	return l.state
}

// AddressManager brings sensors onto the bus one at a time and moves each
// off the shared power-on address before the next one is enabled.
//
// Callers must complete AssignAddress for the most recently enabled device
// before calling EnableNext; otherwise two devices answer at the default
// address and the next assignment reaches both.
type AddressManager struct {
	regs     *Registers
	registry *Registry
	lines    *EnableLines
	model    SensorModel
	sleep    Sleeper
	mask     uint8
}

// ManagerOption customizes an AddressManager.
type ManagerOption func(*AddressManager)

// WithSleeper replaces the blocking settle delay.
func WithSleeper(s Sleeper) ManagerOption {
	return func(m *AddressManager) { m.sleep = s }
}

// WithModel selects the sensor family (VL53L0X by default).
func WithModel(model SensorModel) ManagerOption {
	return func(m *AddressManager) { m.model = model }
}

// NewAddressManager creates a manager for the devices enumerated in registry.
func NewAddressManager(regs *Registers, registry *Registry, lines *EnableLines, opts ...ManagerOption) *AddressManager {
	m := &AddressManager{
		regs:     regs,
		registry: registry,
		lines:    lines,
		model:    VL53L0X,
		sleep:    defaultSleep,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Mask returns the active enable mask.
func (m *AddressManager) Mask() uint8 {
	return m.mask
}

// Model returns the sensor family being managed.
func (m *AddressManager) Model() SensorModel {
	return m.model
}

// EnableInit resets every sensor, wakes them all once, then leaves only
// device 0 powered so exactly one device answers at the default address.
func (m *AddressManager) EnableInit() error {
	if err := m.lines.Configure(); err != nil {
		return err
	}

	if err := m.lines.Write(0); err != nil {
		return err
	}
	m.registry.powerCycled()
	m.sleep(EnableSettle)

	if err := m.lines.Write(m.lines.All()); err != nil {
		return err
	}
	m.sleep(EnableSettle)

	m.mask = 0x01
	if err := m.lines.Write(m.mask); err != nil {
		return err
	}

	if bits.OnesCount8(m.lines.Mask()) != 1 {
		return ErrEnableInit
	}

	Debugf("xshut: init done, mask=%08b", m.mask)
	return nil
}

// EnableNext powers one more device while keeping every earlier device
// enabled.
func (m *AddressManager) EnableNext() error {
	if m.mask == 0xFF {
		return ErrAllEnabled
	}

	if prev := bits.Len8(m.mask) - 1; prev >= 0 {
		if rec, ok := m.registry.Device(prev); ok && !rec.Assigned {
			Debugf("xshut: enabling next device while device %d is still unaddressed", prev)
		}
	}

	m.mask = m.mask<<1 | 0x01
	if err := m.lines.Write(m.mask); err != nil {
		return err
	}
	m.sleep(EnableSettle)

	Debugf("xshut: mask=%08b", m.mask)
	return nil
}

// AssignAddress moves the device at index from its current address to
// newAddr. The record is only updated once the write succeeded.
func (m *AddressManager) AssignAddress(index int, newAddr Address) error {
	rec, ok := m.registry.Device(index)
	if !ok {
		return fmt.Errorf("%w: %d", ErrNoSuchDevice, index)
	}
	if !newAddr.Valid() {
		return fmt.Errorf("%w: %s", ErrInvalidAddress, newAddr)
	}
	if m.registry.addressTaken(index, newAddr) {
		return fmt.Errorf("%w: %s", ErrAddressInUse, newAddr)
	}

	// The register holds the 7-bit form, not the wire form.
	w := make([]byte, 0, len(m.model.AddressRegister)+1)
	w = append(w, m.model.AddressRegister...)
	w = append(w, uint8(newAddr))

	status := m.regs.Transport().Tx(rec.Address, w, nil)
	m.sleep(AddressLatch)

	if !status.OK() {
		return &BringUpError{
			Index:  index,
			Op:     "assign address " + newAddr.String(),
			Status: status,
			Err:    status.Err(rec.Address, w[0]),
		}
	}

	m.registry.setAddress(index, newAddr)
	Debugf("xshut: device %d %s -> %s", index, rec.Address, newAddr)
	return nil
}

// Identify reads the model and revision of the device at index and caches
// them in the registry.
func (m *AddressManager) Identify(index int) error {
	if len(m.model.IDRegister) == 0 {
		return nil
	}

	addr, err := m.registry.Address(index)
	if err != nil {
		return err
	}

	var info DeviceInfo
	var buf [1]byte

	t := m.regs.Transport()
	if status := t.Tx(addr, m.model.IDRegister, buf[:]); !status.OK() {
		return &BringUpError{Index: index, Op: "read model id", Status: status, Err: status.Err(addr, m.model.IDRegister[0])}
	}
	info.ModelID = buf[0]

	if info.ModelID != m.model.ModelID {
		return &BringUpError{
			Index: index,
			Op:    "read model id",
			Err:   fmt.Errorf("%w: got 0x%02x, want 0x%02x for %s", ErrWrongModel, info.ModelID, m.model.ModelID, m.model.Name),
		}
	}

	if len(m.model.RevisionRegister) > 0 {
		if status := t.Tx(addr, m.model.RevisionRegister, buf[:]); !status.OK() {
			return &BringUpError{Index: index, Op: "read revision", Status: status, Err: status.Err(addr, m.model.RevisionRegister[0])}
		}
		info.RevisionID = buf[0]
	}

	return m.registry.SetInfo(index, info)
}
