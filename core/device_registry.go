package core

import (
	"errors"
	"fmt"
)

// MaxDevices is the number of sensors one enable-line port can sequence.
const MaxDevices = 8

// DefaultAddress is the address every VL53L0X/VL53L1X answers at after
// power-up.
const DefaultAddress Address = 0x29

var (
	ErrTooManyDevices    = errors.New("more devices than the registry can hold")
	ErrAlreadyEnumerated = errors.New("devices already enumerated")
	ErrNoSuchDevice      = errors.New("no such device index")
)

// DeviceInfo is metadata read from a sensor during bring-up.
type DeviceInfo struct {
	ModelID    uint8
	RevisionID uint8
}

// DeviceRecord tracks one physical sensor.
type DeviceRecord struct {
	Index     int     // Logical index, fixed by enumeration order
	Address   Address // Current 7-bit address
	EnableBit uint8   // Bit of the enable-line mask powering this device
	Assigned  bool    // Address assignment completed
	Info      DeviceInfo
}

// Registry maps logical sensor indices to their current bus address. Every
// component resolves addresses through it so nothing holds a stale copy
// after reassignment.
type Registry struct {
	devices     [MaxDevices]DeviceRecord
	count       int
	defaultAddr Address
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Enumerate creates n records, all at defaultAddr, with enable bits in
// index order. It can only run once per registry.
func (r *Registry) Enumerate(n int, defaultAddr Address) error {
	if r.count != 0 {
		return ErrAlreadyEnumerated
	}
	if n < 0 || n > MaxDevices {
		return ErrTooManyDevices
	}
	if !defaultAddr.Valid() {
		return fmt.Errorf("default address %s is not a 7-bit address", defaultAddr)
	}

	for i := 0; i < n; i++ {
		r.devices[i] = DeviceRecord{
			Index:     i,
			Address:   defaultAddr,
			EnableBit: uint8(i),
		}
	}
	r.count = n
	r.defaultAddr = defaultAddr
	return nil
}

// Len returns the number of enumerated devices.
func (r *Registry) Len() int {
	return r.count
}

// Device returns a copy of the record at index.
func (r *Registry) Device(index int) (DeviceRecord, bool) {
	if index < 0 || index >= r.count {
		return DeviceRecord{}, false
	}
	return r.devices[index], true
}

// Address resolves a logical index to the device's current bus address.
func (r *Registry) Address(index int) (Address, error) {
	if index < 0 || index >= r.count {
		return 0, fmt.Errorf("%w: %d", ErrNoSuchDevice, index)
	}
	return r.devices[index].Address, nil
}

// Lookup finds the index of an assigned device by its bus address.
func (r *Registry) Lookup(addr Address) (int, bool) {
	for i := 0; i < r.count; i++ {
		if r.devices[i].Assigned && r.devices[i].Address == addr {
			return i, true
		}
	}
	return -1, false
}

// Devices returns a copy of all enumerated records.
func (r *Registry) Devices() []DeviceRecord {
	out := make([]DeviceRecord, r.count)
	copy(out, r.devices[:r.count])
	return out
}

// SetInfo caches identification data for a device.
func (r *Registry) SetInfo(index int, info DeviceInfo) error {
	if index < 0 || index >= r.count {
		return fmt.Errorf("%w: %d", ErrNoSuchDevice, index)
	}
	r.devices[index].Info = info
	return nil
}

// setAddress records a completed address assignment.
func (r *Registry) setAddress(index int, addr Address) {
	r.devices[index].Address = addr
	r.devices[index].Assigned = true
}

// addressTaken reports whether another assigned device already owns addr.
func (r *Registry) addressTaken(index int, addr Address) bool {
	other, ok := r.Lookup(addr)
	return ok && other != index
}

// powerCycled returns every record to the power-on address. Identification
// data is kept; it does not change across a reset.
func (r *Registry) powerCycled() {
	for i := 0; i < r.count; i++ {
		r.devices[i].Address = r.defaultAddr
		r.devices[i].Assigned = false
	}
}
