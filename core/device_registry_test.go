package core

import (
	"errors"
	"testing"
)

func TestRegistryEnumerate(t *testing.T) {
	r := NewRegistry()
	if err := r.Enumerate(3, DefaultAddress); err != nil {
		t.Fatalf("Enumerate failed: %v", err)
	}

	if r.Len() != 3 {
		t.Errorf("Expected 3 devices, got %d", r.Len())
	}
	for i, rec := range r.Devices() {
		if rec.Index != i {
			t.Errorf("Expected index %d, got %d", i, rec.Index)
		}
		if rec.Address != DefaultAddress {
			t.Errorf("Device %d: expected default address, got %s", i, rec.Address)
		}
		if rec.EnableBit != uint8(i) {
			t.Errorf("Device %d: expected enable bit %d, got %d", i, i, rec.EnableBit)
		}
		if rec.Assigned {
			t.Errorf("Device %d: should not be assigned yet", i)
		}
	}

	if err := r.Enumerate(2, DefaultAddress); !errors.Is(err, ErrAlreadyEnumerated) {
		t.Errorf("Expected ErrAlreadyEnumerated, got %v", err)
	}
}

func TestRegistryLimits(t *testing.T) {
	if err := NewRegistry().Enumerate(MaxDevices+1, DefaultAddress); !errors.Is(err, ErrTooManyDevices) {
		t.Errorf("Expected ErrTooManyDevices, got %v", err)
	}
	if err := NewRegistry().Enumerate(1, 0x80); err == nil {
		t.Errorf("Expected error for 8-bit default address")
	}

	r := NewRegistry()
	if err := r.Enumerate(MaxDevices, DefaultAddress); err != nil {
		t.Fatalf("Enumerate(%d) failed: %v", MaxDevices, err)
	}
	if _, err := r.Address(MaxDevices); !errors.Is(err, ErrNoSuchDevice) {
		t.Errorf("Expected ErrNoSuchDevice, got %v", err)
	}
	if _, ok := r.Device(-1); ok {
		t.Errorf("Expected negative index lookup to fail")
	}
}

func TestRegistryLookup(t *testing.T) {
	r := NewRegistry()
	if err := r.Enumerate(2, DefaultAddress); err != nil {
		t.Fatal(err)
	}

	// Unassigned records are not found by address
	if _, ok := r.Lookup(DefaultAddress); ok {
		t.Errorf("Expected no match before assignment")
	}

	r.setAddress(1, 0x2A)
	idx, ok := r.Lookup(0x2A)
	if !ok || idx != 1 {
		t.Errorf("Expected device 1 at 0x2a, got %d/%v", idx, ok)
	}
	if addr, _ := r.Address(1); addr != 0x2A {
		t.Errorf("Expected 0x2a, got %s", addr)
	}

	if !r.addressTaken(0, 0x2A) {
		t.Errorf("Expected 0x2a to be taken for device 0")
	}
	if r.addressTaken(1, 0x2A) {
		t.Errorf("A device's own address should not count as taken")
	}
}

func TestRegistrySetInfo(t *testing.T) {
	r := NewRegistry()
	if err := r.Enumerate(1, DefaultAddress); err != nil {
		t.Fatal(err)
	}

	if err := r.SetInfo(0, DeviceInfo{ModelID: 0xEE, RevisionID: 0x10}); err != nil {
		t.Fatalf("SetInfo failed: %v", err)
	}
	rec, _ := r.Device(0)
	if rec.Info.ModelID != 0xEE || rec.Info.RevisionID != 0x10 {
		t.Errorf("Unexpected info %+v", rec.Info)
	}

	if err := r.SetInfo(1, DeviceInfo{}); !errors.Is(err, ErrNoSuchDevice) {
		t.Errorf("Expected ErrNoSuchDevice, got %v", err)
	}

	// Copies must not alias the table
	devs := r.Devices()
	devs[0].Address = 0x50
	if addr, _ := r.Address(0); addr != DefaultAddress {
		t.Errorf("Devices() returned an aliasing slice")
	}
}
