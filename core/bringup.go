package core

import (
	"errors"
	"fmt"
)

// BringUpError reports the device that could not be initialized.
type BringUpError struct {
	Index  int
	Op     string
	Status Status // Raw bus status, zero when the failure was not on the bus
	Err    error
}

func (e *BringUpError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("could not initialize sensor %d: %s", e.Index, e.Op)
	}
	return fmt.Sprintf("could not initialize sensor %d: %s: %v", e.Index, e.Op, e.Err)
}

func (e *BringUpError) Unwrap() error {
	return e.Err
}

var ErrAddressPlan = errors.New("invalid address plan")

// parkAddress is the first address tried when a device has to step aside.
// 0x78 and above are reserved by the I2C specification.
const parkAddress Address = 0x77

// BringUp enables every enumerated device in index order and moves device i
// to addresses[i]. A device may keep the default address; if later devices
// still have to come up, it is parked on a free address and moved back once
// the default address is no longer contended.
func (m *AddressManager) BringUp(addresses []Address) error {
	n := m.registry.Len()
	if err := m.checkPlan(addresses, n); err != nil {
		return err
	}
	if n == 0 {
		return nil
	}

	if err := m.EnableInit(); err != nil {
		return &BringUpError{Index: 0, Op: "enable init", Err: err}
	}

	parked := -1
	for i := 0; i < n; i++ {
		if i > 0 {
			if err := m.EnableNext(); err != nil {
				return &BringUpError{Index: i, Op: "enable", Err: err}
			}
		}

		if err := m.Identify(i); err != nil {
			return err
		}

		target := addresses[i]
		if target == DefaultAddress && i < n-1 {
			park, ok := m.freeAddress(addresses)
			if !ok {
				return &BringUpError{Index: i, Op: "park", Err: ErrAddressPlan}
			}
			target = park
			parked = i
		}

		if err := m.AssignAddress(i, target); err != nil {
			return err
		}
	}

	if parked >= 0 {
		if err := m.AssignAddress(parked, DefaultAddress); err != nil {
			return err
		}
	}

	Debugf("xshut: %d devices up", n)
	return nil
}

func (m *AddressManager) checkPlan(addresses []Address, n int) error {
	if len(addresses) != n {
		return fmt.Errorf("%w: %d addresses for %d devices", ErrAddressPlan, len(addresses), n)
	}

	seen := make(map[Address]bool, n)
	for i, addr := range addresses {
		if !addr.Valid() {
			return fmt.Errorf("%w: device %d: %w", ErrAddressPlan, i, ErrInvalidAddress)
		}
		if seen[addr] {
			return fmt.Errorf("%w: address %s used twice", ErrAddressPlan, addr)
		}
		seen[addr] = true
	}
	return nil
}

// freeAddress picks an address that is neither planned nor currently held
// and that no device on the bus acknowledges.
func (m *AddressManager) freeAddress(plan []Address) (Address, bool) {
	for addr := parkAddress; addr >= 0x08; addr-- {
		if addr == DefaultAddress || containsAddress(plan, addr) {
			continue
		}
		if _, taken := m.registry.Lookup(addr); taken {
			continue
		}
		// Register select only: a free address fails with an address nack
		if status := m.regs.ReadMulti(addr, 0, nil); status&StatusAddrNack == 0 {
			Debugf("bringup: %s answers on the bus, not parking there", addr)
			continue
		}
		return addr, true
	}
	return 0, false
}

func containsAddress(list []Address, addr Address) bool {
	for _, a := range list {
		if a == addr {
			return true
		}
	}
	return false
}
