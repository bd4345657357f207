package core

import (
	"errors"
	"fmt"
	"strings"
)

// Status is the error bitset of one bus transaction. Zero means success.
type Status uint8

const (
	StatusOK       Status = 0
	StatusBusError Status = 0x02 // Arbitration or framing fault
	StatusAddrNack Status = 0x04 // No device acknowledged the address
	StatusDataNack Status = 0x08 // Device rejected a transmitted byte

	statusErrorMask = StatusBusError | StatusAddrNack | StatusDataNack
)

// Retryable reports whether a receive burst may be attempted again. A data
// NACK on receive is not: the receiver, not the slave, drives that bit.
func (s Status) Retryable() bool {
	return s&(StatusAddrNack|StatusBusError) != 0
}

// OK reports whether no error bits are set.
func (s Status) OK() bool {
	return s&statusErrorMask == 0
}

func (s Status) String() string {
	if s.OK() {
		return "ok"
	}
	var parts []string
	if s&StatusBusError != 0 {
		parts = append(parts, "bus error")
	}
	if s&StatusAddrNack != 0 {
		parts = append(parts, "address nack")
	}
	if s&StatusDataNack != 0 {
		parts = append(parts, "data nack")
	}
	return strings.Join(parts, "|")
}

// Err converts the bitset to an error for a transaction on addr/reg, nil on
// success.
func (s Status) Err(addr Address, reg uint8) error {
	if s.OK() {
		return nil
	}
	return &TransferError{Addr: addr, Reg: reg, Status: s}
}

var (
	// ErrAddressNack signals that no device responded at the address.
	ErrAddressNack = errors.New("address not acknowledged")

	// ErrDataNack signals that the device did not ACK a written byte.
	ErrDataNack = errors.New("data not acknowledged")

	// ErrBusError signals an arbitration or framing fault.
	ErrBusError = errors.New("bus error")
)

// TransferError carries the raw status of a failed transaction.
type TransferError struct {
	Addr   Address
	Reg    uint8
	Status Status
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("i2c %s reg 0x%02x: %s", e.Addr, e.Reg, e.Status)
}

// Is matches the sentinel errors against the status bits.
func (e *TransferError) Is(target error) bool {
	switch target {
	case ErrAddressNack:
		return e.Status&StatusAddrNack != 0
	case ErrDataNack:
		return e.Status&StatusDataNack != 0
	case ErrBusError:
		return e.Status&StatusBusError != 0
	}
	return false
}

// Address is a 7-bit (logical form) I2C device address.
type Address uint8

// Valid reports whether a fits in 7 bits.
func (a Address) Valid() bool {
	return a <= 0x7F
}

// Wire returns the on-the-wire address byte for the given direction.
func (a Address) Wire(dir Direction) uint8 {
	return uint8(a&0x7F)<<1 | uint8(dir&1)
}

func (a Address) String() string {
	return fmt.Sprintf("0x%02x", uint8(a))
}

// StatusOf returns the bus status carried by err, StatusOK if it carries
// none.
func StatusOf(err error) Status {
	var te *TransferError
	if errors.As(err, &te) {
		return te.Status
	}
	var be *BringUpError
	if errors.As(err, &be) {
		return be.Status
	}
	return StatusOK
}
