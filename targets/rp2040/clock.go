//go:build rp2040

package main

import (
	"runtime/volatile"
	"time"
	"unsafe"
)

// RP2040 Timer peripheral memory map
const (
	timerBase     = 0x40054000
	timerTIMERAWL = timerBase + 0x0C // Raw timer low word
)

var timerRAWL = (*volatile.Register32)(unsafe.Pointer(uintptr(timerTIMERAWL)))

// GetHardwareTime reads the low 32 bits of the 1 MHz hardware timer
func GetHardwareTime() uint32 {
	return timerRAWL.Get()
}

// busyWait spins on the hardware timer. The bit-banged bus uses it for its
// half-period delays, which are shorter than the scheduler's sleep
// granularity.
func busyWait(d time.Duration) {
	us := uint32(d / time.Microsecond)
	if us == 0 {
		us = 1
	}
	start := GetHardwareTime()
	for GetHardwareTime()-start < us {
	}
}
