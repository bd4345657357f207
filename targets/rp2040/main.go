//go:build rp2040

package main

import (
	"errors"
	"machine"
	"time"

	"tofbus/core"
	"tofbus/protocol"
	"tofbus/ranging"
)

var (
	// Outgoing report frames
	outputBuffer *protocol.ScratchOutput
	encoder      *protocol.Encoder

	consecutiveWriteFailures uint32
)

func main() {
	// Disable watchdog on boot to clear any previous state
	err := machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: 0})
	if err != nil {
		return
	}

	InitUSB()
	InitDebugUART()
	core.SetDebugWriter(DebugPrintln)
	core.SetDebugEnabled(debugEnabled)
	core.InitAsyncDebug()

	outputBuffer = protocol.NewScratchOutput()
	encoder = protocol.NewEncoder(outputBuffer)

	gpio := NewRPGPIODriver()
	bus := core.NewSoftI2C(gpio, sdaPin, sclPin)
	bus.SetDelay(busyWait)

	tr := core.NewTransport(bus)
	if err := tr.Init(core.I2CConfig{
		SystemClockHz: machine.CPUFrequency(),
		FrequencyHz:   busFrequency,
	}); err != nil {
		halt("bus init failed: " + err.Error())
	}
	regs := core.NewRegisters(tr)

	registry := core.NewRegistry()
	if err := registry.Enumerate(len(addresses), core.DefaultAddress); err != nil {
		halt(err.Error())
	}
	lines, err := core.NewEnableLines(gpio, enablePins[:])
	if err != nil {
		halt(err.Error())
	}
	manager := core.NewAddressManager(regs, registry, lines, core.WithModel(core.VL53L0X))

	// Keep trying: a sensor missing at boot may be plugged in later
	for {
		err := manager.BringUp(addresses[:])
		if err == nil {
			break
		}
		DebugPrintln(err.Error())
		var be *core.BringUpError
		if errors.As(err, &be) {
			report(protocol.MsgBringUpFailed, int32(be.Index), int32(be.Status))
			writeUSB()
		}
		time.Sleep(time.Second)
	}

	var rangers []ranging.Ranger
	for _, rec := range registry.Devices() {
		report(protocol.MsgDevice, int32(rec.Index), int32(rec.Address), int32(rec.Info.ModelID))
		rangers = append(rangers, ranging.NewVL53L0X(regs, registry, rec.Index))
	}
	writeUSB()

	for {
		readings, skipped := ranging.Poll(rangers)
		for _, r := range readings {
			report(protocol.MsgReading, int32(r.Index), int32(r.Distance))
		}
		for _, err := range skipped {
			var se *ranging.SampleError
			if errors.As(err, &se) {
				report(protocol.MsgSkipped, int32(se.Index), int32(core.StatusOf(se.Err)))
			}
		}
		writeUSB()

		time.Sleep(pollInterval)
	}
}

// halt reports a fatal setup error and parks the firmware.
func halt(msg string) {
	for {
		DebugPrintln(msg)
		time.Sleep(5 * time.Second)
	}
}

// report frames one message into the output buffer. A report too long for
// one frame is logged and dropped.
func report(id uint16, args ...int32) {
	if err := encoder.Encode(id, args...); err != nil {
		DebugPrintln("report dropped: " + err.Error())
	}
}

// writeUSB writes available data from output buffer to USB. Bytes the host
// accepted are dropped at once so a later call never sends them twice.
func writeUSB() {
	for outputBuffer.CurPosition() > 0 {
		n, err := USBWriteBytes(outputBuffer.Result())
		outputBuffer.Pop(n)
		if err != nil || n == 0 {
			// Likely no host attached; drop stale reports after several failures
			consecutiveWriteFailures++
			if consecutiveWriteFailures > 10 {
				consecutiveWriteFailures = 0
				outputBuffer.Reset()
			}
			return
		}
	}
	consecutiveWriteFailures = 0
}
