package core_test

import (
	"errors"
	"fmt"
	"reflect"
	"testing"

	"tofbus/core"
	"tofbus/sim"
)

const (
	run   = core.CmdRun
	start = core.CmdStart
	stop  = core.CmdStop
	ack   = core.CmdAck
)

var testConfig = core.I2CConfig{SystemClockHz: 80000000, FrequencyHz: 100000}

func newTestBus(t *testing.T, devices ...*sim.Device) (*sim.Controller, *core.Transport) {
	t.Helper()
	ctl := sim.NewController(devices...)
	ctl.BusyPolls = 2
	tr := core.NewTransport(ctl)
	if err := tr.Init(testConfig); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	return ctl, tr
}

func poweredSensor() *sim.Device {
	d := sim.NewVL53L0X("tof")
	d.SetPower(true)
	return d
}

func checkNoViolations(t *testing.T, ctl *sim.Controller) {
	t.Helper()
	for _, v := range ctl.Violations() {
		t.Errorf("Bus violation: %s", v)
	}
}

func TestTimerPeriod(t *testing.T) {
	tests := []struct {
		sysclk, scl uint32
		expected    uint32
	}{
		{80000000, 100000, 39},
		{80000000, 400000, 9},
		{16000000, 100000, 7},
		{80000000, 0, 0},
	}

	for _, tt := range tests {
		cfg := core.I2CConfig{SystemClockHz: tt.sysclk, FrequencyHz: tt.scl}
		if got := cfg.TimerPeriod(); got != tt.expected {
			t.Errorf("TimerPeriod(%d, %d): expected %d, got %d", tt.sysclk, tt.scl, tt.expected, got)
		}
	}
}

func TestInitIsIdempotent(t *testing.T) {
	ctl, tr := newTestBus(t)

	if err := tr.Init(testConfig); err != nil {
		t.Fatalf("Second Init with same config failed: %v", err)
	}
	if _, n := ctl.Config(); n != 1 {
		t.Errorf("Expected bus to be configured once, got %d", n)
	}

	other := testConfig
	other.FrequencyHz = 400000
	if err := tr.Init(other); !errors.Is(err, core.ErrBusConfigured) {
		t.Errorf("Expected ErrBusConfigured, got %v", err)
	}
	if tr.Config() != testConfig {
		t.Errorf("Config changed after rejected Init: %+v", tr.Config())
	}
}

func TestReadFraming(t *testing.T) {
	tests := []struct {
		name     string
		n        int
		expected []core.I2CCommand
	}{
		{"one byte", 1, []core.I2CCommand{start | stop | run, start | stop | run}},
		{"two bytes", 2, []core.I2CCommand{start | stop | run, ack | start | run, stop | run}},
		{"five bytes", 5, []core.I2CCommand{
			start | stop | run,
			ack | start | run, ack | run, ack | run, ack | run, stop | run,
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := poweredSensor()
			for i := 0; i < tt.n; i++ {
				dev.SetRegister(uint16(0x40+i), uint8(0x10+i))
			}
			ctl, tr := newTestBus(t, dev)

			buf := make([]byte, tt.n)
			if status := tr.Read(core.DefaultAddress, 0x40, buf); !status.OK() {
				t.Fatalf("Read failed: %s", status)
			}

			if got := ctl.Commands(); !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("Expected commands %v, got %v", tt.expected, got)
			}
			for i, b := range buf {
				if b != uint8(0x10+i) {
					t.Errorf("Byte %d: expected 0x%02x, got 0x%02x", i, 0x10+i, b)
				}
			}
			checkNoViolations(t, ctl)
		})
	}
}

func TestReadRetriesUpToLimit(t *testing.T) {
	ctl, tr := newTestBus(t, poweredSensor())
	ctl.Inject(sim.Fault{Phase: sim.PhaseAddress, Dir: core.Receive, Status: core.StatusAddrNack})

	buf := make([]byte, 2)
	status := tr.Read(core.DefaultAddress, 0xC0, buf)

	if status != core.StatusAddrNack {
		t.Errorf("Expected address nack, got %s", status)
	}
	if got := ctl.AddressPhases(core.Receive); got != core.MaxRetries {
		t.Errorf("Expected %d receive attempts, got %d", core.MaxRetries, got)
	}
	if got := ctl.AddressPhases(core.Transmit); got != 1 {
		t.Errorf("Expected a single register select, got %d", got)
	}
	if buf[0] != 0xFF {
		t.Errorf("Expected failed read to latch 0xFF, got 0x%02x", buf[0])
	}
	checkNoViolations(t, ctl)
}

func TestReadRecoversFromTransientNack(t *testing.T) {
	ctl, tr := newTestBus(t, poweredSensor())
	fault := ctl.Inject(sim.Fault{Phase: sim.PhaseAddress, Dir: core.Receive, Status: core.StatusAddrNack, Times: 2})

	v, status := core.NewRegisters(tr).ReadUint8(core.DefaultAddress, 0xC0)
	if !status.OK() {
		t.Fatalf("Expected read to succeed on the third attempt, got %s", status)
	}
	if v != 0xEE {
		t.Errorf("Expected model id 0xee, got 0x%02x", v)
	}
	if fault.Fired() != 2 {
		t.Errorf("Expected fault to fire twice, fired %d", fault.Fired())
	}
	if got := ctl.AddressPhases(core.Receive); got != 3 {
		t.Errorf("Expected 3 receive attempts, got %d", got)
	}
}

func TestReadBusErrorMidBurstAborts(t *testing.T) {
	dev := poweredSensor()
	for i := 0; i < 4; i++ {
		dev.SetRegister(uint16(0x60+i), uint8(0xA0+i))
	}
	ctl, tr := newTestBus(t, dev)
	ctl.Inject(sim.Fault{Phase: sim.PhaseData, Dir: core.Receive, Status: core.StatusBusError, Skip: 1, Times: 1})

	buf := make([]byte, 4)
	if status := tr.Read(core.DefaultAddress, 0x60, buf); !status.OK() {
		t.Fatalf("Expected retry to succeed, got %s", status)
	}

	expected := []core.I2CCommand{
		start | stop | run,
		ack | start | run, ack | run, stop, // aborted attempt
		start | stop | run, // register selected again
		ack | start | run, ack | run, ack | run, stop | run,
	}
	if got := ctl.Commands(); !reflect.DeepEqual(got, expected) {
		t.Errorf("Expected commands %v, got %v", expected, got)
	}
	if !reflect.DeepEqual(buf, []byte{0xA0, 0xA1, 0xA2, 0xA3}) {
		t.Errorf("Unexpected data % x", buf)
	}
	checkNoViolations(t, ctl)
}

func TestTxReplaysWriteAfterPartialBurst(t *testing.T) {
	dev := poweredSensor()
	for i := 0; i < 3; i++ {
		dev.SetRegister(uint16(0x70+i), uint8(0xB0+i))
	}
	ctl, tr := newTestBus(t, dev)
	ctl.Inject(sim.Fault{Phase: sim.PhaseData, Dir: core.Receive, Status: core.StatusBusError, Skip: 1, Times: 1})

	buf := make([]byte, 3)
	if status := tr.Tx(core.DefaultAddress, []byte{0x70}, buf); !status.OK() {
		t.Fatalf("Expected retry to succeed, got %s", status)
	}
	if got := ctl.AddressPhases(core.Transmit); got != 2 {
		t.Errorf("Expected the index written twice, got %d", got)
	}
	if !reflect.DeepEqual(buf, []byte{0xB0, 0xB1, 0xB2}) {
		t.Errorf("Unexpected data % x", buf)
	}
}

func TestTxWithoutIndexDoesNotRetryPartialBurst(t *testing.T) {
	ctl, tr := newTestBus(t, poweredSensor())
	ctl.Inject(sim.Fault{Phase: sim.PhaseData, Dir: core.Receive, Status: core.StatusBusError, Skip: 1, Times: 1})

	buf := make([]byte, 3)
	if status := tr.Tx(core.DefaultAddress, nil, buf); status != core.StatusBusError {
		t.Errorf("Expected bus error, got %s", status)
	}
	if got := ctl.AddressPhases(core.Receive); got != 1 {
		t.Errorf("Expected a single receive attempt, got %d", got)
	}
}

func TestReadDataNackIsNotRetried(t *testing.T) {
	ctl, tr := newTestBus(t, poweredSensor())
	ctl.Inject(sim.Fault{Phase: sim.PhaseData, Dir: core.Receive, Status: core.StatusDataNack})

	buf := make([]byte, 1)
	if status := tr.Read(core.DefaultAddress, 0xC0, buf); status != core.StatusDataNack {
		t.Errorf("Expected data nack, got %s", status)
	}
	if got := ctl.AddressPhases(core.Receive); got != 1 {
		t.Errorf("Expected 1 receive attempt, got %d", got)
	}
}

func TestReadWithoutDeviceFailsOnSelect(t *testing.T) {
	ctl, tr := newTestBus(t)

	buf := make([]byte, 2)
	if status := tr.Read(0x30, 0x00, buf); status != core.StatusAddrNack {
		t.Errorf("Expected address nack, got %s", status)
	}
	if got := ctl.Commands(); !reflect.DeepEqual(got, []core.I2CCommand{start | stop | run}) {
		t.Errorf("Expected only the register select, got %v", got)
	}
	checkNoViolations(t, ctl)
}

func TestWriteFraming(t *testing.T) {
	dev := poweredSensor()
	ctl, tr := newTestBus(t, dev)

	if status := tr.Write(core.DefaultAddress, 0x20, []byte{1, 2, 3}); !status.OK() {
		t.Fatalf("Write failed: %s", status)
	}

	expected := []core.I2CCommand{start | run, run, run, stop | run}
	if got := ctl.Commands(); !reflect.DeepEqual(got, expected) {
		t.Errorf("Expected commands %v, got %v", expected, got)
	}
	for i := 0; i < 3; i++ {
		if got := dev.Register(uint16(0x20 + i)); got != uint8(i+1) {
			t.Errorf("Register 0x%02x: expected %d, got %d", 0x20+i, i+1, got)
		}
	}
	checkNoViolations(t, ctl)
}

func TestWriteAbortsOnDataNack(t *testing.T) {
	dev := poweredSensor()
	ctl, tr := newTestBus(t, dev)
	// Index byte and first data byte pass, the second data byte is refused
	ctl.Inject(sim.Fault{Phase: sim.PhaseData, Dir: core.Transmit, Status: core.StatusDataNack, Skip: 2, Times: 1})

	status := tr.Write(core.DefaultAddress, 0x20, []byte{0xA1, 0xA2, 0xA3})
	if status != core.StatusDataNack {
		t.Fatalf("Expected data nack, got %s", status)
	}

	expected := []core.I2CCommand{start | run, run, run, stop}
	if got := ctl.Commands(); !reflect.DeepEqual(got, expected) {
		t.Errorf("Expected commands %v, got %v", expected, got)
	}
	if dev.Register(0x20) != 0xA1 {
		t.Errorf("Expected first byte written, got 0x%02x", dev.Register(0x20))
	}
	if dev.Register(0x22) != 0 {
		t.Errorf("Expected no bytes after the nack, got 0x%02x at 0x22", dev.Register(0x22))
	}
	checkNoViolations(t, ctl)
}

func TestWriteWithoutDataSelectsRegister(t *testing.T) {
	ctl, tr := newTestBus(t, poweredSensor())

	if status := tr.Write(core.DefaultAddress, 0x8A, nil); !status.OK() {
		t.Fatalf("Write failed: %s", status)
	}
	if got := ctl.Commands(); !reflect.DeepEqual(got, []core.I2CCommand{start | stop | run}) {
		t.Errorf("Expected single select, got %v", got)
	}
}

func TestStatusErrors(t *testing.T) {
	if err := core.StatusOK.Err(0x29, 0); err != nil {
		t.Errorf("Expected nil error for ok status, got %v", err)
	}

	err := (core.StatusAddrNack | core.StatusBusError).Err(0x29, 0xC0)
	if !errors.Is(err, core.ErrAddressNack) || !errors.Is(err, core.ErrBusError) {
		t.Errorf("Expected error to match address nack and bus error: %v", err)
	}
	if errors.Is(err, core.ErrDataNack) {
		t.Errorf("Did not expect data nack match: %v", err)
	}

	var te *core.TransferError
	if !errors.As(err, &te) || te.Addr != 0x29 || te.Reg != 0xC0 {
		t.Errorf("Expected TransferError for 0x29/0xc0, got %#v", err)
	}
	if msg := err.Error(); msg != "i2c 0x29 reg 0xc0: bus error|address nack" {
		t.Errorf("Unexpected message %q", msg)
	}

	wrapped := fmt.Errorf("sensor 1: %w", err)
	if s := core.StatusOf(wrapped); s != core.StatusAddrNack|core.StatusBusError {
		t.Errorf("Expected status carried through wrapping, got %s", s)
	}
	if s := core.StatusOf(&core.BringUpError{Index: 2, Status: core.StatusDataNack}); s != core.StatusDataNack {
		t.Errorf("Expected bring-up status, got %s", s)
	}
	if s := core.StatusOf(errors.New("other")); s != core.StatusOK {
		t.Errorf("Expected ok status for plain error, got %s", s)
	}
}

func TestAddressWireForm(t *testing.T) {
	addr := core.Address(0x29)
	if w := addr.Wire(core.Transmit); w != 0x52 {
		t.Errorf("Expected write address 0x52, got 0x%02x", w)
	}
	if w := addr.Wire(core.Receive); w != 0x53 {
		t.Errorf("Expected read address 0x53, got 0x%02x", w)
	}
	if core.Address(0x80).Valid() {
		t.Errorf("Expected 0x80 to be invalid")
	}
}
