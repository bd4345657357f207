package ranging

import (
	"errors"
	"testing"

	"tofbus/core"
	"tofbus/sim"
)

func bringUp(t *testing.T, n int, addresses []core.Address) (*sim.Rig, *core.Registers, *core.Registry) {
	t.Helper()
	rig := sim.NewRig(n, sim.NewVL53L0X)
	tr := core.NewTransport(rig.Controller)
	if err := tr.Init(core.I2CConfig{SystemClockHz: 80000000, FrequencyHz: 400000}); err != nil {
		t.Fatal(err)
	}
	regs := core.NewRegisters(tr)

	registry := core.NewRegistry()
	if err := registry.Enumerate(n, core.DefaultAddress); err != nil {
		t.Fatal(err)
	}
	lines, err := core.NewEnableLines(rig.GPIO, rig.Pins)
	if err != nil {
		t.Fatal(err)
	}
	sleeps := &core.SleepRecorder{}
	m := core.NewAddressManager(regs, registry, lines, core.WithSleeper(sleeps.Sleep))
	if err := m.BringUp(addresses); err != nil {
		t.Fatalf("BringUp failed: %v", err)
	}
	return rig, regs, registry
}

func TestVL53L0XSingleShot(t *testing.T) {
	rig, regs, registry := bringUp(t, 1, []core.Address{0x30})
	rig.Devices[0].MeasurePolls = 3
	rig.Devices[0].SetDistance(1234)

	s := NewVL53L0X(regs, registry, 0)
	mm, err := s.Range()
	if err != nil {
		t.Fatalf("Range failed: %v", err)
	}
	if mm != 1234 {
		t.Errorf("Expected 1234 mm, got %d", mm)
	}
	if v := rig.Devices[0].Register(0x13); v&0x07 != 0 {
		t.Errorf("Expected interrupt cleared, got 0x%02x", v)
	}
	for _, v := range rig.Controller.Violations() {
		t.Errorf("Bus violation: %s", v)
	}
}

func TestVL53L0XTimeout(t *testing.T) {
	rig, regs, registry := bringUp(t, 1, []core.Address{0x30})
	rig.Devices[0].MeasurePolls = 10

	s := NewVL53L0X(regs, registry, 0)
	s.MaxPolls = 5
	if _, err := s.Range(); !errors.Is(err, ErrNotReady) {
		t.Errorf("Expected ErrNotReady, got %v", err)
	}
}

func TestPollSkipsFailingSensor(t *testing.T) {
	rig, regs, registry := bringUp(t, 3, []core.Address{0x30, 0x31, 0x32})
	for i, d := range rig.Devices {
		d.SetDistance(uint16(100 * (i + 1)))
	}
	// Sensor 1 drops off the bus
	rig.Devices[1].SetPower(false)

	var rangers []Ranger
	for i := 0; i < 3; i++ {
		rangers = append(rangers, NewVL53L0X(regs, registry, i))
	}

	readings, skipped := Poll(rangers)

	if len(readings) != 2 {
		t.Fatalf("Expected 2 readings, got %d", len(readings))
	}
	if readings[0].Index != 0 || readings[0].Distance != 100 {
		t.Errorf("Unexpected first reading %+v", readings[0])
	}
	if readings[1].Index != 2 || readings[1].Distance != 300 {
		t.Errorf("Unexpected second reading %+v", readings[1])
	}
	if len(skipped) != 1 || !errors.Is(skipped[0], core.ErrAddressNack) {
		t.Fatalf("Expected one address nack skip, got %v", skipped)
	}
	var se *SampleError
	if !errors.As(skipped[0], &se) || se.Index != 1 {
		t.Errorf("Expected SampleError for sensor 1, got %v", skipped[0])
	}
}

func TestVL53L1XCapsDistance(t *testing.T) {
	var calls []string
	samples := []uint16{250, 9000, 0}
	s := &VL53L1X{
		index:     4,
		configure: func(bool) { calls = append(calls, "configure") },
		budget:    func(uint32) { calls = append(calls, "budget") },
		start:     func(uint32) { calls = append(calls, "start") },
		read: func(bool) uint16 {
			v := samples[0]
			samples = samples[1:]
			return v
		},
	}

	if mm, err := s.Range(); err != nil || mm != 250 {
		t.Errorf("Expected 250, got %d/%v", mm, err)
	}
	if mm, err := s.Range(); err != nil || mm != maxDistance {
		t.Errorf("Expected capped %d, got %d/%v", maxDistance, mm, err)
	}
	if _, err := s.Range(); !errors.Is(err, ErrNoSample) {
		t.Errorf("Expected ErrNoSample, got %v", err)
	}
	if len(calls) != 3 {
		t.Errorf("Expected driver configured once, got %v", calls)
	}
}

func TestForModel(t *testing.T) {
	_, regs, registry := bringUp(t, 1, []core.Address{0x30})

	r, err := ForModel(core.VL53L0X, regs, registry, 0)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := r.(*VL53L0X); !ok {
		t.Errorf("Expected *VL53L0X, got %T", r)
	}
	if _, err := ForModel(core.SensorModel{Name: "vl6180x"}, regs, registry, 0); err == nil {
		t.Errorf("Expected error for unknown model")
	}
}
