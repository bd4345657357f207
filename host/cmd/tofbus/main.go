// Command tofbus brings up a chain of time-of-flight sensors sharing one
// I2C bus and polls them for distance readings.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"time"

	"tofbus/core"
	"tofbus/host/config"
	"tofbus/host/gpio"
	"tofbus/host/periphbus"
	"tofbus/host/serial"
	"tofbus/protocol"
	"tofbus/ranging"
	"tofbus/sim"
)

var (
	configPath = flag.String("config", "tofbus.yaml", "Configuration file")
	scan       = flag.Bool("scan", false, "List responding addresses after bring-up and exit")
	count      = flag.Int("count", -1, "Poll cycles to run (overrides poll.count)")
	monitor    = flag.String("monitor", "", "Decode reports from a firmware serial device instead")
)

// pinDriver is a GPIO backend that resolves configured pin names.
type pinDriver interface {
	core.GPIODriver
	Pin(name string) (core.GPIOPin, error)
}

// bench is the hardware the stack runs on.
type bench struct {
	ctl   core.I2CController
	gpio  core.GPIODriver
	pins  []core.GPIOPin
	close func()
}

func main() {
	flag.Parse()

	if *monitor != "" {
		runMonitor(*monitor)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	if *count >= 0 {
		cfg.Poll.Count = *count
	}

	core.SetDebugWriter(func(s string) { log.Print(s) })
	core.SetDebugEnabled(cfg.Debug)

	b, err := openBench(cfg)
	if err != nil {
		log.Fatalf("bus setup failed: %v", err)
	}
	defer b.close()

	tr := core.NewTransport(b.ctl)
	if err := tr.Init(core.I2CConfig{
		SystemClockHz: cfg.Bus.SystemClockHz,
		FrequencyHz:   cfg.Bus.FrequencyHz,
	}); err != nil {
		log.Fatalf("bus init failed: %v", err)
	}
	regs := core.NewRegisters(tr)

	var sink *serial.Sink
	if cfg.Serial.Device != "" {
		sc := serial.DefaultConfig(cfg.Serial.Device)
		sc.Baud = cfg.Serial.Baud
		port, err := serial.Open(sc)
		if err != nil {
			log.Fatalf("serial: %v", err)
		}
		defer port.Close()
		sink = serial.NewSink(port)
	}

	registry, err := bringUp(cfg, b, regs, sink)
	if err != nil {
		log.Fatal(err)
	}

	if *scan {
		bus := periphbus.New("tofbus", regs)
		for _, addr := range periphbus.Scan(bus, 0x08, 0x77) {
			name := "unknown"
			if i, ok := registry.Lookup(core.Address(addr)); ok {
				name = fmt.Sprintf("sensor %d", i)
			}
			log.Printf("0x%02x: %s", addr, name)
		}
		return
	}

	model, _ := core.SensorModelByName(cfg.Sensors.Model)
	var rangers []ranging.Ranger
	for i := 0; i < registry.Len(); i++ {
		r, err := ranging.ForModel(model, regs, registry, i)
		if err != nil {
			log.Fatal(err)
		}
		rangers = append(rangers, r)
	}

	poll(cfg.Poll, rangers, sink)
}

func openBench(cfg *config.Config) (*bench, error) {
	n := len(cfg.Sensors.Addresses)

	if cfg.Bus.Backend == config.BackendSim {
		rig := sim.NewRig(n, sim.NewVL53L0X)
		for i, d := range rig.Devices {
			d.SetDistance(uint16(150 * (i + 1)))
		}
		return &bench{ctl: rig.Controller, gpio: rig.GPIO, pins: rig.Pins, close: func() {}}, nil
	}

	var (
		drv    pinDriver
		closer = func() {}
	)
	switch cfg.Bus.Backend {
	case config.BackendPeriph:
		p, err := gpio.OpenPeriph()
		if err != nil {
			return nil, err
		}
		drv = p
	case config.BackendRPIO:
		p, err := gpio.OpenRPIO()
		if err != nil {
			return nil, err
		}
		drv = p
		closer = func() { p.Close() }
	}

	sda, err := drv.Pin(cfg.Bus.SDA)
	if err != nil {
		return nil, err
	}
	scl, err := drv.Pin(cfg.Bus.SCL)
	if err != nil {
		return nil, err
	}
	b := &bench{ctl: core.NewSoftI2C(drv, sda, scl), gpio: drv, close: closer}
	for _, name := range cfg.Sensors.Enable {
		pin, err := drv.Pin(name)
		if err != nil {
			return nil, err
		}
		b.pins = append(b.pins, pin)
	}
	return b, nil
}

func bringUp(cfg *config.Config, b *bench, regs *core.Registers, sink *serial.Sink) (*core.Registry, error) {
	registry := core.NewRegistry()
	if err := registry.Enumerate(len(cfg.Sensors.Addresses), core.DefaultAddress); err != nil {
		return nil, err
	}

	lines, err := core.NewEnableLines(b.gpio, b.pins)
	if err != nil {
		return nil, err
	}
	model, _ := core.SensorModelByName(cfg.Sensors.Model)
	m := core.NewAddressManager(regs, registry, lines, core.WithModel(model))

	var plan []core.Address
	for _, a := range cfg.Sensors.Addresses {
		plan = append(plan, core.Address(a))
	}

	if err := m.BringUp(plan); err != nil {
		var be *core.BringUpError
		if sink != nil && errors.As(err, &be) {
			sink.BringUpFailed(be)
		}
		return nil, err
	}

	for _, rec := range registry.Devices() {
		log.Printf("sensor %d at %s (model 0x%02x rev 0x%02x)", rec.Index, rec.Address, rec.Info.ModelID, rec.Info.RevisionID)
		if sink != nil {
			if err := sink.Device(rec); err != nil {
				log.Printf("serial: %v", err)
			}
		}
	}
	return registry, nil
}

func poll(cfg config.PollConfig, rangers []ranging.Ranger, sink *serial.Sink) {
	ticker := time.NewTicker(time.Duration(cfg.IntervalMs) * time.Millisecond)
	defer ticker.Stop()

	for cycle := 0; cfg.Count == 0 || cycle < cfg.Count; cycle++ {
		if cycle > 0 {
			<-ticker.C
		}

		readings, skipped := ranging.Poll(rangers)
		for _, r := range readings {
			log.Printf("sensor %d: %d mm", r.Index, r.Distance)
			if sink != nil {
				if err := sink.Reading(r); err != nil {
					log.Printf("serial: %v", err)
				}
			}
		}
		for _, err := range skipped {
			log.Printf("%v", err)
			if sink != nil {
				var se *ranging.SampleError
				if errors.As(err, &se) {
					sink.Skipped(se.Index, se.Err)
				}
			}
		}
	}
}

func runMonitor(device string) {
	// Blocking reads; a timeout would end the monitor
	port, err := serial.Open(&serial.Config{Device: device, Baud: 115200})
	if err != nil {
		log.Fatalf("serial: %v", err)
	}
	defer port.Close()

	dec, err := serial.Monitor(port, func(r protocol.Report) {
		log.Print(serial.Format(r))
	})
	if err != nil {
		log.Printf("monitor stopped: %v", err)
	}
	log.Printf("dropped %d frames, lost %d", dec.Dropped, dec.Lost)
}
