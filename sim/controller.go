package sim

import (
	"fmt"

	"tofbus/core"
)

// Phase selects which part of a transaction a fault applies to.
type Phase uint8

const (
	PhaseAddress Phase = iota // Address byte after a start
	PhaseData                 // Any data byte
)

// Fault makes matching bus phases fail with Status. The first Skip matching
// phases pass; after that up to Times phases fail (every one when Times is 0).
type Fault struct {
	Phase  Phase
	Dir    core.Direction
	Status core.Status
	Skip   int
	Times  int

	seen  int
	fired int
}

// Fired returns how many phases the fault has failed so far.
func (f *Fault) Fired() int {
	return f.fired
}

func (f *Fault) match(phase Phase, dir core.Direction) bool {
	if f.Phase != phase || f.Dir != dir {
		return false
	}
	f.seen++
	if f.seen <= f.Skip {
		return false
	}
	if f.Times > 0 && f.fired >= f.Times {
		return false
	}
	f.fired++
	return true
}

// Op is one command issued to the controller, as seen on the bus.
type Op struct {
	Cmd    core.I2CCommand
	Slave  uint8 // Wire-form address register when the command ran
	Data   uint8 // Byte transmitted or received
	Status core.Status
}

func (o Op) String() string {
	return fmt.Sprintf("%s slave=0x%02x data=0x%02x -> %s", commandString(o.Cmd), o.Slave, o.Data, o.Status)
}

func commandString(cmd core.I2CCommand) string {
	s := ""
	for _, bit := range []struct {
		cmd  core.I2CCommand
		name string
	}{{core.CmdAck, "ACK"}, {core.CmdStart, "START"}, {core.CmdStop, "STOP"}, {core.CmdRun, "RUN"}} {
		if cmd&bit.cmd != 0 {
			if s != "" {
				s += "|"
			}
			s += bit.name
		}
	}
	if s == "" {
		return "NONE"
	}
	return s
}

// Controller is a simulated bus-master instance with sensors attached. It
// executes each command immediately but reports busy for BusyPolls reads of
// Busy, and records framing violations a real bus would punish.
type Controller struct {
	devices []*Device

	cfg        core.I2CConfig
	configures int

	// BusyPolls is how many times Busy reports true after each command.
	BusyPolls int
	busyLeft  int

	slave   uint8
	data    uint8
	status  core.Status
	active  bool
	dir     core.Direction
	targets []*Device

	faults     []*Fault
	ops        []Op
	violations []string
}

// NewController returns an unconfigured controller with devices attached.
func NewController(devices ...*Device) *Controller {
	return &Controller{devices: devices}
}

// Attach connects another device to the bus.
func (c *Controller) Attach(d *Device) {
	c.devices = append(c.devices, d)
}

// Inject adds a fault and returns it so the caller can inspect it later.
func (c *Controller) Inject(f Fault) *Fault {
	p := &f
	c.faults = append(c.faults, p)
	return p
}

// ClearFaults removes every injected fault.
func (c *Controller) ClearFaults() {
	c.faults = nil
}

// Ops returns the command log.
func (c *Controller) Ops() []Op {
	return c.ops
}

// Commands returns only the command values of the log.
func (c *Controller) Commands() []core.I2CCommand {
	out := make([]core.I2CCommand, len(c.ops))
	for i, op := range c.ops {
		out[i] = op.Cmd
	}
	return out
}

// AddressPhases counts started phases in the given direction.
func (c *Controller) AddressPhases(dir core.Direction) int {
	n := 0
	for _, op := range c.ops {
		if op.Cmd&core.CmdStart != 0 && core.Direction(op.Slave&1) == dir {
			n++
		}
	}
	return n
}

// ResetLog clears the command log and the recorded violations.
func (c *Controller) ResetLog() {
	c.ops = nil
	c.violations = nil
}

// Violations returns the framing errors seen so far.
func (c *Controller) Violations() []string {
	return c.violations
}

// Config returns the last applied configuration and how often Configure ran.
func (c *Controller) Config() (core.I2CConfig, int) {
	return c.cfg, c.configures
}

func (c *Controller) violation(format string, args ...interface{}) {
	c.violations = append(c.violations, fmt.Sprintf(format, args...))
}

func (c *Controller) Configure(cfg core.I2CConfig) error {
	if cfg.FrequencyHz == 0 {
		return core.ErrBadFrequency
	}
	c.cfg = cfg
	c.configures++
	return nil
}

func (c *Controller) Busy() bool {
	if c.busyLeft > 0 {
		c.busyLeft--
		return true
	}
	return false
}

func (c *Controller) Status() core.Status {
	return c.status
}

func (c *Controller) SetSlaveAddress(wire uint8) {
	if c.busyLeft > 0 {
		c.violation("slave address written while busy")
	}
	c.slave = wire
}

func (c *Controller) SetData(b uint8) {
	if c.busyLeft > 0 {
		c.violation("data written while busy")
	}
	c.data = b
}

func (c *Controller) Data() uint8 {
	return c.data
}

func (c *Controller) Control(cmd core.I2CCommand) {
	if c.busyLeft > 0 {
		c.violation("command %s issued while busy", commandString(cmd))
	}
	c.busyLeft = c.BusyPolls
	c.status = core.StatusOK
	c.execute(cmd)
	c.ops = append(c.ops, Op{Cmd: cmd, Slave: c.slave, Data: c.data, Status: c.status})
}

func (c *Controller) execute(cmd core.I2CCommand) {
	if cmd&core.CmdRun == 0 {
		if cmd&core.CmdStop == 0 {
			c.violation("command %s without RUN or STOP", commandString(cmd))
			return
		}
		if !c.active {
			c.violation("stop on idle bus")
		}
		c.stopBus()
		return
	}

	if cmd&core.CmdStart != 0 {
		if !c.startBus(cmd) {
			return
		}
	} else if !c.active {
		c.violation("%s on idle bus", commandString(cmd))
		c.status = core.StatusBusError
		return
	}

	if c.dir == core.Receive {
		c.receive(cmd)
	} else {
		c.transmit(cmd)
	}
	if !c.status.OK() {
		if cmd&core.CmdStop != 0 {
			c.stopBus()
		}
		return
	}

	if cmd&core.CmdStop != 0 {
		c.stopBus()
	}
}

// startBus runs a (repeated) start and the address phase. It returns false
// when the transaction cannot continue.
func (c *Controller) startBus(cmd core.I2CCommand) bool {
	for _, d := range c.devices {
		d.start()
	}
	c.active = true
	c.dir = core.Direction(c.slave & 1)
	c.targets = c.targets[:0]

	if f := c.fault(PhaseAddress, c.dir); f != nil {
		c.status = f.Status
	} else {
		for _, d := range c.devices {
			if d.address(c.slave) {
				c.targets = append(c.targets, d)
			}
		}
		if len(c.targets) == 0 {
			c.status = core.StatusAddrNack
		}
	}

	if c.status.OK() {
		return true
	}
	if c.dir == core.Receive {
		c.data = 0xFF
	}
	if cmd&core.CmdStop != 0 {
		c.stopBus()
	}
	return false
}

func (c *Controller) receive(cmd core.I2CCommand) {
	if cmd&core.CmdAck == 0 && cmd&core.CmdStop == 0 {
		c.violation("final receive byte not followed by stop")
	}
	if cmd&core.CmdAck != 0 && cmd&core.CmdStop != 0 {
		c.violation("stop after acknowledged receive byte")
	}

	if f := c.fault(PhaseData, core.Receive); f != nil {
		c.status = f.Status
		c.data = 0xFF
		return
	}

	// Open-drain: simultaneous responders AND their bits together
	v := uint8(0xFF)
	for _, d := range c.targets {
		v &= d.read()
	}
	c.data = v
}

func (c *Controller) transmit(cmd core.I2CCommand) {
	if cmd&core.CmdAck != 0 {
		c.violation("ACK bit set on transmit")
	}

	if f := c.fault(PhaseData, core.Transmit); f != nil {
		c.status = f.Status
		return
	}

	acked := false
	for _, d := range c.targets {
		if d.write(c.data) {
			acked = true
		}
	}
	if !acked {
		c.status = core.StatusDataNack
	}
}

func (c *Controller) stopBus() {
	for _, d := range c.devices {
		d.stop()
	}
	c.targets = c.targets[:0]
	c.active = false
}

func (c *Controller) fault(phase Phase, dir core.Direction) *Fault {
	for _, f := range c.faults {
		if f.match(phase, dir) {
			return f
		}
	}
	return nil
}
