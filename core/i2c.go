// I2C (Inter-Integrated Circuit) master transactions
// Register-level read/write framing against one bus instance
package core

import "errors"

// MaxRetries bounds the receive attempts of a read before giving up.
const MaxRetries = 5

var ErrBusConfigured = errors.New("i2c bus already configured with different settings")

// Transport performs blocking, logically atomic transactions on one bus
// instance. It is not safe for concurrent use; callers serialize by
// construction (single thread of execution).
type Transport struct {
	ctl        I2CController
	cfg        I2CConfig
	configured bool
}

// NewTransport binds the transaction logic to a bus instance.
func NewTransport(ctl I2CController) *Transport {
	return &Transport{ctl: ctl}
}

// Init configures the bus instance. Calling it again with the same
// configuration does nothing.
func (t *Transport) Init(cfg I2CConfig) error {
	if t.configured {
		if cfg != t.cfg {
			return ErrBusConfigured
		}
		return nil
	}

	if err := t.ctl.Configure(cfg); err != nil {
		return err
	}

	t.cfg = cfg
	t.configured = true
	Debugf("i2c: bus %d configured at %d Hz (tpr=%d)", cfg.Bus, cfg.FrequencyHz, cfg.TimerPeriod())
	return nil
}

// Config returns the active bus configuration.
func (t *Transport) Config() I2CConfig {
	return t.cfg
}

// waitIdle spins until the bus instance clears its busy flag.
func (t *Transport) waitIdle() {
	for t.ctl.Busy() {
	}
}

func (t *Transport) errorBits() Status {
	return t.ctl.Status() & statusErrorMask
}

// run issues one command and waits for it to complete.
func (t *Transport) run(cmd I2CCommand) Status {
	t.ctl.Control(cmd)
	t.waitIdle()
	return t.errorBits()
}

// abort releases the bus after an error and returns the error bits seen
// before the stop was issued.
func (t *Transport) abort(status Status) Status {
	t.ctl.Control(CmdStop)
	t.waitIdle()
	return status
}

// Read selects reg on the slave at addr and receives len(buf) bytes into
// buf. The receive burst is retried up to MaxRetries times while the address
// is not acknowledged or a bus error is reported. A burst that failed after
// the device acknowledged has moved the device's register pointer, so reg is
// selected again before the next attempt. On failure buf holds whatever the
// data register latched, which is typically 0xFF.
func (t *Transport) Read(addr Address, reg uint8, buf []byte) Status {
	selectReg := func() Status { return t.Write(addr, reg, nil) }
	if status := selectReg(); !status.OK() {
		return status
	}
	if len(buf) == 0 {
		return StatusOK
	}
	return t.receive(addr, buf, selectReg)
}

// receive clocks in len(buf) bytes from addr, retrying the whole burst.
// reselect restores the device's register pointer after a burst that got
// past the address phase; with no reselect such a burst is not retried.
func (t *Transport) receive(addr Address, buf []byte, reselect func() Status) Status {
	status := StatusOK

	for attempt := 1; attempt <= MaxRetries; attempt++ {
		t.waitIdle()
		t.ctl.SetSlaveAddress(addr.Wire(Receive))

		var acked bool
		status, acked = t.receiveBurst(buf)
		if !status.Retryable() || attempt == MaxRetries {
			break
		}
		Debugf("i2c: read %s attempt %d failed: %s", addr, attempt, status)

		if acked {
			if reselect == nil {
				break
			}
			if s := reselect(); !s.OK() {
				return s
			}
		}
	}

	return status
}

// receiveBurst runs one start..stop receive sequence. The acknowledge type
// and the stop condition must be issued together with the final byte.
// acked reports whether the device may have sent data, i.e. the burst did
// not fail on an unacknowledged address.
func (t *Transport) receiveBurst(buf []byte) (status Status, acked bool) {
	last := len(buf) - 1

	if last == 0 {
		// Single byte: negative ack and stop on the only byte
		status = t.run(CmdStop | CmdStart | CmdRun)
		buf[0] = t.ctl.Data()
		return status, status&StatusAddrNack == 0
	}

	if status := t.run(CmdAck | CmdStart | CmdRun); !status.OK() {
		buf[0] = t.ctl.Data()
		return t.abort(status), status&StatusAddrNack == 0
	}
	buf[0] = t.ctl.Data()

	for i := 1; i < last; i++ {
		if status := t.run(CmdAck | CmdRun); !status.OK() {
			buf[i] = t.ctl.Data()
			return t.abort(status), true
		}
		buf[i] = t.ctl.Data()
	}

	status = t.run(CmdStop | CmdRun)
	buf[last] = t.ctl.Data()
	return status, true
}

// Write sends reg followed by data to the slave at addr. With no data the
// register index alone is sent and the transaction stopped, which is how a
// read selects its register. Any error aborts the transaction with a stop.
func (t *Transport) Write(addr Address, reg uint8, data []byte) Status {
	t.waitIdle()
	t.ctl.SetSlaveAddress(addr.Wire(Transmit))
	t.ctl.SetData(reg)

	if len(data) == 0 {
		return t.run(CmdStop | CmdStart | CmdRun)
	}

	if status := t.run(CmdStart | CmdRun); !status.OK() {
		return t.abort(status)
	}

	last := len(data) - 1
	for i := 0; i < last; i++ {
		t.ctl.SetData(data[i])
		if status := t.run(CmdRun); !status.OK() {
			return t.abort(status)
		}
	}

	t.ctl.SetData(data[last])
	return t.run(CmdStop | CmdRun)
}

// Tx writes w and then reads len(r) bytes, the combined form used by driver
// adapters. w[0] is taken as the register index, and w is written again
// before retrying a receive burst that got past the address phase.
func (t *Transport) Tx(addr Address, w, r []byte) Status {
	var reselect func() Status
	if len(w) > 0 {
		reselect = func() Status { return t.Write(addr, w[0], w[1:]) }
		if status := reselect(); !status.OK() || len(r) == 0 {
			return status
		}
	}
	if len(r) == 0 {
		return StatusOK
	}
	return t.receive(addr, r, reselect)
}
