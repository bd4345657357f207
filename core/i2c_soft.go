package core

import (
	"errors"
	"time"
)

// stretchLimit bounds how many half periods a slave may hold SCL low.
const stretchLimit = 1000

var ErrBadFrequency = errors.New("i2c frequency must be non-zero")

// SoftI2C is a bit-banged bus master behind the I2CController interface, so
// boards without a usable master peripheral run the same transport logic.
// Lines are driven open-drain: low is an output driving 0, high is released
// to the pull-up. Commands complete synchronously, so Busy is always false.
type SoftI2C struct {
	gpio GPIODriver
	sda  GPIOPin
	scl  GPIOPin

	half  time.Duration
	delay Sleeper

	slave   uint8
	data    uint8
	status  Status
	active  bool // Between start and stop
	receive bool
	fault   error
}

// NewSoftI2C creates a bit-banged master on the given pins.
func NewSoftI2C(gpio GPIODriver, sda, scl GPIOPin) *SoftI2C {
	return &SoftI2C{
		gpio:  gpio,
		sda:   sda,
		scl:   scl,
		delay: defaultSleep,
	}
}

// SetDelay replaces the half-period wait. Tests pass a no-op.
func (s *SoftI2C) SetDelay(d Sleeper) {
	s.delay = d
}

// Configure releases both lines and clears a slave stuck mid-byte.
func (s *SoftI2C) Configure(cfg I2CConfig) error {
	if cfg.FrequencyHz == 0 {
		return ErrBadFrequency
	}
	s.half = time.Second / time.Duration(2*cfg.FrequencyHz)
	s.fault = nil
	s.active = false

	s.release(s.scl)
	s.release(s.sda)
	s.recover()
	return s.fault
}

func (s *SoftI2C) Busy() bool { return false }
func (s *SoftI2C) Status() Status { return s.status }
func (s *SoftI2C) SetSlaveAddress(w uint8) { s.slave = w }
func (s *SoftI2C) SetData(b uint8) { s.data = b }
func (s *SoftI2C) Data() uint8 { return s.data }

// Control executes one master command.
func (s *SoftI2C) Control(cmd I2CCommand) {
	s.status = StatusOK
	s.fault = nil

	if cmd&CmdRun == 0 {
		if cmd&CmdStop != 0 && s.active {
			s.stop()
		}
		s.latchFault()
		return
	}

	if cmd&CmdStart != 0 {
		if !s.start() {
			s.status = StatusBusError
			return
		}
		s.receive = Direction(s.slave&1) == Receive

		acked, ok := s.writeByte(s.slave)
		if !ok {
			s.status = StatusBusError
			s.active = false
			return
		}
		if !acked {
			s.status = StatusAddrNack
			if cmd&CmdStop != 0 {
				s.stop()
			}
			s.latchFault()
			return
		}
	}

	if s.receive {
		s.data = s.readByte(cmd&CmdAck != 0)
	} else {
		acked, ok := s.writeByte(s.data)
		if !ok {
			s.status = StatusBusError
			s.active = false
			return
		}
		if !acked {
			s.status = StatusDataNack
			if cmd&CmdStop != 0 {
				s.stop()
			}
			s.latchFault()
			return
		}
	}

	if cmd&CmdStop != 0 {
		s.stop()
	}
	s.latchFault()
}

func (s *SoftI2C) latchFault() {
	if s.fault != nil {
		s.status |= StatusBusError
	}
}

func (s *SoftI2C) wait() {
	if s.half > 0 && s.delay != nil {
		s.delay(s.half)
	}
}

func (s *SoftI2C) low(pin GPIOPin) {
	if err := s.gpio.ConfigureOutput(pin); err != nil && s.fault == nil {
		s.fault = err
	}
	if err := s.gpio.SetPin(pin, false); err != nil && s.fault == nil {
		s.fault = err
	}
}

func (s *SoftI2C) release(pin GPIOPin) {
	if err := s.gpio.ConfigureInputPullUp(pin); err != nil && s.fault == nil {
		s.fault = err
	}
}

func (s *SoftI2C) read(pin GPIOPin) bool {
	v, err := s.gpio.GetPin(pin)
	if err != nil && s.fault == nil {
		s.fault = err
	}
	return v
}

// sclHigh releases SCL and waits out clock stretching.
func (s *SoftI2C) sclHigh() bool {
	s.release(s.scl)
	for i := 0; i < stretchLimit; i++ {
		if s.read(s.scl) {
			return true
		}
		s.wait()
	}
	s.fault = errors.New("i2c: clock held low")
	return false
}

// start issues a start, or a repeated start inside a transaction.
func (s *SoftI2C) start() bool {
	if s.active {
		s.release(s.sda)
		s.wait()
		if !s.sclHigh() {
			return false
		}
		s.wait()
	}

	if !s.read(s.sda) {
		// Another master or a stuck slave owns the bus
		return false
	}

	s.low(s.sda)
	s.wait()
	s.low(s.scl)
	s.wait()
	s.active = true
	return s.fault == nil
}

func (s *SoftI2C) stop() {
	s.low(s.sda)
	s.wait()
	s.sclHigh()
	s.wait()
	s.release(s.sda)
	s.wait()
	s.active = false
	if !s.read(s.sda) && s.fault == nil {
		s.fault = errors.New("i2c: data line held low after stop")
	}
}

// writeBit clocks out one bit. It returns false if a released line read
// back low, meaning arbitration was lost.
func (s *SoftI2C) writeBit(bit bool) bool {
	if bit {
		s.release(s.sda)
	} else {
		s.low(s.sda)
	}
	s.wait()
	if !s.sclHigh() {
		return false
	}
	ok := !bit || s.read(s.sda)
	s.wait()
	s.low(s.scl)
	return ok
}

func (s *SoftI2C) readBit() bool {
	s.release(s.sda)
	s.wait()
	if !s.sclHigh() {
		return true
	}
	v := s.read(s.sda)
	s.wait()
	s.low(s.scl)
	return v
}

// writeByte sends b MSB first and samples the acknowledge bit.
func (s *SoftI2C) writeByte(b uint8) (acked, ok bool) {
	for i := 7; i >= 0; i-- {
		if !s.writeBit(b&(1<<i) != 0) {
			return false, false
		}
	}
	return !s.readBit(), s.fault == nil
}

// readByte receives one byte, then acknowledges it or not.
func (s *SoftI2C) readByte(ack bool) uint8 {
	var b uint8
	for i := 0; i < 8; i++ {
		b <<= 1
		if s.readBit() {
			b |= 1
		}
	}
	s.writeBit(!ack)
	return b
}

// recover clocks SCL until a slave holding SDA low finishes its byte, then
// issues a stop.
func (s *SoftI2C) recover() {
	if s.read(s.sda) {
		return
	}
	for i := 0; i < 9 && !s.read(s.sda); i++ {
		s.low(s.scl)
		s.wait()
		s.sclHigh()
		s.wait()
	}
	s.stop()
}
