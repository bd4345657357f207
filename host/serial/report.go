package serial

import (
	"fmt"
	"io"

	"tofbus/core"
	"tofbus/protocol"
	"tofbus/ranging"
)

// Sink frames bring-up results and readings onto w.
type Sink struct {
	w   io.Writer
	out *protocol.ScratchOutput
	enc *protocol.Encoder
}

func NewSink(w io.Writer) *Sink {
	out := protocol.NewScratchOutput()
	return &Sink{w: w, out: out, enc: protocol.NewEncoder(out)}
}

func (s *Sink) send(id uint16, args ...int32) error {
	if err := s.enc.Encode(id, args...); err != nil {
		s.out.Reset()
		return err
	}
	return s.out.Flush(s.w)
}

// Device reports a sensor placed on the bus.
func (s *Sink) Device(rec core.DeviceRecord) error {
	return s.send(protocol.MsgDevice, int32(rec.Index), int32(rec.Address), int32(rec.Info.ModelID))
}

// Reading reports one distance sample.
func (s *Sink) Reading(r ranging.Reading) error {
	return s.send(protocol.MsgReading, int32(r.Index), int32(r.Distance))
}

// Skipped reports a sample lost to err.
func (s *Sink) Skipped(index int, err error) error {
	return s.send(protocol.MsgSkipped, int32(index), int32(core.StatusOf(err)))
}

// BringUpFailed reports the sensor bring-up stopped at.
func (s *Sink) BringUpFailed(err *core.BringUpError) error {
	return s.send(protocol.MsgBringUpFailed, int32(err.Index), int32(err.Status))
}

// Monitor decodes reports arriving on r until it returns an error.
func Monitor(r io.Reader, handler func(protocol.Report)) (*protocol.Decoder, error) {
	fifo := protocol.NewFifoBuffer(4 * protocol.MessageLengthMax)
	dec := protocol.NewDecoder(handler)
	buf := make([]byte, protocol.MessageLengthMax)

	for {
		n, err := r.Read(buf)
		if n > 0 {
			if _, werr := fifo.Write(buf[:n]); werr != nil {
				return dec, werr
			}
			dec.Receive(fifo)
		}
		if err != nil {
			if err == io.EOF {
				return dec, nil
			}
			return dec, err
		}
	}
}

// Format renders a report as one log line.
func Format(r protocol.Report) string {
	arg := func(i int) int32 {
		if i < len(r.Args) {
			return r.Args[i]
		}
		return 0
	}

	switch r.ID {
	case protocol.MsgDevice:
		return fmt.Sprintf("sensor %d at %s (model 0x%02x)", arg(0), core.Address(arg(1)), arg(2))
	case protocol.MsgReading:
		return fmt.Sprintf("sensor %d: %d mm", arg(0), arg(1))
	case protocol.MsgSkipped:
		return fmt.Sprintf("sensor %d: skipped (%s)", arg(0), core.Status(arg(1)))
	case protocol.MsgBringUpFailed:
		return fmt.Sprintf("could not initialize sensor %d (%s)", arg(0), core.Status(arg(1)))
	}
	return fmt.Sprintf("unknown report %d %v", r.ID, r.Args)
}
