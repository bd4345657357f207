package protocol

import (
	"errors"
	"io"
)

var ErrFifoFull = errors.New("fifo full")

// InputBuffer is a window onto received bytes
type InputBuffer interface {
	// Data returns the available data as one contiguous slice
	Data() []byte

	// Available returns the number of bytes available
	Available() int

	// Pop removes n bytes from the front of the buffer
	Pop(n int)
}

// OutputBuffer accumulates outgoing frames
type OutputBuffer interface {
	// Output appends data
	Output(data []byte)

	// CurPosition returns the current write position
	CurPosition() int

	// Update modifies a byte already written
	Update(pos int, val byte)

	// DataSince returns everything written from pos on
	DataSince(pos int) []byte
}

// ScratchOutput is a fixed-size OutputBuffer. It never allocates, so the
// firmware can frame reports from its main loop.
type ScratchOutput struct {
	buf [MessageScratch]byte
	pos int
}

func NewScratchOutput() *ScratchOutput {
	return &ScratchOutput{}
}

func (s *ScratchOutput) Output(data []byte) {
	n := copy(s.buf[s.pos:], data)
	s.pos += n
}

func (s *ScratchOutput) CurPosition() int {
	return s.pos
}

func (s *ScratchOutput) Update(pos int, val byte) {
	if pos < s.pos {
		s.buf[pos] = val
	}
}

func (s *ScratchOutput) DataSince(pos int) []byte {
	if pos > s.pos {
		return nil
	}
	return s.buf[pos:s.pos]
}

// Result returns the accumulated output
func (s *ScratchOutput) Result() []byte {
	return s.buf[:s.pos]
}

// Pop drops the first n bytes and keeps the rest, e.g. after a short write.
func (s *ScratchOutput) Pop(n int) {
	if n >= s.pos {
		s.pos = 0
		return
	}
	if n <= 0 {
		return
	}
	s.pos = copy(s.buf[:], s.buf[n:s.pos])
}

// Reset clears the buffer
func (s *ScratchOutput) Reset() {
	s.pos = 0
}

// Flush writes the accumulated output to w and clears the buffer.
func (s *ScratchOutput) Flush(w io.Writer) error {
	if s.pos == 0 {
		return nil
	}
	_, err := w.Write(s.buf[:s.pos])
	s.pos = 0
	return err
}

// FifoBuffer is a circular receive buffer for serial input. Bytes are
// written as they arrive and consumed as whole frames through InputBuffer.
type FifoBuffer struct {
	buf   []byte
	read  int
	write int
	size  int
}

// NewFifoBuffer creates a FIFO holding up to capacity-1 bytes.
func NewFifoBuffer(capacity int) *FifoBuffer {
	return &FifoBuffer{
		buf:  make([]byte, capacity),
		size: capacity,
	}
}

// Write implements io.Writer. It stores as much of p as fits and reports
// ErrFifoFull for the rest.
func (f *FifoBuffer) Write(p []byte) (int, error) {
	for i, b := range p {
		next := (f.write + 1) % f.size
		if next == f.read {
			return i, ErrFifoFull
		}
		f.buf[f.write] = b
		f.write = next
	}
	return len(p), nil
}

// Available returns the number of bytes buffered
func (f *FifoBuffer) Available() int {
	if f.write >= f.read {
		return f.write - f.read
	}
	return f.size - f.read + f.write
}

// Free returns the number of bytes that can still be written
func (f *FifoBuffer) Free() int {
	return f.size - f.Available() - 1
}

// Data returns the buffered bytes. A wrapped buffer is copied into a
// contiguous slice so a frame is never split.
func (f *FifoBuffer) Data() []byte {
	if f.read <= f.write {
		return f.buf[f.read:f.write]
	}
	result := make([]byte, f.Available())
	n := copy(result, f.buf[f.read:])
	copy(result[n:], f.buf[:f.write])
	return result
}

// Pop removes n bytes from the front
func (f *FifoBuffer) Pop(n int) {
	if n > f.Available() {
		n = f.Available()
	}
	f.read = (f.read + n) % f.size
}

// Reset clears the buffer
func (f *FifoBuffer) Reset() {
	f.read = 0
	f.write = 0
}
