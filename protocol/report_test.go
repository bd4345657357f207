package protocol

import (
	"bytes"
	"errors"
	"testing"
)

func TestEncodeFrame(t *testing.T) {
	out := NewScratchOutput()
	enc := NewEncoder(out)

	if err := enc.Encode(MsgReading, 1, 1234); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	expected := []byte{0x09, 0x10, 0x02, 0x01, 0x89, 0x52, 0xD0, 0xAA, 0x7E}
	if got := out.Result(); !bytes.Equal(got, expected) {
		t.Errorf("Expected frame % X, got % X", expected, got)
	}

	out.Reset()
	if err := enc.Encode(MsgReading, 1, 1234); err != nil {
		t.Fatal(err)
	}
	if seq := out.Result()[MessagePositionSeq]; seq != 0x11 {
		t.Errorf("Expected second frame seq 0x11, got 0x%02x", seq)
	}
}

func TestEncodeTooLong(t *testing.T) {
	out := NewScratchOutput()
	enc := NewEncoder(out)

	args := make([]int32, 15)
	for i := range args {
		args[i] = -1000000
	}
	if err := enc.Encode(MsgReading, args...); !errors.Is(err, ErrReportTooLong) {
		t.Fatalf("Expected ErrReportTooLong, got %v", err)
	}
	if out.CurPosition() != 0 {
		t.Errorf("Rejected report left %d bytes behind", out.CurPosition())
	}

	if err := enc.Encode(MsgDevice, 0); err != nil {
		t.Fatal(err)
	}
	if seq := out.Result()[MessagePositionSeq]; seq != MessageDest {
		t.Errorf("Rejected report consumed a sequence number, seq 0x%02x", seq)
	}
}

func TestDecodeFragmented(t *testing.T) {
	out := NewScratchOutput()
	enc := NewEncoder(out)
	enc.Encode(MsgDevice, 0, 0x29, 0xEE)
	enc.Encode(MsgReading, 0, 812)
	enc.Encode(MsgSkipped, 1, 2)
	stream := append([]byte(nil), out.Result()...)

	var reports []Report
	dec := NewDecoder(func(r Report) { reports = append(reports, r) })
	fifo := NewFifoBuffer(32)

	// Feed a few bytes at a time, the way a serial port delivers them
	for len(stream) > 0 {
		n := 3
		if n > len(stream) {
			n = len(stream)
		}
		if _, err := fifo.Write(stream[:n]); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
		stream = stream[n:]
		dec.Receive(fifo)
	}

	if len(reports) != 3 {
		t.Fatalf("Expected 3 reports, got %d", len(reports))
	}
	if r := reports[0]; r.ID != MsgDevice || len(r.Args) != 3 || r.Args[1] != 0x29 || r.Args[2] != 0xEE {
		t.Errorf("Unexpected device report %+v", r)
	}
	if r := reports[1]; r.ID != MsgReading || r.Seq != 1 || len(r.Args) != 2 || r.Args[1] != 812 {
		t.Errorf("Unexpected reading report %+v", r)
	}
	if r := reports[2]; r.ID != MsgSkipped || r.Args[0] != 1 {
		t.Errorf("Unexpected skipped report %+v", r)
	}
	if fifo.Available() != 0 {
		t.Errorf("Expected fifo drained, %d bytes left", fifo.Available())
	}
	if dec.Dropped != 0 || dec.Lost != 0 {
		t.Errorf("Expected clean stream, dropped %d lost %d", dec.Dropped, dec.Lost)
	}
}

func TestDecodeResyncAfterCorruption(t *testing.T) {
	out := NewScratchOutput()
	enc := NewEncoder(out)
	enc.Encode(MsgReading, 0, 100)
	first := out.CurPosition()
	enc.Encode(MsgReading, 1, 200)

	stream := append([]byte{0x00, 0x42}, out.Result()...)
	// Damage the first frame's CRC
	stream[2+first-MessageTrailerCRC] ^= 0xFF

	var reports []Report
	dec := NewDecoder(func(r Report) { reports = append(reports, r) })
	fifo := NewFifoBuffer(64)
	fifo.Write(stream)
	dec.Receive(fifo)

	if len(reports) != 1 || reports[0].Args[1] != 200 {
		t.Fatalf("Expected only the second report, got %+v", reports)
	}
	if dec.Dropped == 0 {
		t.Errorf("Expected dropped frames to be counted")
	}
}

func TestDecodeCountsLostFrames(t *testing.T) {
	var frames [][]byte
	out := NewScratchOutput()
	enc := NewEncoder(out)
	for i := int32(0); i < 3; i++ {
		out.Reset()
		enc.Encode(MsgReading, i, 100*i)
		frames = append(frames, append([]byte(nil), out.Result()...))
	}

	var reports []Report
	dec := NewDecoder(func(r Report) { reports = append(reports, r) })
	fifo := NewFifoBuffer(64)
	fifo.Write(frames[0])
	fifo.Write(frames[2])
	dec.Receive(fifo)

	if len(reports) != 2 {
		t.Fatalf("Expected 2 reports, got %d", len(reports))
	}
	if dec.Lost != 1 {
		t.Errorf("Expected 1 lost frame, got %d", dec.Lost)
	}
}
