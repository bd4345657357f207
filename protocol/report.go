package protocol

import "errors"

var ErrReportTooLong = errors.New("report does not fit in one frame")

// Report is one decoded message.
type Report struct {
	Seq  uint8
	ID   uint16
	Args []int32
}

// Encoder frames reports into an OutputBuffer, numbering them with a
// rolling four-bit sequence.
type Encoder struct {
	output  OutputBuffer
	seq     uint8
	payload ScratchOutput
}

func NewEncoder(output OutputBuffer) *Encoder {
	return &Encoder{output: output, seq: MessageDest}
}

// Encode appends one frame carrying id and args.
func (e *Encoder) Encode(id uint16, args ...int32) error {
	e.payload.Reset()
	EncodeVLQUint(&e.payload, uint32(id))
	for _, a := range args {
		EncodeVLQInt(&e.payload, a)
	}
	payload := e.payload.Result()
	if len(payload)+MessageLengthMin > MessageLengthMax {
		return ErrReportTooLong
	}

	cursor := e.output.CurPosition()
	e.output.Output([]byte{uint8(len(payload) + MessageLengthMin), e.seq})
	e.output.Output(payload)

	crc := CRC16(e.output.DataSince(cursor))
	e.output.Output([]byte{
		uint8(crc >> 8),
		uint8(crc),
		MessageValueSync,
	})

	e.seq = ((e.seq + 1) & MessageSeqMask) | MessageDest
	return nil
}

// Decoder extracts reports from a byte stream. Garbage and corrupted
// frames are skipped by hunting for the next sync byte.
type Decoder struct {
	handler      func(Report)
	synchronized bool
	expectSeq    uint8
	haveSeq      bool

	// Dropped counts frames discarded for bad length, CRC or payload
	Dropped int
	// Lost counts frames missing from the sequence
	Lost int
}

func NewDecoder(handler func(Report)) *Decoder {
	return &Decoder{handler: handler, synchronized: true}
}

// Receive consumes every complete frame in input and leaves a trailing
// partial frame for the next call.
func (d *Decoder) Receive(input InputBuffer) {
	data := input.Data()

	for len(data) > 0 {
		if !d.synchronized {
			syncPos := -1
			for i, b := range data {
				if b == MessageValueSync {
					syncPos = i
					break
				}
			}
			if syncPos < 0 {
				data = nil
				break
			}
			data = data[syncPos+1:]
			d.synchronized = true
			continue
		}

		if data[0] == MessageValueSync {
			data = data[1:]
			continue
		}

		if len(data) < MessageLengthMin {
			break
		}

		msgLen := int(data[MessagePositionLen])
		seq := data[MessagePositionSeq]
		if msgLen < MessageLengthMin || msgLen > MessageLengthMax || seq&^MessageSeqMask != MessageDest {
			d.resync()
			continue
		}

		if len(data) < msgLen {
			break
		}

		if data[msgLen-MessageTrailerSync] != MessageValueSync {
			d.resync()
			continue
		}

		frameCRC := uint16(data[msgLen-MessageTrailerCRC])<<8 |
			uint16(data[msgLen-MessageTrailerCRC+1])
		if frameCRC != CRC16(data[:msgLen-MessageTrailerSize]) {
			d.resync()
			continue
		}

		frame := data[MessageHeaderSize : msgLen-MessageTrailerSize]
		data = data[msgLen:]
		d.dispatch(seq, frame)
	}

	consumed := input.Available() - len(data)
	if consumed > 0 {
		input.Pop(consumed)
	}
}

func (d *Decoder) resync() {
	d.synchronized = false
	d.Dropped++
}

func (d *Decoder) dispatch(seq uint8, frame []byte) {
	id, err := DecodeVLQUint(&frame)
	if err != nil {
		d.Dropped++
		return
	}

	r := Report{Seq: seq & MessageSeqMask, ID: uint16(id)}
	for len(frame) > 0 {
		v, err := DecodeVLQInt(&frame)
		if err != nil {
			d.Dropped++
			return
		}
		r.Args = append(r.Args, v)
	}

	if d.haveSeq && seq != d.expectSeq {
		d.Lost += int((seq - d.expectSeq) & MessageSeqMask)
	}
	d.expectSeq = ((seq + 1) & MessageSeqMask) | MessageDest
	d.haveSeq = true

	if d.handler != nil {
		d.handler(r)
	}
}
