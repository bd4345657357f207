// Package protocol frames distance reports for a byte stream (UART or USB
// serial). Frames use the Klipper block layout: length, sequence, VLQ
// payload, CRC16 and a sync byte.
package protocol

// Frame layout
const (
	MessageHeaderSize  = 2
	MessageTrailerSize = 3
	MessageLengthMin   = MessageHeaderSize + MessageTrailerSize
	MessageLengthMax   = 64
	MessagePositionLen = 0
	MessagePositionSeq = 1
	MessageTrailerCRC  = 3
	MessageTrailerSync = 1
	MessageValueSync   = 0x7E

	// MessageDest marks the high nibble of every sequence byte
	MessageDest    = 0x10
	MessageSeqMask = 0x0F
	MessageScratch = 512
)

// Report message IDs
const (
	MsgDevice        uint16 = 0x01 // index, address, model id, revision id
	MsgReading       uint16 = 0x02 // index, distance mm
	MsgSkipped       uint16 = 0x03 // index, bus status
	MsgBringUpFailed uint16 = 0x04 // index, bus status
)
