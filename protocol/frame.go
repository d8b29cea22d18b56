// Package protocol
// Author: momentics <momentics@gmail.com>
//
// Decoded WebSocket frames and frame-level errors.

package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Frame is one decoded WebSocket frame. Payload aliases the buffer it was
// decoded from and is only valid until that buffer is reused.
type Frame struct {
	Opcode  Opcode
	Fin     bool
	Payload []byte
}

// IsText reports a text frame.
func (f Frame) IsText() bool { return f.Opcode == OpcodeText }

// CloseCode returns the status code carried by a close frame, or
// CloseNoStatusRcvd when the payload has none.
func (f Frame) CloseCode() int {
	if f.Opcode != OpcodeClose || len(f.Payload) < 2 {
		return CloseNoStatusRcvd
	}
	return int(binary.BigEndian.Uint16(f.Payload))
}

func (f Frame) String() string {
	return fmt.Sprintf("%s(fin=%t, %d bytes)", f.Opcode, f.Fin, len(f.Payload))
}

// Frame decoding errors.
var (
	ErrReservedBits      = errors.New("reserved bits set without negotiated extension")
	ErrUnknownOpcode     = errors.New("unknown opcode")
	ErrFragmentedControl = errors.New("fragmented control frame")
	ErrControlTooLong    = errors.New("control frame payload exceeds 125 bytes")
	ErrFrameTooLarge     = errors.New("frame payload exceeds maximum allowed size")
)

// FrameError reports a malformed frame and where it started.
type FrameError struct {
	Offset int // byte offset of the offending frame within the read batch
	Err    error
}

func (e *FrameError) Error() string {
	return fmt.Sprintf("websocket frame at offset %d: %v", e.Offset, e.Err)
}

func (e *FrameError) Unwrap() error { return e.Err }
