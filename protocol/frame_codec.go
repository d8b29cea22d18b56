// File: protocol/frame_codec.go
// Package protocol implements zero-copy frame codec with frame size enforcement.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Decoding never copies: payloads alias the input and masked payloads are
// unmasked in place. Encoding appends to a caller-managed buffer.

package protocol

import (
	"crypto/rand"
	"encoding/binary"
)

// DecodeFrameFromBytes parses one frame from the start of raw.
// It returns the frame and the bytes it consumed. If raw does not yet hold
// the whole frame it returns (Frame{}, 0, nil) and leaves raw untouched.
// maxPayload <= 0 selects MaxFramePayload.
func DecodeFrameFromBytes(raw []byte, maxPayload int) (Frame, int, error) {
	if len(raw) < 2 {
		return Frame{}, 0, nil
	}
	if maxPayload <= 0 {
		maxPayload = MaxFramePayload
	}

	b0, b1 := raw[0], raw[1]
	if b0&RsvBits != 0 {
		return Frame{}, 0, ErrReservedBits
	}
	op := Opcode(b0 & 0x0F)
	if !op.valid() {
		return Frame{}, 0, ErrUnknownOpcode
	}
	fin := b0&FinBit != 0
	masked := b1&MaskBit != 0
	length := uint64(b1 & 0x7F)

	if op.IsControl() {
		if !fin {
			return Frame{}, 0, ErrFragmentedControl
		}
		if length > MaxControlPayloadLen {
			return Frame{}, 0, ErrControlTooLong
		}
	}

	offset := 2
	switch length {
	case 126:
		if len(raw) < offset+2 {
			return Frame{}, 0, nil
		}
		length = uint64(binary.BigEndian.Uint16(raw[offset:]))
		offset += 2
	case 127:
		if len(raw) < offset+8 {
			return Frame{}, 0, nil
		}
		length = binary.BigEndian.Uint64(raw[offset:])
		offset += 8
	}
	if length > uint64(maxPayload) {
		return Frame{}, 0, ErrFrameTooLarge
	}

	var maskKey [4]byte
	if masked {
		if len(raw) < offset+4 {
			return Frame{}, 0, nil
		}
		copy(maskKey[:], raw[offset:offset+4])
		offset += 4
	}

	total := offset + int(length)
	if len(raw) < total {
		return Frame{}, 0, nil
	}
	payload := raw[offset:total]
	if masked {
		maskInPlace(payload, maskKey)
	}
	return Frame{Opcode: op, Fin: fin, Payload: payload}, total, nil
}

// AppendFrame appends a single frame to dst. With masked set the payload is
// XORed with maskKey on the way out; the input slice is not modified.
func AppendFrame(dst []byte, op Opcode, fin bool, payload []byte, masked bool, maskKey [4]byte) []byte {
	b0 := byte(op) & 0x0F
	if fin {
		b0 |= FinBit
	}
	var maskBit byte
	if masked {
		maskBit = MaskBit
	}

	plen := len(payload)
	switch {
	case plen <= 125:
		dst = append(dst, b0, byte(plen)|maskBit)
	case plen <= 0xFFFF:
		dst = append(dst, b0, 126|maskBit)
		dst = binary.BigEndian.AppendUint16(dst, uint16(plen))
	default:
		dst = append(dst, b0, 127|maskBit)
		dst = binary.BigEndian.AppendUint64(dst, uint64(plen))
	}

	if !masked {
		return append(dst, payload...)
	}
	dst = append(dst, maskKey[:]...)
	start := len(dst)
	dst = append(dst, payload...)
	maskInPlace(dst[start:], maskKey)
	return dst
}

// AppendClientFrame appends a final frame masked with a fresh random key,
// as RFC 6455 requires for client-to-server frames.
func AppendClientFrame(dst []byte, op Opcode, payload []byte) ([]byte, error) {
	var key [4]byte
	if _, err := rand.Read(key[:]); err != nil {
		return dst, err
	}
	return AppendFrame(dst, op, true, payload, true, key), nil
}

// ClosePayload builds a close frame body carrying code and reason.
func ClosePayload(code int, reason string) []byte {
	b := binary.BigEndian.AppendUint16(make([]byte, 0, 2+len(reason)), uint16(code))
	return append(b, reason...)
}

// maskInPlace applies XOR on buf using key.
func maskInPlace(buf []byte, key [4]byte) {
	for i := range buf {
		buf[i] ^= key[i&3]
	}
}
