package protocol

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeUnmaskedText(t *testing.T) {
	raw := AppendFrame(nil, OpcodeText, true, []byte("hello"), false, [4]byte{})
	f, n, err := DecodeFrameFromBytes(raw, 0)
	require.NoError(t, err)
	assert.Equal(t, len(raw), n)
	assert.Equal(t, OpcodeText, f.Opcode)
	assert.True(t, f.Fin)
	assert.Equal(t, "hello", string(f.Payload))
}

func TestDecodeMaskedRoundTrip(t *testing.T) {
	payload := []byte(`{"u":1,"s":"BTCUSDT"}`)
	raw, err := AppendClientFrame(nil, OpcodeBinary, payload)
	require.NoError(t, err)
	assert.NotEqual(t, byte(0), raw[1]&MaskBit)

	f, n, err := DecodeFrameFromBytes(raw, 0)
	require.NoError(t, err)
	assert.Equal(t, len(raw), n)
	assert.Equal(t, payload, f.Payload)
}

func TestDecodeExtendedLengths(t *testing.T) {
	for _, size := range []int{125, 126, 65535, 65536, 200000} {
		payload := bytes.Repeat([]byte{'x'}, size)
		raw := AppendFrame(nil, OpcodeBinary, true, payload, false, [4]byte{})
		f, n, err := DecodeFrameFromBytes(raw, 0)
		require.NoError(t, err, "size %d", size)
		assert.Equal(t, len(raw), n)
		assert.Len(t, f.Payload, size)
	}
}

func TestDecodeIncomplete(t *testing.T) {
	raw := AppendFrame(nil, OpcodeText, true, bytes.Repeat([]byte{'a'}, 300), true, [4]byte{1, 2, 3, 4})
	// Every strict prefix is reported as incomplete and left untouched.
	for i := 0; i < len(raw); i++ {
		prefix := append([]byte(nil), raw[:i]...)
		f, n, err := DecodeFrameFromBytes(prefix, 0)
		require.NoError(t, err, "prefix %d", i)
		assert.Zero(t, n)
		assert.Nil(t, f.Payload)
		assert.Equal(t, raw[:i], prefix)
	}
}

func TestDecodeTwoFramesBackToBack(t *testing.T) {
	raw := AppendFrame(nil, OpcodeText, true, []byte("a"), false, [4]byte{})
	raw = AppendFrame(raw, OpcodePing, true, []byte("p"), false, [4]byte{})

	f1, n1, err := DecodeFrameFromBytes(raw, 0)
	require.NoError(t, err)
	f2, n2, err := DecodeFrameFromBytes(raw[n1:], 0)
	require.NoError(t, err)
	assert.Equal(t, "a", string(f1.Payload))
	assert.Equal(t, OpcodePing, f2.Opcode)
	assert.Equal(t, len(raw), n1+n2)
}

func TestDecodeProtocolViolations(t *testing.T) {
	cases := []struct {
		name string
		raw  []byte
		want error
	}{
		{"rsv1", []byte{0xC1, 0x00}, ErrReservedBits},
		{"rsv3", []byte{0x91, 0x00}, ErrReservedBits},
		{"opcode 3", []byte{0x83, 0x00}, ErrUnknownOpcode},
		{"opcode 0xB", []byte{0x8B, 0x00}, ErrUnknownOpcode},
		{"fragmented ping", []byte{0x09, 0x00}, ErrFragmentedControl},
		{"long close", []byte{0x88, 126, 0x00, 0x7E}, ErrControlTooLong},
		{"64-bit msb", []byte{0x82, 127, 0x80, 0, 0, 0, 0, 0, 0, 0}, ErrFrameTooLarge},
		{"over limit", []byte{0x82, 127, 0, 0, 0, 0, 0x01, 0, 0, 1}, ErrFrameTooLarge},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, n, err := DecodeFrameFromBytes(tc.raw, 0)
			assert.ErrorIs(t, err, tc.want)
			assert.Zero(t, n)
		})
	}
}

func TestDecodeCustomLimit(t *testing.T) {
	raw := AppendFrame(nil, OpcodeText, true, make([]byte, 64), false, [4]byte{})
	_, _, err := DecodeFrameFromBytes(raw, 32)
	assert.ErrorIs(t, err, ErrFrameTooLarge)
	_, n, err := DecodeFrameFromBytes(raw, 64)
	require.NoError(t, err)
	assert.Equal(t, len(raw), n)
}

func TestAppendFrameDoesNotMutatePayload(t *testing.T) {
	payload := []byte("abcd")
	_ = AppendFrame(nil, OpcodeText, true, payload, true, [4]byte{0xFF, 0xFF, 0xFF, 0xFF})
	assert.Equal(t, "abcd", string(payload))
}

func TestCloseCode(t *testing.T) {
	raw := AppendFrame(nil, OpcodeClose, true, ClosePayload(CloseGoingAway, "bye"), false, [4]byte{})
	f, _, err := DecodeFrameFromBytes(raw, 0)
	require.NoError(t, err)
	assert.Equal(t, CloseGoingAway, f.CloseCode())
	assert.Equal(t, CloseNoStatusRcvd, Frame{Opcode: OpcodeClose}.CloseCode())
}

func TestFrameErrorUnwrap(t *testing.T) {
	err := error(&FrameError{Offset: 12, Err: ErrUnknownOpcode})
	assert.True(t, errors.Is(err, ErrUnknownOpcode))
	assert.Contains(t, err.Error(), "offset 12")
	var fe *FrameError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, 12, fe.Offset)
}
