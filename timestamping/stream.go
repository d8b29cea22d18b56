// File: timestamping/stream.go
// Author: momentics <momentics@gmail.com>
//
// Timestamping layer state shared by all platforms.

package timestamping

import (
	"unsafe"

	"github.com/momentics/hioload-ts/api"
)

// controlBufferSize is the ancillary-data scratch size per stream. One
// SCM_TIMESTAMPING entry needs well under 100 bytes.
const controlBufferSize = 512

// recvmsgFunc is the receive-with-ancillary-data syscall. Tests substitute it.
type recvmsgFunc func(fd int, p, oob []byte, flags int) (n, oobn int, err error)

// Stream wraps a descriptor-owning layer and records the RX timestamps of
// every read. All other capabilities are forwarded unchanged.
type Stream struct {
	api.Passthrough

	// ctrl is declared as words so the scratch buffer is 8-byte aligned.
	ctrl    [controlBufferSize / 8]uint64
	last    api.RxTimestamps
	hasLast bool
	recvmsg recvmsgFunc
}

// New wraps inner. Call Enable on inner's descriptor before the first read.
func New(inner api.Layer) *Stream {
	return &Stream{
		Passthrough: api.NewPassthrough(inner),
		recvmsg:     sysRecvmsg,
	}
}

// Unwrap returns the wrapped layer.
func (s *Stream) Unwrap() api.Layer { return s.Inner }

// LastRxTimestamps returns the timestamps of the most recent read, if that
// read carried a timestamping entry.
func (s *Stream) LastRxTimestamps() (api.RxTimestamps, bool) {
	return s.last, s.hasLast
}

// TakeLastRxTimestamps returns and clears the cached timestamps.
func (s *Stream) TakeLastRxTimestamps() (api.RxTimestamps, bool) {
	ts, ok := s.last, s.hasLast
	s.clear()
	return ts, ok
}

func (s *Stream) clear() {
	s.last = api.RxTimestamps{}
	s.hasLast = false
}

func (s *Stream) control() []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(&s.ctrl[0])), controlBufferSize)
}
