//go:build !linux
// +build !linux

// File: timestamping/stream_other.go
// Author: momentics <momentics@gmail.com>
//
// Platforms without SO_TIMESTAMPING: reads pass through and never carry
// timestamps.

package timestamping

import (
	"errors"
	"io"

	"github.com/rs/zerolog"
)

// ErrNotSupported is returned by Enable outside Linux.
var ErrNotSupported = errors.New("timestamping: RX timestamping requires linux")

// RxFlags is zero where RX timestamping is unavailable.
const RxFlags = 0

func sysRecvmsg(int, []byte, []byte, int) (int, int, error) {
	return 0, 0, ErrNotSupported
}

// Enable always fails outside Linux.
func Enable(int) error { return ErrNotSupported }

// ConfigureHardware logs a warning and reports false outside Linux.
func ConfigureHardware(fd int, iface string, logger zerolog.Logger) bool {
	logger.Warn().Int("fd", fd).Str("iface", iface).Msg("hardware RX timestamping unsupported on this platform")
	return false
}

// Read forwards to the wrapped layer and leaves no timestamps behind.
func (s *Stream) Read(b []byte) (int, error) {
	n, err := s.Inner.Read(b)
	s.clear()
	if n == 0 && err == nil {
		err = io.EOF
	}
	return n, err
}
