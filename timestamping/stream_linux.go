//go:build linux
// +build linux

// File: timestamping/stream_linux.go
// Author: momentics <momentics@gmail.com>

package timestamping

import (
	"io"
	"os"

	"github.com/momentics/hioload-ts/api"
	"golang.org/x/sys/unix"
)

func sysRecvmsg(fd int, p, oob []byte, flags int) (int, int, error) {
	n, oobn, _, _, err := unix.Recvmsg(fd, p, oob, flags)
	return n, oobn, err
}

// Read issues one recvmsg over b with the stream's control buffer and
// replaces the cached timestamps with whatever that read carried. A zero-byte
// read clears the cache and returns io.EOF. On a syscall error the cache is
// left untouched; EAGAIN is returned as api.ErrWouldBlock.
func (s *Stream) Read(b []byte) (int, error) {
	fd := s.Inner.RawFD()
	for {
		n, oobn, err := s.recvmsg(fd, b, s.control(), 0)
		if err == unix.EINTR {
			continue
		}
		if err == unix.EAGAIN {
			return 0, api.ErrWouldBlock
		}
		if err != nil {
			return 0, os.NewSyscallError("recvmsg", err)
		}
		if n == 0 {
			s.clear()
			return 0, io.EOF
		}
		if oobn < 0 || oobn > controlBufferSize {
			oobn = 0
		}
		s.last, s.hasLast = decodeControl(s.control()[:oobn])
		return n, nil
	}
}
