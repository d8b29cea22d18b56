//go:build linux
// +build linux

// File: internal/sockopt/sockopt_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package sockopt

import "golang.org/x/sys/unix"

var (
	optBusyPoll       = option{"SO_BUSY_POLL", unix.SOL_SOCKET, unix.SO_BUSY_POLL}
	optPreferBusyPoll = option{"SO_PREFER_BUSY_POLL", unix.SOL_SOCKET, unix.SO_PREFER_BUSY_POLL}
	optRcvLowat       = option{"SO_RCVLOWAT", unix.SOL_SOCKET, unix.SO_RCVLOWAT}
	optIncomingCPU    = option{"SO_INCOMING_CPU", unix.SOL_SOCKET, unix.SO_INCOMING_CPU}
)

func setsockoptInt(fd int, o option, value int) error {
	return unix.SetsockoptInt(fd, o.level, o.opt, value)
}

func getsockoptInt(fd int, o option) (int, error) {
	return unix.GetsockoptInt(fd, o.level, o.opt)
}
