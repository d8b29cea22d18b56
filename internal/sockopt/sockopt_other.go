//go:build !linux
// +build !linux

// File: internal/sockopt/sockopt_other.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package sockopt

import "errors"

var (
	optBusyPoll       = option{name: "SO_BUSY_POLL"}
	optPreferBusyPoll = option{name: "SO_PREFER_BUSY_POLL"}
	optRcvLowat       = option{name: "SO_RCVLOWAT"}
	optIncomingCPU    = option{name: "SO_INCOMING_CPU"}
)

var errUnsupported = errors.New("sockopt: not supported on this platform")

func setsockoptInt(int, option, int) error { return errUnsupported }

func getsockoptInt(int, option) (int, error) { return 0, errUnsupported }
