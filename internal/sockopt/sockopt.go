// File: internal/sockopt/sockopt.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Package sockopt applies the per-socket latency knobs used by the
// multiplexer. Every knob is best effort: a rejected option is logged at
// warn level and the socket keeps working with kernel defaults.

package sockopt

import "github.com/rs/zerolog"

// Tuning lists the receive-path knobs applied to each connection.
type Tuning struct {
	// BusyPollMicros is the SO_BUSY_POLL budget; zero leaves it unset.
	BusyPollMicros int
	// PreferBusyPoll sets SO_PREFER_BUSY_POLL.
	PreferBusyPoll bool
	// RcvLowat is the SO_RCVLOWAT byte threshold; zero leaves it unset.
	RcvLowat int
}

// DefaultTuning mirrors the low-latency client defaults.
func DefaultTuning() Tuning {
	return Tuning{BusyPollMicros: 50, PreferBusyPoll: true, RcvLowat: 1}
}

// Apply sets every configured knob on fd and returns how many were
// accepted by the kernel.
func Apply(fd int, t Tuning, logger zerolog.Logger) int {
	applied := 0
	if t.BusyPollMicros > 0 && set(fd, optBusyPoll, t.BusyPollMicros, logger) {
		applied++
	}
	if t.PreferBusyPoll && set(fd, optPreferBusyPoll, 1, logger) {
		applied++
	}
	if t.RcvLowat > 0 && set(fd, optRcvLowat, t.RcvLowat, logger) {
		applied++
	}
	return applied
}

// IncomingCPU asks the kernel to process the socket's receive path on cpu.
func IncomingCPU(fd, cpu int, logger zerolog.Logger) bool {
	return set(fd, optIncomingCPU, cpu, logger)
}

func set(fd int, o option, value int, logger zerolog.Logger) bool {
	if err := setsockoptInt(fd, o, value); err != nil {
		logger.Warn().Err(err).Int("fd", fd).Str("option", o.name).Int("value", value).Msg("socket tuning rejected")
		return false
	}
	return true
}

type option struct {
	name  string
	level int
	opt   int
}
