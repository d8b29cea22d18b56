// File: mux/options.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package mux

import (
	"time"

	"github.com/momentics/hioload-ts/api"
	"github.com/momentics/hioload-ts/internal/sockopt"
	"github.com/rs/zerolog"
)

type options struct {
	logger        zerolog.Logger
	tuning        *sockopt.Tuning
	cpu           int
	eventCapacity int
	onClose       func(api.Token, error)
	connectBudget time.Duration
}

func defaultOptions() options {
	return options{
		logger:        zerolog.Nop(),
		cpu:           -1,
		eventCapacity: 64,
	}
}

// Option configures a Mux.
type Option func(*options)

// WithLogger sets the logger for connection lifecycle events.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithTuning applies busy-poll, prefer-busy-poll and rcvlowat to every
// added socket. Rejected knobs are logged and ignored.
func WithTuning(busyPollMicros int, preferBusyPoll bool, rcvLowat int) Option {
	return func(o *options) {
		o.tuning = &sockopt.Tuning{
			BusyPollMicros: busyPollMicros,
			PreferBusyPoll: preferBusyPoll,
			RcvLowat:       rcvLowat,
		}
	}
}

// WithCPU pins the thread running Run to cpu. Negative disables pinning.
func WithCPU(cpu int) Option {
	return func(o *options) { o.cpu = cpu }
}

// WithEventCapacity sets the minimum size of the wait event buffer.
func WithEventCapacity(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.eventCapacity = n
		}
	}
}

// WithCloseHook is called after a connection is closed by EOF (nil error)
// or by a fatal error.
func WithCloseHook(fn func(token api.Token, err error)) Option {
	return func(o *options) { o.onClose = fn }
}

// WithConnectTimeout closes connections that are not ready within d of
// being added. It covers TCP connect, the TLS handshake and the WebSocket
// upgrade. Zero or negative waits forever.
func WithConnectTimeout(d time.Duration) Option {
	return func(o *options) { o.connectBudget = d }
}
