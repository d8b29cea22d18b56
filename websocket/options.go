// File: websocket/options.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package websocket

import (
	"net/http"

	"github.com/momentics/hioload-ts/protocol"
	"github.com/rs/zerolog"
)

// DefaultReadBufferSize is the initial size of the per-connection read buffer.
const DefaultReadBufferSize = 64 << 10

type options struct {
	logger          zerolog.Logger
	readBufferSize  int
	maxFramePayload int
	header          http.Header
	hostHeader      string
	autoPong        bool
}

func defaultOptions() options {
	return options{
		logger:          zerolog.Nop(),
		readBufferSize:  DefaultReadBufferSize,
		maxFramePayload: protocol.MaxFramePayload,
		autoPong:        true,
	}
}

// Option configures a Conn.
type Option func(*options)

// WithLogger sets the logger used for handshake and control-frame events.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithReadBufferSize sets the initial read buffer size. The buffer grows
// when a single frame does not fit, up to the maximum frame size.
func WithReadBufferSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.readBufferSize = n
		}
	}
}

// WithMaxFramePayload bounds the payload of any single incoming frame.
func WithMaxFramePayload(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxFramePayload = n
		}
	}
}

// WithHeader adds extra headers to the upgrade request.
func WithHeader(h http.Header) Option {
	return func(o *options) { o.header = h.Clone() }
}

// WithHostHeader overrides the Host header derived from the connection info.
func WithHostHeader(host string) Option {
	return func(o *options) { o.hostHeader = host }
}

// WithAutoPong toggles automatic Pong replies to incoming Ping frames.
func WithAutoPong(enabled bool) Option {
	return func(o *options) { o.autoPong = enabled }
}
