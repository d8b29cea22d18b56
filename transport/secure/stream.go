//go:build linux
// +build linux

// File: transport/secure/stream.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package secure

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/momentics/hioload-ts/api"
	"github.com/rs/zerolog"
)

// DefaultHandshakeTimeout bounds the background TLS handshake.
const DefaultHandshakeTimeout = 10 * time.Second

type handshakeState uint8

const (
	handshakeIdle handshakeState = iota
	handshakeRunning
	handshakeDone
)

type options struct {
	logger  zerolog.Logger
	timeout time.Duration
}

// Option configures New.
type Option func(*options)

// WithLogger sets the layer logger.
func WithLogger(l zerolog.Logger) Option { return func(o *options) { o.logger = l } }

// WithHandshakeTimeout bounds the handshake; non-positive keeps the default.
func WithHandshakeTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// Stream is a client TLS layer. Descriptor, metadata, registration and RX
// timestamp queries are forwarded to the wrapped layer.
//
// crypto/tls cannot resume a handshake that saw a would-block error, so the
// handshake runs on its own goroutine with blocking poll(2) waits until
// Connected observes it finished. That goroutine is the only reader of the
// layer below until then; afterwards every read happens on the caller's
// goroutine, one inner read per Read call.
type Stream struct {
	api.Passthrough

	raw  *rawConn
	conn *tls.Conn
	opts options

	state handshakeState
	done  chan struct{}
	hsErr error
}

var _ api.Layer = (*Stream)(nil)

// New wraps inner in a TLS client. When cfg has no ServerName the dialed
// host is used. cfg may be nil.
func New(inner api.Layer, cfg *tls.Config, opts ...Option) *Stream {
	o := options{logger: zerolog.Nop(), timeout: DefaultHandshakeTimeout}
	for _, opt := range opts {
		opt(&o)
	}
	if cfg == nil {
		cfg = &tls.Config{}
	} else {
		cfg = cfg.Clone()
	}
	if cfg.ServerName == "" {
		cfg.ServerName = inner.ConnectionInfo().Host()
	}
	raw := &rawConn{inner: inner}
	raw.blocking.Store(true)
	return &Stream{
		Passthrough: api.NewPassthrough(inner),
		raw:         raw,
		conn:        tls.Client(raw, cfg),
		opts:        o,
	}
}

// Unwrap returns the wrapped layer.
func (s *Stream) Unwrap() api.Layer { return s.Inner }

// Connected reports TCP connect plus TLS handshake completion. The first
// call after the layer below is connected starts the handshake.
func (s *Stream) Connected() (bool, error) {
	switch s.state {
	case handshakeDone:
		if s.hsErr != nil {
			return false, s.hsErr
		}
		return true, nil
	case handshakeIdle:
		ok, err := s.Inner.Connected()
		if err != nil || !ok {
			return false, err
		}
		s.state = handshakeRunning
		s.done = make(chan struct{})
		go s.handshake()
	}

	select {
	case <-s.done:
		s.state = handshakeDone
		if s.hsErr != nil {
			return false, s.hsErr
		}
		cs := s.conn.ConnectionState()
		s.opts.logger.Debug().Int("fd", s.RawFD()).Str("endpoint", s.ConnectionInfo().Addr()).
			Str("version", tls.VersionName(cs.Version)).Str("cipher", tls.CipherSuiteName(cs.CipherSuite)).
			Msg("tls handshake complete")
		return true, nil
	default:
		return false, nil
	}
}

func (s *Stream) handshake() {
	ctx, cancel := context.WithTimeout(context.Background(), s.opts.timeout)
	defer cancel()
	if err := s.conn.HandshakeContext(ctx); err != nil {
		s.hsErr = fmt.Errorf("tls handshake with %s: %w", s.ConnectionInfo(), err)
	}
	s.raw.blocking.Store(false)
	close(s.done)
}

// ConnectionState returns the negotiated TLS parameters.
func (s *Stream) ConnectionState() tls.ConnectionState { return s.conn.ConnectionState() }

// Read returns decrypted bytes. It issues at most one read on the layer
// below and then decrypts every complete record already buffered, so the
// RX timestamps of the layer below describe all bytes returned. A record
// left incomplete by that read yields api.ErrWouldBlock if nothing else
// was decrypted.
func (s *Stream) Read(b []byte) (int, error) {
	if s.state != handshakeDone {
		if ok, err := s.Connected(); !ok {
			if err != nil {
				return 0, err
			}
			return 0, api.ErrWouldBlock
		}
	}
	if s.hsErr != nil {
		return 0, s.hsErr
	}

	s.raw.allow(1)
	defer s.raw.allow(0)

	total := 0
	for total < len(b) {
		n, err := s.conn.Read(b[total:])
		total += n
		if err != nil {
			if total > 0 && (api.IsWouldBlock(err) || errors.Is(err, io.EOF)) {
				return total, nil
			}
			if api.IsWouldBlock(err) {
				return 0, api.ErrWouldBlock
			}
			return total, err
		}
		if n == 0 {
			break
		}
	}
	return total, nil
}

// Write encrypts and sends b, waiting for writability as needed.
func (s *Stream) Write(b []byte) (int, error) {
	if s.state != handshakeDone || s.hsErr != nil {
		return 0, api.ErrNotConnected
	}
	return s.conn.Write(b)
}

// Close releases the layer below without sending close_notify.
func (s *Stream) Close() error {
	s.raw.Close()
	return s.Inner.Close()
}
