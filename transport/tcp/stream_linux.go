//go:build linux
// +build linux

// File: transport/tcp/stream_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Non-blocking TCP client stream owning its descriptor.

package tcp

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/netip"
	"os"

	"github.com/momentics/hioload-ts/api"
	"github.com/momentics/hioload-ts/internal/sockopt"
	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"
)

type options struct {
	logger   zerolog.Logger
	resolver *net.Resolver
	noDelay  bool
}

// Option configures Dial.
type Option func(*options)

// WithLogger sets the logger used for best-effort socket setup warnings.
func WithLogger(l zerolog.Logger) Option { return func(o *options) { o.logger = l } }

// WithResolver overrides the resolver used for the host name.
func WithResolver(r *net.Resolver) Option { return func(o *options) { o.resolver = r } }

// WithNoDelay toggles TCP_NODELAY (on by default).
func WithNoDelay(on bool) Option { return func(o *options) { o.noDelay = on } }

// Stream is a non-blocking TCP connection. It is not safe for concurrent use.
type Stream struct {
	fd        int
	info      api.ConnectionInfo
	connected bool
	closed    bool

	reg      api.Registry
	token    api.Token
	interest api.Interest
}

var _ api.Layer = (*Stream)(nil)

// Dial resolves info's host and starts a non-blocking connect. The returned
// stream is usually still connecting; poll Connected to learn completion.
func Dial(ctx context.Context, info api.ConnectionInfo, opts ...Option) (*Stream, error) {
	o := options{logger: zerolog.Nop(), resolver: net.DefaultResolver, noDelay: true}
	for _, opt := range opts {
		opt(&o)
	}

	addrs, err := o.resolver.LookupNetIP(ctx, "ip", info.Host())
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", info.Host(), err)
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("resolve %s: no addresses", info.Host())
	}

	var lastErr error
	for _, addr := range addrs {
		s, err := dialAddr(addr.Unmap(), info, &o)
		if err == nil {
			return s, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

func dialAddr(addr netip.Addr, info api.ConnectionInfo, o *options) (*Stream, error) {
	family := unix.AF_INET6
	var sa unix.Sockaddr
	if addr.Is4() {
		family = unix.AF_INET
		sa = &unix.SockaddrInet4{Port: info.Port(), Addr: addr.As4()}
	} else {
		sa = &unix.SockaddrInet6{Port: info.Port(), Addr: addr.As16()}
	}

	fd, err := unix.Socket(family, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, unix.IPPROTO_TCP)
	if err != nil {
		return nil, os.NewSyscallError("socket", err)
	}
	if o.noDelay {
		if err := unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1); err != nil {
			o.logger.Warn().Err(err).Int("fd", fd).Msg("setsockopt TCP_NODELAY failed")
		}
	}
	if cpu, ok := info.CPU(); ok {
		sockopt.IncomingCPU(fd, cpu, o.logger)
	}

	s := &Stream{fd: fd, info: info}
	switch err := unix.Connect(fd, sa); err {
	case nil:
		s.connected = true
	case unix.EINPROGRESS, unix.EINTR:
	default:
		unix.Close(fd)
		return nil, fmt.Errorf("connect %s (%s): %w", info, addr, os.NewSyscallError("connect", err))
	}
	o.logger.Debug().Int("fd", fd).Str("addr", addr.String()).Str("endpoint", info.Addr()).Msg("tcp dial started")
	return s, nil
}

// RawFD returns the socket descriptor.
func (s *Stream) RawFD() int { return s.fd }

// ConnectionInfo returns the endpoint identity given to Dial.
func (s *Stream) ConnectionInfo() api.ConnectionInfo { return s.info }

// Connected polls for connect completion without blocking.
func (s *Stream) Connected() (bool, error) {
	if s.closed {
		return false, api.ErrClosed
	}
	if s.connected {
		return true, nil
	}
	pfd := []unix.PollFd{{Fd: int32(s.fd), Events: unix.POLLOUT}}
	n, err := unix.Poll(pfd, 0)
	if err == unix.EINTR || n == 0 {
		return false, nil
	}
	if err != nil {
		return false, os.NewSyscallError("poll", err)
	}
	soErr, err := unix.GetsockoptInt(s.fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil {
		return false, os.NewSyscallError("getsockopt SO_ERROR", err)
	}
	if soErr != 0 {
		return false, fmt.Errorf("connect %s: %w", s.info, unix.Errno(soErr))
	}
	s.connected = true
	return true, nil
}

// Read reads once from the socket. EAGAIN becomes api.ErrWouldBlock and an
// orderly shutdown becomes io.EOF.
func (s *Stream) Read(b []byte) (int, error) {
	if s.closed {
		return 0, api.ErrClosed
	}
	for {
		n, err := unix.Read(s.fd, b)
		switch {
		case err == unix.EINTR:
			continue
		case err == unix.EAGAIN:
			return 0, api.ErrWouldBlock
		case err != nil:
			return 0, os.NewSyscallError("read", err)
		case n == 0 && len(b) > 0:
			return 0, io.EOF
		}
		return n, nil
	}
}

// Write writes once to the socket and may return a short count.
func (s *Stream) Write(b []byte) (int, error) {
	if s.closed {
		return 0, api.ErrClosed
	}
	for {
		n, err := unix.Write(s.fd, b)
		switch {
		case err == unix.EINTR:
			continue
		case err == unix.EAGAIN:
			return 0, api.ErrWouldBlock
		case err != nil:
			return 0, os.NewSyscallError("write", err)
		}
		return n, nil
	}
}

// Close closes the descriptor. Closing also removes it from any epoll set.
func (s *Stream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.reg = nil
	return unix.Close(s.fd)
}

// Register adds the socket to reg and remembers the registration so that
// MakeReadable and MakeWritable can re-arm it.
func (s *Stream) Register(reg api.Registry, token api.Token, interest api.Interest) error {
	if err := reg.Add(s.fd, token, interest); err != nil {
		return err
	}
	s.reg, s.token, s.interest = reg, token, interest
	return nil
}

// Reregister changes the token or interest of an existing registration.
func (s *Stream) Reregister(reg api.Registry, token api.Token, interest api.Interest) error {
	if err := reg.Modify(s.fd, token, interest); err != nil {
		return err
	}
	s.reg, s.token, s.interest = reg, token, interest
	return nil
}

// Deregister removes the socket from reg.
func (s *Stream) Deregister(reg api.Registry) error {
	s.reg = nil
	return reg.Delete(s.fd)
}

// MakeWritable adds write interest to the current registration.
func (s *Stream) MakeWritable() error { return s.rearm(api.Readable | api.Writable) }

// MakeReadable drops write interest from the current registration.
func (s *Stream) MakeReadable() error { return s.rearm(api.Readable) }

func (s *Stream) rearm(interest api.Interest) error {
	if s.reg == nil || s.interest == interest {
		return nil
	}
	if err := s.reg.Modify(s.fd, s.token, interest); err != nil {
		return err
	}
	s.interest = interest
	return nil
}
