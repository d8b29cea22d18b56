//go:build linux
// +build linux

// File: transport/secure/rawconn.go
// Author: momentics <momentics@gmail.com>
//
// net.Conn adapter handing an api.Layer to crypto/tls.

package secure

import (
	"net"
	"os"
	"sync/atomic"
	"time"

	"github.com/momentics/hioload-ts/api"
	"golang.org/x/sys/unix"
)

// pollSlice bounds each poll(2) wait so a concurrent Close is noticed.
const pollSlice = 50 // ms

type rawConn struct {
	inner    api.Layer
	blocking atomic.Bool
	closed   atomic.Bool

	// reads left before non-blocking reads report would-block without
	// touching the layer below. Only used once the handshake is done.
	budget int
}

// allow sets how many inner reads the next non-blocking reads may issue.
func (c *rawConn) allow(n int) { c.budget = n }

func (c *rawConn) Read(b []byte) (int, error) {
	if !c.blocking.Load() {
		if c.budget <= 0 {
			return 0, api.ErrWouldBlock
		}
		c.budget--
		n, err := c.inner.Read(b)
		if api.IsWouldBlock(err) {
			return n, api.ErrWouldBlock
		}
		return n, err
	}
	for {
		n, err := c.inner.Read(b)
		if !api.IsWouldBlock(err) {
			return n, err
		}
		if err := c.wait(unix.POLLIN); err != nil {
			return 0, err
		}
	}
}

func (c *rawConn) Write(b []byte) (int, error) {
	written := 0
	for written < len(b) {
		n, err := c.inner.Write(b[written:])
		written += n
		if err == nil {
			continue
		}
		if !api.IsWouldBlock(err) {
			return written, err
		}
		if err := c.wait(unix.POLLOUT); err != nil {
			return written, err
		}
	}
	return written, nil
}

func (c *rawConn) wait(events int16) error {
	pfd := []unix.PollFd{{Fd: int32(c.inner.RawFD()), Events: events}}
	for {
		if c.closed.Load() {
			return api.ErrClosed
		}
		n, err := unix.Poll(pfd, pollSlice)
		if err == unix.EINTR || n == 0 {
			continue
		}
		if err != nil {
			return os.NewSyscallError("poll", err)
		}
		if pfd[0].Revents&unix.POLLNVAL != 0 {
			return api.ErrClosed
		}
		return nil
	}
}

// Close only marks the adapter; the descriptor belongs to the layer below.
func (c *rawConn) Close() error {
	c.closed.Store(true)
	return nil
}

func (c *rawConn) LocalAddr() net.Addr  { return endpointAddr("") }
func (c *rawConn) RemoteAddr() net.Addr { return endpointAddr(c.inner.ConnectionInfo().Addr()) }

func (c *rawConn) SetDeadline(time.Time) error      { return nil }
func (c *rawConn) SetReadDeadline(time.Time) error  { return nil }
func (c *rawConn) SetWriteDeadline(time.Time) error { return nil }

type endpointAddr string

func (endpointAddr) Network() string  { return "tcp" }
func (a endpointAddr) String() string { return string(a) }
