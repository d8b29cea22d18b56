// File: api/types.go
// Author: momentics <momentics@gmail.com>
//
// Shared API-level value types: endpoint identity, RX timestamps,
// readiness interest and multiplexer tokens.

package api

import (
	"net"
	"strconv"
)

// ConnectionInfo is the immutable identity of a remote endpoint.
// It is created once at dial time and handed unchanged through every layer.
type ConnectionInfo struct {
	host string
	port int
	cpu  int
}

// NewConnectionInfo describes host:port with no receive CPU hint.
func NewConnectionInfo(host string, port int) ConnectionInfo {
	return ConnectionInfo{host: host, port: port, cpu: -1}
}

// WithCPU returns a copy carrying a receive-queue CPU hint.
// A negative cpu removes the hint.
func (c ConnectionInfo) WithCPU(cpu int) ConnectionInfo {
	if cpu < 0 {
		cpu = -1
	}
	c.cpu = cpu
	return c
}

// Host returns the remote host name or address literal.
func (c ConnectionInfo) Host() string { return c.host }

// Port returns the remote port.
func (c ConnectionInfo) Port() int { return c.port }

// CPU returns the receive CPU hint, if any.
func (c ConnectionInfo) CPU() (int, bool) {
	return c.cpu, c.cpu >= 0
}

// Addr returns host:port suitable for logging and TLS server name derivation.
func (c ConnectionInfo) Addr() string {
	return net.JoinHostPort(c.host, strconv.Itoa(c.port))
}

func (c ConnectionInfo) String() string { return c.Addr() }

// RxTimestamps holds the kernel RX timestamps of one read, in nanoseconds.
// Zero in any field means the kernel did not supply that timestamp.
type RxTimestamps struct {
	SwNs    uint64 // software timestamp
	HwSysNs uint64 // legacy hardware timestamp converted to system time; best effort, often zero
	HwRawNs uint64 // raw NIC hardware timestamp
}

// Interest is the readiness set a descriptor is registered for.
type Interest uint8

const (
	Readable Interest = 1 << iota
	Writable
)

func (i Interest) IsReadable() bool { return i&Readable != 0 }
func (i Interest) IsWritable() bool { return i&Writable != 0 }

// Token identifies a registration in a readiness poller. Multiplexers use
// dense slot indices so dispatch is a slice lookup.
type Token int
