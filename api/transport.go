// File: api/transport.go
// Author: momentics <momentics@gmail.com>
//
// Capability interfaces for composable stream layers. Each optional
// capability is its own small interface; a layer implements the ones it
// changes and forwards the rest to the layer it wraps (see Passthrough).

package api

import "io"

// FdSource exposes the OS descriptor of the innermost descriptor-owning layer.
type FdSource interface {
	RawFD() int
}

// InfoProvider exposes the endpoint identity recorded at dial time.
type InfoProvider interface {
	ConnectionInfo() ConnectionInfo
}

// Selectable answers the readiness questions a multiplexer needs without
// knowing the layers involved. None of the methods may block.
type Selectable interface {
	// Connected reports whether the connect/handshake sequence is complete.
	// It advances non-blocking handshake state as a side effect.
	Connected() (bool, error)
	// MakeWritable arms the registration for write readiness.
	MakeWritable() error
	// MakeReadable arms the registration for read readiness only.
	MakeReadable() error
}

// Registrant performs explicit reactor registration by token and interest.
// It is implemented by the descriptor-owning layer and forwarded by wrappers.
type Registrant interface {
	Register(reg Registry, token Token, interest Interest) error
	Reregister(reg Registry, token Token, interest Interest) error
	Deregister(reg Registry) error
}

// RxTimestamped is implemented by layers that capture kernel RX timestamps.
type RxTimestamped interface {
	// LastRxTimestamps returns the timestamps captured by the most recent read.
	LastRxTimestamps() (RxTimestamps, bool)
	// TakeLastRxTimestamps returns and clears the captured timestamps.
	TakeLastRxTimestamps() (RxTimestamps, bool)
}

// Layer is the full capability set every stream layer supports.
type Layer interface {
	io.ReadWriteCloser
	FdSource
	InfoProvider
	Selectable
	Registrant
}
