// File: api/reactor.go
// Author: momentics <momentics@gmail.com>
//
// Defines the abstract interface for readiness pollers used to multiplex
// connections (epoll on Linux).

package api

// Registry associates descriptors with tokens and interest sets.
type Registry interface {
	// Add registers fd for the given interest; events carry token.
	Add(fd int, token Token, interest Interest) error
	// Modify replaces the token and interest of a registered fd.
	Modify(fd int, token Token, interest Interest) error
	// Delete removes fd from the poller.
	Delete(fd int) error
}

// Event is one readiness notification.
type Event struct {
	Token  Token
	Ready  Interest
	Hangup bool // peer hangup or socket error; a read will report it
}

// Poller is a Registry that can wait for readiness.
type Poller interface {
	Registry
	// Wait fills events and returns how many were written. timeoutMs == 0
	// returns immediately, < 0 blocks.
	Wait(events []Event, timeoutMs int) (int, error)
	Close() error
}
