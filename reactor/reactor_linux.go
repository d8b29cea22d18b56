//go:build linux
// +build linux

// File: reactor/reactor_linux.go
// Author: momentics <momentics@gmail.com>
//
// Linux epoll(7)-based poller. Registrations are level-triggered and carry
// the connection token in the event data, so dispatch is an index lookup.

package reactor

import (
	"fmt"
	"os"

	"github.com/momentics/hioload-ts/api"
	"golang.org/x/sys/unix"
)

// Poller is an epoll-based readiness poller. It is meant to be driven by a
// single goroutine.
type Poller struct {
	epfd int
	raw  []unix.EpollEvent
}

// New creates a new epoll instance.
func New() (*Poller, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, os.NewSyscallError("epoll_create1", err)
	}
	return &Poller{epfd: epfd}, nil
}

func epollEvents(interest api.Interest) uint32 {
	ev := uint32(unix.EPOLLRDHUP)
	if interest.IsReadable() {
		ev |= unix.EPOLLIN
	}
	if interest.IsWritable() {
		ev |= unix.EPOLLOUT
	}
	return ev
}

func (p *Poller) ctl(op, fd int, token api.Token, interest api.Interest) error {
	event := &unix.EpollEvent{Events: epollEvents(interest), Fd: int32(token)}
	return unix.EpollCtl(p.epfd, op, fd, event)
}

// Add registers fd under token.
func (p *Poller) Add(fd int, token api.Token, interest api.Interest) error {
	if err := p.ctl(unix.EPOLL_CTL_ADD, fd, token, interest); err != nil {
		return fmt.Errorf("epoll ctl add fd %d: %w", fd, err)
	}
	return nil
}

// Modify replaces the token and interest of a registered fd.
func (p *Poller) Modify(fd int, token api.Token, interest api.Interest) error {
	if err := p.ctl(unix.EPOLL_CTL_MOD, fd, token, interest); err != nil {
		return fmt.Errorf("epoll ctl mod fd %d: %w", fd, err)
	}
	return nil
}

// Delete removes fd from the interest list.
func (p *Poller) Delete(fd int) error {
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil); err != nil {
		return fmt.Errorf("epoll ctl del fd %d: %w", fd, err)
	}
	return nil
}

// Wait fills events with ready registrations. A zero timeout returns
// immediately; a negative one blocks. An interrupted wait reports no events.
func (p *Poller) Wait(events []api.Event, timeoutMs int) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}
	if cap(p.raw) < len(events) {
		p.raw = make([]unix.EpollEvent, len(events))
	}
	raw := p.raw[:len(events)]

	n, err := unix.EpollWait(p.epfd, raw, timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, os.NewSyscallError("epoll_wait", err)
	}
	for i := 0; i < n; i++ {
		ev := raw[i].Events
		var ready api.Interest
		if ev&(unix.EPOLLIN|unix.EPOLLPRI) != 0 {
			ready |= api.Readable
		}
		if ev&unix.EPOLLOUT != 0 {
			ready |= api.Writable
		}
		events[i] = api.Event{
			Token:  api.Token(raw[i].Fd),
			Ready:  ready,
			Hangup: ev&(unix.EPOLLERR|unix.EPOLLHUP|unix.EPOLLRDHUP) != 0,
		}
	}
	return n, nil
}

// Close closes the epoll instance.
func (p *Poller) Close() error {
	return unix.Close(p.epfd)
}
