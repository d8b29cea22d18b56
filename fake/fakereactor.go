// File: fake/fakereactor.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Scripted readiness poller for tests.

package fake

import (
	"fmt"

	"github.com/momentics/hioload-ts/api"
)

type registration struct {
	token    api.Token
	interest api.Interest
}

// Poller is a scripted api.Poller. Each Wait returns the next pushed event
// set, or nothing once the script is drained.
type Poller struct {
	regs    map[int]registration
	script  [][]api.Event
	deleted []int
	waits   int
	closed  bool
}

// NewPoller creates an empty fake poller.
func NewPoller() *Poller {
	return &Poller{regs: make(map[int]registration)}
}

// PushEvents queues one wait result.
func (p *Poller) PushEvents(evs ...api.Event) {
	p.script = append(p.script, append([]api.Event(nil), evs...))
}

func (p *Poller) Add(fd int, token api.Token, interest api.Interest) error {
	if _, ok := p.regs[fd]; ok {
		return fmt.Errorf("fake poller: fd %d already registered", fd)
	}
	p.regs[fd] = registration{token: token, interest: interest}
	return nil
}

func (p *Poller) Modify(fd int, token api.Token, interest api.Interest) error {
	if _, ok := p.regs[fd]; !ok {
		return fmt.Errorf("fake poller: fd %d not registered", fd)
	}
	p.regs[fd] = registration{token: token, interest: interest}
	return nil
}

func (p *Poller) Delete(fd int) error {
	if _, ok := p.regs[fd]; !ok {
		return fmt.Errorf("fake poller: fd %d not registered", fd)
	}
	delete(p.regs, fd)
	p.deleted = append(p.deleted, fd)
	return nil
}

func (p *Poller) Wait(events []api.Event, timeoutMs int) (int, error) {
	p.waits++
	if len(p.script) == 0 {
		return 0, nil
	}
	next := p.script[0]
	p.script = p.script[1:]
	return copy(events, next), nil
}

func (p *Poller) Close() error {
	p.closed = true
	return nil
}

// Registered reports the interest set of fd, if registered.
func (p *Poller) Registered(fd int) (api.Interest, bool) {
	r, ok := p.regs[fd]
	return r.interest, ok
}

// Deleted lists descriptors removed so far, in order.
func (p *Poller) Deleted() []int { return append([]int(nil), p.deleted...) }

// Waits returns the number of Wait calls.
func (p *Poller) Waits() int { return p.waits }

// Closed reports whether Close was called.
func (p *Poller) Closed() bool { return p.closed }
