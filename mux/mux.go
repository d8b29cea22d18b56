// File: mux/mux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package mux

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/momentics/hioload-ts/affinity"
	"github.com/momentics/hioload-ts/api"
	"github.com/momentics/hioload-ts/control"
	"github.com/momentics/hioload-ts/internal/sockopt"
	"github.com/momentics/hioload-ts/protocol"
	"github.com/momentics/hioload-ts/websocket"
)

// ErrStop may be returned by a Handler to end Run without error.
var ErrStop = errors.New("mux: stop requested")

// ErrConnectTimeout is the close cause of a connection that did not become
// ready within the configured connect timeout.
var ErrConnectTimeout = errors.New("mux: connect timeout")

// Conn is a framed connection the multiplexer can drive.
// *websocket.Conn implements it.
type Conn interface {
	api.FdSource
	api.Selectable
	api.Registrant
	io.Closer
	ReadBatch() (*websocket.Batch, error)
	Flush() error
	Pending() int
}

var _ Conn = (*websocket.Conn)(nil)

// Handler consumes one batch. The batch is only valid during the call.
type Handler func(token api.Token, b *websocket.Batch) error

// State is the lifecycle stage of a connection slot.
type State int

const (
	Connecting State = iota
	Ready
	Closed
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Ready:
		return "ready"
	case Closed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

type slot struct {
	conn     Conn
	state    State
	err      error
	deadline time.Time
}

// Mux drives many connections on one goroutine.
type Mux struct {
	poller   api.Poller
	opts     options
	slots      []slot
	events     []api.Event
	open       int
	connecting int
	counters   control.Counters
}

// New creates a multiplexer over poller. The multiplexer takes ownership
// of the poller and closes it in Close.
func New(poller api.Poller, opts ...Option) *Mux {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Mux{poller: poller, opts: o}
}

// Add applies socket tuning to conn and registers it for read and write
// readiness. The returned token is the connection's slot index.
func (m *Mux) Add(conn Conn) (api.Token, error) {
	token := api.Token(len(m.slots))
	fd := conn.RawFD()
	if m.opts.tuning != nil {
		sockopt.Apply(fd, *m.opts.tuning, m.opts.logger)
	}
	if err := conn.Register(m.poller, token, api.Readable|api.Writable); err != nil {
		return -1, fmt.Errorf("mux: register fd %d: %w", fd, err)
	}
	s := slot{conn: conn, state: Connecting}
	if m.opts.connectBudget > 0 {
		s.deadline = time.Now().Add(m.opts.connectBudget)
	}
	m.slots = append(m.slots, s)
	m.open++
	m.connecting++
	if len(m.events) < len(m.slots) {
		m.events = make([]api.Event, max(len(m.slots), m.opts.eventCapacity))
	}
	m.opts.logger.Debug().Int("token", int(token)).Int("fd", fd).Msg("connection added")
	return token, nil
}

// Len returns the number of slots, open or closed.
func (m *Mux) Len() int { return len(m.slots) }

// Open returns the number of connections not yet closed.
func (m *Mux) Open() int { return m.open }

// State returns the lifecycle stage of token. Unknown tokens report false.
func (m *Mux) State(token api.Token) (State, bool) {
	if int(token) < 0 || int(token) >= len(m.slots) {
		return Closed, false
	}
	return m.slots[token].state, true
}

// Err returns the error that closed token, if any. EOF closes with nil.
func (m *Mux) Err(token api.Token) error {
	if int(token) < 0 || int(token) >= len(m.slots) {
		return nil
	}
	return m.slots[token].err
}

// Conn returns the connection registered under token.
func (m *Mux) Conn(token api.Token) Conn {
	if int(token) < 0 || int(token) >= len(m.slots) {
		return nil
	}
	return m.slots[token].conn
}

// Counters returns a copy of the activity counters.
func (m *Mux) Counters() control.Counters { return m.counters }

// Poll performs one zero-timeout wait and services every ready connection
// once. Connections past their connect deadline are then closed. It returns
// the number of events reported by the poller. A handler error stops the
// pass and is returned as is.
func (m *Mux) Poll(h Handler) (int, error) {
	m.counters.Waits++
	n, err := m.poller.Wait(m.events, 0)
	if err != nil {
		return 0, fmt.Errorf("mux: wait: %w", err)
	}
	if n == 0 {
		m.counters.EmptyWaits++
	}
	for i := 0; i < n; i++ {
		ev := m.events[i]
		idx := int(ev.Token)
		if idx < 0 || idx >= len(m.slots) {
			continue
		}
		s := &m.slots[idx]
		if s.state == Closed || (ev.Ready == 0 && !ev.Hangup) {
			continue
		}
		m.counters.Events++
		if err := m.dispatch(ev, s, h); err != nil {
			return n, err
		}
	}
	m.expire()
	return n, nil
}

// expire closes connecting slots whose deadline has passed.
func (m *Mux) expire() {
	if m.connecting == 0 || m.opts.connectBudget <= 0 {
		return
	}
	now := time.Now()
	for i := range m.slots {
		s := &m.slots[i]
		if s.state == Connecting && now.After(s.deadline) {
			m.closeSlot(api.Token(i), s, fmt.Errorf("%w after %s", ErrConnectTimeout, m.opts.connectBudget))
		}
	}
}

func (m *Mux) dispatch(ev api.Event, s *slot, h Handler) error {
	if s.state == Connecting {
		ok, err := s.conn.Connected()
		if err != nil {
			m.closeSlot(ev.Token, s, err)
			return nil
		}
		if !ok {
			return nil
		}
		s.state = Ready
		m.connecting--
		m.opts.logger.Info().Int("token", int(ev.Token)).Int("fd", s.conn.RawFD()).Msg("connection ready")
		if err := s.conn.MakeReadable(); err != nil {
			m.closeSlot(ev.Token, s, err)
			return nil
		}
		// The handshake may have buffered frames already; read them now
		// since no further readiness event is guaranteed for them.
		return m.read(ev.Token, s, h)
	}

	if ev.Ready.IsWritable() {
		if s.conn.Pending() > 0 {
			m.counters.Flushes++
		}
		if err := s.conn.Flush(); err != nil {
			m.closeSlot(ev.Token, s, err)
			return nil
		}
	}
	if ev.Ready.IsReadable() || ev.Hangup {
		return m.read(ev.Token, s, h)
	}
	return nil
}

// read performs exactly one ReadBatch on s.
func (m *Mux) read(token api.Token, s *slot, h Handler) error {
	b, err := s.conn.ReadBatch()
	switch {
	case err == nil:
	case api.IsWouldBlock(err):
		m.counters.WouldBlock++
		return nil
	case errors.Is(err, io.EOF):
		m.closeSlot(token, s, nil)
		return nil
	default:
		m.closeSlot(token, s, err)
		return nil
	}

	m.counters.Batches++
	herr := h(token, b)

	if berr := b.Err(); berr != nil {
		m.counters.FrameErrors++
		ev := m.opts.logger.Warn().Err(berr).Int("token", int(token))
		var fe *protocol.FrameError
		if errors.As(berr, &fe) {
			ev = ev.Int("offset", fe.Offset)
		}
		ev.Msg("malformed frame, batch dropped")
	}
	if s.conn.Pending() > 0 {
		if err := s.conn.Flush(); err != nil {
			m.closeSlot(token, s, err)
		}
	}
	return herr
}

func (m *Mux) closeSlot(token api.Token, s *slot, cause error) {
	if s.state == Closed {
		return
	}
	if s.state == Connecting {
		m.connecting--
	}
	s.state = Closed
	s.err = cause
	m.open--
	m.counters.Closed++

	if err := s.conn.Deregister(m.poller); err != nil {
		m.opts.logger.Debug().Err(err).Int("token", int(token)).Msg("deregister failed")
	}
	if err := s.conn.Close(); err != nil {
		m.opts.logger.Debug().Err(err).Int("token", int(token)).Msg("close failed")
	}

	if cause != nil {
		m.opts.logger.Warn().Err(cause).Int("token", int(token)).Msg("connection closed")
	} else {
		m.opts.logger.Info().Int("token", int(token)).Msg("connection closed by peer")
	}
	if m.opts.onClose != nil {
		m.opts.onClose(token, cause)
	}
}

// Run pins the calling goroutine's thread when a CPU is configured and
// polls until ctx is done, the handler returns ErrStop, or every
// connection is closed. Empty waits spin without sleeping.
func (m *Mux) Run(ctx context.Context, h Handler) error {
	if m.opts.cpu >= 0 {
		release, err := affinity.Pin(m.opts.cpu)
		defer release()
		if err != nil {
			m.opts.logger.Warn().Err(err).Int("cpu", m.opts.cpu).Msg("multiplexer thread pinning failed")
		}
	}

	done := ctx.Done()
	for m.open > 0 {
		select {
		case <-done:
			return ctx.Err()
		default:
		}
		if _, err := m.Poll(h); err != nil {
			if errors.Is(err, ErrStop) {
				return nil
			}
			return err
		}
	}
	return nil
}

// Close closes every open connection and the poller.
func (m *Mux) Close() error {
	for i := range m.slots {
		s := &m.slots[i]
		if s.state == Closed {
			continue
		}
		if s.state == Connecting {
			m.connecting--
		}
		s.state = Closed
		m.open--
		_ = s.conn.Deregister(m.poller)
		_ = s.conn.Close()
	}
	return m.poller.Close()
}
