// File: websocket/conn.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Conn owns the wrapped stream exclusively. It is not safe for concurrent
// use; a multiplexer touches it only while handling its own readiness event.

package websocket

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/eapache/queue"
	"github.com/momentics/hioload-ts/api"
	"github.com/momentics/hioload-ts/protocol"
)

type connState int

const (
	stateDialing   connState = iota // waiting for the inner layers
	stateUpgrading                  // upgrade request partially written
	stateAwaiting                   // waiting for the 101 response head
	stateOpen
	stateClosed
)

// Conn is a client WebSocket session over a composed stream.
type Conn struct {
	lower api.Passthrough
	opts  options
	path  string

	state connState
	key   string
	req   []byte
	sent  int

	buf  []byte
	head int // first unparsed byte
	tail int // end of buffered data

	out         *queue.Queue // encoded frames, each a []byte
	outOff      int
	writeArmed  bool
	closeQueued bool
	peerClosed  bool
	batch       Batch
}

// New wraps inner and prepares an upgrade request for path. The handshake
// itself progresses through Connected.
func New(inner api.Layer, path string, opts ...Option) (*Conn, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	key, err := protocol.NewClientKey()
	if err != nil {
		return nil, err
	}
	host := o.hostHeader
	if host == "" {
		host = hostHeader(inner.ConnectionInfo())
	}
	c := &Conn{
		lower: api.NewPassthrough(inner),
		opts:  o,
		path:  path,
		key:   key,
		req:   protocol.BuildUpgradeRequest(host, path, key, o.header),
		buf:   make([]byte, o.readBufferSize),
		out:   queue.New(),
	}
	c.batch.conn = c
	return c, nil
}

// Path returns the request path the session was opened on.
func (c *Conn) Path() string { return c.path }

// Open reports whether the upgrade completed and the session is usable.
func (c *Conn) Open() bool { return c.state == stateOpen }

// Connected advances the handshake without blocking: it waits for the
// inner layers, writes the upgrade request and parses the response. Bytes
// that arrive after the response head stay buffered for ReadBatch.
func (c *Conn) Connected() (bool, error) {
	switch c.state {
	case stateOpen:
		return true, nil
	case stateClosed:
		return false, api.ErrClosed
	case stateDialing:
		ok, err := c.lower.Connected()
		if err != nil || !ok {
			return false, err
		}
		c.state = stateUpgrading
	}

	if c.state == stateUpgrading {
		for c.sent < len(c.req) {
			n, err := c.lower.Write(c.req[c.sent:])
			c.sent += n
			if err != nil {
				if api.IsWouldBlock(err) {
					return false, nil
				}
				return false, fmt.Errorf("websocket upgrade write: %w", err)
			}
		}
		c.req = nil
		c.state = stateAwaiting
	}

	for {
		if err := c.ensureSpace(); err != nil {
			return false, err
		}
		n, err := c.lower.Read(c.buf[c.tail:])
		c.tail += n
		if err != nil {
			if api.IsWouldBlock(err) {
				return false, nil
			}
			if errors.Is(err, io.EOF) {
				return false, fmt.Errorf("websocket upgrade: %w", io.ErrUnexpectedEOF)
			}
			return false, fmt.Errorf("websocket upgrade read: %w", err)
		}
		consumed, err := protocol.ParseUpgradeResponse(c.buf[c.head:c.tail], c.key)
		if err != nil {
			return false, fmt.Errorf("websocket upgrade: %w", err)
		}
		if consumed > 0 {
			c.head += consumed
			c.state = stateOpen
			c.opts.logger.Debug().
				Str("peer", c.lower.ConnectionInfo().String()).
				Str("path", c.path).
				Int("buffered", c.tail-c.head).
				Msg("websocket upgraded")
			return true, nil
		}
	}
}

// ReadBatch performs exactly one read on the wrapped stream and returns a
// batch over every complete frame now buffered. A trailing partial frame
// is kept for the next call. It returns api.ErrWouldBlock when the read
// would block and nothing is buffered, and io.EOF once the peer closed.
// The returned Batch and its payloads are valid until the next ReadBatch.
func (c *Conn) ReadBatch() (*Batch, error) {
	switch {
	case c.state == stateClosed:
		return nil, api.ErrClosed
	case c.state != stateOpen:
		return nil, api.ErrNotConnected
	case c.peerClosed:
		return nil, io.EOF
	}

	c.compact()
	if err := c.ensureSpace(); err != nil {
		return nil, err
	}
	n, err := c.lower.Read(c.buf[c.tail:])
	readAt := time.Now()
	c.tail += n
	if err != nil {
		switch {
		case api.IsWouldBlock(err):
			if c.head == c.tail {
				return nil, err
			}
		case errors.Is(err, io.EOF):
			c.peerClosed = true
			return nil, io.EOF
		default:
			return nil, err
		}
	}

	b := &c.batch
	b.reset(c.head, readAt)
	if n > 0 {
		b.ts, b.hasTs = c.lower.TakeLastRxTimestamps()
	}
	return b, nil
}

// Send queues one masked frame and tries to flush it.
func (c *Conn) Send(op protocol.Opcode, payload []byte) error {
	if c.state != stateOpen {
		if c.state == stateClosed {
			return api.ErrClosed
		}
		return api.ErrNotConnected
	}
	if c.closeQueued {
		return api.ErrClosed
	}
	if err := c.enqueue(op, payload); err != nil {
		return err
	}
	return c.Flush()
}

// Pending returns the number of queued outbound frames.
func (c *Conn) Pending() int { return c.out.Length() }

// Flush writes queued frames until the queue is empty or the stream would
// block, in which case write interest is armed and nil is returned.
func (c *Conn) Flush() error {
	for c.out.Length() > 0 {
		frame := c.out.Peek().([]byte)
		n, err := c.lower.Write(frame[c.outOff:])
		c.outOff += n
		if err != nil {
			if api.IsWouldBlock(err) {
				return c.MakeWritable()
			}
			return fmt.Errorf("websocket flush: %w", err)
		}
		if c.outOff < len(frame) {
			continue
		}
		c.out.Remove()
		c.outOff = 0
	}
	if c.writeArmed && c.state == stateOpen {
		return c.MakeReadable()
	}
	return nil
}

func (c *Conn) enqueue(op protocol.Opcode, payload []byte) error {
	frame, err := protocol.AppendClientFrame(nil, op, payload)
	if err != nil {
		return fmt.Errorf("websocket encode %s: %w", op, err)
	}
	c.out.Add(frame)
	return nil
}

// control reacts to an incoming control frame.
func (c *Conn) control(f protocol.Frame) {
	switch f.Opcode {
	case protocol.OpcodePing:
		if !c.opts.autoPong || c.closeQueued {
			return
		}
		if err := c.enqueue(protocol.OpcodePong, f.Payload); err != nil {
			c.opts.logger.Warn().Err(err).Msg("pong reply dropped")
		}
	case protocol.OpcodeClose:
		if c.closeQueued {
			return
		}
		code := f.CloseCode()
		if code == protocol.CloseNoStatusRcvd {
			code = protocol.CloseNormalClosure
		}
		if err := c.enqueue(protocol.OpcodeClose, protocol.ClosePayload(code, "")); err != nil {
			c.opts.logger.Warn().Err(err).Msg("close reply dropped")
		}
		c.closeQueued = true
		c.opts.logger.Debug().Int("code", f.CloseCode()).Msg("close frame received")
	}
}

// compact moves unparsed bytes to the front of the buffer.
func (c *Conn) compact() {
	if c.head == 0 {
		return
	}
	c.tail = copy(c.buf, c.buf[c.head:c.tail])
	c.head = 0
}

// ensureSpace grows the buffer when it is full, bounded by the largest
// frame the connection accepts.
func (c *Conn) ensureSpace() error {
	if c.tail < len(c.buf) {
		return nil
	}
	c.compact()
	if c.tail < len(c.buf) {
		return nil
	}
	limit := c.opts.maxFramePayload + protocol.MaxFrameHeaderLen
	if len(c.buf) >= limit {
		return &protocol.FrameError{Offset: 0, Err: protocol.ErrFrameTooLarge}
	}
	grown := make([]byte, min(2*len(c.buf), limit))
	copy(grown, c.buf[:c.tail])
	c.buf = grown
	return nil
}

// Close sends a close frame when possible and closes the wrapped stream.
func (c *Conn) Close() error {
	if c.state == stateClosed {
		return nil
	}
	if c.state == stateOpen && !c.closeQueued && !c.peerClosed {
		if err := c.enqueue(protocol.OpcodeClose, protocol.ClosePayload(protocol.CloseNormalClosure, "")); err == nil {
			c.closeQueued = true
			_ = c.Flush()
		}
	}
	c.state = stateClosed
	return c.lower.Close()
}

func (c *Conn) RawFD() int                         { return c.lower.RawFD() }
func (c *Conn) ConnectionInfo() api.ConnectionInfo { return c.lower.ConnectionInfo() }

// MakeWritable arms write interest on the wrapped stream.
func (c *Conn) MakeWritable() error {
	if err := c.lower.MakeWritable(); err != nil {
		return err
	}
	c.writeArmed = true
	return nil
}

// MakeReadable arms read-only interest unless frames are waiting to be sent.
func (c *Conn) MakeReadable() error {
	if c.out.Length() > 0 {
		return c.MakeWritable()
	}
	if err := c.lower.MakeReadable(); err != nil {
		return err
	}
	c.writeArmed = false
	return nil
}

func (c *Conn) Register(reg api.Registry, token api.Token, interest api.Interest) error {
	if err := c.lower.Register(reg, token, interest); err != nil {
		return err
	}
	c.writeArmed = interest.IsWritable()
	return nil
}

func (c *Conn) Reregister(reg api.Registry, token api.Token, interest api.Interest) error {
	if err := c.lower.Reregister(reg, token, interest); err != nil {
		return err
	}
	c.writeArmed = interest.IsWritable()
	return nil
}

func (c *Conn) Deregister(reg api.Registry) error { return c.lower.Deregister(reg) }

// LastRxTimestamps peeks at the capture layer below, if any.
func (c *Conn) LastRxTimestamps() (api.RxTimestamps, bool) { return c.lower.LastRxTimestamps() }

// TakeLastRxTimestamps takes from the capture layer below, if any.
func (c *Conn) TakeLastRxTimestamps() (api.RxTimestamps, bool) {
	return c.lower.TakeLastRxTimestamps()
}
