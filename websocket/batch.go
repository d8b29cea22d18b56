// File: websocket/batch.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package websocket

import (
	"time"

	"github.com/momentics/hioload-ts/api"
	"github.com/momentics/hioload-ts/protocol"
)

// Batch is the result of one underlying read. Frames are decoded lazily by
// Next, in header order, straight out of the connection's read buffer.
//
//	b, err := conn.ReadBatch()
//	for b.Next() {
//		f := b.Frame()
//	}
//	if err := b.Err(); err != nil { ... }
type Batch struct {
	conn   *Conn
	start  int
	frame  protocol.Frame
	err    error
	done   bool
	ts     api.RxTimestamps
	hasTs  bool
	readAt time.Time
}

func (b *Batch) reset(start int, readAt time.Time) {
	b.start = start
	b.frame = protocol.Frame{}
	b.err = nil
	b.done = false
	b.ts, b.hasTs = api.RxTimestamps{}, false
	b.readAt = readAt
}

// Next decodes the next complete frame. It returns false at the end of the
// buffered data, on a trailing partial frame (retained for the next read),
// or on a malformed frame (see Err).
func (b *Batch) Next() bool {
	if b.done {
		return false
	}
	c := b.conn
	if c.head == c.tail {
		b.done = true
		return false
	}
	f, n, err := protocol.DecodeFrameFromBytes(c.buf[c.head:c.tail], c.opts.maxFramePayload)
	if err != nil {
		b.err = &protocol.FrameError{Offset: c.head - b.start, Err: err}
		b.done = true
		// The stream cannot be resynchronised past a bad header.
		c.head = c.tail
		return false
	}
	if n == 0 {
		b.done = true
		return false
	}
	c.head += n
	b.frame = f
	if f.Opcode.IsControl() {
		c.control(f)
	}
	return true
}

// Frame returns the frame decoded by the last successful Next. Its payload
// aliases the read buffer.
func (b *Batch) Frame() protocol.Frame { return b.frame }

// Err returns the *protocol.FrameError that ended the batch, if any.
// Frames yielded before it remain valid.
func (b *Batch) Err() error { return b.err }

// RxTimestamps returns the kernel timestamps captured by the read that
// produced this batch. It reports false when no capture layer is present,
// when the kernel supplied none, or when the batch holds only bytes
// buffered by an earlier read.
func (b *Batch) RxTimestamps() (api.RxTimestamps, bool) { return b.ts, b.hasTs }

// ReadAt returns the wall-clock time at which the underlying read returned.
func (b *Batch) ReadAt() time.Time { return b.readAt }
