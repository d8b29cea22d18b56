// Package fake
// Author: momentics <momentics@gmail.com>
//
// Fake implementations for testing and development.
// Provides predictable, scripted behavior for stream layers and pollers.

package fake

import (
	"bytes"
	"io"
	"sync"

	"github.com/momentics/hioload-ts/api"
)

type readStep struct {
	data  []byte
	ts    api.RxTimestamps
	hasTs bool
	eof   bool
	err   error
}

// Layer is a scripted descriptor-owning api.Layer. Reads replay pushed
// steps in order and report api.ErrWouldBlock once the script is drained.
type Layer struct {
	mu sync.Mutex

	fd   int
	info api.ConnectionInfo

	steps   []readStep
	last    api.RxTimestamps
	hasLast bool
	reads   int

	written    bytes.Buffer
	writeErr   error
	writeLimit int

	connected  bool
	connectErr error

	reg      api.Registry
	token    api.Token
	interest api.Interest

	closed bool
}

// NewLayer creates a connected fake layer for fd.
func NewLayer(fd int, info api.ConnectionInfo) *Layer {
	return &Layer{fd: fd, info: info, connected: true}
}

// PushRead queues a read returning data without timestamps.
func (l *Layer) PushRead(data []byte) {
	l.push(readStep{data: append([]byte(nil), data...)})
}

// PushStampedRead queues a read returning data captured with ts.
func (l *Layer) PushStampedRead(data []byte, ts api.RxTimestamps) {
	l.push(readStep{data: append([]byte(nil), data...), ts: ts, hasTs: true})
}

// PushEOF queues a zero-byte read.
func (l *Layer) PushEOF() { l.push(readStep{eof: true}) }

// PushError queues a failing read.
func (l *Layer) PushError(err error) { l.push(readStep{err: err}) }

func (l *Layer) push(s readStep) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.steps = append(l.steps, s)
}

// Read implements io.Reader.
func (l *Layer) Read(b []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return 0, api.ErrClosed
	}
	if len(l.steps) == 0 {
		return 0, api.ErrWouldBlock
	}
	s := l.steps[0]
	l.reads++
	switch {
	case s.err != nil:
		l.steps = l.steps[1:]
		return 0, s.err
	case s.eof:
		l.steps = l.steps[1:]
		l.last, l.hasLast = api.RxTimestamps{}, false
		return 0, io.EOF
	}
	n := copy(b, s.data)
	if n < len(s.data) {
		l.steps[0].data = s.data[n:]
	} else {
		l.steps = l.steps[1:]
	}
	l.last, l.hasLast = s.ts, s.hasTs
	return n, nil
}

// Reads returns the number of Read calls that consumed a step.
func (l *Layer) Reads() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.reads
}

// Pending returns the number of queued read steps.
func (l *Layer) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.steps)
}

// Write implements io.Writer. With a write limit set, at most that many
// bytes are accepted per call; a limit of -1 makes writes block.
func (l *Layer) Write(b []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return 0, api.ErrClosed
	}
	if l.writeErr != nil {
		return 0, l.writeErr
	}
	if l.writeLimit < 0 {
		return 0, api.ErrWouldBlock
	}
	if l.writeLimit > 0 && len(b) > l.writeLimit {
		b = b[:l.writeLimit]
	}
	return l.written.Write(b)
}

// SetWriteLimit configures partial or blocked writes.
func (l *Layer) SetWriteLimit(n int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.writeLimit = n
}

// SetWriteError configures the layer to fail writes.
func (l *Layer) SetWriteError(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.writeErr = err
}

// Written returns a copy of everything written so far.
func (l *Layer) Written() []byte {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]byte(nil), l.written.Bytes()...)
}

// ResetWritten discards recorded writes.
func (l *Layer) ResetWritten() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.written.Reset()
}

// Close marks the layer closed.
func (l *Layer) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	return nil
}

// Closed reports whether Close was called.
func (l *Layer) Closed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}

func (l *Layer) RawFD() int                         { return l.fd }
func (l *Layer) ConnectionInfo() api.ConnectionInfo { return l.info }

// SetConnected scripts the result of Connected.
func (l *Layer) SetConnected(ok bool, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.connected, l.connectErr = ok, err
}

func (l *Layer) Connected() (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.connected, l.connectErr
}

func (l *Layer) MakeWritable() error { return l.rearm(api.Readable | api.Writable) }
func (l *Layer) MakeReadable() error { return l.rearm(api.Readable) }

func (l *Layer) rearm(interest api.Interest) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.interest = interest
	if l.reg == nil {
		return nil
	}
	return l.reg.Modify(l.fd, l.token, interest)
}

// Interest returns the interest set last armed.
func (l *Layer) Interest() api.Interest {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.interest
}

func (l *Layer) Register(reg api.Registry, token api.Token, interest api.Interest) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := reg.Add(l.fd, token, interest); err != nil {
		return err
	}
	l.reg, l.token, l.interest = reg, token, interest
	return nil
}

func (l *Layer) Reregister(reg api.Registry, token api.Token, interest api.Interest) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := reg.Modify(l.fd, token, interest); err != nil {
		return err
	}
	l.reg, l.token, l.interest = reg, token, interest
	return nil
}

func (l *Layer) Deregister(reg api.Registry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.reg = nil
	return reg.Delete(l.fd)
}

// TimestampedLayer is a Layer that also exposes the timestamps attached to
// each scripted read, standing in for a capture layer.
type TimestampedLayer struct {
	*Layer
}

// NewTimestampedLayer creates a connected fake capture layer for fd.
func NewTimestampedLayer(fd int, info api.ConnectionInfo) *TimestampedLayer {
	return &TimestampedLayer{Layer: NewLayer(fd, info)}
}

func (t *TimestampedLayer) LastRxTimestamps() (api.RxTimestamps, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last, t.hasLast
}

func (t *TimestampedLayer) TakeLastRxTimestamps() (api.RxTimestamps, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	ts, ok := t.last, t.hasLast
	t.last, t.hasLast = api.RxTimestamps{}, false
	return ts, ok
}
