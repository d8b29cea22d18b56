// control/metrics.go
// Author: momentics <momentics@gmail.com>
//
// Multiplexer counters. They are owned by the single multiplexer goroutine
// and read by others only after it stopped.

package control

import "github.com/rs/zerolog"

// Counters tracks multiplexer activity.
type Counters struct {
	Waits       uint64 // readiness waits issued
	EmptyWaits  uint64 // waits that returned no events
	Events      uint64 // readiness events dispatched
	Batches     uint64 // batches handed to the handler
	WouldBlock  uint64 // ready events whose read would block
	FrameErrors uint64 // batches ended by a malformed frame
	Flushes     uint64 // outbound flushes on write readiness
	Closed      uint64 // connections closed by EOF or error
}

// Snapshot returns the counters keyed by name.
func (c *Counters) Snapshot() map[string]uint64 {
	return map[string]uint64{
		"waits":        c.Waits,
		"empty_waits":  c.EmptyWaits,
		"events":       c.Events,
		"batches":      c.Batches,
		"would_block":  c.WouldBlock,
		"frame_errors": c.FrameErrors,
		"flushes":      c.Flushes,
		"closed":       c.Closed,
	}
}

// MarshalZerologObject implements zerolog.LogObjectMarshaler.
func (c *Counters) MarshalZerologObject(e *zerolog.Event) {
	e.Uint64("waits", c.Waits).
		Uint64("empty_waits", c.EmptyWaits).
		Uint64("events", c.Events).
		Uint64("batches", c.Batches).
		Uint64("would_block", c.WouldBlock).
		Uint64("frame_errors", c.FrameErrors).
		Uint64("flushes", c.Flushes).
		Uint64("closed", c.Closed)
}

// Reset zeroes every counter.
func (c *Counters) Reset() { *c = Counters{} }
