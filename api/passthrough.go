// File: api/passthrough.go
// Author: momentics <momentics@gmail.com>
//
// Passthrough forwards every capability to the wrapped layer. Concrete
// layers embed it and override only the methods whose behavior they change.

package api

// Passthrough is an identity layer over Inner.
type Passthrough struct {
	Inner Layer
	ts    RxTimestamped
}

// NewPassthrough wraps inner. RX timestamp queries are forwarded when some
// layer below captures them.
func NewPassthrough(inner Layer) Passthrough {
	ts, _ := inner.(RxTimestamped)
	return Passthrough{Inner: inner, ts: ts}
}

func (p Passthrough) Read(b []byte) (int, error)  { return p.Inner.Read(b) }
func (p Passthrough) Write(b []byte) (int, error) { return p.Inner.Write(b) }
func (p Passthrough) Close() error                { return p.Inner.Close() }

func (p Passthrough) RawFD() int                     { return p.Inner.RawFD() }
func (p Passthrough) ConnectionInfo() ConnectionInfo { return p.Inner.ConnectionInfo() }

func (p Passthrough) Connected() (bool, error) { return p.Inner.Connected() }
func (p Passthrough) MakeWritable() error      { return p.Inner.MakeWritable() }
func (p Passthrough) MakeReadable() error      { return p.Inner.MakeReadable() }

func (p Passthrough) Register(reg Registry, token Token, interest Interest) error {
	return p.Inner.Register(reg, token, interest)
}

func (p Passthrough) Reregister(reg Registry, token Token, interest Interest) error {
	return p.Inner.Reregister(reg, token, interest)
}

func (p Passthrough) Deregister(reg Registry) error { return p.Inner.Deregister(reg) }

// LastRxTimestamps forwards to the capture layer below, or reports absent.
func (p Passthrough) LastRxTimestamps() (RxTimestamps, bool) {
	if p.ts == nil {
		return RxTimestamps{}, false
	}
	return p.ts.LastRxTimestamps()
}

// TakeLastRxTimestamps forwards to the capture layer below, or reports absent.
func (p Passthrough) TakeLastRxTimestamps() (RxTimestamps, bool) {
	if p.ts == nil {
		return RxTimestamps{}, false
	}
	return p.ts.TakeLastRxTimestamps()
}
