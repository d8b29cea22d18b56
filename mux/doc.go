// Package mux
// Author: momentics <momentics@gmail.com>
//
// Single-threaded readiness multiplexer for framed connections.
//
// Every connection is registered once for read and write interest under a
// dense token equal to its slot index. Poll issues one zero-timeout wait and
// gives each ready connection exactly one ReadBatch, so a busy socket cannot
// starve the others sharing the thread. Run spins on Poll instead of
// sleeping, trading a CPU core for wake-up latency.
//
// A Mux and everything it owns must only be touched from the goroutine
// driving it; no locks are taken.
package mux
