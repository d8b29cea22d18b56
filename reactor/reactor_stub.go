//go:build !linux
// +build !linux

// File: reactor/reactor_stub.go
// Author: momentics <momentics@gmail.com>
//
// Stub implementation for unsupported platforms.

package reactor

import "github.com/momentics/hioload-ts/api"

// Poller is unavailable on this platform.
type Poller struct{}

// New returns ErrUnsupported.
func New() (*Poller, error) { return nil, ErrUnsupported }

func (*Poller) Add(int, api.Token, api.Interest) error    { return ErrUnsupported }
func (*Poller) Modify(int, api.Token, api.Interest) error { return ErrUnsupported }
func (*Poller) Delete(int) error                          { return ErrUnsupported }
func (*Poller) Wait([]api.Event, int) (int, error)        { return 0, ErrUnsupported }
func (*Poller) Close() error                              { return nil }
