// Package api
// Author: momentics <momentics@gmail.com>
//
// Common error values shared by all stream layers.

package api

import (
	"errors"
	"syscall"
)

// Common errors used across the library.
var (
	ErrClosed          = errors.New("stream is closed")
	ErrNotConnected    = errors.New("stream is not connected")
	ErrInvalidArgument = errors.New("invalid argument")
)

// ErrWouldBlock is returned by non-blocking reads and writes that could not
// make progress. It satisfies net.Error with Timeout and Temporary set so
// record-oriented readers above (crypto/tls) keep their partial state, and it
// unwraps to EAGAIN.
var ErrWouldBlock error = wouldBlockError{}

type wouldBlockError struct{}

func (wouldBlockError) Error() string   { return "operation would block" }
func (wouldBlockError) Timeout() bool   { return true }
func (wouldBlockError) Temporary() bool { return true }
func (wouldBlockError) Unwrap() error   { return syscall.EAGAIN }

// IsWouldBlock reports whether err means "retry when ready".
func IsWouldBlock(err error) bool {
	return err != nil && errors.Is(err, syscall.EAGAIN)
}
