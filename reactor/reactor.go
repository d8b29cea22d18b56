// File: reactor/reactor.go
// Author: momentics <momentics@gmail.com>
//
// Platform-neutral pieces of the readiness poller.

package reactor

import (
	"errors"

	"github.com/momentics/hioload-ts/api"
)

// ErrUnsupported is returned by New on platforms without epoll.
var ErrUnsupported = errors.New("reactor: this platform is not supported")

// Compile-time check.
var _ api.Poller = (*Poller)(nil)
