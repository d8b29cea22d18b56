// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package reactor provides the readiness poller behind the multiplexer: an
// epoll(7) instance keyed by dense connection tokens, level-triggered, with
// zero-timeout waits for spin loops.
package reactor
