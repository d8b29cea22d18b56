// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package tcp is the descriptor-owning bottom layer of a stream stack: a
// non-blocking TCP client socket with connect-completion polling, reactor
// registration and an optional receive-CPU hint.
package tcp
