// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package secure is the TLS layer of a stream stack. It sits above the
// timestamping layer so RX timestamps keep describing the encrypted wire
// read while callers above see plaintext.
//
// crypto/tls cannot resume a handshake after a would-block error, so the
// handshake runs on a helper goroutine that waits for readiness with poll(2);
// Connected only checks whether that goroutine finished and never blocks.
// After the handshake every read is non-blocking and happens on the caller's
// goroutine. Writes wait for writability because a partially written TLS
// record cannot be retried.
package secure
