// Package websocket
// Author: momentics <momentics@gmail.com>
//
// Client framing layer placed on top of a composed stream (TCP, optional
// capture, optional TLS). A Conn drives the opening handshake through the
// non-blocking Connected query and afterwards turns each underlying read
// into a Batch: a lazy, single-pass sequence of frames decoded in place from
// the read buffer, together with the RX timestamps captured by that read.
//
// Control frames are answered automatically. Replies and caller frames go
// through an outbound queue that is flushed when the descriptor is writable.
package websocket
