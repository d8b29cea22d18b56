// Package client
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Composes the receive stack for one endpoint:
//
//	tcp.Stream -> timestamping.Stream -> secure.Stream -> websocket.Conn
//
// Timestamp capture sits directly above the descriptor-owning TCP layer so
// it observes the encrypted wire reads; the TLS and framing layers above
// forward its captured values unchanged.
package client
