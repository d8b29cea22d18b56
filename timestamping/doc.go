// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package timestamping captures kernel RX timestamps (SO_TIMESTAMPING) at the
// same recvmsg(2) call that returns the payload bytes, so every timestamp is
// attributed to exactly the read that produced it.
//
// A Stream wraps the lowest descriptor-owning layer. Layers stacked above it
// (TLS, framing) see plain bytes, while the timestamps keep describing the wire
// read: NIC and kernel delay, not decode delay.
package timestamping
