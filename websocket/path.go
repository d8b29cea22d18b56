// File: websocket/path.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package websocket

import (
	"net"
	"strconv"
	"strings"

	"github.com/momentics/hioload-ts/api"
)

// StreamPath builds a combined-stream request path subscribing to every
// named stream over one connection, e.g. "/stream?streams=a/b/c".
func StreamPath(streams ...string) string {
	if len(streams) == 0 {
		return "/"
	}
	return "/stream?streams=" + strings.Join(streams, "/")
}

// hostHeader renders the Host header for info, omitting default ports.
func hostHeader(info api.ConnectionInfo) string {
	switch info.Port() {
	case 80, 443:
		if strings.Contains(info.Host(), ":") {
			return "[" + info.Host() + "]"
		}
		return info.Host()
	}
	return net.JoinHostPort(info.Host(), strconv.Itoa(info.Port()))
}
