// File: protocol/handshake.go
// Package protocol
// Client side of the WebSocket opening handshake: builds the upgrade request,
// parses the server response and checks Sec-WebSocket-Accept.
package protocol

import (
	"bufio"
	"bytes"
	"crypto/rand"
	"crypto/sha1"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

const (
	WebSocketGUID            = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"
	MaxHandshakeHeadersSize  = 8192
	HeaderConnection         = "Connection"
	HeaderUpgrade            = "Upgrade"
	HeaderSecWebSocketKey    = "Sec-WebSocket-Key"
	HeaderSecWebSocketVer    = "Sec-WebSocket-Version"
	HeaderSecWebSocketAccept = "Sec-WebSocket-Accept"
	RequiredWebSocketVersion = "13"
)

var (
	ErrInvalidUpgradeHeaders = errors.New("invalid WebSocket upgrade headers")
	ErrBadAcceptKey          = errors.New("Sec-WebSocket-Accept does not match key")
	ErrHandshakeTooLarge     = errors.New("handshake headers too large")
)

var headerTerminator = []byte("\r\n\r\n")

// ComputeAcceptKey returns the Sec-WebSocket-Accept value for clientKey.
func ComputeAcceptKey(clientKey string) string {
	h := sha1.New()
	h.Write([]byte(clientKey + WebSocketGUID))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// NewClientKey returns a random base64-encoded 16-byte nonce.
func NewClientKey() (string, error) {
	var nonce [16]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return "", fmt.Errorf("handshake key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(nonce[:]), nil
}

// BuildUpgradeRequest renders the HTTP/1.1 GET that opens a WebSocket
// session on path. host is sent verbatim as the Host header.
func BuildUpgradeRequest(host, path, key string, extra http.Header) []byte {
	if path == "" {
		path = "/"
	}
	var b bytes.Buffer
	fmt.Fprintf(&b, "GET %s HTTP/1.1\r\n", path)
	fmt.Fprintf(&b, "Host: %s\r\n", host)
	b.WriteString("Upgrade: websocket\r\n")
	b.WriteString("Connection: Upgrade\r\n")
	fmt.Fprintf(&b, "%s: %s\r\n", HeaderSecWebSocketKey, key)
	fmt.Fprintf(&b, "%s: %s\r\n", HeaderSecWebSocketVer, RequiredWebSocketVersion)
	for k, vs := range extra {
		for _, v := range vs {
			fmt.Fprintf(&b, "%s: %s\r\n", k, v)
		}
	}
	b.WriteString("\r\n")
	return b.Bytes()
}

// ParseUpgradeResponse validates the server's reply to an upgrade request
// sent with key. It returns the number of bytes making up the response
// head; anything past that already belongs to the frame stream.
// A zero count with a nil error means the head is not complete yet.
func ParseUpgradeResponse(raw []byte, key string) (int, error) {
	end := bytes.Index(raw, headerTerminator)
	if end < 0 {
		if len(raw) > MaxHandshakeHeadersSize {
			return 0, ErrHandshakeTooLarge
		}
		return 0, nil
	}
	consumed := end + len(headerTerminator)

	resp, err := http.ReadResponse(bufio.NewReader(bytes.NewReader(raw[:consumed])), nil)
	if err != nil {
		return 0, fmt.Errorf("handshake read response: %w", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusSwitchingProtocols {
		return 0, fmt.Errorf("handshake: unexpected status %q", resp.Status)
	}
	if !headerContainsToken(resp.Header, HeaderConnection, "Upgrade") ||
		!headerContainsToken(resp.Header, HeaderUpgrade, "websocket") {
		return 0, ErrInvalidUpgradeHeaders
	}
	if resp.Header.Get(HeaderSecWebSocketAccept) != ComputeAcceptKey(key) {
		return 0, ErrBadAcceptKey
	}
	return consumed, nil
}

// headerContainsToken checks for token in the comma-separated values of headerName.
func headerContainsToken(h http.Header, headerName, token string) bool {
	for _, v := range h[http.CanonicalHeaderKey(headerName)] {
		for _, part := range strings.Split(v, ",") {
			if strings.EqualFold(strings.TrimSpace(part), token) {
				return true
			}
		}
	}
	return false
}
