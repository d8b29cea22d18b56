//go:build linux
// +build linux

// File: client/client_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package client

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"time"

	"github.com/momentics/hioload-ts/api"
	"github.com/momentics/hioload-ts/timestamping"
	"github.com/momentics/hioload-ts/transport/secure"
	"github.com/momentics/hioload-ts/transport/tcp"
	"github.com/momentics/hioload-ts/websocket"
	"github.com/rs/zerolog"
)

// Config describes how to reach one endpoint.
type Config struct {
	Endpoint api.ConnectionInfo
	Path     string

	// TLS enables the TLS layer when non-nil.
	TLS *tls.Config

	// Timestamping enables kernel RX timestamps; failing to enable them
	// fails the dial. Iface, when set, also requests NIC hardware
	// timestamping on that interface (best effort).
	Timestamping bool
	Iface        string

	ReadBufferSize   int
	HandshakeTimeout time.Duration // zero selects the TLS layer default

	Logger zerolog.Logger
}

// Dial opens the TCP connection and builds the layer stack on top of it.
// Connection and handshakes complete later through Connected.
func Dial(ctx context.Context, cfg Config) (*websocket.Conn, error) {
	logger := cfg.Logger
	stream, err := tcp.Dial(ctx, cfg.Endpoint, tcp.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	var layer api.Layer = stream
	if cfg.Timestamping {
		fd := stream.RawFD()
		if err := timestamping.Enable(fd); err != nil {
			stream.Close()
			return nil, fmt.Errorf("dial %s: %w", cfg.Endpoint, err)
		}
		if cfg.Iface != "" {
			timestamping.ConfigureHardware(fd, cfg.Iface, logger)
		}
		layer = timestamping.New(layer)
	}
	if cfg.TLS != nil {
		layer = secure.New(layer, cfg.TLS,
			secure.WithLogger(logger),
			secure.WithHandshakeTimeout(cfg.HandshakeTimeout))
	}

	wsOpts := []websocket.Option{websocket.WithLogger(logger)}
	if cfg.ReadBufferSize > 0 {
		wsOpts = append(wsOpts, websocket.WithReadBufferSize(cfg.ReadBufferSize))
	}
	conn, err := websocket.New(layer, cfg.Path, wsOpts...)
	if err != nil {
		layer.Close()
		return nil, err
	}
	return conn, nil
}

// DialN opens n connections to the same endpoint. On failure every
// connection opened so far is closed.
func DialN(ctx context.Context, cfg Config, n int) ([]*websocket.Conn, error) {
	conns := make([]*websocket.Conn, 0, n)
	for i := 0; i < n; i++ {
		c, err := Dial(ctx, cfg)
		if err != nil {
			errs := []error{fmt.Errorf("connection %d: %w", i, err)}
			for _, open := range conns {
				errs = append(errs, open.Close())
			}
			return nil, errors.Join(errs...)
		}
		conns = append(conns, c)
	}
	return conns, nil
}
