//go:build linux
// +build linux

// File: cmd/rxstamp/run_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/momentics/hioload-ts/api"
	"github.com/momentics/hioload-ts/client"
	"github.com/momentics/hioload-ts/latency"
	"github.com/momentics/hioload-ts/mux"
	"github.com/momentics/hioload-ts/reactor"
	"github.com/momentics/hioload-ts/websocket"
	"github.com/spf13/cobra"
)

func (a *app) path() string {
	if a.cfg.Path != "" {
		return a.cfg.Path
	}
	return websocket.StreamPath(a.cfg.Streams...)
}

func (a *app) clientConfig() client.Config {
	info := api.NewConnectionInfo(a.cfg.Host, a.cfg.Port)
	if a.cfg.RxCPU >= 0 {
		info = info.WithCPU(a.cfg.RxCPU)
	}
	cc := client.Config{
		Endpoint:         info,
		Path:             a.path(),
		Timestamping:     true,
		Iface:            a.cfg.Iface,
		ReadBufferSize:   a.cfg.ReadBufferSize,
		HandshakeTimeout: a.cfg.HandshakeTimeout,
		Logger:           a.logger,
	}
	if a.cfg.TLS {
		cc.TLS = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return cc
}

// start dials every connection and returns a multiplexer driving them.
func (a *app) start(ctx context.Context, conns int) (*mux.Mux, error) {
	dialCtx, cancel := context.WithTimeout(ctx, a.cfg.DialTimeout)
	defer cancel()
	list, err := client.DialN(dialCtx, a.clientConfig(), conns)
	if err != nil {
		return nil, err
	}

	poller, err := reactor.New()
	if err != nil {
		for _, c := range list {
			c.Close()
		}
		return nil, err
	}
	m := mux.New(poller,
		mux.WithLogger(a.logger),
		mux.WithCPU(a.cfg.MuxCPU),
		mux.WithTuning(a.cfg.BusyPollMicros, a.cfg.PreferBusyPoll, a.cfg.RcvLowat),
		mux.WithConnectTimeout(a.cfg.DialTimeout+a.cfg.HandshakeTimeout),
	)
	for _, c := range list {
		if _, err := m.Add(c); err != nil {
			m.Close()
			for _, rest := range list[m.Len():] {
				rest.Close()
			}
			return nil, err
		}
	}
	a.logger.Info().
		Str("endpoint", a.cfg.Host).
		Str("path", a.path()).
		Int("conns", conns).
		Msg("connections dialed")
	return m, nil
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}

// runStats measures until the sample target is reached and prints the
// latency summaries.
func runStats(parent context.Context, a *app, out io.Writer) error {
	ctx, stop := signalContext(parent)
	defer stop()

	m, err := a.start(ctx, a.cfg.Conns)
	if err != nil {
		return err
	}
	defer m.Close()

	rec := latency.NewRecorder(a.cfg.Samples)
	err = m.Run(ctx, func(_ api.Token, b *websocket.Batch) error {
		rx, _ := b.RxTimestamps()
		readNs := uint64(b.ReadAt().UnixNano())
		for b.Next() {
			if !b.Frame().IsText() {
				continue
			}
			rec.Observe(rx, readNs, uint64(time.Now().UnixNano()))
			if rec.Done() {
				return mux.ErrStop
			}
		}
		return nil
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	c := m.Counters()
	a.logger.Info().Object("mux", &c).Int("messages", rec.Count()).Msg("measurement finished")
	for _, s := range rec.Summaries() {
		fmt.Fprintln(out, s)
	}
	fmt.Fprintf(out, "missing_hw=%d\n", rec.MissingHW())
	return nil
}

func newTailCmd(a *app) *cobra.Command {
	var count int
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Print each text message with the kernel timestamps of its read",
		Long: "Prints one line per text frame: hw_raw_ns hw_sys_ns sw_ns message.\n" +
			"A zero timestamp means the kernel or NIC did not supply it; hw_sys_ns is\n" +
			"a legacy field most drivers leave empty.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			m, err := a.start(ctx, a.cfg.Conns)
			if err != nil {
				return err
			}
			defer m.Close()

			out := cmd.OutOrStdout()
			printed := 0
			err = m.Run(ctx, func(_ api.Token, b *websocket.Batch) error {
				ts, _ := b.RxTimestamps()
				for b.Next() {
					f := b.Frame()
					if !f.IsText() {
						continue
					}
					fmt.Fprintf(out, "%d %d %d %s\n", ts.HwRawNs, ts.HwSysNs, ts.SwNs, f.Payload)
					printed++
					if count > 0 && printed >= count {
						return mux.ErrStop
					}
				}
				return nil
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
	cmd.Flags().IntVar(&count, "count", 0, "stop after this many messages (0 runs until interrupted)")
	return cmd
}

func newConfigCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as TOML",
		RunE: func(cmd *cobra.Command, _ []string) error {
			b, err := a.cfg.EncodeTOML()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(b)
			return err
		},
	}
}
