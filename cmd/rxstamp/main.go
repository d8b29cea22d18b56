//go:build linux
// +build linux

// File: cmd/rxstamp/main.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// rxstamp dials a streaming WebSocket feed over one or more connections,
// drives them from a single pinned thread and reports where receive time
// is spent between the NIC, the kernel and userspace decoding.

package main

import (
	"fmt"
	"os"
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/momentics/hioload-ts/control"
	"github.com/momentics/hioload-ts/internal/logging"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var exampleUsage = strings.TrimSpace(`
  rxstamp --conns 11 --samples 200000 --iface eth0 --mux-cpu 3 --rx-cpu 2
  rxstamp tail --conns 1 --streams btcusdt@bookTicker --count 20
  rxstamp --config $HOME/.rxstamp/config.toml config
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// app carries the merged configuration to subcommands.
type app struct {
	cfg     control.Config
	cfgPath string
	format  string
	logger  zerolog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{cfg: control.DefaultConfig()}

	root := &cobra.Command{
		Use:          "rxstamp",
		Short:        "Measure NIC-to-userspace latency of a streaming WebSocket feed",
		Example:      exampleUsage,
		Version:      fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load(cmd)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStats(cmd.Context(), a, cmd.OutOrStdout())
		},
	}

	bindFlags(root.PersistentFlags(), &a.cfg)
	root.PersistentFlags().StringVar(&a.cfgPath, "config", "", "config file (default $HOME/.rxstamp/config.toml)")
	root.PersistentFlags().StringVar(&a.format, "log-format", string(logging.FormatConsole), "log format: console or json")

	root.AddCommand(newTailCmd(a), newConfigCmd(a))
	return root
}

func bindFlags(fs *pflag.FlagSet, cfg *control.Config) {
	fs.StringVar(&cfg.Host, "host", cfg.Host, "endpoint host")
	fs.IntVar(&cfg.Port, "port", cfg.Port, "endpoint port")
	fs.StringVar(&cfg.Path, "path", cfg.Path, "request path; overrides --streams")
	fs.StringSliceVar(&cfg.Streams, "streams", cfg.Streams, "streams to subscribe to over each connection")
	fs.BoolVar(&cfg.TLS, "tls", cfg.TLS, "use TLS")
	fs.IntVar(&cfg.Conns, "conns", cfg.Conns, "number of connections")
	fs.IntVar(&cfg.Samples, "samples", cfg.Samples, "messages to measure before reporting")
	fs.StringVar(&cfg.Iface, "iface", cfg.Iface, "interface for NIC hardware timestamping")
	fs.IntVar(&cfg.BusyPollMicros, "busy-poll", cfg.BusyPollMicros, "SO_BUSY_POLL microseconds (0 disables)")
	fs.BoolVar(&cfg.PreferBusyPoll, "prefer-busy-poll", cfg.PreferBusyPoll, "set SO_PREFER_BUSY_POLL")
	fs.IntVar(&cfg.RcvLowat, "rcvlowat", cfg.RcvLowat, "SO_RCVLOWAT bytes (0 disables)")
	fs.IntVar(&cfg.RxCPU, "rx-cpu", cfg.RxCPU, "receive-queue CPU hint (-1 disables)")
	fs.IntVar(&cfg.MuxCPU, "mux-cpu", cfg.MuxCPU, "CPU to pin the polling thread to (-1 disables)")
	fs.IntVar(&cfg.ReadBufferSize, "read-buffer", cfg.ReadBufferSize, "initial read buffer bytes per connection")
	fs.DurationVar(&cfg.DialTimeout, "dial-timeout", cfg.DialTimeout, "DNS resolution and TCP connect budget")
	fs.DurationVar(&cfg.HandshakeTimeout, "handshake-timeout", cfg.HandshakeTimeout, "TLS handshake and WebSocket upgrade budget")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level")
}

// load merges the config file under explicitly set flags, validates the
// result and builds the logger.
func (a *app) load(cmd *cobra.Command) error {
	cfgFile := a.cfgPath
	if cfgFile == "" {
		cfgFile = control.DefaultConfigPath()
	}

	changed := map[string]bool{}
	cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

	if cfgFile != "" && control.FileExists(cfgFile) {
		fc, err := control.LoadFileConfig(cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if err := control.ApplyFileConfig(&a.cfg, fc, changed); err != nil {
			return err
		}
	} else if a.cfgPath != "" {
		return fmt.Errorf("config file %s not found", a.cfgPath)
	}

	if err := a.cfg.Validate(); err != nil {
		return err
	}
	logger, err := logging.New(cmd.ErrOrStderr(), a.cfg.LogLevel, logging.Format(a.format))
	if err != nil {
		return err
	}
	a.logger = logger
	return nil
}
