// control/config.go
// Author: momentics <momentics@gmail.com>
//
// Client configuration with low-latency defaults.

package control

import (
	"errors"
	"fmt"
	"time"
)

// Config holds every knob of the receive client.
type Config struct {
	Host    string
	Port    int
	Path    string
	Streams []string
	TLS     bool

	Conns   int
	Samples int

	Iface          string
	BusyPollMicros int
	PreferBusyPoll bool
	RcvLowat       int
	RxCPU          int // receive-queue CPU hint, -1 disables
	MuxCPU         int // multiplexer thread CPU, -1 disables

	ReadBufferSize   int
	DialTimeout      time.Duration
	HandshakeTimeout time.Duration

	LogLevel string
}

// DefaultConfig returns the tuned defaults: 50µs busy poll, prefer busy
// poll, wake on the first byte and a 64 KiB read buffer.
func DefaultConfig() Config {
	return Config{
		Host: "fstream.binance.com",
		Port: 443,
		Streams: []string{
			"ethusdt@bookTicker",
			"btcusdt@bookTicker",
			"solusdt@bookTicker",
			"ethusdc@bookTicker",
			"btcusdc@bookTicker",
		},
		TLS:              true,
		Conns:            11,
		Samples:          200000,
		BusyPollMicros:   50,
		PreferBusyPoll:   true,
		RcvLowat:         1,
		RxCPU:            -1,
		MuxCPU:           -1,
		ReadBufferSize:   64 << 10,
		DialTimeout:      5 * time.Second,
		HandshakeTimeout: 10 * time.Second,
		LogLevel:         "info",
	}
}

// Validate reports every invalid field.
func (c Config) Validate() error {
	var errs []error
	if c.Host == "" {
		errs = append(errs, errors.New("host is required"))
	}
	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range 1..65535", c.Port))
	}
	if c.Conns < 1 {
		errs = append(errs, fmt.Errorf("conns must be at least 1, got %d", c.Conns))
	}
	if c.Samples < 0 {
		errs = append(errs, fmt.Errorf("samples must not be negative, got %d", c.Samples))
	}
	if c.BusyPollMicros < 0 || c.RcvLowat < 0 {
		errs = append(errs, errors.New("busy-poll and rcvlowat must not be negative"))
	}
	if c.ReadBufferSize < 0 {
		errs = append(errs, fmt.Errorf("read buffer size must not be negative, got %d", c.ReadBufferSize))
	}
	return errors.Join(errs...)
}

// configSetter applies file values while respecting flag precedence.
// It only applies values if the corresponding flag hasn't been explicitly set.
type configSetter struct {
	changed map[string]bool
}

func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

func (s *configSetter) setStrings(flag string, value []string, dst *[]string) {
	if len(value) == 0 || s.changed[flag] {
		return
	}
	*dst = append([]string(nil), value...)
}

// setInt applies a pointer so an explicit zero in the file is honoured.
func (s *configSetter) setInt(flag string, value *int, dst *int) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

func (s *configSetter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}
