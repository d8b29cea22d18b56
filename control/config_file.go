// control/config_file.go
// Author: momentics <momentics@gmail.com>
//
// TOML configuration file support.

package control

import (
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

// FileConfig mirrors Config with TOML-friendly types. Pointer fields
// distinguish "absent" from an explicit zero or false.
type FileConfig struct {
	Host             string   `toml:"host"`
	Port             *int     `toml:"port"`
	Path             string   `toml:"path"`
	Streams          []string `toml:"streams"`
	TLS              *bool    `toml:"tls"`
	Conns            *int     `toml:"conns"`
	Samples          *int     `toml:"samples"`
	Iface            string   `toml:"iface"`
	BusyPollMicros   *int     `toml:"busy_poll_us"`
	PreferBusyPoll   *bool    `toml:"prefer_busy_poll"`
	RcvLowat         *int     `toml:"rcvlowat"`
	RxCPU            *int     `toml:"rx_cpu"`
	MuxCPU           *int     `toml:"mux_cpu"`
	ReadBufferSize   *int     `toml:"read_buffer"`
	DialTimeout      string   `toml:"dial_timeout"`
	HandshakeTimeout string   `toml:"handshake_timeout"`
	LogLevel         string   `toml:"log_level"`
}

// LoadFileConfig reads and parses a TOML config file from the given path.
// Unknown keys are rejected.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	f, err := os.Open(path)
	if err != nil {
		return fc, err
	}
	defer f.Close()
	dec := toml.NewDecoder(f).DisallowUnknownFields()
	if err := dec.Decode(&fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// DefaultConfigPath returns ~/.rxstamp/config.toml, or "" without a home.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".rxstamp", "config.toml")
	}
	return ""
}

// ApplyFileConfig applies configuration from a file to cfg.
// It respects flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("host", fc.Host, &cfg.Host)
	s.setString("path", fc.Path, &cfg.Path)
	s.setString("iface", fc.Iface, &cfg.Iface)
	s.setString("log-level", fc.LogLevel, &cfg.LogLevel)
	s.setStrings("streams", fc.Streams, &cfg.Streams)

	s.setInt("port", fc.Port, &cfg.Port)
	s.setInt("conns", fc.Conns, &cfg.Conns)
	s.setInt("samples", fc.Samples, &cfg.Samples)
	s.setInt("busy-poll", fc.BusyPollMicros, &cfg.BusyPollMicros)
	s.setInt("rcvlowat", fc.RcvLowat, &cfg.RcvLowat)
	s.setInt("rx-cpu", fc.RxCPU, &cfg.RxCPU)
	s.setInt("mux-cpu", fc.MuxCPU, &cfg.MuxCPU)
	s.setInt("read-buffer", fc.ReadBufferSize, &cfg.ReadBufferSize)

	s.setBool("tls", fc.TLS, &cfg.TLS)
	s.setBool("prefer-busy-poll", fc.PreferBusyPoll, &cfg.PreferBusyPoll)

	if err := s.setDuration("dial-timeout", fc.DialTimeout, &cfg.DialTimeout); err != nil {
		return err
	}
	return s.setDuration("handshake-timeout", fc.HandshakeTimeout, &cfg.HandshakeTimeout)
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}

// FileConfig returns the TOML view of c, suitable for writing a config file.
func (c Config) FileConfig() FileConfig {
	return FileConfig{
		Host:             c.Host,
		Port:             &c.Port,
		Path:             c.Path,
		Streams:          append([]string(nil), c.Streams...),
		TLS:              &c.TLS,
		Conns:            &c.Conns,
		Samples:          &c.Samples,
		Iface:            c.Iface,
		BusyPollMicros:   &c.BusyPollMicros,
		PreferBusyPoll:   &c.PreferBusyPoll,
		RcvLowat:         &c.RcvLowat,
		RxCPU:            &c.RxCPU,
		MuxCPU:           &c.MuxCPU,
		ReadBufferSize:   &c.ReadBufferSize,
		DialTimeout:      c.DialTimeout.String(),
		HandshakeTimeout: c.HandshakeTimeout.String(),
		LogLevel:         c.LogLevel,
	}
}

// EncodeTOML renders c as a config file.
func (c Config) EncodeTOML() ([]byte, error) {
	return toml.Marshal(c.FileConfig())
}
