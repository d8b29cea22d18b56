// Package control
// Author: momentics <momentics@gmail.com>
//
// Configuration and runtime counters for the receive client.
//
// Provides:
//   - Config with tuned defaults, TOML file loading and validation
//   - Flag-precedence merging of file values (explicit flags win)
//   - Single-threaded multiplexer counters with a zerolog encoding
package control
