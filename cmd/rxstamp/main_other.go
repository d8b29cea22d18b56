//go:build !linux
// +build !linux

// File: cmd/rxstamp/main_other.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Fprintln(os.Stderr, "rxstamp requires Linux: kernel RX timestamps, epoll and busy polling are Linux facilities")
	os.Exit(1)
}
