//go:build linux
// +build linux

// File: timestamping/timestamping_linux.go
// Author: momentics <momentics@gmail.com>
//
// Socket option and driver ioctl that turn RX timestamp generation on.

package timestamping

import (
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"
)

// linux/net_tstamp.h
const (
	sofRxHardware  = 1 << 2
	sofRxSoftware  = 1 << 3
	sofSoftware    = 1 << 4
	sofSysHardware = 1 << 5 // legacy: HW time in system domain, driver dependent
	sofRawHardware = 1 << 6
)

// RxFlags is the SO_TIMESTAMPING mask requested by Enable.
const RxFlags = sofRxHardware | sofRawHardware | sofSysHardware | sofRxSoftware | sofSoftware

// Enable requests raw-hardware, system-domain-hardware and software RX
// timestamps on fd. An error means the kernel or driver rejected the option;
// callers treat it as fatal for the connection attempt.
func Enable(fd int) error {
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_TIMESTAMPING, RxFlags); err != nil {
		return fmt.Errorf("setsockopt SO_TIMESTAMPING: %w", err)
	}
	return nil
}

// ConfigureHardware asks the driver of iface (SIOCSHWTSTAMP) to timestamp
// all received packets. It is best effort: failure is logged as a warning and
// reported as false, and the stream degrades to software timestamps.
func ConfigureHardware(fd int, iface string, logger zerolog.Logger) bool {
	cfg := unix.HwTstampConfig{
		Tx_type:   unix.HWTSTAMP_TX_OFF,
		Rx_filter: unix.HWTSTAMP_FILTER_ALL,
	}
	if err := unix.IoctlSetHwTstamp(fd, iface, &cfg); err != nil {
		logger.Warn().Err(err).Int("fd", fd).Str("iface", iface).
			Msg("ioctl SIOCSHWTSTAMP failed, hardware RX timestamps unavailable")
		return false
	}
	logger.Debug().Int("fd", fd).Str("iface", iface).Int32("rx_filter", cfg.Rx_filter).
		Msg("hardware RX timestamping enabled")
	return true
}
