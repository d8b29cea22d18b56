//go:build linux
// +build linux

// File: timestamping/cmsg_linux.go
// Author: momentics <momentics@gmail.com>
//
// Bounds-checked decoder for the ancillary-data chain returned by recvmsg.
// Header fields are read at fixed offsets and every declared length is
// validated against the buffer before any payload byte is interpreted.

package timestamping

import (
	"encoding/binary"
	"unsafe"

	"github.com/momentics/hioload-ts/api"
	"golang.org/x/sys/unix"
)

var (
	cmsgLenSize   = int(unsafe.Sizeof(unix.Cmsghdr{}.Len))
	cmsgLevelOff  = int(unsafe.Offsetof(unix.Cmsghdr{}.Level))
	cmsgTypeOff   = int(unsafe.Offsetof(unix.Cmsghdr{}.Type))
	cmsgDataOff   = cmsgAlign(unix.SizeofCmsghdr)
	timespecWord  = int(unsafe.Sizeof(unix.Timespec{}.Sec))
	timespecNsOff = int(unsafe.Offsetof(unix.Timespec{}.Nsec))
	timespecSize  = int(unsafe.Sizeof(unix.Timespec{}))

	// scm_timestamping: struct timespec ts[3]
	scmTimestampingSize = 3 * timespecSize
)

func cmsgAlign(n int) int {
	const a = int(unsafe.Sizeof(uintptr(0)))
	return (n + a - 1) &^ (a - 1)
}

func readWord(b []byte, size int) uint64 {
	if size == 8 {
		return binary.NativeEndian.Uint64(b)
	}
	return uint64(binary.NativeEndian.Uint32(b))
}

func readSigned(b []byte, size int) int64 {
	if size == 8 {
		return int64(binary.NativeEndian.Uint64(b))
	}
	return int64(int32(binary.NativeEndian.Uint32(b)))
}

// decodeControl scans the chain for the first SOL_SOCKET/SCM_TIMESTAMPING
// entry. Only that entry is honored: if its declared length cannot hold three
// timespecs the read is reported as carrying no timestamps.
func decodeControl(b []byte) (api.RxTimestamps, bool) {
	off := 0
	for off+unix.SizeofCmsghdr <= len(b) {
		hdr := b[off:]
		declared := readWord(hdr, cmsgLenSize)
		if declared < unix.SizeofCmsghdr || declared > uint64(len(hdr)) {
			return api.RxTimestamps{}, false
		}
		length := int(declared)
		level := int32(binary.NativeEndian.Uint32(hdr[cmsgLevelOff:]))
		typ := int32(binary.NativeEndian.Uint32(hdr[cmsgTypeOff:]))

		if level == unix.SOL_SOCKET && typ == unix.SO_TIMESTAMPING {
			if length < cmsgDataOff+scmTimestampingSize {
				return api.RxTimestamps{}, false
			}
			return decodeTimestamping(hdr[cmsgDataOff:length]), true
		}
		off += cmsgAlign(length)
	}
	return api.RxTimestamps{}, false
}

// decodeTimestamping reads ts[0] software, ts[1] legacy hw-in-system-time,
// ts[2] raw hardware. data must hold at least scmTimestampingSize bytes.
func decodeTimestamping(data []byte) api.RxTimestamps {
	var ns [3]uint64
	for i := range ns {
		ts := data[i*timespecSize:]
		sec := readSigned(ts, timespecWord)
		nsec := readSigned(ts[timespecNsOff:], timespecWord)
		ns[i] = NanosFromTimespec(sec, nsec)
	}
	return api.RxTimestamps{SwNs: ns[0], HwSysNs: ns[1], HwRawNs: ns[2]}
}
