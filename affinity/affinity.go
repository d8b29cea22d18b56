// File: affinity/affinity.go
// Author: momentics <momentics@gmail.com>
//
// Platform-neutral API for CPU affinity. Platform-specific implementations are located
// in separate files (affinity_linux.go, affinity_stub.go) guarded by build tags.

package affinity

import (
	"fmt"
	"runtime"
)

// SetAffinity restricts the calling OS thread to a given logical CPU.
// The caller must already hold the thread via runtime.LockOSThread,
// otherwise the goroutine may migrate to an unpinned thread.
func SetAffinity(cpuID int) error {
	if cpuID < 0 {
		return fmt.Errorf("affinity: invalid cpu %d", cpuID)
	}
	return setAffinityPlatform(cpuID)
}

// Pin locks the calling goroutine to its OS thread and pins that thread to
// cpuID. The returned release function unlocks the thread; it is safe to
// call when Pin failed.
func Pin(cpuID int) (release func(), err error) {
	runtime.LockOSThread()
	if err := SetAffinity(cpuID); err != nil {
		return runtime.UnlockOSThread, err
	}
	return runtime.UnlockOSThread, nil
}
