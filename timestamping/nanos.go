// File: timestamping/nanos.go
// Author: momentics <momentics@gmail.com>

package timestamping

import (
	"math"
	"math/bits"
)

const nanosPerSecond = 1_000_000_000

// NanosFromTimespec converts a (seconds, nanoseconds) pair to nanoseconds,
// saturating at math.MaxUint64. The all-zero pair is the "not supplied"
// sentinel and stays 0. Negative components are clamped to zero.
func NanosFromTimespec(sec, nsec int64) uint64 {
	if sec == 0 && nsec == 0 {
		return 0
	}
	if sec < 0 {
		sec = 0
	}
	if nsec < 0 {
		nsec = 0
	}
	hi, lo := bits.Mul64(uint64(sec), nanosPerSecond)
	if hi != 0 {
		return math.MaxUint64
	}
	sum, carry := bits.Add64(lo, uint64(nsec), 0)
	if carry != 0 {
		return math.MaxUint64
	}
	return sum
}
