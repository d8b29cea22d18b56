// File: latency/latency.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Package latency decomposes per-message receive latency using the kernel
// RX timestamps of the read that carried the message and two wall-clock
// readings taken by the application: when the read returned and when the
// message was decoded. All values are CLOCK_REALTIME nanoseconds, the same
// domain the kernel uses for raw hardware timestamps once the NIC clock is
// disciplined.

package latency

import (
	"fmt"
	"math"
	"slices"

	"github.com/momentics/hioload-ts/api"
)

// Sample is one decomposed measurement. Zero means "could not be computed".
type Sample struct {
	NICToKernel    int64 // read returned - hardware arrival
	TLSToUserspace int64 // message decoded - read returned
	NICToUserspace int64 // message decoded - hardware arrival
	MissingHW      bool
}

// Decompose computes a Sample without recording it.
func Decompose(rx api.RxTimestamps, readNs, readyNs uint64) Sample {
	var s Sample
	if rx.HwRawNs != 0 && readNs != 0 {
		s.NICToKernel = satSub(readNs, rx.HwRawNs)
	} else {
		s.MissingHW = true
	}
	if readyNs != 0 && readNs != 0 {
		s.TLSToUserspace = satSub(readyNs, readNs)
	}
	if rx.HwRawNs != 0 && readyNs != 0 {
		s.NICToUserspace = satSub(readyNs, rx.HwRawNs)
	}
	return s
}

func satSub(a, b uint64) int64 {
	if a <= b {
		return 0
	}
	d := a - b
	if d > math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(d)
}

// Recorder accumulates samples up to a target count. It is not safe for
// concurrent use.
type Recorder struct {
	target         int
	nicToKernel    []int64
	tlsToUserspace []int64
	nicToUserspace []int64
	missingHW      int
}

// NewRecorder preallocates room for target samples. A non-positive target
// records without limit.
func NewRecorder(target int) *Recorder {
	r := &Recorder{target: target}
	if target > 0 {
		r.nicToKernel = make([]int64, 0, target)
		r.tlsToUserspace = make([]int64, 0, target)
		r.nicToUserspace = make([]int64, 0, target)
	}
	return r
}

// Observe decomposes and records one message. rx may be the zero value
// when the batch carried no timestamps.
func (r *Recorder) Observe(rx api.RxTimestamps, readNs, readyNs uint64) Sample {
	s := Decompose(rx, readNs, readyNs)
	if s.MissingHW {
		r.missingHW++
	}
	r.nicToKernel = append(r.nicToKernel, s.NICToKernel)
	r.tlsToUserspace = append(r.tlsToUserspace, s.TLSToUserspace)
	r.nicToUserspace = append(r.nicToUserspace, s.NICToUserspace)
	return s
}

// Count returns the number of recorded messages.
func (r *Recorder) Count() int { return len(r.nicToKernel) }

// MissingHW returns how many messages lacked a raw hardware timestamp.
func (r *Recorder) MissingHW() int { return r.missingHW }

// Done reports whether the target count has been reached.
func (r *Recorder) Done() bool { return r.target > 0 && r.Count() >= r.target }

// Summaries returns the three standard summaries in reporting order.
func (r *Recorder) Summaries() []Summary {
	return []Summary{
		Summarize("nic_to_kernel_ns", r.nicToKernel),
		Summarize("tls_to_userspace_ns", r.tlsToUserspace),
		Summarize("nic_to_userspace_ns", r.nicToUserspace),
	}
}

// Summary describes the positive values of one series.
type Summary struct {
	Label  string
	N      int
	Mean   float64
	Stddev float64
	P50    int64
	P90    int64
	P99    int64
}

// Summarize computes a Summary over the strictly positive entries of
// values; zero entries mark samples that could not be computed.
func Summarize(label string, values []int64) Summary {
	data := make([]int64, 0, len(values))
	for _, v := range values {
		if v > 0 {
			data = append(data, v)
		}
	}
	s := Summary{Label: label, N: len(data)}
	if len(data) == 0 {
		return s
	}
	slices.Sort(data)

	n := float64(len(data))
	var sum float64
	for _, v := range data {
		sum += float64(v)
	}
	s.Mean = sum / n
	var sq float64
	for _, v := range data {
		d := float64(v) - s.Mean
		sq += d * d
	}
	s.Stddev = math.Sqrt(sq / n)

	s.P50 = pick(data, 0.50)
	s.P90 = pick(data, 0.90)
	s.P99 = pick(data, 0.99)
	return s
}

// pick returns the nearest-rank percentile of sorted data.
func pick(sorted []int64, p float64) int64 {
	idx := int(math.Round(p * float64(len(sorted)-1)))
	return sorted[min(idx, len(sorted)-1)]
}

func (s Summary) String() string {
	if s.N == 0 {
		return s.Label + ": n=0"
	}
	return fmt.Sprintf("%s: n=%d mean=%.1f stddev=%.1f p50=%d p90=%d p99=%d",
		s.Label, s.N, s.Mean, s.Stddev, s.P50, s.P90, s.P99)
}
