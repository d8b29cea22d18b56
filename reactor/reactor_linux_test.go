//go:build linux

package reactor

import (
	"testing"

	"github.com/momentics/hioload-ts/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func socketpair(t *testing.T) (int, int) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	require.NoError(t, err)
	t.Cleanup(func() {
		unix.Close(fds[0])
		unix.Close(fds[1])
	})
	return fds[0], fds[1]
}

func newPoller(t *testing.T) *Poller {
	t.Helper()
	p, err := New()
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })
	return p
}

func TestWaitReportsTokenAndReadiness(t *testing.T) {
	p := newPoller(t)
	a, _ := socketpair(t)
	c, d := socketpair(t)

	require.NoError(t, p.Add(a, 0, api.Readable))
	require.NoError(t, p.Add(c, 1, api.Readable))

	events := make([]api.Event, 8)
	n, err := p.Wait(events, 0)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = unix.Write(d, []byte("x"))
	require.NoError(t, err)
	n, err = p.Wait(events, 0)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	assert.Equal(t, api.Token(1), events[0].Token)
	assert.True(t, events[0].Ready.IsReadable())
	assert.False(t, events[0].Hangup)

	// Level-triggered: still ready until drained.
	n, err = p.Wait(events, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestModifyWritableInterest(t *testing.T) {
	p := newPoller(t)
	a, _ := socketpair(t)

	require.NoError(t, p.Add(a, 3, api.Readable))
	events := make([]api.Event, 4)
	n, err := p.Wait(events, 0)
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, p.Modify(a, 3, api.Readable|api.Writable))
	n, err = p.Wait(events, 0)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	assert.Equal(t, api.Token(3), events[0].Token)
	assert.True(t, events[0].Ready.IsWritable())
}

func TestHangupAndDelete(t *testing.T) {
	p := newPoller(t)
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_NONBLOCK, 0)
	require.NoError(t, err)
	defer unix.Close(fds[0])

	require.NoError(t, p.Add(fds[0], 5, api.Readable))
	require.NoError(t, unix.Close(fds[1]))

	events := make([]api.Event, 4)
	n, err := p.Wait(events, 0)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	assert.True(t, events[0].Hangup)

	require.NoError(t, p.Delete(fds[0]))
	n, err = p.Wait(events, 0)
	require.NoError(t, err)
	assert.Zero(t, n)

	assert.Error(t, p.Delete(fds[0]))
	assert.Error(t, p.Modify(fds[0], 5, api.Readable))
}

func TestWaitEmptySlice(t *testing.T) {
	p := newPoller(t)
	n, err := p.Wait(nil, 0)
	require.NoError(t, err)
	assert.Zero(t, n)
}
