//go:build linux

package tcp_test

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/momentics/hioload-ts/api"
	"github.com/momentics/hioload-ts/fake"
	"github.com/momentics/hioload-ts/transport/tcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func listen(t *testing.T) (net.Listener, int) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })
	return ln, ln.Addr().(*net.TCPAddr).Port
}

func waitConnected(t *testing.T, s *tcp.Stream) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		ok, err := s.Connected()
		require.NoError(t, err)
		if ok {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("connect did not complete")
}

func TestDialReadWriteEOF(t *testing.T) {
	ln, port := listen(t)
	info := api.NewConnectionInfo("127.0.0.1", port).WithCPU(0)

	s, err := tcp.Dial(context.Background(), info)
	require.NoError(t, err)
	defer s.Close()

	peer, err := ln.Accept()
	require.NoError(t, err)
	waitConnected(t, s)
	assert.Equal(t, info, s.ConnectionInfo())
	assert.Greater(t, s.RawFD(), 0)

	buf := make([]byte, 16)
	_, err = s.Read(buf)
	assert.True(t, api.IsWouldBlock(err))

	_, err = peer.Write([]byte("hello"))
	require.NoError(t, err)

	var n int
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		n, err = s.Read(buf)
		if !api.IsWouldBlock(err) {
			break
		}
		time.Sleep(time.Millisecond)
	}
	require.NoError(t, err)
	assert.Equal(t, "hello", string(buf[:n]))

	n, err = s.Write([]byte("world"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	got := make([]byte, 5)
	_, err = io.ReadFull(peer, got)
	require.NoError(t, err)
	assert.Equal(t, "world", string(got))

	require.NoError(t, peer.Close())
	deadline = time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		_, err = s.Read(buf)
		if !api.IsWouldBlock(err) {
			break
		}
		time.Sleep(time.Millisecond)
	}
	assert.ErrorIs(t, err, io.EOF)
}

func TestConnectRefused(t *testing.T) {
	ln, port := listen(t)
	ln.Close()

	s, err := tcp.Dial(context.Background(), api.NewConnectionInfo("127.0.0.1", port))
	if err != nil {
		return
	}
	defer s.Close()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		ok, err := s.Connected()
		if err != nil {
			assert.False(t, ok)
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("refused connect was not reported")
}

func TestRegistrationRearm(t *testing.T) {
	ln, port := listen(t)
	s, err := tcp.Dial(context.Background(), api.NewConnectionInfo("127.0.0.1", port))
	require.NoError(t, err)
	defer s.Close()
	_, err = ln.Accept()
	require.NoError(t, err)

	p := fake.NewPoller()
	require.NoError(t, s.MakeReadable(), "unregistered rearm is a no-op")
	require.NoError(t, s.Register(p, 3, api.Readable|api.Writable))

	require.NoError(t, s.MakeReadable())
	interest, ok := p.Registered(s.RawFD())
	require.True(t, ok)
	assert.Equal(t, api.Readable, interest)

	require.NoError(t, s.MakeWritable())
	interest, _ = p.Registered(s.RawFD())
	assert.Equal(t, api.Readable|api.Writable, interest)

	require.NoError(t, s.Deregister(p))
	assert.Equal(t, []int{s.RawFD()}, p.Deleted())

	require.NoError(t, s.Close())
	_, err = s.Read(make([]byte, 1))
	assert.ErrorIs(t, err, api.ErrClosed)
	ok, err = s.Connected()
	assert.False(t, ok)
	assert.ErrorIs(t, err, api.ErrClosed)
}
