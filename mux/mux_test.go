package mux_test

import (
	"context"
	"errors"
	"regexp"
	"syscall"
	"testing"
	"time"

	"github.com/momentics/hioload-ts/api"
	"github.com/momentics/hioload-ts/fake"
	"github.com/momentics/hioload-ts/mux"
	"github.com/momentics/hioload-ts/protocol"
	"github.com/momentics/hioload-ts/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var keyPattern = regexp.MustCompile(`Sec-WebSocket-Key: (\S+)\r\n`)

type peer struct {
	layer *fake.TimestampedLayer
	conn  *websocket.Conn
	token api.Token
}

func textFrame(payload string) []byte {
	return protocol.AppendFrame(nil, protocol.OpcodeText, true, []byte(payload), false, [4]byte{})
}

func accept(t *testing.T, l *fake.TimestampedLayer) []byte {
	t.Helper()
	m := keyPattern.FindSubmatch(l.Written())
	require.NotNil(t, m)
	return []byte("HTTP/1.1 101 Switching Protocols\r\nUpgrade: websocket\r\nConnection: Upgrade\r\n" +
		"Sec-WebSocket-Accept: " + protocol.ComputeAcceptKey(string(m[1])) + "\r\n\r\n")
}

func setup(t *testing.T, n int, opts ...mux.Option) (*mux.Mux, *fake.Poller, []*peer) {
	t.Helper()
	poller := fake.NewPoller()
	m := mux.New(poller, opts...)
	peers := make([]*peer, n)
	for i := range peers {
		l := fake.NewTimestampedLayer(100+i, api.NewConnectionInfo("feed.example.com", 443))
		c, err := websocket.New(l, "/ws")
		require.NoError(t, err)
		token, err := m.Add(c)
		require.NoError(t, err)
		peers[i] = &peer{layer: l, conn: c, token: token}
	}
	return m, poller, peers
}

func readyEvents(peers []*peer, ready api.Interest) []api.Event {
	evs := make([]api.Event, len(peers))
	for i, p := range peers {
		evs[i] = api.Event{Token: p.token, Ready: ready}
	}
	return evs
}

func noop(api.Token, *websocket.Batch) error { return nil }

// upgrade drives every peer through the opening handshake.
func upgrade(t *testing.T, m *mux.Mux, poller *fake.Poller, peers []*peer) {
	t.Helper()
	poller.PushEvents(readyEvents(peers, api.Readable|api.Writable)...)
	_, err := m.Poll(noop)
	require.NoError(t, err)

	for _, p := range peers {
		p.layer.PushRead(accept(t, p.layer))
	}
	poller.PushEvents(readyEvents(peers, api.Readable|api.Writable)...)
	_, err = m.Poll(noop)
	require.NoError(t, err)

	for _, p := range peers {
		state, ok := m.State(p.token)
		require.True(t, ok)
		require.Equal(t, mux.Ready, state)
		p.layer.ResetWritten()
	}
}

func TestAddRegistersDenseTokens(t *testing.T) {
	m, poller, peers := setup(t, 3)
	assert.Equal(t, 3, m.Len())
	assert.Equal(t, 3, m.Open())
	for i, p := range peers {
		assert.Equal(t, api.Token(i), p.token)
		interest, ok := poller.Registered(100 + i)
		require.True(t, ok)
		assert.Equal(t, api.Readable|api.Writable, interest)
		state, _ := m.State(p.token)
		assert.Equal(t, mux.Connecting, state)
	}
	_, ok := m.State(7)
	assert.False(t, ok)
}

func TestHandshakeRearmsReadable(t *testing.T) {
	m, poller, peers := setup(t, 2)
	upgrade(t, m, poller, peers)
	for i := range peers {
		interest, _ := poller.Registered(100 + i)
		assert.Equal(t, api.Readable, interest)
	}
}

func TestEmptyWaitCounts(t *testing.T) {
	m, _, _ := setup(t, 1)
	n, err := m.Poll(noop)
	require.NoError(t, err)
	assert.Zero(t, n)
	c := m.Counters()
	assert.Equal(t, uint64(1), c.Waits)
	assert.Equal(t, uint64(1), c.EmptyWaits)
}

func TestExactlyOneReadBatchPerReadyToken(t *testing.T) {
	m, poller, peers := setup(t, 4)
	upgrade(t, m, poller, peers)

	for _, p := range peers {
		p.layer.PushRead(textFrame("first"))
		p.layer.PushRead(textFrame("second"))
	}
	before := make([]int, len(peers))
	for i, p := range peers {
		before[i] = p.layer.Reads()
	}

	// Tokens 0, 1 and 3 are ready; 2 is not.
	poller.PushEvents(
		api.Event{Token: 0, Ready: api.Readable},
		api.Event{Token: 1, Ready: api.Readable},
		api.Event{Token: 3, Ready: api.Readable},
	)
	calls := map[api.Token]int{}
	var frames []string
	n, err := m.Poll(func(tok api.Token, b *websocket.Batch) error {
		calls[tok]++
		for b.Next() {
			frames = append(frames, string(b.Frame().Payload))
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, map[api.Token]int{0: 1, 1: 1, 3: 1}, calls)
	assert.Equal(t, []string{"first", "first", "first"}, frames)

	for i, p := range peers {
		want := 1
		if i == 2 {
			want = 0
		}
		assert.Equal(t, before[i]+want, p.layer.Reads(), "peer %d", i)
	}
	assert.Equal(t, 2, peers[2].layer.Pending())
	assert.Equal(t, 1, peers[0].layer.Pending())
}

func TestBatchCarriesTimestamps(t *testing.T) {
	m, poller, peers := setup(t, 1)
	upgrade(t, m, poller, peers)

	peers[0].layer.PushStampedRead(textFrame("x"), api.RxTimestamps{SwNs: 9, HwRawNs: 1_000_000_000})
	poller.PushEvents(api.Event{Token: 0, Ready: api.Readable})
	var got api.RxTimestamps
	_, err := m.Poll(func(_ api.Token, b *websocket.Batch) error {
		ts, ok := b.RxTimestamps()
		require.True(t, ok)
		got = ts
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(1_000_000_000), got.HwRawNs)
}

func TestEOFClosesOnlyThatConnection(t *testing.T) {
	var closed []api.Token
	var causes []error
	m, poller, peers := setup(t, 3, mux.WithCloseHook(func(tok api.Token, err error) {
		closed = append(closed, tok)
		causes = append(causes, err)
	}))
	upgrade(t, m, poller, peers)

	peers[1].layer.PushEOF()
	peers[0].layer.PushRead(textFrame("alive"))
	poller.PushEvents(
		api.Event{Token: 0, Ready: api.Readable},
		api.Event{Token: 1, Ready: api.Readable},
	)
	_, err := m.Poll(noop)
	require.NoError(t, err)

	state, _ := m.State(1)
	assert.Equal(t, mux.Closed, state)
	assert.Equal(t, []api.Token{1}, closed)
	assert.Equal(t, []error{nil}, causes)
	assert.Equal(t, []int{101}, poller.Deleted())
	assert.True(t, peers[1].layer.Closed())
	assert.Equal(t, 2, m.Open())

	state, _ = m.State(0)
	assert.Equal(t, mux.Ready, state)

	// Later events for the closed token are ignored.
	poller.PushEvents(api.Event{Token: 1, Ready: api.Readable})
	calls := 0
	_, err = m.Poll(func(api.Token, *websocket.Batch) error { calls++; return nil })
	require.NoError(t, err)
	assert.Zero(t, calls)
}

func TestHangupReadsOnce(t *testing.T) {
	m, poller, peers := setup(t, 1)
	upgrade(t, m, poller, peers)

	peers[0].layer.PushEOF()
	poller.PushEvents(api.Event{Token: 0, Hangup: true})
	_, err := m.Poll(noop)
	require.NoError(t, err)
	state, _ := m.State(0)
	assert.Equal(t, mux.Closed, state)
}

func TestReadErrorClosesWithCause(t *testing.T) {
	m, poller, peers := setup(t, 2)
	upgrade(t, m, poller, peers)

	peers[0].layer.PushError(syscall.ECONNRESET)
	poller.PushEvents(api.Event{Token: 0, Ready: api.Readable})
	_, err := m.Poll(noop)
	require.NoError(t, err)

	state, _ := m.State(0)
	assert.Equal(t, mux.Closed, state)
	assert.ErrorIs(t, m.Err(0), syscall.ECONNRESET)
	assert.Equal(t, uint64(1), m.Counters().Closed)
	assert.Equal(t, 1, m.Open())
}

func TestFrameErrorKeepsConnection(t *testing.T) {
	m, poller, peers := setup(t, 1)
	upgrade(t, m, poller, peers)

	peers[0].layer.PushRead(append(textFrame("ok"), 0x83, 0x00))
	poller.PushEvents(api.Event{Token: 0, Ready: api.Readable})
	var got []string
	_, err := m.Poll(func(_ api.Token, b *websocket.Batch) error {
		for b.Next() {
			got = append(got, string(b.Frame().Payload))
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"ok"}, got)
	assert.Equal(t, uint64(1), m.Counters().FrameErrors)
	state, _ := m.State(0)
	assert.Equal(t, mux.Ready, state)
}

func TestConnectFailureCloses(t *testing.T) {
	m, poller, peers := setup(t, 2)
	refused := errors.New("connection refused")
	peers[0].layer.SetConnected(false, refused)

	poller.PushEvents(readyEvents(peers, api.Writable)...)
	_, err := m.Poll(noop)
	require.NoError(t, err)

	state, _ := m.State(0)
	assert.Equal(t, mux.Closed, state)
	assert.ErrorIs(t, m.Err(0), refused)
	state, _ = m.State(1)
	assert.Equal(t, mux.Connecting, state)
}

func TestPongFlushedAfterBatch(t *testing.T) {
	m, poller, peers := setup(t, 1)
	upgrade(t, m, poller, peers)

	peers[0].layer.PushRead(protocol.AppendFrame(nil, protocol.OpcodePing, true, []byte("hb"), false, [4]byte{}))
	poller.PushEvents(api.Event{Token: 0, Ready: api.Readable})
	_, err := m.Poll(noop)
	require.NoError(t, err)

	f, n, err := protocol.DecodeFrameFromBytes(peers[0].layer.Written(), 0)
	require.NoError(t, err)
	require.NotZero(t, n)
	assert.Equal(t, protocol.OpcodePong, f.Opcode)
	assert.Equal(t, "hb", string(f.Payload))
	assert.Zero(t, peers[0].conn.Pending())
}

func TestWritableEventFlushesPending(t *testing.T) {
	m, poller, peers := setup(t, 1)
	upgrade(t, m, poller, peers)

	peers[0].layer.SetWriteLimit(-1)
	require.NoError(t, peers[0].conn.Send(protocol.OpcodeText, []byte("sub")))
	interest, _ := poller.Registered(100)
	assert.True(t, interest.IsWritable())

	peers[0].layer.SetWriteLimit(0)
	poller.PushEvents(api.Event{Token: 0, Ready: api.Writable})
	_, err := m.Poll(noop)
	require.NoError(t, err)
	assert.Zero(t, peers[0].conn.Pending())
	assert.Equal(t, uint64(1), m.Counters().Flushes)
	interest, _ = poller.Registered(100)
	assert.Equal(t, api.Readable, interest)
}

func TestHandlerErrorStopsPoll(t *testing.T) {
	m, poller, peers := setup(t, 2)
	upgrade(t, m, poller, peers)

	boom := errors.New("boom")
	for _, p := range peers {
		p.layer.PushRead(textFrame("x"))
	}
	poller.PushEvents(readyEvents(peers, api.Readable)...)
	calls := 0
	_, err := m.Poll(func(api.Token, *websocket.Batch) error { calls++; return boom })
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestRunStopsOnErrStop(t *testing.T) {
	m, poller, peers := setup(t, 1)
	upgrade(t, m, poller, peers)

	peers[0].layer.PushRead(textFrame("stop"))
	poller.PushEvents()
	poller.PushEvents(api.Event{Token: 0, Ready: api.Readable})
	err := m.Run(context.Background(), func(_ api.Token, b *websocket.Batch) error {
		for b.Next() {
			if string(b.Frame().Payload) == "stop" {
				return mux.ErrStop
			}
		}
		return nil
	})
	assert.NoError(t, err)
	assert.GreaterOrEqual(t, m.Counters().EmptyWaits, uint64(1))
}

func TestRunEndsWhenAllClosed(t *testing.T) {
	m, poller, peers := setup(t, 1)
	upgrade(t, m, poller, peers)

	peers[0].layer.PushEOF()
	poller.PushEvents(api.Event{Token: 0, Ready: api.Readable})
	assert.NoError(t, m.Run(context.Background(), noop))
	assert.Zero(t, m.Open())
}

func TestRunHonoursContext(t *testing.T) {
	m, _, _ := setup(t, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, m.Run(ctx, noop), context.Canceled)
}

func TestUnknownTokenIgnored(t *testing.T) {
	m, poller, _ := setup(t, 1)
	poller.PushEvents(api.Event{Token: 42, Ready: api.Readable})
	_, err := m.Poll(noop)
	require.NoError(t, err)
	assert.Zero(t, m.Counters().Events)
}

func TestCloseReleasesEverything(t *testing.T) {
	m, poller, peers := setup(t, 2)
	require.NoError(t, m.Close())
	assert.True(t, poller.Closed())
	for _, p := range peers {
		assert.True(t, p.layer.Closed())
	}
	assert.Zero(t, m.Open())
	assert.Equal(t, []int{100, 101}, poller.Deleted())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "ready", mux.Ready.String())
	assert.Equal(t, "State(9)", mux.State(9).String())
}

func TestConnectTimeoutClosesStalledSlots(t *testing.T) {
	var closed []api.Token
	m, poller, peers := setup(t, 2,
		mux.WithConnectTimeout(100*time.Millisecond),
		mux.WithCloseHook(func(tok api.Token, err error) { closed = append(closed, tok) }),
	)
	peers[0].layer.SetConnected(false, nil)

	ready := peers[1:]
	poller.PushEvents(readyEvents(ready, api.Readable|api.Writable)...)
	_, err := m.Poll(noop)
	require.NoError(t, err)
	ready[0].layer.PushRead(accept(t, ready[0].layer))
	poller.PushEvents(readyEvents(ready, api.Readable|api.Writable)...)
	_, err = m.Poll(noop)
	require.NoError(t, err)

	state, _ := m.State(peers[0].token)
	assert.Equal(t, mux.Connecting, state)

	time.Sleep(150 * time.Millisecond)
	_, err = m.Poll(noop)
	require.NoError(t, err)

	state, _ = m.State(peers[0].token)
	assert.Equal(t, mux.Closed, state)
	assert.ErrorIs(t, m.Err(peers[0].token), mux.ErrConnectTimeout)
	assert.True(t, peers[0].layer.Closed())
	assert.Equal(t, []int{100}, poller.Deleted())
	assert.Equal(t, []api.Token{peers[0].token}, closed)

	state, _ = m.State(peers[1].token)
	assert.Equal(t, mux.Ready, state)
	assert.Equal(t, 1, m.Open())
}

func TestRunEndsWhenNoConnectionBecomesReady(t *testing.T) {
	m, _, peers := setup(t, 2, mux.WithConnectTimeout(10*time.Millisecond))
	for _, p := range peers {
		p.layer.SetConnected(false, nil)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, m.Run(ctx, noop))
	assert.Equal(t, 0, m.Open())
	for _, p := range peers {
		assert.ErrorIs(t, m.Err(p.token), mux.ErrConnectTimeout)
	}
}

func TestNoConnectTimeoutByDefault(t *testing.T) {
	m, _, peers := setup(t, 1)
	peers[0].layer.SetConnected(false, nil)
	time.Sleep(5 * time.Millisecond)
	_, err := m.Poll(noop)
	require.NoError(t, err)
	state, _ := m.State(peers[0].token)
	assert.Equal(t, mux.Connecting, state)
}
