// SPDX-License-Identifier: MIT
package transport

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"seedscope/internal/analysis"
	"seedscope/pkg/utils"
)

type failingTransport struct{ err error }

func (f failingTransport) Send(any) error { return f.err }
func (f failingTransport) Close() error   { return f.err }

func TestMultiFanOut(t *testing.T) {
	a, b := &utils.MockTransport{}, &utils.MockTransport{}
	m := NewMulti(a, nil, b)
	assert.Equal(t, 2, m.Len())

	require.NoError(t, m.Send("frame"))
	assert.Equal(t, 1, a.Count())
	assert.Equal(t, "frame", b.Last())

	require.NoError(t, m.Close())
	assert.True(t, a.Closed())
	assert.True(t, b.Closed())
	assert.Zero(t, m.Len())
}

func TestMultiJoinsErrors(t *testing.T) {
	boom := errors.New("boom")
	ok := &utils.MockTransport{}
	m := NewMulti(failingTransport{boom}, ok)

	err := m.Send(1)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, ok.Count(), "a failing transport should not block the others")
	assert.ErrorIs(t, m.Close(), boom)
}

func TestLoggingTransport(t *testing.T) {
	lt := NewLoggingTransport()
	f := analysis.Frame{Kind: analysis.KindLevel, Seq: 3, Levels: []float64{0.2, 0.4}}

	assert.NoError(t, lt.Send(f))
	assert.NoError(t, lt.Send(&f))
	assert.NoError(t, lt.Send((*analysis.Frame)(nil)))
	assert.NoError(t, lt.Send("other"))
	assert.Equal(t, uint64(4), lt.Sent())
	assert.NoError(t, lt.Close())
}

func dialTestServer(t *testing.T, wst *WebSocketTransport) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(wst.Handler())
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.Eventually(t, func() bool { return wst.NumClients() == 1 }, time.Second, 5*time.Millisecond)
	return conn
}

func TestWebSocketBroadcast(t *testing.T) {
	wst := newWebSocketTransport()
	defer wst.Close()

	conn := dialTestServer(t, wst)

	sent := analysis.Frame{
		Kind:       analysis.KindSpectrum,
		Seq:        7,
		SampleRate: 48000,
		Levels:     []float64{0, 0.5, 1},
		PeakL:      -6,
		PeakR:      -12,
	}
	require.NoError(t, wst.Send(sent))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got analysis.Frame
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, sent.Kind, got.Kind)
	assert.Equal(t, sent.Seq, got.Seq)
	assert.Equal(t, sent.Levels, got.Levels)
	assert.Equal(t, sent.PeakR, got.PeakR)
}

func TestWebSocketClientDisconnect(t *testing.T) {
	wst := newWebSocketTransport()
	defer wst.Close()

	conn := dialTestServer(t, wst)
	conn.Close()

	assert.Eventually(t, func() bool { return wst.NumClients() == 0 }, time.Second, 5*time.Millisecond)
}

func TestWebSocketClose(t *testing.T) {
	wst, err := NewWebSocketTransport("127.0.0.1:0")
	require.NoError(t, err)
	require.NotNil(t, wst.Addr())

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+wst.Addr().String()+WebSocketPath, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return wst.NumClients() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, wst.Close())
	assert.NoError(t, wst.Close(), "Close should be idempotent")
	assert.Zero(t, wst.NumClients())
	assert.ErrorIs(t, wst.Send(analysis.Frame{}), ErrClosed)

	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, _, err = conn.ReadMessage()
	assert.Error(t, err, "client should see the connection close")
}

func TestWebSocketDropsWhenFull(t *testing.T) {
	// No broadcast loop drains the queue here.
	wst := &WebSocketTransport{
		broadcast: make(chan any, 2),
		done:      make(chan struct{}),
	}
	for range 5 {
		require.NoError(t, wst.Send(analysis.Frame{}))
	}
	assert.Equal(t, uint64(3), wst.Dropped())
}
