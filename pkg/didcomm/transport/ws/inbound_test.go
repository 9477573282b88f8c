/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package ws

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
)

// echo replies "reply:<msg>" to every envelope except "silent" and "fail".
func echo(received chan<- []byte) func(context.Context, []byte) ([]byte, error) {
	return func(_ context.Context, envelope []byte) ([]byte, error) {
		if received != nil {
			received <- envelope
		}

		switch string(envelope) {
		case "fail":
			return nil, errors.New("unpack failed")
		case "silent":
			return nil, nil
		default:
			return append([]byte("reply:"), envelope...), nil
		}
	}
}

func wsURL(server *httptest.Server) string {
	return "ws://" + strings.TrimPrefix(server.URL, "http://")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()

	conn, _, err := websocket.Dial(context.Background(), url, nil) //nolint:bodyclose
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = conn.Close(websocket.StatusNormalClosure, "done")
	})

	return conn
}

func TestInboundHandler(t *testing.T) {
	_, err := newInboundHandler(nil)
	require.Error(t, err)

	h, err := newInboundHandler(echo(nil))
	require.NoError(t, err)

	server := httptest.NewServer(h)
	defer server.Close()

	conn := dial(t, wsURL(server))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// failing and silent envelopes get no reply, the connection stays open
	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte("fail")))
	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte("silent")))
	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte("ping")))

	_, msg, err := conn.Read(ctx)
	require.NoError(t, err)
	require.Equal(t, "reply:ping", string(msg))
}

func TestInbound(t *testing.T) {
	_, err := NewInbound("", "")
	require.Error(t, err)

	inbound, err := NewInbound("localhost:0", "")
	require.NoError(t, err)
	require.Equal(t, "localhost:0", inbound.Endpoint())

	inbound, err = NewInbound("localhost:0", "wss://agent.example.com/ws")
	require.NoError(t, err)
	require.Equal(t, "wss://agent.example.com/ws", inbound.Endpoint())

	require.Error(t, inbound.Start(nil))
	require.NoError(t, inbound.Start(echo(nil)))

	defer func() {
		require.NoError(t, inbound.Stop())
	}()

	conn := dial(t, "ws://"+inbound.Addr())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte("hello")))

	_, msg, err := conn.Read(ctx)
	require.NoError(t, err)
	require.Equal(t, "reply:hello", string(msg))
}
