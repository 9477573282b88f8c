/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package http

import (
	"context"
	"crypto/tls"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/common/service"
	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/transport"
)

func destination(url string) *service.Destination {
	return &service.Destination{ServiceEndpoint: url, RecipientKeys: []string{"key"}}
}

type mockHTTPHandler struct{}

func (m mockHTTPHandler) ServeHTTP(res http.ResponseWriter, req *http.Request) {
	body, err := io.ReadAll(req.Body)
	if err != nil {
		res.WriteHeader(http.StatusInternalServerError)

		return
	}

	switch string(body) {
	case "bad":
		res.WriteHeader(http.StatusBadRequest)
		_, _ = res.Write([]byte("bad request: " + string(body)))
	case "reply":
		res.Header().Set("Content-Type", transport.MediaTypeV1EncryptedEnvelope)
		_, _ = res.Write([]byte("envelope"))
	case "slow":
		time.Sleep(200 * time.Millisecond)
		res.WriteHeader(http.StatusAccepted)
	default:
		if req.Header.Get("Content-Type") != transport.MediaTypeV1EncryptedEnvelope {
			res.WriteHeader(http.StatusUnsupportedMediaType)

			return
		}

		res.WriteHeader(http.StatusAccepted)
	}
}

func TestOutboundHTTPTransport(t *testing.T) {
	server := httptest.NewServer(mockHTTPHandler{})
	defer server.Close()

	t.Run("default client", func(t *testing.T) {
		ot, err := NewOutbound()
		require.NoError(t, err)

		resp, err := ot.Send(context.Background(), []byte("envelope"), destination(server.URL))
		require.NoError(t, err)
		require.Nil(t, resp)

		resp, err = ot.Send(context.Background(), []byte("reply"), destination(server.URL))
		require.NoError(t, err)
		require.Equal(t, []byte("envelope"), resp)
	})

	t.Run("non success status", func(t *testing.T) {
		ot, err := NewOutbound()
		require.NoError(t, err)

		_, err = ot.Send(context.Background(), []byte("bad"), destination(server.URL))
		require.Error(t, err)
		require.Contains(t, err.Error(), "bad request")
	})

	t.Run("timeout", func(t *testing.T) {
		ot, err := NewOutbound(WithOutboundTimeout(50 * time.Millisecond))
		require.NoError(t, err)

		_, err = ot.Send(context.Background(), []byte("slow"), destination(server.URL))
		require.Error(t, err)
	})

	t.Run("cancelled context", func(t *testing.T) {
		ot, err := NewOutbound()
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err = ot.Send(ctx, []byte("envelope"), destination(server.URL))
		require.Error(t, err)
	})

	t.Run("missing endpoint", func(t *testing.T) {
		ot, err := NewOutbound()
		require.NoError(t, err)

		_, err = ot.Send(context.Background(), []byte("envelope"), destination(""))
		require.Error(t, err)

		_, err = ot.Send(context.Background(), []byte("envelope"), nil)
		require.Error(t, err)
	})

	t.Run("client options", func(t *testing.T) {
		_, err := NewOutbound(WithOutboundHTTPClient(nil))
		require.Error(t, err)

		tlsServer := httptest.NewTLSServer(mockHTTPHandler{})
		defer tlsServer.Close()

		ot, err := NewOutbound(WithOutboundTLSConfig(&tls.Config{InsecureSkipVerify: true})) //nolint:gosec
		require.NoError(t, err)

		_, err = ot.Send(context.Background(), []byte("envelope"), destination(tlsServer.URL))
		require.NoError(t, err)

		ot, err = NewOutbound(WithOutboundHTTPClient(tlsServer.Client()))
		require.NoError(t, err)

		_, err = ot.Send(context.Background(), []byte("envelope"), destination(tlsServer.URL))
		require.NoError(t, err)
	})
}

func TestOutboundHTTPClient_Accept(t *testing.T) {
	ot, err := NewOutbound()
	require.NoError(t, err)

	require.True(t, ot.Accept("http://example.com"))
	require.True(t, ot.Accept("https://example.com"))
	require.False(t, ot.Accept("ws://example.com"))
	require.False(t, ot.Accept("httpx"))
}
