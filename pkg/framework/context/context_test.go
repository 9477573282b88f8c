/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package context

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/common/service"
	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/messagetype"
	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/transport"
	"github.com/hyperledger/aries-didcomm-go/pkg/storage/mem"
	connectionstore "github.com/hyperledger/aries-didcomm-go/pkg/store/connection"
	"github.com/hyperledger/aries-didcomm-go/pkg/store/threadstate"
)

type namedService struct {
	name string
}

func (s *namedService) Name() string { return s.name }

func (s *namedService) Accept(messagetype.Identifier) bool { return false }

func (s *namedService) HandleInbound(context.Context, *service.Inbound) (*service.Outbound, error) {
	return nil, nil
}

func TestNewProvider(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		prov, err := New()
		require.NoError(t, err)
		require.Nil(t, prov.OutboundDispatcher())
		require.Nil(t, prov.Connections())
		require.Nil(t, prov.ConnectionLookup())
		require.NotNil(t, prov.Registry())
		require.NotNil(t, prov.MediatorPolicy())
		require.NoError(t, prov.MediatorPolicy()(context.Background(), "key"))
		require.False(t, prov.AutoAccept())
	})

	t.Run("error return from options", func(t *testing.T) {
		_, err := New(func(opts *Provider) error {
			return errors.New("error creating the framework option")
		})
		require.Error(t, err)

		_, err = New(WithInboundMessageHandler(nil))
		require.Error(t, err)
	})

	t.Run("protocol services", func(t *testing.T) {
		prov, err := New(WithProtocolServices(&namedService{name: "connections"}, &namedService{name: "routing"}))
		require.NoError(t, err)
		require.Len(t, prov.AllServices(), 2)

		svc, err := prov.Service("routing")
		require.NoError(t, err)
		require.Equal(t, "routing", svc.(*namedService).Name())

		_, err = prov.Service("unknown")
		require.ErrorIs(t, err, ErrSvcNotFound)
	})

	t.Run("settings", func(t *testing.T) {
		store := mem.NewProvider()

		threads, err := threadstate.New(store)
		require.NoError(t, err)

		prov, err := New(
			WithStorageProvider(store),
			WithThreadStore(threads),
			WithEndpoint("http://agent.example.com"),
			WithLabel("alice"),
			WithAutoAccept(true),
			WithTransportReturnRoute("all"),
		)
		require.NoError(t, err)

		lookup, err := connectionstore.NewLookup(prov)
		require.NoError(t, err)

		require.NoError(t, WithConnectionLookup(lookup)(prov))
		require.NotNil(t, prov.Connections())
		require.NotNil(t, prov.ConnectionLookup())

		require.Equal(t, store, prov.StorageProvider())
		require.Equal(t, threads, prov.ThreadStore())
		require.Equal(t, "alice", prov.Label())
		require.Equal(t, "all", prov.TransportReturnRoute())
		require.True(t, prov.AutoAccept())

		endpoint, keys, err := prov.RouteFor(context.Background(), "key")
		require.NoError(t, err)
		require.Equal(t, "http://agent.example.com", endpoint)
		require.Empty(t, keys)
	})

	t.Run("route func", func(t *testing.T) {
		prov, err := New(WithRouteFunc(func(_ context.Context, verKey string) (string, []string, error) {
			return "http://mediator.example.com", []string{"routing-" + verKey}, nil
		}))
		require.NoError(t, err)

		endpoint, keys, err := prov.RouteFor(context.Background(), "key")
		require.NoError(t, err)
		require.Equal(t, "http://mediator.example.com", endpoint)
		require.Equal(t, []string{"routing-key"}, keys)
	})

	t.Run("inbound handler resolved late", func(t *testing.T) {
		var handler transport.InboundMessageHandler

		prov, err := New(WithInboundMessageHandler(&handler))
		require.NoError(t, err)

		fn := prov.InboundMessageHandler()

		_, err = fn(context.Background(), []byte("envelope"))
		require.Error(t, err)

		handler = func(_ context.Context, envelope []byte) ([]byte, error) {
			return append([]byte("reply:"), envelope...), nil
		}

		reply, err := fn(context.Background(), []byte("envelope"))
		require.NoError(t, err)
		require.Equal(t, []byte("reply:envelope"), reply)

		noRef, err := New()
		require.NoError(t, err)

		_, err = noRef.InboundMessageHandler()(context.Background(), nil)
		require.Error(t, err)
	})
}
