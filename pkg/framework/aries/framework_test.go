/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package aries

import (
	"context"
	"errors"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/require"

	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/common/service"
	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/dispatcher"
	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/messagetype"
	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/protocol/connection"
	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/protocol/issuecredential"
	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/protocol/mediator"
	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/protocol/messagepickup"
	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/protocol/presentproof"
	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/protocol/route"
	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/transport"
	arieshttp "github.com/hyperledger/aries-didcomm-go/pkg/didcomm/transport/http"
	"github.com/hyperledger/aries-didcomm-go/pkg/framework/aries/api"
	frameworkctx "github.com/hyperledger/aries-didcomm-go/pkg/framework/context"
	mockwallet "github.com/hyperledger/aries-didcomm-go/pkg/internal/gomocks/wallet"
	"github.com/hyperledger/aries-didcomm-go/pkg/ledger/cache"
	mockanoncreds "github.com/hyperledger/aries-didcomm-go/pkg/mock/anoncreds"
	mockledger "github.com/hyperledger/aries-didcomm-go/pkg/mock/ledger"
	"github.com/hyperledger/aries-didcomm-go/pkg/store/mediation"
)

type pingService struct{}

func (s *pingService) Name() string { return "ping" }

func (s *pingService) Accept(id messagetype.Identifier) bool { return id.Family == "ping" }

func (s *pingService) HandleInbound(context.Context, *service.Inbound) (*service.Outbound, error) {
	return nil, nil
}

// lateHandler lets a server exist before the framework answering on it.
type lateHandler struct {
	mu      sync.RWMutex
	handler transport.InboundMessageHandler
}

func (l *lateHandler) set(h transport.InboundMessageHandler) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.handler = h
}

func (l *lateHandler) handle(ctx context.Context, envelope []byte) ([]byte, error) {
	l.mu.RLock()
	h := l.handler
	l.mu.RUnlock()

	if h == nil {
		return nil, errors.New("agent not ready")
	}

	return h(ctx, envelope)
}

// newListeningAgent starts a framework reachable over http at its endpoint.
func newListeningAgent(t *testing.T, opts ...Option) (*Aries, string) {
	t.Helper()

	late := &lateHandler{}

	h, err := arieshttp.NewInboundHandler(late.handle)
	require.NoError(t, err)

	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	a, err := New(append(opts, WithEndpoint(srv.URL))...)
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, a.Close())
	})

	late.set(a.HandleInbound)

	return a, srv.URL
}

func connections(t *testing.T, a *Aries) *connection.Service {
	t.Helper()

	svc, err := a.Service(connection.Connection)
	require.NoError(t, err)

	return svc.(*connection.Service)
}

func TestFramework(t *testing.T) {
	t.Run("test framework new - returns error when an option fails", func(t *testing.T) {
		_, err := New(func(opts *Aries) error {
			return errors.New("error creating the framework option")
		})
		require.Error(t, err)
		require.Contains(t, err.Error(), "error creating the framework option")

		_, err = New(WithMessageTTL(0, time.Minute))
		require.Error(t, err)
	})

	t.Run("test framework new - default services", func(t *testing.T) {
		a, err := New(WithLabel("alice"))
		require.NoError(t, err)

		defer func() {
			require.NoError(t, a.Close())
		}()

		require.NotNil(t, a.Context())
		require.Equal(t, "alice", a.Context().Label())
		require.NotNil(t, a.Context().Packager())
		require.NotNil(t, a.Context().ThreadStore())
		require.NotNil(t, a.Context().MediationStore())
		require.NotNil(t, a.Context().Connections())

		for _, name := range []string{connection.Connection, mediator.Coordination, messagepickup.MessagePickup,
			route.Name} {
			_, err = a.Service(name)
			require.NoError(t, err, name)
		}

		_, err = a.Service(issuecredential.Name)
		require.ErrorIs(t, err, frameworkctx.ErrSvcNotFound)
	})

	t.Run("test framework new - credential protocols with ledger and anoncreds", func(t *testing.T) {
		a, err := New(WithLedger(mockledger.NewMockLedger()), WithAnoncreds(mockanoncreds.New()),
			WithLedgerCache(cache.WithSize(8)))
		require.NoError(t, err)

		defer func() {
			require.NoError(t, a.Close())
		}()

		_, err = a.Service(issuecredential.Name)
		require.NoError(t, err)

		_, err = a.Service(presentproof.Name)
		require.NoError(t, err)

		_, ok := a.Context().Ledger().(*cache.Ledger)
		require.True(t, ok)

		b, err := New(WithLedger(mockledger.NewMockLedger()), WithAnoncreds(mockanoncreds.New()),
			WithoutLedgerCache())
		require.NoError(t, err)

		defer func() {
			require.NoError(t, b.Close())
		}()

		_, ok = b.Context().Ledger().(*mockledger.MockLedger)
		require.True(t, ok)
	})

	t.Run("test framework new - wallet without crypter", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		_, err := New(WithWallet(mockwallet.NewMockWallet(ctrl)))
		require.Error(t, err)
		require.Contains(t, err.Error(), "crypter")
	})

	t.Run("test framework new - custom protocol", func(t *testing.T) {
		a, err := New(WithProtocols(api.ProtocolSvcCreator{
			Name: "ping",
			Create: func(prv *frameworkctx.Provider) (dispatcher.ProtocolService, error) {
				return &pingService{}, nil
			},
		}))
		require.NoError(t, err)

		defer func() {
			require.NoError(t, a.Close())
		}()

		_, err = a.Service("ping")
		require.NoError(t, err)

		_, err = a.Initiate(context.Background(), "ping", nil)
		require.Error(t, err)
		require.Contains(t, err.Error(), "cannot be started locally")

		_, err = New(WithProtocols(api.ProtocolSvcCreator{
			Name: "broken",
			Create: func(prv *frameworkctx.Provider) (dispatcher.ProtocolService, error) {
				return nil, errors.New("create failed")
			},
		}))
		require.Error(t, err)
		require.Contains(t, err.Error(), "broken")
	})

	t.Run("test framework - not initialized", func(t *testing.T) {
		a := &Aries{}

		_, err := a.HandleInbound(context.Background(), []byte("{}"))
		require.ErrorIs(t, err, ErrNotInitialized)

		_, err = a.Initiate(context.Background(), connection.Connection, nil)
		require.ErrorIs(t, err, ErrNotInitialized)

		require.NoError(t, a.Close())
	})

	t.Run("test framework - unknown protocol and bad envelope", func(t *testing.T) {
		a, err := New()
		require.NoError(t, err)

		defer func() {
			require.NoError(t, a.Close())
		}()

		_, err = a.Initiate(context.Background(), "unknown", nil)
		require.ErrorIs(t, err, frameworkctx.ErrSvcNotFound)

		_, err = a.Continue(context.Background(), "unknown", "thid", nil)
		require.ErrorIs(t, err, frameworkctx.ErrSvcNotFound)

		_, err = a.HandleInbound(context.Background(), []byte("not an envelope"))
		require.Error(t, err)
	})
}

func TestMessageExpiry(t *testing.T) {
	a, err := New(WithMessageTTL(time.Millisecond, 10*time.Millisecond))
	require.NoError(t, err)

	defer func() {
		require.NoError(t, a.Close())
	}()

	store := a.Context().MediationStore()

	acct, _, err := store.CreateAccount(&mediation.Account{VerKey: "client", Granted: true})
	require.NoError(t, err)
	require.NoError(t, store.AddRecipient(acct.ID, "recipient"))

	_, err = store.PersistForwardMessage("recipient", []byte(`{"protected":"x"}`))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		count, e := store.RetrievePendingMessageCount(acct.ID, "")
		return e == nil && count == 0
	}, 5*time.Second, 20*time.Millisecond)
}

func TestConnectionExchange(t *testing.T) {
	alice, aliceEndpoint := newListeningAgent(t, WithLabel("alice"), WithAutoAccept(true))

	// bob has no inbound transport, alice answers on the request connection
	bob, err := New(WithLabel("bob"), WithTransportReturnRoute("all"), WithEndpoint("http://bob.invalid"))
	require.NoError(t, err)

	defer func() {
		require.NoError(t, bob.Close())
	}()

	events := make(chan service.StateMsg, 32)
	require.NoError(t, bob.RegisterMsgEvent(events))

	inv, err := connections(t, alice).CreateInvitation(context.Background(), connection.CreateInvitationParams{})
	require.NoError(t, err)
	require.Equal(t, aliceEndpoint, inv.ServiceEndpoint)
	require.Equal(t, "alice", inv.Label)

	envelope, err := bob.Initiate(context.Background(), connection.Connection, inv)
	require.NoError(t, err)
	require.NotEmpty(t, envelope)

	bobConns, err := connections(t, bob).QueryConnections(connection.StateIDCompleted)
	require.NoError(t, err)
	require.Len(t, bobConns, 1)
	require.Equal(t, "alice", bobConns[0].TheirLabel)

	// bob's ack completes alice's side
	aliceConns, err := connections(t, alice).QueryConnections(connection.StateIDCompleted)
	require.NoError(t, err)
	require.Len(t, aliceConns, 1)
	require.Equal(t, "bob", aliceConns[0].TheirLabel)

	var states []string

	for len(events) > 0 {
		e := <-events
		if e.ProtocolName == connection.Connection {
			states = append(states, e.StateID)
		}
	}

	require.Contains(t, states, connection.StateIDRequested)
	require.Contains(t, states, connection.StateIDCompleted)

	t.Run("mediation and empty pickup", func(t *testing.T) {
		connID := bobConns[0].ConnectionID

		_, err := bob.Initiate(context.Background(), mediator.Coordination,
			&mediator.MediateRequestParams{ConnectionID: connID})
		require.NoError(t, err)

		svc, err := bob.Service(mediator.Coordination)
		require.NoError(t, err)

		granted, err := svc.(*mediator.Service).GetConnections()
		require.NoError(t, err)
		require.Equal(t, []string{connID}, granted)

		// new keys are routed through alice
		inv, err := connections(t, bob).CreateInvitation(context.Background(), connection.CreateInvitationParams{})
		require.NoError(t, err)
		require.Equal(t, aliceEndpoint, inv.ServiceEndpoint)
		require.Len(t, inv.RoutingKeys, 1)

		_, err = alice.Context().MediationStore().RecipientAccount(inv.RecipientKeys[0])
		require.NoError(t, err)

		pickup := make(chan service.StateMsg, 8)
		require.NoError(t, bob.RegisterMsgEvent(pickup))

		_, err = bob.Initiate(context.Background(), messagepickup.MessagePickup,
			&messagepickup.StatusRequestParams{ConnectionID: connID})
		require.NoError(t, err)

		var status *messagepickup.Status

		for status == nil {
			select {
			case e := <-pickup:
				if e.ProtocolName == messagepickup.MessagePickup && e.StateID == messagepickup.StateNameStatus {
					status = e.Properties[messagepickup.StatusProperty].(*messagepickup.Status)
				}
			case <-time.After(5 * time.Second):
				require.FailNow(t, "no pickup status")
			}
		}

		require.Zero(t, status.MessageCount)
	})
}
