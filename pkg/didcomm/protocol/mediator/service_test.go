/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package mediator

import (
	"context"
	"errors"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/require"

	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/common/agenterr"
	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/common/service"
	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/messagetype"
	"github.com/hyperledger/aries-didcomm-go/pkg/doc/didkey"
	mockwallet "github.com/hyperledger/aries-didcomm-go/pkg/internal/gomocks/wallet"
	"github.com/hyperledger/aries-didcomm-go/pkg/storage/mem"
	"github.com/hyperledger/aries-didcomm-go/pkg/store/mediation"
	"github.com/hyperledger/aries-didcomm-go/pkg/wallet"
	"github.com/hyperledger/aries-didcomm-go/pkg/wallet/localwallet"
	"github.com/hyperledger/aries-didcomm-go/spi/storage"
)

const mediatorEndpoint = "https://mediator.example.com/inbound"

type testProvider struct {
	accounts *mediation.Store
	storage  storage.Provider
	wallet   wallet.Wallet
	policy   Policy
}

func (p *testProvider) MediationStore() *mediation.Store { return p.accounts }

func (p *testProvider) StorageProvider() storage.Provider { return p.storage }

func (p *testProvider) Wallet() wallet.Wallet { return p.wallet }

func (p *testProvider) Endpoint() string { return mediatorEndpoint }

func (p *testProvider) MediatorPolicy() Policy { return p.policy }

func newTestProvider(t *testing.T) *testProvider {
	t.Helper()

	sp := mem.NewProvider()

	accounts, err := mediation.New(sp)
	require.NoError(t, err)

	w, err := localwallet.New(sp)
	require.NoError(t, err)

	return &testProvider{accounts: accounts, storage: sp, wallet: w}
}

func newService(t *testing.T, p *testProvider) *Service {
	t.Helper()

	svc, err := New(p)
	require.NoError(t, err)

	return svc
}

func newKey(t *testing.T) string {
	t.Helper()

	w, err := localwallet.New(mem.NewProvider())
	require.NoError(t, err)

	k, err := w.CreateKey(nil)
	require.NoError(t, err)

	return k.VerKey
}

func inbound(t *testing.T, kind string, v interface{}, ctx service.DIDCommContext) *service.Inbound {
	t.Helper()

	msg, err := newMessage(msgType(kind), v)
	require.NoError(t, err)

	return &service.Inbound{Type: msgType(kind), Msg: msg, Context: ctx}
}

// deliver turns an outbound message into the inbound message of the other side.
func deliver(t *testing.T, out *service.Outbound, ctx service.DIDCommContext) *service.Inbound {
	t.Helper()

	require.NotNil(t, out)

	id, err := messagetype.NewDefaultRegistry().Resolve(out.Msg.Type())
	require.NoError(t, err)

	return &service.Inbound{Type: id, Msg: out.Msg, Context: ctx}
}

func from(verKey string) service.DIDCommContext {
	return service.DIDCommContext{MyVerKey: "mediator-key", TheirVerKey: verKey}
}

func grantTo(t *testing.T, svc *Service, client string) *MediateGrant {
	t.Helper()

	out, err := svc.HandleInbound(context.Background(), inbound(t, MediateRequestKind, &MediateRequest{}, from(client)))
	require.NoError(t, err)
	require.Equal(t, msgType(MediateGrantKind).String(), out.Msg.Type())

	grant := &MediateGrant{}
	require.NoError(t, out.Msg.Decode(grant))

	return grant
}

func TestService_New(t *testing.T) {
	t.Run("test success", func(t *testing.T) {
		svc := newService(t, newTestProvider(t))
		require.Equal(t, Coordination, svc.Name())
		require.True(t, svc.Accept(msgType(MediateRequestKind)))
		require.True(t, svc.Accept(msgType(KeylistKind)))
		require.False(t, svc.Accept(messagetype.New(messagetype.Routing, 1, 0, "forward")))
	})

	t.Run("test open store error", func(t *testing.T) {
		p := newTestProvider(t)
		p.storage = &failingProvider{err: errors.New("db down")}

		_, err := New(p)
		require.Error(t, err)
		require.Contains(t, err.Error(), "db down")
	})

	t.Run("unsupported kind", func(t *testing.T) {
		svc := newService(t, newTestProvider(t))

		_, err := svc.HandleInbound(context.Background(), inbound(t, "route-request", &MediateRequest{}, from("k")))
		require.ErrorIs(t, err, agenterr.ErrMalformedType)
	})
}

func TestService_MediateRequest(t *testing.T) {
	t.Run("grants once per client key", func(t *testing.T) {
		p := newTestProvider(t)
		svc := newService(t, p)
		client := newKey(t)

		req := inbound(t, MediateRequestKind, &MediateRequest{}, from(client))

		out, err := svc.HandleInbound(context.Background(), req)
		require.NoError(t, err)
		require.Empty(t, out.ConnectionID)
		require.Nil(t, out.Destination)
		require.Equal(t, req.Msg.ID(), out.Msg.ExplicitThreadID())

		first := &MediateGrant{}
		require.NoError(t, out.Msg.Decode(first))
		require.Equal(t, mediatorEndpoint, first.Endpoint)
		require.Len(t, first.RoutingKeys, 1)
		require.True(t, didkey.IsDIDKey(first.RoutingKeys[0]))

		acct, err := p.accounts.AccountByVerKey(client)
		require.NoError(t, err)

		second := grantTo(t, svc, client)
		require.Equal(t, first.Endpoint, second.Endpoint)
		require.Equal(t, first.RoutingKeys, second.RoutingKeys)

		again, err := p.accounts.AccountByVerKey(client)
		require.NoError(t, err)
		require.Equal(t, acct.ID, again.ID)

		routingKey, err := didkey.ToVerKey(first.RoutingKeys[0])
		require.NoError(t, err)
		require.Equal(t, acct.RoutingKey, routingKey)
	})

	t.Run("different clients get different accounts", func(t *testing.T) {
		svc := newService(t, newTestProvider(t))

		a := grantTo(t, svc, newKey(t))
		b := grantTo(t, svc, newKey(t))
		require.NotEqual(t, a.RoutingKeys, b.RoutingKeys)
	})

	t.Run("reply keeps the legacy prefix", func(t *testing.T) {
		svc := newService(t, newTestProvider(t))
		req := inbound(t, MediateRequestKind, &MediateRequest{}, from(newKey(t)))
		req.Type.Prefix = messagetype.DIDSovPrefix

		out, err := svc.HandleInbound(context.Background(), req)
		require.NoError(t, err)
		require.Equal(t, req.Type.WithKind(MediateGrantKind).String(), out.Msg.Type())
	})

	t.Run("deny by policy", func(t *testing.T) {
		p := newTestProvider(t)
		p.policy = func(context.Context, string) error {
			return errors.New("mediation is invite only")
		}
		svc := newService(t, p)
		client := newKey(t)

		out, err := svc.HandleInbound(context.Background(), inbound(t, MediateRequestKind, &MediateRequest{}, from(client)))
		require.NoError(t, err)
		require.Equal(t, msgType(MediateDenyKind).String(), out.Msg.Type())

		deny := &MediateDeny{}
		require.NoError(t, out.Msg.Decode(deny))
		require.Equal(t, "mediation is invite only", deny.Reason)

		_, err = p.accounts.AccountByVerKey(client)
		require.ErrorIs(t, err, mediation.ErrAccountNotFound)
	})

	t.Run("anonymous sender", func(t *testing.T) {
		svc := newService(t, newTestProvider(t))

		_, err := svc.HandleInbound(context.Background(), inbound(t, MediateRequestKind, &MediateRequest{},
			service.DIDCommContext{MyVerKey: "mediator-key"}))
		require.ErrorIs(t, err, agenterr.ErrMalformedMessage)
	})

	t.Run("agent without mediation store", func(t *testing.T) {
		p := newTestProvider(t)
		p.accounts = nil
		svc := newService(t, p)

		_, err := svc.HandleInbound(context.Background(), inbound(t, MediateRequestKind, &MediateRequest{},
			from(newKey(t))))
		require.ErrorIs(t, err, agenterr.ErrRouteNotFound)
	})

	t.Run("routing key creation fails", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		w := mockwallet.NewMockWallet(ctrl)
		w.EXPECT().CreateKey(gomock.Any()).Return(nil, errors.New("wallet locked"))

		p := newTestProvider(t)
		p.wallet = w
		svc := newService(t, p)

		_, err := svc.HandleInbound(context.Background(), inbound(t, MediateRequestKind, &MediateRequest{},
			from(newKey(t))))
		require.True(t, agenterr.IsKind(err, agenterr.CapabilityError))
	})
}

func TestService_KeylistUpdate(t *testing.T) {
	p := newTestProvider(t)
	svc := newService(t, p)

	alice, bob := newKey(t), newKey(t)
	grantTo(t, svc, alice)
	grantTo(t, svc, bob)

	aliceKey, aliceDIDKeyed, bobKey, unknown := newKey(t), newKey(t), newKey(t), newKey(t)

	didKey, err := didkey.FromVerKey(aliceDIDKeyed)
	require.NoError(t, err)

	update := func(client string, updates ...Update) []UpdateResponse {
		t.Helper()

		out, err := svc.HandleInbound(context.Background(),
			inbound(t, KeylistUpdateKind, &KeylistUpdate{Updates: updates}, from(client)))
		require.NoError(t, err)
		require.Equal(t, msgType(KeylistUpdateResponseKind).String(), out.Msg.Type())

		resp := &KeylistUpdateResponse{}
		require.NoError(t, out.Msg.Decode(resp))
		require.Len(t, resp.Updated, len(updates))

		return resp.Updated
	}

	results := func(updated []UpdateResponse) []string {
		r := make([]string, len(updated))
		for i, u := range updated {
			r[i] = u.Result
		}

		return r
	}

	t.Run("per item results", func(t *testing.T) {
		require.Equal(t, []string{ResultSuccess}, results(update(bob, Update{RecipientKey: bobKey, Action: ActionAdd})))

		updated := update(alice,
			Update{RecipientKey: aliceKey, Action: ActionAdd},
			Update{RecipientKey: aliceKey, Action: ActionAdd},
			Update{RecipientKey: bobKey, Action: ActionAdd},
			Update{RecipientKey: bobKey, Action: ActionRemove},
			Update{RecipientKey: unknown, Action: ActionRemove},
			Update{RecipientKey: "not-a-key", Action: ActionAdd},
			Update{RecipientKey: aliceKey, Action: "rotate"},
			Update{RecipientKey: didKey, Action: ActionAdd},
		)

		require.Equal(t, []string{
			ResultSuccess, ResultNoChange, ResultClientError, ResultClientError,
			ResultNoChange, ResultClientError, ResultClientError, ResultSuccess,
		}, results(updated))
		require.Equal(t, didKey, updated[7].RecipientKey)
		require.Equal(t, ActionAdd, updated[7].Action)

		bobKeys, err := p.accounts.ListRecipientKeys(mustAccount(t, p, bob))
		require.NoError(t, err)
		require.Equal(t, []string{bobKey}, bobKeys)
	})

	t.Run("removed key is gone from the keylist", func(t *testing.T) {
		updated := update(alice,
			Update{RecipientKey: aliceKey, Action: ActionRemove},
			Update{RecipientKey: bobKey, Action: ActionRemove},
		)
		require.Equal(t, ResultSuccess, updated[0].Result)
		require.Equal(t, ResultClientError, updated[1].Result)

		out, err := svc.HandleInbound(context.Background(), inbound(t, KeylistQueryKind, &KeylistQuery{}, from(alice)))
		require.NoError(t, err)

		list := &Keylist{}
		require.NoError(t, out.Msg.Decode(list))
		require.Equal(t, []KeylistEntry{{RecipientKey: aliceDIDKeyed}}, list.Keys)
	})

	t.Run("client without account", func(t *testing.T) {
		_, err := svc.HandleInbound(context.Background(),
			inbound(t, KeylistUpdateKind, &KeylistUpdate{Updates: []Update{{RecipientKey: unknown, Action: ActionAdd}}},
				from(newKey(t))))
		require.ErrorIs(t, err, agenterr.ErrRouteNotFound)
		require.True(t, agenterr.NeedsProblemReport(err))
	})

	t.Run("anonymous sender", func(t *testing.T) {
		_, err := svc.HandleInbound(context.Background(),
			inbound(t, KeylistUpdateKind, &KeylistUpdate{}, service.DIDCommContext{}))
		require.ErrorIs(t, err, agenterr.ErrMalformedMessage)
	})

	t.Run("malformed update", func(t *testing.T) {
		_, err := svc.HandleInbound(context.Background(),
			inbound(t, KeylistUpdateKind, map[string]interface{}{"updates": "all of them"}, from(alice)))
		require.ErrorIs(t, err, agenterr.ErrMalformedMessage)
	})
}

func TestService_KeylistQuery(t *testing.T) {
	p := newTestProvider(t)
	svc := newService(t, p)
	client := newKey(t)
	grantTo(t, svc, client)

	acctID := mustAccount(t, p, client)

	for i := 0; i < 5; i++ {
		require.NoError(t, p.accounts.AddRecipient(acctID, newKey(t)))
	}

	all, err := p.accounts.ListRecipientKeys(acctID)
	require.NoError(t, err)

	query := func(paginate *Paginate) (*Keylist, error) {
		out, err := svc.HandleInbound(context.Background(),
			inbound(t, KeylistQueryKind, &KeylistQuery{Paginate: paginate}, from(client)))
		if err != nil {
			return nil, err
		}

		list := &Keylist{}
		require.NoError(t, out.Msg.Decode(list))

		return list, nil
	}

	keys := func(list *Keylist) []string {
		k := make([]string, len(list.Keys))
		for i, e := range list.Keys {
			k[i] = e.RecipientKey
		}

		return k
	}

	t.Run("whole keylist", func(t *testing.T) {
		list, err := query(nil)
		require.NoError(t, err)
		require.Equal(t, all, keys(list))
		require.Equal(t, &Pagination{Count: 5, Offset: 0, Remaining: 0}, list.Pagination)
	})

	t.Run("page", func(t *testing.T) {
		list, err := query(&Paginate{Limit: 2, Offset: 1})
		require.NoError(t, err)
		require.Equal(t, all[1:3], keys(list))
		require.Equal(t, &Pagination{Count: 2, Offset: 1, Remaining: 2}, list.Pagination)
	})

	t.Run("offset only", func(t *testing.T) {
		list, err := query(&Paginate{Offset: 3})
		require.NoError(t, err)
		require.Equal(t, all[3:], keys(list))
		require.Equal(t, &Pagination{Count: 2, Offset: 3, Remaining: 0}, list.Pagination)
	})

	t.Run("offset past the end", func(t *testing.T) {
		list, err := query(&Paginate{Limit: 2, Offset: 10})
		require.NoError(t, err)
		require.Empty(t, list.Keys)
		require.Equal(t, &Pagination{Count: 0, Offset: 5, Remaining: 0}, list.Pagination)
	})

	t.Run("negative pagination", func(t *testing.T) {
		_, err := query(&Paginate{Limit: -1})
		require.ErrorIs(t, err, agenterr.ErrMalformedMessage)
	})
}

func mustAccount(t *testing.T, p *testProvider, client string) string {
	t.Helper()

	acct, err := p.accounts.AccountByVerKey(client)
	require.NoError(t, err)

	return acct.ID
}

type failingProvider struct {
	err error
}

func (p *failingProvider) OpenStore(string) (storage.Store, error) {
	return nil, p.err
}

func (p *failingProvider) Close() error {
	return nil
}
