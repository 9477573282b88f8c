/*
Copyright Scoir Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package messagepickup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/common/agenterr"
	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/common/service"
	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/messagetype"
	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/protocol/notification"
	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/transport"
	"github.com/hyperledger/aries-didcomm-go/pkg/doc/didkey"
	"github.com/hyperledger/aries-didcomm-go/pkg/storage/mem"
	"github.com/hyperledger/aries-didcomm-go/pkg/store/mediation"
	"github.com/hyperledger/aries-didcomm-go/pkg/wallet/localwallet"
)

const (
	clientConnID = "conn-mediator"
	envelope1    = `{"protected":"one","ciphertext":"a"}`
	envelope2    = `{"protected":"two","ciphertext":"b"}`
)

type testProvider struct {
	accounts *mediation.Store
	inbound  transport.InboundMessageHandler
}

func (p *testProvider) MediationStore() *mediation.Store { return p.accounts }

func (p *testProvider) InboundMessageHandler() transport.InboundMessageHandler { return p.inbound }

// holder is a mediator with one account routing for recipient.
type holder struct {
	svc       *Service
	accounts  *mediation.Store
	client    string
	recipient string
	accountID string
}

func newHolder(t *testing.T) *holder {
	t.Helper()

	accounts, err := mediation.New(mem.NewProvider())
	require.NoError(t, err)

	h := &holder{accounts: accounts, client: newKey(t), recipient: newKey(t)}

	acct, _, err := accounts.CreateAccount(&mediation.Account{VerKey: h.client, RoutingKey: newKey(t), Granted: true})
	require.NoError(t, err)
	require.NoError(t, accounts.AddRecipient(acct.ID, h.recipient))

	h.accountID = acct.ID

	h.svc, err = New(&testProvider{accounts: accounts})
	require.NoError(t, err)

	return h
}

func (h *holder) queue(t *testing.T, payloads ...string) []string {
	t.Helper()

	ids := make([]string, 0, len(payloads))

	for _, p := range payloads {
		m, err := h.accounts.PersistForwardMessage(h.recipient, []byte(p))
		require.NoError(t, err)

		ids = append(ids, m.ID)
	}

	return ids
}

func (h *holder) handle(t *testing.T, kind string, v interface{}) (*service.Outbound, error) {
	t.Helper()

	return h.svc.HandleInbound(context.Background(), inbound(t, kind, v,
		service.DIDCommContext{MyVerKey: "mediator-key", TheirVerKey: h.client}))
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

func deliver(t *testing.T, out *service.Outbound, ctx service.DIDCommContext) *service.Inbound {
	t.Helper()

	require.NotNil(t, out)

	id, err := messagetype.NewDefaultRegistry().Resolve(out.Msg.Type())
	require.NoError(t, err)

	return &service.Inbound{Type: id, Msg: out.Msg, Context: ctx}
}

func decodeStatus(t *testing.T, out *service.Outbound) *Status {
	t.Helper()

	require.NotNil(t, out)
	require.Equal(t, msgType(StatusKind).String(), out.Msg.Type())

	status := &Status{}
	require.NoError(t, out.Msg.Decode(status))

	return status
}

func TestService_New(t *testing.T) {
	svc, err := New(&testProvider{})
	require.NoError(t, err)
	require.Equal(t, MessagePickup, svc.Name())
	require.True(t, svc.Accept(msgType(DeliveryRequestKind)))
	require.False(t, svc.Accept(messagetype.New(messagetype.CoordinateMediation, 1, 0, "keylist")))

	_, err = svc.HandleInbound(context.Background(), inbound(t, "noop", struct{}{}, service.DIDCommContext{}))
	require.ErrorIs(t, err, agenterr.ErrMalformedType)
}

func TestService_StatusRequest(t *testing.T) {
	t.Run("empty queue", func(t *testing.T) {
		h := newHolder(t)

		out, err := h.handle(t, StatusRequestKind, &StatusRequest{})
		require.NoError(t, err)

		status := decodeStatus(t, out)
		require.Zero(t, status.MessageCount)
		require.Nil(t, status.OldestReceivedTime)
		require.False(t, status.LiveDelivery)
	})

	t.Run("queued messages", func(t *testing.T) {
		h := newHolder(t)
		h.queue(t, envelope1, envelope2)
		h.svc.now = func() time.Time { return time.Now().Add(time.Minute) }

		req := inbound(t, StatusRequestKind, &StatusRequest{}, service.DIDCommContext{TheirVerKey: h.client})

		out, err := h.svc.HandleInbound(context.Background(), req)
		require.NoError(t, err)
		require.Equal(t, req.Msg.ID(), out.Msg.ExplicitThreadID())

		status := decodeStatus(t, out)
		require.Equal(t, 2, status.MessageCount)
		require.Equal(t, len(envelope1)+len(envelope2), status.TotalBytes)
		require.NotNil(t, status.OldestReceivedTime)
		require.NotNil(t, status.NewestReceivedTime)
		require.GreaterOrEqual(t, status.LongestWaitedSeconds, int64(59))
	})

	t.Run("recipient key filter", func(t *testing.T) {
		h := newHolder(t)
		h.queue(t, envelope1)

		other := newKey(t)

		out, err := h.handle(t, StatusRequestKind, &StatusRequest{RecipientKey: other})
		require.NoError(t, err)
		require.Zero(t, decodeStatus(t, out).MessageCount)

		rkey, err := didkey.FromVerKey(h.recipient)
		require.NoError(t, err)

		out, err = h.handle(t, StatusRequestKind, &StatusRequest{RecipientKey: rkey})
		require.NoError(t, err)

		status := decodeStatus(t, out)
		require.Equal(t, 1, status.MessageCount)
		require.Equal(t, rkey, status.RecipientKey)
	})

	t.Run("unknown client", func(t *testing.T) {
		h := newHolder(t)
		h.client = newKey(t)

		_, err := h.handle(t, StatusRequestKind, &StatusRequest{})
		require.ErrorIs(t, err, agenterr.ErrRouteNotFound)
	})

	t.Run("anonymous sender", func(t *testing.T) {
		h := newHolder(t)

		_, err := h.svc.HandleInbound(context.Background(),
			inbound(t, StatusRequestKind, &StatusRequest{}, service.DIDCommContext{}))
		require.ErrorIs(t, err, agenterr.ErrMalformedMessage)
	})

	t.Run("not a mediator", func(t *testing.T) {
		svc, err := New(&testProvider{})
		require.NoError(t, err)

		_, err = svc.HandleInbound(context.Background(),
			inbound(t, StatusRequestKind, &StatusRequest{}, service.DIDCommContext{TheirVerKey: newKey(t)}))
		require.ErrorIs(t, err, agenterr.ErrRouteNotFound)
	})
}

func TestService_DeliveryRequest(t *testing.T) {
	t.Run("empty queue answers with a status", func(t *testing.T) {
		h := newHolder(t)

		out, err := h.handle(t, DeliveryRequestKind, &DeliveryRequest{Limit: 10})
		require.NoError(t, err)
		require.Zero(t, decodeStatus(t, out).MessageCount)
	})

	t.Run("limit", func(t *testing.T) {
		h := newHolder(t)
		h.queue(t, envelope1, envelope2)

		out, err := h.handle(t, DeliveryRequestKind, &DeliveryRequest{Limit: 1})
		require.NoError(t, err)
		require.Equal(t, msgType(DeliveryKind).String(), out.Msg.Type())

		delivery := &Delivery{}
		require.NoError(t, out.Msg.Decode(delivery))
		require.Len(t, delivery.Attachments, 1)
		require.Equal(t, transport.MediaTypeV1EncryptedEnvelope, delivery.Attachments[0].MimeType)
	})

	t.Run("delivery keeps messages until received", func(t *testing.T) {
		h := newHolder(t)
		ids := h.queue(t, envelope1, envelope2)

		out, err := h.handle(t, DeliveryRequestKind, &DeliveryRequest{Limit: 5})
		require.NoError(t, err)

		delivery := &Delivery{}
		require.NoError(t, out.Msg.Decode(delivery))
		require.Len(t, delivery.Attachments, 2)

		payloads := map[string]string{}

		for _, a := range delivery.Attachments {
			data, e := a.Data.Fetch()
			require.NoError(t, e)

			payloads[a.ID] = string(data)
		}

		require.Equal(t, map[string]string{ids[0]: envelope1, ids[1]: envelope2}, payloads)

		count, err := h.accounts.RetrievePendingMessageCount(h.accountID, "")
		require.NoError(t, err)
		require.Equal(t, 2, count)
	})

	t.Run("invalid limit", func(t *testing.T) {
		h := newHolder(t)

		_, err := h.handle(t, DeliveryRequestKind, &DeliveryRequest{})
		require.ErrorIs(t, err, agenterr.ErrMalformedMessage)
	})
}

func TestService_MessagesReceived(t *testing.T) {
	h := newHolder(t)
	ids := h.queue(t, envelope1, envelope2)

	out, err := h.handle(t, MessagesReceivedKind, &MessagesReceived{MessageIDList: []string{ids[0], "unknown"}})
	require.NoError(t, err)
	require.Equal(t, 1, decodeStatus(t, out).MessageCount)

	out, err = h.handle(t, MessagesReceivedKind, &MessagesReceived{MessageIDList: []string{ids[0], ids[1]}})
	require.NoError(t, err)
	require.Zero(t, decodeStatus(t, out).MessageCount)
}

func TestService_LiveDeliveryChange(t *testing.T) {
	h := newHolder(t)

	out, err := h.handle(t, LiveDeliveryChangeKind, &LiveDeliveryChange{LiveDelivery: true})
	require.NoError(t, err)

	id, err := messagetype.NewDefaultRegistry().Parse(out.Msg.Type())
	require.NoError(t, err)
	require.True(t, notification.IsProblemReport(id))

	report, err := notification.ParseProblemReport(out.Msg)
	require.NoError(t, err)
	require.Equal(t, CodeLiveModeNotSupported, report.Description.Code)

	out, err = h.handle(t, LiveDeliveryChangeKind, &LiveDeliveryChange{})
	require.NoError(t, err)
	require.False(t, decodeStatus(t, out).LiveDelivery)
}

func TestClient_Pickup(t *testing.T) {
	h := newHolder(t)
	ids := h.queue(t, envelope1, envelope2)

	var picked []string

	client, err := New(&testProvider{inbound: func(_ context.Context, env []byte) ([]byte, error) {
		if string(env) == envelope2 {
			return nil, errors.New("cannot unpack")
		}

		picked = append(picked, string(env))

		return nil, nil
	}})
	require.NoError(t, err)

	events := make(chan service.StateMsg, 10)
	require.NoError(t, client.RegisterMsgEvent(events))

	fromMediator := service.DIDCommContext{TheirVerKey: "mediator-key", ConnectionID: clientConnID}
	toMediator := service.DIDCommContext{TheirVerKey: h.client}

	t.Run("status", func(t *testing.T) {
		out, err := client.Initiate(context.Background(), &StatusRequestParams{ConnectionID: clientConnID})
		require.NoError(t, err)
		require.Equal(t, clientConnID, out.ConnectionID)

		reply, err := h.svc.HandleInbound(context.Background(), deliver(t, out, toMediator))
		require.NoError(t, err)

		_, err = client.HandleInbound(context.Background(), deliver(t, reply, fromMediator))
		require.NoError(t, err)

		e := <-events
		require.Equal(t, StateNameStatus, e.StateID)
		require.Equal(t, out.Msg.ID(), e.ThreadID)
		require.Equal(t, 2, e.Properties[StatusProperty].(*Status).MessageCount)
	})

	t.Run("delivery is acknowledged", func(t *testing.T) {
		out, err := client.Initiate(context.Background(), &DeliveryRequestParams{ConnectionID: clientConnID, Limit: 10})
		require.NoError(t, err)

		delivery, err := h.svc.HandleInbound(context.Background(), deliver(t, out, toMediator))
		require.NoError(t, err)

		ack, err := client.HandleInbound(context.Background(), deliver(t, delivery, fromMediator))
		require.NoError(t, err)
		require.Equal(t, []string{envelope1}, picked)

		e := <-events
		require.Equal(t, StateNameDelivered, e.StateID)
		require.Equal(t, []string{ids[0]}, e.Properties[DeliveredProperty])

		status, err := h.svc.HandleInbound(context.Background(), deliver(t, ack, toMediator))
		require.NoError(t, err)
		require.Equal(t, 1, decodeStatus(t, status).MessageCount)
	})

	t.Run("nothing taken, nothing acknowledged", func(t *testing.T) {
		out, err := client.DeliveryRequest(&DeliveryRequestParams{ConnectionID: clientConnID, Limit: 10})
		require.NoError(t, err)

		delivery, err := h.svc.HandleInbound(context.Background(), deliver(t, out, toMediator))
		require.NoError(t, err)

		ack, err := client.HandleInbound(context.Background(), deliver(t, delivery, fromMediator))
		require.NoError(t, err)
		require.Nil(t, ack)
		require.Equal(t, StateNameDelivered, (<-events).StateID)
	})

	t.Run("explicit acknowledgement", func(t *testing.T) {
		out, err := client.Initiate(context.Background(), &MessagesReceivedParams{
			ConnectionID: clientConnID,
			MessageIDs:   []string{ids[1]},
		})
		require.NoError(t, err)

		status, err := h.svc.HandleInbound(context.Background(), deliver(t, out, toMediator))
		require.NoError(t, err)
		require.Zero(t, decodeStatus(t, status).MessageCount)
	})
}

func TestClient_Params(t *testing.T) {
	svc, err := New(&testProvider{})
	require.NoError(t, err)

	_, err = svc.StatusRequest(&StatusRequestParams{})
	require.Error(t, err)

	_, err = svc.DeliveryRequest(&DeliveryRequestParams{ConnectionID: clientConnID})
	require.Error(t, err)

	_, err = svc.MessagesReceived(&MessagesReceivedParams{})
	require.Error(t, err)

	_, err = svc.Initiate(context.Background(), "pickup")
	require.Error(t, err)

	_, err = svc.Continue(context.Background(), "thid", nil)
	require.ErrorIs(t, err, agenterr.ErrInvalidTransition)

	t.Run("delivery without an inbound handler", func(t *testing.T) {
		_, err := svc.HandleInbound(context.Background(), inbound(t, DeliveryKind, &Delivery{},
			service.DIDCommContext{TheirVerKey: "mediator-key"}))
		require.ErrorIs(t, err, agenterr.ErrRouteNotFound)
	})
}
