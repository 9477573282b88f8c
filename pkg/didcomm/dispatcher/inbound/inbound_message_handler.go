/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package inbound

import (
	"context"
	"errors"
	"fmt"

	"github.com/hyperledger/aries-didcomm-go/pkg/common/log"
	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/common/agenterr"
	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/common/service"
	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/dispatcher"
	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/messagetype"
	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/protocol/decorator"
	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/protocol/notification"
	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/transport"
	"github.com/hyperledger/aries-didcomm-go/pkg/store/threadstate"
)

var logger = log.New("dispatcher/inbound")

// MessageHandler handles inbound envelopes, processing then dispatching to a protocol service based on the
// message type.
type MessageHandler struct {
	packager    transport.Packager
	registry    *messagetype.Registry
	services    []dispatcher.ProtocolService
	connections dispatcher.ConnectionLookup
	outbound    dispatcher.Outbound
	threads     *threadstate.Store
}

type provider interface {
	Packager() transport.Packager
	Registry() *messagetype.Registry
	AllServices() []dispatcher.ProtocolService
	Connections() dispatcher.ConnectionLookup
	OutboundDispatcher() dispatcher.Outbound
	ThreadStore() *threadstate.Store
}

// NewInboundMessageHandler creates an inbound message handler, that processes inbound message Envelopes,
// and dispatches them to the appropriate ProtocolService.
func NewInboundMessageHandler(p provider) *MessageHandler {
	return &MessageHandler{
		packager:    p.Packager(),
		registry:    p.Registry(),
		services:    p.AllServices(),
		connections: p.Connections(),
		outbound:    p.OutboundDispatcher(),
		threads:     p.ThreadStore(),
	}
}

// HandlerFunc returns the MessageHandler's transport.InboundMessageHandler function.
func (handler *MessageHandler) HandlerFunc() transport.InboundMessageHandler {
	return handler.HandleInboundEnvelope
}

// HandleInboundEnvelope opens an envelope, dispatches its message and delivers
// the reply. The returned bytes are the packed reply when the sender asked for
// it on the inbound connection.
func (handler *MessageHandler) HandleInboundEnvelope(ctx context.Context, raw []byte) ([]byte, error) {
	envelope, err := handler.packager.UnpackMessage(raw)
	if err != nil {
		if agenterr.IsKind(err, agenterr.CryptoError) {
			logger.Warnf("possible tampering, dropping envelope: %v", err)
		} else {
			logger.Infof("dropping unreadable envelope: %v", err)
		}

		return nil, err
	}

	in, err := handler.classify(envelope)
	if err != nil {
		logger.Infof("dropping unclassifiable message: %v", err)

		return nil, err
	}

	out, err := handler.dispatch(ctx, in)
	if out == nil {
		return nil, err
	}

	reply, sendErr := handler.deliver(ctx, in, out)
	if sendErr != nil {
		if err != nil {
			logger.Errorf("deliver problem report for %s: %v", in.Type, sendErr)

			return nil, err
		}

		return nil, sendErr
	}

	return reply, err
}

// classify parses the message and resolves the connection the envelope keys belong to.
func (handler *MessageHandler) classify(envelope *transport.Envelope) (*service.Inbound, error) {
	msg, err := service.ParseDIDCommMsgMap(envelope.Message)
	if err != nil {
		return nil, agenterr.Wrap(agenterr.ErrMalformedMessage, err, "inbound message")
	}

	id, err := handler.registry.Resolve(msg.Type())
	if err != nil {
		return nil, err
	}

	in := &service.Inbound{
		Type: id,
		Msg:  msg,
		Context: service.DIDCommContext{
			MyVerKey:    envelope.ToKey,
			TheirVerKey: envelope.FromKey,
		},
	}

	if envelope.FromKey != "" && handler.connections != nil {
		connID, err := handler.connections.GetConnectionIDByTheirKey(envelope.FromKey)

		switch {
		case err == nil:
			in.Context.ConnectionID = connID
		case errors.Is(err, agenterr.ErrConnectionNotFound):
		default:
			return nil, agenterr.Capability(err, "connection of %s", envelope.FromKey)
		}
	}

	return in, nil
}

// dispatch hands the message to the first service accepting its type. Parse
// and state failures of authenticated senders are answered with a problem report.
func (handler *MessageHandler) dispatch(ctx context.Context, in *service.Inbound) (*service.Outbound, error) {
	foundService := handler.serviceFor(in)

	var (
		out *service.Outbound
		err error
	)

	if foundService == nil {
		err = agenterr.Errorf(agenterr.ErrMalformedType, "no message handlers found for the message type: %s", in.Type)
	} else {
		logger.Debugf("dispatching %s %s to %s", in.Type, in.Msg.ID(), foundService.Name())

		out, err = foundService.HandleInbound(ctx, in)
	}

	if err == nil || out != nil {
		return out, err
	}

	if !agenterr.NeedsProblemReport(err) || !in.Context.Authenticated() ||
		notification.IsProblemReport(in.Type) {
		return nil, err
	}

	thid, thErr := in.Msg.ThreadID()
	if thErr != nil {
		thid = in.Msg.ID()
	}

	logger.Infof("answering %s %s with a problem report: %v", in.Type, in.Msg.ID(), err)

	return &service.Outbound{
		Msg: notification.NewProblemReport(in.Type.WithKind(notification.ProblemReportKind), thid,
			agenterr.CodeOf(err), err.Error()),
	}, err
}

func (handler *MessageHandler) serviceFor(in *service.Inbound) dispatcher.ProtocolService {
	for _, svc := range handler.services {
		if svc.Accept(in.Type) {
			return svc
		}
	}

	// generic acks and problem reports go to the protocol owning the thread
	if (in.Type.Family != messagetype.Notification && in.Type.Family != messagetype.ReportProblem) ||
		handler.threads == nil {
		return nil
	}

	thid, err := in.Msg.ThreadID()
	if err != nil {
		return nil
	}

	rec, err := handler.threads.Get(thid)
	if err != nil {
		logger.Debugf("no thread %s for %s: %v", thid, in.Type, err)

		return nil
	}

	for _, svc := range handler.services {
		if svc.Name() == rec.Protocol {
			return svc
		}
	}

	return nil
}

// deliver packs the reply for the inbound connection when the sender asked
// for it, and sends it otherwise. An envelope the other side answers with on
// the outbound connection is handled in turn.
func (handler *MessageHandler) deliver(ctx context.Context, in *service.Inbound,
	out *service.Outbound) ([]byte, error) {
	if returnRoute(in) && repliesTo(in, out) {
		packed, err := handler.outbound.Pack(out, &in.Context)
		if err != nil {
			return nil, fmt.Errorf("pack reply: %w", err)
		}

		return packed.Envelope, nil
	}

	resp, err := handler.outbound.Send(ctx, out, &in.Context)
	if err != nil {
		return nil, err
	}

	if len(resp) > 0 {
		if _, err = handler.HandleInboundEnvelope(ctx, resp); err != nil {
			logger.Warnf("handle response to %s: %v", out.Msg.Type(), err)
		}
	}

	return nil, nil
}

func returnRoute(in *service.Inbound) bool {
	t := &decorator.Transport{}
	if err := in.Msg.Decode(t); err != nil {
		return false
	}

	return t.Enabled()
}

// repliesTo reports whether out goes back to the sender of in.
func repliesTo(in *service.Inbound, out *service.Outbound) bool {
	switch {
	case out.Destination != nil:
		for _, k := range out.Destination.RecipientKeys {
			if k == in.Context.TheirVerKey {
				return true
			}
		}

		return false
	case out.ConnectionID != "":
		return out.ConnectionID == in.Context.ConnectionID
	default:
		return true
	}
}
