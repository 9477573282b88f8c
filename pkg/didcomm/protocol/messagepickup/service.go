/*
Copyright Scoir Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package messagepickup

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/hyperledger/aries-didcomm-go/pkg/common/log"
	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/common/agenterr"
	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/common/service"
	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/messagetype"
	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/protocol/decorator"
	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/protocol/notification"
	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/transport"
	"github.com/hyperledger/aries-didcomm-go/pkg/doc/didkey"
	"github.com/hyperledger/aries-didcomm-go/pkg/internal/lockbox"
	"github.com/hyperledger/aries-didcomm-go/pkg/store/mediation"
)

var logger = log.New("aries-framework/messagepickup")

// Service for the message pickup protocol. As a mediator it serves the queues
// of the mediation store to their account, as a client it feeds picked up
// envelopes back into the inbound handler.
type Service struct {
	service.Message
	accounts *mediation.Store
	inbound  transport.InboundMessageHandler
	// one delivery or removal per account at a time
	inboxLock *lockbox.Lockbox
	now       func() time.Time
}

// New returns the message pickup service.
func New(prov Provider) (*Service, error) {
	return &Service{
		accounts:  prov.MediationStore(),
		inbound:   prov.InboundMessageHandler(),
		inboxLock: lockbox.New(),
		now:       time.Now,
	}, nil
}

// Name of the service.
func (s *Service) Name() string {
	return MessagePickup
}

// Accept checks whether the service can handle the message type.
func (s *Service) Accept(id messagetype.Identifier) bool {
	return id.Family == MessagePickup
}

// HandleInbound handles inbound message pickup messages.
func (s *Service) HandleInbound(ctx context.Context, in *service.Inbound) (*service.Outbound, error) {
	logger.Debugf("service.HandleInbound() input: type=%s id=%s", in.Type, in.Msg.ID())

	switch in.Type.Kind {
	case StatusRequestKind:
		return s.handleStatusRequest(in)
	case DeliveryRequestKind:
		return s.handleDeliveryRequest(in)
	case MessagesReceivedKind:
		return s.handleMessagesReceived(in)
	case LiveDeliveryChangeKind:
		return s.handleLiveDeliveryChange(in)
	case StatusKind:
		return nil, s.handleStatus(in)
	case DeliveryKind:
		return s.handleDelivery(ctx, in)
	}

	if notification.IsProblemReport(in.Type) {
		report, err := notification.ParseProblemReport(in.Msg)
		if err != nil {
			return nil, agenterr.Wrap(agenterr.ErrMalformedMessage, err, "problem report")
		}

		logger.Warnf("message holder reported %s: %s", report.Description.Code, report.Description.En)

		return nil, nil
	}

	return nil, agenterr.Errorf(agenterr.ErrMalformedType, "message pickup cannot handle %s", in.Type)
}

func (s *Service) handleStatusRequest(in *service.Inbound) (*service.Outbound, error) {
	acct, err := s.account(in)
	if err != nil {
		return nil, err
	}

	req := &StatusRequest{}
	if err = in.Msg.Decode(req); err != nil {
		return nil, agenterr.Wrap(agenterr.ErrMalformedMessage, err, "status request")
	}

	rkey, err := recipientKey(req.RecipientKey)
	if err != nil {
		return nil, err
	}

	status, err := s.status(acct.ID, rkey)
	if err != nil {
		return nil, err
	}

	status.RecipientKey = req.RecipientKey

	return reply(in, StatusKind, status)
}

func (s *Service) handleDeliveryRequest(in *service.Inbound) (*service.Outbound, error) {
	acct, err := s.account(in)
	if err != nil {
		return nil, err
	}

	req := &DeliveryRequest{}
	if err = in.Msg.Decode(req); err != nil {
		return nil, agenterr.Wrap(agenterr.ErrMalformedMessage, err, "delivery request")
	}

	if req.Limit <= 0 {
		return nil, agenterr.Errorf(agenterr.ErrMalformedMessage, "delivery request limit %d", req.Limit)
	}

	rkey, err := recipientKey(req.RecipientKey)
	if err != nil {
		return nil, err
	}

	var msgs []*mediation.Message

	err = s.inboxLock.With(acct.ID, func() error {
		var e error

		msgs, e = s.accounts.RetrievePendingMessages(acct.ID, req.Limit, rkey)

		return e
	})
	if err != nil {
		return nil, agenterr.Capability(err, "retrieve pending messages")
	}

	if len(msgs) == 0 {
		return reply(in, StatusKind, &Status{RecipientKey: req.RecipientKey})
	}

	delivery := &Delivery{
		RecipientKey: req.RecipientKey,
		Attachments:  make([]decorator.Attachment, 0, len(msgs)),
	}

	for _, m := range msgs {
		delivery.Attachments = append(delivery.Attachments,
			decorator.NewBase64Attachment(m.ID, transport.MediaTypeV1EncryptedEnvelope, m.Payload))
	}

	logger.Debugf("delivering %d messages to account %s", len(msgs), acct.ID)

	return reply(in, DeliveryKind, delivery)
}

func (s *Service) handleMessagesReceived(in *service.Inbound) (*service.Outbound, error) {
	acct, err := s.account(in)
	if err != nil {
		return nil, err
	}

	received := &MessagesReceived{}
	if err = in.Msg.Decode(received); err != nil {
		return nil, agenterr.Wrap(agenterr.ErrMalformedMessage, err, "messages received")
	}

	var removed int

	err = s.inboxLock.With(acct.ID, func() error {
		var e error

		removed, e = s.accounts.RemoveMessages(acct.ID, received.MessageIDList)

		return e
	})
	if err != nil {
		return nil, agenterr.Capability(err, "remove messages")
	}

	logger.Debugf("account %s acknowledged %d of %d messages", acct.ID, removed, len(received.MessageIDList))

	status, err := s.status(acct.ID, "")
	if err != nil {
		return nil, err
	}

	return reply(in, StatusKind, status)
}

func (s *Service) handleLiveDeliveryChange(in *service.Inbound) (*service.Outbound, error) {
	acct, err := s.account(in)
	if err != nil {
		return nil, err
	}

	change := &LiveDeliveryChange{}
	if err = in.Msg.Decode(change); err != nil {
		return nil, agenterr.Wrap(agenterr.ErrMalformedMessage, err, "live delivery change")
	}

	if change.LiveDelivery {
		thid, err := in.Msg.ThreadID()
		if err != nil {
			return nil, agenterr.Wrap(agenterr.ErrMalformedMessage, err, "live delivery change")
		}

		return &service.Outbound{Msg: notification.NewProblemReport(in.Type.WithKind(notification.ProblemReportKind),
			thid, CodeLiveModeNotSupported, "connection does not support live delivery")}, nil
	}

	status, err := s.status(acct.ID, "")
	if err != nil {
		return nil, err
	}

	return reply(in, StatusKind, status)
}

func (s *Service) status(accountID, rkey string) (*Status, error) {
	msgs, err := s.accounts.RetrievePendingMessages(accountID, 0, rkey)
	if err != nil {
		return nil, agenterr.Capability(err, "retrieve pending messages")
	}

	status := &Status{MessageCount: len(msgs)}
	if len(msgs) == 0 {
		return status, nil
	}

	oldest, newest := msgs[0].Received, msgs[len(msgs)-1].Received

	for _, m := range msgs {
		status.TotalBytes += len(m.Payload)
	}

	status.OldestReceivedTime = &oldest
	status.NewestReceivedTime = &newest
	status.LongestWaitedSeconds = int64(s.now().Sub(oldest) / time.Second)

	return status, nil
}

// account returns the mediation account of the authenticated sender.
func (s *Service) account(in *service.Inbound) (*mediation.Account, error) {
	if s.accounts == nil {
		return nil, agenterr.Errorf(agenterr.ErrRouteNotFound, "agent does not hold messages")
	}

	if !in.Context.Authenticated() {
		return nil, agenterr.Errorf(agenterr.ErrMalformedMessage, "%s from an anonymous sender", in.Type.Kind)
	}

	acct, err := s.accounts.AccountByVerKey(in.Context.TheirVerKey)
	if errors.Is(err, mediation.ErrAccountNotFound) {
		return nil, agenterr.Wrap(agenterr.ErrRouteNotFound, err, "no mediation granted to %s",
			in.Context.TheirVerKey)
	}

	if err != nil {
		return nil, agenterr.Capability(err, "mediation account")
	}

	return acct, nil
}

func recipientKey(key string) (string, error) {
	if key == "" {
		return "", nil
	}

	verKey, err := didkey.ToVerKey(key)
	if err != nil {
		return "", agenterr.Wrap(agenterr.ErrMalformedMessage, err, "recipient key %s", key)
	}

	return verKey, nil
}

func newMessage(id messagetype.Identifier, v interface{}) (service.DIDCommMsgMap, error) {
	msg, err := service.NewDIDCommMsgMap(v)
	if err != nil {
		return nil, errors.Wrapf(err, "new %s message", id.Kind)
	}

	msg["@type"] = id.String()
	msg["@id"] = uuid.New().String()

	return msg, nil
}

func reply(in *service.Inbound, kind string, v interface{}) (*service.Outbound, error) {
	msg, err := newMessage(in.Type.WithKind(kind), v)
	if err != nil {
		return nil, err
	}

	thid, err := in.Msg.ThreadID()
	if err != nil {
		return nil, agenterr.Wrap(agenterr.ErrMalformedMessage, err, "%s", in.Type.Kind)
	}

	msg.SetThread(thid, "")

	return &service.Outbound{Msg: msg}, nil
}
