/*
Copyright Scoir Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package messagepickup

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/common/agenterr"
	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/common/service"
)

// Initiate sends a status request, delivery request or messages received on a connection.
func (s *Service) Initiate(_ context.Context, params interface{}) (*service.Outbound, error) {
	switch p := params.(type) {
	case *StatusRequestParams:
		return s.StatusRequest(p)
	case *DeliveryRequestParams:
		return s.DeliveryRequest(p)
	case *MessagesReceivedParams:
		return s.MessagesReceived(p)
	default:
		return nil, fmt.Errorf("message pickup: unsupported initiate params %T", params)
	}
}

// Continue is not supported, pickup needs no local decisions.
func (s *Service) Continue(_ context.Context, thid string, action interface{}) (*service.Outbound, error) {
	return nil, agenterr.Errorf(agenterr.ErrInvalidTransition,
		"message pickup has no action %T for thread %s", action, thid)
}

// StatusRequest asks the message holder for the queue status.
func (s *Service) StatusRequest(p *StatusRequestParams) (*service.Outbound, error) {
	if p.ConnectionID == "" {
		return nil, errors.New("status request: connection id is required")
	}

	return outbound(p.ConnectionID, StatusRequestKind, &StatusRequest{RecipientKey: p.RecipientKey})
}

// DeliveryRequest asks the message holder for up to p.Limit queued messages.
func (s *Service) DeliveryRequest(p *DeliveryRequestParams) (*service.Outbound, error) {
	if p.ConnectionID == "" {
		return nil, errors.New("delivery request: connection id is required")
	}

	if p.Limit <= 0 {
		return nil, errors.Errorf("delivery request: limit %d must be positive", p.Limit)
	}

	return outbound(p.ConnectionID, DeliveryRequestKind, &DeliveryRequest{Limit: p.Limit, RecipientKey: p.RecipientKey})
}

// MessagesReceived acknowledges picked up messages.
func (s *Service) MessagesReceived(p *MessagesReceivedParams) (*service.Outbound, error) {
	if p.ConnectionID == "" {
		return nil, errors.New("messages received: connection id is required")
	}

	return outbound(p.ConnectionID, MessagesReceivedKind, &MessagesReceived{MessageIDList: p.MessageIDs})
}

func (s *Service) handleStatus(in *service.Inbound) error {
	status := &Status{}
	if err := in.Msg.Decode(status); err != nil {
		return agenterr.Wrap(agenterr.ErrMalformedMessage, err, "status")
	}

	s.notify(StateNameStatus, in, map[string]interface{}{
		ConnectionIDProperty: in.Context.ConnectionID,
		StatusProperty:       status,
	})

	return nil
}

// handleDelivery hands every delivered envelope to the inbound handler and
// acknowledges the ones it took.
func (s *Service) handleDelivery(ctx context.Context, in *service.Inbound) (*service.Outbound, error) {
	delivery := &Delivery{}
	if err := in.Msg.Decode(delivery); err != nil {
		return nil, agenterr.Wrap(agenterr.ErrMalformedMessage, err, "delivery")
	}

	if s.inbound == nil {
		return nil, agenterr.Errorf(agenterr.ErrRouteNotFound, "no inbound handler for picked up messages")
	}

	delivered := make([]string, 0, len(delivery.Attachments))

	for i := range delivery.Attachments {
		a := &delivery.Attachments[i]

		envelope, err := a.Data.Fetch()
		if err != nil {
			logger.Warnf("delivered message %s: %v", a.ID, err)

			continue
		}

		// the response of a picked up message has no transport to go back on
		if _, err = s.inbound(ctx, envelope); err != nil {
			logger.Warnf("handle delivered message %s: %v", a.ID, err)

			continue
		}

		delivered = append(delivered, a.ID)
	}

	s.notify(StateNameDelivered, in, map[string]interface{}{
		ConnectionIDProperty: in.Context.ConnectionID,
		DeliveredProperty:    delivered,
	})

	if len(delivered) == 0 {
		return nil, nil
	}

	msg, err := newMessage(in.Type.WithKind(MessagesReceivedKind), &MessagesReceived{MessageIDList: delivered})
	if err != nil {
		return nil, err
	}

	if thid, e := in.Msg.ThreadID(); e == nil {
		msg.SetThread(thid, "")
	}

	return &service.Outbound{Msg: msg}, nil
}

func (s *Service) notify(stateID string, in *service.Inbound, props map[string]interface{}) {
	thid, err := in.Msg.ThreadID()
	if err != nil {
		logger.Debugf("notify %s without thread: %v", stateID, err)
	}

	s.Notify(service.StateMsg{
		ProtocolName: MessagePickup,
		Type:         service.PostState,
		StateID:      stateID,
		ThreadID:     thid,
		Msg:          in.Msg,
		Properties:   props,
	})
}

func outbound(connID, kind string, v interface{}) (*service.Outbound, error) {
	msg, err := newMessage(msgType(kind), v)
	if err != nil {
		return nil, err
	}

	return &service.Outbound{Msg: msg, ConnectionID: connID}, nil
}
