/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package mediator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/common/agenterr"
	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/common/service"
	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/protocol/decorator"
	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/protocol/notification"
	"github.com/hyperledger/aries-didcomm-go/spi/storage"
)

const (
	requestKeyPrefix = "request_"
	configKeyPrefix  = "config_"
)

// Initiate starts a mediate request, keylist update or keylist query on a connection.
func (s *Service) Initiate(_ context.Context, params interface{}) (*service.Outbound, error) {
	switch p := params.(type) {
	case *MediateRequestParams:
		return s.MediateRequest(p)
	case *KeylistUpdateParams:
		return s.KeylistUpdate(p)
	case *KeylistQueryParams:
		return s.KeylistQuery(p)
	default:
		return nil, fmt.Errorf("coordinate mediation: unsupported initiate params %T", params)
	}
}

// Continue is not supported, mediation needs no local decisions.
func (s *Service) Continue(_ context.Context, thid string, action interface{}) (*service.Outbound, error) {
	return nil, agenterr.Errorf(agenterr.ErrInvalidTransition,
		"coordinate mediation has no action %T for thread %s", action, thid)
}

// MediateRequest asks the other end of the connection to mediate for this agent.
func (s *Service) MediateRequest(p *MediateRequestParams) (*service.Outbound, error) {
	if p.ConnectionID == "" {
		return nil, errors.New("mediate request: connection id is required")
	}

	req := &MediateRequest{}
	if p.ReturnRoute {
		req.Transport = &decorator.Transport{
			ReturnRoute: &decorator.ReturnRoute{Value: decorator.TransportReturnRouteAll},
		}
	}

	msg, err := newMessage(msgType(MediateRequestKind), req)
	if err != nil {
		return nil, err
	}

	if err = s.clients.Put(requestKeyPrefix+msg.ID(), []byte(p.ConnectionID)); err != nil {
		return nil, fmt.Errorf("save mediate request: %w", err)
	}

	s.notify(StateNameRequested, msg.ID(), msg, map[string]interface{}{ConnectionIDProperty: p.ConnectionID})

	return &service.Outbound{Msg: msg, ConnectionID: p.ConnectionID}, nil
}

// KeylistUpdate asks the mediator granted on the connection to change its keylist.
func (s *Service) KeylistUpdate(p *KeylistUpdateParams) (*service.Outbound, error) {
	if len(p.Updates) == 0 {
		return nil, errors.New("keylist update: no updates")
	}

	if _, err := s.Config(p.ConnectionID); err != nil {
		return nil, fmt.Errorf("keylist update: %w", err)
	}

	msg, err := newMessage(msgType(KeylistUpdateKind), &KeylistUpdate{Updates: p.Updates})
	if err != nil {
		return nil, err
	}

	return &service.Outbound{Msg: msg, ConnectionID: p.ConnectionID}, nil
}

// KeylistQuery asks the mediator granted on the connection for its keylist.
func (s *Service) KeylistQuery(p *KeylistQueryParams) (*service.Outbound, error) {
	if _, err := s.Config(p.ConnectionID); err != nil {
		return nil, fmt.Errorf("keylist query: %w", err)
	}

	msg, err := newMessage(msgType(KeylistQueryKind), &KeylistQuery{Paginate: p.Paginate})
	if err != nil {
		return nil, err
	}

	return &service.Outbound{Msg: msg, ConnectionID: p.ConnectionID}, nil
}

// Config fetches the router config - endpoint and routingKeys.
func (s *Service) Config(connID string) (*Config, error) {
	val, err := s.clients.Get(configKeyPrefix + connID)
	if errors.Is(err, storage.ErrDataNotFound) {
		return nil, fmt.Errorf("connection %s: %w", connID, ErrRouterNotGranted)
	}

	if err != nil {
		return nil, fmt.Errorf("get router config data : %w", err)
	}

	conf := &Config{}
	if err = json.Unmarshal(val, conf); err != nil {
		return nil, fmt.Errorf("unmarshal router config data : %w", err)
	}

	return conf, nil
}

// GetConnections returns the connections a mediator granted routing on, in
// connection id order.
func (s *Service) GetConnections() ([]string, error) {
	records, err := s.clients.Query(configKeyPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to query mediator client store: %w", err)
	}

	defer storage.Close(records, logger)

	var conns []string

	more, err := records.Next()
	if err != nil {
		return nil, fmt.Errorf("failed to get next record: %w", err)
	}

	for more {
		key, err := records.Key()
		if err != nil {
			return nil, fmt.Errorf("failed to get key from records: %w", err)
		}

		conns = append(conns, strings.TrimPrefix(key, configKeyPrefix))

		more, err = records.Next()
		if err != nil {
			return nil, fmt.Errorf("failed to get next record: %w", err)
		}
	}

	return conns, nil
}

func (s *Service) handleGrant(in *service.Inbound) error {
	thid, connID, err := s.request(in)
	if err != nil {
		return err
	}

	grant := &MediateGrant{}
	if err = in.Msg.Decode(grant); err != nil {
		return agenterr.Wrap(agenterr.ErrMalformedMessage, err, "mediate grant")
	}

	conf := NewConfig(grant.Endpoint, grant.RoutingKeys)

	raw, err := json.Marshal(conf)
	if err != nil {
		return fmt.Errorf("marshal config data: %w", err)
	}

	err = s.clients.Batch([]storage.Operation{
		{Key: configKeyPrefix + connID, Value: raw},
		{Key: requestKeyPrefix + thid},
	})
	if err != nil {
		return fmt.Errorf("save route config : %w", err)
	}

	logger.Debugf("saved router config from inbound grant: endpoint=%s keys=%v", conf.Endpoint(), conf.Keys())

	s.notify(StateNameGranted, thid, in.Msg, map[string]interface{}{
		ConnectionIDProperty: connID,
		ConfigProperty:       conf,
	})

	return nil
}

func (s *Service) handleDeny(in *service.Inbound) error {
	thid, connID, err := s.request(in)
	if err != nil {
		return err
	}

	deny := &MediateDeny{}
	if err = in.Msg.Decode(deny); err != nil {
		return agenterr.Wrap(agenterr.ErrMalformedMessage, err, "mediate deny")
	}

	err = s.clients.Batch([]storage.Operation{
		{Key: configKeyPrefix + connID},
		{Key: requestKeyPrefix + thid},
	})
	if err != nil {
		return fmt.Errorf("delete route config : %w", err)
	}

	logger.Infof("mediation denied on connection %s: %s", connID, deny.Reason)

	s.notify(StateNameDenied, thid, in.Msg, map[string]interface{}{
		ConnectionIDProperty: connID,
		ReasonProperty:       deny.Reason,
	})

	return nil
}

func (s *Service) handleKeylistUpdateResponse(in *service.Inbound) error {
	resp := &KeylistUpdateResponse{}
	if err := in.Msg.Decode(resp); err != nil {
		return agenterr.Wrap(agenterr.ErrMalformedMessage, err, "keylist update response")
	}

	for _, u := range resp.Updated {
		if u.Result != ResultSuccess && u.Result != ResultNoChange {
			logger.Warnf("mediator on connection %s: %s %s: %s", in.Context.ConnectionID, u.Action,
				u.RecipientKey, u.Result)
		}
	}

	s.notify(StateNameKeylistUpdated, in.Msg.ExplicitThreadID(), in.Msg, map[string]interface{}{
		ConnectionIDProperty: in.Context.ConnectionID,
		UpdatedProperty:      resp.Updated,
	})

	return nil
}

func (s *Service) handleKeylist(in *service.Inbound) error {
	list := &Keylist{}
	if err := in.Msg.Decode(list); err != nil {
		return agenterr.Wrap(agenterr.ErrMalformedMessage, err, "keylist")
	}

	keys := make([]string, len(list.Keys))
	for i, k := range list.Keys {
		keys[i] = k.RecipientKey
	}

	s.notify(StateNameKeylist, in.Msg.ExplicitThreadID(), in.Msg, map[string]interface{}{
		ConnectionIDProperty: in.Context.ConnectionID,
		KeysProperty:         keys,
		PaginationProperty:   list.Pagination,
	})

	return nil
}

func (s *Service) handleProblemReport(in *service.Inbound) error {
	report, err := notification.ParseProblemReport(in.Msg)
	if err != nil {
		return agenterr.Wrap(agenterr.ErrMalformedMessage, err, "problem report")
	}

	thid := in.Msg.ExplicitThreadID()

	logger.Warnf("mediator reported %s on thread %s: %s", report.Description.Code, thid, report.Description.En)

	if thid != "" {
		if err = s.clients.Delete(requestKeyPrefix + thid); err != nil {
			return fmt.Errorf("delete mediate request: %w", err)
		}
	}

	return nil
}

// request returns the thread and connection of the mediate request a grant or
// deny answers.
func (s *Service) request(in *service.Inbound) (string, string, error) {
	thid := in.Msg.ExplicitThreadID()
	if thid == "" {
		return "", "", agenterr.Errorf(agenterr.ErrThreadMismatch, "%s without thread", in.Type.Kind)
	}

	connID, err := s.clients.Get(requestKeyPrefix + thid)
	if errors.Is(err, storage.ErrDataNotFound) {
		return "", "", agenterr.Wrap(agenterr.ErrThreadMismatch, ErrRequestNotFound, "%s for thread %s",
			in.Type.Kind, thid)
	}

	if err != nil {
		return "", "", fmt.Errorf("get mediate request: %w", err)
	}

	if in.Context.ConnectionID != "" && in.Context.ConnectionID != string(connID) {
		return "", "", agenterr.Errorf(agenterr.ErrThreadMismatch, "%s for thread %s on connection %s",
			in.Type.Kind, thid, in.Context.ConnectionID)
	}

	return thid, string(connID), nil
}

func (s *Service) notify(stateID, thid string, msg service.DIDCommMsgMap, props map[string]interface{}) {
	s.Notify(service.StateMsg{
		ProtocolName: Coordination,
		Type:         service.PostState,
		StateID:      stateID,
		ThreadID:     thid,
		Msg:          msg,
		Properties:   props,
	})
}
