/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package mediator

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"

	"github.com/btcsuite/btcutil/base58"
	"github.com/google/uuid"

	"github.com/hyperledger/aries-didcomm-go/pkg/common/log"
	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/common/agenterr"
	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/common/service"
	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/messagetype"
	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/protocol/notification"
	"github.com/hyperledger/aries-didcomm-go/pkg/doc/didkey"
	"github.com/hyperledger/aries-didcomm-go/pkg/store/mediation"
	"github.com/hyperledger/aries-didcomm-go/pkg/wallet"
	"github.com/hyperledger/aries-didcomm-go/spi/storage"
)

// ClientNamespace is the store of the grants received from mediators.
const ClientNamespace = "mediator-client"

var logger = log.New("aries-framework/mediator/service")

// Service for the coordinate mediation protocol. It serves mediation clients
// from the mediation store and, as a client, keeps the routing granted by the
// mediators it talks to.
//
// Mediate requests are stateless: the account of a client is keyed by its
// authenticated key and created at most once.
type Service struct {
	service.Message
	accounts *mediation.Store
	clients  storage.Store
	wallet   wallet.Wallet
	endpoint string
	policy   Policy
}

// New return the coordinate mediation service.
func New(prov Provider) (*Service, error) {
	clients, err := prov.StorageProvider().OpenStore(ClientNamespace)
	if err != nil {
		return nil, fmt.Errorf("open mediator client store : %w", err)
	}

	policy := prov.MediatorPolicy()
	if policy == nil {
		policy = GrantAll
	}

	svc := &Service{
		accounts: prov.MediationStore(),
		clients:  clients,
		wallet:   prov.Wallet(),
		endpoint: prov.Endpoint(),
		policy:   policy,
	}

	logger.Debugf("default endpoint: %s", svc.endpoint)

	return svc, nil
}

// Name of the service.
func (s *Service) Name() string {
	return Coordination
}

// Accept checks whether the service can handle the message type.
func (s *Service) Accept(id messagetype.Identifier) bool {
	return id.Family == Coordination
}

// HandleInbound handles inbound coordinate mediation messages.
func (s *Service) HandleInbound(ctx context.Context, in *service.Inbound) (*service.Outbound, error) {
	logger.Debugf("service.HandleInbound() input: type=%s id=%s", in.Type, in.Msg.ID())

	switch in.Type.Kind {
	case MediateRequestKind:
		return s.handleMediateRequest(ctx, in)
	case KeylistUpdateKind:
		return s.handleKeylistUpdate(in)
	case KeylistQueryKind:
		return s.handleKeylistQuery(in)
	case MediateGrantKind:
		return nil, s.handleGrant(in)
	case MediateDenyKind:
		return nil, s.handleDeny(in)
	case KeylistUpdateResponseKind:
		return nil, s.handleKeylistUpdateResponse(in)
	case KeylistKind:
		return nil, s.handleKeylist(in)
	}

	if notification.IsProblemReport(in.Type) {
		return nil, s.handleProblemReport(in)
	}

	return nil, agenterr.Errorf(agenterr.ErrMalformedType, "coordinate mediation cannot handle %s", in.Type)
}

func (s *Service) handleMediateRequest(ctx context.Context, in *service.Inbound) (*service.Outbound, error) {
	if s.accounts == nil {
		return nil, agenterr.Errorf(agenterr.ErrRouteNotFound, "agent does not mediate")
	}

	if !in.Context.Authenticated() {
		return nil, agenterr.Errorf(agenterr.ErrMalformedMessage, "mediate request from an anonymous sender")
	}

	client := in.Context.TheirVerKey

	acct, err := s.accounts.AccountByVerKey(client)

	switch {
	case err == nil:
		logger.Debugf("mediation already granted to %s", client)
	case errors.Is(err, mediation.ErrAccountNotFound):
		if err = s.policy(ctx, client); err != nil {
			logger.Infof("mediation denied to %s: %v", client, err)

			return reply(in, MediateDenyKind, &MediateDeny{Reason: err.Error()})
		}

		acct, err = s.createAccount(client)
		if err != nil {
			return nil, err
		}
	default:
		return nil, agenterr.Capability(err, "mediation account of %s", client)
	}

	routingKey, err := didkey.FromVerKey(acct.RoutingKey)
	if err != nil {
		return nil, fmt.Errorf("routing key of account %s: %w", acct.ID, err)
	}

	return reply(in, MediateGrantKind, &MediateGrant{Endpoint: acct.Endpoint, RoutingKeys: []string{routingKey}})
}

func (s *Service) createAccount(client string) (*mediation.Account, error) {
	key, err := s.wallet.CreateKey(nil)
	if err != nil {
		return nil, agenterr.Capability(err, "create routing key")
	}

	acct, created, err := s.accounts.CreateAccount(&mediation.Account{
		VerKey:     client,
		RoutingKey: key.VerKey,
		Endpoint:   s.endpoint,
		Granted:    true,
	})
	if err != nil {
		return nil, agenterr.Capability(err, "create mediation account")
	}

	if !created {
		logger.Debugf("concurrent mediate request of %s, using account %s", client, acct.ID)
	}

	return acct, nil
}

func (s *Service) handleKeylistUpdate(in *service.Inbound) (*service.Outbound, error) {
	acct, err := s.account(in)
	if err != nil {
		return nil, err
	}

	update := &KeylistUpdate{}
	if err = in.Msg.Decode(update); err != nil {
		return nil, agenterr.Wrap(agenterr.ErrMalformedMessage, err, "keylist update")
	}

	updated := make([]UpdateResponse, 0, len(update.Updates))

	for _, u := range update.Updates {
		updated = append(updated, UpdateResponse{
			RecipientKey: u.RecipientKey,
			Action:       u.Action,
			Result:       s.applyUpdate(acct.ID, u),
		})
	}

	return reply(in, KeylistUpdateResponseKind, &KeylistUpdateResponse{Updated: updated})
}

// applyUpdate applies one keylist update. Failures are reported as results,
// they never stop the batch.
func (s *Service) applyUpdate(accountID string, u Update) string {
	key, err := recipientKey(u.RecipientKey)
	if err != nil {
		logger.Infof("keylist update of %s: %v", accountID, err)

		return ResultClientError
	}

	switch u.Action {
	case ActionAdd:
		err = s.accounts.AddRecipient(accountID, key)

		switch {
		case err == nil:
			return ResultSuccess
		case errors.Is(err, mediation.ErrRecipientExists):
			return ResultNoChange
		case errors.Is(err, mediation.ErrRecipientOwnedByOther):
			return ResultClientError
		}
	case ActionRemove:
		err = s.accounts.RemoveRecipient(accountID, key)

		switch {
		case err == nil:
			return ResultSuccess
		case errors.Is(err, mediation.ErrRecipientNotFound):
			return ResultNoChange
		case errors.Is(err, mediation.ErrRecipientOwnedByOther):
			return ResultClientError
		}
	default:
		return ResultClientError
	}

	logger.Errorf("keylist update %s %s of %s: %v", u.Action, key, accountID, err)

	return ResultServerError
}

func (s *Service) handleKeylistQuery(in *service.Inbound) (*service.Outbound, error) {
	acct, err := s.account(in)
	if err != nil {
		return nil, err
	}

	query := &KeylistQuery{}
	if err = in.Msg.Decode(query); err != nil {
		return nil, agenterr.Wrap(agenterr.ErrMalformedMessage, err, "keylist query")
	}

	keys, err := s.accounts.ListRecipientKeys(acct.ID)
	if err != nil {
		return nil, agenterr.Capability(err, "list recipient keys")
	}

	start, end, err := page(query.Paginate, len(keys))
	if err != nil {
		return nil, err
	}

	list := &Keylist{
		Keys:       make([]KeylistEntry, 0, end-start),
		Pagination: &Pagination{Count: end - start, Offset: start, Remaining: len(keys) - end},
	}

	for _, k := range keys[start:end] {
		list.Keys = append(list.Keys, KeylistEntry{RecipientKey: k})
	}

	return reply(in, KeylistKind, list)
}

// account returns the mediation account of the authenticated sender.
func (s *Service) account(in *service.Inbound) (*mediation.Account, error) {
	if s.accounts == nil {
		return nil, agenterr.Errorf(agenterr.ErrRouteNotFound, "agent does not mediate")
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

func page(p *Paginate, total int) (int, int, error) {
	if p == nil {
		return 0, total, nil
	}

	if p.Offset < 0 || p.Limit < 0 {
		return 0, 0, agenterr.Errorf(agenterr.ErrMalformedMessage, "negative keylist pagination")
	}

	start := p.Offset
	if start > total {
		start = total
	}

	end := total
	if p.Limit > 0 && start+p.Limit < total {
		end = start + p.Limit
	}

	return start, end, nil
}

// recipientKey returns the base58 ed25519 verkey named by key.
func recipientKey(key string) (string, error) {
	verKey, err := didkey.ToVerKey(key)
	if err != nil {
		return "", fmt.Errorf("recipient key %s: %w", key, err)
	}

	if len(base58.Decode(verKey)) != ed25519.PublicKeySize {
		return "", fmt.Errorf("recipient key %q is not an ed25519 verkey", key)
	}

	return verKey, nil
}

func newMessage(id messagetype.Identifier, v interface{}) (service.DIDCommMsgMap, error) {
	msg, err := service.NewDIDCommMsgMap(v)
	if err != nil {
		return nil, err
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
