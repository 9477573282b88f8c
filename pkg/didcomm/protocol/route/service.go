/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package route

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/hyperledger/aries-didcomm-go/pkg/common/log"
	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/common/agenterr"
	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/common/service"
	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/messagetype"
	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/transport"
	"github.com/hyperledger/aries-didcomm-go/pkg/doc/didkey"
	"github.com/hyperledger/aries-didcomm-go/pkg/store/mediation"
)

const (
	// StateNameQueued is notified once a forwarded message waits for pickup.
	StateNameQueued = "queued"

	// RecipientKeyProperty names the recipient key in the queued notification.
	RecipientKeyProperty = "recipientKey"
	// MessageIDProperty names the queued message id in the queued notification.
	MessageIDProperty = "messageID"
	// AccountIDProperty names the account the message was queued for.
	AccountIDProperty = "accountID"
)

var logger = log.New("aries-framework/route/service")

// Service handles forward messages on a mediator. Each forward is unwrapped
// one layer and its inner message queued for the account holding the
// recipient key.
type Service struct {
	service.Message
	store *mediation.Store
}

// New returns the forward handler.
func New(prov Provider) (*Service, error) {
	if prov.MediationStore() == nil {
		return nil, errors.New("forward handler requires a mediation store")
	}

	return &Service{store: prov.MediationStore()}, nil
}

// Name returns service name.
func (s *Service) Name() string {
	return Name
}

// Accept msg checks the msg type.
func (s *Service) Accept(id messagetype.Identifier) bool {
	return id.Family == Name && id.Kind == ForwardKind
}

// HandleInbound queues the message of a forward. Forwards are never answered.
func (s *Service) HandleInbound(_ context.Context, in *service.Inbound) (*service.Outbound, error) {
	fwd := &Forward{}
	if err := in.Msg.Decode(fwd); err != nil {
		return nil, agenterr.Wrap(agenterr.ErrMalformedMessage, err, "forward")
	}

	if fwd.To == "" || len(fwd.Msg) == 0 {
		return nil, agenterr.Errorf(agenterr.ErrMalformedMessage, "forward %s has no recipient or message", fwd.ID)
	}

	recipient, err := didkey.ToVerKey(fwd.To)
	if err != nil {
		return nil, agenterr.Wrap(agenterr.ErrMalformedMessage, err, "forward recipient %s", fwd.To)
	}

	queued, err := s.store.PersistForwardMessage(recipient, fwd.Msg)
	if errors.Is(err, mediation.ErrRecipientNotFound) {
		return nil, agenterr.Wrap(agenterr.ErrRouteNotFound, err, "no account for recipient %s", recipient)
	}

	if err != nil {
		return nil, agenterr.Capability(err, "queue forward %s", fwd.ID)
	}

	logger.Debugf("queued forward %s as %s for %s", fwd.ID, queued.ID, recipient)

	s.Notify(service.StateMsg{
		ProtocolName: Name,
		Type:         service.PostState,
		StateID:      StateNameQueued,
		ThreadID:     fwd.ID,
		Properties: map[string]interface{}{
			RecipientKeyProperty: recipient,
			MessageIDProperty:    queued.ID,
			AccountIDProperty:    queued.AccountID,
		},
	})

	return nil, nil
}

// NewForward returns a forward of packed to the recipient key to.
func NewForward(to string, packed []byte) *Forward {
	return &Forward{
		Type: ForwardType.String(),
		ID:   uuid.New().String(),
		To:   to,
		Msg:  packed,
	}
}

// Wrap nests packed in one anoncrypted forward per routing key of dest. The
// innermost forward names the first recipient key and is packed for the first
// routing key; each further forward names the previous routing key. The
// result is addressed to the last routing key.
func Wrap(packager transport.Packager, packed []byte, dest *service.Destination) ([]byte, error) {
	if len(dest.RoutingKeys) == 0 {
		return packed, nil
	}

	if len(dest.RecipientKeys) == 0 {
		return nil, errors.New("wrap forward: destination has no recipient keys")
	}

	keys := append([]string{dest.RecipientKeys[0]}, dest.RoutingKeys...)

	for i, to := range keys[:len(keys)-1] {
		raw, err := json.Marshal(NewForward(to, packed))
		if err != nil {
			return nil, fmt.Errorf("wrap forward: marshal: %w", err)
		}

		packed, err = packager.PackMessage(&transport.Envelope{
			Message: raw,
			ToKeys:  []string{keys[i+1]},
		})
		if err != nil {
			return nil, fmt.Errorf("wrap forward for %s: %w", keys[i+1], err)
		}
	}

	return packed, nil
}
