/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package route

import (
	"encoding/json"

	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/messagetype"
	"github.com/hyperledger/aries-didcomm-go/pkg/store/mediation"
)

const (
	// Name is the routing protocol family.
	Name = messagetype.Routing

	// ForwardKind is the kind of a forward message.
	ForwardKind = "forward"
)

// ForwardType is the forward message type.
var ForwardType = messagetype.New(Name, 1, 0, ForwardKind) //nolint:gochecknoglobals

// Forward carries a packed message for the recipient named by To.
type Forward struct {
	Type string `json:"@type,omitempty"`
	ID   string `json:"@id,omitempty"`
	// To is the recipient key, base58 or did:key.
	To  string          `json:"to"`
	Msg json.RawMessage `json:"msg"`
}

// Provider contains dependencies for the forward handler.
type Provider interface {
	MediationStore() *mediation.Store
}
