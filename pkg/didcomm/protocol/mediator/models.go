/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package mediator

import (
	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/protocol/decorator"
)

// MediateRequest asks the mediator to host an account for the sender key.
type MediateRequest struct {
	Type      string               `json:"@type,omitempty"`
	ID        string               `json:"@id,omitempty"`
	Transport *decorator.Transport `json:"~transport,omitempty"`
}

// MediateGrant gives the endpoint and routing keys to publish in DID documents.
type MediateGrant struct {
	Type        string   `json:"@type,omitempty"`
	ID          string   `json:"@id,omitempty"`
	Endpoint    string   `json:"endpoint"`
	RoutingKeys []string `json:"routing_keys"`
}

// MediateDeny refuses a mediate request.
type MediateDeny struct {
	Type   string `json:"@type,omitempty"`
	ID     string `json:"@id,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// KeylistUpdate adds or removes recipient keys of the account.
type KeylistUpdate struct {
	Type    string   `json:"@type,omitempty"`
	ID      string   `json:"@id,omitempty"`
	Updates []Update `json:"updates"`
}

// Update is one item of a keylist update.
type Update struct {
	RecipientKey string `json:"recipient_key"`
	Action       string `json:"action"`
}

// KeylistUpdateResponse reports the outcome of each update.
type KeylistUpdateResponse struct {
	Type    string           `json:"@type,omitempty"`
	ID      string           `json:"@id,omitempty"`
	Updated []UpdateResponse `json:"updated"`
}

// UpdateResponse is the outcome of one update.
type UpdateResponse struct {
	RecipientKey string `json:"recipient_key"`
	Action       string `json:"action"`
	Result       string `json:"result"`
}

// KeylistQuery asks for the recipient keys of the account.
type KeylistQuery struct {
	Type     string    `json:"@type,omitempty"`
	ID       string    `json:"@id,omitempty"`
	Paginate *Paginate `json:"paginate,omitempty"`
}

// Paginate selects a page of the keylist. A zero limit selects every key
// from offset on.
type Paginate struct {
	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`
}

// Keylist answers a keylist query.
type Keylist struct {
	Type       string         `json:"@type,omitempty"`
	ID         string         `json:"@id,omitempty"`
	Keys       []KeylistEntry `json:"keys"`
	Pagination *Pagination    `json:"pagination,omitempty"`
}

// KeylistEntry is a recipient key held by the account.
type KeylistEntry struct {
	RecipientKey string `json:"recipient_key"`
}

// Pagination describes the page returned by a keylist.
type Pagination struct {
	Count     int `json:"count"`
	Offset    int `json:"offset"`
	Remaining int `json:"remaining"`
}
