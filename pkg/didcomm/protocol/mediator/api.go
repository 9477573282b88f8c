/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package mediator

import (
	"context"
	"errors"

	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/messagetype"
	"github.com/hyperledger/aries-didcomm-go/pkg/store/mediation"
	"github.com/hyperledger/aries-didcomm-go/pkg/wallet"
	"github.com/hyperledger/aries-didcomm-go/spi/storage"
)

// Coordination is the coordinate mediation protocol family.
const Coordination = messagetype.CoordinateMediation

// message kinds.
const (
	MediateRequestKind        = "mediate-request"
	MediateGrantKind          = "mediate-grant"
	MediateDenyKind           = "mediate-deny"
	KeylistUpdateKind         = "keylist-update"
	KeylistUpdateResponseKind = "keylist-update-response"
	KeylistQueryKind          = "keylist-query"
	KeylistKind               = "keylist"
)

// keylist update actions.
const (
	ActionAdd    = "add"
	ActionRemove = "remove"
)

// keylist update results.
const (
	ResultSuccess     = "success"
	ResultNoChange    = "no_change"
	ResultClientError = "client_error"
	ResultServerError = "server_error"
)

// states notified by the client.
const (
	StateNameRequested      = "requested"
	StateNameGranted        = "granted"
	StateNameDenied         = "denied"
	StateNameKeylistUpdated = "keylist-updated"
	StateNameKeylist        = "keylist"
)

// properties of client notifications.
const (
	ConnectionIDProperty = "connectionID"
	ConfigProperty       = "config"
	ReasonProperty       = "reason"
	UpdatedProperty      = "updated"
	KeysProperty         = "keys"
	PaginationProperty   = "pagination"
)

var (
	// ErrRouterNotGranted no mediator granted routing on the connection.
	ErrRouterNotGranted = errors.New("router not granted on connection")
	// ErrRequestNotFound a grant or deny answers no request sent on the connection.
	ErrRequestNotFound = errors.New("mediate request not found")
)

// Policy decides whether a new client key gets an account. An error denies
// the request with its message as reason.
type Policy func(ctx context.Context, verKey string) error

// GrantAll is the policy accepting every authenticated client.
func GrantAll(context.Context, string) error {
	return nil
}

// Provider contains dependencies for the mediator coordination protocol.
type Provider interface {
	// MediationStore is the mediator side persistence.
	MediationStore() *mediation.Store
	// StorageProvider keeps the client side grants.
	StorageProvider() storage.Provider
	Wallet() wallet.Wallet
	// Endpoint is the inbound endpoint granted to clients.
	Endpoint() string
	MediatorPolicy() Policy
}

// MediateRequestParams asks the mediator at the other end of the connection for routing.
type MediateRequestParams struct {
	ConnectionID string
	// ReturnRoute asks the mediator to answer on the inbound connection.
	ReturnRoute bool
}

// KeylistUpdateParams changes the keys the mediator routes for.
type KeylistUpdateParams struct {
	ConnectionID string
	Updates      []Update
}

// KeylistQueryParams lists the keys the mediator routes for.
type KeylistQueryParams struct {
	ConnectionID string
	Paginate     *Paginate
}

// ProtocolService is the mediation client view used to route new keys.
type ProtocolService interface {
	// Config gives back the routing granted on the connection.
	Config(connID string) (*Config, error)
	// GetConnections returns the connections a mediator granted routing on.
	GetConnections() ([]string, error)
}

func msgType(kind string) messagetype.Identifier {
	return messagetype.New(Coordination, 1, 0, kind)
}
