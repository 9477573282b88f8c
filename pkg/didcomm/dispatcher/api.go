/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package dispatcher

import (
	"context"

	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/common/service"
)

// ProtocolService is a protocol the inbound handler dispatches to.
type ProtocolService interface {
	service.Handler
}

// Outbound delivers the messages protocols produce.
type Outbound interface {
	// Pack encrypts out for its destination, wrapping it in forwards when the
	// destination has routing keys. in is the context of the inbound message
	// out replies to, nil when out starts an exchange.
	Pack(out *service.Outbound, in *service.DIDCommContext) (*Packed, error)
	// Send packs out and hands it to a transport accepting the destination. The
	// returned bytes are an envelope the other side answered on the same
	// connection, nil when there is none.
	Send(ctx context.Context, out *service.Outbound, in *service.DIDCommContext) ([]byte, error)
}

// ConnectionLookup finds the connection a key pair belongs to and where its
// other side receives messages.
type ConnectionLookup interface {
	GetConnectionIDByTheirKey(verKey string) (string, error)
	Destination(connectionID string) (*service.Destination, string, error)
}

// Packed is an envelope ready for a transport.
type Packed struct {
	Envelope    []byte
	Destination *service.Destination
}
