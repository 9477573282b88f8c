/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package transport

import (
	"context"

	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/common/service"
)

// Envelope holds message data and metadata for inbound and outbound messaging.
type Envelope struct {
	Message []byte
	// FromKey is the base58 sender verkey. Empty for anoncrypt.
	FromKey string
	// ToKeys stores base58 verification keys for an outbound message.
	ToKeys []string
	// ToKey holds the key that was used to decrypt an inbound message.
	ToKey string
}

// Packager manages the handling, building and parsing of DIDComm raw messages in JSON envelopes.
//
// These envelopes are used as wire-level wrappers of messages sent in Aries agent-agent communication.
type Packager interface {
	// PackMessage packs a message for one or more recipients. A FromKey selects authcrypt.
	PackMessage(envelope *Envelope) ([]byte, error)

	// UnpackMessage unpacks a message.
	UnpackMessage(encMessage []byte) (*Envelope, error)
}

// OutboundTransport interface definition for transport layer.
// This is the client side of the agent.
type OutboundTransport interface {
	// Send sends an envelope to the destination. The returned bytes hold an
	// envelope sent back on the same connection, if any.
	Send(ctx context.Context, data []byte, destination *service.Destination) ([]byte, error)

	// Accept reports whether the transport handles the endpoint.
	Accept(url string) bool
}

// InboundMessageHandler handles the inbound requests. The returned bytes are a
// packed reply to write back on the inbound connection, nil when there is none.
type InboundMessageHandler func(ctx context.Context, envelope []byte) ([]byte, error)

// InboundTransport interface definition for the server side of the agent.
type InboundTransport interface {
	// Start starts the inbound transport.
	Start(handler InboundMessageHandler) error

	// Stop stops the inbound transport.
	Stop() error

	// Endpoint returns the externally reachable address.
	Endpoint() string
}
