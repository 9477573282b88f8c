/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package service

import (
	"context"

	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/messagetype"
)

// Inbound is an opened and classified inbound message.
type Inbound struct {
	Type    messagetype.Identifier
	Msg     DIDCommMsgMap
	Context DIDCommContext
}

// Outbound is a message a protocol wants delivered.
//
// When neither ConnectionID nor Destination is set the message is a reply
// to the sender of the inbound message being handled.
type Outbound struct {
	Msg          DIDCommMsgMap
	ConnectionID string
	Destination  *Destination
	// MyVerKey is the sender key used with Destination, empty for anoncrypt.
	MyVerKey string
}

// InboundHandler is handler for inbound messages.
type InboundHandler interface {
	HandleInbound(ctx context.Context, in *Inbound) (*Outbound, error)
}

// Handler provides protocol service handle api.
type Handler interface {
	InboundHandler
	// Name of the protocol family.
	Name() string
	// Accept reports whether the handler processes messages of this type.
	Accept(id messagetype.Identifier) bool
}

// Initiator is a protocol that can start an exchange or advance one on local request.
type Initiator interface {
	// Initiate starts an exchange described by params.
	Initiate(ctx context.Context, params interface{}) (*Outbound, error)
	// Continue applies a local decision to the exchange of thid.
	Continue(ctx context.Context, thid string, action interface{}) (*Outbound, error)
}
