/*
Copyright Scoir Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package messagepickup

import (
	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/messagetype"
	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/transport"
	"github.com/hyperledger/aries-didcomm-go/pkg/store/mediation"
)

// MessagePickup defines the protocol name.
const MessagePickup = messagetype.MessagePickup

// message kinds.
const (
	StatusRequestKind      = "status-request"
	StatusKind             = "status"
	DeliveryRequestKind    = "delivery-request"
	DeliveryKind           = "delivery"
	MessagesReceivedKind   = "messages-received"
	LiveDeliveryChangeKind = "live-delivery-change"
)

// states notified by the client.
const (
	StateNameStatus    = "status"
	StateNameDelivered = "delivered"
)

// properties of client notifications.
const (
	ConnectionIDProperty = "connectionID"
	StatusProperty       = "status"
	DeliveredProperty    = "delivered"
)

// CodeLiveModeNotSupported is the problem code answering a live delivery request.
const CodeLiveModeNotSupported = "live-mode-not-supported"

// Provider contains dependencies for the message pickup protocol.
type Provider interface {
	// MediationStore holds the queues served to clients.
	MediationStore() *mediation.Store
	// InboundMessageHandler takes the envelopes picked up from a mediator.
	InboundMessageHandler() transport.InboundMessageHandler
}

// StatusRequestParams asks the mediator on the connection for the queue status.
type StatusRequestParams struct {
	ConnectionID string
	RecipientKey string
}

// DeliveryRequestParams asks the mediator on the connection for queued messages.
type DeliveryRequestParams struct {
	ConnectionID string
	Limit        int
	RecipientKey string
}

// MessagesReceivedParams acknowledges messages picked up from the mediator.
type MessagesReceivedParams struct {
	ConnectionID string
	MessageIDs   []string
}

func msgType(kind string) messagetype.Identifier {
	return messagetype.New(MessagePickup, 2, 0, kind)
}
