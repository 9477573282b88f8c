/*
Copyright Avast Software. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package connection

import (
	"encoding/json"
	"fmt"

	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/messagetype"
	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/protocol/decorator"
	"github.com/hyperledger/aries-didcomm-go/pkg/doc/did"
)

const (
	// InvitationKind is the invitation message kind.
	InvitationKind = "invitation"
	// RequestKind is the request message kind.
	RequestKind = "request"
	// ResponseKind is the response message kind.
	ResponseKind = "response"
	// ProblemReportKind is the connections problem report kind.
	ProblemReportKind = "problem_report"
	// PingKind is the trust ping kind.
	PingKind = "ping"
	// PingResponseKind is the trust ping response kind.
	PingResponseKind = "ping_response"
)

// nolint:gochecknoglobals
var (
	// InvitationMsgType defines the connection invitation message type.
	InvitationMsgType = messagetype.New(messagetype.Connections, 1, 0, InvitationKind)
	// RequestMsgType defines the connection request message type.
	RequestMsgType = messagetype.New(messagetype.Connections, 1, 0, RequestKind)
	// ResponseMsgType defines the connection response message type.
	ResponseMsgType = messagetype.New(messagetype.Connections, 1, 0, ResponseKind)
	// ProblemReportMsgType defines the connection problem report message type.
	ProblemReportMsgType = messagetype.New(messagetype.Connections, 1, 0, ProblemReportKind)
	// PingMsgType defines the trust ping message type.
	PingMsgType = messagetype.New(messagetype.TrustPing, 1, 0, PingKind)
	// PingResponseMsgType defines the trust ping response message type.
	PingResponseMsgType = messagetype.New(messagetype.TrustPing, 1, 0, PingResponseKind)
	// SignatureType is the type of the connection~sig decorator.
	SignatureType = messagetype.Identifier{
		Prefix: messagetype.DIDSovPrefix, Family: messagetype.Signature, Major: 1, Minor: 0, Kind: "ed25519Sha512_single",
	}
)

// Invitation model
//
// Invitation defines Connection protocol invitation message
// https://github.com/hyperledger/aries-rfcs/tree/main/features/0160-connection-protocol#0-invitation-to-connect
type Invitation struct {
	// the Type of the connection invitation
	Type string `json:"@type,omitempty"`

	// the ID of the connection invitation
	ID string `json:"@id,omitempty"`

	// the Label of the connection invitation
	Label string `json:"label,omitempty"`

	// the RecipientKeys for the connection invitation
	RecipientKeys []string `json:"recipientKeys,omitempty"`

	// the Service endpoint of the connection invitation
	ServiceEndpoint string `json:"serviceEndpoint,omitempty"`

	// the RoutingKeys of the connection invitation
	RoutingKeys []string `json:"routingKeys,omitempty"`
}

// ParseInvitation decodes an invitation.
func ParseInvitation(raw []byte) (*Invitation, error) {
	var inv Invitation
	if err := json.Unmarshal(raw, &inv); err != nil {
		return nil, fmt.Errorf("decode invitation: %w", err)
	}

	return &inv, nil
}

// Request defines a2a Connection request
// https://github.com/hyperledger/aries-rfcs/tree/main/features/0160-connection-protocol#1-connection-request
type Request struct {
	Type       string            `json:"@type,omitempty"`
	ID         string            `json:"@id,omitempty"`
	Label      string            `json:"label"`
	Thread     *decorator.Thread `json:"~thread,omitempty"`
	Connection *ConnectionBody   `json:"connection,omitempty"`
}

// Response defines a2a Connection response
// https://github.com/hyperledger/aries-rfcs/tree/main/features/0160-connection-protocol#2-connection-response
type Response struct {
	Type                string               `json:"@type,omitempty"`
	ID                  string               `json:"@id,omitempty"`
	ConnectionSignature *decorator.Signature `json:"connection~sig,omitempty"`
	Thread              *decorator.Thread    `json:"~thread,omitempty"`
	PleaseAck           *decorator.PleaseAck `json:"~please_ack,omitempty"`
}

// ConnectionBody defines connection body of connection request.
type ConnectionBody struct {
	DID    string   `json:"DID,omitempty"`
	DIDDoc *did.Doc `json:"DIDDoc,omitempty"`
}

// Ping is a trust ping.
type Ping struct {
	Type              string            `json:"@type,omitempty"`
	ID                string            `json:"@id,omitempty"`
	Comment           string            `json:"comment,omitempty"`
	ResponseRequested *bool             `json:"response_requested,omitempty"`
	Thread            *decorator.Thread `json:"~thread,omitempty"`
}

// AcceptInvitation is the invitee's decision to send a request.
type AcceptInvitation struct {
	Label string
}

// AcceptRequest is the inviter's decision to answer a request.
type AcceptRequest struct{}

// Abandon ends a connection exchange locally and tells the other side when it is known.
type Abandon struct {
	Code   string
	Reason string
}

// CreateInvitationParams describes a new invitation.
type CreateInvitationParams struct {
	Label string
}
