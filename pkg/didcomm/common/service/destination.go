/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package service

// Destination provides the recipientKeys, routingKeys, and serviceEndpoint for an outbound message.
type Destination struct {
	RecipientKeys   []string
	ServiceEndpoint string
	RoutingKeys     []string
}

// DIDCommContext describes where an inbound message came from once its envelope was opened.
type DIDCommContext struct {
	// MyVerKey is the local key the envelope was addressed to.
	MyVerKey string
	// TheirVerKey is the authenticated sender key, empty for anoncrypt.
	TheirVerKey string
	// ConnectionID is set when the key pair belongs to a known connection.
	ConnectionID string
}

// Authenticated reports whether the sender of the message is known.
func (c *DIDCommContext) Authenticated() bool {
	return c != nil && c.TheirVerKey != ""
}
