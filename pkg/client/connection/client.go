/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package connection

import (
	"context"
	"errors"
	"fmt"

	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/protocol/connection"
	connectionstore "github.com/hyperledger/aries-didcomm-go/pkg/store/connection"
)

// ErrConnectionPending is returned when an accepted invitation left no invitee record.
var ErrConnectionPending = errors.New("connection record not found for invitation")

type provider interface {
	Service(id string) (interface{}, error)
	Initiate(ctx context.Context, protocol string, params interface{}) ([]byte, error)
	Continue(ctx context.Context, protocol, thid string, action interface{}) ([]byte, error)
}

type protocolService interface {
	CreateInvitation(ctx context.Context, params connection.CreateInvitationParams) (*connection.Invitation, error)
	QueryConnections(states ...string) ([]*connectionstore.Record, error)
	GetConnection(connID string) (*connectionstore.Record, error)
}

// Client is a connection management SDK client.
type Client struct {
	prov provider
	svc  protocolService
}

// New creates connection Client.
func New(prov provider) (*Client, error) {
	svc, err := prov.Service(connection.Connection)
	if err != nil {
		return nil, err
	}

	connSvc, ok := svc.(protocolService)
	if !ok {
		return nil, errors.New("cast service to connection service failed")
	}

	return &Client{prov: prov, svc: connSvc}, nil
}

// CreateInvitation creates an invitation. An empty label uses the agent label.
func (c *Client) CreateInvitation(ctx context.Context, label string) (*connection.Invitation, error) {
	inv, err := c.svc.CreateInvitation(ctx, connection.CreateInvitationParams{Label: label})
	if err != nil {
		return nil, fmt.Errorf("create invitation: %w", err)
	}

	return inv, nil
}

// ReceiveInvitation accepts inv and sends the connection request. The invitee
// record is returned, completed already when the inviter answered on the
// request connection.
func (c *Client) ReceiveInvitation(ctx context.Context, inv *connection.Invitation) (*connectionstore.Record, error) {
	if _, err := c.prov.Initiate(ctx, connection.Connection, inv); err != nil {
		return nil, fmt.Errorf("receive invitation: %w", err)
	}

	records, err := c.svc.QueryConnections()
	if err != nil {
		return nil, fmt.Errorf("receive invitation: %w", err)
	}

	for _, rec := range records {
		if rec.InvitationID == inv.ID && rec.Role == connection.RoleInvitee {
			return rec, nil
		}
	}

	return nil, fmt.Errorf("receive invitation %s: %w", inv.ID, ErrConnectionPending)
}

// AcceptRequest answers a pending request when the agent does not auto accept.
func (c *Client) AcceptRequest(ctx context.Context, connectionID string) error {
	if _, err := c.prov.Continue(ctx, connection.Connection, connectionID, connection.AcceptRequest{}); err != nil {
		return fmt.Errorf("accept request: %w", err)
	}

	return nil
}

// Abandon ends the connection exchange, telling the other side why.
func (c *Client) Abandon(ctx context.Context, connectionID, code, reason string) error {
	_, err := c.prov.Continue(ctx, connection.Connection, connectionID, connection.Abandon{Code: code, Reason: reason})
	if err != nil {
		return fmt.Errorf("abandon connection: %w", err)
	}

	return nil
}

// QueryConnections returns the connections in any of states, all when none is given.
func (c *Client) QueryConnections(states ...string) ([]*connectionstore.Record, error) {
	return c.svc.QueryConnections(states...)
}

// GetConnection returns the connection record of connectionID.
func (c *Client) GetConnection(connectionID string) (*connectionstore.Record, error) {
	return c.svc.GetConnection(connectionID)
}
