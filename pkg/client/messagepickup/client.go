/*
Copyright Scoir Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package messagepickup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/common/service"
	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/protocol/messagepickup"
)

const (
	defaultTimeout = 10 * time.Second
	eventBuffer    = 8
)

// ErrTimeout is returned when the mediator does not answer in time.
var ErrTimeout = errors.New("timeout waiting for the mediator")

type provider interface {
	Service(id string) (interface{}, error)
	Initiate(ctx context.Context, protocol string, params interface{}) ([]byte, error)
}

type protocolService interface {
	RegisterMsgEvent(ch chan<- service.StateMsg) error
	UnregisterMsgEvent(ch chan<- service.StateMsg) error
}

// Client enable access to message pickup api.
type Client struct {
	prov             provider
	messagepickupSvc protocolService
	timeout          time.Duration
}

// Option configures the client.
type Option func(c *Client)

// WithTimeout sets how long the client waits for the mediator.
func WithTimeout(t time.Duration) Option {
	return func(c *Client) {
		c.timeout = t
	}
}

// New return new instance of messagepickup client.
func New(ctx provider, opts ...Option) (*Client, error) {
	svc, err := ctx.Service(messagepickup.MessagePickup)
	if err != nil {
		return nil, fmt.Errorf("failed to create msg pickup service: %w", err)
	}

	messagepickupSvc, ok := svc.(protocolService)
	if !ok {
		return nil, errors.New("cast service to message pickup service failed")
	}

	c := &Client{
		prov:             ctx,
		messagepickupSvc: messagepickupSvc,
		timeout:          defaultTimeout,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// StatusRequest request a status message. An empty recipient key asks for
// every key of the account.
func (r *Client) StatusRequest(ctx context.Context, connectionID, recipientKey string) (*messagepickup.Status, error) {
	msg, err := r.exchange(ctx, connectionID, &messagepickup.StatusRequestParams{
		ConnectionID: connectionID,
		RecipientKey: recipientKey,
	}, messagepickup.StateNameStatus)
	if err != nil {
		return nil, fmt.Errorf("message pickup client - status request: %w", err)
	}

	sts, ok := msg.Properties[messagepickup.StatusProperty].(*messagepickup.Status)
	if !ok {
		return nil, errors.New("message pickup client - status request: status missing")
	}

	return sts, nil
}

// Pickup requests up to limit queued messages. The delivered messages are
// handled by the agent, their ids are returned. An empty queue is answered
// with a status and gives no ids.
func (r *Client) Pickup(ctx context.Context, connectionID string, limit int) ([]string, error) {
	msg, err := r.exchange(ctx, connectionID, &messagepickup.DeliveryRequestParams{
		ConnectionID: connectionID,
		Limit:        limit,
	}, messagepickup.StateNameDelivered, messagepickup.StateNameStatus)
	if err != nil {
		return nil, fmt.Errorf("message pickup client - delivery request: %w", err)
	}

	delivered, _ := msg.Properties[messagepickup.DeliveredProperty].([]string)

	return delivered, nil
}

func (r *Client) exchange(ctx context.Context, connectionID string, params interface{},
	states ...string) (service.StateMsg, error) {
	events := make(chan service.StateMsg, eventBuffer)

	if err := r.messagepickupSvc.RegisterMsgEvent(events); err != nil {
		return service.StateMsg{}, err
	}

	defer r.messagepickupSvc.UnregisterMsgEvent(events) //nolint:errcheck

	if _, err := r.prov.Initiate(ctx, messagepickup.MessagePickup, params); err != nil {
		return service.StateMsg{}, err
	}

	timer := time.NewTimer(r.timeout)
	defer timer.Stop()

	for {
		select {
		case msg := <-events:
			if msg.Properties[messagepickup.ConnectionIDProperty] != connectionID {
				continue
			}

			for _, s := range states {
				if msg.StateID == s {
					return msg, nil
				}
			}
		case <-timer.C:
			return service.StateMsg{}, ErrTimeout
		case <-ctx.Done():
			return service.StateMsg{}, ctx.Err()
		}
	}
}
