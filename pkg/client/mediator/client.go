/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package mediator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hyperledger/aries-didcomm-go/pkg/common/log"
	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/common/service"
	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/protocol/mediator"
)

const (
	defaultTimeout = 10 * time.Second
	eventBuffer    = 8
)

var (
	// ErrDenied is returned when the mediator refuses routing.
	ErrDenied = errors.New("mediation denied")
	// ErrTimeout is returned when the mediator does not answer in time.
	ErrTimeout = errors.New("timeout waiting for the mediator")
)

var logger = log.New("aries-framework/client/mediator")

// provider contains dependencies for the mediator client and is typically the framework itself.
type provider interface {
	Service(id string) (interface{}, error)
	Initiate(ctx context.Context, protocol string, params interface{}) ([]byte, error)
}

// protocolService defines the mediator coordination service.
type protocolService interface {
	RegisterMsgEvent(ch chan<- service.StateMsg) error
	UnregisterMsgEvent(ch chan<- service.StateMsg) error

	// Config returns the router's configuration.
	Config(connID string) (*mediator.Config, error)

	// GetConnections returns the connections a mediator granted routing on.
	GetConnections() ([]string, error)
}

// Client enable access to mediator api.
type Client struct {
	prov        provider
	routeSvc    protocolService
	timeout     time.Duration
	returnRoute bool
}

// Option configures the client.
type Option func(c *Client)

// WithTimeout option is for definition timeout value waiting for responses received from the router.
func WithTimeout(t time.Duration) Option {
	return func(c *Client) {
		c.timeout = t
	}
}

// WithReturnRoute asks the mediator to answer registrations on the request connection.
func WithReturnRoute() Option {
	return func(c *Client) {
		c.returnRoute = true
	}
}

// New return new instance of mediator client.
func New(ctx provider, opts ...Option) (*Client, error) {
	svc, err := ctx.Service(mediator.Coordination)
	if err != nil {
		return nil, err
	}

	routeSvc, ok := svc.(protocolService)
	if !ok {
		return nil, errors.New("cast service to route service failed")
	}

	c := &Client{
		prov:     ctx,
		routeSvc: routeSvc,
		timeout:  defaultTimeout,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Register the agent with the router at the other end of the connection. It
// waits for the grant and returns the endpoint and routing keys.
func (c *Client) Register(ctx context.Context, connectionID string) (*mediator.Config, error) {
	msg, err := c.exchange(ctx, connectionID, &mediator.MediateRequestParams{
		ConnectionID: connectionID,
		ReturnRoute:  c.returnRoute,
	}, mediator.StateNameGranted, mediator.StateNameDenied)
	if err != nil {
		return nil, fmt.Errorf("router registration : %w", err)
	}

	if msg.StateID == mediator.StateNameDenied {
		reason, _ := msg.Properties[mediator.ReasonProperty].(string)

		return nil, fmt.Errorf("router registration : %w: %s", ErrDenied, reason)
	}

	if conf, ok := msg.Properties[mediator.ConfigProperty].(*mediator.Config); ok {
		return conf, nil
	}

	return c.GetConfig(connectionID)
}

// AddKeys asks the mediator to route for keys.
func (c *Client) AddKeys(ctx context.Context, connectionID string, keys ...string) ([]mediator.UpdateResponse, error) {
	return c.updateKeys(ctx, connectionID, mediator.ActionAdd, keys)
}

// RemoveKeys asks the mediator to stop routing for keys.
func (c *Client) RemoveKeys(ctx context.Context, connectionID string,
	keys ...string) ([]mediator.UpdateResponse, error) {
	return c.updateKeys(ctx, connectionID, mediator.ActionRemove, keys)
}

func (c *Client) updateKeys(ctx context.Context, connectionID, action string,
	keys []string) ([]mediator.UpdateResponse, error) {
	updates := make([]mediator.Update, len(keys))
	for i, k := range keys {
		updates[i] = mediator.Update{RecipientKey: k, Action: action}
	}

	msg, err := c.exchange(ctx, connectionID, &mediator.KeylistUpdateParams{
		ConnectionID: connectionID,
		Updates:      updates,
	}, mediator.StateNameKeylistUpdated)
	if err != nil {
		return nil, fmt.Errorf("keylist update : %w", err)
	}

	updated, _ := msg.Properties[mediator.UpdatedProperty].([]mediator.UpdateResponse)

	return updated, nil
}

// Keys returns the keys the mediator routes for this agent.
func (c *Client) Keys(ctx context.Context, connectionID string) ([]string, error) {
	msg, err := c.exchange(ctx, connectionID, &mediator.KeylistQueryParams{ConnectionID: connectionID},
		mediator.StateNameKeylist)
	if err != nil {
		return nil, fmt.Errorf("keylist query : %w", err)
	}

	keys, _ := msg.Properties[mediator.KeysProperty].([]string)

	return keys, nil
}

// GetConnections returns the connections of the granted routers.
func (c *Client) GetConnections() ([]string, error) {
	connections, err := c.routeSvc.GetConnections()
	if err != nil {
		return nil, fmt.Errorf("get router connections : %w", err)
	}

	return connections, nil
}

// GetConfig returns the router's configuration.
func (c *Client) GetConfig(connectionID string) (*mediator.Config, error) {
	conf, err := c.routeSvc.Config(connectionID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch routing configuration : %w", err)
	}

	return conf, nil
}

// exchange starts params and waits for one of states on the connection.
func (c *Client) exchange(ctx context.Context, connectionID string, params interface{},
	states ...string) (service.StateMsg, error) {
	events := make(chan service.StateMsg, eventBuffer)

	if err := c.routeSvc.RegisterMsgEvent(events); err != nil {
		return service.StateMsg{}, fmt.Errorf("register events : %w", err)
	}

	defer func() {
		if err := c.routeSvc.UnregisterMsgEvent(events); err != nil {
			logger.Warnf("unregister events: %v", err)
		}
	}()

	if _, err := c.prov.Initiate(ctx, mediator.Coordination, params); err != nil {
		return service.StateMsg{}, err
	}

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	for {
		select {
		case msg := <-events:
			if msg.Properties[mediator.ConnectionIDProperty] != connectionID {
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
