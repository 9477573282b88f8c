/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package ws

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"nhooyr.io/websocket"

	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/common/service"
	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/transport"
)

// OutboundClient websocket outbound.
type OutboundClient struct {
	pool *connPool
}

// OutboundOpt configures the websocket outbound.
type OutboundOpt func(c *OutboundClient)

// WithInboundHandler keeps connections open and hands the envelopes the other
// side sends back on them to handler.
func WithInboundHandler(handler transport.InboundMessageHandler) OutboundOpt {
	return func(c *OutboundClient) {
		if handler != nil {
			c.pool = newConnPool(handler)
		}
	}
}

// NewOutbound creates a client for Outbound WS transport.
func NewOutbound(opts ...OutboundOpt) *OutboundClient {
	c := &OutboundClient{}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Send sends a2a data via WS. Without an inbound handler the connection is
// closed once the envelope is written.
func (cs *OutboundClient) Send(ctx context.Context, data []byte, destination *service.Destination) ([]byte, error) {
	if destination == nil || destination.ServiceEndpoint == "" {
		return nil, errors.New("url is mandatory")
	}

	url := destination.ServiceEndpoint

	if cs.pool != nil {
		conn, err := cs.pool.fetch(ctx, url)
		if err != nil {
			return nil, err
		}

		if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
			cs.pool.drop(url, conn)

			return nil, errors.Wrap(err, "websocket write message")
		}

		return nil, nil
	}

	conn, _, err := websocket.Dial(ctx, url, nil) //nolint:bodyclose
	if err != nil {
		return nil, errors.Wrap(err, "websocket client")
	}

	defer closeConn(conn)

	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		return nil, errors.Wrap(err, "websocket write message")
	}

	return nil, nil
}

// Accept checks for the url scheme.
func (cs *OutboundClient) Accept(url string) bool {
	return strings.HasPrefix(url, "ws:") || strings.HasPrefix(url, "wss:")
}

// Close closes the pooled connections.
func (cs *OutboundClient) Close() {
	if cs.pool != nil {
		cs.pool.close()
	}
}
