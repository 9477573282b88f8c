/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package ws

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/pkg/errors"
	"nhooyr.io/websocket"

	"github.com/hyperledger/aries-didcomm-go/pkg/common/log"
	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/transport"
)

var logger = log.New("aries-framework/ws")

const readHeaderTimeout = 10 * time.Second

// Inbound http(ws) type.
type Inbound struct {
	externalAddr string
	server       *http.Server

	mu       sync.Mutex
	listener net.Listener
}

// NewInbound creates a new WebSocket inbound transport instance.
func NewInbound(internalAddr, externalAddr string) (*Inbound, error) {
	if internalAddr == "" {
		return nil, errors.New("websocket address is mandatory")
	}

	if externalAddr == "" {
		externalAddr = internalAddr
	}

	return &Inbound{
		externalAddr: externalAddr,
		server:       &http.Server{Addr: internalAddr, ReadHeaderTimeout: readHeaderTimeout},
	}, nil
}

// Start the http(ws) server.
func (i *Inbound) Start(handler transport.InboundMessageHandler) error {
	h, err := newInboundHandler(handler)
	if err != nil {
		return errors.Wrap(err, "websocket server start failed")
	}

	ln, err := net.Listen("tcp", i.server.Addr)
	if err != nil {
		return errors.Wrapf(err, "websocket server listen on %s", i.server.Addr)
	}

	i.mu.Lock()
	i.server.Handler = h
	i.listener = ln
	i.mu.Unlock()

	go func() {
		if err := i.server.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("websocket server on [%s] stopped: %v", i.server.Addr, err)
		}
	}()

	return nil
}

// Addr is the address the server listens on once started.
func (i *Inbound) Addr() string {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.listener == nil {
		return i.server.Addr
	}

	return i.listener.Addr().String()
}

// Stop the http(ws) server.
func (i *Inbound) Stop() error {
	if err := i.server.Shutdown(context.Background()); err != nil {
		return errors.Wrap(err, "websocket server shutdown failed")
	}

	return nil
}

// Endpoint provides the http(ws) connection details.
func (i *Inbound) Endpoint() string {
	return i.externalAddr
}

func newInboundHandler(handler transport.InboundMessageHandler) (http.Handler, error) {
	if handler == nil {
		logger.Errorf("Error creating a new inbound handler: message handler function is nil")

		return nil, errors.New("creation of inbound handler failed")
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// agents connect from anywhere, the envelope carries the authentication
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
		if err != nil {
			logger.Errorf("failed to upgrade the connection : %v", err)

			return
		}

		serve(r.Context(), conn, handler)
	}), nil
}

// serve reads envelopes off conn until it closes. Replies the handler returns
// are written back on the same connection.
func serve(ctx context.Context, conn *websocket.Conn, handler transport.InboundMessageHandler) {
	defer closeConn(conn)

	for {
		_, message, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != websocket.StatusNormalClosure && ctx.Err() == nil {
				logger.Warnf("Error reading request message: %v", err)
			}

			return
		}

		reply, err := handler(ctx, message)
		if err != nil {
			logger.Errorf("incoming msg processing failed: %v", err)

			continue
		}

		if len(reply) == 0 {
			continue
		}

		if err := conn.Write(ctx, websocket.MessageText, reply); err != nil {
			logger.Errorf("error writing the reply: %v", err)

			return
		}
	}
}

func closeConn(conn *websocket.Conn) {
	err := conn.Close(websocket.StatusNormalClosure, "closing the connection")
	if err != nil && websocket.CloseStatus(err) != websocket.StatusNormalClosure {
		logger.Debugf("connection close: %v", err)
	}
}
