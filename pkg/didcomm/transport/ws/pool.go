/*
Copyright SecureKey Technologies Inc. All Rights Reserved.
SPDX-License-Identifier: Apache-2.0
*/

package ws

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"nhooyr.io/websocket"

	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/transport"
)

// connPool keeps one open connection per endpoint. Envelopes the other side
// sends back on a pooled connection go to the inbound handler.
type connPool struct {
	sync.Mutex
	conns   map[string]*websocket.Conn
	handler transport.InboundMessageHandler
	ctx     context.Context
	cancel  context.CancelFunc
}

func newConnPool(handler transport.InboundMessageHandler) *connPool {
	ctx, cancel := context.WithCancel(context.Background())

	return &connPool{
		conns:   make(map[string]*websocket.Conn),
		handler: handler,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// fetch returns the pooled connection to url, dialing it when there is none.
func (d *connPool) fetch(ctx context.Context, url string) (*websocket.Conn, error) {
	d.Lock()
	defer d.Unlock()

	if conn, ok := d.conns[url]; ok {
		return conn, nil
	}

	if d.ctx.Err() != nil {
		return nil, errors.New("websocket pool is closed")
	}

	conn, _, err := websocket.Dial(ctx, url, nil) //nolint:bodyclose
	if err != nil {
		return nil, errors.Wrapf(err, "websocket dial %s", url)
	}

	d.conns[url] = conn

	go d.listen(url, conn)

	return conn, nil
}

func (d *connPool) drop(url string, conn *websocket.Conn) {
	d.Lock()
	defer d.Unlock()

	if d.conns[url] == conn {
		delete(d.conns, url)
	}
}

func (d *connPool) listen(url string, conn *websocket.Conn) {
	defer func() {
		d.drop(url, conn)
		closeConn(conn)
	}()

	for {
		_, message, err := conn.Read(d.ctx)
		if err != nil {
			if websocket.CloseStatus(err) != websocket.StatusNormalClosure && d.ctx.Err() == nil {
				logger.Warnf("read from %s: %v", url, err)
			}

			return
		}

		reply, err := d.handler(d.ctx, message)
		if err != nil {
			logger.Errorf("incoming msg from %s processing failed: %v", url, err)

			continue
		}

		if len(reply) > 0 {
			if err := conn.Write(d.ctx, websocket.MessageText, reply); err != nil {
				logger.Errorf("write reply to %s: %v", url, err)

				return
			}
		}
	}
}

func (d *connPool) close() {
	d.cancel()

	d.Lock()
	defer d.Unlock()

	for url, conn := range d.conns {
		closeConn(conn)
		delete(d.conns, url)
	}
}
