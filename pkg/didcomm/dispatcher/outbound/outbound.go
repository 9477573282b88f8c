/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package outbound

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/hyperledger/aries-didcomm-go/pkg/common/log"
	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/common/agenterr"
	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/common/service"
	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/dispatcher"
	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/protocol/decorator"
	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/protocol/route"
	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/transport"
	"github.com/hyperledger/aries-didcomm-go/pkg/doc/didkey"
)

const (
	defaultSendRetries       = 3
	defaultSendRetryInterval = 500 * time.Millisecond
)

// provider interface for outbound ctx.
type provider interface {
	Packager() transport.Packager
	OutboundTransports() []transport.OutboundTransport
	TransportReturnRoute() string
	Connections() dispatcher.ConnectionLookup
}

// Dispatcher dispatch msgs to destination.
type Dispatcher struct {
	outboundTransports   []transport.OutboundTransport
	packager             transport.Packager
	transportReturnRoute string
	connections          dispatcher.ConnectionLookup
	retries              uint64
	retryInterval        time.Duration
}

// Option configures the dispatcher.
type Option func(o *Dispatcher)

// WithSendRetries sets how many times a failed transport send is retried.
func WithSendRetries(n uint64) Option {
	return func(o *Dispatcher) {
		o.retries = n
	}
}

// WithSendRetryInterval sets the first wait between send attempts, later
// waits grow exponentially.
func WithSendRetryInterval(d time.Duration) Option {
	return func(o *Dispatcher) {
		o.retryInterval = d
	}
}

var logger = log.New("aries-framework/didcomm/dispatcher")

// NewOutbound return new dispatcher outbound instance.
func NewOutbound(prov provider, opts ...Option) (*Dispatcher, error) {
	if prov.Packager() == nil {
		return nil, errors.New("outbound dispatcher: packager is required")
	}

	o := &Dispatcher{
		outboundTransports:   prov.OutboundTransports(),
		packager:             prov.Packager(),
		transportReturnRoute: prov.TransportReturnRoute(),
		connections:          prov.Connections(),
		retries:              defaultSendRetries,
		retryInterval:        defaultSendRetryInterval,
	}

	for _, opt := range opts {
		opt(o)
	}

	return o, nil
}

// Send packs out and sends it to its destination.
func (o *Dispatcher) Send(ctx context.Context, out *service.Outbound, in *service.DIDCommContext) ([]byte, error) {
	packed, err := o.Pack(out, in)
	if err != nil {
		return nil, err
	}

	resp, err := o.SendPacked(ctx, packed)
	if err != nil {
		return nil, err
	}

	logger.Debugf("sent %s %s", out.Msg.Type(), out.Msg.ID())

	return resp, nil
}

// SendPacked hands a packed envelope to the first transport accepting its
// destination, retrying failed sends.
func (o *Dispatcher) SendPacked(ctx context.Context, packed *dispatcher.Packed) ([]byte, error) {
	endpoint := packed.Destination.ServiceEndpoint
	if endpoint == "" {
		return nil, agenterr.Errorf(agenterr.ErrRouteNotFound, "outboundDispatcher.Send: no endpoint")
	}

	var outboundTransport transport.OutboundTransport

	for _, v := range o.outboundTransports {
		if v.Accept(endpoint) {
			outboundTransport = v
			break
		}
	}

	if outboundTransport == nil {
		return nil, fmt.Errorf("outboundDispatcher.Send: no transport found for serviceEndpoint: %s", endpoint)
	}

	var resp []byte

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = o.retryInterval

	policy := backoff.WithContext(backoff.WithMaxRetries(exp, o.retries), ctx)

	err := backoff.RetryNotify(func() error {
		var e error

		resp, e = outboundTransport.Send(ctx, packed.Envelope, packed.Destination)

		return e
	}, policy, func(e error, wait time.Duration) {
		logger.Warnf("send to %s failed, retrying in %s: %v", endpoint, wait, e)
	})
	if err != nil {
		return nil, fmt.Errorf("outboundDispatcher.Send: failed to send msg using outbound transport: %w", err)
	}

	return resp, nil
}

// Pack encrypts out for its destination.
func (o *Dispatcher) Pack(out *service.Outbound, in *service.DIDCommContext) (*dispatcher.Packed, error) {
	if out == nil || out.Msg == nil {
		return nil, errors.New("outboundDispatcher.Pack: no message")
	}

	dest, senderKey, err := o.destination(out, in)
	if err != nil {
		return nil, err
	}

	msg := out.Msg
	if len(dest.RoutingKeys) == 0 {
		msg = o.addTransportRouteOptions(msg)
	}

	req, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("outboundDispatcher.Pack: failed marshal to bytes: %w", err)
	}

	packedMsg, err := o.packager.PackMessage(&transport.Envelope{
		Message: req,
		FromKey: senderKey,
		ToKeys:  dest.RecipientKeys,
	})
	if err != nil {
		return nil, fmt.Errorf("outboundDispatcher.Pack: failed to pack msg: %w", err)
	}

	packedMsg, err = route.Wrap(o.packager, packedMsg, dest)
	if err != nil {
		return nil, fmt.Errorf("outboundDispatcher.Pack: failed to create forward msg: %w", err)
	}

	return &dispatcher.Packed{Envelope: packedMsg, Destination: dest}, nil
}

// destination picks the explicit destination of out, the destination of its
// connection, or the sender of the message it replies to.
func (o *Dispatcher) destination(out *service.Outbound,
	in *service.DIDCommContext) (*service.Destination, string, error) {
	switch {
	case out.Destination != nil:
		return normalize(out.Destination, out.MyVerKey)
	case out.ConnectionID != "":
		return o.connectionDestination(out.ConnectionID)
	case in == nil:
		return nil, "", agenterr.Errorf(agenterr.ErrRouteNotFound, "%s has no destination", out.Msg.Type())
	case in.ConnectionID != "":
		return o.connectionDestination(in.ConnectionID)
	case in.Authenticated():
		// no endpoint, only usable on a return route
		return &service.Destination{RecipientKeys: []string{in.TheirVerKey}}, in.MyVerKey, nil
	default:
		return nil, "", agenterr.Errorf(agenterr.ErrRouteNotFound, "cannot reply to an anonymous sender")
	}
}

func (o *Dispatcher) connectionDestination(connectionID string) (*service.Destination, string, error) {
	if o.connections == nil {
		return nil, "", agenterr.Errorf(agenterr.ErrConnectionNotFound, "no connection store for %s", connectionID)
	}

	dest, myKey, err := o.connections.Destination(connectionID)
	if err != nil {
		return nil, "", err
	}

	return normalize(dest, myKey)
}

func normalize(dest *service.Destination, senderKey string) (*service.Destination, string, error) {
	recipients, err := didkey.ToVerKeys(dest.RecipientKeys)
	if err != nil {
		return nil, "", agenterr.Wrap(agenterr.ErrEncryption, err, "recipient keys")
	}

	if len(recipients) == 0 {
		return nil, "", agenterr.Errorf(agenterr.ErrRouteNotFound, "destination %s has no recipient keys",
			dest.ServiceEndpoint)
	}

	routing, err := didkey.ToVerKeys(dest.RoutingKeys)
	if err != nil {
		return nil, "", agenterr.Wrap(agenterr.ErrEncryption, err, "routing keys")
	}

	return &service.Destination{
		RecipientKeys:   recipients,
		RoutingKeys:     routing,
		ServiceEndpoint: dest.ServiceEndpoint,
	}, senderKey, nil
}

// addTransportRouteOptions sets the return route the framework is configured
// with, unless the message already carries one.
func (o *Dispatcher) addTransportRouteOptions(msg service.DIDCommMsgMap) service.DIDCommMsgMap {
	if o.transportReturnRoute != decorator.TransportReturnRouteAll &&
		o.transportReturnRoute != decorator.TransportReturnRouteThread {
		return msg
	}

	if _, ok := msg["~transport"]; ok {
		return msg
	}

	msg = msg.Clone()
	msg["~transport"] = map[string]interface{}{"return_route": o.transportReturnRoute}

	return msg
}
