/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package context

import (
	"context"
	"errors"
	"fmt"

	"github.com/hyperledger/aries-didcomm-go/pkg/anoncreds"
	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/dispatcher"
	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/messagetype"
	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/protocol/issuecredential"
	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/protocol/mediator"
	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/transport"
	"github.com/hyperledger/aries-didcomm-go/pkg/ledger"
	connectionstore "github.com/hyperledger/aries-didcomm-go/pkg/store/connection"
	"github.com/hyperledger/aries-didcomm-go/pkg/store/mediation"
	"github.com/hyperledger/aries-didcomm-go/pkg/store/threadstate"
	"github.com/hyperledger/aries-didcomm-go/pkg/wallet"
	"github.com/hyperledger/aries-didcomm-go/spi/storage"
)

// ErrSvcNotFound is returned when no protocol service has the requested name.
var ErrSvcNotFound = errors.New("service not found")

// RouteFunc returns the endpoint and routing keys to advertise for a new key.
type RouteFunc func(ctx context.Context, verKey string) (string, []string, error)

// Provider supplies the framework context to protocol services, dispatchers and clients.
type Provider struct {
	storeProvider        storage.Provider
	wallet               wallet.Wallet
	ledger               ledger.Ledger
	anoncreds            anoncreds.Anoncreds
	packager             transport.Packager
	registry             *messagetype.Registry
	services             []dispatcher.ProtocolService
	outboundDispatcher   dispatcher.Outbound
	outboundTransports   []transport.OutboundTransport
	transportReturnRoute string
	threads              *threadstate.Store
	mediationStore       *mediation.Store
	connections          *connectionstore.Lookup
	endpoint             string
	label                string
	autoAccept           bool
	mediatorPolicy       mediator.Policy
	routeFor             RouteFunc
	inboundHandler       *transport.InboundMessageHandler
}

// New instantiates a new context provider.
func New(opts ...ProviderOption) (*Provider, error) {
	ctxProvider := Provider{}

	for _, opt := range opts {
		err := opt(&ctxProvider)
		if err != nil {
			return nil, fmt.Errorf("option failed: %w", err)
		}
	}

	if ctxProvider.registry == nil {
		ctxProvider.registry = messagetype.NewDefaultRegistry()
	}

	return &ctxProvider, nil
}

// StorageProvider returns the storage provider.
func (p *Provider) StorageProvider() storage.Provider {
	return p.storeProvider
}

// Wallet returns the wallet holding the agent keys.
func (p *Provider) Wallet() wallet.Wallet {
	return p.wallet
}

// Ledger returns the ledger.
func (p *Provider) Ledger() ledger.Ledger {
	return p.ledger
}

// Anoncreds returns the anoncreds capability.
func (p *Provider) Anoncreds() anoncreds.Anoncreds {
	return p.anoncreds
}

// Packager returns the envelope packager.
func (p *Provider) Packager() transport.Packager {
	return p.packager
}

// Registry returns the message type registry.
func (p *Provider) Registry() *messagetype.Registry {
	return p.registry
}

// AllServices returns the protocol services in dispatch order.
func (p *Provider) AllServices() []dispatcher.ProtocolService {
	return p.services
}

// Service returns the protocol service with the given name.
func (p *Provider) Service(id string) (interface{}, error) {
	for _, v := range p.services {
		if v.Name() == id {
			return v, nil
		}
	}

	return nil, fmt.Errorf("%s: %w", id, ErrSvcNotFound)
}

// OutboundDispatcher returns an outbound dispatcher.
func (p *Provider) OutboundDispatcher() dispatcher.Outbound {
	return p.outboundDispatcher
}

// OutboundTransports returns the outbound transports.
func (p *Provider) OutboundTransports() []transport.OutboundTransport {
	return p.outboundTransports
}

// TransportReturnRoute returns the return route added to outbound messages.
func (p *Provider) TransportReturnRoute() string {
	return p.transportReturnRoute
}

// ThreadStore returns the protocol state store.
func (p *Provider) ThreadStore() *threadstate.Store {
	return p.threads
}

// MediationStore returns the mediator accounts and queues.
func (p *Provider) MediationStore() *mediation.Store {
	return p.mediationStore
}

// Connections finds connections by key for the dispatchers.
func (p *Provider) Connections() dispatcher.ConnectionLookup {
	if p.connections == nil {
		return nil
	}

	return p.connections
}

// ConnectionLookup reads connection records for the protocols running on them.
func (p *Provider) ConnectionLookup() issuecredential.ConnectionLookup {
	if p.connections == nil {
		return nil
	}

	return p.connections
}

// Endpoint returns the inbound endpoint of the agent.
func (p *Provider) Endpoint() string {
	return p.endpoint
}

// Label returns the label sent in invitations and requests.
func (p *Provider) Label() string {
	return p.label
}

// AutoAccept reports whether incoming exchanges are answered without a Continue.
func (p *Provider) AutoAccept() bool {
	return p.autoAccept
}

// MediatorPolicy returns the policy for mediate requests. Every request is
// granted when none was configured.
func (p *Provider) MediatorPolicy() mediator.Policy {
	if p.mediatorPolicy == nil {
		return mediator.GrantAll
	}

	return p.mediatorPolicy
}

// RouteFor returns the endpoint and routing keys to advertise for verKey. It
// defaults to the agent endpoint without routing keys.
func (p *Provider) RouteFor(ctx context.Context, verKey string) (string, []string, error) {
	if p.routeFor == nil {
		return p.endpoint, nil, nil
	}

	return p.routeFor(ctx, verKey)
}

// InboundMessageHandler returns a handler feeding envelopes back into the
// framework. It resolves the handler on every call, so it can be handed out
// before the inbound dispatcher exists.
func (p *Provider) InboundMessageHandler() transport.InboundMessageHandler {
	return func(ctx context.Context, envelope []byte) ([]byte, error) {
		if p.inboundHandler == nil || *p.inboundHandler == nil {
			return nil, errors.New("inbound message handler is not initialized")
		}

		return (*p.inboundHandler)(ctx, envelope)
	}
}

// ProviderOption configures the framework.
type ProviderOption func(opts *Provider) error

// WithStorageProvider injects a storage provider into the context.
func WithStorageProvider(s storage.Provider) ProviderOption {
	return func(opts *Provider) error {
		opts.storeProvider = s
		return nil
	}
}

// WithWallet injects a wallet into the context.
func WithWallet(w wallet.Wallet) ProviderOption {
	return func(opts *Provider) error {
		opts.wallet = w
		return nil
	}
}

// WithLedger injects a ledger into the context.
func WithLedger(l ledger.Ledger) ProviderOption {
	return func(opts *Provider) error {
		opts.ledger = l
		return nil
	}
}

// WithAnoncreds injects the anoncreds capability into the context.
func WithAnoncreds(a anoncreds.Anoncreds) ProviderOption {
	return func(opts *Provider) error {
		opts.anoncreds = a
		return nil
	}
}

// WithPackager injects a packager into the context.
func WithPackager(p transport.Packager) ProviderOption {
	return func(opts *Provider) error {
		opts.packager = p
		return nil
	}
}

// WithRegistry injects a message type registry into the context.
func WithRegistry(r *messagetype.Registry) ProviderOption {
	return func(opts *Provider) error {
		opts.registry = r
		return nil
	}
}

// WithProtocolServices injects the protocol services into the context.
func WithProtocolServices(services ...dispatcher.ProtocolService) ProviderOption {
	return func(opts *Provider) error {
		opts.services = services
		return nil
	}
}

// WithOutboundDispatcher injects an outbound dispatcher into the context.
func WithOutboundDispatcher(ob dispatcher.Outbound) ProviderOption {
	return func(opts *Provider) error {
		opts.outboundDispatcher = ob
		return nil
	}
}

// WithOutboundTransports injects the outbound transports into the context.
func WithOutboundTransports(transports ...transport.OutboundTransport) ProviderOption {
	return func(opts *Provider) error {
		opts.outboundTransports = transports
		return nil
	}
}

// WithTransportReturnRoute injects the return route option into the context.
func WithTransportReturnRoute(transportReturnRoute string) ProviderOption {
	return func(opts *Provider) error {
		opts.transportReturnRoute = transportReturnRoute
		return nil
	}
}

// WithThreadStore injects the protocol state store into the context.
func WithThreadStore(s *threadstate.Store) ProviderOption {
	return func(opts *Provider) error {
		opts.threads = s
		return nil
	}
}

// WithMediationStore injects the mediator store into the context.
func WithMediationStore(s *mediation.Store) ProviderOption {
	return func(opts *Provider) error {
		opts.mediationStore = s
		return nil
	}
}

// WithConnectionLookup injects the connection lookup into the context.
func WithConnectionLookup(l *connectionstore.Lookup) ProviderOption {
	return func(opts *Provider) error {
		opts.connections = l
		return nil
	}
}

// WithEndpoint injects the inbound endpoint into the context.
func WithEndpoint(endpoint string) ProviderOption {
	return func(opts *Provider) error {
		opts.endpoint = endpoint
		return nil
	}
}

// WithLabel injects the agent label into the context.
func WithLabel(label string) ProviderOption {
	return func(opts *Provider) error {
		opts.label = label
		return nil
	}
}

// WithAutoAccept injects the auto accept mode into the context.
func WithAutoAccept(autoAccept bool) ProviderOption {
	return func(opts *Provider) error {
		opts.autoAccept = autoAccept
		return nil
	}
}

// WithMediatorPolicy injects the mediate request policy into the context.
func WithMediatorPolicy(policy mediator.Policy) ProviderOption {
	return func(opts *Provider) error {
		opts.mediatorPolicy = policy
		return nil
	}
}

// WithRouteFunc injects the function choosing the route of new keys.
func WithRouteFunc(fn RouteFunc) ProviderOption {
	return func(opts *Provider) error {
		opts.routeFor = fn
		return nil
	}
}

// WithInboundMessageHandler injects a reference to the inbound handler. The
// referenced handler may be set after the context is created.
func WithInboundMessageHandler(handler *transport.InboundMessageHandler) ProviderOption {
	return func(opts *Provider) error {
		if handler == nil {
			return errors.New("inbound message handler reference is nil")
		}

		opts.inboundHandler = handler

		return nil
	}
}
