/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package aries

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/hyperledger/aries-didcomm-go/pkg/anoncreds"
	"github.com/hyperledger/aries-didcomm-go/pkg/common/log"
	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/common/service"
	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/dispatcher"
	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/dispatcher/inbound"
	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/dispatcher/outbound"
	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/messagetype"
	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/packager"
	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/packer"
	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/protocol/mediator"
	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/transport"
	"github.com/hyperledger/aries-didcomm-go/pkg/framework/aries/api"
	frameworkctx "github.com/hyperledger/aries-didcomm-go/pkg/framework/context"
	"github.com/hyperledger/aries-didcomm-go/pkg/ledger"
	"github.com/hyperledger/aries-didcomm-go/pkg/ledger/cache"
	connectionstore "github.com/hyperledger/aries-didcomm-go/pkg/store/connection"
	"github.com/hyperledger/aries-didcomm-go/pkg/store/mediation"
	"github.com/hyperledger/aries-didcomm-go/pkg/store/threadstate"
	"github.com/hyperledger/aries-didcomm-go/pkg/wallet"
	"github.com/hyperledger/aries-didcomm-go/spi/storage"
)

var logger = log.New("aries-framework/framework")

// ErrNotInitialized is returned when an envelope arrives before the framework is ready.
var ErrNotInitialized = errors.New("aries framework is not initialized")

// Aries provides access to the context being managed by the framework and the
// entry points of the agent.
type Aries struct {
	storeProvider        storage.Provider
	wallet               wallet.Wallet
	ledger               ledger.Ledger
	anoncreds            anoncreds.Anoncreds
	packager             transport.Packager
	registry             *messagetype.Registry
	protocolSvcCreators  []api.ProtocolSvcCreator
	services             []dispatcher.ProtocolService
	outboundDispatcher   *outbound.Dispatcher
	outboundTransports   []transport.OutboundTransport
	inboundTransports    []transport.InboundTransport
	threads              *threadstate.Store
	mediationStore       *mediation.Store
	connections          *connectionstore.Lookup
	transportReturnRoute string
	endpoint             string
	label                string
	autoAccept           bool
	mediatorPolicy       mediator.Policy
	messageTTL           time.Duration
	sweepInterval        time.Duration
	transitionRetries    uint64
	sendRetries          uint64
	ledgerCacheOpts      []cache.Option
	noLedgerCache        bool
	inboundHandler       transport.InboundMessageHandler
	scheduler            *gocron.Scheduler
	ctx                  *frameworkctx.Provider
}

// Option configures the framework.
type Option func(opts *Aries) error

// New initializes the Aries framework based on the set of options provided. The
// returned framework handles inbound envelopes and starts exchanges until Close
// is called.
func New(opts ...Option) (*Aries, error) {
	frameworkOpts := &Aries{}

	// generate framework configs from options
	for _, option := range opts {
		err := option(frameworkOpts)
		if err != nil {
			closeErr := frameworkOpts.Close()
			return nil, fmt.Errorf("close err: %v Error in option passed to New: %w", closeErr, err)
		}
	}

	// get the default framework options
	err := defFrameworkOpts(frameworkOpts)
	if err != nil {
		closeErr := frameworkOpts.Close()
		return nil, fmt.Errorf("close err: %v default option initialization failed: %w", closeErr, err)
	}

	if err = initializeServices(frameworkOpts); err != nil {
		closeErr := frameworkOpts.Close()
		return nil, fmt.Errorf("close err: %v framework initialization failed: %w", closeErr, err)
	}

	return frameworkOpts, nil
}

func initializeServices(frameworkOpts *Aries) error {
	// Order of initializing service is important
	if err := createStores(frameworkOpts); err != nil {
		return err
	}

	if err := createPackager(frameworkOpts); err != nil {
		return err
	}

	if err := createOutboundDispatcher(frameworkOpts); err != nil {
		return err
	}

	// the inbound handler needs every protocol service
	if err := loadServices(frameworkOpts); err != nil {
		return err
	}

	frameworkOpts.inboundHandler = inbound.NewInboundMessageHandler(frameworkOpts.ctx).HandlerFunc()

	if err := startTransports(frameworkOpts); err != nil {
		return err
	}

	return startMessageExpiry(frameworkOpts)
}

// WithStoreProvider injects a storage provider to the Aries framework.
func WithStoreProvider(prov storage.Provider) Option {
	return func(opts *Aries) error {
		opts.storeProvider = prov
		return nil
	}
}

// WithWallet injects the wallet holding the agent keys. A wallet without a
// crypter needs WithPackager as well.
func WithWallet(w wallet.Wallet) Option {
	return func(opts *Aries) error {
		opts.wallet = w
		return nil
	}
}

// WithPackager injects the envelope packager.
func WithPackager(p transport.Packager) Option {
	return func(opts *Aries) error {
		opts.packager = p
		return nil
	}
}

// WithLedger injects the ledger. Reads are cached unless WithoutLedgerCache is given.
func WithLedger(l ledger.Ledger) Option {
	return func(opts *Aries) error {
		opts.ledger = l
		return nil
	}
}

// WithLedgerCache configures the ledger read cache.
func WithLedgerCache(cacheOpts ...cache.Option) Option {
	return func(opts *Aries) error {
		opts.ledgerCacheOpts = append(opts.ledgerCacheOpts, cacheOpts...)
		return nil
	}
}

// WithoutLedgerCache passes every ledger read through to the ledger.
func WithoutLedgerCache() Option {
	return func(opts *Aries) error {
		opts.noLedgerCache = true
		return nil
	}
}

// WithAnoncreds injects the anoncreds capability. Credential issuance and
// presentation are only available with both a ledger and anoncreds.
func WithAnoncreds(a anoncreds.Anoncreds) Option {
	return func(opts *Aries) error {
		opts.anoncreds = a
		return nil
	}
}

// WithEndpoint sets the endpoint advertised in invitations and did docs. It
// defaults to the endpoint of the first inbound transport.
func WithEndpoint(endpoint string) Option {
	return func(opts *Aries) error {
		opts.endpoint = endpoint
		return nil
	}
}

// WithLabel sets the label sent in invitations and connection requests.
func WithLabel(label string) Option {
	return func(opts *Aries) error {
		opts.label = label
		return nil
	}
}

// WithAutoAccept answers incoming requests, offers and proposals without waiting for Continue.
func WithAutoAccept(autoAccept bool) Option {
	return func(opts *Aries) error {
		opts.autoAccept = autoAccept
		return nil
	}
}

// WithMediatorPolicy sets the policy deciding on mediate requests.
func WithMediatorPolicy(policy mediator.Policy) Option {
	return func(opts *Aries) error {
		opts.mediatorPolicy = policy
		return nil
	}
}

// WithMessageTTL sets how long forwarded messages wait for pickup, and how
// often expired ones are purged.
func WithMessageTTL(ttl, sweepInterval time.Duration) Option {
	return func(opts *Aries) error {
		if ttl <= 0 || sweepInterval <= 0 {
			return fmt.Errorf("invalid message ttl %s with sweep interval %s", ttl, sweepInterval)
		}

		opts.messageTTL = ttl
		opts.sweepInterval = sweepInterval

		return nil
	}
}

// WithOutboundTransports injects an outbound transports to the Aries framework.
func WithOutboundTransports(outboundTransports ...transport.OutboundTransport) Option {
	return func(opts *Aries) error {
		opts.outboundTransports = append(opts.outboundTransports, outboundTransports...)
		return nil
	}
}

// WithInboundTransport injects an inbound transport to the Aries framework.
func WithInboundTransport(inboundTransport ...transport.InboundTransport) Option {
	return func(opts *Aries) error {
		opts.inboundTransports = append(opts.inboundTransports, inboundTransport...)
		return nil
	}
}

// WithTransportReturnRoute injects transport return route option to the Aries framework. Acceptable values - "none",
// "all" or "thread". RFC - https://github.com/hyperledger/aries-rfcs/tree/master/features/0092-transport-return-route.
func WithTransportReturnRoute(transportReturnRoute string) Option {
	return func(opts *Aries) error {
		opts.transportReturnRoute = transportReturnRoute
		return nil
	}
}

// WithRegistry injects the message type registry.
func WithRegistry(r *messagetype.Registry) Option {
	return func(opts *Aries) error {
		opts.registry = r
		return nil
	}
}

// WithTransitionRetries sets how often a state transition is retried after a
// concurrent update of the same thread.
func WithTransitionRetries(n uint64) Option {
	return func(opts *Aries) error {
		opts.transitionRetries = n
		return nil
	}
}

// WithSendRetries sets how often a failed send is retried.
func WithSendRetries(n uint64) Option {
	return func(opts *Aries) error {
		opts.sendRetries = n
		return nil
	}
}

// WithProtocols adds protocol services after the default ones.
func WithProtocols(protocolSvcCreator ...api.ProtocolSvcCreator) Option {
	return func(opts *Aries) error {
		opts.protocolSvcCreators = append(opts.protocolSvcCreators, protocolSvcCreator...)
		return nil
	}
}

// Context provides a handle to the framework context.
func (a *Aries) Context() *frameworkctx.Provider {
	return a.ctx
}

// Service returns the protocol service with the given name.
func (a *Aries) Service(name string) (interface{}, error) {
	if a.ctx == nil {
		return nil, ErrNotInitialized
	}

	return a.ctx.Service(name)
}

// RegisterMsgEvent registers ch for the state messages of every protocol service.
func (a *Aries) RegisterMsgEvent(ch chan<- service.StateMsg) error {
	for _, svc := range a.services {
		events, ok := svc.(interface {
			RegisterMsgEvent(ch chan<- service.StateMsg) error
		})
		if !ok {
			continue
		}

		if err := events.RegisterMsgEvent(ch); err != nil {
			return fmt.Errorf("register events of %s: %w", svc.Name(), err)
		}
	}

	return nil
}

// HandleInbound unpacks and dispatches an envelope. The returned bytes are a
// packed reply for the inbound connection, nil when there is none.
func (a *Aries) HandleInbound(ctx context.Context, envelope []byte) ([]byte, error) {
	if a.inboundHandler == nil {
		return nil, ErrNotInitialized
	}

	return a.inboundHandler(ctx, envelope)
}

// Initiate starts an exchange of protocol and sends its first message. It
// returns the packed envelope that was sent, nil when params produce no message.
func (a *Aries) Initiate(ctx context.Context, protocol string, params interface{}) ([]byte, error) {
	initiator, err := a.initiator(protocol)
	if err != nil {
		return nil, err
	}

	out, err := initiator.Initiate(ctx, params)
	if err != nil {
		return nil, err
	}

	return a.deliver(ctx, out)
}

// Continue applies a local decision to the exchange of thid and sends the
// resulting message, if any.
func (a *Aries) Continue(ctx context.Context, protocol, thid string, action interface{}) ([]byte, error) {
	initiator, err := a.initiator(protocol)
	if err != nil {
		return nil, err
	}

	out, err := initiator.Continue(ctx, thid, action)
	if err != nil {
		return nil, err
	}

	return a.deliver(ctx, out)
}

// Close frees resources being maintained by the framework.
func (a *Aries) Close() error {
	if a.scheduler != nil {
		a.scheduler.Stop()
	}

	for _, inbound := range a.inboundTransports {
		if err := inbound.Stop(); err != nil {
			return fmt.Errorf("inbound transport close failed: %w", err)
		}
	}

	for _, ot := range a.outboundTransports {
		if c, ok := ot.(interface{ Close() }); ok {
			c.Close()
		}
	}

	if a.storeProvider != nil {
		err := a.storeProvider.Close()
		if err != nil {
			return fmt.Errorf("failed to close the store: %w", err)
		}
	}

	return nil
}

func (a *Aries) initiator(protocol string) (service.Initiator, error) {
	svc, err := a.Service(protocol)
	if err != nil {
		return nil, err
	}

	initiator, ok := svc.(service.Initiator)
	if !ok {
		return nil, fmt.Errorf("protocol %s cannot be started locally", protocol)
	}

	return initiator, nil
}

// deliver packs out and sends it. An envelope the other side answers with on
// the same connection is handled in turn.
func (a *Aries) deliver(ctx context.Context, out *service.Outbound) ([]byte, error) {
	if out == nil {
		return nil, nil
	}

	packed, err := a.outboundDispatcher.Pack(out, nil)
	if err != nil {
		return nil, err
	}

	resp, err := a.outboundDispatcher.SendPacked(ctx, packed)
	if err != nil {
		return nil, err
	}

	logger.Debugf("sent %s %s", out.Msg.Type(), out.Msg.ID())

	if len(resp) > 0 {
		if _, err = a.HandleInbound(ctx, resp); err != nil {
			logger.Warnf("handle response to %s: %v", out.Msg.Type(), err)
		}
	}

	return packed.Envelope, nil
}

// routeFor registers verKey with the first mediator that granted routing and
// returns the mediator endpoint and routing keys. Without a mediator the agent
// endpoint is used.
func (a *Aries) routeFor(ctx context.Context, verKey string) (string, []string, error) {
	svc, err := a.Service(mediator.Coordination)
	if err != nil {
		return a.endpoint, nil, nil //nolint:nilerr
	}

	client, ok := svc.(*mediator.Service)
	if !ok {
		return a.endpoint, nil, nil
	}

	conns, err := client.GetConnections()
	if err != nil {
		return "", nil, fmt.Errorf("route for %s: %w", verKey, err)
	}

	if len(conns) == 0 {
		return a.endpoint, nil, nil
	}

	conf, err := client.Config(conns[0])
	if err != nil {
		return "", nil, fmt.Errorf("route for %s: %w", verKey, err)
	}

	out, err := client.KeylistUpdate(&mediator.KeylistUpdateParams{
		ConnectionID: conns[0],
		Updates:      []mediator.Update{{RecipientKey: verKey, Action: mediator.ActionAdd}},
	})
	if err != nil {
		return "", nil, fmt.Errorf("route for %s: %w", verKey, err)
	}

	if _, err = a.deliver(ctx, out); err != nil {
		return "", nil, fmt.Errorf("register %s with mediator: %w", verKey, err)
	}

	return conf.Endpoint(), conf.Keys(), nil
}

func (a *Aries) purgeExpired() {
	if _, err := a.mediationStore.PurgeExpired(time.Now().Add(-a.messageTTL)); err != nil {
		logger.Warnf("purge expired messages: %v", err)
	}
}

func createStores(frameworkOpts *Aries) error {
	var threadOpts []threadstate.Option
	if frameworkOpts.transitionRetries > 0 {
		threadOpts = append(threadOpts, threadstate.WithRetries(frameworkOpts.transitionRetries))
	}

	var err error

	frameworkOpts.threads, err = threadstate.New(frameworkOpts.storeProvider, threadOpts...)
	if err != nil {
		return fmt.Errorf("create thread store failed: %w", err)
	}

	frameworkOpts.mediationStore, err = mediation.New(frameworkOpts.storeProvider)
	if err != nil {
		return fmt.Errorf("create mediation store failed: %w", err)
	}

	ctx, err := frameworkctx.New(
		frameworkctx.WithStorageProvider(frameworkOpts.storeProvider),
		frameworkctx.WithThreadStore(frameworkOpts.threads),
	)
	if err != nil {
		return fmt.Errorf("context creation failed: %w", err)
	}

	frameworkOpts.connections, err = connectionstore.NewLookup(ctx)
	if err != nil {
		return fmt.Errorf("create connection lookup failed: %w", err)
	}

	return nil
}

func createPackager(frameworkOpts *Aries) error {
	if frameworkOpts.packager != nil {
		return nil
	}

	crypterProvider, ok := frameworkOpts.wallet.(packer.Provider)
	if !ok {
		return errors.New("wallet provides no crypter, a packager is required")
	}

	frameworkOpts.packager = packager.New(crypterProvider)

	return nil
}

func createOutboundDispatcher(frameworkOpts *Aries) error {
	ctx, err := frameworkctx.New(
		frameworkctx.WithOutboundTransports(frameworkOpts.outboundTransports...),
		frameworkctx.WithPackager(frameworkOpts.packager),
		frameworkctx.WithTransportReturnRoute(frameworkOpts.transportReturnRoute),
		frameworkctx.WithConnectionLookup(frameworkOpts.connections),
	)
	if err != nil {
		return fmt.Errorf("context creation failed: %w", err)
	}

	var dispatcherOpts []outbound.Option
	if frameworkOpts.sendRetries > 0 {
		dispatcherOpts = append(dispatcherOpts, outbound.WithSendRetries(frameworkOpts.sendRetries))
	}

	frameworkOpts.outboundDispatcher, err = outbound.NewOutbound(ctx, dispatcherOpts...)
	if err != nil {
		return fmt.Errorf("failed to init outbound dispatcher: %w", err)
	}

	return nil
}

func loadServices(frameworkOpts *Aries) error {
	ctx, err := frameworkctx.New(
		frameworkctx.WithStorageProvider(frameworkOpts.storeProvider),
		frameworkctx.WithWallet(frameworkOpts.wallet),
		frameworkctx.WithLedger(frameworkOpts.ledger),
		frameworkctx.WithAnoncreds(frameworkOpts.anoncreds),
		frameworkctx.WithPackager(frameworkOpts.packager),
		frameworkctx.WithRegistry(frameworkOpts.registry),
		frameworkctx.WithOutboundDispatcher(frameworkOpts.outboundDispatcher),
		frameworkctx.WithOutboundTransports(frameworkOpts.outboundTransports...),
		frameworkctx.WithTransportReturnRoute(frameworkOpts.transportReturnRoute),
		frameworkctx.WithThreadStore(frameworkOpts.threads),
		frameworkctx.WithMediationStore(frameworkOpts.mediationStore),
		frameworkctx.WithConnectionLookup(frameworkOpts.connections),
		frameworkctx.WithEndpoint(frameworkOpts.endpoint),
		frameworkctx.WithLabel(frameworkOpts.label),
		frameworkctx.WithAutoAccept(frameworkOpts.autoAccept),
		frameworkctx.WithMediatorPolicy(frameworkOpts.mediatorPolicy),
		frameworkctx.WithRouteFunc(frameworkOpts.routeFor),
		frameworkctx.WithInboundMessageHandler(&frameworkOpts.inboundHandler),
	)
	if err != nil {
		return fmt.Errorf("create context failed: %w", err)
	}

	for _, v := range frameworkOpts.protocolSvcCreators {
		svc, svcErr := v.Create(ctx)
		if svcErr != nil {
			return fmt.Errorf("new protocol service %s failed: %w", v.Name, svcErr)
		}

		frameworkOpts.services = append(frameworkOpts.services, svc)
		// after service was successfully created we need to add it to the context
		if e := frameworkctx.WithProtocolServices(frameworkOpts.services...)(ctx); e != nil {
			return e
		}
	}

	frameworkOpts.ctx = ctx

	return nil
}

func startTransports(frameworkOpts *Aries) error {
	for _, inbound := range frameworkOpts.inboundTransports {
		// Start the inbound transport
		if err := inbound.Start(frameworkOpts.HandleInbound); err != nil {
			return fmt.Errorf("inbound transport start failed: %w", err)
		}

		logger.Infof("inbound transport listening for %s", inbound.Endpoint())
	}

	return nil
}

func startMessageExpiry(frameworkOpts *Aries) error {
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()

	if _, err := s.Every(frameworkOpts.sweepInterval).Do(frameworkOpts.purgeExpired); err != nil {
		return fmt.Errorf("schedule message expiry: %w", err)
	}

	s.StartAsync()
	frameworkOpts.scheduler = s

	return nil
}
