/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package aries

import (
	"fmt"
	"time"

	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/dispatcher"
	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/messagetype"
	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/protocol/connection"
	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/protocol/issuecredential"
	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/protocol/mediator"
	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/protocol/messagepickup"
	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/protocol/presentproof"
	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/protocol/route"
	arieshttp "github.com/hyperledger/aries-didcomm-go/pkg/didcomm/transport/http"
	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/transport/ws"
	"github.com/hyperledger/aries-didcomm-go/pkg/framework/aries/api"
	"github.com/hyperledger/aries-didcomm-go/pkg/framework/context"
	"github.com/hyperledger/aries-didcomm-go/pkg/ledger/cache"
	"github.com/hyperledger/aries-didcomm-go/pkg/storage/mem"
	"github.com/hyperledger/aries-didcomm-go/pkg/wallet/localwallet"
)

const (
	defaultMessageTTL    = 72 * time.Hour
	defaultSweepInterval = time.Hour
)

// defFrameworkOpts provides default framework options.
func defFrameworkOpts(frameworkOpts *Aries) error {
	if frameworkOpts.storeProvider == nil {
		frameworkOpts.storeProvider = mem.NewProvider()
	}

	if frameworkOpts.wallet == nil {
		w, err := localwallet.New(frameworkOpts.storeProvider)
		if err != nil {
			return fmt.Errorf("wallet initialization failed: %w", err)
		}

		frameworkOpts.wallet = w
	}

	if len(frameworkOpts.outboundTransports) == 0 {
		outbound, err := arieshttp.NewOutbound()
		if err != nil {
			return fmt.Errorf("http outbound transport initialization failed: %w", err)
		}

		frameworkOpts.outboundTransports = append(frameworkOpts.outboundTransports, outbound,
			ws.NewOutbound(ws.WithInboundHandler(frameworkOpts.HandleInbound)))
	}

	if frameworkOpts.endpoint == "" && len(frameworkOpts.inboundTransports) > 0 {
		frameworkOpts.endpoint = frameworkOpts.inboundTransports[0].Endpoint()
	}

	if frameworkOpts.registry == nil {
		frameworkOpts.registry = messagetype.NewDefaultRegistry()
	}

	if frameworkOpts.ledger != nil && !frameworkOpts.noLedgerCache {
		frameworkOpts.ledger = cache.New(frameworkOpts.ledger, frameworkOpts.ledgerCacheOpts...)
	}

	if frameworkOpts.messageTTL == 0 {
		frameworkOpts.messageTTL = defaultMessageTTL
		frameworkOpts.sweepInterval = defaultSweepInterval
	}

	// order is important: the inbound handler hands each message to the first
	// service accepting its type
	creators := []api.ProtocolSvcCreator{
		newConnectionSvc(), newMediatorSvc(), newMessagePickupSvc(), newRouteSvc(),
	}

	if frameworkOpts.ledger != nil && frameworkOpts.anoncreds != nil {
		creators = append(creators, newIssueCredentialSvc(), newPresentProofSvc())
	} else {
		logger.Infof("no ledger or anoncreds, credential protocols disabled")
	}

	frameworkOpts.protocolSvcCreators = append(creators, frameworkOpts.protocolSvcCreators...)

	return nil
}

func newConnectionSvc() api.ProtocolSvcCreator {
	return api.ProtocolSvcCreator{
		Name: connection.Connection,
		Create: func(prv *context.Provider) (dispatcher.ProtocolService, error) {
			return connection.New(prv)
		},
	}
}

func newMediatorSvc() api.ProtocolSvcCreator {
	return api.ProtocolSvcCreator{
		Name: mediator.Coordination,
		Create: func(prv *context.Provider) (dispatcher.ProtocolService, error) {
			return mediator.New(prv)
		},
	}
}

func newMessagePickupSvc() api.ProtocolSvcCreator {
	return api.ProtocolSvcCreator{
		Name: messagepickup.MessagePickup,
		Create: func(prv *context.Provider) (dispatcher.ProtocolService, error) {
			return messagepickup.New(prv)
		},
	}
}

func newRouteSvc() api.ProtocolSvcCreator {
	return api.ProtocolSvcCreator{
		Name: route.Name,
		Create: func(prv *context.Provider) (dispatcher.ProtocolService, error) {
			return route.New(prv)
		},
	}
}

func newIssueCredentialSvc() api.ProtocolSvcCreator {
	return api.ProtocolSvcCreator{
		Name: issuecredential.Name,
		Create: func(prv *context.Provider) (dispatcher.ProtocolService, error) {
			return issuecredential.New(prv)
		},
	}
}

func newPresentProofSvc() api.ProtocolSvcCreator {
	return api.ProtocolSvcCreator{
		Name: presentproof.Name,
		Create: func(prv *context.Provider) (dispatcher.ProtocolService, error) {
			return presentproof.New(prv)
		},
	}
}
