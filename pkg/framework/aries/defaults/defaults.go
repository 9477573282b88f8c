/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package defaults

import (
	"fmt"
	"os"
	"path/filepath"

	arieshttp "github.com/hyperledger/aries-didcomm-go/pkg/didcomm/transport/http"
	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/transport/ws"
	"github.com/hyperledger/aries-didcomm-go/pkg/framework/aries"
	"github.com/hyperledger/aries-didcomm-go/pkg/storage/bbolt"
)

const dbFile = "aries.db"

// WithStorePath return new default store provider instantiate with db path
func WithStorePath(storePath string) aries.Option {
	return func(opts *aries.Aries) error {
		if err := os.MkdirAll(storePath, 0o700); err != nil {
			return fmt.Errorf("storage initialization failed : %w", err)
		}

		storeProv, err := bbolt.NewProvider(filepath.Join(storePath, dbFile))
		if err != nil {
			return fmt.Errorf("storage initialization failed : %w", err)
		}

		return aries.WithStoreProvider(storeProv)(opts)
	}
}

// WithInboundHTTPAddr sets the inbound http transport. The external address is
// advertised, it defaults to the internal one.
func WithInboundHTTPAddr(internalAddr, externalAddr string) aries.Option {
	return func(opts *aries.Aries) error {
		inbound, err := arieshttp.NewInbound(internalAddr, externalAddr)
		if err != nil {
			return fmt.Errorf("http inbound transport initialization failed : %w", err)
		}

		return aries.WithInboundTransport(inbound)(opts)
	}
}

// WithInboundWSAddr sets the inbound websocket transport.
func WithInboundWSAddr(internalAddr, externalAddr string) aries.Option {
	return func(opts *aries.Aries) error {
		inbound, err := ws.NewInbound(internalAddr, externalAddr)
		if err != nil {
			return fmt.Errorf("ws inbound transport initialization failed : %w", err)
		}

		return aries.WithInboundTransport(inbound)(opts)
	}
}

// FromConfig returns the options for cfg, storage and inbound transports included.
func FromConfig(cfg *aries.Config) []aries.Option {
	opts := cfg.Options()

	if cfg.StorePath != "" {
		opts = append(opts, WithStorePath(cfg.StorePath))
	}

	if cfg.InboundHTTP != "" {
		opts = append(opts, WithInboundHTTPAddr(cfg.InboundHTTP, cfg.Endpoint))
	}

	if cfg.InboundWS != "" {
		opts = append(opts, WithInboundWSAddr(cfg.InboundWS, ""))
	}

	return opts
}
