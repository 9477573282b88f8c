/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package aries

import (
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/hyperledger/aries-didcomm-go/pkg/ledger/cache"
)

// Config holds the settings of an agent, as read from a settings map.
type Config struct {
	Label                string        `mapstructure:"label"`
	Endpoint             string        `mapstructure:"endpoint"`
	AutoAccept           bool          `mapstructure:"auto-accept"`
	StorePath            string        `mapstructure:"store-path"`
	InboundHTTP          string        `mapstructure:"inbound-http"`
	InboundWS            string        `mapstructure:"inbound-ws"`
	TransportReturnRoute string        `mapstructure:"transport-return-route"`
	MessageTTL           time.Duration `mapstructure:"message-ttl"`
	SweepInterval        time.Duration `mapstructure:"sweep-interval"`
	TransitionRetries    uint64        `mapstructure:"transition-retries"`
	SendRetries          uint64        `mapstructure:"send-retries"`
	LedgerCacheSize      int           `mapstructure:"ledger-cache-size"`
	LedgerCacheTTL       time.Duration `mapstructure:"ledger-cache-ttl"`
}

// ConfigFromMap decodes settings into a Config. Durations may be given as
// strings like "30m", numbers as strings.
func ConfigFromMap(settings map[string]interface{}) (*Config, error) {
	cfg := &Config{}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           cfg,
	})
	if err != nil {
		return nil, fmt.Errorf("create config decoder: %w", err)
	}

	if err = decoder.Decode(settings); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	return cfg, nil
}

// Options returns the framework options for the settings that need no
// storage or transport construction. See the defaults package for those.
func (c *Config) Options() []Option {
	opts := []Option{
		WithLabel(c.Label),
		WithAutoAccept(c.AutoAccept),
	}

	if c.Endpoint != "" {
		opts = append(opts, WithEndpoint(c.Endpoint))
	}

	if c.TransportReturnRoute != "" {
		opts = append(opts, WithTransportReturnRoute(c.TransportReturnRoute))
	}

	if c.MessageTTL > 0 {
		sweep := c.SweepInterval
		if sweep <= 0 {
			sweep = defaultSweepInterval
		}

		opts = append(opts, WithMessageTTL(c.MessageTTL, sweep))
	}

	if c.TransitionRetries > 0 {
		opts = append(opts, WithTransitionRetries(c.TransitionRetries))
	}

	if c.SendRetries > 0 {
		opts = append(opts, WithSendRetries(c.SendRetries))
	}

	var cacheOpts []cache.Option

	if c.LedgerCacheSize > 0 {
		cacheOpts = append(cacheOpts, cache.WithSize(c.LedgerCacheSize))
	}

	if c.LedgerCacheTTL > 0 {
		cacheOpts = append(cacheOpts, cache.WithExpiration(c.LedgerCacheTTL))
	}

	if len(cacheOpts) > 0 {
		opts = append(opts, WithLedgerCache(cacheOpts...))
	}

	return opts
}
