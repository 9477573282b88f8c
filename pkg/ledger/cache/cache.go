/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package cache wraps a Ledger with an expiring read cache. Schemas, credential
// definitions and revocation registry definitions are immutable once written,
// deltas are never cached.
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/bluele/gcache"

	"github.com/hyperledger/aries-didcomm-go/pkg/common/log"
	"github.com/hyperledger/aries-didcomm-go/pkg/ledger"
)

const (
	defaultSize       = 256
	defaultExpiration = 10 * time.Minute

	kindSchema    = "schema:"
	kindCredDef   = "creddef:"
	kindRevRegDef = "revregdef:"
)

var logger = log.New("aries-framework/ledger/cache")

// Option configures the cache.
type Option func(opts *Ledger)

// WithSize sets the number of cached objects.
func WithSize(size int) Option {
	return func(opts *Ledger) {
		opts.size = size
	}
}

// WithExpiration sets how long an object stays cached.
func WithExpiration(d time.Duration) Option {
	return func(opts *Ledger) {
		opts.expiration = d
	}
}

// Ledger is a caching ledger.Ledger.
type Ledger struct {
	ledger.Ledger
	store      gcache.Cache
	size       int
	expiration time.Duration
}

// New wraps l.
func New(l ledger.Ledger, opts ...Option) *Ledger {
	c := &Ledger{Ledger: l, size: defaultSize, expiration: defaultExpiration}

	for _, opt := range opts {
		opt(c)
	}

	// underlying gcache is threadsafe, no need of locks.
	c.store = gcache.New(c.size).LRU().Expiration(c.expiration).Build()

	return c
}

// ResolveSchema resolves through the cache.
func (c *Ledger) ResolveSchema(ctx context.Context, id string) (*ledger.Schema, error) {
	v, err := c.get(kindSchema+id, func() (interface{}, error) { return c.Ledger.ResolveSchema(ctx, id) })
	if err != nil {
		return nil, err
	}

	return v.(*ledger.Schema), nil //nolint:forcetypeassert
}

// ResolveCredDef resolves through the cache.
func (c *Ledger) ResolveCredDef(ctx context.Context, id string) (*ledger.CredDef, error) {
	v, err := c.get(kindCredDef+id, func() (interface{}, error) { return c.Ledger.ResolveCredDef(ctx, id) })
	if err != nil {
		return nil, err
	}

	return v.(*ledger.CredDef), nil //nolint:forcetypeassert
}

// ResolveRevRegDef resolves through the cache.
func (c *Ledger) ResolveRevRegDef(ctx context.Context, id string) (*ledger.RevRegDef, error) {
	v, err := c.get(kindRevRegDef+id, func() (interface{}, error) { return c.Ledger.ResolveRevRegDef(ctx, id) })
	if err != nil {
		return nil, err
	}

	return v.(*ledger.RevRegDef), nil //nolint:forcetypeassert
}

// PublishSchema publishes and caches the schema.
func (c *Ledger) PublishSchema(ctx context.Context, schema *ledger.Schema) error {
	if err := c.Ledger.PublishSchema(ctx, schema); err != nil {
		return err
	}

	c.set(kindSchema+schema.ID, schema)

	return nil
}

// PublishCredDef publishes and caches the credential definition.
func (c *Ledger) PublishCredDef(ctx context.Context, credDef *ledger.CredDef) error {
	if err := c.Ledger.PublishCredDef(ctx, credDef); err != nil {
		return err
	}

	c.set(kindCredDef+credDef.ID, credDef)

	return nil
}

// PublishRevRegDef publishes and caches the revocation registry definition.
func (c *Ledger) PublishRevRegDef(ctx context.Context, revRegDef *ledger.RevRegDef) error {
	if err := c.Ledger.PublishRevRegDef(ctx, revRegDef); err != nil {
		return err
	}

	c.set(kindRevRegDef+revRegDef.ID, revRegDef)

	return nil
}

// Purge empties the cache.
func (c *Ledger) Purge() {
	c.store.Purge()
}

func (c *Ledger) get(key string, load func() (interface{}, error)) (interface{}, error) {
	v, err := c.store.Get(key)
	if err == nil {
		return v, nil
	}

	if !errors.Is(err, gcache.KeyNotFoundError) {
		return nil, err
	}

	v, err = load()
	if err != nil {
		return nil, err
	}

	c.set(key, v)

	return v, nil
}

func (c *Ledger) set(key string, v interface{}) {
	if err := c.store.Set(key, v); err != nil {
		logger.Warnf("cache %s: %v", key, err)
	}
}
