/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package ledger

import (
	"context"
	"fmt"
	"sync"

	"github.com/hyperledger/aries-didcomm-go/pkg/ledger"
)

// MockLedger is an in-memory ledger to be used only for unit tests.
type MockLedger struct {
	mu         sync.RWMutex
	schemas    map[string]*ledger.Schema
	credDefs   map[string]*ledger.CredDef
	revRegDefs map[string]*ledger.RevRegDef
	deltas     map[string]*ledger.RevRegDelta

	ResolveErr error
	PublishErr error
	// Resolves counts every Resolve* call.
	Resolves int
}

// NewMockLedger returns an empty ledger.
func NewMockLedger() *MockLedger {
	return &MockLedger{
		schemas:    make(map[string]*ledger.Schema),
		credDefs:   make(map[string]*ledger.CredDef),
		revRegDefs: make(map[string]*ledger.RevRegDef),
		deltas:     make(map[string]*ledger.RevRegDelta),
	}
}

func (m *MockLedger) resolved() error {
	m.mu.Lock()
	m.Resolves++
	m.mu.Unlock()

	return m.ResolveErr
}

// ResolveSchema returns a published schema.
func (m *MockLedger) ResolveSchema(_ context.Context, id string) (*ledger.Schema, error) {
	if err := m.resolved(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.schemas[id]
	if !ok {
		return nil, fmt.Errorf("schema %s: %w", id, ledger.ErrNotFound)
	}

	return s, nil
}

// ResolveCredDef returns a published credential definition.
func (m *MockLedger) ResolveCredDef(_ context.Context, id string) (*ledger.CredDef, error) {
	if err := m.resolved(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.credDefs[id]
	if !ok {
		return nil, fmt.Errorf("cred def %s: %w", id, ledger.ErrNotFound)
	}

	return c, nil
}

// ResolveRevRegDef returns a published revocation registry definition.
func (m *MockLedger) ResolveRevRegDef(_ context.Context, id string) (*ledger.RevRegDef, error) {
	if err := m.resolved(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.revRegDefs[id]
	if !ok {
		return nil, fmt.Errorf("rev reg def %s: %w", id, ledger.ErrNotFound)
	}

	return r, nil
}

// ResolveRevRegDelta returns the last published delta with the timestamp of to.
func (m *MockLedger) ResolveRevRegDelta(_ context.Context, id string, _, to *int64) (*ledger.RevRegDelta, error) {
	if err := m.resolved(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	d, ok := m.deltas[id]
	if !ok {
		return nil, fmt.Errorf("rev reg delta %s: %w", id, ledger.ErrNotFound)
	}

	out := *d
	if to != nil {
		out.Timestamp = *to
	}

	return &out, nil
}

// PublishSchema stores schema.
func (m *MockLedger) PublishSchema(_ context.Context, schema *ledger.Schema) error {
	if m.PublishErr != nil {
		return m.PublishErr
	}

	m.mu.Lock()
	m.schemas[schema.ID] = schema
	m.mu.Unlock()

	return nil
}

// PublishCredDef stores credDef.
func (m *MockLedger) PublishCredDef(_ context.Context, credDef *ledger.CredDef) error {
	if m.PublishErr != nil {
		return m.PublishErr
	}

	m.mu.Lock()
	m.credDefs[credDef.ID] = credDef
	m.mu.Unlock()

	return nil
}

// PublishRevRegDef stores revRegDef.
func (m *MockLedger) PublishRevRegDef(_ context.Context, revRegDef *ledger.RevRegDef) error {
	if m.PublishErr != nil {
		return m.PublishErr
	}

	m.mu.Lock()
	m.revRegDefs[revRegDef.ID] = revRegDef
	m.mu.Unlock()

	return nil
}

// PublishRevRegDelta stores delta.
func (m *MockLedger) PublishRevRegDelta(_ context.Context, delta *ledger.RevRegDelta) error {
	if m.PublishErr != nil {
		return m.PublishErr
	}

	m.mu.Lock()
	m.deltas[delta.RevRegID] = delta
	m.mu.Unlock()

	return nil
}
