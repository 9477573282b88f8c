/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package mem

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	spi "github.com/hyperledger/aries-didcomm-go/spi/storage"
)

var (
	errEmptyKey          = errors.New("key cannot be empty")
	errIteratorExhausted = errors.New("iterator is exhausted")
)

// Provider represents an in-memory implementation of the spi.Provider interface.
type Provider struct {
	dbs  map[string]*memStore
	lock sync.RWMutex
}

// NewProvider instantiates a new in-memory storage Provider.
func NewProvider() *Provider {
	return &Provider{dbs: make(map[string]*memStore)}
}

// OpenStore opens a store with the given name and returns a handle.
// If the store has never been opened before, then it is created.
func (p *Provider) OpenStore(name string) (spi.Store, error) {
	if name == "" {
		return nil, fmt.Errorf("store name cannot be empty")
	}

	storeName := strings.ToLower(name)

	p.lock.Lock()
	defer p.lock.Unlock()

	store := p.dbs[storeName]
	if store == nil {
		store = &memStore{name: storeName, db: make(map[string][]byte)}
		p.dbs[storeName] = store
	}

	return store, nil
}

// Close closes all stores created under this store provider.
func (p *Provider) Close() error {
	p.lock.Lock()
	defer p.lock.Unlock()

	p.dbs = make(map[string]*memStore)

	return nil
}

type memStore struct {
	name string
	db   map[string][]byte
	sync.RWMutex
}

func (m *memStore) Put(key string, value []byte) error {
	if key == "" {
		return errEmptyKey
	}

	if value == nil {
		return errors.New("value cannot be nil")
	}

	m.Lock()
	m.db[key] = copyBytes(value)
	m.Unlock()

	return nil
}

func (m *memStore) Get(key string) ([]byte, error) {
	if key == "" {
		return nil, errEmptyKey
	}

	m.RLock()
	defer m.RUnlock()

	v, ok := m.db[key]
	if !ok {
		return nil, spi.ErrDataNotFound
	}

	return copyBytes(v), nil
}

// Query takes a snapshot of the matching entries, later writes are not visible to the iterator.
func (m *memStore) Query(prefix string) (spi.Iterator, error) {
	m.RLock()
	defer m.RUnlock()

	var keys []string

	for k := range m.db {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}

	sort.Strings(keys)

	values := make([][]byte, len(keys))
	for i, k := range keys {
		values[i] = copyBytes(m.db[k])
	}

	return &memIterator{keys: keys, values: values, current: -1}, nil
}

func (m *memStore) Delete(key string) error {
	if key == "" {
		return errEmptyKey
	}

	m.Lock()
	delete(m.db, key)
	m.Unlock()

	return nil
}

func (m *memStore) Batch(operations []spi.Operation) error {
	for _, op := range operations {
		if op.Key == "" {
			return errEmptyKey
		}
	}

	m.Lock()
	defer m.Unlock()

	for _, op := range operations {
		if op.Value == nil {
			delete(m.db, op.Key)

			continue
		}

		m.db[op.Key] = copyBytes(op.Value)
	}

	return nil
}

func (m *memStore) Close() error {
	return nil
}

type memIterator struct {
	keys    []string
	values  [][]byte
	current int
}

func (i *memIterator) Next() (bool, error) {
	if i.current+1 >= len(i.keys) {
		i.current = len(i.keys)

		return false, nil
	}

	i.current++

	return true, nil
}

func (i *memIterator) Key() (string, error) {
	if i.current < 0 || i.current >= len(i.keys) {
		return "", errIteratorExhausted
	}

	return i.keys[i.current], nil
}

func (i *memIterator) Value() ([]byte, error) {
	if i.current < 0 || i.current >= len(i.keys) {
		return nil, errIteratorExhausted
	}

	return i.values[i.current], nil
}

func (i *memIterator) Close() error {
	return nil
}

func copyBytes(b []byte) []byte {
	cp := make([]byte, len(b))
	copy(cp, b)

	return cp
}
