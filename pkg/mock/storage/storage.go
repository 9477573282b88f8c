/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package storage provides a mock Store supporting the behaviour of the
// in-memory store with the added ability to override return values.
package storage

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/hyperledger/aries-didcomm-go/spi/storage"
)

var errIteratorExhausted = errors.New("iterator is exhausted")

// MockStoreProvider mock store provider.
type MockStoreProvider struct {
	Store              *MockStore
	Custom             storage.Store
	ErrOpenStoreHandle error
	ErrClose           error
	FailNamespace      string
}

// NewMockStoreProvider new store provider instance.
func NewMockStoreProvider() *MockStoreProvider {
	return &MockStoreProvider{Store: &MockStore{
		Store: make(map[string][]byte),
	}}
}

// NewCustomMockStoreProvider new mock store provider instance
// from existing mock store.
func NewCustomMockStoreProvider(customStore storage.Store) *MockStoreProvider {
	return &MockStoreProvider{Custom: customStore}
}

// OpenStore opens and returns a store for given name space.
func (s *MockStoreProvider) OpenStore(name string) (storage.Store, error) {
	if name == s.FailNamespace {
		return nil, fmt.Errorf("failed to open store for name space %s", name)
	}

	if s.Custom != nil {
		return s.Custom, s.ErrOpenStoreHandle
	}

	return s.Store, s.ErrOpenStoreHandle
}

// Close closes all stores created under this store provider.
func (s *MockStoreProvider) Close() error {
	return s.ErrClose
}

// MockStore mock store.
type MockStore struct {
	Store     map[string][]byte
	lock      sync.RWMutex
	ErrPut    error
	ErrGet    error
	ErrDelete error
	ErrQuery  error
	ErrBatch  error
	ErrClose  error
	// FailKey makes Put, Get and Delete fail with ErrPut, ErrGet or ErrDelete
	// only for keys with this prefix.
	FailKey string
}

func (s *MockStore) fails(k string) bool {
	return s.FailKey == "" || strings.HasPrefix(k, s.FailKey)
}

// Put stores the key and the record.
func (s *MockStore) Put(k string, v []byte) error {
	if k == "" {
		return errors.New("key is mandatory")
	}

	if s.ErrPut != nil && s.fails(k) {
		return s.ErrPut
	}

	s.lock.Lock()
	s.Store[k] = append([]byte(nil), v...)
	s.lock.Unlock()

	return nil
}

// Get fetches the record based on key.
func (s *MockStore) Get(k string) ([]byte, error) {
	if s.ErrGet != nil && s.fails(k) {
		return nil, s.ErrGet
	}

	s.lock.RLock()
	defer s.lock.RUnlock()

	val, ok := s.Store[k]
	if !ok {
		return nil, storage.ErrDataNotFound
	}

	return val, nil
}

// Query returns the records whose key starts with prefix, in key order.
func (s *MockStore) Query(prefix string) (storage.Iterator, error) {
	if s.ErrQuery != nil {
		return nil, s.ErrQuery
	}

	s.lock.RLock()
	defer s.lock.RUnlock()

	it := &iterator{current: -1}

	for k := range s.Store {
		if strings.HasPrefix(k, prefix) {
			it.keys = append(it.keys, k)
		}
	}

	sort.Strings(it.keys)

	for _, k := range it.keys {
		it.values = append(it.values, s.Store[k])
	}

	return it, nil
}

// Delete will delete record with k key.
func (s *MockStore) Delete(k string) error {
	if s.ErrDelete != nil && s.fails(k) {
		return s.ErrDelete
	}

	s.lock.Lock()
	delete(s.Store, k)
	s.lock.Unlock()

	return nil
}

// Batch performs multiple Put and/or Delete operations in order.
func (s *MockStore) Batch(operations []storage.Operation) error {
	if s.ErrBatch != nil {
		return s.ErrBatch
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	for _, op := range operations {
		if op.Value == nil {
			delete(s.Store, op.Key)

			continue
		}

		s.Store[op.Key] = append([]byte(nil), op.Value...)
	}

	return nil
}

// Close closes this store.
func (s *MockStore) Close() error {
	return s.ErrClose
}

type iterator struct {
	keys    []string
	values  [][]byte
	current int
}

func (i *iterator) Next() (bool, error) {
	if i.current+1 >= len(i.keys) {
		i.current = len(i.keys)

		return false, nil
	}

	i.current++

	return true, nil
}

func (i *iterator) Key() (string, error) {
	if i.current < 0 || i.current >= len(i.keys) {
		return "", errIteratorExhausted
	}

	return i.keys[i.current], nil
}

func (i *iterator) Value() ([]byte, error) {
	if i.current < 0 || i.current >= len(i.keys) {
		return nil, errIteratorExhausted
	}

	return i.values[i.current], nil
}

func (i *iterator) Close() error {
	return nil
}
