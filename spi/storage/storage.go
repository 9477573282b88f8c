/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package storage

import (
	"errors"

	spi "github.com/hyperledger/aries-didcomm-go/spi/log"
)

var (
	// ErrStoreNotFound is returned when a store is not found.
	ErrStoreNotFound = errors.New("store not found")
	// ErrDataNotFound is returned when data is not found.
	ErrDataNotFound = errors.New("data not found")
)

// Operation represents an operation to be performed in the Batch method.
type Operation struct {
	Key   string
	Value []byte // A nil value will result in a delete operation.
}

// Provider represents a storage provider.
type Provider interface {
	// OpenStore opens a store with the given name and returns a handle.
	// If the store has never been opened before, then it is created.
	// Store names are not case-sensitive.
	OpenStore(name string) (Store, error)

	// Close closes all stores created under this store provider.
	Close() error
}

// Store represents a storage database.
type Store interface {
	// Put stores the key + value pair. If the key already exists the value is overwritten.
	Put(key string, value []byte) error

	// Get fetches the value associated with the given key.
	// If key cannot be found, then an error wrapping ErrDataNotFound will be returned.
	Get(key string) ([]byte, error)

	// Query returns all data whose key starts with prefix, in ascending key order.
	// An empty prefix matches every key.
	Query(prefix string) (Iterator, error)

	// Delete deletes the key + value pair. Deleting a missing key is not an error.
	Delete(key string) error

	// Batch performs multiple Put and/or Delete operations atomically.
	Batch(operations []Operation) error

	// Close closes this store object, freeing resources.
	Close() error
}

// Iterator allows for iteration over a collection of entries in a store.
type Iterator interface {
	// Next moves the pointer to the next entry in the iterator. It returns false if the iterator is exhausted.
	Next() (bool, error)

	// Key returns the key of the current entry.
	Key() (string, error)

	// Value returns the value of the current entry.
	Value() ([]byte, error)

	// Close closes this iterator object, freeing resources.
	Close() error
}

// Close closes iterator and logs any error that occurs.
func Close(iterator Iterator, logger spi.Logger) {
	if err := iterator.Close(); err != nil && logger != nil {
		logger.Errorf("failed to close iterator: %s", err.Error())
	}
}

// Values drains the iterator and returns every value it yields.
func Values(iterator Iterator) ([][]byte, error) {
	var values [][]byte

	for {
		ok, err := iterator.Next()
		if err != nil {
			return nil, err
		}

		if !ok {
			return values, nil
		}

		v, err := iterator.Value()
		if err != nil {
			return nil, err
		}

		values = append(values, v)
	}
}
