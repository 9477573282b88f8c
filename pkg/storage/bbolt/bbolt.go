/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package bbolt implements the storage provider on a single bbolt database
// file. Every store is a bucket of that file.
package bbolt

import (
	"bytes"
	"strings"
	"time"

	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"

	spi "github.com/hyperledger/aries-didcomm-go/spi/storage"
)

const (
	fileMode    = 0o600
	openTimeout = time.Second
)

var errEmptyKey = errors.New("key cannot be empty")

// Provider is a bbolt implementation of spi.Provider.
type Provider struct {
	db *bolt.DB
}

// NewProvider opens (or creates) the database file at path.
func NewProvider(path string) (*Provider, error) {
	db, err := bolt.Open(path, fileMode, &bolt.Options{Timeout: openTimeout})
	if err != nil {
		return nil, errors.Wrapf(err, "open bbolt database %s", path)
	}

	return &Provider{db: db}, nil
}

// OpenStore creates the bucket for name on first use and returns a handle to it.
func (p *Provider) OpenStore(name string) (spi.Store, error) {
	if name == "" {
		return nil, errors.New("store name cannot be empty")
	}

	bucket := []byte(strings.ToLower(name))

	err := p.db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucket)

		return err
	})
	if err != nil {
		return nil, errors.Wrapf(err, "create bucket %s", name)
	}

	return &store{db: p.db, bucket: bucket}, nil
}

// Close closes the database file. Store handles become unusable.
func (p *Provider) Close() error {
	return errors.Wrap(p.db.Close(), "close bbolt database")
}

type store struct {
	db     *bolt.DB
	bucket []byte
}

func (s *store) Put(key string, value []byte) error {
	if key == "" {
		return errEmptyKey
	}

	if value == nil {
		return errors.New("value cannot be nil")
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(s.bucket).Put([]byte(key), value)
	})
}

func (s *store) Get(key string) ([]byte, error) {
	if key == "" {
		return nil, errEmptyKey
	}

	var value []byte

	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(s.bucket).Get([]byte(key))
		if v == nil {
			return spi.ErrDataNotFound
		}

		// v is only valid inside the transaction
		value = append([]byte(nil), v...)

		return nil
	})
	if err != nil {
		return nil, err
	}

	return value, nil
}

func (s *store) Query(prefix string) (spi.Iterator, error) {
	it := &iterator{current: -1}
	p := []byte(prefix)

	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(s.bucket).Cursor()

		for k, v := c.Seek(p); k != nil && bytes.HasPrefix(k, p); k, v = c.Next() {
			it.keys = append(it.keys, string(k))
			it.values = append(it.values, append([]byte(nil), v...))
		}

		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "query prefix %s", prefix)
	}

	return it, nil
}

func (s *store) Delete(key string) error {
	if key == "" {
		return errEmptyKey
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(s.bucket).Delete([]byte(key))
	})
}

func (s *store) Batch(operations []spi.Operation) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucket)

		for _, op := range operations {
			if op.Key == "" {
				return errEmptyKey
			}

			var err error
			if op.Value == nil {
				err = b.Delete([]byte(op.Key))
			} else {
				err = b.Put([]byte(op.Key), op.Value)
			}

			if err != nil {
				return errors.Wrapf(err, "batch operation on %s", op.Key)
			}
		}

		return nil
	})
}

func (s *store) Close() error {
	return nil
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
		return "", errors.New("iterator is exhausted")
	}

	return i.keys[i.current], nil
}

func (i *iterator) Value() ([]byte, error) {
	if i.current < 0 || i.current >= len(i.keys) {
		return nil, errors.New("iterator is exhausted")
	}

	return i.values[i.current], nil
}

func (i *iterator) Close() error {
	return nil
}
