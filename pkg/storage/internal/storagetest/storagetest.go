/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package storagetest holds the behaviour every storage provider must have.
package storagetest

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	spi "github.com/hyperledger/aries-didcomm-go/spi/storage"
)

// TestAll runs all provider tests.
func TestAll(t *testing.T, provider spi.Provider) {
	t.Helper()

	t.Run("put get delete", func(t *testing.T) {
		TestPutGetDelete(t, provider)
	})
	t.Run("query prefix", func(t *testing.T) {
		TestQuery(t, provider)
	})
	t.Run("batch", func(t *testing.T) {
		TestBatch(t, provider)
	})
	t.Run("store names are case insensitive", func(t *testing.T) {
		TestStoreNames(t, provider)
	})
}

// TestPutGetDelete checks the single key operations.
func TestPutGetDelete(t *testing.T, provider spi.Provider) {
	t.Helper()

	store, err := provider.OpenStore("put-get")
	require.NoError(t, err)

	require.NoError(t, store.Put("k1", []byte("v1")))
	require.Error(t, store.Put("", []byte("v1")))

	v, err := store.Get("k1")
	require.NoError(t, err)
	require.Equal(t, []byte("v1"), v)

	require.NoError(t, store.Put("k1", []byte("v2")))
	v, err = store.Get("k1")
	require.NoError(t, err)
	require.Equal(t, []byte("v2"), v)

	require.NoError(t, store.Delete("k1"))
	_, err = store.Get("k1")
	require.True(t, errors.Is(err, spi.ErrDataNotFound))

	require.NoError(t, store.Delete("missing"))
}

// TestQuery checks prefix queries return sorted matches only.
func TestQuery(t *testing.T, provider spi.Provider) {
	t.Helper()

	store, err := provider.OpenStore("query")
	require.NoError(t, err)

	require.NoError(t, store.Put("msg_b", []byte("2")))
	require.NoError(t, store.Put("msg_a", []byte("1")))
	require.NoError(t, store.Put("other", []byte("3")))

	it, err := store.Query("msg_")
	require.NoError(t, err)

	ok, err := it.Next()
	require.NoError(t, err)
	require.True(t, ok)

	k, err := it.Key()
	require.NoError(t, err)
	require.Equal(t, "msg_a", k)

	ok, err = it.Next()
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = it.Next()
	require.NoError(t, err)
	require.False(t, ok)

	_, err = it.Value()
	require.Error(t, err)
	require.NoError(t, it.Close())

	all, err := store.Query("")
	require.NoError(t, err)

	values, err := spi.Values(all)
	require.NoError(t, err)
	require.Equal(t, [][]byte{[]byte("1"), []byte("2"), []byte("3")}, values)
}

// TestBatch checks puts and deletes are applied together.
func TestBatch(t *testing.T, provider spi.Provider) {
	t.Helper()

	store, err := provider.OpenStore("batch")
	require.NoError(t, err)

	require.NoError(t, store.Put("gone", []byte("x")))
	require.NoError(t, store.Batch([]spi.Operation{
		{Key: "a", Value: []byte("1")},
		{Key: "gone"},
	}))

	v, err := store.Get("a")
	require.NoError(t, err)
	require.Equal(t, []byte("1"), v)

	_, err = store.Get("gone")
	require.True(t, errors.Is(err, spi.ErrDataNotFound))
}

// TestStoreNames checks a store reopened under another case sees the same data.
func TestStoreNames(t *testing.T, provider spi.Provider) {
	t.Helper()

	s1, err := provider.OpenStore("Names")
	require.NoError(t, err)
	require.NoError(t, s1.Put("k", []byte("v")))

	s2, err := provider.OpenStore("names")
	require.NoError(t, err)

	v, err := s2.Get("k")
	require.NoError(t, err)
	require.Equal(t, []byte("v"), v)

	_, err = provider.OpenStore("")
	require.Error(t, err)
}
