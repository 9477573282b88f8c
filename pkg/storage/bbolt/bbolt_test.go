/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package bbolt_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hyperledger/aries-didcomm-go/pkg/storage/bbolt"
	"github.com/hyperledger/aries-didcomm-go/pkg/storage/internal/storagetest"
)

func TestBboltProvider(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent.db")

	provider, err := bbolt.NewProvider(path)
	require.NoError(t, err)

	storagetest.TestAll(t, provider)
	require.NoError(t, provider.Close())

	t.Run("data survives reopen", func(t *testing.T) {
		p, err := bbolt.NewProvider(path)
		require.NoError(t, err)

		defer func() { require.NoError(t, p.Close()) }()

		store, err := p.OpenStore("batch")
		require.NoError(t, err)

		v, err := store.Get("a")
		require.NoError(t, err)
		require.Equal(t, []byte("1"), v)
	})

	t.Run("bad path", func(t *testing.T) {
		_, err := bbolt.NewProvider(filepath.Join(t.TempDir(), "missing", "dir", "agent.db"))
		require.Error(t, err)
	})
}
