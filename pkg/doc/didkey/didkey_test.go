/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package didkey

import (
	"crypto/ed25519"
	"crypto/rand"
	"strings"
	"testing"

	"github.com/btcsuite/btcutil/base58"
	"github.com/stretchr/testify/require"
)

func TestCreateDIDKey(t *testing.T) {
	// test vector from https://w3c-ccg.github.io/did-method-key/
	const (
		verKey = "B12NYF8RrR3h41TDCTJojY59usg3mbtbjnFs7Eud1Y6u"
		didKey = "did:key:z6MkpTHR8VNsBxYAAWHut2Geadd9jSwuBV8xRoAnwWsdvktH"
	)

	t.Run("verkey to did:key", func(t *testing.T) {
		got, err := FromVerKey(verKey)
		require.NoError(t, err)
		require.Equal(t, didKey, got)

		_, keyID, err := CreateDIDKey(base58.Decode(verKey))
		require.NoError(t, err)
		require.True(t, strings.HasPrefix(keyID, didKey+"#z6Mk"))
	})

	t.Run("did:key to verkey", func(t *testing.T) {
		got, err := ToVerKey(didKey)
		require.NoError(t, err)
		require.Equal(t, verKey, got)

		got, err = ToVerKey(didKey + "#z6MkpTHR8VNsBxYAAWHut2Geadd9jSwuBV8xRoAnwWsdvktH")
		require.NoError(t, err)
		require.Equal(t, verKey, got)

		got, err = ToVerKey(verKey)
		require.NoError(t, err)
		require.Equal(t, verKey, got)
	})

	t.Run("round trip", func(t *testing.T) {
		pub, _, err := ed25519.GenerateKey(rand.Reader)
		require.NoError(t, err)

		dk, err := FromVerKey(base58.Encode(pub))
		require.NoError(t, err)

		keys, err := ToVerKeys([]string{dk})
		require.NoError(t, err)
		require.Equal(t, []string{base58.Encode(pub)}, keys)
	})

	t.Run("errors", func(t *testing.T) {
		_, err := FromVerKey("abc")
		require.Error(t, err)

		_, err = ToVerKey("did:key:zabc")
		require.Error(t, err)

		_, err = ToVerKey("did:key:")
		require.Error(t, err)

		_, err = ToVerKeys([]string{"did:key:mAAAA"})
		require.Error(t, err)
	})
}
