/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package didkey converts between did:key identifiers and base58 ed25519 verkeys.
package didkey

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/btcsuite/btcutil/base58"
	"github.com/multiformats/go-multibase"
)

const (
	// source: https://github.com/multiformats/multicodec/blob/master/table.csv.
	ed25519pub = 0xed // Ed25519 public key in multicodec table

	ed25519PubKeySize = 32

	// Prefix starts every did:key identifier.
	Prefix = "did:key:"
)

// CreateDIDKey creates a did:key ID using the multicodec key fingerprint as per the did:key format spec found at:
// https://w3c-ccg.github.io/did-method-key/#format.
func CreateDIDKey(pubKey []byte) (string, string, error) {
	methodID, err := KeyFingerprint(ed25519pub, pubKey)
	if err != nil {
		return "", "", err
	}

	didKey := Prefix + methodID
	keyID := fmt.Sprintf("%s#%s", didKey, methodID)

	return didKey, keyID, nil
}

// FromVerKey returns the did:key of a base58 verkey.
func FromVerKey(verKey string) (string, error) {
	raw := base58.Decode(verKey)
	if len(raw) != ed25519PubKeySize {
		return "", fmt.Errorf("verkey %q is not an ed25519 public key", verKey)
	}

	didKey, _, err := CreateDIDKey(raw)

	return didKey, err
}

// KeyFingerprint generates a multicode fingerprint for pubKeyValue (raw key []byte).
func KeyFingerprint(code uint64, pubKeyValue []byte) (string, error) {
	mc := multicodec(code)

	buf := make([]byte, 0, len(mc)+len(pubKeyValue))
	buf = append(buf, mc...)
	buf = append(buf, pubKeyValue...)

	return multibase.Encode(multibase.Base58BTC, buf)
}

func multicodec(code uint64) []byte {
	buf := make([]byte, binary.MaxVarintLen64)
	n := binary.PutUvarint(buf, code)

	return buf[:n]
}

// PubKeyFromFingerprint extracts the raw public key from a did:key fingerprint.
func PubKeyFromFingerprint(fingerprint string) ([]byte, error) {
	enc, mc, err := multibase.Decode(fingerprint)
	if err != nil {
		return nil, fmt.Errorf("decode fingerprint: %w", err)
	}

	if enc != multibase.Base58BTC {
		return nil, fmt.Errorf("fingerprint encoding %q is not base58btc", string(rune(enc)))
	}

	prefix := multicodec(ed25519pub)
	if len(mc) != len(prefix)+ed25519PubKeySize || !bytes.Equal(prefix, mc[:len(prefix)]) {
		return nil, fmt.Errorf("pubKeyFromFingerprint: not supported public key")
	}

	return mc[len(prefix):], nil
}

// ToVerKey returns the base58 verkey of a did:key. A key that is not a did:key
// is returned unchanged.
func ToVerKey(key string) (string, error) {
	if !IsDIDKey(key) {
		return key, nil
	}

	fingerprint := strings.TrimPrefix(key, Prefix)
	if i := strings.IndexByte(fingerprint, '#'); i >= 0 {
		fingerprint = fingerprint[:i]
	}

	raw, err := PubKeyFromFingerprint(fingerprint)
	if err != nil {
		return "", err
	}

	return base58.Encode(raw), nil
}

// ToVerKeys converts every key in keys with ToVerKey.
func ToVerKeys(keys []string) ([]string, error) {
	out := make([]string, len(keys))

	for i, k := range keys {
		v, err := ToVerKey(k)
		if err != nil {
			return nil, err
		}

		out[i] = v
	}

	return out, nil
}

// IsDIDKey reports whether key is a did:key identifier.
func IsDIDKey(key string) bool {
	return strings.HasPrefix(key, Prefix)
}
