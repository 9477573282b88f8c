/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package wallet declares the wallet capability: key generation, signing and
// envelope packing. Protocol services only ever reach keys through it.
package wallet

import (
	"errors"

	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/transport"
)

// ErrKeyNotFound is returned when the wallet does not hold the private key for a verkey.
var ErrKeyNotFound = errors.New("key not found in wallet")

// KeyInfo describes a key held by the wallet.
type KeyInfo struct {
	ID     string `json:"id"`
	VerKey string `json:"verkey"`
}

// Wallet is the keystore capability consumed by the agent.
type Wallet interface {
	// CreateKey creates an ed25519 key. A nil seed generates a random key.
	CreateKey(seed []byte) (*KeyInfo, error)

	// Sign signs data with the private key of verKey.
	Sign(verKey string, data []byte) ([]byte, error)

	// Verify checks signature over data against verKey.
	Verify(verKey string, data, signature []byte) (bool, error)

	// Pack encrypts payload for recipients. An empty sender produces an anoncrypt envelope.
	Pack(payload []byte, sender string, recipients []string) ([]byte, error)

	// Unpack opens an envelope addressed to one of the wallet's keys.
	Unpack(envelope []byte) (*transport.Envelope, error)
}
