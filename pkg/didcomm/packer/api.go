/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package packer

import (
	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/transport"
)

// Provider interface for Packer ctx.
type Provider interface {
	Crypter() Crypter
}

// Creator method to create new Packer service.
type Creator func(prov Provider) (Packer, error)

// Crypter gives packers access to the private halves of locally held ed25519
// keys without exposing them. Keys are named by their base58 verkey; theirPub
// arguments are curve25519 public keys.
type Crypter interface {
	// HasKey reports whether the private key for verKey is held locally.
	HasKey(verKey string) bool

	// Easy seals payload for theirPub with the private key of myVerKey (nacl crypto_box).
	Easy(payload, nonce, theirPub []byte, myVerKey string) ([]byte, error)

	// EasyOpen opens a box sealed by theirPub for myVerKey.
	EasyOpen(cipherText, nonce, theirPub []byte, myVerKey string) ([]byte, error)

	// SealOpen opens an anonymous box (crypto_box_seal) addressed to myVerKey.
	SealOpen(cipherText []byte, myVerKey string) ([]byte, error)
}

// Packer is an Aries envelope packer/unpacker to support
// secure DIDComm exchange of envelopes between Aries agents.
type Packer interface {
	// Pack a payload in an Aries compliant format using the sender key
	// and a list of recipients base58 verkeys.
	Pack(payload []byte, senderKey string, recipients []string) ([]byte, error)
	// Unpack an envelope in an Aries compliant format.
	// 		The recipient's key will be the first one in the envelope held by the Crypter.
	Unpack(envelope []byte) (*transport.Envelope, error)

	// EncodingType returns the type of the encoding, as found in the header `Typ` field
	EncodingType() string
}
