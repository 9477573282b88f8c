/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package localwallet is a Wallet keeping ed25519 keys in a storage provider.
package localwallet

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/btcsuite/btcutil/base58"
	"github.com/google/uuid"
	"golang.org/x/crypto/nacl/box"

	"github.com/hyperledger/aries-didcomm-go/pkg/common/log"
	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/packager"
	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/packer"
	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/transport"
	"github.com/hyperledger/aries-didcomm-go/pkg/doc/didkey"
	"github.com/hyperledger/aries-didcomm-go/pkg/internal/cryptoutil"
	"github.com/hyperledger/aries-didcomm-go/pkg/wallet"
	"github.com/hyperledger/aries-didcomm-go/spi/storage"
)

const (
	// StoreName is the store holding the wallet keys.
	StoreName = "wallet"

	keyPrefix = "key_"
)

var logger = log.New("aries-framework/wallet")

type keyRecord struct {
	ID         string `json:"id"`
	VerKey     string `json:"verkey"`
	PrivateKey string `json:"private_key"`
}

// Wallet implements wallet.Wallet and packer.Crypter.
type Wallet struct {
	store    storage.Store
	mu       sync.RWMutex
	keys     map[string]ed25519.PrivateKey
	packager *packager.Packager
}

// New opens the wallet store of provider.
func New(provider storage.Provider) (*Wallet, error) {
	store, err := provider.OpenStore(StoreName)
	if err != nil {
		return nil, fmt.Errorf("open wallet store: %w", err)
	}

	w := &Wallet{store: store, keys: map[string]ed25519.PrivateKey{}}
	w.packager = packager.New(w)

	return w, nil
}

// Crypter returns the wallet itself, it holds the private keys the packers need.
func (w *Wallet) Crypter() packer.Crypter {
	return w
}

// CreateKey creates and persists an ed25519 key.
func (w *Wallet) CreateKey(seed []byte) (*wallet.KeyInfo, error) {
	var priv ed25519.PrivateKey

	switch len(seed) {
	case 0:
		var err error

		_, priv, err = ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("generate key: %w", err)
		}
	case ed25519.SeedSize:
		priv = ed25519.NewKeyFromSeed(seed)
	default:
		return nil, fmt.Errorf("seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}

	pub, ok := priv.Public().(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("unexpected public key type")
	}

	rec := keyRecord{
		ID:         uuid.New().String(),
		VerKey:     base58.Encode(pub),
		PrivateKey: base58.Encode(priv),
	}

	raw, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("marshal key: %w", err)
	}

	if err = w.store.Put(keyPrefix+rec.VerKey, raw); err != nil {
		return nil, fmt.Errorf("store key: %w", err)
	}

	w.mu.Lock()
	w.keys[rec.VerKey] = priv
	w.mu.Unlock()

	logger.Debugf("created key %s", rec.VerKey)

	return &wallet.KeyInfo{ID: rec.ID, VerKey: rec.VerKey}, nil
}

// Sign signs data with the private key of verKey.
func (w *Wallet) Sign(verKey string, data []byte) ([]byte, error) {
	priv, err := w.privateKey(verKey)
	if err != nil {
		return nil, err
	}

	return ed25519.Sign(priv, data), nil
}

// Verify checks signature over data against verKey. verKey may be a did:key.
func (w *Wallet) Verify(verKey string, data, signature []byte) (bool, error) {
	key, err := didkey.ToVerKey(verKey)
	if err != nil {
		return false, err
	}

	pub := base58.Decode(key)
	if len(pub) != ed25519.PublicKeySize {
		return false, fmt.Errorf("verkey %q is not an ed25519 public key", verKey)
	}

	return ed25519.Verify(pub, data, signature), nil
}

// Pack encrypts payload for recipients.
func (w *Wallet) Pack(payload []byte, sender string, recipients []string) ([]byte, error) {
	return w.packager.PackMessage(&transport.Envelope{Message: payload, FromKey: sender, ToKeys: recipients})
}

// Unpack opens an envelope addressed to one of the wallet's keys.
func (w *Wallet) Unpack(envelope []byte) (*transport.Envelope, error) {
	return w.packager.UnpackMessage(envelope)
}

// HasKey reports whether the private key for verKey is held.
func (w *Wallet) HasKey(verKey string) bool {
	_, err := w.privateKey(verKey)

	return err == nil
}

// Easy seals a message with a provided nonce
// theirPub is used as a public key, while myVerKey is used to identify the private key that should be used.
func (w *Wallet) Easy(payload, nonce, theirPub []byte, myVerKey string) ([]byte, error) {
	priv, err := w.curvePrivateKey(myVerKey)
	if err != nil {
		return nil, err
	}

	var (
		recPubBytes [cryptoutil.Curve25519KeySize]byte
		nonceBytes  [cryptoutil.NonceSize]byte
	)

	copy(recPubBytes[:], theirPub)
	copy(nonceBytes[:], nonce)

	return box.Seal(nil, payload, &nonceBytes, &recPubBytes, priv), nil
}

// EasyOpen unseals a message sealed with Easy, where the nonce is provided.
func (w *Wallet) EasyOpen(cipherText, nonce, theirPub []byte, myVerKey string) ([]byte, error) {
	priv, err := w.curvePrivateKey(myVerKey)
	if err != nil {
		return nil, err
	}

	var (
		sendPubBytes [cryptoutil.Curve25519KeySize]byte
		nonceBytes   [cryptoutil.NonceSize]byte
	)

	copy(sendPubBytes[:], theirPub)
	copy(nonceBytes[:], nonce)

	out, success := box.Open(nil, cipherText, &nonceBytes, &sendPubBytes, priv)
	if !success {
		return nil, errors.New("failed to unpack")
	}

	return out, nil
}

// SealOpen decrypts a payload encrypted with box_seal
//
// Reads the ephemeral sender public key, prepended to a properly-formatted message,
// and uses that along with the recipient private key corresponding to myVerKey to decrypt the message.
func (w *Wallet) SealOpen(cipherText []byte, myVerKey string) ([]byte, error) {
	if len(cipherText) < cryptoutil.Curve25519KeySize {
		return nil, errors.New("message too short")
	}

	priv, err := w.curvePrivateKey(myVerKey)
	if err != nil {
		return nil, err
	}

	myPub, err := cryptoutil.PublicEd25519toCurve25519(base58.Decode(myVerKey))
	if err != nil {
		return nil, err
	}

	var epk [cryptoutil.Curve25519KeySize]byte

	copy(epk[:], cipherText[:cryptoutil.Curve25519KeySize])

	nonce, err := cryptoutil.Nonce(epk[:], myPub)
	if err != nil {
		return nil, err
	}

	out, success := box.Open(nil, cipherText[cryptoutil.Curve25519KeySize:], nonce, &epk, priv)
	if !success {
		return nil, errors.New("failed to unpack")
	}

	return out, nil
}

func (w *Wallet) curvePrivateKey(verKey string) (*[cryptoutil.Curve25519KeySize]byte, error) {
	priv, err := w.privateKey(verKey)
	if err != nil {
		return nil, err
	}

	curve, err := cryptoutil.SecretEd25519toCurve25519(priv)
	if err != nil {
		return nil, err
	}

	var out [cryptoutil.Curve25519KeySize]byte

	copy(out[:], curve)

	return &out, nil
}

// privateKey reads through the cache to the store, keys created by an earlier
// process are loaded on first use.
func (w *Wallet) privateKey(verKey string) (ed25519.PrivateKey, error) {
	if verKey == "" {
		return nil, wallet.ErrKeyNotFound
	}

	w.mu.RLock()
	priv, ok := w.keys[verKey]
	w.mu.RUnlock()

	if ok {
		return priv, nil
	}

	raw, err := w.store.Get(keyPrefix + verKey)
	if err != nil {
		if errors.Is(err, storage.ErrDataNotFound) {
			return nil, fmt.Errorf("%s: %w", verKey, wallet.ErrKeyNotFound)
		}

		return nil, fmt.Errorf("read key: %w", err)
	}

	var rec keyRecord

	if err = json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode key: %w", err)
	}

	priv = base58.Decode(rec.PrivateKey)
	if len(priv) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("stored key for %s is corrupt", verKey)
	}

	w.mu.Lock()
	w.keys[verKey] = priv
	w.mu.Unlock()

	return priv, nil
}
