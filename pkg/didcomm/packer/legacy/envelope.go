/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package legacy holds the envelope format shared by the legacy (RFC 0019)
// authcrypt and anoncrypt packers.
package legacy

import (
	"encoding/base64"
	"encoding/json"
	"io"
	"strings"

	"github.com/btcsuite/btcutil/base58"
	chacha "golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/nacl/box"

	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/common/agenterr"
	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/packer"
	"github.com/hyperledger/aries-didcomm-go/pkg/internal/cryptoutil"
)

const (
	// EncodingType is the `typ` string identifier in a message that identifies the format as being legacy.
	EncodingType = "JWM/1.0"
	// Enc is the content encryption algorithm of legacy envelopes.
	Enc = "xchacha20poly1305_ietf"
	// AlgAuthcrypt marks a sender authenticated envelope.
	AlgAuthcrypt = "Authcrypt"
	// AlgAnoncrypt marks an anonymous envelope.
	AlgAnoncrypt = "Anoncrypt"
)

// Envelope is the full payload envelope for the JSON message.
type Envelope struct {
	Protected  string `json:"protected,omitempty"`
	IV         string `json:"iv,omitempty"`
	CipherText string `json:"ciphertext,omitempty"`
	Tag        string `json:"tag,omitempty"`
}

// Protected is the protected header of the JSON envelope.
type Protected struct {
	Enc        string      `json:"enc,omitempty"`
	Typ        string      `json:"typ,omitempty"`
	Alg        string      `json:"alg,omitempty"`
	Recipients []Recipient `json:"recipients,omitempty"`
}

// Recipient holds the data for a recipient in the envelope header.
type Recipient struct {
	EncryptedKey string          `json:"encrypted_key,omitempty"`
	Header       RecipientHeader `json:"header,omitempty"`
}

// RecipientHeader holds the header data for a recipient.
type RecipientHeader struct {
	KID    string `json:"kid,omitempty"`
	Sender string `json:"sender,omitempty"`
	IV     string `json:"iv,omitempty"`
}

// Encode base64url encodes b.
func Encode(b []byte) string {
	return base64.URLEncoding.EncodeToString(b)
}

// Decode accepts base64url with or without padding.
func Decode(s string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(strings.TrimRight(s, "="))
}

// NewCEK returns a random content encryption key.
func NewCEK(randSource io.Reader) (*[chacha.KeySize]byte, error) {
	cek := new([chacha.KeySize]byte)

	if _, err := io.ReadFull(randSource, cek[:]); err != nil {
		return nil, agenterr.Wrap(agenterr.ErrEncryption, err, "generate content key")
	}

	return cek, nil
}

// RecipientPublicKey converts a base58 ed25519 verkey to its curve25519 form.
func RecipientPublicKey(verKey string) ([]byte, error) {
	pub, err := cryptoutil.PublicEd25519toCurve25519(base58.Decode(verKey))
	if err != nil {
		return nil, agenterr.Wrap(agenterr.ErrEncryption, err, "convert key %s", verKey)
	}

	return pub, nil
}

// Seal seals a payload using the equivalent of libsodium box_seal
//
// Generates an ephemeral keypair to use for the sender, and includes
// the ephemeral sender public key in the message.
func Seal(payload, theirPub []byte, randSource io.Reader) ([]byte, error) {
	epk, esk, err := box.GenerateKey(randSource)
	if err != nil {
		return nil, err
	}

	var recPubBytes [cryptoutil.Curve25519KeySize]byte

	copy(recPubBytes[:], theirPub)

	nonce, err := cryptoutil.Nonce(epk[:], theirPub)
	if err != nil {
		return nil, err
	}

	return box.Seal(epk[:], payload, nonce, &recPubBytes, esk), nil
}

// SealEnvelope builds the complete envelope: the payload is encrypted with the cek and
// the serialized protected header as additional data.
func SealEnvelope(header *Protected, cek *[chacha.KeySize]byte, payload []byte, randSource io.Reader) ([]byte, error) {
	headerBytes, err := json.Marshal(header)
	if err != nil {
		return nil, agenterr.Wrap(agenterr.ErrEncryption, err, "marshal protected header")
	}

	protectedB64 := Encode(headerBytes)

	aead, err := chacha.NewX(cek[:])
	if err != nil {
		return nil, agenterr.Wrap(agenterr.ErrEncryption, err, "create cipher")
	}

	nonce := make([]byte, chacha.NonceSizeX)
	if _, err = io.ReadFull(randSource, nonce); err != nil {
		return nil, agenterr.Wrap(agenterr.ErrEncryption, err, "generate nonce")
	}

	sealed := aead.Seal(nil, nonce, payload, []byte(protectedB64))
	tagStart := len(sealed) - aead.Overhead()

	env := Envelope{
		Protected:  protectedB64,
		IV:         Encode(nonce),
		CipherText: Encode(sealed[:tagStart]),
		Tag:        Encode(sealed[tagStart:]),
	}

	out, err := json.Marshal(env)
	if err != nil {
		return nil, agenterr.Wrap(agenterr.ErrEncryption, err, "marshal envelope")
	}

	return out, nil
}

// Parse decodes an envelope and its protected header and checks they carry alg.
func Parse(raw []byte, alg string) (*Envelope, *Protected, error) {
	var env Envelope

	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, nil, agenterr.Wrap(agenterr.ErrMalformedEnvelope, err, "decode envelope")
	}

	if env.Protected == "" || env.CipherText == "" || env.IV == "" || env.Tag == "" {
		return nil, nil, agenterr.Errorf(agenterr.ErrMalformedEnvelope, "envelope is missing fields")
	}

	headerBytes, err := Decode(env.Protected)
	if err != nil {
		return nil, nil, agenterr.Wrap(agenterr.ErrMalformedEnvelope, err, "decode protected header")
	}

	var header Protected

	if err = json.Unmarshal(headerBytes, &header); err != nil {
		return nil, nil, agenterr.Wrap(agenterr.ErrMalformedEnvelope, err, "decode protected header")
	}

	if header.Typ != EncodingType {
		return nil, nil, agenterr.Errorf(agenterr.ErrMalformedEnvelope, "message type %s not supported", header.Typ)
	}

	if header.Alg != alg {
		return nil, nil, agenterr.Errorf(agenterr.ErrMalformedEnvelope, "message format %s not supported", header.Alg)
	}

	if len(header.Recipients) == 0 {
		return nil, nil, agenterr.Errorf(agenterr.ErrMalformedEnvelope, "envelope has no recipients")
	}

	return &env, &header, nil
}

// PeekAlg returns the alg of an envelope without validating the rest of it.
func PeekAlg(raw []byte) (string, error) {
	var env Envelope

	if err := json.Unmarshal(raw, &env); err != nil {
		return "", agenterr.Wrap(agenterr.ErrMalformedEnvelope, err, "decode envelope")
	}

	headerBytes, err := Decode(env.Protected)
	if err != nil {
		return "", agenterr.Wrap(agenterr.ErrMalformedEnvelope, err, "decode protected header")
	}

	var header Protected

	if err = json.Unmarshal(headerBytes, &header); err != nil {
		return "", agenterr.Wrap(agenterr.ErrMalformedEnvelope, err, "decode protected header")
	}

	return header.Alg, nil
}

// FindRecipient returns the first recipient whose kid is held by the crypter.
// Entries are checked in envelope order and every entry is checked before
// giving up.
func FindRecipient(recipients []Recipient, crypter packer.Crypter) (int, error) {
	for i := range recipients {
		if recipients[i].Header.KID != "" && crypter.HasKey(recipients[i].Header.KID) {
			return i, nil
		}
	}

	kids := make([]string, 0, len(recipients))
	for _, r := range recipients {
		kids = append(kids, r.Header.KID)
	}

	return -1, agenterr.Errorf(agenterr.ErrRecipientKeyNotFound, "none of %v are held locally", kids)
}

// OpenPayload decrypts the ciphertext with the cek.
func OpenPayload(cek []byte, env *Envelope) ([]byte, error) {
	if !cryptoutil.IsChachaKeyValid(cek) {
		return nil, agenterr.Errorf(agenterr.ErrDecryption, "invalid content key size %d", len(cek))
	}

	cipherText, err := Decode(env.CipherText)
	if err != nil {
		return nil, agenterr.Wrap(agenterr.ErrMalformedEnvelope, err, "decode ciphertext")
	}

	nonce, err := Decode(env.IV)
	if err != nil {
		return nil, agenterr.Wrap(agenterr.ErrMalformedEnvelope, err, "decode iv")
	}

	tag, err := Decode(env.Tag)
	if err != nil {
		return nil, agenterr.Wrap(agenterr.ErrMalformedEnvelope, err, "decode tag")
	}

	aead, err := chacha.NewX(cek)
	if err != nil {
		return nil, agenterr.Wrap(agenterr.ErrDecryption, err, "create cipher")
	}

	if len(nonce) != aead.NonceSize() {
		return nil, agenterr.Errorf(agenterr.ErrMalformedEnvelope, "iv has %d bytes", len(nonce))
	}

	payload := make([]byte, 0, len(cipherText)+len(tag))
	payload = append(payload, cipherText...)
	payload = append(payload, tag...)

	message, err := aead.Open(nil, nonce, payload, []byte(env.Protected))
	if err != nil {
		return nil, agenterr.Wrap(agenterr.ErrDecryption, err, "open payload")
	}

	return message, nil
}

// SealedKey wraps err as a decryption failure of the recipient's content key.
func SealedKey(err error, kid string) error {
	return agenterr.Wrap(agenterr.ErrDecryption, err, "failed to decrypt CEK for %s", kid)
}
