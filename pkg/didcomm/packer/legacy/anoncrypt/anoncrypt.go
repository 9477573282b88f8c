/*
Copyright Avast Software. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package anoncrypt

import (
	"crypto/rand"
	"io"

	chacha "golang.org/x/crypto/chacha20poly1305"

	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/common/agenterr"
	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/packer"
	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/packer/legacy"
	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/transport"
)

// Packer represents an Anoncrypt Pack/Unpacker that outputs/reads legacy Aries envelopes.
type Packer struct {
	randSource io.Reader
	crypter    packer.Crypter
}

// New will create a Packer that encrypts messages for recipients without revealing the sender.
func New(ctx packer.Provider) *Packer {
	return &Packer{
		randSource: rand.Reader,
		crypter:    ctx.Crypter(),
	}
}

// EncodingType returns the type of the encoding, as in the `Typ` field of the envelope header.
func (p *Packer) EncodingType() string {
	return legacy.EncodingType
}

// Pack will encode the payload argument for recipientKeys. The sender key is ignored.
func (p *Packer) Pack(payload []byte, _ string, recipientKeys []string) ([]byte, error) {
	if len(recipientKeys) == 0 {
		return nil, agenterr.Errorf(agenterr.ErrEncryption, "empty recipients keys, must have at least one recipient")
	}

	cek, err := legacy.NewCEK(p.randSource)
	if err != nil {
		return nil, err
	}

	recipients := make([]legacy.Recipient, 0, len(recipientKeys))

	for _, recKey := range recipientKeys {
		rec, e := p.buildRecipient(cek, recKey)
		if e != nil {
			return nil, e
		}

		recipients = append(recipients, *rec)
	}

	header := &legacy.Protected{
		Enc:        legacy.Enc,
		Typ:        legacy.EncodingType,
		Alg:        legacy.AlgAnoncrypt,
		Recipients: recipients,
	}

	return legacy.SealEnvelope(header, cek, payload, p.randSource)
}

func (p *Packer) buildRecipient(cek *[chacha.KeySize]byte, recKey string) (*legacy.Recipient, error) {
	recEncKey, err := legacy.RecipientPublicKey(recKey)
	if err != nil {
		return nil, err
	}

	encCEK, err := legacy.Seal(cek[:], recEncKey, p.randSource)
	if err != nil {
		return nil, agenterr.Wrap(agenterr.ErrEncryption, err, "seal CEK")
	}

	return &legacy.Recipient{
		EncryptedKey: legacy.Encode(encCEK),
		Header:       legacy.RecipientHeader{KID: recKey},
	}, nil
}

// Unpack will decode the envelope using the legacy format.
func (p *Packer) Unpack(envelope []byte) (*transport.Envelope, error) {
	env, header, err := legacy.Parse(envelope, legacy.AlgAnoncrypt)
	if err != nil {
		return nil, err
	}

	idx, err := legacy.FindRecipient(header.Recipients, p.crypter)
	if err != nil {
		return nil, err
	}

	recip := header.Recipients[idx]

	encCEK, err := legacy.Decode(recip.EncryptedKey)
	if err != nil {
		return nil, agenterr.Wrap(agenterr.ErrMalformedEnvelope, err, "decode encrypted key")
	}

	cek, err := p.crypter.SealOpen(encCEK, recip.Header.KID)
	if err != nil {
		return nil, legacy.SealedKey(err, recip.Header.KID)
	}

	data, err := legacy.OpenPayload(cek, env)
	if err != nil {
		return nil, err
	}

	return &transport.Envelope{
		Message: data,
		ToKey:   recip.Header.KID,
	}, nil
}
