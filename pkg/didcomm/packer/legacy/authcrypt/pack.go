/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package authcrypt

import (
	"io"

	chacha "golang.org/x/crypto/chacha20poly1305"

	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/common/agenterr"
	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/packer/legacy"
	"github.com/hyperledger/aries-didcomm-go/pkg/internal/cryptoutil"
)

// Pack will encode the payload argument
// Using the protocol defined by Aries RFC #0019.
func (p *Packer) Pack(payload []byte, senderKey string, recipientKeys []string) ([]byte, error) {
	if len(recipientKeys) == 0 {
		return nil, agenterr.Errorf(agenterr.ErrEncryption, "empty recipients keys, must have at least one recipient")
	}

	if senderKey == "" || !p.crypter.HasKey(senderKey) {
		return nil, agenterr.Errorf(agenterr.ErrEncryption, "sender key %q is not held locally", senderKey)
	}

	cek, err := legacy.NewCEK(p.randSource)
	if err != nil {
		return nil, err
	}

	recipients, err := p.buildRecipients(cek, senderKey, recipientKeys)
	if err != nil {
		return nil, err
	}

	header := &legacy.Protected{
		Enc:        legacy.Enc,
		Typ:        legacy.EncodingType,
		Alg:        legacy.AlgAuthcrypt,
		Recipients: recipients,
	}

	return legacy.SealEnvelope(header, cek, payload, p.randSource)
}

func (p *Packer) buildRecipients(cek *[chacha.KeySize]byte, senderKey string, recKeys []string) ([]legacy.Recipient, error) {
	encodedRecipients := make([]legacy.Recipient, 0, len(recKeys))

	for _, recKey := range recKeys {
		rec, err := p.buildRecipient(cek, senderKey, recKey)
		if err != nil {
			return nil, err
		}

		encodedRecipients = append(encodedRecipients, *rec)
	}

	return encodedRecipients, nil
}

// buildRecipient encodes the necessary data for the recipient to decrypt the message
// encrypting the CEK and sender Pub key.
func (p *Packer) buildRecipient(cek *[chacha.KeySize]byte, senderKey, recKey string) (*legacy.Recipient, error) {
	recEncKey, err := legacy.RecipientPublicKey(recKey)
	if err != nil {
		return nil, err
	}

	var nonce [cryptoutil.NonceSize]byte

	if _, err = io.ReadFull(p.randSource, nonce[:]); err != nil {
		return nil, agenterr.Wrap(agenterr.ErrEncryption, err, "generate nonce")
	}

	encCEK, err := p.crypter.Easy(cek[:], nonce[:], recEncKey, senderKey)
	if err != nil {
		return nil, agenterr.Wrap(agenterr.ErrEncryption, err, "encrypt CEK")
	}

	encSender, err := legacy.Seal([]byte(senderKey), recEncKey, p.randSource)
	if err != nil {
		return nil, agenterr.Wrap(agenterr.ErrEncryption, err, "seal sender key")
	}

	return &legacy.Recipient{
		EncryptedKey: legacy.Encode(encCEK),
		Header: legacy.RecipientHeader{
			KID:    recKey,
			Sender: legacy.Encode(encSender),
			IV:     legacy.Encode(nonce[:]),
		},
	}, nil
}
