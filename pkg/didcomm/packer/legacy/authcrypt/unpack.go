/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package authcrypt

import (
	"github.com/btcsuite/btcutil/base58"

	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/common/agenterr"
	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/packer/legacy"
	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/transport"
	"github.com/hyperledger/aries-didcomm-go/pkg/internal/cryptoutil"
)

// Unpack will decode the envelope using the legacy format
// Using XChacha20 encryption algorithm and Poly1035 authenticator.
func (p *Packer) Unpack(envelope []byte) (*transport.Envelope, error) {
	env, header, err := legacy.Parse(envelope, legacy.AlgAuthcrypt)
	if err != nil {
		return nil, err
	}

	idx, err := legacy.FindRecipient(header.Recipients, p.crypter)
	if err != nil {
		return nil, err
	}

	recip := header.Recipients[idx]

	cek, senderKey, err := p.openCEK(&recip)
	if err != nil {
		return nil, err
	}

	data, err := legacy.OpenPayload(cek, env)
	if err != nil {
		return nil, err
	}

	return &transport.Envelope{
		Message: data,
		FromKey: senderKey,
		ToKey:   recip.Header.KID,
	}, nil
}

// openCEK recovers the sender verkey from its sealed box and then the content key.
func (p *Packer) openCEK(recip *legacy.Recipient) ([]byte, string, error) {
	encSender, err := legacy.Decode(recip.Header.Sender)
	if err != nil {
		return nil, "", agenterr.Wrap(agenterr.ErrMalformedEnvelope, err, "decode sender")
	}

	senderRaw, err := p.crypter.SealOpen(encSender, recip.Header.KID)
	if err != nil {
		return nil, "", legacy.SealedKey(err, recip.Header.KID)
	}

	senderKey := string(senderRaw)

	senderCurve, err := cryptoutil.PublicEd25519toCurve25519(base58.Decode(senderKey))
	if err != nil {
		return nil, "", agenterr.Wrap(agenterr.ErrDecryption, err, "convert sender key")
	}

	nonce, err := legacy.Decode(recip.Header.IV)
	if err != nil {
		return nil, "", agenterr.Wrap(agenterr.ErrMalformedEnvelope, err, "decode recipient iv")
	}

	if len(nonce) != cryptoutil.NonceSize {
		return nil, "", agenterr.Errorf(agenterr.ErrMalformedEnvelope, "recipient iv has %d bytes", len(nonce))
	}

	encCEK, err := legacy.Decode(recip.EncryptedKey)
	if err != nil {
		return nil, "", agenterr.Wrap(agenterr.ErrMalformedEnvelope, err, "decode encrypted key")
	}

	cek, err := p.crypter.EasyOpen(encCEK, nonce, senderCurve, recip.Header.KID)
	if err != nil {
		return nil, "", legacy.SealedKey(err, recip.Header.KID)
	}

	return cek, senderKey, nil
}
