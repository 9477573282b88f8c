/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package packager

import (
	"errors"
	"fmt"

	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/common/agenterr"
	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/packer"
	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/packer/legacy"
	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/packer/legacy/anoncrypt"
	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/packer/legacy/authcrypt"
	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/transport"
	"github.com/hyperledger/aries-didcomm-go/pkg/doc/didkey"
)

// Packager is the legacy envelope implementation of transport.Packager. A
// sender key selects authcrypt, no sender key selects anoncrypt.
type Packager struct {
	packers map[string]packer.Packer
}

// New returns a packager whose packers use the provider's crypter.
func New(ctx packer.Provider) *Packager {
	return &Packager{
		packers: map[string]packer.Packer{
			legacy.AlgAuthcrypt: authcrypt.New(ctx),
			legacy.AlgAnoncrypt: anoncrypt.New(ctx),
		},
	}
}

// PackMessage Pack a message for one or more recipients. Keys may be base58
// verkeys or did:key identifiers.
func (bp *Packager) PackMessage(envelope *transport.Envelope) ([]byte, error) {
	if envelope == nil {
		return nil, errors.New("packMessage: envelope argument is nil")
	}

	recipients, err := didkey.ToVerKeys(envelope.ToKeys)
	if err != nil {
		return nil, agenterr.Wrap(agenterr.ErrEncryption, err, "packMessage: recipient keys")
	}

	senderKey, err := didkey.ToVerKey(envelope.FromKey)
	if err != nil {
		return nil, agenterr.Wrap(agenterr.ErrEncryption, err, "packMessage: sender key")
	}

	alg := legacy.AlgAnoncrypt
	if senderKey != "" {
		alg = legacy.AlgAuthcrypt
	}

	packed, err := bp.packers[alg].Pack(envelope.Message, senderKey, recipients)
	if err != nil {
		return nil, fmt.Errorf("packMessage: failed to pack: %w", err)
	}

	return packed, nil
}

// UnpackMessage Unpack a message.
func (bp *Packager) UnpackMessage(encMessage []byte) (*transport.Envelope, error) {
	alg, err := legacy.PeekAlg(encMessage)
	if err != nil {
		return nil, err
	}

	p, ok := bp.packers[alg]
	if !ok {
		return nil, agenterr.Errorf(agenterr.ErrMalformedEnvelope, "envelope alg %q not recognized", alg)
	}

	envelope, err := p.Unpack(encMessage)
	if err != nil {
		return nil, fmt.Errorf("unpack: %w", err)
	}

	return envelope, nil
}
