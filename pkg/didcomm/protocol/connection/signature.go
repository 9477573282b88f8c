/*
Copyright Avast Software. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package connection

import (
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/common/agenterr"
	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/protocol/decorator"
	"github.com/hyperledger/aries-didcomm-go/pkg/doc/didkey"
	"github.com/hyperledger/aries-didcomm-go/pkg/wallet"
)

const timestampLength = 8

// prepareConnectionSignature signs the connection with verKey. The signed data
// is an 8 byte big endian timestamp followed by the connection JSON.
func prepareConnectionSignature(w wallet.Wallet, conn *ConnectionBody, verKey string,
	now time.Time) (*decorator.Signature, error) {
	connAttributeBytes, err := json.Marshal(conn)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal connection : %w", err)
	}

	timestampBuf := make([]byte, timestampLength)
	binary.BigEndian.PutUint64(timestampBuf, uint64(now.Unix()))

	concatenateSignData := append(timestampBuf, connAttributeBytes...) //nolint:gocritic

	signature, err := w.Sign(verKey, concatenateSignData)
	if err != nil {
		return nil, fmt.Errorf("signing data: %w", err)
	}

	return &decorator.Signature{
		Type:       SignatureType.String(),
		SignedData: base64.URLEncoding.EncodeToString(concatenateSignData),
		SignVerKey: verKey,
		Signature:  base64.URLEncoding.EncodeToString(signature),
	}, nil
}

// verifySignature verifies connection signature against the invitation key and
// returns the signed connection.
func verifySignature(w wallet.Wallet, connSignature *decorator.Signature, invitationKey string) (*ConnectionBody, error) {
	if connSignature == nil {
		return nil, agenterr.Errorf(agenterr.ErrSignatureVerificationFailed, "response is not signed")
	}

	// The signature data must be used to verify against the invitation's recipientKeys for continuity.
	if connSignature.SignVerKey != "" {
		signer, err := didkey.ToVerKey(connSignature.SignVerKey)
		if err != nil || signer != invitationKey {
			return nil, agenterr.Errorf(agenterr.ErrSignatureVerificationFailed,
				"signer %s is not the invitation key", connSignature.SignVerKey)
		}
	}

	sigData, err := decodeBase64URL(connSignature.SignedData)
	if err != nil {
		return nil, agenterr.Wrap(agenterr.ErrSignatureVerificationFailed, err, "decode signature data")
	}

	// trimming the timestamp - only taking out connection attribute bytes
	if len(sigData) <= timestampLength {
		return nil, agenterr.Errorf(agenterr.ErrSignatureVerificationFailed, "missing connection attribute bytes")
	}

	signature, err := decodeBase64URL(connSignature.Signature)
	if err != nil {
		return nil, agenterr.Wrap(agenterr.ErrSignatureVerificationFailed, err, "decode signature")
	}

	ok, err := w.Verify(invitationKey, sigData, signature)
	if err != nil {
		return nil, agenterr.Wrap(agenterr.ErrSignatureVerificationFailed, err, "verify signature")
	}

	if !ok {
		return nil, agenterr.Errorf(agenterr.ErrSignatureVerificationFailed, "signature does not match")
	}

	conn := &ConnectionBody{}

	if err = json.Unmarshal(sigData[timestampLength:], conn); err != nil {
		return nil, agenterr.Wrap(agenterr.ErrMalformedMessage, err, "JSON unmarshalling of connection")
	}

	return conn, nil
}

func decodeBase64URL(s string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(strings.TrimRight(s, "="))
}
