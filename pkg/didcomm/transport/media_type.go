/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package transport

const (
	// MediaTypeRFC0019EncryptedEnvelope is the media type for DIDComm V1 encrypted envelopes as per Aries RFC 0019.
	MediaTypeRFC0019EncryptedEnvelope = "JWM/1.0"
	// MediaTypeV1EncryptedEnvelope is the media type for DIDComm V1 encrypted envelopes as per Aries RFC 0044.
	MediaTypeV1EncryptedEnvelope = "application/didcomm-enc-env"
	// MediaTypeV1PlaintextPayload is the media type for DIDComm V1 JWE payloads as per Aries RFC 0044.
	MediaTypeV1PlaintextPayload = "application/json;flavor=didcomm-msg"
	// MediaTypeProfileDIDCommAIP1 is the encryption envelope, signing mechanism, plaintext conventions,
	// and routing algorithms embodied in Aries AIP 1.0.
	MediaTypeProfileDIDCommAIP1 = "didcomm/aip1"
	// LegacyDIDCommContentType is the content type older agents post envelopes with.
	LegacyDIDCommContentType = "application/ssi-agent-wire"
)

// AcceptedContentType reports whether an inbound HTTP request content type carries an envelope.
func AcceptedContentType(ct string) bool {
	switch ct {
	case MediaTypeV1EncryptedEnvelope, LegacyDIDCommContentType, "application/didcomm-envelope-enc", "application/json":
		return true
	default:
		return false
	}
}
