/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package anoncreds declares the anonymous credential capability. The
// credential math lives behind the Anoncreds interface; this package only
// models the JSON structures the protocols need to look inside.
package anoncreds

import (
	"context"
	"encoding/json"

	"github.com/hyperledger/aries-didcomm-go/pkg/ledger"
)

// Anoncreds is the zero-knowledge credential capability.
type Anoncreds interface {
	// IssuerCreateCredentialOffer creates an offer for a credential definition.
	IssuerCreateCredentialOffer(ctx context.Context, credDefID string) (json.RawMessage, error)
	// IssuerCreateCredential signs a credential for a request answering offer.
	// revRegID is empty for non revocable credentials. The credential revocation id
	// is empty when the credential is not revocable.
	IssuerCreateCredential(ctx context.Context, offer, request json.RawMessage, values map[string]string,
		revRegID string) (credential json.RawMessage, credRevID string, err error)

	// ProverCreateCredentialReq creates a credential request and the metadata
	// needed to store the issued credential.
	ProverCreateCredentialReq(ctx context.Context, proverDID string, offer json.RawMessage,
		credDef *ledger.CredDef) (request, metadata json.RawMessage, err error)
	// ProverStoreCredential stores a credential in the prover wallet and returns its id.
	ProverStoreCredential(ctx context.Context, credID string, metadata, credential json.RawMessage,
		credDef *ledger.CredDef, revRegDef *ledger.RevRegDef) (string, error)
	// ProverGetCredentialsForProofReq lists wallet credentials matching each referent of the request.
	ProverGetCredentialsForProofReq(ctx context.Context, proofReq json.RawMessage) (*CredentialsForProof, error)
	// ProverCreateProof builds a proof from the selected credentials.
	ProverCreateProof(ctx context.Context, proofReq json.RawMessage, selected *RequestedCredentials,
		schemas map[string]*ledger.Schema, credDefs map[string]*ledger.CredDef,
		revStates map[string]map[int64]json.RawMessage) (json.RawMessage, error)

	// VerifierVerifyProof checks the signatures and predicates of proof.
	VerifierVerifyProof(ctx context.Context, proofReq, proof json.RawMessage,
		schemas map[string]*ledger.Schema, credDefs map[string]*ledger.CredDef,
		revRegDefs map[string]*ledger.RevRegDef, revRegs map[string]map[int64]json.RawMessage) (bool, error)

	// CreateRevocationState builds the witness proving credRevID was not revoked at timestamp.
	CreateRevocationState(ctx context.Context, revRegDef *ledger.RevRegDef, delta *ledger.RevRegDelta,
		timestamp int64, credRevID string) (json.RawMessage, error)
}
