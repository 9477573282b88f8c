/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package anoncreds

import (
	"encoding/json"
	"fmt"
)

// CredentialOffer is the part of an offer the protocols read.
type CredentialOffer struct {
	SchemaID  string `json:"schema_id"`
	CredDefID string `json:"cred_def_id"`
	Nonce     string `json:"nonce,omitempty"`
}

// Credential is the part of an issued credential the protocols read.
type Credential struct {
	SchemaID  string                     `json:"schema_id"`
	CredDefID string                     `json:"cred_def_id"`
	RevRegID  string                     `json:"rev_reg_id,omitempty"`
	Values    map[string]CredentialValue `json:"values,omitempty"`
}

// CredentialValue is a raw attribute value with its encoding.
type CredentialValue struct {
	Raw     string `json:"raw"`
	Encoded string `json:"encoded"`
}

// NonRevokedInterval bounds the time (unix seconds) a credential must be shown unrevoked.
type NonRevokedInterval struct {
	From *int64 `json:"from,omitempty"`
	To   *int64 `json:"to,omitempty"`
}

// AttributeInfo is one requested attribute of a proof request.
type AttributeInfo struct {
	Name         string              `json:"name,omitempty"`
	Names        []string            `json:"names,omitempty"`
	Restrictions []map[string]string `json:"restrictions,omitempty"`
	NonRevoked   *NonRevokedInterval `json:"non_revoked,omitempty"`
}

// PredicateInfo is one requested predicate of a proof request.
type PredicateInfo struct {
	Name         string              `json:"name"`
	PType        string              `json:"p_type"`
	PValue       int64               `json:"p_value"`
	Restrictions []map[string]string `json:"restrictions,omitempty"`
	NonRevoked   *NonRevokedInterval `json:"non_revoked,omitempty"`
}

// ProofRequest is a presentation request.
type ProofRequest struct {
	Name                string                   `json:"name,omitempty"`
	Version             string                   `json:"version,omitempty"`
	Nonce               string                   `json:"nonce"`
	RequestedAttributes map[string]AttributeInfo `json:"requested_attributes"`
	RequestedPredicates map[string]PredicateInfo `json:"requested_predicates"`
	NonRevoked          *NonRevokedInterval      `json:"non_revoked,omitempty"`
}

// ParseProofRequest decodes and checks a proof request.
func ParseProofRequest(raw json.RawMessage) (*ProofRequest, error) {
	var req ProofRequest

	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, fmt.Errorf("decode proof request: %w", err)
	}

	if req.Nonce == "" {
		return nil, fmt.Errorf("proof request has no nonce")
	}

	for ref, attr := range req.RequestedAttributes {
		if attr.Name == "" && len(attr.Names) == 0 {
			return nil, fmt.Errorf("requested attribute %s has no name", ref)
		}
	}

	return &req, nil
}

// NonRevokedFor returns the interval that applies to referent, the referent's
// own interval taking precedence over the request's.
func (r *ProofRequest) NonRevokedFor(referent string) *NonRevokedInterval {
	if a, ok := r.RequestedAttributes[referent]; ok && a.NonRevoked != nil {
		return a.NonRevoked
	}

	if p, ok := r.RequestedPredicates[referent]; ok && p.NonRevoked != nil {
		return p.NonRevoked
	}

	return r.NonRevoked
}

// CredentialInfo describes a wallet credential.
type CredentialInfo struct {
	Referent  string            `json:"referent"`
	Attrs     map[string]string `json:"attrs"`
	SchemaID  string            `json:"schema_id"`
	CredDefID string            `json:"cred_def_id"`
	RevRegID  string            `json:"rev_reg_id,omitempty"`
	CredRevID string            `json:"cred_rev_id,omitempty"`
}

// CredentialsForProof lists matching credentials per referent.
type CredentialsForProof struct {
	Attrs      map[string][]CredentialInfo `json:"attrs"`
	Predicates map[string][]CredentialInfo `json:"predicates"`
}

// RequestedAttribute selects the credential answering an attribute referent.
type RequestedAttribute struct {
	CredID    string `json:"cred_id"`
	Timestamp *int64 `json:"timestamp,omitempty"`
	Revealed  bool   `json:"revealed"`
}

// RequestedPredicate selects the credential answering a predicate referent.
type RequestedPredicate struct {
	CredID    string `json:"cred_id"`
	Timestamp *int64 `json:"timestamp,omitempty"`
}

// RequestedCredentials is the prover's answer to a proof request.
type RequestedCredentials struct {
	SelfAttestedAttributes map[string]string             `json:"self_attested_attributes"`
	RequestedAttributes    map[string]RequestedAttribute `json:"requested_attributes"`
	RequestedPredicates    map[string]RequestedPredicate `json:"requested_predicates"`
}

// Identifier names the ledger objects one sub proof relies on.
type Identifier struct {
	SchemaID  string `json:"schema_id"`
	CredDefID string `json:"cred_def_id"`
	RevRegID  string `json:"rev_reg_id,omitempty"`
	Timestamp *int64 `json:"timestamp,omitempty"`
}

// SubProof points a referent at the identifier it is answered from.
type SubProof struct {
	Index int `json:"sub_proof_index"`
}

// RequestedProof maps the referents of a proof request to sub proofs.
type RequestedProof struct {
	RevealedAttrs      map[string]SubProof `json:"revealed_attrs,omitempty"`
	RevealedAttrGroups map[string]SubProof `json:"revealed_attr_groups,omitempty"`
	UnrevealedAttrs    map[string]SubProof `json:"unrevealed_attrs,omitempty"`
	Predicates         map[string]SubProof `json:"predicates,omitempty"`
}

func (rp *RequestedProof) all() []map[string]SubProof {
	return []map[string]SubProof{rp.RevealedAttrs, rp.RevealedAttrGroups, rp.UnrevealedAttrs, rp.Predicates}
}

// Proof is the part of a presentation the verifier reads before calling the capability.
type Proof struct {
	RequestedProof RequestedProof `json:"requested_proof"`
	Identifiers    []Identifier   `json:"identifiers"`
}

// IdentifierFor returns the identifier answering referent. Self attested and
// unanswered referents have none.
func (p *Proof) IdentifierFor(referent string) (*Identifier, bool) {
	for _, m := range p.RequestedProof.all() {
		if sp, ok := m[referent]; ok && sp.Index >= 0 && sp.Index < len(p.Identifiers) {
			return &p.Identifiers[sp.Index], true
		}
	}

	return nil, false
}

// ParseProof decodes the identifiers of a proof.
func ParseProof(raw json.RawMessage) (*Proof, error) {
	var p Proof

	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decode proof: %w", err)
	}

	for i, id := range p.Identifiers {
		if id.SchemaID == "" || id.CredDefID == "" {
			return nil, fmt.Errorf("proof identifier %d is incomplete", i)
		}
	}

	for _, m := range p.RequestedProof.all() {
		for ref, sp := range m {
			if sp.Index < 0 || sp.Index >= len(p.Identifiers) {
				return nil, fmt.Errorf("referent %s points at missing sub proof %d", ref, sp.Index)
			}
		}
	}

	return &p, nil
}
