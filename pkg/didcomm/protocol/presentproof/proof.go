/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package presentproof

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/hyperledger/aries-didcomm-go/pkg/anoncreds"
	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/common/agenterr"
	"github.com/hyperledger/aries-didcomm-go/pkg/ledger"
)

// ledgerObjects collects what the capability needs to prove or verify.
type ledgerObjects struct {
	schemas    map[string]*ledger.Schema
	credDefs   map[string]*ledger.CredDef
	revRegDefs map[string]*ledger.RevRegDef
	// revocation states (prover) or registry deltas (verifier) by timestamp.
	revRegs map[string]map[int64]json.RawMessage
}

func newLedgerObjects() *ledgerObjects {
	return &ledgerObjects{
		schemas:    make(map[string]*ledger.Schema),
		credDefs:   make(map[string]*ledger.CredDef),
		revRegDefs: make(map[string]*ledger.RevRegDef),
		revRegs:    make(map[string]map[int64]json.RawMessage),
	}
}

func (o *ledgerObjects) resolve(ctx context.Context, l ledger.Ledger, schemaID, credDefID string) error {
	if _, ok := o.schemas[schemaID]; !ok {
		schema, err := l.ResolveSchema(ctx, schemaID)
		if err != nil {
			return agenterr.Capability(err, "resolve schema %s", schemaID)
		}

		o.schemas[schemaID] = schema
	}

	if _, ok := o.credDefs[credDefID]; !ok {
		credDef, err := l.ResolveCredDef(ctx, credDefID)
		if err != nil {
			return agenterr.Wrap(agenterr.ErrUnresolvableCredDef, err, "cred def %s", credDefID)
		}

		o.credDefs[credDefID] = credDef
	}

	return nil
}

func (o *ledgerObjects) revRegDef(ctx context.Context, l ledger.Ledger, id string) (*ledger.RevRegDef, error) {
	if def, ok := o.revRegDefs[id]; ok {
		return def, nil
	}

	def, err := l.ResolveRevRegDef(ctx, id)
	if err != nil {
		return nil, agenterr.Capability(err, "resolve rev reg def %s", id)
	}

	o.revRegDefs[id] = def

	return def, nil
}

func (o *ledgerObjects) put(revRegID string, ts int64, v json.RawMessage) {
	if o.revRegs[revRegID] == nil {
		o.revRegs[revRegID] = make(map[int64]json.RawMessage)
	}

	o.revRegs[revRegID][ts] = v
}

// createProof selects wallet credentials for each referent of the proof
// request and builds the proof.
func (s *Service) createProof(ctx context.Context, rawReq json.RawMessage, p *Present) (json.RawMessage, error) {
	req, err := anoncreds.ParseProofRequest(rawReq)
	if err != nil {
		return nil, agenterr.Wrap(agenterr.ErrFormatMismatch, err, "proof request")
	}

	found, err := s.anoncreds.ProverGetCredentialsForProofReq(ctx, rawReq)
	if err != nil {
		return nil, agenterr.Capability(err, "search credentials")
	}

	selected := &anoncreds.RequestedCredentials{
		SelfAttestedAttributes: make(map[string]string),
		RequestedAttributes:    make(map[string]anoncreds.RequestedAttribute),
		RequestedPredicates:    make(map[string]anoncreds.RequestedPredicate),
	}

	for ref, v := range p.SelfAttested {
		if _, ok := req.RequestedAttributes[ref]; ok {
			selected.SelfAttestedAttributes[ref] = v
		}
	}

	objects := newLedgerObjects()

	for _, ref := range sortedKeys(req.RequestedAttributes) {
		if _, ok := selected.SelfAttestedAttributes[ref]; ok {
			continue
		}

		info, ts, err := s.pick(ctx, objects, req, ref, found.Attrs[ref], p.Selected[ref])
		if err != nil {
			return nil, err
		}

		selected.RequestedAttributes[ref] = anoncreds.RequestedAttribute{
			CredID: info.Referent, Timestamp: ts, Revealed: true,
		}
	}

	for _, ref := range sortedKeys(req.RequestedPredicates) {
		info, ts, err := s.pick(ctx, objects, req, ref, found.Predicates[ref], p.Selected[ref])
		if err != nil {
			return nil, err
		}

		selected.RequestedPredicates[ref] = anoncreds.RequestedPredicate{CredID: info.Referent, Timestamp: ts}
	}

	proof, err := s.anoncreds.ProverCreateProof(ctx, rawReq, selected, objects.schemas, objects.credDefs,
		objects.revRegs)
	if err != nil {
		return nil, agenterr.Capability(err, "create proof")
	}

	return proof, nil
}

// pick chooses the credential answering ref, the selected one when given or
// the first candidate otherwise. The returned timestamp is set when a
// revocation state was built for the credential.
func (s *Service) pick(ctx context.Context, objects *ledgerObjects, req *anoncreds.ProofRequest, ref string,
	candidates []anoncreds.CredentialInfo, want string) (*anoncreds.CredentialInfo, *int64, error) {
	var info *anoncreds.CredentialInfo

	for i := range candidates {
		if want == "" || candidates[i].Referent == want {
			info = &candidates[i]

			break
		}
	}

	if info == nil {
		if want != "" {
			return nil, nil, agenterr.Errorf(agenterr.ErrNoMatchingCredentials,
				"credential %s does not answer %s", want, ref)
		}

		return nil, nil, agenterr.Errorf(agenterr.ErrNoMatchingCredentials, "no credential answers %s", ref)
	}

	if err := objects.resolve(ctx, s.ledger, info.SchemaID, info.CredDefID); err != nil {
		return nil, nil, err
	}

	interval := req.NonRevokedFor(ref)
	if interval == nil || info.RevRegID == "" {
		return info, nil, nil
	}

	ts, err := s.revocationState(ctx, objects, info, interval)
	if err != nil {
		return nil, nil, err
	}

	return info, &ts, nil
}

// revocationState builds the state proving info was not revoked at the end of interval.
func (s *Service) revocationState(ctx context.Context, objects *ledgerObjects, info *anoncreds.CredentialInfo,
	interval *anoncreds.NonRevokedInterval) (int64, error) {
	def, err := objects.revRegDef(ctx, s.ledger, info.RevRegID)
	if err != nil {
		return 0, err
	}

	delta, err := s.ledger.ResolveRevRegDelta(ctx, info.RevRegID, nil, interval.To)
	if err != nil {
		return 0, agenterr.Capability(err, "resolve rev reg delta %s", info.RevRegID)
	}

	if _, ok := objects.revRegs[info.RevRegID][delta.Timestamp]; ok {
		return delta.Timestamp, nil
	}

	state, err := s.anoncreds.CreateRevocationState(ctx, def, delta, delta.Timestamp, info.CredRevID)
	if err != nil {
		return 0, agenterr.Capability(err, "create revocation state for %s", info.RevRegID)
	}

	objects.put(info.RevRegID, delta.Timestamp, state)

	return delta.Timestamp, nil
}

// verify checks the presentation of ex. It returns an error only when the
// verification could not complete.
func (s *Service) verify(ctx context.Context, ex *exchange) (VerificationStatus, error) {
	req, err := anoncreds.ParseProofRequest(ex.ProofRequest)
	if err != nil {
		return VerificationInvalid, nil //nolint:nilerr
	}

	proof, err := anoncreds.ParseProof(ex.Proof)
	if err != nil {
		logger.Infof("presentation is not a proof: %v", err)

		return VerificationInvalid, nil
	}

	if ref, ok := missingTimestamp(req, proof); ok {
		logger.Infof("referent %s answered from a revocable credential without timestamp", ref)

		return VerificationInvalid, nil
	}

	objects := newLedgerObjects()

	for _, id := range proof.Identifiers {
		if err = objects.resolve(ctx, s.ledger, id.SchemaID, id.CredDefID); err != nil {
			return "", unavailable(err)
		}

		if id.RevRegID == "" || id.Timestamp == nil {
			continue
		}

		if _, err = objects.revRegDef(ctx, s.ledger, id.RevRegID); err != nil {
			return "", unavailable(err)
		}

		delta, err := s.ledger.ResolveRevRegDelta(ctx, id.RevRegID, nil, id.Timestamp)
		if err != nil {
			return "", unavailable(err)
		}

		raw, err := json.Marshal(delta)
		if err != nil {
			return "", unavailable(err)
		}

		objects.put(id.RevRegID, *id.Timestamp, raw)
	}

	ok, err := s.anoncreds.VerifierVerifyProof(ctx, ex.ProofRequest, ex.Proof, objects.schemas, objects.credDefs,
		objects.revRegDefs, objects.revRegs)
	if err != nil {
		return "", unavailable(err)
	}

	if !ok {
		return VerificationInvalid, nil
	}

	return VerificationValid, nil
}

func unavailable(err error) error {
	if errors.Is(err, agenterr.ErrVerificationUnavailable) {
		return err
	}

	return agenterr.Wrap(agenterr.ErrVerificationUnavailable, err, "verify presentation")
}

// missingTimestamp finds a referent that asks for non revocation but is
// answered from a revocable credential shown without a timestamp.
func missingTimestamp(req *anoncreds.ProofRequest, proof *anoncreds.Proof) (string, bool) {
	refs := make([]string, 0, len(req.RequestedAttributes)+len(req.RequestedPredicates))

	for ref := range req.RequestedAttributes {
		refs = append(refs, ref)
	}

	for ref := range req.RequestedPredicates {
		refs = append(refs, ref)
	}

	for _, ref := range refs {
		if req.NonRevokedFor(ref) == nil {
			continue
		}

		id, ok := proof.IdentifierFor(ref)
		if ok && id.RevRegID != "" && id.Timestamp == nil {
			return ref, true
		}
	}

	return "", false
}
