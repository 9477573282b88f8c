/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package anoncreds provides a deterministic stand-in for the anoncreds
// capability. It keeps credentials in memory and signs proofs with a checksum
// over the nonce and the revealed values, so tampered presentations fail to
// verify. It performs no cryptography and must only be used in tests.
package anoncreds

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/hyperledger/aries-didcomm-go/pkg/anoncreds"
	"github.com/hyperledger/aries-didcomm-go/pkg/ledger"
)

const attrValuePrefix = "attr::"

// MockAnoncreds implements anoncreds.Anoncreds.
type MockAnoncreds struct {
	mu          sync.RWMutex
	schemaIDs   map[string]string
	credentials map[string]*storedCredential
	revCounter  int

	OfferErr   error
	IssueErr   error
	RequestErr error
	StoreErr   error
	SearchErr  error
	ProofErr   error
	VerifyErr  error
	RevocErr   error
}

type storedCredential struct {
	info anoncreds.CredentialInfo
	raw  map[string]string
}

// Proof is the proof document produced by the mock.
type Proof struct {
	Nonce          string                 `json:"nonce"`
	RequestedProof RequestedProof         `json:"requested_proof"`
	Identifiers    []anoncreds.Identifier `json:"identifiers"`
	Checksum       string                 `json:"checksum"`
}

// RequestedProof carries the disclosed values of a proof.
type RequestedProof struct {
	RevealedAttrs     map[string]RevealedAttr       `json:"revealed_attrs"`
	UnrevealedAttrs   map[string]anoncreds.SubProof `json:"unrevealed_attrs"`
	SelfAttestedAttrs map[string]string             `json:"self_attested_attrs"`
	Predicates        map[string]anoncreds.SubProof `json:"predicates"`
}

// RevealedAttr is a disclosed value and the sub proof it comes from.
type RevealedAttr struct {
	SubProofIndex int    `json:"sub_proof_index"`
	Raw           string `json:"raw"`
}

type credentialRequest struct {
	ProverDID string `json:"prover_did"`
	CredDefID string `json:"cred_def_id"`
	Nonce     string `json:"nonce"`
}

// New returns an empty mock.
func New() *MockAnoncreds {
	return &MockAnoncreds{
		schemaIDs:   make(map[string]string),
		credentials: make(map[string]*storedCredential),
	}
}

// AddCredDef makes credDefID known to the issuer side of the mock.
func (m *MockAnoncreds) AddCredDef(credDefID, schemaID string) {
	m.mu.Lock()
	m.schemaIDs[credDefID] = schemaID
	m.mu.Unlock()
}

// AddCredential puts a credential in the prover wallet.
func (m *MockAnoncreds) AddCredential(info anoncreds.CredentialInfo) {
	m.mu.Lock()
	m.credentials[info.Referent] = &storedCredential{info: info, raw: info.Attrs}
	m.mu.Unlock()
}

// IssuerCreateCredentialOffer creates an offer for a known credential definition.
func (m *MockAnoncreds) IssuerCreateCredentialOffer(_ context.Context, credDefID string) (json.RawMessage, error) {
	if m.OfferErr != nil {
		return nil, m.OfferErr
	}

	m.mu.RLock()
	schemaID, ok := m.schemaIDs[credDefID]
	m.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown cred def %s", credDefID)
	}

	return json.Marshal(anoncreds.CredentialOffer{SchemaID: schemaID, CredDefID: credDefID, Nonce: uuid.New().String()})
}

// IssuerCreateCredential issues the values against a request matching the offer.
func (m *MockAnoncreds) IssuerCreateCredential(_ context.Context, offer, request json.RawMessage,
	values map[string]string, revRegID string) (json.RawMessage, string, error) {
	if m.IssueErr != nil {
		return nil, "", m.IssueErr
	}

	var (
		o anoncreds.CredentialOffer
		r credentialRequest
	)

	if err := json.Unmarshal(offer, &o); err != nil {
		return nil, "", fmt.Errorf("decode offer: %w", err)
	}

	if err := json.Unmarshal(request, &r); err != nil {
		return nil, "", fmt.Errorf("decode request: %w", err)
	}

	if r.CredDefID != o.CredDefID || r.Nonce != o.Nonce {
		return nil, "", errors.New("request does not answer the offer")
	}

	cred := anoncreds.Credential{
		SchemaID:  o.SchemaID,
		CredDefID: o.CredDefID,
		RevRegID:  revRegID,
		Values:    make(map[string]anoncreds.CredentialValue, len(values)),
	}

	for k, v := range values {
		cred.Values[k] = anoncreds.CredentialValue{Raw: v, Encoded: Encode(v)}
	}

	var credRevID string

	if revRegID != "" {
		m.mu.Lock()
		m.revCounter++
		credRevID = strconv.Itoa(m.revCounter)
		m.mu.Unlock()
	}

	raw, err := json.Marshal(cred)
	if err != nil {
		return nil, "", err
	}

	return raw, credRevID, nil
}

// ProverCreateCredentialReq answers offer for credDef.
func (m *MockAnoncreds) ProverCreateCredentialReq(_ context.Context, proverDID string, offer json.RawMessage,
	credDef *ledger.CredDef) (json.RawMessage, json.RawMessage, error) {
	if m.RequestErr != nil {
		return nil, nil, m.RequestErr
	}

	var o anoncreds.CredentialOffer
	if err := json.Unmarshal(offer, &o); err != nil {
		return nil, nil, fmt.Errorf("decode offer: %w", err)
	}

	if credDef == nil || credDef.ID != o.CredDefID {
		return nil, nil, errors.New("cred def does not match the offer")
	}

	req, err := json.Marshal(credentialRequest{ProverDID: proverDID, CredDefID: o.CredDefID, Nonce: o.Nonce})
	if err != nil {
		return nil, nil, err
	}

	meta, err := json.Marshal(map[string]string{"nonce": o.Nonce})
	if err != nil {
		return nil, nil, err
	}

	return req, meta, nil
}

// ProverStoreCredential keeps the credential in the prover wallet.
func (m *MockAnoncreds) ProverStoreCredential(_ context.Context, credID string, _ json.RawMessage,
	credential json.RawMessage, credDef *ledger.CredDef, revRegDef *ledger.RevRegDef) (string, error) {
	if m.StoreErr != nil {
		return "", m.StoreErr
	}

	var c anoncreds.Credential
	if err := json.Unmarshal(credential, &c); err != nil {
		return "", fmt.Errorf("decode credential: %w", err)
	}

	if credDef == nil || credDef.ID != c.CredDefID {
		return "", errors.New("cred def does not match the credential")
	}

	if c.RevRegID != "" && (revRegDef == nil || revRegDef.ID != c.RevRegID) {
		return "", errors.New("rev reg def does not match the credential")
	}

	if credID == "" {
		credID = uuid.New().String()
	}

	attrs := make(map[string]string, len(c.Values))
	for k, v := range c.Values {
		attrs[k] = v.Raw
	}

	m.AddCredential(anoncreds.CredentialInfo{
		Referent:  credID,
		Attrs:     attrs,
		SchemaID:  c.SchemaID,
		CredDefID: c.CredDefID,
		RevRegID:  c.RevRegID,
	})

	return credID, nil
}

// ProverGetCredentialsForProofReq lists the wallet credentials answering each referent.
func (m *MockAnoncreds) ProverGetCredentialsForProofReq(_ context.Context,
	proofReq json.RawMessage) (*anoncreds.CredentialsForProof, error) {
	if m.SearchErr != nil {
		return nil, m.SearchErr
	}

	req, err := anoncreds.ParseProofRequest(proofReq)
	if err != nil {
		return nil, err
	}

	out := &anoncreds.CredentialsForProof{
		Attrs:      make(map[string][]anoncreds.CredentialInfo),
		Predicates: make(map[string][]anoncreds.CredentialInfo),
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, c := range m.sorted() {
		for ref, attr := range req.RequestedAttributes {
			if hasAttrs(c, attrNames(attr)) && matches(c, attr.Restrictions) {
				out.Attrs[ref] = append(out.Attrs[ref], c.info)
			}
		}

		for ref, pred := range req.RequestedPredicates {
			if satisfies(c, pred) && matches(c, pred.Restrictions) {
				out.Predicates[ref] = append(out.Predicates[ref], c.info)
			}
		}
	}

	return out, nil
}

// ProverCreateProof builds a proof from the selected credentials.
func (m *MockAnoncreds) ProverCreateProof(_ context.Context, proofReq json.RawMessage,
	selected *anoncreds.RequestedCredentials, schemas map[string]*ledger.Schema,
	credDefs map[string]*ledger.CredDef, revStates map[string]map[int64]json.RawMessage) (json.RawMessage, error) {
	if m.ProofErr != nil {
		return nil, m.ProofErr
	}

	req, err := anoncreds.ParseProofRequest(proofReq)
	if err != nil {
		return nil, err
	}

	proof := Proof{
		Nonce: req.Nonce,
		RequestedProof: RequestedProof{
			RevealedAttrs:     make(map[string]RevealedAttr),
			UnrevealedAttrs:   make(map[string]anoncreds.SubProof),
			SelfAttestedAttrs: selected.SelfAttestedAttributes,
			Predicates:        make(map[string]anoncreds.SubProof),
		},
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[string]int)

	use := func(credID string, ts *int64) (*storedCredential, int, error) {
		c, ok := m.credentials[credID]
		if !ok {
			return nil, 0, fmt.Errorf("credential %s not in wallet", credID)
		}

		if schemas[c.info.SchemaID] == nil || credDefs[c.info.CredDefID] == nil {
			return nil, 0, fmt.Errorf("ledger objects of credential %s are missing", credID)
		}

		if ts != nil && revStates[c.info.RevRegID][*ts] == nil {
			return nil, 0, fmt.Errorf("no revocation state for %s at %d", c.info.RevRegID, *ts)
		}

		key := credID
		if ts != nil {
			key += "@" + strconv.FormatInt(*ts, 10)
		}

		idx, ok := seen[key]
		if !ok {
			idx = len(proof.Identifiers)
			seen[key] = idx
			proof.Identifiers = append(proof.Identifiers, anoncreds.Identifier{
				SchemaID:  c.info.SchemaID,
				CredDefID: c.info.CredDefID,
				RevRegID:  c.info.RevRegID,
				Timestamp: ts,
			})
		}

		return c, idx, nil
	}

	for ref, sel := range selected.RequestedAttributes {
		c, idx, err := use(sel.CredID, sel.Timestamp)
		if err != nil {
			return nil, err
		}

		attr, ok := req.RequestedAttributes[ref]
		if !ok {
			return nil, fmt.Errorf("referent %s was not requested", ref)
		}

		if !sel.Revealed {
			proof.RequestedProof.UnrevealedAttrs[ref] = anoncreds.SubProof{Index: idx}

			continue
		}

		vals := make([]string, 0, len(attrNames(attr)))
		for _, n := range attrNames(attr) {
			vals = append(vals, c.raw[n])
		}

		proof.RequestedProof.RevealedAttrs[ref] = RevealedAttr{SubProofIndex: idx, Raw: strings.Join(vals, ",")}
	}

	for ref, sel := range selected.RequestedPredicates {
		c, idx, err := use(sel.CredID, sel.Timestamp)
		if err != nil {
			return nil, err
		}

		pred, ok := req.RequestedPredicates[ref]
		if !ok || !satisfies(c, pred) {
			return nil, fmt.Errorf("predicate %s is not satisfied", ref)
		}

		proof.RequestedProof.Predicates[ref] = anoncreds.SubProof{Index: idx}
	}

	proof.Checksum = checksum(&proof)

	return json.Marshal(proof)
}

// VerifierVerifyProof checks the proof answers proofReq and was not altered.
func (m *MockAnoncreds) VerifierVerifyProof(_ context.Context, proofReq, proof json.RawMessage,
	schemas map[string]*ledger.Schema, credDefs map[string]*ledger.CredDef,
	revRegDefs map[string]*ledger.RevRegDef, revRegs map[string]map[int64]json.RawMessage) (bool, error) {
	if m.VerifyErr != nil {
		return false, m.VerifyErr
	}

	req, err := anoncreds.ParseProofRequest(proofReq)
	if err != nil {
		return false, err
	}

	var p Proof
	if err = json.Unmarshal(proof, &p); err != nil {
		return false, nil //nolint:nilerr // an undecodable proof is invalid, not a failure
	}

	for _, id := range p.Identifiers {
		if schemas[id.SchemaID] == nil || credDefs[id.CredDefID] == nil {
			return false, fmt.Errorf("ledger objects for %s are missing", id.CredDefID)
		}

		if id.RevRegID != "" && id.Timestamp != nil {
			if revRegDefs[id.RevRegID] == nil || revRegs[id.RevRegID][*id.Timestamp] == nil {
				return false, fmt.Errorf("revocation registry %s is missing", id.RevRegID)
			}
		}
	}

	if p.Nonce != req.Nonce || p.Checksum != checksum(&p) {
		return false, nil
	}

	for ref := range req.RequestedAttributes {
		_, revealed := p.RequestedProof.RevealedAttrs[ref]
		_, unrevealed := p.RequestedProof.UnrevealedAttrs[ref]
		_, attested := p.RequestedProof.SelfAttestedAttrs[ref]

		if !revealed && !unrevealed && !attested {
			return false, nil
		}
	}

	for ref := range req.RequestedPredicates {
		if _, ok := p.RequestedProof.Predicates[ref]; !ok {
			return false, nil
		}
	}

	return true, nil
}

// CreateRevocationState returns a state naming the registry, timestamp and credential.
func (m *MockAnoncreds) CreateRevocationState(_ context.Context, revRegDef *ledger.RevRegDef,
	delta *ledger.RevRegDelta, timestamp int64, credRevID string) (json.RawMessage, error) {
	if m.RevocErr != nil {
		return nil, m.RevocErr
	}

	if revRegDef == nil || delta == nil || delta.RevRegID != revRegDef.ID {
		return nil, errors.New("delta does not belong to the registry")
	}

	return json.Marshal(map[string]interface{}{
		"rev_reg_id":  revRegDef.ID,
		"timestamp":   timestamp,
		"cred_rev_id": credRevID,
	})
}

// Encode returns the encoding of a raw credential value: integers encode to
// themselves, anything else to a decimal hash.
func Encode(raw string) string {
	if _, err := strconv.ParseInt(raw, 10, 32); err == nil {
		return raw
	}

	h := fnv.New64a()
	_, _ = h.Write([]byte(raw)) //nolint:errcheck

	return strconv.FormatUint(h.Sum64(), 10)
}

func (m *MockAnoncreds) sorted() []*storedCredential {
	out := make([]*storedCredential, 0, len(m.credentials))
	for _, c := range m.credentials {
		out = append(out, c)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].info.Referent < out[j].info.Referent })

	return out
}

func attrNames(a anoncreds.AttributeInfo) []string {
	if len(a.Names) > 0 {
		return a.Names
	}

	return []string{a.Name}
}

func hasAttrs(c *storedCredential, names []string) bool {
	for _, n := range names {
		if _, ok := c.raw[n]; !ok {
			return false
		}
	}

	return true
}

// matches reports whether c satisfies any of the restrictions; no restriction
// matches everything.
func matches(c *storedCredential, restrictions []map[string]string) bool {
	if len(restrictions) == 0 {
		return true
	}

	for _, r := range restrictions {
		if matchesOne(c, r) {
			return true
		}
	}

	return false
}

func matchesOne(c *storedCredential, restriction map[string]string) bool {
	for k, v := range restriction {
		switch {
		case k == "schema_id":
			if c.info.SchemaID != v {
				return false
			}
		case k == "cred_def_id":
			if c.info.CredDefID != v {
				return false
			}
		case strings.HasPrefix(k, attrValuePrefix) && strings.HasSuffix(k, "::value"):
			name := strings.TrimSuffix(strings.TrimPrefix(k, attrValuePrefix), "::value")
			if c.raw[name] != v {
				return false
			}
		default:
			return false
		}
	}

	return true
}

func satisfies(c *storedCredential, pred anoncreds.PredicateInfo) bool {
	raw, ok := c.raw[pred.Name]
	if !ok {
		return false
	}

	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return false
	}

	switch pred.PType {
	case ">=":
		return v >= pred.PValue
	case ">":
		return v > pred.PValue
	case "<=":
		return v <= pred.PValue
	case "<":
		return v < pred.PValue
	default:
		return false
	}
}

func checksum(p *Proof) string {
	h := fnv.New64a()

	write := func(s string) {
		_, _ = h.Write([]byte(s)) //nolint:errcheck
		_, _ = h.Write([]byte{0}) //nolint:errcheck
	}

	write(p.Nonce)

	rp := p.RequestedProof

	revealed := make(map[string]string, len(rp.RevealedAttrs))
	for ref, a := range rp.RevealedAttrs {
		revealed[ref] = strconv.Itoa(a.SubProofIndex) + ":" + a.Raw
	}

	indexes := func(sub map[string]anoncreds.SubProof) map[string]string {
		out := make(map[string]string, len(sub))
		for ref, sp := range sub {
			out[ref] = strconv.Itoa(sp.Index)
		}

		return out
	}

	for _, m := range []map[string]string{
		revealed, indexes(rp.UnrevealedAttrs), rp.SelfAttestedAttrs, indexes(rp.Predicates),
	} {
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}

		sort.Strings(keys)

		for _, k := range keys {
			write(k)
			write(m[k])
		}

		write("|")
	}

	for _, id := range p.Identifiers {
		write(id.CredDefID)
	}

	return strconv.FormatUint(h.Sum64(), 16)
}
