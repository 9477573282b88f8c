/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package presentproof

import (
	"encoding/json"
	"fmt"
	"math/big"
	"sort"

	"github.com/google/uuid"

	"github.com/hyperledger/aries-didcomm-go/pkg/anoncreds"
	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/common/agenterr"
	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/messagetype"
	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/protocol/decorator"
)

const (
	restrictionCredDefID = "cred_def_id"
	attrValuePrefix      = "attr::"
	attrValueSuffix      = "::value"
)

// Proposal is the version independent content of a presentation proposal.
type Proposal struct {
	Comment    string
	Attributes []Attribute
	Predicates []Predicate
}

// Request is the version independent content of a presentation request.
type Request struct {
	Comment string
	// ProofRequest is the anoncreds proof request.
	ProofRequest json.RawMessage
}

// Presentation is the version independent content of a presentation.
type Presentation struct {
	Comment string
	// Proof is the anoncreds proof.
	Proof json.RawMessage
}

// Preview returns the presentation preview of the proposal typed for id.
func (p *Proposal) Preview(id messagetype.Identifier) *PresentationPreview {
	preview := &PresentationPreview{
		Type:       id.WithKind(PresentationPreviewKind).String(),
		Attributes: p.Attributes,
		Predicates: p.Predicates,
	}

	if preview.Attributes == nil {
		preview.Attributes = []Attribute{}
	}

	if preview.Predicates == nil {
		preview.Predicates = []Predicate{}
	}

	return preview
}

// ProofRequest returns a proof request asking for the proposed attributes and
// predicates. Proposed cred def ids and values become restrictions.
func (p *Proposal) ProofRequest(name, nonce string) *anoncreds.ProofRequest {
	req := &anoncreds.ProofRequest{
		Name:                name,
		Version:             "1.0",
		Nonce:               nonce,
		RequestedAttributes: make(map[string]anoncreds.AttributeInfo),
		RequestedPredicates: make(map[string]anoncreds.PredicateInfo),
	}

	for i, attr := range p.Attributes {
		referent := attr.Referent
		if referent == "" {
			referent = fmt.Sprintf("attr_%d", i)
		}

		info, ok := req.RequestedAttributes[referent]
		if !ok {
			info = anoncreds.AttributeInfo{Name: attr.Name}
		} else {
			if info.Name != "" {
				info.Names = []string{info.Name}
				info.Name = ""
			}

			info.Names = append(info.Names, attr.Name)
		}

		if r := restriction(attr.CredDefID, attr.Name, attr.Value); r != nil {
			if len(info.Restrictions) == 0 {
				info.Restrictions = []map[string]string{{}}
			}

			for k, v := range r {
				info.Restrictions[0][k] = v
			}
		}

		req.RequestedAttributes[referent] = info
	}

	for i, pred := range p.Predicates {
		info := anoncreds.PredicateInfo{Name: pred.Name, PType: pred.Predicate, PValue: pred.Threshold}

		if r := restriction(pred.CredDefID, "", ""); r != nil {
			info.Restrictions = []map[string]string{r}
		}

		req.RequestedPredicates[fmt.Sprintf("pred_%d", i)] = info
	}

	return req
}

// FromProofRequest initializes the proposal with the attributes and predicates of req.
func (p *Proposal) FromProofRequest(req *anoncreds.ProofRequest) {
	p.Attributes, p.Predicates = nil, nil

	for _, referent := range sortedKeys(req.RequestedAttributes) {
		info := req.RequestedAttributes[referent]

		names := info.Names
		if len(names) == 0 {
			names = []string{info.Name}
		}

		for _, name := range names {
			attr := Attribute{Name: name}

			if len(names) > 1 {
				attr.Referent = referent
			}

			if len(info.Restrictions) > 0 {
				attr.CredDefID = info.Restrictions[0][restrictionCredDefID]
				attr.Value = info.Restrictions[0][attrValuePrefix+name+attrValueSuffix]
			}

			p.Attributes = append(p.Attributes, attr)
		}
	}

	for _, referent := range sortedKeys(req.RequestedPredicates) {
		info := req.RequestedPredicates[referent]
		pred := Predicate{Name: info.Name, Predicate: info.PType, Threshold: info.PValue}

		if len(info.Restrictions) > 0 {
			pred.CredDefID = info.Restrictions[0][restrictionCredDefID]
		}

		p.Predicates = append(p.Predicates, pred)
	}
}

// AsV1 translates this proposal into a present proof 1.0 proposal message.
func (p *Proposal) AsV1(id messagetype.Identifier) *ProposePresentationV1 {
	return &ProposePresentationV1{
		Type:                 id.WithKind(ProposePresentationKind).String(),
		Comment:              p.Comment,
		PresentationProposal: p.Preview(id),
	}
}

// AsV2 translates this proposal into a present proof 2.0 proposal message.
// The proposal is attached as a proof request without nonce.
func (p *Proposal) AsV2(id messagetype.Identifier) (*ProposePresentationV2, error) {
	raw, err := marshalProofRequest(p.ProofRequest("proposal", ""))
	if err != nil {
		return nil, err
	}

	return &ProposePresentationV2{
		Type:            id.WithKind(ProposePresentationKind).String(),
		Comment:         p.Comment,
		Formats:         []Format{{AttachID: ProposalAttachID, Format: FormatProofRequest}},
		ProposalsAttach: []decorator.Attachment{decorator.NewBase64Attachment(ProposalAttachID, mimeTypeJSON, raw)},
	}, nil
}

// FromV1 initializes this proposal from a present proof 1.0 proposal.
func (p *Proposal) FromV1(v1 *ProposePresentationV1) error {
	if v1.PresentationProposal == nil {
		return agenterr.Errorf(agenterr.ErrFormatMismatch, "proposal has no presentation preview")
	}

	p.Comment = v1.Comment
	p.Attributes = v1.PresentationProposal.Attributes
	p.Predicates = v1.PresentationProposal.Predicates

	return nil
}

// FromV2 initializes this proposal from a present proof 2.0 proposal.
func (p *Proposal) FromV2(v2 *ProposePresentationV2) error {
	raw, err := decorator.JSONByFormat(v2.Formats, v2.ProposalsAttach, FormatProofRequest)
	if err != nil {
		return err
	}

	var req anoncreds.ProofRequest
	if err = json.Unmarshal(raw, &req); err != nil {
		return agenterr.Wrap(agenterr.ErrFormatMismatch, err, "proposed proof request")
	}

	p.Comment = v2.Comment
	p.FromProofRequest(&req)

	return nil
}

// AsV1 translates this request into a present proof 1.0 request message.
func (r *Request) AsV1(id messagetype.Identifier) *RequestPresentationV1 {
	return &RequestPresentationV1{
		Type:    id.WithKind(RequestPresentationKind).String(),
		Comment: r.Comment,
		RequestPresentations: []decorator.Attachment{
			decorator.NewBase64Attachment(RequestAttachID, mimeTypeJSON, r.ProofRequest),
		},
	}
}

// AsV2 translates this request into a present proof 2.0 request message.
func (r *Request) AsV2(id messagetype.Identifier) *RequestPresentationV2 {
	return &RequestPresentationV2{
		Type:        id.WithKind(RequestPresentationKind).String(),
		Comment:     r.Comment,
		WillConfirm: true,
		Formats:     []Format{{AttachID: RequestAttachID, Format: FormatProofRequest}},
		RequestPresentations: []decorator.Attachment{
			decorator.NewBase64Attachment(RequestAttachID, mimeTypeJSON, r.ProofRequest),
		},
	}
}

// FromV1 initializes this request from a present proof 1.0 request.
func (r *Request) FromV1(v1 *RequestPresentationV1) error {
	raw, err := decorator.JSONByID(v1.RequestPresentations, RequestAttachID)
	if err != nil {
		return err
	}

	r.Comment = v1.Comment
	r.ProofRequest = raw

	return r.validate()
}

// FromV2 initializes this request from a present proof 2.0 request.
func (r *Request) FromV2(v2 *RequestPresentationV2) error {
	raw, err := decorator.JSONByFormat(v2.Formats, v2.RequestPresentations, FormatProofRequest)
	if err != nil {
		return err
	}

	r.Comment = v2.Comment
	r.ProofRequest = raw

	return r.validate()
}

func (r *Request) validate() error {
	if _, err := anoncreds.ParseProofRequest(r.ProofRequest); err != nil {
		return agenterr.Wrap(agenterr.ErrFormatMismatch, err, "proof request")
	}

	return nil
}

// AsV1 translates this presentation into a present proof 1.0 presentation message.
func (p *Presentation) AsV1(id messagetype.Identifier) *PresentationV1 {
	return &PresentationV1{
		Type:    id.WithKind(PresentationKind).String(),
		Comment: p.Comment,
		Presentations: []decorator.Attachment{
			decorator.NewBase64Attachment(PresentationAttachID, mimeTypeJSON, p.Proof),
		},
		PleaseAck: &decorator.PleaseAck{On: []string{decorator.AckOnOutcome}},
	}
}

// AsV2 translates this presentation into a present proof 2.0 presentation message.
func (p *Presentation) AsV2(id messagetype.Identifier) *PresentationV2 {
	return &PresentationV2{
		Type:    id.WithKind(PresentationKind).String(),
		Comment: p.Comment,
		Formats: []Format{{AttachID: PresentationAttachID, Format: FormatProof}},
		Presentations: []decorator.Attachment{
			decorator.NewBase64Attachment(PresentationAttachID, mimeTypeJSON, p.Proof),
		},
		PleaseAck: &decorator.PleaseAck{On: []string{decorator.AckOnOutcome}},
	}
}

// FromV1 initializes this presentation from a present proof 1.0 presentation.
func (p *Presentation) FromV1(v1 *PresentationV1) error {
	raw, err := decorator.JSONByID(v1.Presentations, PresentationAttachID)
	if err != nil {
		return err
	}

	p.Comment = v1.Comment
	p.Proof = raw

	return nil
}

// FromV2 initializes this presentation from a present proof 2.0 presentation.
func (p *Presentation) FromV2(v2 *PresentationV2) error {
	raw, err := decorator.JSONByFormat(v2.Formats, v2.Presentations, FormatProof)
	if err != nil {
		return err
	}

	p.Comment = v2.Comment
	p.Proof = raw

	return nil
}

func restriction(credDefID, name, value string) map[string]string {
	if credDefID == "" && value == "" {
		return nil
	}

	r := make(map[string]string)

	if credDefID != "" {
		r[restrictionCredDefID] = credDefID
	}

	if value != "" {
		r[attrValuePrefix+name+attrValueSuffix] = value
	}

	return r
}

// marshalProofRequest encodes req with empty rather than null referent maps.
func marshalProofRequest(req *anoncreds.ProofRequest) (json.RawMessage, error) {
	if req.RequestedAttributes == nil {
		req.RequestedAttributes = map[string]anoncreds.AttributeInfo{}
	}

	if req.RequestedPredicates == nil {
		req.RequestedPredicates = map[string]anoncreds.PredicateInfo{}
	}

	return json.Marshal(req)
}

// newNonce returns an 80 bit decimal nonce.
func newNonce() string {
	id := uuid.New()

	return new(big.Int).SetBytes(id[:10]).String()
}

func sortedKeys[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}
