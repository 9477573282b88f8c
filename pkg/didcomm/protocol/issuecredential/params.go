/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package issuecredential

import (
	"encoding/json"

	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/common/agenterr"
	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/messagetype"
	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/protocol/decorator"
)

// Proposal is the version independent content of a credential proposal.
type Proposal struct {
	Comment   string
	SchemaID  string
	CredDefID string
	Preview   []Attribute
}

// Offer is the version independent content of a credential offer.
type Offer struct {
	Comment string
	Preview []Attribute
	// Offer is the anoncreds credential offer.
	Offer json.RawMessage
}

// Request is the version independent content of a credential request.
type Request struct {
	Comment string
	// Request is the anoncreds credential request.
	Request json.RawMessage
}

// Credential is the version independent content of an issued credential.
type Credential struct {
	Comment string
	// Credential is the anoncreds credential.
	Credential json.RawMessage
}

func preview(id messagetype.Identifier, attrs []Attribute) *PreviewCredential {
	if attrs == nil {
		attrs = []Attribute{}
	}

	return &PreviewCredential{Type: id.WithKind(CredentialPreviewKind).String(), Attributes: attrs}
}

func previewAttributes(p *PreviewCredential) []Attribute {
	if p == nil {
		return nil
	}

	return p.Attributes
}

// AsV1 translates this proposal into an issue credential 1.0 proposal message.
func (p *Proposal) AsV1(id messagetype.Identifier) *ProposeCredentialV1 {
	return &ProposeCredentialV1{
		Type:               id.WithKind(ProposeCredentialKind).String(),
		Comment:            p.Comment,
		CredentialProposal: preview(id, p.Preview),
		SchemaID:           p.SchemaID,
		CredDefID:          p.CredDefID,
	}
}

// AsV2 translates this proposal into an issue credential 2.0 proposal message.
func (p *Proposal) AsV2(id messagetype.Identifier) (*ProposeCredentialV2, error) {
	msg := &ProposeCredentialV2{
		Type:              id.WithKind(ProposeCredentialKind).String(),
		Comment:           p.Comment,
		CredentialPreview: preview(id, p.Preview),
	}

	if p.SchemaID == "" && p.CredDefID == "" {
		return msg, nil
	}

	filter, err := json.Marshal(credentialFilter{SchemaID: p.SchemaID, CredDefID: p.CredDefID})
	if err != nil {
		return nil, err
	}

	msg.Formats = []Format{{AttachID: FilterAttachID, Format: FormatCredFilter}}
	msg.FiltersAttach = []decorator.Attachment{decorator.NewBase64Attachment(FilterAttachID, mimeTypeJSON, filter)}

	return msg, nil
}

// FromV1 initializes this proposal from an issue credential 1.0 proposal.
func (p *Proposal) FromV1(v1 *ProposeCredentialV1) {
	p.Comment = v1.Comment
	p.SchemaID = v1.SchemaID
	p.CredDefID = v1.CredDefID
	p.Preview = previewAttributes(v1.CredentialProposal)
}

// FromV2 initializes this proposal from an issue credential 2.0 proposal.
func (p *Proposal) FromV2(v2 *ProposeCredentialV2) error {
	p.Comment = v2.Comment
	p.Preview = previewAttributes(v2.CredentialPreview)

	if len(v2.FiltersAttach) == 0 {
		return nil
	}

	raw, err := decorator.JSONByFormat(v2.Formats, v2.FiltersAttach, FormatCredFilter)
	if err != nil {
		return err
	}

	var filter credentialFilter
	if err = json.Unmarshal(raw, &filter); err != nil {
		return agenterr.Wrap(agenterr.ErrFormatMismatch, err, "credential filter")
	}

	p.SchemaID = filter.SchemaID
	p.CredDefID = filter.CredDefID

	return nil
}

// AsV1 translates this offer into an issue credential 1.0 offer message.
func (o *Offer) AsV1(id messagetype.Identifier) *OfferCredentialV1 {
	return &OfferCredentialV1{
		Type:              id.WithKind(OfferCredentialKind).String(),
		Comment:           o.Comment,
		CredentialPreview: preview(id, o.Preview),
		OffersAttach:      []decorator.Attachment{decorator.NewBase64Attachment(OfferAttachID, mimeTypeJSON, o.Offer)},
	}
}

// AsV2 translates this offer into an issue credential 2.0 offer message.
func (o *Offer) AsV2(id messagetype.Identifier) *OfferCredentialV2 {
	return &OfferCredentialV2{
		Type:              id.WithKind(OfferCredentialKind).String(),
		Comment:           o.Comment,
		CredentialPreview: preview(id, o.Preview),
		Formats:           []Format{{AttachID: OfferAttachID, Format: FormatCredAbstract}},
		OffersAttach:      []decorator.Attachment{decorator.NewBase64Attachment(OfferAttachID, mimeTypeJSON, o.Offer)},
	}
}

// FromV1 initializes this offer from an issue credential 1.0 offer.
func (o *Offer) FromV1(v1 *OfferCredentialV1) error {
	raw, err := decorator.JSONByID(v1.OffersAttach, OfferAttachID)
	if err != nil {
		return err
	}

	o.Comment = v1.Comment
	o.Preview = previewAttributes(v1.CredentialPreview)
	o.Offer = raw

	return nil
}

// FromV2 initializes this offer from an issue credential 2.0 offer.
func (o *Offer) FromV2(v2 *OfferCredentialV2) error {
	raw, err := decorator.JSONByFormat(v2.Formats, v2.OffersAttach, FormatCredAbstract)
	if err != nil {
		return err
	}

	o.Comment = v2.Comment
	o.Preview = previewAttributes(v2.CredentialPreview)
	o.Offer = raw

	return nil
}

// AsV1 translates this request into an issue credential 1.0 request message.
func (r *Request) AsV1(id messagetype.Identifier) *RequestCredentialV1 {
	return &RequestCredentialV1{
		Type:           id.WithKind(RequestCredentialKind).String(),
		Comment:        r.Comment,
		RequestsAttach: []decorator.Attachment{decorator.NewBase64Attachment(RequestAttachID, mimeTypeJSON, r.Request)},
	}
}

// AsV2 translates this request into an issue credential 2.0 request message.
func (r *Request) AsV2(id messagetype.Identifier) *RequestCredentialV2 {
	return &RequestCredentialV2{
		Type:           id.WithKind(RequestCredentialKind).String(),
		Comment:        r.Comment,
		Formats:        []Format{{AttachID: RequestAttachID, Format: FormatCredReq}},
		RequestsAttach: []decorator.Attachment{decorator.NewBase64Attachment(RequestAttachID, mimeTypeJSON, r.Request)},
	}
}

// FromV1 initializes this request from an issue credential 1.0 request.
func (r *Request) FromV1(v1 *RequestCredentialV1) error {
	raw, err := decorator.JSONByID(v1.RequestsAttach, RequestAttachID)
	if err != nil {
		return err
	}

	r.Comment = v1.Comment
	r.Request = raw

	return nil
}

// FromV2 initializes this request from an issue credential 2.0 request.
func (r *Request) FromV2(v2 *RequestCredentialV2) error {
	raw, err := decorator.JSONByFormat(v2.Formats, v2.RequestsAttach, FormatCredReq)
	if err != nil {
		return err
	}

	r.Comment = v2.Comment
	r.Request = raw

	return nil
}

// AsV1 translates this credential into an issue credential 1.0 issue message.
func (c *Credential) AsV1(id messagetype.Identifier) *IssueCredentialV1 {
	return &IssueCredentialV1{
		Type:    id.WithKind(IssueCredentialKind).String(),
		Comment: c.Comment,
		CredentialsAttach: []decorator.Attachment{
			decorator.NewBase64Attachment(CredentialAttachID, mimeTypeJSON, c.Credential),
		},
		PleaseAck: &decorator.PleaseAck{On: []string{decorator.AckOnReceipt}},
	}
}

// AsV2 translates this credential into an issue credential 2.0 issue message.
func (c *Credential) AsV2(id messagetype.Identifier) *IssueCredentialV2 {
	return &IssueCredentialV2{
		Type:    id.WithKind(IssueCredentialKind).String(),
		Comment: c.Comment,
		Formats: []Format{{AttachID: CredentialAttachID, Format: FormatCred}},
		CredentialsAttach: []decorator.Attachment{
			decorator.NewBase64Attachment(CredentialAttachID, mimeTypeJSON, c.Credential),
		},
		PleaseAck: &decorator.PleaseAck{On: []string{decorator.AckOnReceipt}},
	}
}

// FromV1 initializes this credential from an issue credential 1.0 issue message.
func (c *Credential) FromV1(v1 *IssueCredentialV1) error {
	raw, err := decorator.JSONByID(v1.CredentialsAttach, CredentialAttachID)
	if err != nil {
		return err
	}

	c.Comment = v1.Comment
	c.Credential = raw

	return nil
}

// FromV2 initializes this credential from an issue credential 2.0 issue message.
func (c *Credential) FromV2(v2 *IssueCredentialV2) error {
	raw, err := decorator.JSONByFormat(v2.Formats, v2.CredentialsAttach, FormatCred)
	if err != nil {
		return err
	}

	c.Comment = v2.Comment
	c.Credential = raw

	return nil
}
