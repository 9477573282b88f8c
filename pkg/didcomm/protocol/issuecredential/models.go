/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package issuecredential

import "github.com/hyperledger/aries-didcomm-go/pkg/didcomm/protocol/decorator"

// Message kinds of the issue credential protocol, shared by 1.0 and 2.0.
const (
	ProposeCredentialKind = "propose-credential"
	OfferCredentialKind   = "offer-credential"
	RequestCredentialKind = "request-credential"
	IssueCredentialKind   = "issue-credential"
	AckKind               = "ack"
	ProblemReportKind     = "problem-report"
	CredentialPreviewKind = "credential-preview"
)

// Attachment ids and 2.0 format identifiers of indy credentials.
const (
	OfferAttachID      = "libindy-cred-offer-0"
	RequestAttachID    = "libindy-cred-request-0"
	CredentialAttachID = "libindy-cred-0"
	FilterAttachID     = "libindy-cred-filter-0"

	FormatCredFilter   = "hlindy/cred-filter@v2.0"
	FormatCredAbstract = "hlindy/cred-abstract@v2.0"
	FormatCredReq      = "hlindy/cred-req@v2.0"
	FormatCred         = "hlindy/cred@v2.0"

	mimeTypeJSON = "application/json"
)

// Attribute is one entry of a credential preview.
type Attribute struct {
	Name     string `json:"name"`
	MimeType string `json:"mime-type,omitempty"`
	Value    string `json:"value"`
}

// PreviewCredential is used to construct a preview of the data for the credential that is to be issued.
type PreviewCredential struct {
	Type       string      `json:"@type,omitempty"`
	Attributes []Attribute `json:"attributes"`
}

// Format contains the value of the attachment @id and the verifiable credential format of the attachment.
type Format = decorator.AttachmentFormat

// ProposeCredentialV1 is an optional message sent by the potential Holder to the Issuer
// to initiate the protocol.
type ProposeCredentialV1 struct {
	Type               string             `json:"@type,omitempty"`
	ID                 string             `json:"@id,omitempty"`
	Comment            string             `json:"comment,omitempty"`
	CredentialProposal *PreviewCredential `json:"credential_proposal,omitempty"`
	SchemaID           string             `json:"schema_id,omitempty"`
	CredDefID          string             `json:"cred_def_id,omitempty"`
	Thread             *decorator.Thread  `json:"~thread,omitempty"`
}

// OfferCredentialV1 is a message sent by the Issuer to the potential Holder,
// describing the credential they intend to offer.
type OfferCredentialV1 struct {
	Type              string                 `json:"@type,omitempty"`
	ID                string                 `json:"@id,omitempty"`
	Comment           string                 `json:"comment,omitempty"`
	CredentialPreview *PreviewCredential     `json:"credential_preview,omitempty"`
	OffersAttach      []decorator.Attachment `json:"offers~attach"`
	Thread            *decorator.Thread      `json:"~thread,omitempty"`
}

// RequestCredentialV1 is a message sent by the potential Holder to the Issuer,
// to request the issuance of a credential.
type RequestCredentialV1 struct {
	Type           string                 `json:"@type,omitempty"`
	ID             string                 `json:"@id,omitempty"`
	Comment        string                 `json:"comment,omitempty"`
	RequestsAttach []decorator.Attachment `json:"requests~attach"`
	Thread         *decorator.Thread      `json:"~thread,omitempty"`
}

// IssueCredentialV1 contains as attached payload the credentials being issued.
type IssueCredentialV1 struct {
	Type              string                 `json:"@type,omitempty"`
	ID                string                 `json:"@id,omitempty"`
	Comment           string                 `json:"comment,omitempty"`
	CredentialsAttach []decorator.Attachment `json:"credentials~attach"`
	Thread            *decorator.Thread      `json:"~thread,omitempty"`
	PleaseAck         *decorator.PleaseAck   `json:"~please_ack,omitempty"`
}

// ProposeCredentialV2 is an optional message sent by the potential Holder to the Issuer
// to initiate the protocol or in response to a offer-credential message when the Holder
// wants some adjustments made to the credential data offered by Issuer.
type ProposeCredentialV2 struct {
	Type string `json:"@type,omitempty"`
	ID   string `json:"@id,omitempty"`
	// Comment is an optional field that provides human readable information about this Credential Offer,
	// so the offer can be evaluated by human judgment.
	Comment string `json:"comment,omitempty"`
	// CredentialPreview is an optional object that represents
	// the credential data that the Prover wants to receive.
	CredentialPreview *PreviewCredential `json:"credential_preview,omitempty"`
	// Formats contains an entry for each filters~attach array entry, providing the the value of the attachment @id
	// and the verifiable credential format and version of the attachment.
	Formats []Format `json:"formats,omitempty"`
	// FiltersAttach is an array of attachments that further define the credential being proposed.
	FiltersAttach []decorator.Attachment `json:"filters~attach,omitempty"`
	Thread        *decorator.Thread      `json:"~thread,omitempty"`
}

// OfferCredentialV2 is a message sent by the Issuer to the potential Holder,
// describing the credential they intend to offer and possibly the price they expect to be paid.
type OfferCredentialV2 struct {
	Type    string `json:"@type,omitempty"`
	ID      string `json:"@id,omitempty"`
	Comment string `json:"comment,omitempty"`
	// CredentialPreview is an object that represents the credential data that Issuer is willing to issue.
	CredentialPreview *PreviewCredential `json:"credential_preview,omitempty"`
	// Formats contains an entry for each offers~attach array entry, providing the the value
	// of the attachment @id and the verifiable credential format and version of the attachment.
	Formats      []Format               `json:"formats"`
	OffersAttach []decorator.Attachment `json:"offers~attach"`
	Thread       *decorator.Thread      `json:"~thread,omitempty"`
}

// RequestCredentialV2 is a message sent by the potential Holder to the Issuer,
// to request the issuance of a credential.
type RequestCredentialV2 struct {
	Type           string                 `json:"@type,omitempty"`
	ID             string                 `json:"@id,omitempty"`
	Comment        string                 `json:"comment,omitempty"`
	Formats        []Format               `json:"formats"`
	RequestsAttach []decorator.Attachment `json:"requests~attach"`
	Thread         *decorator.Thread      `json:"~thread,omitempty"`
}

// IssueCredentialV2 contains as attached payload the credentials being issued and is
// sent in response to a valid Request Credential message.
type IssueCredentialV2 struct {
	Type              string                 `json:"@type,omitempty"`
	ID                string                 `json:"@id,omitempty"`
	Comment           string                 `json:"comment,omitempty"`
	Formats           []Format               `json:"formats"`
	CredentialsAttach []decorator.Attachment `json:"credentials~attach"`
	Thread            *decorator.Thread      `json:"~thread,omitempty"`
	PleaseAck         *decorator.PleaseAck   `json:"~please_ack,omitempty"`
}

// credentialFilter is the attached filter of a 2.0 proposal.
type credentialFilter struct {
	SchemaID  string `json:"schema_id,omitempty"`
	CredDefID string `json:"cred_def_id,omitempty"`
}
