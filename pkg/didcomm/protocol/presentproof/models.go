/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package presentproof

import "github.com/hyperledger/aries-didcomm-go/pkg/didcomm/protocol/decorator"

// Message kinds of the present proof protocol, shared by 1.0 and 2.0.
const (
	ProposePresentationKind = "propose-presentation"
	RequestPresentationKind = "request-presentation"
	PresentationKind        = "presentation"
	AckKind                 = "ack"
	ProblemReportKind       = "problem-report"
	PresentationPreviewKind = "presentation-preview"
)

// Attachment ids and 2.0 format identifiers of indy proofs.
const (
	ProposalAttachID     = "libindy-proposal-0"
	RequestAttachID      = "libindy-request-presentation-0"
	PresentationAttachID = "libindy-presentation-0"

	FormatProofRequest = "hlindy/proof-req@v2.0"
	FormatProof        = "hlindy/proof@v2.0"

	mimeTypeJSON = "application/json"
)

// Format contains the value of the attachment @id and the presentation format of the attachment.
type Format = decorator.AttachmentFormat

// PresentationPreview is used to construct a preview of the data for the presentation.
type PresentationPreview struct {
	Type       string      `json:"@type,omitempty"`
	Attributes []Attribute `json:"attributes"`
	Predicates []Predicate `json:"predicates"`
}

// Attribute describes an attribute for the PresentationPreview.
type Attribute struct {
	Name      string `json:"name"`
	CredDefID string `json:"cred_def_id,omitempty"`
	MimeType  string `json:"mime-type,omitempty"`
	Value     string `json:"value,omitempty"`
	Referent  string `json:"referent,omitempty"`
}

// Predicate describes a predicate for the PresentationPreview.
type Predicate struct {
	Name      string `json:"name"`
	CredDefID string `json:"cred_def_id,omitempty"`
	Predicate string `json:"predicate"`
	Threshold int64  `json:"threshold"`
}

// ProposePresentationV1 is an optional message sent by the Prover to the verifier to initiate a proof
// presentation process, or in response to a request-presentation message when the Prover wants to
// propose using a different presentation format.
type ProposePresentationV1 struct {
	Type                 string               `json:"@type,omitempty"`
	ID                   string               `json:"@id,omitempty"`
	Comment              string               `json:"comment,omitempty"`
	PresentationProposal *PresentationPreview `json:"presentation_proposal"`
	Thread               *decorator.Thread    `json:"~thread,omitempty"`
}

// RequestPresentationV1 describes values that need to be revealed and predicates that need to be fulfilled.
type RequestPresentationV1 struct {
	Type                 string                 `json:"@type,omitempty"`
	ID                   string                 `json:"@id,omitempty"`
	Comment              string                 `json:"comment,omitempty"`
	RequestPresentations []decorator.Attachment `json:"request_presentations~attach"`
	Thread               *decorator.Thread      `json:"~thread,omitempty"`
}

// PresentationV1 is a response to a RequestPresentationV1 message and contains signed presentations.
type PresentationV1 struct {
	Type          string                 `json:"@type,omitempty"`
	ID            string                 `json:"@id,omitempty"`
	Comment       string                 `json:"comment,omitempty"`
	Presentations []decorator.Attachment `json:"presentations~attach"`
	Thread        *decorator.Thread      `json:"~thread,omitempty"`
	PleaseAck     *decorator.PleaseAck   `json:"~please_ack,omitempty"`
}

// ProposePresentationV2 is an optional message sent by the prover to the verifier to initiate a proof
// presentation process, or in response to a request-presentation message when the prover wants to
// propose using a different presentation format.
type ProposePresentationV2 struct {
	Type    string `json:"@type,omitempty"`
	ID      string `json:"@id,omitempty"`
	Comment string `json:"comment,omitempty"`
	// Formats contains an entry for each proposals~attach array entry, providing the the value of the attachment
	// @id and the presentation format and version of the attachment.
	Formats         []Format               `json:"formats"`
	ProposalsAttach []decorator.Attachment `json:"proposals~attach"`
	Thread          *decorator.Thread      `json:"~thread,omitempty"`
}

// RequestPresentationV2 describes values that need to be revealed and predicates that need to be fulfilled.
type RequestPresentationV2 struct {
	Type        string `json:"@type,omitempty"`
	ID          string `json:"@id,omitempty"`
	Comment     string `json:"comment,omitempty"`
	WillConfirm bool   `json:"will_confirm,omitempty"`
	// Formats contains an entry for each request_presentations~attach array entry, providing the the value of the
	// attachment @id and the presentation format and version of the attachment.
	Formats              []Format               `json:"formats"`
	RequestPresentations []decorator.Attachment `json:"request_presentations~attach"`
	Thread               *decorator.Thread      `json:"~thread,omitempty"`
}

// PresentationV2 is a response to a RequestPresentationV2 message and contains signed presentations.
type PresentationV2 struct {
	Type          string                 `json:"@type,omitempty"`
	ID            string                 `json:"@id,omitempty"`
	Comment       string                 `json:"comment,omitempty"`
	Formats       []Format               `json:"formats"`
	Presentations []decorator.Attachment `json:"presentations~attach"`
	Thread        *decorator.Thread      `json:"~thread,omitempty"`
	PleaseAck     *decorator.PleaseAck   `json:"~please_ack,omitempty"`
}
