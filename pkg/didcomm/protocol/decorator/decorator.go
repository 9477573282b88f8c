/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package decorator holds the message decorators shared by the protocols.
package decorator

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/common/agenterr"
)

const (
	// TransportReturnRouteNone return route option none.
	TransportReturnRouteNone = "none"
	// TransportReturnRouteAll return route option all.
	TransportReturnRouteAll = "all"
	// TransportReturnRouteThread return route option thread.
	TransportReturnRouteThread = "thread"

	// AckOnReceipt asks for an ack as soon as the message is processed.
	AckOnReceipt = "RECEIPT"
	// AckOnOutcome asks for an ack once the outcome of the message is known.
	AckOnOutcome = "OUTCOME"
)

// Thread thread data.
type Thread struct {
	ID             string         `json:"thid,omitempty"`
	PID            string         `json:"pthid,omitempty"`
	SenderOrder    int            `json:"sender_order,omitempty"`
	ReceivedOrders map[string]int `json:"received_orders,omitempty"`
}

// Timing keeps expiration time.
type Timing struct {
	InTime      *time.Time `json:"in_time,omitempty"`
	OutTime     *time.Time `json:"out_time,omitempty"`
	StaleTime   *time.Time `json:"stale_time,omitempty"`
	ExpiresTime *time.Time `json:"expires_time,omitempty"`
	DelayMilli  int        `json:"delay_milli,omitempty"`
}

// Expired reports whether the message expired before now.
func (t *Timing) Expired(now time.Time) bool {
	return t != nil && t.ExpiresTime != nil && now.After(*t.ExpiresTime)
}

// PleaseAck asks the receiver to acknowledge the message.
type PleaseAck struct {
	On []string `json:"on,omitempty"`
}

// Transport transport decorator.
type Transport struct {
	ReturnRoute *ReturnRoute `json:"~transport,omitempty"`
}

// ReturnRoute asks the receiver to reply on the inbound connection.
type ReturnRoute struct {
	Value string `json:"return_route,omitempty"`
}

// Enabled reports whether replies may use the inbound connection.
func (t *Transport) Enabled() bool {
	return t != nil && t.ReturnRoute != nil &&
		(t.ReturnRoute.Value == TransportReturnRouteAll || t.ReturnRoute.Value == TransportReturnRouteThread)
}

// Signature is the ed25519Sha512_single signature decorator.
type Signature struct {
	Type       string `json:"@type,omitempty"`
	Signature  string `json:"signature,omitempty"`
	SignedData string `json:"sig_data,omitempty"`
	SignVerKey string `json:"signer,omitempty"`
}

// Attachment is an attachment decorator entry.
type Attachment struct {
	ID          string         `json:"@id,omitempty"`
	Description string         `json:"description,omitempty"`
	FileName    string         `json:"filename,omitempty"`
	MimeType    string         `json:"mime-type,omitempty"`
	LastModTime *time.Time     `json:"lastmod_time,omitempty"`
	ByteCount   int64          `json:"byte_count,omitempty"`
	Data        AttachmentData `json:"data"`
}

// AttachmentData holds the content of an attachment in one of its encodings.
type AttachmentData struct {
	Sha256 string      `json:"sha256,omitempty"`
	Links  []string    `json:"links,omitempty"`
	Base64 string      `json:"base64,omitempty"`
	JSON   interface{} `json:"json,omitempty"`
}

// Fetch returns the attachment content, preferring inline JSON over base64.
func (d *AttachmentData) Fetch() ([]byte, error) {
	if d.JSON != nil {
		bits, err := json.Marshal(d.JSON)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal json contents : %w", err)
		}

		return bits, nil
	}

	if d.Base64 != "" {
		bits, err := base64.StdEncoding.DecodeString(d.Base64)
		if err != nil {
			return nil, fmt.Errorf("failed to decode base64 contents : %w", err)
		}

		return bits, nil
	}

	return nil, errors.New("no contents in this attachment")
}

// NewBase64Attachment returns an attachment carrying data base64 encoded.
func NewBase64Attachment(id, mimeType string, data []byte) Attachment {
	return Attachment{
		ID:       id,
		MimeType: mimeType,
		Data:     AttachmentData{Base64: base64.StdEncoding.EncodeToString(data)},
	}
}

// Find returns the attachment with id.
func Find(attachments []Attachment, id string) (*Attachment, bool) {
	for i := range attachments {
		if attachments[i].ID == id {
			return &attachments[i], true
		}
	}

	return nil, false
}

// AttachmentFormat declares the format of one attachment of a 2.0 message.
type AttachmentFormat struct {
	AttachID string `json:"attach_id,omitempty"`
	Format   string `json:"format,omitempty"`
}

// JSONByID returns the JSON content of the attachment with id. A single
// attachment is accepted whatever its id.
func JSONByID(attachments []Attachment, id string) (json.RawMessage, error) {
	a, ok := Find(attachments, id)
	if !ok && len(attachments) == 1 {
		a, ok = &attachments[0], true
	}

	if !ok {
		return nil, agenterr.Errorf(agenterr.ErrFormatMismatch, "no %s attachment", id)
	}

	return a.JSON()
}

// JSONByFormat returns the JSON content of the attachment declared with format.
func JSONByFormat(formats []AttachmentFormat, attachments []Attachment, format string) (json.RawMessage, error) {
	for _, f := range formats {
		if f.Format != format {
			continue
		}

		a, ok := Find(attachments, f.AttachID)
		if !ok {
			return nil, agenterr.Errorf(agenterr.ErrFormatMismatch, "format %s names missing attachment %s",
				format, f.AttachID)
		}

		return a.JSON()
	}

	return nil, agenterr.Errorf(agenterr.ErrFormatMismatch, "no attachment in format %s", format)
}

// JSON returns the content of a, which must be a JSON document.
func (a *Attachment) JSON() (json.RawMessage, error) {
	data, err := a.Data.Fetch()
	if err != nil {
		return nil, agenterr.Wrap(agenterr.ErrFormatMismatch, err, "attachment %s", a.ID)
	}

	if !json.Valid(data) {
		return nil, agenterr.Errorf(agenterr.ErrFormatMismatch, "attachment %s is not JSON", a.ID)
	}

	return data, nil
}
