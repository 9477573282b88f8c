/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package notification holds the ack and problem-report messages shared by
// every protocol.
package notification

import (
	"github.com/google/uuid"

	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/common/service"
	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/messagetype"
	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/protocol/decorator"
)

const (
	// AckKind is the kind of an ack message.
	AckKind = "ack"
	// ProblemReportKind is the kind of a problem-report message.
	ProblemReportKind = "problem-report"

	// AckStatusOK positive acknowledgement.
	AckStatusOK = "OK"

	// WhoRetriesNone nobody retries.
	WhoRetriesNone = "none"
	// ImpactThread the problem ends the thread.
	ImpactThread = "thread"
	// ImpactMessage only the message failed.
	ImpactMessage = "message"

	// CodeRejected is the problem code of a decline.
	CodeRejected = "rejected"
	// CodeInternalError is the problem code of a local failure.
	CodeInternalError = "internal"
)

// AckType is the generic ack message type.
var AckType = messagetype.New(messagetype.Notification, 1, 0, AckKind) //nolint:gochecknoglobals

// ProblemReportType is the generic problem-report message type.
var ProblemReportType = messagetype.New(messagetype.ReportProblem, 1, 0, ProblemReportKind) //nolint:gochecknoglobals

// Ack acknowledges a message of a thread.
type Ack struct {
	Type   string            `json:"@type,omitempty"`
	ID     string            `json:"@id,omitempty"`
	Status string            `json:"status,omitempty"`
	Thread *decorator.Thread `json:"~thread,omitempty"`
}

// Code is the problem description.
type Code struct {
	Code string `json:"code"`
	En   string `json:"en,omitempty"`
}

// ProblemReport problem report definition.
type ProblemReport struct {
	Type        string            `json:"@type,omitempty"`
	ID          string            `json:"@id,omitempty"`
	Description Code              `json:"description"`
	WhoRetries  string            `json:"who_retries,omitempty"`
	Impact      string            `json:"impact,omitempty"`
	Thread      *decorator.Thread `json:"~thread,omitempty"`
}

// NewAck returns an OK ack of thid typed as id.
func NewAck(id messagetype.Identifier, thid string) service.DIDCommMsgMap {
	return service.DIDCommMsgMap{
		"@type":   id.String(),
		"@id":     uuid.New().String(),
		"status":  AckStatusOK,
		"~thread": map[string]interface{}{"thid": thid},
	}
}

// NewProblemReport returns a problem report of thid typed as id.
func NewProblemReport(id messagetype.Identifier, thid, code, explain string) service.DIDCommMsgMap {
	msg := service.DIDCommMsgMap{
		"@type":       id.String(),
		"@id":         uuid.New().String(),
		"description": map[string]interface{}{"code": code, "en": explain},
		"who_retries": WhoRetriesNone,
		"impact":      ImpactThread,
	}

	if thid != "" {
		msg["~thread"] = map[string]interface{}{"thid": thid}
	}

	return msg
}

// ParseProblemReport reads the problem code of a report. Besides the generic
// description it understands the connections problem_report fields.
func ParseProblemReport(msg service.DIDCommMsgMap) (*ProblemReport, error) {
	var report struct {
		ProblemReport
		ProblemCode string `json:"problem-code,omitempty"`
		Explain     string `json:"explain,omitempty"`
	}

	if err := msg.Decode(&report); err != nil {
		return nil, err
	}

	if report.Description.Code == "" {
		report.Description = Code{Code: report.ProblemCode, En: report.Explain}
	}

	return &report.ProblemReport, nil
}

// IsAck reports whether id is an ack of any family.
func IsAck(id messagetype.Identifier) bool {
	return id.Kind == AckKind
}

// IsProblemReport reports whether id is a problem report of any family.
func IsProblemReport(id messagetype.Identifier) bool {
	return id.Kind == ProblemReportKind || id.Kind == "problem_report"
}
