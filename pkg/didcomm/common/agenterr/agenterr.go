/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package agenterr defines the error kinds surfaced by the agent core.
//
// Every error produced by the registry, the envelope codec and the protocol
// services carries a Kind, so the dispatcher can decide between replying with a
// problem-report and surfacing the failure to the local operator.
package agenterr

import (
	"errors"
	"fmt"
)

// Kind classifies an error.
type Kind int

const (
	// Unknown is the kind of errors that do not come from this package.
	Unknown Kind = iota
	// ParseError is malformed wire data. Never retried automatically.
	ParseError
	// StateError is an invalid transition. State is left untouched.
	StateError
	// CryptoError is a signature or encryption failure.
	CryptoError
	// CapabilityError is a failed wallet, ledger or anoncreds call. May be transient.
	CapabilityError
	// ProtocolDeclined is an explicit refusal by the counterparty. Terminal.
	ProtocolDeclined
)

var kindNames = map[Kind]string{ //nolint:gochecknoglobals
	Unknown:          "UnknownError",
	ParseError:       "ParseError",
	StateError:       "StateError",
	CryptoError:      "CryptoError",
	CapabilityError:  "CapabilityError",
	ProtocolDeclined: "ProtocolDeclined",
}

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}

	return fmt.Sprintf("Kind(%d)", int(k))
}

// Error codes.
const (
	CodeUnknownPrefix               = "unknown_prefix"
	CodeUnknownFamily               = "unknown_family"
	CodeMalformedVersion            = "malformed_version"
	CodeMalformedType               = "malformed_type"
	CodeUnsupportedMajorVersion     = "unsupported_major_version"
	CodeNoCompatibleMinor           = "no_compatible_minor"
	CodeEncryptionError             = "encryption_error"
	CodeRecipientKeyNotFound        = "recipient_key_not_found"
	CodeDecryptionError             = "decryption_error"
	CodeMalformedEnvelope           = "malformed_envelope"
	CodeMalformedMessage            = "malformed_message"
	CodeInvalidInvitation           = "invalid_invitation"
	CodeThreadMismatch              = "thread_mismatch"
	CodeInvalidTransition           = "invalid_transition"
	CodeSignatureVerificationFailed = "signature_verification_failed"
	CodeUnresolvableCredDef         = "unresolvable_cred_def"
	CodeIssuanceFailed              = "issuance_failed"
	CodeFormatMismatch              = "format_mismatch"
	CodeNoMatchingCredentials       = "no_matching_credentials"
	CodeVerificationUnavailable     = "verification_unavailable"
	CodeStaleState                  = "stale_state"
	CodeRouteNotFound               = "route_not_found"
	CodeConnectionNotFound          = "connection_not_found"
	CodeDeclined                    = "declined"
	CodeCapability                  = "capability_failure"
)

// Sentinels for errors.Is. Matching is by kind and code, the message is ignored.
var (
	ErrUnknownPrefix               = New(ParseError, CodeUnknownPrefix, "unknown message type prefix")
	ErrUnknownFamily               = New(ParseError, CodeUnknownFamily, "unknown protocol family")
	ErrMalformedVersion            = New(ParseError, CodeMalformedVersion, "malformed protocol version")
	ErrMalformedType               = New(ParseError, CodeMalformedType, "malformed message type")
	ErrUnsupportedMajorVersion     = New(ParseError, CodeUnsupportedMajorVersion, "unsupported major version")
	ErrNoCompatibleMinor           = New(ParseError, CodeNoCompatibleMinor, "no compatible minor version")
	ErrEncryption                  = New(CryptoError, CodeEncryptionError, "encryption failed")
	ErrRecipientKeyNotFound        = New(CryptoError, CodeRecipientKeyNotFound, "no recipient key found")
	ErrDecryption                  = New(CryptoError, CodeDecryptionError, "decryption failed")
	ErrMalformedEnvelope           = New(ParseError, CodeMalformedEnvelope, "malformed envelope")
	ErrMalformedMessage            = New(ParseError, CodeMalformedMessage, "malformed message")
	ErrInvalidInvitation           = New(ParseError, CodeInvalidInvitation, "invalid invitation")
	ErrThreadMismatch              = New(StateError, CodeThreadMismatch, "thread mismatch")
	ErrInvalidTransition           = New(StateError, CodeInvalidTransition, "invalid state transition")
	ErrSignatureVerificationFailed = New(CryptoError, CodeSignatureVerificationFailed, "signature verification failed")
	ErrUnresolvableCredDef         = New(CapabilityError, CodeUnresolvableCredDef, "credential definition not resolvable")
	ErrIssuanceFailed              = New(CapabilityError, CodeIssuanceFailed, "credential issuance failed")
	ErrFormatMismatch              = New(StateError, CodeFormatMismatch, "attachment format mismatch")
	ErrNoMatchingCredentials       = New(StateError, CodeNoMatchingCredentials, "no matching credentials")
	ErrVerificationUnavailable     = New(CapabilityError, CodeVerificationUnavailable, "verification could not complete")
	ErrStaleState                  = New(StateError, CodeStaleState, "stale state snapshot")
	ErrRouteNotFound               = New(StateError, CodeRouteNotFound, "route not found")
	ErrConnectionNotFound          = New(StateError, CodeConnectionNotFound, "connection not found")
	ErrDeclined                    = New(ProtocolDeclined, CodeDeclined, "declined by counterparty")
)

// Error is a classified agent error.
type Error struct {
	Kind Kind
	Code string
	Msg  string
	Err  error
}

// New returns an Error without a cause.
func New(kind Kind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Msg: msg}
}

// Wrap returns an Error of the same kind and code as the sentinel, with a
// formatted message and the cause. A nil cause is allowed.
func Wrap(sentinel *Error, cause error, format string, args ...interface{}) *Error {
	return &Error{Kind: sentinel.Kind, Code: sentinel.Code, Msg: fmt.Sprintf(format, args...), Err: cause}
}

// Errorf returns an Error of the same kind and code as the sentinel.
func Errorf(sentinel *Error, format string, args ...interface{}) *Error {
	return Wrap(sentinel, nil, format, args...)
}

// Capability classifies a failed external call as a CapabilityError.
func Capability(cause error, format string, args ...interface{}) *Error {
	return &Error{Kind: CapabilityError, Code: CodeCapability, Msg: fmt.Sprintf(format, args...), Err: cause}
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = e.Code
	}

	if e.Err != nil {
		return fmt.Sprintf("%s(%s): %s: %v", e.Kind, e.Code, msg, e.Err)
	}

	return fmt.Sprintf("%s(%s): %s", e.Kind, e.Code, msg)
}

// Unwrap returns the cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error with the same kind and code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}

	return e.Kind == t.Kind && e.Code == t.Code
}

// KindOf returns the kind of the first classified error in the chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}

	return Unknown
}

// CodeOf returns the code of the first classified error in the chain.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}

	return ""
}

// IsKind reports whether err is classified with kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// NeedsProblemReport reports whether a failure caused by a counterparty message
// should be answered with a problem-report.
func NeedsProblemReport(err error) bool {
	switch KindOf(err) {
	case ParseError, StateError:
		return true
	default:
		return false
	}
}
