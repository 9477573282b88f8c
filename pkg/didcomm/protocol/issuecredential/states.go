/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package issuecredential

import "fmt"

const (
	// common states
	stateNameInitial  = "initial"
	StateNameDeclined = "declined"
	StateNameFailed   = "failed"

	// states for Issuer
	StateNameProposalReceived = "proposal-received"
	StateNameOfferSent        = "offer-sent"
	StateNameRequestReceived  = "request-received"
	StateNameCredentialSent   = "credential-sent"
	StateNameDone             = "done"

	// states for Holder
	StateNameProposalSent       = "proposal-sent"
	StateNameOfferReceived      = "offer-received"
	StateNameRequestSent        = "request-sent"
	StateNameCredentialReceived = "credential-received"

	// RoleHolder receives the credential.
	RoleHolder = "holder"
	// RoleIssuer issues the credential.
	RoleIssuer = "issuer"
)

// the protocol's state.
type state interface {
	// Name of this state.
	Name() string
	// Whether this state allows transitioning into the next state.
	CanTransitionTo(next state) bool
}

func stateFromName(name, role string) (state, error) {
	switch name {
	case "", stateNameInitial:
		return &initial{role: role}, nil
	case StateNameDeclined:
		return &declined{}, nil
	case StateNameFailed:
		return &failed{}, nil
	case StateNameProposalReceived:
		return &proposalReceived{}, nil
	case StateNameOfferSent:
		return &offerSent{}, nil
	case StateNameRequestReceived:
		return &requestReceived{}, nil
	case StateNameCredentialSent:
		return &credentialSent{}, nil
	case StateNameDone:
		return &done{}, nil
	case StateNameProposalSent:
		return &proposalSent{}, nil
	case StateNameOfferReceived:
		return &offerReceived{}, nil
	case StateNameRequestSent:
		return &requestSent{}, nil
	case StateNameCredentialReceived:
		return &credentialReceived{}, nil
	default:
		return nil, fmt.Errorf("invalid state name %s", name)
	}
}

// IsTerminal reports whether no transition leaves the state.
func IsTerminal(name string) bool {
	switch name {
	case StateNameDeclined, StateNameFailed, StateNameDone, StateNameCredentialReceived:
		return true
	default:
		return false
	}
}

// abandonable states may end in declined or failed.
func abandonable(next state) bool {
	return next.Name() == StateNameDeclined || next.Name() == StateNameFailed
}

// initial state, before the first message of the exchange.
type initial struct {
	role string
}

func (s *initial) Name() string {
	return stateNameInitial
}

func (s *initial) CanTransitionTo(st state) bool {
	if s.role == RoleHolder {
		return st.Name() == StateNameProposalSent || st.Name() == StateNameOfferReceived
	}

	return st.Name() == StateNameProposalReceived || st.Name() == StateNameOfferSent
}

// declined state
type declined struct{}

func (s *declined) Name() string {
	return StateNameDeclined
}

func (s *declined) CanTransitionTo(_ state) bool {
	return false
}

// failed state
type failed struct{}

func (s *failed) Name() string {
	return StateNameFailed
}

func (s *failed) CanTransitionTo(_ state) bool {
	return false
}

// proposalReceived the Issuer's state.
type proposalReceived struct{}

func (s *proposalReceived) Name() string {
	return StateNameProposalReceived
}

func (s *proposalReceived) CanTransitionTo(st state) bool {
	return st.Name() == StateNameOfferSent || abandonable(st)
}

// offerSent the Issuer's state.
type offerSent struct{}

func (s *offerSent) Name() string {
	return StateNameOfferSent
}

func (s *offerSent) CanTransitionTo(st state) bool {
	return st.Name() == StateNameRequestReceived || st.Name() == StateNameProposalReceived || abandonable(st)
}

// requestReceived the Issuer's state.
type requestReceived struct{}

func (s *requestReceived) Name() string {
	return StateNameRequestReceived
}

func (s *requestReceived) CanTransitionTo(st state) bool {
	return st.Name() == StateNameCredentialSent || abandonable(st)
}

// credentialSent the Issuer's state.
type credentialSent struct{}

func (s *credentialSent) Name() string {
	return StateNameCredentialSent
}

func (s *credentialSent) CanTransitionTo(st state) bool {
	return st.Name() == StateNameDone || abandonable(st)
}

// done the Issuer's state, the holder acknowledged the credential.
type done struct{}

func (s *done) Name() string {
	return StateNameDone
}

func (s *done) CanTransitionTo(_ state) bool {
	return false
}

// proposalSent the Holder's state.
type proposalSent struct{}

func (s *proposalSent) Name() string {
	return StateNameProposalSent
}

func (s *proposalSent) CanTransitionTo(st state) bool {
	return st.Name() == StateNameOfferReceived || abandonable(st)
}

// offerReceived the Holder's state.
type offerReceived struct{}

func (s *offerReceived) Name() string {
	return StateNameOfferReceived
}

func (s *offerReceived) CanTransitionTo(st state) bool {
	return st.Name() == StateNameRequestSent || st.Name() == StateNameProposalSent || abandonable(st)
}

// requestSent the Holder's state.
type requestSent struct{}

func (s *requestSent) Name() string {
	return StateNameRequestSent
}

func (s *requestSent) CanTransitionTo(st state) bool {
	return st.Name() == StateNameCredentialReceived || abandonable(st)
}

// credentialReceived the Holder's state.
type credentialReceived struct{}

func (s *credentialReceived) Name() string {
	return StateNameCredentialReceived
}

func (s *credentialReceived) CanTransitionTo(_ state) bool {
	return false
}
