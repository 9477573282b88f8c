/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package presentproof

import "fmt"

const (
	// common states.
	stateNameInitial  = "initial"
	StateNameFinished = "finished"
	StateNameDeclined = "declined"
	StateNameFailed   = "failed"

	// states for Verifier.
	StateNameRequestSent          = "request-sent"
	StateNameProposalReceived     = "proposal-received"
	StateNamePresentationReceived = "presentation-received"

	// states for Prover.
	StateNameRequestReceived  = "request-received"
	StateNameProposalSent     = "proposal-sent"
	StateNamePresentationSent = "presentation-sent"

	// RoleProver presents the proof.
	RoleProver = "prover"
	// RoleVerifier requests and verifies the proof.
	RoleVerifier = "verifier"
)

// VerificationStatus is the outcome of the verifier's verify step.
type VerificationStatus string

const (
	// VerificationUnavailable means the presentation was not verified (yet).
	VerificationUnavailable VerificationStatus = "Unavailable"
	// VerificationValid means the proof verified against the ledger objects.
	VerificationValid VerificationStatus = "Valid"
	// VerificationInvalid means the presentation failed verification.
	VerificationInvalid VerificationStatus = "Invalid"
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
	case StateNameFinished:
		return &finished{}, nil
	case StateNameDeclined:
		return &declined{}, nil
	case StateNameFailed:
		return &failed{}, nil
	case StateNameRequestSent:
		return &requestSent{}, nil
	case StateNameProposalReceived:
		return &proposalReceived{}, nil
	case StateNamePresentationReceived:
		return &presentationReceived{}, nil
	case StateNameRequestReceived:
		return &requestReceived{}, nil
	case StateNameProposalSent:
		return &proposalSent{}, nil
	case StateNamePresentationSent:
		return &presentationSent{}, nil
	default:
		return nil, fmt.Errorf("invalid state name %s", name)
	}
}

// IsTerminal reports whether no transition leaves the state.
func IsTerminal(name string) bool {
	return name == StateNameFinished || name == StateNameDeclined || name == StateNameFailed
}

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
	if s.role == RoleProver {
		return st.Name() == StateNameProposalSent || st.Name() == StateNameRequestReceived
	}

	return st.Name() == StateNameRequestSent || st.Name() == StateNameProposalReceived
}

// finished state, the proof was presented and acknowledged or verified.
type finished struct{}

func (s *finished) Name() string {
	return StateNameFinished
}

func (s *finished) CanTransitionTo(_ state) bool {
	return false
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

// requestSent the Verifier's state.
type requestSent struct{}

func (s *requestSent) Name() string {
	return StateNameRequestSent
}

func (s *requestSent) CanTransitionTo(st state) bool {
	return st.Name() == StateNamePresentationReceived || st.Name() == StateNameProposalReceived || abandonable(st)
}

// proposalReceived the Verifier's state.
type proposalReceived struct{}

func (s *proposalReceived) Name() string {
	return StateNameProposalReceived
}

func (s *proposalReceived) CanTransitionTo(st state) bool {
	return st.Name() == StateNameRequestSent || abandonable(st)
}

// presentationReceived the Verifier's state.
type presentationReceived struct{}

func (s *presentationReceived) Name() string {
	return StateNamePresentationReceived
}

func (s *presentationReceived) CanTransitionTo(st state) bool {
	return st.Name() == StateNameFinished || abandonable(st)
}

// requestReceived the Prover's state.
type requestReceived struct{}

func (s *requestReceived) Name() string {
	return StateNameRequestReceived
}

func (s *requestReceived) CanTransitionTo(st state) bool {
	return st.Name() == StateNamePresentationSent || st.Name() == StateNameProposalSent || abandonable(st)
}

// proposalSent the Prover's state.
type proposalSent struct{}

func (s *proposalSent) Name() string {
	return StateNameProposalSent
}

func (s *proposalSent) CanTransitionTo(st state) bool {
	return st.Name() == StateNameRequestReceived || abandonable(st)
}

// presentationSent the Prover's state.
type presentationSent struct{}

func (s *presentationSent) Name() string {
	return StateNamePresentationSent
}

func (s *presentationSent) CanTransitionTo(st state) bool {
	return st.Name() == StateNameFinished || abandonable(st)
}
