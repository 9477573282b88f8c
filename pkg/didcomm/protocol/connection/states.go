/*
Copyright Avast Software. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package connection

import "fmt"

const (
	stateNameNull = "null"
	// StateIDInvited marks the invited phase of the connection protocol.
	StateIDInvited = "invited"
	// StateIDRequested marks the requested phase of the connection protocol.
	StateIDRequested = "requested"
	// StateIDResponded marks the responded phase of the connection protocol.
	StateIDResponded = "responded"
	// StateIDCompleted marks the completed phase of the connection protocol.
	StateIDCompleted = "completed"
	// StateIDAbandoned marks a connection exchange that ended without a connection.
	StateIDAbandoned = "abandoned"

	// RoleInviter created the invitation.
	RoleInviter = "inviter"
	// RoleInvitee received the invitation.
	RoleInvitee = "invitee"
)

// The connection protocol's state.
type state interface {
	// Name of this state.
	Name() string

	// CanTransitionTo Whether this state allows transitioning into the next state.
	CanTransitionTo(next state) bool
}

// Returns the state representing the name.
func stateFromName(name string) (state, error) {
	switch name {
	case "", stateNameNull:
		return &null{}, nil
	case StateIDInvited:
		return &invited{}, nil
	case StateIDRequested:
		return &requested{}, nil
	case StateIDResponded:
		return &responded{}, nil
	case StateIDCompleted:
		return &completed{}, nil
	case StateIDAbandoned:
		return &abandoned{}, nil
	default:
		return nil, fmt.Errorf("invalid state name %s", name)
	}
}

// isTerminal reports whether no transition leaves the state.
func isTerminal(name string) bool {
	return name == StateIDCompleted || name == StateIDAbandoned
}

// null state.
type null struct{}

func (s *null) Name() string {
	return stateNameNull
}

func (s *null) CanTransitionTo(next state) bool {
	return StateIDInvited == next.Name() || StateIDRequested == next.Name()
}

// invited state.
type invited struct{}

func (s *invited) Name() string {
	return StateIDInvited
}

func (s *invited) CanTransitionTo(next state) bool {
	return StateIDRequested == next.Name() || StateIDAbandoned == next.Name()
}

// requested state.
type requested struct{}

func (s *requested) Name() string {
	return StateIDRequested
}

// the inviter responds, the invitee completes on the response.
func (s *requested) CanTransitionTo(next state) bool {
	return StateIDResponded == next.Name() || StateIDCompleted == next.Name() || StateIDAbandoned == next.Name()
}

// responded state.
type responded struct{}

func (s *responded) Name() string {
	return StateIDResponded
}

func (s *responded) CanTransitionTo(next state) bool {
	return StateIDCompleted == next.Name() || StateIDAbandoned == next.Name()
}

// completed state.
type completed struct{}

func (s *completed) Name() string {
	return StateIDCompleted
}

func (s *completed) CanTransitionTo(_ state) bool {
	return false
}

// abandoned state.
type abandoned struct{}

func (s *abandoned) Name() string {
	return StateIDAbandoned
}

func (s *abandoned) CanTransitionTo(_ state) bool {
	return false
}
