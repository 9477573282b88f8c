/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package presentproof

import (
	"testing"

	"github.com/stretchr/testify/require"
)

var allStates = []string{ //nolint:gochecknoglobals
	StateNameFinished, StateNameDeclined, StateNameFailed,
	StateNameRequestSent, StateNameProposalReceived, StateNamePresentationReceived,
	StateNameRequestReceived, StateNameProposalSent, StateNamePresentationSent,
}

func requireTransitions(t *testing.T, from state, allowed ...string) {
	t.Helper()

	want := make(map[string]bool, len(allowed))
	for _, name := range allowed {
		want[name] = true
	}

	for _, name := range allStates {
		next, err := stateFromName(name, "")
		require.NoError(t, err)
		require.Equal(t, want[name], from.CanTransitionTo(next), "%s -> %s", from.Name(), name)
	}
}

func TestInitialState(t *testing.T) {
	requireTransitions(t, &initial{role: RoleProver}, StateNameProposalSent, StateNameRequestReceived)
	requireTransitions(t, &initial{role: RoleVerifier}, StateNameRequestSent, StateNameProposalReceived)
}

func TestVerifierStates(t *testing.T) {
	requireTransitions(t, &requestSent{},
		StateNamePresentationReceived, StateNameProposalReceived, StateNameDeclined, StateNameFailed)
	requireTransitions(t, &proposalReceived{}, StateNameRequestSent, StateNameDeclined, StateNameFailed)
	requireTransitions(t, &presentationReceived{}, StateNameFinished, StateNameDeclined, StateNameFailed)
}

func TestProverStates(t *testing.T) {
	requireTransitions(t, &requestReceived{},
		StateNamePresentationSent, StateNameProposalSent, StateNameDeclined, StateNameFailed)
	requireTransitions(t, &proposalSent{}, StateNameRequestReceived, StateNameDeclined, StateNameFailed)
	requireTransitions(t, &presentationSent{}, StateNameFinished, StateNameDeclined, StateNameFailed)
}

func TestTerminalStates(t *testing.T) {
	for _, name := range allStates {
		st, err := stateFromName(name, "")
		require.NoError(t, err)

		if IsTerminal(name) {
			requireTransitions(t, st)
		}
	}

	require.True(t, IsTerminal(StateNameFinished))
	require.False(t, IsTerminal(StateNamePresentationSent))
}

func TestStateFromName(t *testing.T) {
	st, err := stateFromName("", RoleVerifier)
	require.NoError(t, err)
	require.Equal(t, stateNameInitial, st.Name())

	for _, name := range allStates {
		st, err = stateFromName(name, "")
		require.NoError(t, err)
		require.Equal(t, name, st.Name())
	}

	_, err = stateFromName("unknown", "")
	require.Error(t, err)
}
