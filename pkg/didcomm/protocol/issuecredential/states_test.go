/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package issuecredential

import (
	"testing"

	"github.com/stretchr/testify/require"
)

var allStates = []string{ //nolint:gochecknoglobals
	StateNameDeclined, StateNameFailed,
	StateNameProposalReceived, StateNameOfferSent, StateNameRequestReceived, StateNameCredentialSent, StateNameDone,
	StateNameProposalSent, StateNameOfferReceived, StateNameRequestSent, StateNameCredentialReceived,
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
	requireTransitions(t, &initial{role: RoleHolder}, StateNameProposalSent, StateNameOfferReceived)
	requireTransitions(t, &initial{role: RoleIssuer}, StateNameProposalReceived, StateNameOfferSent)
}

func TestIssuerStates(t *testing.T) {
	requireTransitions(t, &proposalReceived{}, StateNameOfferSent, StateNameDeclined, StateNameFailed)
	requireTransitions(t, &offerSent{},
		StateNameRequestReceived, StateNameProposalReceived, StateNameDeclined, StateNameFailed)
	requireTransitions(t, &requestReceived{}, StateNameCredentialSent, StateNameDeclined, StateNameFailed)
	requireTransitions(t, &credentialSent{}, StateNameDone, StateNameDeclined, StateNameFailed)
	requireTransitions(t, &done{})
}

func TestHolderStates(t *testing.T) {
	requireTransitions(t, &proposalSent{}, StateNameOfferReceived, StateNameDeclined, StateNameFailed)
	requireTransitions(t, &offerReceived{},
		StateNameRequestSent, StateNameProposalSent, StateNameDeclined, StateNameFailed)
	requireTransitions(t, &requestSent{}, StateNameCredentialReceived, StateNameDeclined, StateNameFailed)
	requireTransitions(t, &credentialReceived{})
}

func TestTerminalStates(t *testing.T) {
	requireTransitions(t, &declined{})
	requireTransitions(t, &failed{})

	for _, name := range allStates {
		st, err := stateFromName(name, "")
		require.NoError(t, err)

		terminal := true

		for _, next := range allStates {
			n, err := stateFromName(next, "")
			require.NoError(t, err)

			if st.CanTransitionTo(n) {
				terminal = false
			}
		}

		require.Equal(t, terminal, IsTerminal(name), name)
	}
}

func TestStateFromName(t *testing.T) {
	st, err := stateFromName("", RoleIssuer)
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
