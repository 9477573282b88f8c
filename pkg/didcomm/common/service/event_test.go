/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package service

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMessageEvents(t *testing.T) {
	m := &Message{}

	require.ErrorIs(t, m.RegisterMsgEvent(nil), ErrNilChannel)

	ch := make(chan StateMsg, 1)
	require.NoError(t, m.RegisterMsgEvent(ch))
	require.Len(t, m.MsgEvents(), 1)

	m.Notify(StateMsg{StateID: "invited"})
	// the second notification is dropped, the channel is full
	m.Notify(StateMsg{StateID: "requested"})

	got := <-ch
	require.Equal(t, "invited", got.StateID)

	require.NoError(t, m.UnregisterMsgEvent(ch))
	require.Empty(t, m.MsgEvents())
}
