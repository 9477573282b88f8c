/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRootCmd(t *testing.T) {
	rootCmd, err := newRootCmd()
	require.NoError(t, err)
	require.Equal(t, "aries-agentd", rootCmd.Use)

	startCmd, _, err := rootCmd.Find([]string{"start"})
	require.NoError(t, err)
	require.Equal(t, "start", startCmd.Use)

	t.Run("help without sub command", func(t *testing.T) {
		var out bytes.Buffer

		rootCmd.SetOut(&out)
		rootCmd.SetArgs([]string{})

		require.NoError(t, rootCmd.Execute())
		require.Contains(t, out.String(), "start")
	})

	t.Run("start fails without host", func(t *testing.T) {
		rootCmd.SetArgs([]string{"start"})

		err := rootCmd.Execute()
		require.Error(t, err)
		require.Contains(t, err.Error(), "host not provided")
	})
}
