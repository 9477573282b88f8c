/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package main is the aries-agentd daemon. It runs an agent exposing its
// DIDComm inbound endpoint together with a small admin API.
package main

import (
	"github.com/spf13/cobra"

	"github.com/hyperledger/aries-didcomm-go/cmd/aries-agentd/startcmd"
	"github.com/hyperledger/aries-didcomm-go/pkg/common/log"
)

var logger = log.New("aries-framework/agentd")

func newRootCmd() (*cobra.Command, error) {
	rootCmd := &cobra.Command{
		Use: "aries-agentd",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.HelpFunc()(cmd, args)
		},
	}

	startCmd, err := startcmd.Cmd(&startcmd.HTTPServer{})
	if err != nil {
		return nil, err
	}

	rootCmd.AddCommand(startCmd)

	return rootCmd, nil
}

func main() {
	rootCmd, err := newRootCmd()
	if err != nil {
		logger.Fatalf(err.Error())
	}

	if err := rootCmd.Execute(); err != nil {
		logger.Fatalf("Failed to run aries-agentd: %s", err)
	}
}
