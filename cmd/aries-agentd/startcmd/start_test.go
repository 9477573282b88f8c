/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package startcmd

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	"github.com/hyperledger/aries-didcomm-go/pkg/common/log"
	spilog "github.com/hyperledger/aries-didcomm-go/spi/log"
)

type mockServer struct {
	host    string
	handler http.Handler
	err     error
}

func (s *mockServer) ListenAndServe(host string, handler http.Handler) error {
	s.host = host
	s.handler = handler

	return s.err
}

func runStart(t *testing.T, srv server, args ...string) error {
	t.Helper()

	startCmd, err := Cmd(srv)
	require.NoError(t, err)

	if args == nil {
		args = []string{}
	}

	startCmd.SetArgs(args)

	return startCmd.Execute()
}

func TestStartCmdContents(t *testing.T) {
	startCmd, err := Cmd(&mockServer{})
	require.NoError(t, err)

	require.Equal(t, "start", startCmd.Use)
	require.Equal(t, "Start an agent", startCmd.Short)

	for _, name := range []string{
		agentHostFlagName, agentInboundHostFlagName, agentInboundHostExternalFlagName, agentInboundWSFlagName,
		agentDBPathFlagName, agentLabelFlagName, agentAutoAcceptFlagName, agentTransportReturnRouteFlagName,
		agentMessageTTLFlagName, agentSendRetriesFlagName, agentLogLevelFlagName, agentConfigFileFlagName,
	} {
		require.NotNil(t, startCmd.Flags().Lookup(name), name)
	}

	require.Equal(t, agentHostFlagShorthand, startCmd.Flags().Lookup(agentHostFlagName).Shorthand)
	require.Equal(t, agentDBPathFlagShorthand, startCmd.Flags().Lookup(agentDBPathFlagName).Shorthand)
}

func TestStartAgentWithBlankArgs(t *testing.T) {
	t.Run("test blank host arg", func(t *testing.T) {
		err := runStart(t, &mockServer{}, "--"+agentInboundHostFlagName, "localhost:0")
		require.ErrorIs(t, err, errMissingHost)
	})

	t.Run("test blank inbound host arg", func(t *testing.T) {
		err := runStart(t, &mockServer{}, "--"+agentHostFlagName, "localhost:8080")
		require.ErrorIs(t, err, errMissingInboundHost)
	})

	t.Run("test invalid log level", func(t *testing.T) {
		err := runStart(t, &mockServer{}, "--"+agentLogLevelFlagName, "loud")
		require.Error(t, err)
		require.Contains(t, err.Error(), "failed to parse log level 'loud'")
	})

	t.Run("test missing config file", func(t *testing.T) {
		err := runStart(t, &mockServer{}, "--"+agentConfigFileFlagName, filepath.Join(t.TempDir(), "none.yaml"))
		require.Error(t, err)
		require.Contains(t, err.Error(), "read config file")
	})
}

func TestStartAgent(t *testing.T) {
	t.Run("test start with flags", func(t *testing.T) {
		srv := &mockServer{}

		err := runStart(t, srv,
			"--"+agentHostFlagName, "localhost:8080",
			"--"+agentInboundHostFlagName, "localhost:0",
			"--"+agentDBPathFlagName, t.TempDir(),
			"--"+agentLabelFlagName, "agent",
			"--"+agentAutoAcceptFlagName,
			"--"+agentMessageTTLFlagName, "24h",
			"--"+agentSendRetriesFlagName, "2",
		)
		require.NoError(t, err)
		require.Equal(t, "localhost:8080", srv.host)
		require.NotNil(t, srv.handler)
	})

	t.Run("test start with env", func(t *testing.T) {
		t.Setenv(agentHostEnvKey, "localhost:8081")
		t.Setenv(agentInboundWSEnvKey, "localhost:0")
		t.Setenv(agentTransportReturnRouteEnvKey, "all")

		srv := &mockServer{}

		require.NoError(t, runStart(t, srv))
		require.Equal(t, "localhost:8081", srv.host)
	})

	t.Run("test start with config file", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "agentd.yaml")
		require.NoError(t, os.WriteFile(file, []byte(
			"api-host: localhost:8082\ninbound-host: localhost:0\nlabel: from-file\n"), 0o600))

		srv := &mockServer{}

		require.NoError(t, runStart(t, srv, "--"+agentConfigFileFlagName, file))
		require.Equal(t, "localhost:8082", srv.host)
	})

	t.Run("test debug log level", func(t *testing.T) {
		t.Cleanup(func() {
			log.SetLevel("", spilog.INFO)
		})

		srv := &mockServer{}

		err := runStart(t, srv, "--"+agentLogLevelFlagName, "DEBUG",
			"--"+agentHostFlagName, "localhost:8083", "--"+agentInboundHostFlagName, "localhost:0")
		require.NoError(t, err)
		require.Equal(t, spilog.DEBUG, log.GetLevel(""))
	})

	t.Run("test invalid settings", func(t *testing.T) {
		t.Setenv(agentSendRetriesEnvKey, "many")

		err := runStart(t, &mockServer{},
			"--"+agentHostFlagName, "localhost:8080", "--"+agentInboundHostFlagName, "localhost:0")
		require.Error(t, err)
		require.Contains(t, err.Error(), "invalid agent settings")
	})

	t.Run("test storage failure", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "file")
		require.NoError(t, os.WriteFile(file, nil, 0o600))

		err := runStart(t, &mockServer{}, "--"+agentHostFlagName, "localhost:8080",
			"--"+agentInboundHostFlagName, "localhost:0", "--"+agentDBPathFlagName, file)
		require.Error(t, err)
		require.Contains(t, err.Error(), "storage initialization failed")
	})

	t.Run("test server failure", func(t *testing.T) {
		err := runStart(t, &mockServer{err: errors.New("listen failed")},
			"--"+agentHostFlagName, "localhost:8080", "--"+agentInboundHostFlagName, "localhost:0")
		require.Error(t, err)
		require.Contains(t, err.Error(), "listen failed")
	})
}

func TestSettings(t *testing.T) {
	newViper := func(t *testing.T, args ...string) *viper.Viper {
		t.Helper()

		flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
		createFlags(flags)
		require.NoError(t, flags.Parse(args))

		v := viper.New()
		require.NoError(t, v.BindPFlags(flags))

		return v
	}

	t.Run("only set values are passed", func(t *testing.T) {
		s := settings(newViper(t, "--"+agentLabelFlagName, "agent"))
		require.Equal(t, map[string]interface{}{"label": "agent"}, s)
	})

	t.Run("endpoint defaults to the http inbound host", func(t *testing.T) {
		s := settings(newViper(t, "--"+agentInboundHostFlagName, "localhost:9000"))
		require.Equal(t, "http://localhost:9000", s["endpoint"])

		s = settings(newViper(t, "--"+agentInboundHostFlagName, "0.0.0.0:9000",
			"--"+agentInboundHostExternalFlagName, "https://agent.example.com"))
		require.Equal(t, "https://agent.example.com", s["endpoint"])
	})

	t.Run("typed flags", func(t *testing.T) {
		s := settings(newViper(t, "--"+agentAutoAcceptFlagName, "--"+agentMessageTTLFlagName, "90m",
			"--"+agentSendRetriesFlagName, "4"))
		require.Equal(t, true, s["auto-accept"])
		require.NotEmpty(t, s["message-ttl"])
		require.NotEmpty(t, s["send-retries"])
	})
}
