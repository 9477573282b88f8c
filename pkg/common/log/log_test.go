/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package log

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hyperledger/aries-didcomm-go/pkg/common/log/mocklogger"
	"github.com/hyperledger/aries-didcomm-go/spi/log"
)

func TestCustomProvider(t *testing.T) {
	mock := &mocklogger.MockLogger{}
	Initialize(&mocklogger.Provider{MockLogger: mock})

	const module = "aries-framework/log-test"

	logger := New(module)

	logger.Infof("hello %s", "agent")
	logger.Debugf("not shown")
	require.Equal(t, []string{"hello agent"}, mock.Lines)

	SetLevel(module, log.DEBUG)
	require.Equal(t, log.DEBUG, GetLevel(module))
	require.True(t, IsEnabledFor(module, log.DEBUG))

	logger.Debugf("shown now")
	logger.Errorf("boom")
	require.Contains(t, mock.AllLogs, "DEBUG shown now")
	require.Contains(t, mock.AllLogs, "ERROR boom")

	level, err := ParseLevel("warning")
	require.NoError(t, err)
	require.Equal(t, log.WARNING, level)

	_, err = ParseLevel("loud")
	require.Error(t, err)

	HideCallerInfo(module, log.INFO)
	require.False(t, IsCallerInfoEnabled(module, log.INFO))
	ShowCallerInfo(module, log.INFO)
	require.True(t, IsCallerInfoEnabled(module, log.INFO))
}
