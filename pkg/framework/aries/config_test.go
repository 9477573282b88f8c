/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package aries

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestConfigFromMap(t *testing.T) {
	t.Run("decodes settings", func(t *testing.T) {
		cfg, err := ConfigFromMap(map[string]interface{}{
			"label":                  "alice",
			"endpoint":               "https://alice.example.com",
			"auto-accept":            "true",
			"message-ttl":            "48h",
			"sweep-interval":         "10m",
			"transition-retries":     3,
			"send-retries":           "2",
			"ledger-cache-size":      64,
			"ledger-cache-ttl":       "1m",
			"transport-return-route": "all",
		})
		require.NoError(t, err)
		require.Equal(t, "alice", cfg.Label)
		require.True(t, cfg.AutoAccept)
		require.Equal(t, 48*time.Hour, cfg.MessageTTL)
		require.Equal(t, 10*time.Minute, cfg.SweepInterval)
		require.Equal(t, uint64(3), cfg.TransitionRetries)
		require.Equal(t, uint64(2), cfg.SendRetries)
		require.Equal(t, 64, cfg.LedgerCacheSize)
		require.Equal(t, time.Minute, cfg.LedgerCacheTTL)

		a := &Aries{}
		for _, opt := range cfg.Options() {
			require.NoError(t, opt(a))
		}

		require.Equal(t, "alice", a.label)
		require.Equal(t, "https://alice.example.com", a.endpoint)
		require.True(t, a.autoAccept)
		require.Equal(t, "all", a.transportReturnRoute)
		require.Equal(t, 48*time.Hour, a.messageTTL)
		require.Equal(t, 10*time.Minute, a.sweepInterval)
		require.Equal(t, uint64(3), a.transitionRetries)
		require.Equal(t, uint64(2), a.sendRetries)
		require.Len(t, a.ledgerCacheOpts, 2)
	})

	t.Run("default sweep interval", func(t *testing.T) {
		cfg, err := ConfigFromMap(map[string]interface{}{"message-ttl": "1h"})
		require.NoError(t, err)

		a := &Aries{}
		for _, opt := range cfg.Options() {
			require.NoError(t, opt(a))
		}

		require.Equal(t, defaultSweepInterval, a.sweepInterval)
	})

	t.Run("rejects unknown and malformed settings", func(t *testing.T) {
		_, err := ConfigFromMap(map[string]interface{}{"colour": "blue"})
		require.Error(t, err)

		_, err = ConfigFromMap(map[string]interface{}{"message-ttl": "forever"})
		require.Error(t, err)
	})
}
