/*
Copyright Scoir Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package messagepickup

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/common/service"
	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/protocol/messagepickup"
	mockpickup "github.com/hyperledger/aries-didcomm-go/pkg/mock/didcomm/protocol/messagepickup"
	mockprovider "github.com/hyperledger/aries-didcomm-go/pkg/mock/provider"
)

func answering(svc *mockpickup.MockMessagePickupSvc, msgs ...service.StateMsg) *mockprovider.Provider {
	return &mockprovider.Provider{
		ServiceValue: svc,
		InitiateFunc: func(context.Context, string, interface{}) ([]byte, error) {
			for _, msg := range msgs {
				svc.Notify(msg)
			}

			return nil, nil
		},
	}
}

func TestNew(t *testing.T) {
	t.Run("test new client", func(t *testing.T) {
		client, err := New(&mockprovider.Provider{
			ServiceValue: &mockpickup.MockMessagePickupSvc{},
		})
		require.NoError(t, err)
		require.NotNil(t, client)
	})

	t.Run("test error from get service from context", func(t *testing.T) {
		_, err := New(&mockprovider.Provider{ServiceErr: fmt.Errorf("service error")})
		require.Error(t, err)
		require.Contains(t, err.Error(), "service error")
	})

	t.Run("test error from cast service", func(t *testing.T) {
		_, err := New(&mockprovider.Provider{ServiceValue: nil})
		require.Error(t, err)
		require.Contains(t, err.Error(), "cast service to message pickup service failed")
	})
}

func TestStatusRequest(t *testing.T) {
	t.Run("status request - success", func(t *testing.T) {
		status := &messagepickup.Status{MessageCount: 3}

		client, err := New(answering(&mockpickup.MockMessagePickupSvc{}, service.StateMsg{
			StateID: messagepickup.StateNameStatus,
			Properties: map[string]interface{}{
				messagepickup.ConnectionIDProperty: "connID",
				messagepickup.StatusProperty:       status,
			},
		}))
		require.NoError(t, err)

		sts, err := client.StatusRequest(context.Background(), "connID", "")
		require.NoError(t, err)
		require.Equal(t, 3, sts.MessageCount)
	})

	t.Run("status request - status missing", func(t *testing.T) {
		client, err := New(answering(&mockpickup.MockMessagePickupSvc{}, service.StateMsg{
			StateID:    messagepickup.StateNameStatus,
			Properties: map[string]interface{}{messagepickup.ConnectionIDProperty: "connID"},
		}))
		require.NoError(t, err)

		_, err = client.StatusRequest(context.Background(), "connID", "")
		require.Error(t, err)
		require.Contains(t, err.Error(), "status missing")
	})

	t.Run("status request - register error", func(t *testing.T) {
		client, err := New(answering(&mockpickup.MockMessagePickupSvc{RegisterErr: errors.New("register failed")}))
		require.NoError(t, err)

		_, err = client.StatusRequest(context.Background(), "connID", "")
		require.Error(t, err)
		require.Contains(t, err.Error(), "register failed")
	})

	t.Run("status request - send error", func(t *testing.T) {
		client, err := New(&mockprovider.Provider{
			ServiceValue: &mockpickup.MockMessagePickupSvc{},
			InitiateFunc: func(context.Context, string, interface{}) ([]byte, error) {
				return nil, errors.New("service error")
			},
		})
		require.NoError(t, err)

		_, err = client.StatusRequest(context.Background(), "connID", "")
		require.Error(t, err)
		require.Contains(t, err.Error(), "message pickup client - status request: service error")
	})

	t.Run("status request - timeout", func(t *testing.T) {
		client, err := New(answering(&mockpickup.MockMessagePickupSvc{}, service.StateMsg{
			StateID: messagepickup.StateNameStatus,
			Properties: map[string]interface{}{
				messagepickup.ConnectionIDProperty: "other",
				messagepickup.StatusProperty:       &messagepickup.Status{},
			},
		}), WithTimeout(10*time.Millisecond))
		require.NoError(t, err)

		_, err = client.StatusRequest(context.Background(), "connID", "")
		require.ErrorIs(t, err, ErrTimeout)
	})
}

func TestPickup(t *testing.T) {
	t.Run("pickup - delivered", func(t *testing.T) {
		client, err := New(answering(&mockpickup.MockMessagePickupSvc{}, service.StateMsg{
			StateID: messagepickup.StateNameDelivered,
			Properties: map[string]interface{}{
				messagepickup.ConnectionIDProperty: "connID",
				messagepickup.DeliveredProperty:    []string{"m1", "m2"},
			},
		}))
		require.NoError(t, err)

		ids, err := client.Pickup(context.Background(), "connID", 10)
		require.NoError(t, err)
		require.Equal(t, []string{"m1", "m2"}, ids)
	})

	t.Run("pickup - empty queue", func(t *testing.T) {
		client, err := New(answering(&mockpickup.MockMessagePickupSvc{}, service.StateMsg{
			StateID: messagepickup.StateNameStatus,
			Properties: map[string]interface{}{
				messagepickup.ConnectionIDProperty: "connID",
				messagepickup.StatusProperty:       &messagepickup.Status{},
			},
		}))
		require.NoError(t, err)

		ids, err := client.Pickup(context.Background(), "connID", 10)
		require.NoError(t, err)
		require.Empty(t, ids)
	})

	t.Run("pickup - context done", func(t *testing.T) {
		client, err := New(answering(&mockpickup.MockMessagePickupSvc{}))
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err = client.Pickup(ctx, "connID", 10)
		require.ErrorIs(t, err, context.Canceled)
	})
}
