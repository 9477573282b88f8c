/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package mediator

import (
	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/common/service"
	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/protocol/mediator"
)

// MockMediatorSvc mock mediator client service. Notify sends to the registered channels.
type MockMediatorSvc struct {
	service.Message
	RouterEndpoint string
	RoutingKeys    []string
	ConfigErr      error
	Connections    []string
	GetConnsErr    error
}

// Config returns the router configuration.
func (m *MockMediatorSvc) Config(connID string) (*mediator.Config, error) {
	if m.ConfigErr != nil {
		return nil, m.ConfigErr
	}

	return mediator.NewConfig(m.RouterEndpoint, m.RoutingKeys), nil
}

// GetConnections returns the granted connections.
func (m *MockMediatorSvc) GetConnections() ([]string, error) {
	if m.GetConnsErr != nil {
		return nil, m.GetConnsErr
	}

	return m.Connections, nil
}
