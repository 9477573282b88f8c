/*
Copyright Scoir Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package messagepickup

import (
	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/common/service"
)

// MockMessagePickupSvc mock message pickup client service. Notify sends to
// the registered channels.
type MockMessagePickupSvc struct {
	service.Message
	RegisterErr error
}

// RegisterMsgEvent registers ch unless RegisterErr is set.
func (m *MockMessagePickupSvc) RegisterMsgEvent(ch chan<- service.StateMsg) error {
	if m.RegisterErr != nil {
		return m.RegisterErr
	}

	return m.Message.RegisterMsgEvent(ch)
}
