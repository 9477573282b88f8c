/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package api

import (
	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/dispatcher"
	"github.com/hyperledger/aries-didcomm-go/pkg/framework/context"
)

// ProtocolSvcCreator creates a protocol service from the framework context.
type ProtocolSvcCreator struct {
	// Name of the protocol family, used in errors.
	Name string
	// Create builds the service. The context holds the services created before it.
	Create func(prv *context.Provider) (dispatcher.ProtocolService, error)
}
