/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package presentproof

import "github.com/hyperledger/aries-didcomm-go/pkg/store/threadstate"

// Keys of the StateMsg properties sent by the service.
const (
	PIIDPropKey         = "piid"
	ConnectionIDPropKey = "connectionID"
	RolePropKey         = "role"
	VerificationPropKey = "verification"
	ErrorPropKey        = "error"
)

func eventProps(rec *threadstate.Record, ex *exchange, err error) map[string]interface{} {
	props := map[string]interface{}{
		PIIDPropKey:         rec.ThreadID,
		ConnectionIDPropKey: rec.ConnectionID,
		RolePropKey:         rec.Role,
	}

	if ex != nil && ex.Verification != "" {
		props[VerificationPropKey] = ex.Verification
	}

	if err != nil {
		props[ErrorPropKey] = err
	}

	return props
}
