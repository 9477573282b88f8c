/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package issuecredential

import "github.com/hyperledger/aries-didcomm-go/pkg/store/threadstate"

// Keys of the StateMsg properties sent by the service.
const (
	PIIDPropKey         = "piid"
	ConnectionIDPropKey = "connectionID"
	RolePropKey         = "role"
	CredentialIDPropKey = "credentialID"
	ErrorPropKey        = "error"
)

func eventProps(rec *threadstate.Record, ex *exchange, err error) map[string]interface{} {
	props := map[string]interface{}{
		PIIDPropKey:         rec.ThreadID,
		ConnectionIDPropKey: rec.ConnectionID,
		RolePropKey:         rec.Role,
	}

	if ex != nil && ex.CredentialID != "" {
		props[CredentialIDPropKey] = ex.CredentialID
	}

	if err != nil {
		props[ErrorPropKey] = err
	}

	return props
}
