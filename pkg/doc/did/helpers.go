/*
Copyright SecureKey Technologies Inc. All Rights Reserved.
SPDX-License-Identifier: Apache-2.0
*/

package did

import (
	"fmt"
	"strings"

	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/common/service"
	"github.com/hyperledger/aries-didcomm-go/pkg/doc/didkey"
)

// LookupService returns the DIDComm service with the lowest priority value.
func LookupService(didDoc *Doc) (*Service, bool) {
	const notFound = -1
	index := notFound

	for i := range didDoc.Service {
		t := didDoc.Service[i].Type
		if t != ServiceTypeIndyAgent && t != ServiceTypeDIDComm {
			continue
		}

		if index == notFound || didDoc.Service[index].Priority > didDoc.Service[i].Priority {
			index = i
		}
	}

	if index == notFound {
		return nil, false
	}

	return &didDoc.Service[index], true
}

// LookupPublicKey returns the public key with the given id from the given DID Doc.
// A bare fragment matches a key id ending in it.
func LookupPublicKey(id string, didDoc *Doc) (*PublicKey, bool) {
	fragment := id
	if i := strings.LastIndexByte(id, '#'); i >= 0 {
		fragment = id[i+1:]
	}

	for i := range didDoc.PublicKey {
		key := &didDoc.PublicKey[i]
		if key.ID == id || strings.HasSuffix(key.ID, "#"+fragment) || key.ID == fragment {
			return key, true
		}
	}

	return nil, false
}

// RecipientKeys returns the base58 recipient keys of the DIDComm service.
// Key references ("did#1") and did:key entries are resolved.
func (doc *Doc) RecipientKeys() ([]string, error) {
	svc, ok := LookupService(doc)
	if !ok {
		return nil, fmt.Errorf("did doc %s has no didcomm service", doc.ID)
	}

	keys := make([]string, 0, len(svc.RecipientKeys))

	for _, k := range svc.RecipientKeys {
		resolved, err := doc.resolveKey(k)
		if err != nil {
			return nil, err
		}

		keys = append(keys, resolved)
	}

	return keys, nil
}

func (doc *Doc) resolveKey(k string) (string, error) {
	if didkey.IsDIDKey(k) {
		return didkey.ToVerKey(k)
	}

	if strings.Contains(k, "#") {
		pk, ok := LookupPublicKey(k, doc)
		if !ok {
			return "", fmt.Errorf("key reference %s not found in did doc %s", k, doc.ID)
		}

		return pk.PublicKeyBase58, nil
	}

	return k, nil
}

// Destination returns where to send messages for the document's owner.
func (doc *Doc) Destination() (*service.Destination, error) {
	svc, ok := LookupService(doc)
	if !ok {
		return nil, fmt.Errorf("did doc %s has no didcomm service", doc.ID)
	}

	recipientKeys, err := doc.RecipientKeys()
	if err != nil {
		return nil, err
	}

	routingKeys := make([]string, 0, len(svc.RoutingKeys))

	for _, k := range svc.RoutingKeys {
		resolved, err := doc.resolveKey(k)
		if err != nil {
			return nil, err
		}

		routingKeys = append(routingKeys, resolved)
	}

	return &service.Destination{
		RecipientKeys:   recipientKeys,
		RoutingKeys:     routingKeys,
		ServiceEndpoint: svc.ServiceEndpoint,
	}, nil
}
