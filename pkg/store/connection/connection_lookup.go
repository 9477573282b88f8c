/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package connection

import (
	"errors"
	"fmt"
	"sort"

	"github.com/hyperledger/aries-didcomm-go/pkg/common/log"
	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/common/agenterr"
	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/common/service"
	"github.com/hyperledger/aries-didcomm-go/pkg/doc/did"
	"github.com/hyperledger/aries-didcomm-go/pkg/store/threadstate"
	"github.com/hyperledger/aries-didcomm-go/spi/storage"
)

const (
	// Namespace is namespace of connection store name.
	Namespace = "connection"
	// Protocol is the protocol name connection records are kept under in the thread store.
	Protocol = "connections"

	theirKeyPrefix = "theirkey_"
)

var logger = log.New("aries-framework/store/connection")

type provider interface {
	StorageProvider() storage.Provider
	ThreadStore() *threadstate.Store
}

// Record contains info about a connection. ConnectionID, ThreadID, State and
// Role mirror the thread record the connection lives in.
type Record struct {
	ConnectionID    string   `json:"-"`
	State           string   `json:"-"`
	Role            string   `json:"-"`
	ThreadID        string   `json:"-"`
	ParentThreadID  string   `json:"-"`
	Label           string   `json:"label,omitempty"`
	TheirLabel      string   `json:"their_label,omitempty"`
	TheirDID        string   `json:"their_did,omitempty"`
	TheirDIDDoc     *did.Doc `json:"their_did_doc,omitempty"`
	MyDID           string   `json:"my_did,omitempty"`
	MyVerKey        string   `json:"my_verkey,omitempty"`
	InvitationID    string   `json:"invitation_id,omitempty"`
	InvitationKey   string   `json:"invitation_key,omitempty"`
	ServiceEndPoint string   `json:"service_endpoint,omitempty"`
	RecipientKeys   []string `json:"recipient_keys,omitempty"`
	RoutingKeys     []string `json:"routing_keys,omitempty"`
	TypePrefix      string   `json:"type_prefix,omitempty"`
	Problem         string   `json:"problem,omitempty"`
}

// FromThreadRecord decodes the connection kept in rec.
func FromThreadRecord(rec *threadstate.Record) (*Record, error) {
	var r Record
	if err := rec.Decode(&r); err != nil {
		return nil, fmt.Errorf("decode connection %s: %w", rec.ThreadID, err)
	}

	r.ConnectionID = rec.ThreadID
	r.ThreadID = rec.ThreadID
	r.ParentThreadID = rec.ParentThreadID
	r.State = rec.State
	r.Role = rec.Role

	return &r, nil
}

// TheirDestination returns where messages for the other side of the connection go.
// Before their DID document is known the invitation service is used.
func (r *Record) TheirDestination() (*service.Destination, error) {
	if r.TheirDIDDoc != nil {
		return r.TheirDIDDoc.Destination()
	}

	if r.ServiceEndPoint == "" || len(r.RecipientKeys) == 0 {
		return nil, agenterr.Errorf(agenterr.ErrConnectionNotFound,
			"connection %s has no destination", r.ConnectionID)
	}

	return &service.Destination{
		RecipientKeys:   r.RecipientKeys,
		RoutingKeys:     r.RoutingKeys,
		ServiceEndpoint: r.ServiceEndPoint,
	}, nil
}

// NewLookup returns new connection lookup instance.
// Lookup is read only connection store. It provides connection record related query features.
func NewLookup(p provider) (*Lookup, error) {
	store, err := p.StorageProvider().OpenStore(Namespace)
	if err != nil {
		return nil, fmt.Errorf("failed to open permanent store to create new connection lookup: %w", err)
	}

	return &Lookup{store: store, threads: p.ThreadStore()}, nil
}

// Lookup takes care of connection related persistence features.
type Lookup struct {
	store   storage.Store
	threads *threadstate.Store
}

// GetConnectionRecord return connection record based on the connection ID.
func (c *Lookup) GetConnectionRecord(connectionID string) (*Record, error) {
	rec, err := c.threads.Get(connectionID)
	if err != nil {
		if errors.Is(err, threadstate.ErrNotFound) {
			return nil, agenterr.Wrap(agenterr.ErrConnectionNotFound, err, "connection %s", connectionID)
		}

		return nil, err
	}

	if rec.Protocol != Protocol {
		return nil, agenterr.Errorf(agenterr.ErrConnectionNotFound,
			"thread %s is a %s exchange", connectionID, rec.Protocol)
	}

	return FromThreadRecord(rec)
}

// QueryConnectionRecords returns every connection record, optionally
// filtered by state, ordered by connection id.
func (c *Lookup) QueryConnectionRecords(states ...string) ([]*Record, error) {
	recs, err := c.threads.Query(Protocol)
	if err != nil {
		return nil, err
	}

	wanted := make(map[string]bool, len(states))
	for _, s := range states {
		wanted[s] = true
	}

	var records []*Record

	for _, rec := range recs {
		if len(wanted) > 0 && !wanted[rec.State] {
			continue
		}

		r, err := FromThreadRecord(rec)
		if err != nil {
			return nil, err
		}

		records = append(records, r)
	}

	sort.Slice(records, func(i, j int) bool { return records[i].ConnectionID < records[j].ConnectionID })

	return records, nil
}

// GetConnectionIDByTheirKey returns the id of the connection whose other side
// uses verKey.
func (c *Lookup) GetConnectionIDByTheirKey(verKey string) (string, error) {
	id, err := c.store.Get(theirKeyPrefix + verKey)
	if err != nil {
		if errors.Is(err, storage.ErrDataNotFound) {
			return "", agenterr.Wrap(agenterr.ErrConnectionNotFound, err, "no connection for key %s", verKey)
		}

		return "", fmt.Errorf("get connection id for key %s: %w", verKey, err)
	}

	return string(id), nil
}

// Destination returns the destination of connectionID and the local key used on it.
func (c *Lookup) Destination(connectionID string) (*service.Destination, string, error) {
	rec, err := c.GetConnectionRecord(connectionID)
	if err != nil {
		return nil, "", err
	}

	dest, err := rec.TheirDestination()
	if err != nil {
		return nil, "", err
	}

	return dest, rec.MyVerKey, nil
}
