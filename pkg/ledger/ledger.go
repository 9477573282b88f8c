/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package ledger declares the ledger capability: resolution and publication of
// schemas, credential definitions and revocation registries. Ledger values are
// carried opaquely, only their identifiers are interpreted by the agent.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
)

// ErrNotFound is returned when the ledger has no object with the requested id.
var ErrNotFound = errors.New("ledger object not found")

// Schema is a credential schema.
type Schema struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Version   string   `json:"version"`
	AttrNames []string `json:"attrNames"`
	SeqNo     int      `json:"seqNo,omitempty"`
}

// CredDef is a credential definition.
type CredDef struct {
	ID       string          `json:"id"`
	SchemaID string          `json:"schemaId"`
	Tag      string          `json:"tag,omitempty"`
	Value    json.RawMessage `json:"value,omitempty"`
}

// RevRegDef is a revocation registry definition.
type RevRegDef struct {
	ID        string          `json:"id"`
	CredDefID string          `json:"credDefId"`
	Value     json.RawMessage `json:"value,omitempty"`
}

// RevRegDelta is the accumulated state change of a revocation registry
// between two points in time.
type RevRegDelta struct {
	RevRegID  string          `json:"revRegId"`
	Timestamp int64           `json:"timestamp"`
	Value     json.RawMessage `json:"value,omitempty"`
}

// Ledger is the ledger capability consumed by the issuance and presentation protocols.
type Ledger interface {
	ResolveSchema(ctx context.Context, id string) (*Schema, error)
	ResolveCredDef(ctx context.Context, id string) (*CredDef, error)
	ResolveRevRegDef(ctx context.Context, id string) (*RevRegDef, error)
	// ResolveRevRegDelta returns the delta between from and to (unix seconds). A
	// nil from means the registry creation, a nil to means now.
	ResolveRevRegDelta(ctx context.Context, id string, from, to *int64) (*RevRegDelta, error)

	PublishSchema(ctx context.Context, schema *Schema) error
	PublishCredDef(ctx context.Context, credDef *CredDef) error
	PublishRevRegDef(ctx context.Context, revRegDef *RevRegDef) error
	PublishRevRegDelta(ctx context.Context, delta *RevRegDelta) error
}
