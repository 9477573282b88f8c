/*
Copyright SecureKey Technologies Inc. All Rights Reserved.
SPDX-License-Identifier: Apache-2.0
*/

// Package did models the DID documents exchanged by the connections protocol
// (the legacy Indy flavoured document of Aries RFC 0160).
package did

import (
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/btcsuite/btcutil/base58"
)

const (
	// Context of the DID document
	Context = "https://w3id.org/did/v1"

	// SovPrefix is the method prefix of pairwise DIDs.
	SovPrefix = "did:sov:"

	// KeyTypeEd25519 is the verification key type of pairwise keys.
	KeyTypeEd25519 = "Ed25519VerificationKey2018"
	// AuthTypeEd25519 references a public key used for authentication.
	AuthTypeEd25519 = "Ed25519SignatureAuthentication2018"

	// ServiceTypeIndyAgent is the service type legacy agents advertise.
	ServiceTypeIndyAgent = "IndyAgent"
	// ServiceTypeDIDComm is the DIDComm v1 service type.
	ServiceTypeDIDComm = "did-communication"

	unqualifiedDIDLength = 16
)

// DID is parsed according to the generic syntax: https://w3c.github.io/did-core/#generic-did-syntax
type DID struct {
	Scheme           string // Scheme is always "did"
	Method           string // Method is the specific DID methods
	MethodSpecificID string // MethodSpecificID is the unique ID computed or assigned by the DID method
}

// String returns a string representation of this DID.
func (d *DID) String() string {
	return fmt.Sprintf("%s:%s:%s", d.Scheme, d.Method, d.MethodSpecificID)
}

// Parse parses the string according to the generic DID syntax.
// See https://w3c.github.io/did-core/#generic-did-syntax.
func Parse(did string) (*DID, error) {
	const numParts = 3

	parts := strings.SplitN(did, ":", numParts)

	if len(parts) < numParts || parts[0] != "did" || parts[1] == "" || parts[2] == "" {
		return nil, fmt.Errorf("invalid did: %s. Make sure it conforms to the DID syntax: "+
			"https://w3c.github.io/did-core/#did-syntax", did)
	}

	return &DID{Scheme: parts[0], Method: parts[1], MethodSpecificID: parts[2]}, nil
}

// Doc DID Document definition
type Doc struct {
	Context        string               `json:"@context,omitempty"`
	ID             string               `json:"id"`
	PublicKey      []PublicKey          `json:"publicKey,omitempty"`
	Authentication []VerificationMethod `json:"authentication,omitempty"`
	Service        []Service            `json:"service,omitempty"`
}

// PublicKey DID doc public key
type PublicKey struct {
	ID              string `json:"id"`
	Type            string `json:"type"`
	Controller      string `json:"controller,omitempty"`
	PublicKeyBase58 string `json:"publicKeyBase58"`
}

// Service DID doc service
type Service struct {
	ID              string   `json:"id,omitempty"`
	Type            string   `json:"type"`
	Priority        uint     `json:"priority"`
	RecipientKeys   []string `json:"recipientKeys,omitempty"`
	RoutingKeys     []string `json:"routingKeys,omitempty"`
	ServiceEndpoint string   `json:"serviceEndpoint"`
}

// VerificationMethod authentication verification method
type VerificationMethod struct {
	Type      string `json:"type"`
	PublicKey string `json:"publicKey"`
}

// ParseDocument creates an instance of DIDDocument by reading a JSON document from bytes.
func ParseDocument(data []byte) (*Doc, error) {
	doc := &Doc{}

	if err := json.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("JSON marshalling of did doc bytes bytes failed: %w", err)
	}

	if err := doc.Validate(); err != nil {
		return nil, err
	}

	return doc, nil
}

// Validate checks the document has an id and a usable service.
func (doc *Doc) Validate() error {
	if doc.ID == "" {
		return errors.New("did doc has no id")
	}

	if _, ok := LookupService(doc); !ok {
		return errors.New("did doc has no didcomm service")
	}

	keys, err := doc.RecipientKeys()
	if err != nil {
		return err
	}

	if len(keys) == 0 {
		return errors.New("did doc has no recipient keys")
	}

	return nil
}

// JSONBytes converts document to json bytes.
func (doc *Doc) JSONBytes() ([]byte, error) {
	return json.Marshal(doc)
}

// DocOption provides options to build DID Doc.
type DocOption func(opts *Doc)

// WithService DID doc services.
func WithService(svc ...Service) DocOption {
	return func(opts *Doc) {
		opts.Service = append(opts.Service, svc...)
	}
}

// NewPairwiseDoc builds the document of a pairwise DID derived from verKey, with
// one service reachable at endpoint.
func NewPairwiseDoc(verKey, endpoint string, routingKeys []string, opts ...DocOption) (*Doc, error) {
	raw := base58.Decode(verKey)
	if len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("verkey %q is not an ed25519 public key", verKey)
	}

	id := SovPrefix + base58.Encode(raw[:unqualifiedDIDLength])
	keyID := id + "#1"

	doc := &Doc{
		Context: Context,
		ID:      id,
		PublicKey: []PublicKey{{
			ID:              keyID,
			Type:            KeyTypeEd25519,
			Controller:      id,
			PublicKeyBase58: verKey,
		}},
		Authentication: []VerificationMethod{{Type: AuthTypeEd25519, PublicKey: keyID}},
		Service: []Service{{
			ID:              id + ";indy",
			Type:            ServiceTypeIndyAgent,
			RecipientKeys:   []string{verKey},
			RoutingKeys:     routingKeys,
			ServiceEndpoint: endpoint,
		}},
	}

	for _, opt := range opts {
		opt(doc)
	}

	return doc, nil
}
