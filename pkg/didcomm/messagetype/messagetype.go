/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package messagetype parses, resolves and formats DIDComm message type URIs of
// the form <prefix>/<family>/<major>.<minor>/<kind>.
package messagetype

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/common/agenterr"
)

const (
	// DIDCommPrefix is the current message type prefix.
	DIDCommPrefix = "https://didcomm.org"
	// DIDSovPrefix is the legacy message type prefix.
	DIDSovPrefix = "did:sov:BzCbsNYhMrjHiqZDTUASHg;spec"
)

// Identifier is a parsed message type.
type Identifier struct {
	Prefix string
	Family string
	Major  uint
	Minor  uint
	Kind   string
}

// String formats the identifier on the wire.
func (id Identifier) String() string {
	prefix := id.Prefix
	if prefix == "" {
		prefix = DIDCommPrefix
	}

	return fmt.Sprintf("%s/%s/%d.%d/%s", prefix, id.Family, id.Major, id.Minor, id.Kind)
}

// Protocol returns the protocol URI without the message kind.
func (id Identifier) Protocol() string {
	prefix := id.Prefix
	if prefix == "" {
		prefix = DIDCommPrefix
	}

	return fmt.Sprintf("%s/%s/%d.%d", prefix, id.Family, id.Major, id.Minor)
}

// WithKind returns a copy of the identifier naming another message of the same protocol.
func (id Identifier) WithKind(kind string) Identifier {
	id.Kind = kind

	return id
}

// Version is a registered major/minor pair of a family.
type Version struct {
	Major uint
	Minor uint
}

// Registry is the set of protocol families and versions the agent handles.
// It is mutated at startup and read concurrently afterwards.
type Registry struct {
	mu       sync.RWMutex
	families map[string]map[uint][]uint
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{families: make(map[string]map[uint][]uint)}
}

// Register adds family versions to the registry. Registering twice is a no-op.
func (r *Registry) Register(family string, versions ...Version) {
	r.mu.Lock()
	defer r.mu.Unlock()

	majors, ok := r.families[family]
	if !ok {
		majors = make(map[uint][]uint)
		r.families[family] = majors
	}

	for _, v := range versions {
		minors := majors[v.Major]

		idx := sort.Search(len(minors), func(i int) bool { return minors[i] >= v.Minor })
		if idx < len(minors) && minors[idx] == v.Minor {
			continue
		}

		minors = append(minors, 0)
		copy(minors[idx+1:], minors[idx:])
		minors[idx] = v.Minor
		majors[v.Major] = minors
	}
}

// Parse splits a wire type into its parts. The family must be registered, the
// version is not resolved.
func (r *Registry) Parse(wire string) (Identifier, error) {
	var (
		prefix string
		rest   string
	)

	switch {
	case strings.HasPrefix(wire, DIDCommPrefix+"/"):
		prefix, rest = DIDCommPrefix, wire[len(DIDCommPrefix)+1:]
	case strings.HasPrefix(wire, DIDSovPrefix+"/"):
		prefix, rest = DIDSovPrefix, wire[len(DIDSovPrefix)+1:]
	default:
		return Identifier{}, agenterr.Errorf(agenterr.ErrUnknownPrefix, "message type %q", wire)
	}

	parts := strings.Split(rest, "/")
	if len(parts) != 3 || parts[0] == "" {
		return Identifier{}, agenterr.Errorf(agenterr.ErrMalformedType, "message type %q", wire)
	}

	family, version, kind := parts[0], parts[1], parts[2]

	if !r.hasFamily(family) {
		return Identifier{}, agenterr.Errorf(agenterr.ErrUnknownFamily, "family %q", family)
	}

	major, minor, err := parseVersion(version)
	if err != nil {
		return Identifier{}, err
	}

	if kind == "" {
		return Identifier{}, agenterr.Errorf(agenterr.ErrMalformedType, "message type %q has no kind", wire)
	}

	return Identifier{Prefix: prefix, Family: family, Major: major, Minor: minor, Kind: kind}, nil
}

func parseVersion(version string) (uint, uint, error) {
	majorStr, minorStr, ok := strings.Cut(version, ".")
	if !ok {
		return 0, 0, agenterr.Errorf(agenterr.ErrMalformedVersion, "version %q", version)
	}

	major, err := strconv.ParseUint(majorStr, 10, 32)
	if err != nil {
		return 0, 0, agenterr.Wrap(agenterr.ErrMalformedVersion, err, "major version %q", majorStr)
	}

	minor, err := strconv.ParseUint(minorStr, 10, 32)
	if err != nil {
		return 0, 0, agenterr.Wrap(agenterr.ErrMalformedVersion, err, "minor version %q", minorStr)
	}

	return uint(major), uint(minor), nil
}

// ResolveVersion returns the greatest registered minor not above requestedMinor.
func (r *Registry) ResolveVersion(family string, major, requestedMinor uint) (uint, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	majors, ok := r.families[family]
	if !ok {
		return 0, agenterr.Errorf(agenterr.ErrUnknownFamily, "family %q", family)
	}

	minors, ok := majors[major]
	if !ok || len(minors) == 0 {
		return 0, agenterr.Errorf(agenterr.ErrUnsupportedMajorVersion, "%s major version %d", family, major)
	}

	// minors is sorted ascending
	idx := sort.Search(len(minors), func(i int) bool { return minors[i] > requestedMinor })
	if idx == 0 {
		return 0, agenterr.Errorf(agenterr.ErrNoCompatibleMinor,
			"%s %d.%d, lowest supported minor is %d", family, major, requestedMinor, minors[0])
	}

	return minors[idx-1], nil
}

// Format is the inverse of Parse.
func (r *Registry) Format(id Identifier) string {
	return id.String()
}

// Resolve parses a wire type and replaces its minor version with the one this
// agent speaks.
func (r *Registry) Resolve(wire string) (Identifier, error) {
	id, err := r.Parse(wire)
	if err != nil {
		return Identifier{}, err
	}

	minor, err := r.ResolveVersion(id.Family, id.Major, id.Minor)
	if err != nil {
		return Identifier{}, err
	}

	id.Minor = minor

	return id, nil
}

// Versions lists the registered versions of a family, lowest first.
func (r *Registry) Versions(family string) []Version {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var versions []Version

	for major, minors := range r.families[family] {
		for _, minor := range minors {
			versions = append(versions, Version{Major: major, Minor: minor})
		}
	}

	sort.Slice(versions, func(i, j int) bool {
		if versions[i].Major != versions[j].Major {
			return versions[i].Major < versions[j].Major
		}

		return versions[i].Minor < versions[j].Minor
	})

	return versions
}

// Families lists the registered family names in lexical order.
func (r *Registry) Families() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.families))
	for name := range r.families {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

func (r *Registry) hasFamily(family string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.families[family]

	return ok
}
