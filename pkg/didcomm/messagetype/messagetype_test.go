/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package messagetype

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/common/agenterr"
)

func TestParse(t *testing.T) {
	r := NewDefaultRegistry()

	t.Run("didcomm.org prefix", func(t *testing.T) {
		id, err := r.Parse("https://didcomm.org/connections/1.0/request")
		require.NoError(t, err)
		require.Equal(t, Identifier{Prefix: DIDCommPrefix, Family: Connections, Major: 1, Minor: 0, Kind: "request"}, id)
	})

	t.Run("did:sov prefix", func(t *testing.T) {
		wire := "did:sov:BzCbsNYhMrjHiqZDTUASHg;spec/issue-credential/1.0/offer-credential"
		id, err := r.Parse(wire)
		require.NoError(t, err)
		require.Equal(t, DIDSovPrefix, id.Prefix)
		require.Equal(t, IssueCredential, id.Family)
		require.Equal(t, wire, r.Format(id))
	})

	t.Run("errors", func(t *testing.T) {
		tests := []struct {
			name string
			wire string
			want error
		}{
			{"unknown prefix", "https://example.org/connections/1.0/request", agenterr.ErrUnknownPrefix},
			{"unknown family", "https://didcomm.org/tictactoe/1.0/move", agenterr.ErrUnknownFamily},
			{"no minor", "https://didcomm.org/connections/1/request", agenterr.ErrMalformedVersion},
			{"negative major", "https://didcomm.org/connections/-1.0/request", agenterr.ErrMalformedVersion},
			{"letters", "https://didcomm.org/connections/a.b/request", agenterr.ErrMalformedVersion},
			{"missing kind", "https://didcomm.org/connections/1.0/", agenterr.ErrMalformedType},
			{"too short", "https://didcomm.org/connections", agenterr.ErrMalformedType},
		}

		for _, tc := range tests {
			tc := tc
			t.Run(tc.name, func(t *testing.T) {
				_, err := r.Parse(tc.wire)
				require.Error(t, err)
				require.True(t, errors.Is(err, tc.want), err.Error())
				require.Equal(t, agenterr.ParseError, agenterr.KindOf(err))
			})
		}
	})
}

func TestResolveVersion(t *testing.T) {
	r := NewRegistry()
	r.Register("out-of-band", Version{1, 1}, Version{1, 3}, Version{1, 1}, Version{2, 0})

	minor, err := r.ResolveVersion("out-of-band", 1, 2)
	require.NoError(t, err)
	require.EqualValues(t, 1, minor)

	minor, err = r.ResolveVersion("out-of-band", 1, 9)
	require.NoError(t, err)
	require.EqualValues(t, 3, minor)

	_, err = r.ResolveVersion("out-of-band", 1, 0)
	require.True(t, errors.Is(err, agenterr.ErrNoCompatibleMinor))

	_, err = r.ResolveVersion("out-of-band", 3, 0)
	require.True(t, errors.Is(err, agenterr.ErrUnsupportedMajorVersion))

	_, err = r.ResolveVersion("nope", 1, 0)
	require.True(t, errors.Is(err, agenterr.ErrUnknownFamily))

	require.Equal(t, []Version{{1, 1}, {1, 3}, {2, 0}}, r.Versions("out-of-band"))
}

func TestResolveVersionMonotonic(t *testing.T) {
	r := NewRegistry()
	r.Register("fam", Version{1, 0}, Version{1, 2}, Version{1, 5}, Version{3, 1})

	for _, v := range r.Versions("fam") {
		for x := v.Minor; x < v.Minor+10; x++ {
			got, err := r.ResolveVersion("fam", v.Major, x)
			require.NoError(t, err)
			require.GreaterOrEqual(t, got, v.Minor)
			require.LessOrEqual(t, got, x)
		}
	}
}

func TestResolveAndFormatRoundTrip(t *testing.T) {
	r := NewDefaultRegistry()

	id, err := r.Resolve("https://didcomm.org/present-proof/2.4/request-presentation")
	require.NoError(t, err)
	require.EqualValues(t, 0, id.Minor)

	wire := r.Format(id)
	require.Equal(t, "https://didcomm.org/present-proof/2.0/request-presentation", wire)

	again, err := r.Parse(wire)
	require.NoError(t, err)
	require.Equal(t, id, again)

	require.Equal(t, "https://didcomm.org/present-proof/2.0", id.Protocol())
	require.Equal(t, "ack", id.WithKind("ack").Kind)
	require.Contains(t, r.Families(), MessagePickup)
}
