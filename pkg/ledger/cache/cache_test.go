/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/require"

	ledgerMocks "github.com/hyperledger/aries-didcomm-go/pkg/internal/gomocks/ledger"
	"github.com/hyperledger/aries-didcomm-go/pkg/ledger"
	mockledger "github.com/hyperledger/aries-didcomm-go/pkg/mock/ledger"
)

func TestLedger_Resolve(t *testing.T) {
	ctx := context.Background()

	t.Run("hits the ledger once per object", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		l := ledgerMocks.NewMockLedger(ctrl)
		l.EXPECT().ResolveSchema(gomock.Any(), "s1").Return(&ledger.Schema{ID: "s1"}, nil).Times(1)
		l.EXPECT().ResolveCredDef(gomock.Any(), "c1").Return(&ledger.CredDef{ID: "c1"}, nil).Times(1)
		l.EXPECT().ResolveRevRegDef(gomock.Any(), "r1").Return(&ledger.RevRegDef{ID: "r1"}, nil).Times(1)

		c := New(l)

		for i := 0; i < 3; i++ {
			s, err := c.ResolveSchema(ctx, "s1")
			require.NoError(t, err)
			require.Equal(t, "s1", s.ID)

			cd, err := c.ResolveCredDef(ctx, "c1")
			require.NoError(t, err)
			require.Equal(t, "c1", cd.ID)

			r, err := c.ResolveRevRegDef(ctx, "r1")
			require.NoError(t, err)
			require.Equal(t, "r1", r.ID)
		}
	})

	t.Run("errors are not cached", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		l := ledgerMocks.NewMockLedger(ctrl)
		gomock.InOrder(
			l.EXPECT().ResolveCredDef(gomock.Any(), "c1").Return(nil, errors.New("timeout")),
			l.EXPECT().ResolveCredDef(gomock.Any(), "c1").Return(&ledger.CredDef{ID: "c1"}, nil),
		)

		c := New(l)

		_, err := c.ResolveCredDef(ctx, "c1")
		require.EqualError(t, err, "timeout")

		cd, err := c.ResolveCredDef(ctx, "c1")
		require.NoError(t, err)
		require.Equal(t, "c1", cd.ID)
	})

	t.Run("deltas always go to the ledger", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		l := ledgerMocks.NewMockLedger(ctrl)
		l.EXPECT().ResolveRevRegDelta(gomock.Any(), "r1", nil, nil).
			Return(&ledger.RevRegDelta{RevRegID: "r1"}, nil).Times(2)

		c := New(l)

		for i := 0; i < 2; i++ {
			d, err := c.ResolveRevRegDelta(ctx, "r1", nil, nil)
			require.NoError(t, err)
			require.Equal(t, "r1", d.RevRegID)
		}
	})

	t.Run("expired objects are resolved again", func(t *testing.T) {
		l := mockledger.NewMockLedger()
		require.NoError(t, l.PublishSchema(ctx, &ledger.Schema{ID: "s1"}))

		c := New(l, WithExpiration(10*time.Millisecond), WithSize(4))

		_, err := c.ResolveSchema(ctx, "s1")
		require.NoError(t, err)
		require.Equal(t, 1, l.Resolves)

		time.Sleep(20 * time.Millisecond)

		_, err = c.ResolveSchema(ctx, "s1")
		require.NoError(t, err)
		require.Equal(t, 2, l.Resolves)
	})
}

func TestLedger_Publish(t *testing.T) {
	ctx := context.Background()

	t.Run("published objects are served from the cache", func(t *testing.T) {
		l := mockledger.NewMockLedger()
		c := New(l)

		require.NoError(t, c.PublishSchema(ctx, &ledger.Schema{ID: "s1"}))
		require.NoError(t, c.PublishCredDef(ctx, &ledger.CredDef{ID: "c1", SchemaID: "s1"}))
		require.NoError(t, c.PublishRevRegDef(ctx, &ledger.RevRegDef{ID: "r1", CredDefID: "c1"}))

		_, err := c.ResolveSchema(ctx, "s1")
		require.NoError(t, err)
		_, err = c.ResolveCredDef(ctx, "c1")
		require.NoError(t, err)
		_, err = c.ResolveRevRegDef(ctx, "r1")
		require.NoError(t, err)
		require.Zero(t, l.Resolves)

		c.Purge()

		_, err = c.ResolveSchema(ctx, "s1")
		require.NoError(t, err)
		require.Equal(t, 1, l.Resolves)
	})

	t.Run("failed publish is not cached", func(t *testing.T) {
		l := mockledger.NewMockLedger()
		l.PublishErr = errors.New("rejected")
		c := New(l)

		require.EqualError(t, c.PublishSchema(ctx, &ledger.Schema{ID: "s1"}), "rejected")

		_, err := c.ResolveSchema(ctx, "s1")
		require.ErrorIs(t, err, ledger.ErrNotFound)
	})
}
