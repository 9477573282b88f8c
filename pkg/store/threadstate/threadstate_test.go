/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package threadstate

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/common/agenterr"
	mockstorage "github.com/hyperledger/aries-didcomm-go/pkg/mock/storage"
	"github.com/hyperledger/aries-didcomm-go/pkg/storage/mem"
)

func newStore(t *testing.T, opts ...Option) *Store {
	t.Helper()

	s, err := New(mem.NewProvider(), append([]Option{WithRetryInterval(time.Millisecond)}, opts...)...)
	require.NoError(t, err)

	return s
}

func TestNew(t *testing.T) {
	p := mockstorage.NewMockStoreProvider()
	p.ErrOpenStoreHandle = errors.New("open failed")

	_, err := New(p)
	require.ErrorContains(t, err, "open failed")
}

func TestStore_Commit(t *testing.T) {
	t.Run("create then update", func(t *testing.T) {
		s := newStore(t)

		rec := &Record{ThreadID: "t1", Protocol: "connections", Role: "inviter", State: "invited"}
		require.NoError(t, s.Commit(rec))
		require.EqualValues(t, 1, rec.Version)

		got, err := s.Get("t1")
		require.NoError(t, err)
		require.Equal(t, "invited", got.State)
		require.EqualValues(t, 1, got.Version)

		got.State = "requested"
		require.NoError(t, s.Commit(got))
		require.EqualValues(t, 2, got.Version)
	})

	t.Run("stale snapshot is rejected", func(t *testing.T) {
		s := newStore(t)

		require.NoError(t, s.Commit(&Record{ThreadID: "t1", State: "a"}))

		first, err := s.Get("t1")
		require.NoError(t, err)
		second, err := s.Get("t1")
		require.NoError(t, err)

		first.State = "b"
		require.NoError(t, s.Commit(first))

		second.State = "c"
		err = s.Commit(second)
		require.ErrorIs(t, err, agenterr.ErrStaleState)

		got, err := s.Get("t1")
		require.NoError(t, err)
		require.Equal(t, "b", got.State)
	})

	t.Run("creating twice is stale", func(t *testing.T) {
		s := newStore(t)

		require.NoError(t, s.Commit(&Record{ThreadID: "t1"}))
		require.ErrorIs(t, s.Commit(&Record{ThreadID: "t1"}), agenterr.ErrStaleState)
	})

	t.Run("missing thread id", func(t *testing.T) {
		require.Error(t, newStore(t).Commit(&Record{}))
	})

	t.Run("storage failure", func(t *testing.T) {
		p := mockstorage.NewMockStoreProvider()
		p.Store.ErrPut = errors.New("disk full")

		s, err := New(p)
		require.NoError(t, err)

		require.ErrorContains(t, s.Commit(&Record{ThreadID: "t1"}), "disk full")
	})
}

func TestStore_Transition(t *testing.T) {
	ctx := context.Background()

	t.Run("creates and advances an instance", func(t *testing.T) {
		s := newStore(t)

		rec, err := s.Transition(ctx, "t1", func(snapshot *Record) (*Record, error) {
			require.Nil(t, snapshot)

			return &Record{Protocol: "present-proof", State: "request-sent"}, nil
		})
		require.NoError(t, err)
		require.Equal(t, "t1", rec.ThreadID)
		require.EqualValues(t, 1, rec.Version)

		rec, err = s.Transition(ctx, "t1", func(snapshot *Record) (*Record, error) {
			require.Equal(t, "request-sent", snapshot.State)

			next := snapshot.Clone()
			next.State = "presentation-received"

			return next, nil
		})
		require.NoError(t, err)
		require.Equal(t, "presentation-received", rec.State)
		require.EqualValues(t, 2, rec.Version)
	})

	t.Run("errors leave the instance untouched", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Commit(&Record{ThreadID: "t1", State: "a"}))

		calls := 0
		_, err := s.Transition(ctx, "t1", func(snapshot *Record) (*Record, error) {
			calls++

			return nil, agenterr.ErrThreadMismatch
		})
		require.ErrorIs(t, err, agenterr.ErrThreadMismatch)
		require.Equal(t, 1, calls)

		got, err := s.Get("t1")
		require.NoError(t, err)
		require.Equal(t, "a", got.State)
		require.EqualValues(t, 1, got.Version)
	})

	t.Run("nil result writes nothing", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Commit(&Record{ThreadID: "t1", State: "a"}))

		rec, err := s.Transition(ctx, "t1", func(snapshot *Record) (*Record, error) {
			return nil, nil
		})
		require.NoError(t, err)
		require.EqualValues(t, 1, rec.Version)
	})

	t.Run("stale snapshot is retried", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Commit(&Record{ThreadID: "t1", State: "a"}))

		calls := 0
		rec, err := s.Transition(ctx, "t1", func(snapshot *Record) (*Record, error) {
			calls++

			if calls == 1 {
				// a concurrent transition wins the race
				other := snapshot.Clone()
				other.State = "b"
				require.NoError(t, s.Commit(other))
			}

			next := snapshot.Clone()
			next.State = snapshot.State + "+"

			return next, nil
		})
		require.NoError(t, err)
		require.Equal(t, 2, calls)
		require.Equal(t, "b+", rec.State)
		require.EqualValues(t, 3, rec.Version)
	})

	t.Run("gives up after the retries", func(t *testing.T) {
		s := newStore(t, WithRetries(2))
		require.NoError(t, s.Commit(&Record{ThreadID: "t1", State: "a"}))

		calls := 0
		_, err := s.Transition(ctx, "t1", func(snapshot *Record) (*Record, error) {
			calls++

			other := snapshot.Clone()
			require.NoError(t, s.Commit(other))

			return snapshot.Clone(), nil
		})
		require.ErrorIs(t, err, agenterr.ErrStaleState)
		require.Equal(t, 3, calls)
	})

	t.Run("concurrent transitions are all applied", func(t *testing.T) {
		s := newStore(t, WithRetries(50))
		require.NoError(t, s.Commit(&Record{ThreadID: "t1"}))

		const n = 10

		var wg sync.WaitGroup

		for i := 0; i < n; i++ {
			wg.Add(1)

			go func() {
				defer wg.Done()

				_, err := s.Transition(ctx, "t1", func(snapshot *Record) (*Record, error) {
					next := snapshot.Clone()
					next.State += "x"

					return next, nil
				})
				require.NoError(t, err)
			}()
		}

		wg.Wait()

		got, err := s.Get("t1")
		require.NoError(t, err)
		require.Len(t, got.State, n)
		require.EqualValues(t, n+1, got.Version)
	})
}

func TestStore_QueryAndDelete(t *testing.T) {
	s := newStore(t)

	require.NoError(t, s.Commit(&Record{ThreadID: "t1", Protocol: "connections"}))
	require.NoError(t, s.Commit(&Record{ThreadID: "t2", Protocol: "issue-credential"}))
	require.NoError(t, s.Commit(&Record{ThreadID: "t3", Protocol: "connections"}))

	all, err := s.Query("")
	require.NoError(t, err)
	require.Len(t, all, 3)

	conns, err := s.Query("connections")
	require.NoError(t, err)
	require.Len(t, conns, 2)

	require.NoError(t, s.Delete("t1"))

	_, err = s.Get("t1")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRecord_Context(t *testing.T) {
	type ctxData struct {
		Label string `json:"label"`
	}

	rec := &Record{Protocol: "connections"}

	var empty ctxData
	require.NoError(t, rec.Decode(&empty))

	require.NoError(t, rec.Encode(ctxData{Label: "alice"}))

	var got ctxData
	require.NoError(t, rec.Decode(&got))
	require.Equal(t, "alice", got.Label)
}
