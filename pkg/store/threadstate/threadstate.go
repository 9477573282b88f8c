/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package threadstate persists protocol state machine instances keyed by thread
// id. Transitions take a snapshot under a short per-thread lock, run the
// protocol logic without holding it and commit with a compare-and-swap on the
// record version.
package threadstate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/hyperledger/aries-didcomm-go/pkg/common/log"
	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/common/agenterr"
	"github.com/hyperledger/aries-didcomm-go/pkg/internal/lockbox"
	"github.com/hyperledger/aries-didcomm-go/spi/storage"
)

const (
	// Namespace is the store holding thread records.
	Namespace = "threadstate"

	keyPrefix = "thread_"

	defaultRetries       = 3
	defaultRetryInterval = 10 * time.Millisecond
)

// ErrNotFound is returned when no instance exists for a thread.
var ErrNotFound = errors.New("thread instance not found")

var logger = log.New("aries-framework/store/threadstate")

// Record is one protocol state machine instance.
type Record struct {
	ThreadID        string          `json:"thid"`
	ParentThreadID  string          `json:"pthid,omitempty"`
	Protocol        string          `json:"protocol"`
	ProtocolVersion string          `json:"protocol_version,omitempty"`
	Role            string          `json:"role"`
	State           string          `json:"state"`
	ConnectionID    string          `json:"connection_id,omitempty"`
	Data            json.RawMessage `json:"data,omitempty"`
	Version         uint64          `json:"version"`
	Updated         time.Time       `json:"updated"`
}

// Decode unmarshals the protocol context of the record into v.
func (r *Record) Decode(v interface{}) error {
	if len(r.Data) == 0 {
		return nil
	}

	return json.Unmarshal(r.Data, v)
}

// Encode replaces the protocol context of the record with v.
func (r *Record) Encode(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s context: %w", r.Protocol, err)
	}

	r.Data = data

	return nil
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	c := *r
	c.Data = append(json.RawMessage(nil), r.Data...)

	return &c
}

// Option configures the Store.
type Option func(s *Store)

// WithRetries sets how many times a transition working on a stale snapshot is
// run again before giving up.
func WithRetries(n uint64) Option {
	return func(s *Store) {
		s.retries = n
	}
}

// WithRetryInterval sets the pause between two attempts.
func WithRetryInterval(d time.Duration) Option {
	return func(s *Store) {
		s.interval = d
	}
}

// Store keeps thread records.
type Store struct {
	store    storage.Store
	locks    *lockbox.Lockbox
	retries  uint64
	interval time.Duration
	now      func() time.Time
}

// New opens the thread store of p.
func New(p storage.Provider, opts ...Option) (*Store, error) {
	store, err := p.OpenStore(Namespace)
	if err != nil {
		return nil, fmt.Errorf("failed to open thread state store: %w", err)
	}

	s := &Store{
		store:    store,
		locks:    lockbox.New(),
		retries:  defaultRetries,
		interval: defaultRetryInterval,
		now:      time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Get returns a snapshot of the instance of thid.
func (s *Store) Get(thid string) (*Record, error) {
	var rec *Record

	err := s.locks.With(thid, func() error {
		var err error
		rec, err = s.read(thid)

		return err
	})

	return rec, err
}

// Commit writes rec if the stored version still equals rec.Version. A record
// that does not exist yet has version 0. On success rec.Version is incremented.
func (s *Store) Commit(rec *Record) error {
	if rec.ThreadID == "" {
		return errors.New("thread id is mandatory")
	}

	return s.locks.With(rec.ThreadID, func() error {
		current, err := s.read(rec.ThreadID)

		switch {
		case errors.Is(err, ErrNotFound):
			if rec.Version != 0 {
				return agenterr.Errorf(agenterr.ErrStaleState, "thread %s was deleted", rec.ThreadID)
			}
		case err != nil:
			return err
		case current.Version != rec.Version:
			return agenterr.Errorf(agenterr.ErrStaleState, "thread %s is at version %d, snapshot at %d",
				rec.ThreadID, current.Version, rec.Version)
		}

		next := rec.Clone()
		next.Version++
		next.Updated = s.now()

		data, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("marshal thread %s: %w", rec.ThreadID, err)
		}

		if err = s.store.Put(keyPrefix+rec.ThreadID, data); err != nil {
			return fmt.Errorf("store thread %s: %w", rec.ThreadID, err)
		}

		rec.Version = next.Version
		rec.Updated = next.Updated

		return nil
	})
}

// TransitionFunc computes the next record from a snapshot. It receives nil
// when no instance exists for the thread. It must not write anything itself;
// returning nil leaves the stored instance untouched.
type TransitionFunc func(snapshot *Record) (*Record, error)

// Transition runs fn on a snapshot of thid and commits the result. When
// another transition committed first, fn runs again on a fresh snapshot, up to
// the configured number of retries, after which ErrStaleState is returned.
func (s *Store) Transition(ctx context.Context, thid string, fn TransitionFunc) (*Record, error) {
	var result *Record

	op := func() error {
		snapshot, err := s.Get(thid)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return backoff.Permanent(err)
		}

		next, err := fn(snapshot)
		if err != nil {
			return backoff.Permanent(err)
		}

		if next == nil {
			result = snapshot

			return nil
		}

		next.ThreadID = thid

		if snapshot != nil {
			next.Version = snapshot.Version
		} else {
			next.Version = 0
		}

		if err = s.Commit(next); err != nil {
			if errors.Is(err, agenterr.ErrStaleState) {
				logger.Debugf("thread %s: retrying transition: %v", thid, err)

				return err
			}

			return backoff.Permanent(err)
		}

		result = next

		return nil
	}

	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(s.interval), s.retries), ctx)

	if err := backoff.Retry(op, b); err != nil {
		return nil, err
	}

	return result, nil
}

// Query returns the records of protocol, every record when protocol is empty.
func (s *Store) Query(protocol string) ([]*Record, error) {
	iter, err := s.store.Query(keyPrefix)
	if err != nil {
		return nil, fmt.Errorf("query thread records: %w", err)
	}

	defer storage.Close(iter, logger)

	values, err := storage.Values(iter)
	if err != nil {
		return nil, fmt.Errorf("read thread records: %w", err)
	}

	var records []*Record

	for _, v := range values {
		var rec Record
		if err = json.Unmarshal(v, &rec); err != nil {
			return nil, fmt.Errorf("unmarshal thread record: %w", err)
		}

		if protocol == "" || strings.EqualFold(rec.Protocol, protocol) {
			records = append(records, &rec)
		}
	}

	return records, nil
}

// Delete removes the instance of thid.
func (s *Store) Delete(thid string) error {
	return s.locks.With(thid, func() error {
		return s.store.Delete(keyPrefix + thid)
	})
}

func (s *Store) read(thid string) (*Record, error) {
	data, err := s.store.Get(keyPrefix + thid)
	if err != nil {
		if errors.Is(err, storage.ErrDataNotFound) {
			return nil, fmt.Errorf("thread %s: %w", thid, ErrNotFound)
		}

		return nil, fmt.Errorf("get thread %s: %w", thid, err)
	}

	var rec Record
	if err = json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal thread %s: %w", thid, err)
	}

	return &rec, nil
}
