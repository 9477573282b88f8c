/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package mediation persists the mediator side of routing: client accounts,
// the recipient keys registered by each account and the forward messages
// queued for them until pickup.
package mediation

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hyperledger/aries-didcomm-go/pkg/common/log"
	"github.com/hyperledger/aries-didcomm-go/spi/storage"
)

const (
	// Namespace is the store holding mediation data.
	Namespace = "mediation"

	accountPrefix      = "acct_"
	accountKeyPrefix   = "acctkey_"
	recipientPrefix    = "rkey_"
	accountRKeysPrefix = "acctrkeys_"
	messagePrefix      = "msg_"
	keySeparator       = "_"
)

var (
	// ErrAccountNotFound no account for the given id or key.
	ErrAccountNotFound = errors.New("mediation account not found")
	// ErrRecipientExists the account already holds the recipient key.
	ErrRecipientExists = errors.New("recipient key already registered")
	// ErrRecipientOwnedByOther another account holds the recipient key.
	ErrRecipientOwnedByOther = errors.New("recipient key belongs to another account")
	// ErrRecipientNotFound no account holds the recipient key.
	ErrRecipientNotFound = errors.New("recipient key not registered")
)

var logger = log.New("aries-framework/store/mediation")

// Account is a mediation client.
type Account struct {
	ID string `json:"id"`
	// VerKey is the authenticated key the client sent the mediate request with.
	VerKey string `json:"verkey"`
	// RoutingKey is the mediator key the client publishes as routing key.
	RoutingKey string    `json:"routing_key"`
	Endpoint   string    `json:"endpoint"`
	Granted    bool      `json:"granted"`
	Reason     string    `json:"reason,omitempty"`
	Created    time.Time `json:"created"`
}

// Message is a queued forward message.
type Message struct {
	ID           string          `json:"id"`
	AccountID    string          `json:"account_id"`
	RecipientKey string          `json:"recipient_key"`
	Payload      json.RawMessage `json:"payload"`
	Received     time.Time       `json:"received"`
}

// Store is the mediator persistence.
type Store struct {
	store storage.Store
	// serializes keylist and queue mutations, reads do not take it
	mu  sync.Mutex
	now func() time.Time
}

// New opens the mediation store of p.
func New(p storage.Provider) (*Store, error) {
	store, err := p.OpenStore(Namespace)
	if err != nil {
		return nil, fmt.Errorf("failed to open mediation store: %w", err)
	}

	return &Store{store: store, now: time.Now}, nil
}

// CreateAccount stores a new account and indexes it by its verkey. An account
// already existing for the verkey is returned instead.
func (s *Store) CreateAccount(acct *Account) (*Account, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.accountByVerKey(acct.VerKey)
	if err == nil {
		return existing, false, nil
	}

	if !errors.Is(err, ErrAccountNotFound) {
		return nil, false, err
	}

	created := *acct
	if created.ID == "" {
		created.ID = uuid.New().String()
	}

	created.Created = s.now()

	data, err := json.Marshal(&created)
	if err != nil {
		return nil, false, fmt.Errorf("marshal account: %w", err)
	}

	err = s.store.Batch([]storage.Operation{
		{Key: accountPrefix + created.ID, Value: data},
		{Key: accountKeyPrefix + created.VerKey, Value: []byte(created.ID)},
	})
	if err != nil {
		return nil, false, fmt.Errorf("store account: %w", err)
	}

	logger.Debugf("created mediation account %s for %s", created.ID, created.VerKey)

	return &created, true, nil
}

// GetAccountDetails returns the account with id.
func (s *Store) GetAccountDetails(id string) (*Account, error) {
	data, err := s.store.Get(accountPrefix + id)
	if err != nil {
		if errors.Is(err, storage.ErrDataNotFound) {
			return nil, fmt.Errorf("account %s: %w", id, ErrAccountNotFound)
		}

		return nil, fmt.Errorf("get account %s: %w", id, err)
	}

	var acct Account
	if err = json.Unmarshal(data, &acct); err != nil {
		return nil, fmt.Errorf("unmarshal account %s: %w", id, err)
	}

	return &acct, nil
}

// AccountByVerKey returns the account created by verKey.
func (s *Store) AccountByVerKey(verKey string) (*Account, error) {
	return s.accountByVerKey(verKey)
}

func (s *Store) accountByVerKey(verKey string) (*Account, error) {
	id, err := s.store.Get(accountKeyPrefix + verKey)
	if err != nil {
		if errors.Is(err, storage.ErrDataNotFound) {
			return nil, fmt.Errorf("account for %s: %w", verKey, ErrAccountNotFound)
		}

		return nil, fmt.Errorf("get account for %s: %w", verKey, err)
	}

	return s.GetAccountDetails(string(id))
}

// AddRecipient registers key for the account.
func (s *Store) AddRecipient(accountID, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	owner, err := s.RecipientAccount(key)

	switch {
	case err == nil && owner == accountID:
		return ErrRecipientExists
	case err == nil:
		return ErrRecipientOwnedByOther
	case !errors.Is(err, ErrRecipientNotFound):
		return err
	}

	return s.store.Batch([]storage.Operation{
		{Key: recipientPrefix + key, Value: []byte(accountID)},
		{Key: accountRKeysPrefix + accountID + keySeparator + key, Value: []byte(key)},
	})
}

// RemoveRecipient unregisters key from the account.
func (s *Store) RemoveRecipient(accountID, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	owner, err := s.RecipientAccount(key)
	if err != nil {
		return err
	}

	if owner != accountID {
		return ErrRecipientOwnedByOther
	}

	return s.store.Batch([]storage.Operation{
		{Key: recipientPrefix + key},
		{Key: accountRKeysPrefix + accountID + keySeparator + key},
	})
}

// RecipientAccount returns the id of the account holding key.
func (s *Store) RecipientAccount(key string) (string, error) {
	id, err := s.store.Get(recipientPrefix + key)
	if err != nil {
		if errors.Is(err, storage.ErrDataNotFound) {
			return "", fmt.Errorf("%s: %w", key, ErrRecipientNotFound)
		}

		return "", fmt.Errorf("get recipient %s: %w", key, err)
	}

	return string(id), nil
}

// ListRecipientKeys returns the keys of the account in key order.
func (s *Store) ListRecipientKeys(accountID string) ([]string, error) {
	iter, err := s.store.Query(accountRKeysPrefix + accountID + keySeparator)
	if err != nil {
		return nil, fmt.Errorf("query recipient keys: %w", err)
	}

	defer storage.Close(iter, logger)

	values, err := storage.Values(iter)
	if err != nil {
		return nil, fmt.Errorf("read recipient keys: %w", err)
	}

	keys := make([]string, 0, len(values))
	for _, v := range values {
		keys = append(keys, string(v))
	}

	sort.Strings(keys)

	return keys, nil
}

// PersistForwardMessage queues payload for the account holding recipientKey.
func (s *Store) PersistForwardMessage(recipientKey string, payload []byte) (*Message, error) {
	accountID, err := s.RecipientAccount(recipientKey)
	if err != nil {
		return nil, err
	}

	msg := &Message{
		ID:           uuid.New().String(),
		AccountID:    accountID,
		RecipientKey: recipientKey,
		Payload:      payload,
		Received:     s.now(),
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshal message: %w", err)
	}

	if err = s.store.Put(messageKey(msg), data); err != nil {
		return nil, fmt.Errorf("queue message: %w", err)
	}

	return msg, nil
}

// RetrievePendingMessageCount counts the queued messages of the account,
// only those for recipientKey when it is set.
func (s *Store) RetrievePendingMessageCount(accountID, recipientKey string) (int, error) {
	msgs, err := s.pending(accountID, recipientKey, 0)
	if err != nil {
		return 0, err
	}

	return len(msgs), nil
}

// RetrievePendingMessages returns up to limit queued messages of the account,
// oldest first. A limit of zero or less returns all of them.
func (s *Store) RetrievePendingMessages(accountID string, limit int, recipientKey string) ([]*Message, error) {
	return s.pending(accountID, recipientKey, limit)
}

// RemoveMessages drops the listed messages of the account and returns how many
// were found.
func (s *Store) RemoveMessages(accountID string, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	wanted := make(map[string]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}

	msgs, err := s.pending(accountID, "", 0)
	if err != nil {
		return 0, err
	}

	var ops []storage.Operation

	for _, m := range msgs {
		if wanted[m.ID] {
			ops = append(ops, storage.Operation{Key: messageKey(m)})
		}
	}

	if len(ops) == 0 {
		return 0, nil
	}

	if err = s.store.Batch(ops); err != nil {
		return 0, fmt.Errorf("remove messages: %w", err)
	}

	return len(ops), nil
}

// PurgeExpired drops every queued message received before cutoff.
func (s *Store) PurgeExpired(cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs, err := s.query(messagePrefix)
	if err != nil {
		return 0, err
	}

	var ops []storage.Operation

	for _, m := range msgs {
		if m.Received.Before(cutoff) {
			ops = append(ops, storage.Operation{Key: messageKey(m)})
		}
	}

	if len(ops) == 0 {
		return 0, nil
	}

	if err = s.store.Batch(ops); err != nil {
		return 0, fmt.Errorf("purge messages: %w", err)
	}

	logger.Infof("purged %d expired messages", len(ops))

	return len(ops), nil
}

func (s *Store) pending(accountID, recipientKey string, limit int) ([]*Message, error) {
	msgs, err := s.query(messagePrefix + accountID + keySeparator)
	if err != nil {
		return nil, err
	}

	out := msgs[:0]

	for _, m := range msgs {
		if recipientKey != "" && m.RecipientKey != recipientKey {
			continue
		}

		out = append(out, m)

		if limit > 0 && len(out) == limit {
			break
		}
	}

	return out, nil
}

func (s *Store) query(prefix string) ([]*Message, error) {
	iter, err := s.store.Query(prefix)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}

	defer storage.Close(iter, logger)

	values, err := storage.Values(iter)
	if err != nil {
		return nil, fmt.Errorf("read messages: %w", err)
	}

	msgs := make([]*Message, 0, len(values))

	for _, v := range values {
		var m Message
		if err = json.Unmarshal(v, &m); err != nil {
			return nil, fmt.Errorf("unmarshal message: %w", err)
		}

		msgs = append(msgs, &m)
	}

	// oldest first
	sort.SliceStable(msgs, func(i, j int) bool { return msgs[i].Received.Before(msgs[j].Received) })

	return msgs, nil
}

func messageKey(m *Message) string {
	return strings.Join([]string{
		messagePrefix + m.AccountID,
		fmt.Sprintf("%020d", m.Received.UnixNano()),
		m.ID,
	}, keySeparator)
}
