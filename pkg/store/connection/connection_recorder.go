/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package connection

import (
	"errors"
	"fmt"

	"github.com/hyperledger/aries-didcomm-go/spi/storage"
)

const errMsgInvalidKey = "invalid key"

// NewRecorder returns new connection recorder.
// Recorder is read-write connection store which provides
// write features on top query features from Lookup
func NewRecorder(p provider) (*Recorder, error) {
	lookup, err := NewLookup(p)
	if err != nil {
		return nil, fmt.Errorf("failed to create new connection recorder : %w", err)
	}

	return &Recorder{lookup}, nil
}

// Recorder is read-write connection store
type Recorder struct {
	*Lookup
}

// SaveTheirKeys maps every key of the other side of the connection to its id.
func (c *Recorder) SaveTheirKeys(connectionID string, keys []string) error {
	if connectionID == "" {
		return errors.New(errMsgInvalidKey)
	}

	ops := make([]storage.Operation, 0, len(keys))

	for _, k := range keys {
		if k == "" {
			continue
		}

		ops = append(ops, storage.Operation{Key: theirKeyPrefix + k, Value: []byte(connectionID)})
	}

	if len(ops) == 0 {
		return nil
	}

	if err := c.store.Batch(ops); err != nil {
		return fmt.Errorf("save keys of connection %s: %w", connectionID, err)
	}

	logger.Debugf("indexed %d keys of connection %s", len(ops), connectionID)

	return nil
}

// RemoveTheirKeys drops the key mappings of a connection.
func (c *Recorder) RemoveTheirKeys(keys []string) error {
	ops := make([]storage.Operation, 0, len(keys))
	for _, k := range keys {
		ops = append(ops, storage.Operation{Key: theirKeyPrefix + k})
	}

	if len(ops) == 0 {
		return nil
	}

	return c.store.Batch(ops)
}
