/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package service

import (
	"encoding/json"
	"errors"
	"fmt"
)

const (
	jsonID             = "@id"
	jsonType           = "@type"
	jsonThread         = "~thread"
	jsonThreadID       = "thid"
	jsonParentThreadID = "pthid"
	jsonMetadata       = "_internal_metadata"
)

// ErrThreadIDNotFound is returned when a message has neither a thread id nor an id.
var ErrThreadIDNotFound = errors.New("threadID not found")

// DIDCommMsgMap is a plaintext DIDComm message kept in its generic JSON form.
// The message type is read first and the map is decoded into the matching
// model afterwards.
type DIDCommMsgMap map[string]interface{}

// ParseDIDCommMsgMap parses a plaintext message.
func ParseDIDCommMsgMap(payload []byte) (DIDCommMsgMap, error) {
	var msg DIDCommMsgMap

	if err := json.Unmarshal(payload, &msg); err != nil {
		return nil, fmt.Errorf("invalid payload data format: %w", err)
	}

	if msg == nil {
		return nil, errors.New("invalid payload data format: empty message")
	}

	return msg, nil
}

// NewDIDCommMsgMap converts a message model to a DIDCommMsgMap.
func NewDIDCommMsgMap(v interface{}) (DIDCommMsgMap, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal message: %w", err)
	}

	return ParseDIDCommMsgMap(raw)
}

// ID returns the message id.
func (m DIDCommMsgMap) ID() string {
	return m.stringField(jsonID)
}

// Type returns the wire message type.
func (m DIDCommMsgMap) Type() string {
	return m.stringField(jsonType)
}

// ThreadID returns ~thread.thid, falling back to @id for the first message of a thread.
func (m DIDCommMsgMap) ThreadID() (string, error) {
	if thid := m.ExplicitThreadID(); thid != "" {
		return thid, nil
	}

	if id := m.ID(); id != "" {
		return id, nil
	}

	return "", ErrThreadIDNotFound
}

// ExplicitThreadID returns ~thread.thid without falling back to @id.
func (m DIDCommMsgMap) ExplicitThreadID() string {
	return m.threadField(jsonThreadID)
}

// ParentThreadID returns ~thread.pthid.
func (m DIDCommMsgMap) ParentThreadID() string {
	return m.threadField(jsonParentThreadID)
}

// Metadata returns the internal metadata attached to the message. Metadata is
// never sent over the wire.
func (m DIDCommMsgMap) Metadata() map[string]interface{} {
	if m == nil {
		return map[string]interface{}{}
	}

	md, ok := m[jsonMetadata].(map[string]interface{})
	if !ok {
		return map[string]interface{}{}
	}

	return md
}

// SetThread sets the thread decorator.
func (m DIDCommMsgMap) SetThread(thid, pthid string) {
	if thid == "" && pthid == "" {
		return
	}

	thread := map[string]interface{}{}
	if thid != "" {
		thread[jsonThreadID] = thid
	}

	if pthid != "" {
		thread[jsonParentThreadID] = pthid
	}

	m[jsonThread] = thread
}

// Decode decodes the message into a model.
func (m DIDCommMsgMap) Decode(v interface{}) error {
	raw, err := json.Marshal(m.withoutMetadata())
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	return json.Unmarshal(raw, v)
}

// MarshalJSON drops the internal metadata.
func (m DIDCommMsgMap) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]interface{}(m.withoutMetadata()))
}

// Clone returns a shallow copy of the message.
func (m DIDCommMsgMap) Clone() DIDCommMsgMap {
	if m == nil {
		return nil
	}

	cp := make(DIDCommMsgMap, len(m))
	for k, v := range m {
		cp[k] = v
	}

	return cp
}

func (m DIDCommMsgMap) withoutMetadata() DIDCommMsgMap {
	if _, ok := m[jsonMetadata]; !ok {
		return m
	}

	cp := m.Clone()
	delete(cp, jsonMetadata)

	return cp
}

func (m DIDCommMsgMap) stringField(name string) string {
	if m == nil {
		return ""
	}

	s, ok := m[name].(string)
	if !ok {
		return ""
	}

	return s
}

func (m DIDCommMsgMap) threadField(name string) string {
	if m == nil {
		return ""
	}

	thread, ok := m[jsonThread].(map[string]interface{})
	if !ok {
		return ""
	}

	s, ok := thread[name].(string)
	if !ok {
		return ""
	}

	return s
}
