/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package service

import (
	"errors"
	"sync"
)

// ErrNilChannel is returned when a nil channel is registered.
var ErrNilChannel = errors.New("channel is nil")

// StateMsgType state msg type.
type StateMsgType int

const (
	// PreState is sent before a transition is committed.
	PreState StateMsgType = iota
	// PostState is sent after a transition is committed.
	PostState
)

// StateMsg notifies consumers about protocol state changes.
type StateMsg struct {
	// ProtocolName is the protocol family of the instance.
	ProtocolName string
	// Type is PreState or PostState.
	Type StateMsgType
	// StateID is the name of the state entered.
	StateID string
	// ThreadID identifies the instance.
	ThreadID string
	// Msg is the message that caused the transition, nil for local actions.
	Msg DIDCommMsgMap
	// Properties carries protocol specific values such as the connection id.
	Properties map[string]interface{}
}

// Message is a thread-safe register of state message channels.
type Message struct {
	mu     sync.RWMutex
	events []chan<- StateMsg
}

// MsgEvents returns the registered channels.
func (m *Message) MsgEvents() []chan<- StateMsg {
	m.mu.RLock()
	events := append(m.events[:0:0], m.events...)
	m.mu.RUnlock()

	return events
}

// RegisterMsgEvent registers a channel for state messages. The service does not
// wait for consumers, a full channel drops the notification.
func (m *Message) RegisterMsgEvent(ch chan<- StateMsg) error {
	if ch == nil {
		return ErrNilChannel
	}

	m.mu.Lock()
	m.events = append(m.events, ch)
	m.mu.Unlock()

	return nil
}

// UnregisterMsgEvent removes a channel. Refer RegisterMsgEvent().
func (m *Message) UnregisterMsgEvent(ch chan<- StateMsg) error {
	m.mu.Lock()
	for i := 0; i < len(m.events); i++ {
		if m.events[i] == ch {
			m.events = append(m.events[:i], m.events[i+1:]...)
			i--
		}
	}
	m.mu.Unlock()

	return nil
}

// Notify sends msg to every registered channel without blocking.
func (m *Message) Notify(msg StateMsg) {
	for _, ch := range m.MsgEvents() {
		select {
		case ch <- msg:
		default:
		}
	}
}
