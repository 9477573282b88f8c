/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package mocklogger provides a capturing logger for tests.
package mocklogger

import (
	"fmt"
	"sync"

	"github.com/hyperledger/aries-didcomm-go/spi/log"
)

// MockLogger records every line it is given.
type MockLogger struct {
	mu    sync.Mutex
	Lines []string
	// AllLogs aggregates every line with its level prefix.
	AllLogs string
}

func (m *MockLogger) add(level, msg string, args ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()

	line := fmt.Sprintf(msg, args...)
	m.Lines = append(m.Lines, line)
	m.AllLogs += level + " " + line + "\n"
}

// Fatalf records a line.
func (m *MockLogger) Fatalf(msg string, args ...interface{}) { m.add("FATAL", msg, args...) }

// Panicf records a line.
func (m *MockLogger) Panicf(msg string, args ...interface{}) { m.add("PANIC", msg, args...) }

// Debugf records a line.
func (m *MockLogger) Debugf(msg string, args ...interface{}) { m.add("DEBUG", msg, args...) }

// Infof records a line.
func (m *MockLogger) Infof(msg string, args ...interface{}) { m.add("INFO", msg, args...) }

// Warnf records a line.
func (m *MockLogger) Warnf(msg string, args ...interface{}) { m.add("WARN", msg, args...) }

// Errorf records a line.
func (m *MockLogger) Errorf(msg string, args ...interface{}) { m.add("ERROR", msg, args...) }

// Provider hands out one shared MockLogger.
type Provider struct {
	MockLogger *MockLogger
}

// GetLogger returns the shared MockLogger.
func (p *Provider) GetLogger(string) log.Logger {
	return p.MockLogger
}
