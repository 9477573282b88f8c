/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package metadata keeps the per module logging settings.
package metadata

import (
	"sync"

	"github.com/hyperledger/aries-didcomm-go/spi/log"
)

const (
	defaultLogLevel   = log.INFO
	defaultModuleName = ""
)

type callerInfoKey struct {
	module string
	level  log.Level
}

type settings struct {
	mu         sync.RWMutex
	levels     map[string]log.Level
	showCaller map[callerInfoKey]bool
}

//nolint:gochecknoglobals
var rt = newSettings()

func newSettings() *settings {
	return &settings{
		levels:     make(map[string]log.Level),
		showCaller: make(map[callerInfoKey]bool),
	}
}

// SetLevel sets the log level for the given module, the empty module sets the default.
func SetLevel(module string, level log.Level) {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	rt.levels[module] = level
}

// GetLevel returns the log level for the given module.
func GetLevel(module string) log.Level {
	rt.mu.RLock()
	defer rt.mu.RUnlock()

	return rt.level(module)
}

func (s *settings) level(module string) log.Level {
	if level, ok := s.levels[module]; ok {
		return level
	}

	if level, ok := s.levels[defaultModuleName]; ok {
		return level
	}

	return defaultLogLevel
}

// IsEnabledFor reports whether logging at level is enabled for module.
func IsEnabledFor(module string, level log.Level) bool {
	return level <= GetLevel(module)
}

// ShowCallerInfo enables caller info for the given module and level.
func ShowCallerInfo(module string, level log.Level) {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	rt.showCaller[callerInfoKey{module, level}] = true
}

// HideCallerInfo disables caller info for the given module and level.
func HideCallerInfo(module string, level log.Level) {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	rt.showCaller[callerInfoKey{module, level}] = false
}

// IsCallerInfoEnabled reports whether caller info is shown, it is on unless hidden.
func IsCallerInfoEnabled(module string, level log.Level) bool {
	rt.mu.RLock()
	defer rt.mu.RUnlock()

	if show, ok := rt.showCaller[callerInfoKey{module, level}]; ok {
		return show
	}

	if show, ok := rt.showCaller[callerInfoKey{defaultModuleName, level}]; ok {
		return show
	}

	return true
}

// Reset drops every module setting. Used by tests.
func Reset() {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	rt.levels = make(map[string]log.Level)
	rt.showCaller = make(map[callerInfoKey]bool)
}
