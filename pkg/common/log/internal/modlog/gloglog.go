/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package modlog

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/golang/glog"

	"github.com/hyperledger/aries-didcomm-go/pkg/common/log/internal/metadata"
	"github.com/hyperledger/aries-didcomm-go/spi/log"
)

const (
	// DebugVerbosity is the glog verbosity that DEBUG lines are written at.
	DebugVerbosity = 2

	logPrefixFormatter  = "[%s] "
	callerInfoFormatter = "- %s "
	logLevelFormatter   = "-> %s "

	// glog depth from logf to the caller of the public logging method.
	callDepth = 2
)

// NewGlogLog returns a glog backed logger for the given module.
func NewGlogLog(module string) *GlogLog {
	return &GlogLog{module: module}
}

// GlogLog writes log lines through glog. glog flags (-logtostderr, -v, -log_dir)
// control the destination and DEBUG lines need -v=2 or higher.
// Line format: [<MODULE>] - <CALLER> -> <LEVEL> <TEXT>.
type GlogLog struct {
	module string
}

// Fatalf is CRITICAL log formatted followed by a call to os.Exit(255) done by glog.
func (l *GlogLog) Fatalf(format string, args ...interface{}) {
	glog.FatalDepth(callDepth-1, l.line(log.CRITICAL, format, args...))
}

// Panicf is CRITICAL log formatted followed by a call to panic().
func (l *GlogLog) Panicf(format string, args ...interface{}) {
	glog.ErrorDepth(callDepth-1, l.line(log.CRITICAL, format, args...))
	panic(fmt.Sprintf(format, args...))
}

// Debugf writes a verbose line when glog verbosity allows it.
func (l *GlogLog) Debugf(format string, args ...interface{}) {
	if glog.V(DebugVerbosity) {
		glog.InfoDepth(callDepth-1, l.line(log.DEBUG, format, args...))
	}
}

// Infof writes general information messages, INFO is the default level.
func (l *GlogLog) Infof(format string, args ...interface{}) {
	glog.InfoDepth(callDepth-1, l.line(log.INFO, format, args...))
}

// Warnf writes possible errors.
func (l *GlogLog) Warnf(format string, args ...interface{}) {
	glog.WarningDepth(callDepth-1, l.line(log.WARNING, format, args...))
}

// Errorf writes errors.
func (l *GlogLog) Errorf(format string, args ...interface{}) {
	glog.ErrorDepth(callDepth-1, l.line(log.ERROR, format, args...))
}

func (l *GlogLog) line(level log.Level, format string, args ...interface{}) string {
	return fmt.Sprintf(logPrefixFormatter, l.module) +
		l.callerInfo(level) +
		fmt.Sprintf(logLevelFormatter, level) +
		fmt.Sprintf(format, args...)
}

// callerInfo walks the caller frames past the logging library to the real caller.
func (l *GlogLog) callerInfo(level log.Level) string {
	if !metadata.IsCallerInfoEnabled(l.module, level) {
		return ""
	}

	const (
		maxCallers  = 8
		skipCallers = 4
		notFound    = "n/a"
	)

	fpcs := make([]uintptr, maxCallers)

	n := runtime.Callers(skipCallers, fpcs)
	if n == 0 {
		return fmt.Sprintf(callerInfoFormatter, notFound)
	}

	frames := runtime.CallersFrames(fpcs[:n])

	for f, more := frames.Next(); ; f, more = frames.Next() {
		_, fnName := filepath.Split(f.Function)

		if !isLoggingFrame(fnName) {
			if fnName == "" {
				fnName = notFound
			}

			return fmt.Sprintf(callerInfoFormatter, fnName)
		}

		if !more {
			break
		}
	}

	return fmt.Sprintf(callerInfoFormatter, notFound)
}

func isLoggingFrame(fnName string) bool {
	return strings.HasPrefix(fnName, "log.(*Log)") || strings.HasPrefix(fnName, "modlog.")
}
