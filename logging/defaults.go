//
// (C) Copyright 2019-2024 Intel Corporation.
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//

package logging

import (
	"io"
	"os"
)

// DefaultLogLevel is the level used by the constructors below.
const DefaultLogLevel = LogLevelInfo

// NewCommandLineLogger returns a logger which writes non-error output
// to stdout and errors to stderr, without timestamps or source info.
func NewCommandLineLogger() *LeveledLogger {
	debug := NewDebugLogger(os.Stdout)
	return &LeveledLogger{
		level:         DefaultLogLevel,
		traceLoggers:  []TraceLogger{debug},
		debugLoggers:  []DebugLogger{debug},
		infoLoggers:   []InfoLogger{NewCommandLineInfoLogger(os.Stdout)},
		noticeLoggers: []NoticeLogger{NewCommandLineNoticeLogger(os.Stdout)},
		errorLoggers:  []ErrorLogger{NewCommandLineErrorLogger(os.Stderr)},
	}
}

// NewStdoutLogger returns a logger which sends all output to stdout.
func NewStdoutLogger(prefix string) *LeveledLogger {
	return NewCombinedLogger(prefix, os.Stdout)
}

// NewCombinedLogger returns a logger which sends all output to the
// supplied io.Writer.
func NewCombinedLogger(prefix string, output io.Writer) *LeveledLogger {
	return &LeveledLogger{
		level:         DefaultLogLevel,
		traceLoggers:  []TraceLogger{NewTraceLogger(output)},
		debugLoggers:  []DebugLogger{NewDebugLogger(output)},
		infoLoggers:   []InfoLogger{NewInfoLogger(prefix, output)},
		noticeLoggers: []NoticeLogger{NewNoticeLogger(prefix, output)},
		errorLoggers:  []ErrorLogger{NewErrorLogger(prefix, output)},
	}
}

// NewTestLogger returns a logger writing into a *LogBuffer at TRACE
// level, so that a failing test can dump everything that happened.
func NewTestLogger(prefix string) (*LeveledLogger, *LogBuffer) {
	var buf LogBuffer
	return NewCombinedLogger(prefix, &buf).WithLogLevel(LogLevelTrace), &buf
}
