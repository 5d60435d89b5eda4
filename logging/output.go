//
// (C) Copyright 2019-2024 Intel Corporation.
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//

package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"reflect"
	"runtime"
	"strings"
)

const (
	emptyLogFlags  = 0
	stdLogFlags    = log.LstdFlags
	sourceLogFlags = log.Lmicroseconds | log.Lshortfile
	maxCallDepth   = 16
)

var pkgPrefix = reflect.TypeOf(LeveledLogger{}).PkgPath() + "."

// LevelLogger writes messages for a single level to a destination. It
// implements all of the per-level logger interfaces so that the same
// type can be registered at any level.
type LevelLogger struct {
	dest io.Writer
	log  *log.Logger
}

func newLevelLogger(dest io.Writer, prefix, tag string, flags int) *LevelLogger {
	if prefix != "" {
		tag = prefix + " " + tag
	}
	return &LevelLogger{
		dest: dest,
		log:  log.New(dest, tag, flags),
	}
}

// NewTraceLogger returns a logger for trace output, annotated with the
// calling source location.
func NewTraceLogger(dest io.Writer) *LevelLogger {
	return newLevelLogger(dest, "", "TRACE ", sourceLogFlags)
}

// NewDebugLogger returns a logger for debug output, annotated with the
// calling source location.
func NewDebugLogger(dest io.Writer) *LevelLogger {
	return newLevelLogger(dest, "", "DEBUG ", sourceLogFlags)
}

// NewInfoLogger returns a logger for informational output with
// timestamps.
func NewInfoLogger(prefix string, dest io.Writer) *LevelLogger {
	return newLevelLogger(dest, prefix, "INFO ", stdLogFlags)
}

// NewNoticeLogger returns a logger for notice output with timestamps.
func NewNoticeLogger(prefix string, dest io.Writer) *LevelLogger {
	return newLevelLogger(dest, prefix, "NOTICE ", stdLogFlags)
}

// NewErrorLogger returns a logger for error output with timestamps.
func NewErrorLogger(prefix string, dest io.Writer) *LevelLogger {
	return newLevelLogger(dest, prefix, "ERROR ", stdLogFlags)
}

// NewCommandLineInfoLogger returns an unadorned logger suitable for
// utility output.
func NewCommandLineInfoLogger(dest io.Writer) *LevelLogger {
	return newLevelLogger(dest, "", "", emptyLogFlags)
}

// NewCommandLineNoticeLogger returns an unadorned notice logger.
func NewCommandLineNoticeLogger(dest io.Writer) *LevelLogger {
	return newLevelLogger(dest, "", "NOTICE: ", emptyLogFlags)
}

// NewCommandLineErrorLogger returns an unadorned error logger.
func NewCommandLineErrorLogger(dest io.Writer) *LevelLogger {
	return newLevelLogger(dest, "", "ERROR: ", emptyLogFlags)
}

// callDepth returns the log.Output depth of the first caller outside
// of this package, counted from the frame that invokes log.Output.
func callDepth() int {
	pc := make([]uintptr, maxCallDepth)
	n := runtime.Callers(3, pc)
	frames := runtime.CallersFrames(pc[:n])
	depth := 2
	for {
		frame, more := frames.Next()
		if !strings.HasPrefix(frame.Function, pkgPrefix) || !more {
			return depth
		}
		depth++
	}
}

func (l *LevelLogger) output(format string, args ...interface{}) {
	out := fmt.Sprintf(format, args...)
	if err := l.log.Output(callDepth(), out); err != nil {
		fmt.Fprintf(os.Stderr, "logger output failed: %s\n", err)
	}
}

// Tracef emits a formatted trace message.
func (l *LevelLogger) Tracef(format string, args ...interface{}) { l.output(format, args...) }

// Debugf emits a formatted debug message.
func (l *LevelLogger) Debugf(format string, args ...interface{}) { l.output(format, args...) }

// Infof emits a formatted informational message.
func (l *LevelLogger) Infof(format string, args ...interface{}) { l.output(format, args...) }

// Noticef emits a formatted notice message.
func (l *LevelLogger) Noticef(format string, args ...interface{}) { l.output(format, args...) }

// Errorf emits a formatted error message.
func (l *LevelLogger) Errorf(format string, args ...interface{}) { l.output(format, args...) }
