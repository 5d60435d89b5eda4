//
// (C) Copyright 2019-2024 Intel Corporation.
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//

// Package logging provides a leveled logger which fans messages out to
// any number of per-level destinations.
package logging

import (
	"bytes"
	"sync"
)

type (
	// Logger defines a standard logging interface
	Logger interface {
		EnabledFor(level LogLevel) bool
		TraceLogger
		Trace(msg string)
		DebugLogger
		Debug(msg string)
		InfoLogger
		Info(msg string)
		NoticeLogger
		Notice(msg string)
		ErrorLogger
		Error(msg string)
	}

	// TraceLogger is implemented by Trace destinations.
	TraceLogger interface {
		Tracef(format string, args ...interface{})
	}

	// DebugLogger is implemented by Debug destinations.
	DebugLogger interface {
		Debugf(format string, args ...interface{})
	}

	// InfoLogger is implemented by Info destinations.
	InfoLogger interface {
		Infof(format string, args ...interface{})
	}

	// NoticeLogger is implemented by Notice destinations.
	NoticeLogger interface {
		Noticef(format string, args ...interface{})
	}

	// ErrorLogger is implemented by Error destinations.
	ErrorLogger interface {
		Errorf(format string, args ...interface{})
	}

	// LeveledLogger emits each message to every destination
	// registered for its level, provided the logger's level
	// permits it.
	LeveledLogger struct {
		sync.RWMutex

		level         LogLevel
		traceLoggers  []TraceLogger
		debugLoggers  []DebugLogger
		infoLoggers   []InfoLogger
		noticeLoggers []NoticeLogger
		errorLoggers  []ErrorLogger
	}
)

var _ Logger = (*LeveledLogger)(nil)

// SetLevel sets the level at or above which messages are emitted.
func (ll *LeveledLogger) SetLevel(newLevel LogLevel) {
	ll.level.Set(newLevel)
}

// Level returns the logger's current LogLevel.
func (ll *LeveledLogger) Level() LogLevel {
	return ll.level.Get()
}

// EnabledFor returns true if the logger is enabled for the
// specified LogLevel.
func (ll *LeveledLogger) EnabledFor(level LogLevel) bool {
	return ll.level.Get() >= level
}

// WithLogLevel sets the level as part of a chained method call.
func (ll *LeveledLogger) WithLogLevel(level LogLevel) *LeveledLogger {
	ll.SetLevel(level)
	return ll
}

// ClearLevel removes all destinations for the specified level.
func (ll *LeveledLogger) ClearLevel(level LogLevel) {
	ll.Lock()
	defer ll.Unlock()

	switch level {
	case LogLevelTrace:
		ll.traceLoggers = nil
	case LogLevelDebug:
		ll.debugLoggers = nil
	case LogLevelInfo:
		ll.infoLoggers = nil
	case LogLevelNotice:
		ll.noticeLoggers = nil
	case LogLevelError:
		ll.errorLoggers = nil
	}
}

// AddTraceLogger adds a Trace destination.
func (ll *LeveledLogger) AddTraceLogger(l TraceLogger) {
	ll.Lock()
	defer ll.Unlock()
	ll.traceLoggers = append(ll.traceLoggers, l)
}

// AddDebugLogger adds a Debug destination.
func (ll *LeveledLogger) AddDebugLogger(l DebugLogger) {
	ll.Lock()
	defer ll.Unlock()
	ll.debugLoggers = append(ll.debugLoggers, l)
}

// AddInfoLogger adds an Info destination.
func (ll *LeveledLogger) AddInfoLogger(l InfoLogger) {
	ll.Lock()
	defer ll.Unlock()
	ll.infoLoggers = append(ll.infoLoggers, l)
}

// AddNoticeLogger adds a Notice destination.
func (ll *LeveledLogger) AddNoticeLogger(l NoticeLogger) {
	ll.Lock()
	defer ll.Unlock()
	ll.noticeLoggers = append(ll.noticeLoggers, l)
}

// AddErrorLogger adds an Error destination.
func (ll *LeveledLogger) AddErrorLogger(l ErrorLogger) {
	ll.Lock()
	defer ll.Unlock()
	ll.errorLoggers = append(ll.errorLoggers, l)
}

func destinations[T any](ll *LeveledLogger, level LogLevel, list *[]T) []T {
	if !ll.EnabledFor(level) {
		return nil
	}
	ll.RLock()
	defer ll.RUnlock()
	return *list
}

// Trace emits an unformatted message at Trace level.
func (ll *LeveledLogger) Trace(msg string) {
	ll.Tracef("%s", msg)
}

// Tracef emits a formatted message at Trace level.
func (ll *LeveledLogger) Tracef(format string, args ...interface{}) {
	for _, l := range destinations(ll, LogLevelTrace, &ll.traceLoggers) {
		l.Tracef(format, args...)
	}
}

// Debug emits an unformatted message at Debug level.
func (ll *LeveledLogger) Debug(msg string) {
	ll.Debugf("%s", msg)
}

// Debugf emits a formatted message at Debug level.
func (ll *LeveledLogger) Debugf(format string, args ...interface{}) {
	for _, l := range destinations(ll, LogLevelDebug, &ll.debugLoggers) {
		l.Debugf(format, args...)
	}
}

// Info emits an unformatted message at Info level.
func (ll *LeveledLogger) Info(msg string) {
	ll.Infof("%s", msg)
}

// Infof emits a formatted message at Info level.
func (ll *LeveledLogger) Infof(format string, args ...interface{}) {
	for _, l := range destinations(ll, LogLevelInfo, &ll.infoLoggers) {
		l.Infof(format, args...)
	}
}

// Notice emits an unformatted message at Notice level.
func (ll *LeveledLogger) Notice(msg string) {
	ll.Noticef("%s", msg)
}

// Noticef emits a formatted message at Notice level.
func (ll *LeveledLogger) Noticef(format string, args ...interface{}) {
	for _, l := range destinations(ll, LogLevelNotice, &ll.noticeLoggers) {
		l.Noticef(format, args...)
	}
}

// Error emits an unformatted message at Error level.
func (ll *LeveledLogger) Error(msg string) {
	ll.Errorf("%s", msg)
}

// Errorf emits a formatted message at Error level.
func (ll *LeveledLogger) Errorf(format string, args ...interface{}) {
	for _, l := range destinations(ll, LogLevelError, &ll.errorLoggers) {
		l.Errorf(format, args...)
	}
}

// LogBuffer is a goroutine-safe bytes.Buffer, used to capture log
// output in tests.
type LogBuffer struct {
	sync.Mutex
	buf bytes.Buffer
}

func (lb *LogBuffer) Read(p []byte) (int, error) {
	lb.Lock()
	defer lb.Unlock()
	return lb.buf.Read(p)
}

func (lb *LogBuffer) Write(p []byte) (int, error) {
	lb.Lock()
	defer lb.Unlock()
	return lb.buf.Write(p)
}

func (lb *LogBuffer) String() string {
	lb.Lock()
	defer lb.Unlock()
	return lb.buf.String()
}

// Reset discards the buffer's contents.
func (lb *LogBuffer) Reset() {
	lb.Lock()
	defer lb.Unlock()
	lb.buf.Reset()
}
