//
// (C) Copyright 2019-2024 Intel Corporation.
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//

package logging

import (
	"strings"
	"sync/atomic"

	"github.com/pkg/errors"
)

const (
	// LogLevelDisabled disables any logging output
	LogLevelDisabled LogLevel = iota
	// LogLevelError emits messages at ERROR or higher
	LogLevelError
	// LogLevelNotice emits messages at NOTICE or higher
	LogLevelNotice
	// LogLevelInfo emits messages at INFO or higher
	LogLevelInfo
	// LogLevelDebug emits messages at DEBUG or higher
	LogLevelDebug
	// LogLevelTrace emits every message
	LogLevelTrace
)

var levelNames = map[LogLevel]string{
	LogLevelDisabled: "DISABLED",
	LogLevelError:    "ERROR",
	LogLevelNotice:   "NOTICE",
	LogLevelInfo:     "INFO",
	LogLevelDebug:    "DEBUG",
	LogLevelTrace:    "TRACE",
}

// LogLevel represents the level at which the logger will emit log messages
type LogLevel int32

// Set safely sets the log level to the supplied level
func (ll *LogLevel) Set(newLevel LogLevel) {
	atomic.StoreInt32((*int32)(ll), int32(newLevel))
}

// Get returns the current log level
func (ll *LogLevel) Get() LogLevel {
	return LogLevel(atomic.LoadInt32((*int32)(ll)))
}

// SetString sets the log level from the supplied string.
func (ll *LogLevel) SetString(in string) error {
	for level, name := range levelNames {
		if strings.EqualFold(in, name) {
			ll.Set(level)
			return nil
		}
	}
	return errors.Errorf("%q is not a valid log level", in)
}

func (ll LogLevel) String() string {
	if name, found := levelNames[ll]; found {
		return name
	}
	return "UNKNOWN"
}
