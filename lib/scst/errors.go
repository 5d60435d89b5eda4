//
// (C) Copyright 2024 Intel Corporation.
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//

package scst

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Kind classifies a control tree failure.
type Kind int

const (
	KindUnknown Kind = iota
	// KindNotFound means the entity was absent from the tree when accessed.
	KindNotFound
	// KindAlreadyExists means a create collided with an existing name.
	KindAlreadyExists
	// KindInvalidArgument means a name, value or option was malformed.
	KindInvalidArgument
	// KindBusy means the kernel refused because the resource is in use.
	KindBusy
	// KindPermissionDenied means the caller may not access the node.
	KindPermissionDenied
	// KindKernelRejected carries kernel diagnostics with no better class.
	KindKernelRejected
	// KindParseError means node contents did not have the expected shape.
	KindParseError
	// KindIOError means the node could not be read or written.
	KindIOError
)

var kindNames = map[Kind]string{
	KindUnknown:          "unknown",
	KindNotFound:         "not found",
	KindAlreadyExists:    "already exists",
	KindInvalidArgument:  "invalid argument",
	KindBusy:             "busy",
	KindPermissionDenied: "permission denied",
	KindKernelRejected:   "kernel rejected",
	KindParseError:       "parse error",
	KindIOError:          "i/o error",
}

func (k Kind) String() string {
	if name, found := kindNames[k]; found {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error is returned by every operation that touches the control tree.
// Message holds kernel diagnostic text verbatim when there is any.
type Error struct {
	Kind    Kind
	Command string
	Path    string
	Message string
	Err     error
}

// Sentinel errors for use with errors.Is. Matching is by Kind only.
var (
	ErrNotFound         = &Error{Kind: KindNotFound}
	ErrAlreadyExists    = &Error{Kind: KindAlreadyExists}
	ErrInvalidArgument  = &Error{Kind: KindInvalidArgument}
	ErrBusy             = &Error{Kind: KindBusy}
	ErrPermissionDenied = &Error{Kind: KindPermissionDenied}
	ErrKernelRejected   = &Error{Kind: KindKernelRejected}
	ErrParse            = &Error{Kind: KindParseError}
	ErrIO               = &Error{Kind: KindIOError}
)

func (e *Error) Error() string {
	var b strings.Builder

	b.WriteString(e.Kind.String())
	if e.Command != "" {
		fmt.Fprintf(&b, ": %q", e.Command)
	}
	if e.Path != "" {
		fmt.Fprintf(&b, " on %s", e.Path)
	}
	if e.Message != "" {
		fmt.Fprintf(&b, ": %s", e.Message)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %s", e.Err)
	}

	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the Kind of the first *Error in err's chain, or
// KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsNotFound returns true if err is a KindNotFound error.
func IsNotFound(err error) bool {
	return KindOf(err) == KindNotFound
}

func newError(kind Kind, format string, args ...interface{}) *Error {
	return &Error{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
	}
}

func errNotFound(format string, args ...interface{}) *Error {
	return newError(KindNotFound, format, args...)
}

func errAlreadyExists(format string, args ...interface{}) *Error {
	return newError(KindAlreadyExists, format, args...)
}

func errInvalid(format string, args ...interface{}) *Error {
	return newError(KindInvalidArgument, format, args...)
}

func errParse(path string, format string, args ...interface{}) *Error {
	e := newError(KindParseError, format, args...)
	e.Path = path
	return e
}
