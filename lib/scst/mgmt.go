//
// (C) Copyright 2024 Intel Corporation.
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//

package scst

import (
	"io/fs"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// Phrases seen in kernel diagnostics, lower-cased. Order matters: the
// first group that matches wins.
var diagnosticPhrases = []struct {
	kind    Kind
	already bool
	phrases []string
}{
	{already: true, phrases: []string{"already enabled", "already disabled"}},
	{kind: KindNotFound, phrases: []string{"not found", "no such", "does not exist", "doesn't exist", "not exist"}},
	{kind: KindAlreadyExists, phrases: []string{"already exist", "exists"}},
	{kind: KindBusy, phrases: []string{"busy", "in use", "is used"}},
	{kind: KindPermissionDenied, phrases: []string{"permission", "not permitted", "access denied"}},
	{kind: KindInvalidArgument, phrases: []string{"invalid", "unknown", "wrong", "bad ", "malformed", "out of range", "too long"}},
}

// classifyErrno maps a kernel errno onto a Kind. already is set for
// errnos meaning the requested state is already in effect.
func classifyErrno(errno unix.Errno) (kind Kind, already bool) {
	switch errno {
	case unix.EALREADY:
		return KindKernelRejected, true
	case unix.ENOENT, unix.ENODEV, unix.ENXIO:
		return KindNotFound, false
	case unix.EEXIST:
		return KindAlreadyExists, false
	case unix.EINVAL, unix.ERANGE, unix.E2BIG, unix.ENAMETOOLONG:
		return KindInvalidArgument, false
	case unix.EBUSY, unix.EAGAIN:
		return KindBusy, false
	case unix.EPERM, unix.EACCES, unix.EROFS:
		return KindPermissionDenied, false
	}
	return KindKernelRejected, false
}

// classifyDiagnostic maps the text of the diagnostic node onto a Kind.
// The text is either a (usually negative) errno or a free-form message.
func classifyDiagnostic(msg string) (kind Kind, already bool, errno unix.Errno) {
	if n, err := strconv.Atoi(msg); err == nil {
		if n < 0 {
			n = -n
		}
		errno = unix.Errno(n)
		kind, already = classifyErrno(errno)
		return
	}

	lower := strings.ToLower(msg)
	for _, group := range diagnosticPhrases {
		for _, phrase := range group.phrases {
			if strings.Contains(lower, phrase) {
				if group.already {
					return KindKernelRejected, true, 0
				}
				return group.kind, false, 0
			}
		}
	}
	return KindKernelRejected, false, 0
}

// decodeResult interprets the contents of the diagnostic node after
// cmd was written to node. Empty text or "0" is success.
func decodeResult(node string, cmd Command, raw string) error {
	msg := strings.TrimSpace(raw)
	if msg == "" || msg == "0" {
		return nil
	}

	kind, already, errno := classifyDiagnostic(msg)
	if already && cmd.Idempotent {
		return nil
	}

	e := &Error{
		Kind:    kind,
		Command: cmd.String(),
		Path:    node,
		Message: msg,
	}
	if errno != 0 {
		e.Err = errno
	}
	return e
}

// decodeWriteError classifies a failed write of cmd to node. A nil
// return means the failure reported an already-applied state change.
func decodeWriteError(node string, cmd Command, err error) error {
	e := &Error{
		Kind:    KindIOError,
		Command: cmd.String(),
		Path:    node,
		Err:     err,
	}

	var errno unix.Errno
	switch {
	case errors.As(err, &errno):
		kind, already := classifyErrno(errno)
		if already && cmd.Idempotent {
			return nil
		}
		e.Kind = kind
	case errors.Is(err, fs.ErrNotExist):
		e.Kind = KindNotFound
	case errors.Is(err, fs.ErrPermission):
		e.Kind = KindPermissionDenied
	}

	return e
}

// decodeReadError classifies a failed read, list or readlink of path.
func decodeReadError(path string, err error) error {
	e := &Error{
		Kind: KindIOError,
		Path: path,
		Err:  err,
	}

	switch {
	case errors.Is(err, fs.ErrNotExist):
		e.Kind = KindNotFound
	case errors.Is(err, fs.ErrPermission):
		e.Kind = KindPermissionDenied
	}

	return e
}

// exec writes cmd to node and then checks the diagnostic node. The
// write and the check together make up the kernel's acknowledgement.
func (c *control) exec(node string, cmd Command) error {
	text := cmd.String()
	c.log.Debugf("echo %q > %s", text, node)

	if err := c.tree.Write(node, text+"\n"); err != nil {
		if derr := decodeWriteError(node, cmd, err); derr != nil {
			c.log.Debugf("exec %q on %s failed: %s", text, node, derr)
			return derr
		}
		c.log.Debugf("exec %q on %s: already applied", text, node)
		return nil
	}

	return c.checkResult(node, cmd)
}

func (c *control) checkResult(node string, cmd Command) error {
	raw, err := c.tree.Read(diagnosticNode)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return &Error{
			Kind:    KindIOError,
			Command: cmd.String(),
			Path:    diagnosticNode,
			Err:     err,
		}
	}

	if err := decodeResult(node, cmd, raw); err != nil {
		c.log.Debugf("exec %q on %s rejected: %s", cmd, node, err)
		return err
	}
	return nil
}
