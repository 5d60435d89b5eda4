//
// (C) Copyright 2024 Intel Corporation.
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//

package scst

import (
	"path"
	"strconv"
	"strings"

	"github.com/vine-io/scst/lib/sysfs"
	"github.com/vine-io/scst/logging"
)

// control is shared by every handle attached to the same tree. Handles
// locate themselves by name through it and never point at each other.
type control struct {
	log  logging.Logger
	tree sysfs.Tree
}

// attr is the decoded contents of an attribute node: the value on the
// first line and whether the kernel flagged it with a "[key]" line,
// meaning it differs from the default.
type attr struct {
	Value string
	Key   bool
}

func parseAttr(raw string) attr {
	lines := strings.Split(raw, "\n")

	a := attr{Value: strings.TrimSpace(lines[0])}
	for _, line := range lines[1:] {
		if strings.TrimSpace(line) == keyMarker {
			a.Key = true
			break
		}
	}
	return a
}

func (c *control) readAttr(p string) (attr, error) {
	raw, err := c.tree.Read(p)
	if err != nil {
		return attr{}, decodeReadError(p, err)
	}
	return parseAttr(raw), nil
}

// optAttr reads dir/name. A missing node is not an error as long as
// dir itself still exists; if dir is gone the NotFound is returned so
// that callers can tell a vanished entity from a missing attribute.
func (c *control) optAttr(dir, name string) (attr, error) {
	a, err := c.readAttr(path.Join(dir, name))
	if IsNotFound(err) && c.tree.Exists(dir) {
		return attr{}, nil
	}
	return a, err
}

func (c *control) optString(dir, name string) (string, error) {
	a, err := c.optAttr(dir, name)
	return a.Value, err
}

func (c *control) optUint(dir, name string) (uint64, error) {
	a, err := c.optAttr(dir, name)
	if err != nil || a.Value == "" {
		return 0, err
	}
	return parseUint(path.Join(dir, name), name, a.Value)
}

func (c *control) optBool(dir, name string) (bool, error) {
	a, err := c.optAttr(dir, name)
	if err != nil || a.Value == "" {
		return false, err
	}
	return parseBool(path.Join(dir, name), name, a.Value)
}

func parseUint(p, key, value string) (uint64, error) {
	n, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0, errParse(p, "%s: %q is not an unsigned integer", key, value)
	}
	return n, nil
}

func parseBool(p, key, value string) (bool, error) {
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, errParse(p, "%s: %q is not a boolean", key, value)
	}
	return b, nil
}

func (c *control) list(dir string) ([]sysfs.Entry, error) {
	entries, err := c.tree.List(dir)
	if err != nil {
		return nil, decodeReadError(dir, err)
	}
	return entries, nil
}

// linkName returns the last element of the link target at p.
func (c *control) linkName(p string) (string, error) {
	target, err := c.tree.Readlink(p)
	if err != nil {
		return "", decodeReadError(p, err)
	}
	return path.Base(target), nil
}

func (c *control) optLinkName(dir, name string) (string, error) {
	target, err := c.linkName(path.Join(dir, name))
	if IsNotFound(err) && c.tree.Exists(dir) {
		return "", nil
	}
	return target, err
}

// keyedAttrs returns every readable attribute in dir which the kernel
// flags as non-default, in enumeration order.
func (c *control) keyedAttrs(dir string, skip ...string) (Options, error) {
	var opts Options

	entries, err := c.list(dir)
	if err != nil {
		return opts, err
	}

	for _, entry := range entries {
		if entry.Dir || entry.IsLink() || entry.Name == mgmtNode || contains(skip, entry.Name) {
			continue
		}
		a, err := c.readAttr(path.Join(dir, entry.Name))
		switch {
		case err == nil:
		case IsNotFound(err) && c.tree.Exists(dir):
			continue
		case KindOf(err) == KindPermissionDenied || KindOf(err) == KindIOError:
			// write-only nodes such as resync_size
			c.log.Tracef("skipping unreadable attribute %s/%s: %s", dir, entry.Name, err)
			continue
		default:
			return opts, err
		}
		if a.Key {
			opts.Set(entry.Name, a.Value)
		}
	}

	return opts, nil
}

// requireDir returns a NotFound error describing what if p is absent.
func (c *control) requireDir(p, what string) error {
	if !c.tree.Exists(p) {
		return errNotFound("%s not found", what)
	}
	return nil
}
