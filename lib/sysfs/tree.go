//
// (C) Copyright 2021-2024 Intel Corporation.
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//

// Package sysfs provides primitive access to kernel control trees
// exposed as pseudo-filesystems.
package sysfs

import (
	"os"
	"path"
)

type (
	// Tree is the set of primitive operations performed against a
	// control tree. Paths are slash-separated and relative to the
	// tree's root. Implementations perform no retries.
	Tree interface {
		// Read returns the full text of an attribute node.
		Read(path string) (string, error)
		// Write writes text to a node in a single call.
		Write(path, text string) error
		// List returns the children of a directory in enumeration
		// order.
		List(path string) ([]Entry, error)
		// Readlink returns the target of a link node.
		Readlink(path string) (string, error)
		// Exists returns true if the node exists.
		Exists(path string) bool
	}

	// Entry describes a child node returned by List.
	Entry struct {
		Name string
		Mode os.FileMode
		// Dir is true if the node is a directory, or a link which
		// resolves to one.
		Dir bool
	}
)

// IsLink returns true if the entry is a symbolic link.
func (e Entry) IsLink() bool {
	return e.Mode&os.ModeSymlink != 0
}

// Join joins path elements into a tree path.
func Join(elem ...string) string {
	return path.Join(elem...)
}
