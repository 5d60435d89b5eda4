//
// (C) Copyright 2024 Intel Corporation.
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//

package scst

import (
	"strings"
	"unicode"
)

const (
	// maxLunID is one past the highest LUN number the kernel accepts.
	maxLunID = 16384
	// maxNameLen bounds entity names; sysfs names are limited to a page.
	maxNameLen = 255
)

// Known option keys, per entity type. Anything else is passed through
// verbatim and only noted in the debug log.
var (
	knownDeviceOptions = []string{
		"active", "bind_alua_state", "blocksize", "cluster_mode",
		"dif_filename", "dif_mode", "dif_static_app_tag", "dif_type",
		"filename", "numa_node_id", "nv_cache", "read_only", "removable",
		"rotational", "thin_provisioned", "tst", "write_through",
	}
	knownTargetOptions = []string{"IncomingUser", "OutgoingUser", "allowed_portal"}
	knownLunOptions    = []string{"read_only"}
)

var iqnPrefixes = []string{"iqn.", "eui.", "naa."}

func hasSpaceOrControl(s string) bool {
	return strings.IndexFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsControl(r)
	}) >= 0
}

func hasControl(s string) bool {
	return strings.IndexFunc(s, unicode.IsControl) >= 0
}

// checkName validates the name of a device, group or other entity which
// becomes a directory in the tree.
func checkName(what, name string) error {
	switch {
	case name == "":
		return errInvalid("%s name must not be empty", what)
	case len(name) > maxNameLen:
		return errInvalid("%s name %q is longer than %d characters", what, name, maxNameLen)
	case name == "." || name == "..":
		return errInvalid("%s name %q is reserved", what, name)
	case hasSpaceOrControl(name):
		return errInvalid("%s name %q contains whitespace or control characters", what, name)
	case strings.ContainsAny(name, "/;="):
		return errInvalid("%s name %q contains one of '/', ';' or '='", what, name)
	}
	return nil
}

// checkIQN validates a target name. IQN, EUI and NAA forms are accepted.
func checkIQN(what, name string) error {
	if err := checkName(what, name); err != nil {
		return err
	}
	lower := strings.ToLower(name)
	for _, prefix := range iqnPrefixes {
		if strings.HasPrefix(lower, prefix) && len(lower) > len(prefix) {
			return nil
		}
	}
	return errInvalid("%s %q is not an iqn., eui. or naa. name", what, name)
}

func isWildcard(name string) bool {
	return strings.ContainsAny(name, "*?[")
}

// checkInitiator accepts an IQN-like name or a wildcard pattern.
func checkInitiator(name string) error {
	if err := checkName("initiator", name); err != nil {
		return err
	}
	if isWildcard(name) {
		return nil
	}
	return checkIQN("initiator", name)
}

func checkLunID(id uint64) error {
	if id >= maxLunID {
		return errInvalid("lun %d is out of range (max %d)", id, maxLunID-1)
	}
	return nil
}

func checkOptionKey(key string) error {
	switch {
	case key == "":
		return errInvalid("option key must not be empty")
	case hasSpaceOrControl(key):
		return errInvalid("option key %q contains whitespace or control characters", key)
	case strings.ContainsAny(key, optionSep+optionAssig):
		return errInvalid("option key %q contains ';' or '='", key)
	}
	return nil
}

func checkOptionValue(key, value string) error {
	switch {
	case hasSpaceOrControl(value):
		return errInvalid("option %s value %q contains whitespace or control characters", key, value)
	case strings.Contains(value, optionSep):
		return errInvalid("option %s value %q contains ';'", key, value)
	}
	return nil
}

// checkAttrValue validates a dynamic attribute value. Unlike option
// values these may hold single spaces, as in "user secret".
func checkAttrValue(attr, value string) error {
	switch {
	case strings.TrimSpace(value) == "":
		return errInvalid("attribute %s value must not be empty", attr)
	case hasControl(value):
		return errInvalid("attribute %s value contains control characters", attr)
	}
	return nil
}

// checkFilename validates the backing path of a device.
func checkFilename(filename string) error {
	switch {
	case filename == "":
		return errInvalid("device filename must not be empty")
	case hasSpaceOrControl(filename):
		return errInvalid("device filename %q contains whitespace or control characters", filename)
	case strings.Contains(filename, optionSep):
		return errInvalid("device filename %q contains ';'", filename)
	}
	return nil
}
