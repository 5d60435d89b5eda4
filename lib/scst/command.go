//
// (C) Copyright 2024 Intel Corporation.
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//

package scst

import (
	"strconv"
	"strings"
)

// Management verbs understood by the kernel's mgmt nodes.
const (
	verbAddDevice     = "add_device"
	verbDelDevice     = "del_device"
	verbAddTarget     = "add_target"
	verbDelTarget     = "del_target"
	verbAddTargetAttr = "add_target_attribute"
	verbDelTargetAttr = "del_target_attribute"
	verbAddAttr       = "add_attribute"
	verbDelAttr       = "del_attribute"
	verbCreate        = "create"
	verbAdd           = "add"
	verbReplace       = "replace"
	verbDel           = "del"
	verbMove          = "move"
	verbClear         = "clear"

	optionFilename = "filename"
)

// Control tree layout.
const (
	defaultScstRoot = "/sys/kernel/scst_tgt"
	legacyScstRoot  = "/sys/devices/scst"

	diagnosticNode = "last_sysfs_mgmt_res"
	mgmtNode       = "mgmt"
	keyMarker      = "[key]"

	handlersDir   = "handlers"
	devicesDir    = "devices"
	targetsDir    = "targets"
	lunsDir       = "luns"
	groupsDir     = "ini_groups"
	initiatorsDir = "initiators"
	sessionsDir   = "sessions"

	iscsiDriverName = "iscsi"

	attrEnabled       = "enabled"
	attrVersion       = "version"
	attrOpenState     = "open_state"
	attrTID           = "tid"
	attrRelTgtID      = "rel_tgt_id"
	attrHandlerType   = "type"
	attrReadOnly      = "read_only"
	attrFilename      = "filename"
	attrSize          = "size"
	attrBlockSize     = "blocksize"
	attrActive        = "active"
	attrSID           = "sid"
	attrThreadPID     = "thread_pid"
	attrInitiatorName = "initiator_name"
	attrCID           = "cid"
	attrIP            = "ip"
	attrState         = "state"
	attrTargetIP      = "target_ip"
	linkLunDevice     = "device"
	linkHandler       = "handler"

	valueEnabled  = "1"
	valueDisabled = "0"
)

// Command is a single line written to a mgmt node: a verb, its
// positional arguments and an optional parameter set.
type Command struct {
	Verb    string
	Args    []string
	Options Options
	// Idempotent commands treat an "already in that state" response
	// from the kernel as success.
	Idempotent bool
}

func (c Command) String() string {
	parts := make([]string, 0, len(c.Args)+2)
	parts = append(parts, c.Verb)
	parts = append(parts, c.Args...)
	if c.Options.Len() > 0 {
		parts = append(parts, c.Options.String())
	}
	return strings.Join(parts, " ")
}

func addDeviceCmd(name, filename string, opts Options) Command {
	return Command{
		Verb:    verbAddDevice,
		Args:    []string{name},
		Options: NewOptions(optionFilename, filename).Merge(opts),
	}
}

func delDeviceCmd(name string) Command {
	return Command{Verb: verbDelDevice, Args: []string{name}}
}

func addTargetCmd(name string, opts Options) Command {
	return Command{Verb: verbAddTarget, Args: []string{name}, Options: opts}
}

func delTargetCmd(name string) Command {
	return Command{Verb: verbDelTarget, Args: []string{name}}
}

func targetAttrCmd(add bool, target, attr, value string) Command {
	verb := verbDelTargetAttr
	if add {
		verb = verbAddTargetAttr
	}
	return Command{Verb: verb, Args: []string{target, attr, value}}
}

func driverAttrCmd(add bool, attr, value string) Command {
	verb := verbDelAttr
	if add {
		verb = verbAddAttr
	}
	return Command{Verb: verb, Args: []string{attr, value}}
}

func createGroupCmd(name string) Command {
	return Command{Verb: verbCreate, Args: []string{name}}
}

func delGroupCmd(name string) Command {
	return Command{Verb: verbDel, Args: []string{name}}
}

func addLunCmd(replace bool, device string, id uint64, opts Options) Command {
	verb := verbAdd
	if replace {
		verb = verbReplace
	}
	return Command{
		Verb:    verb,
		Args:    []string{device, strconv.FormatUint(id, 10)},
		Options: opts,
	}
}

func delLunCmd(id uint64) Command {
	return Command{Verb: verbDel, Args: []string{strconv.FormatUint(id, 10)}}
}

func clearCmd() Command {
	return Command{Verb: verbClear}
}

func addInitiatorCmd(name string) Command {
	return Command{Verb: verbAdd, Args: []string{name}}
}

func delInitiatorCmd(name string) Command {
	return Command{Verb: verbDel, Args: []string{name}}
}

func moveInitiatorCmd(name, group string) Command {
	return Command{Verb: verbMove, Args: []string{name, group}}
}

// setAttrCmd is a bare value written to an attribute node.
func setAttrCmd(value string, idempotent bool) Command {
	return Command{Verb: value, Idempotent: idempotent}
}

func enableCmd(enable bool) Command {
	if enable {
		return setAttrCmd(valueEnabled, true)
	}
	return setAttrCmd(valueDisabled, true)
}
