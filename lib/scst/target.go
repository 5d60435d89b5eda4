//
// (C) Copyright 2024 Intel Corporation.
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//

package scst

import (
	"fmt"
	"path"
	"strconv"
)

// Target is an iSCSI endpoint. It owns default LUN mappings, which
// apply to initiators that match no group, and its initiator groups.
//
// A target is created disabled. Enable and Disable may be repeated;
// the kernel treats a request for the current state as success.
type Target struct {
	lunTable
	ctl    *control
	groups []*Group

	Driver   string
	Name     string
	TID      uint64
	RelTgtID uint64
	Enabled  bool
	// Attributes holds dynamic attributes such as allowed_portal which
	// the kernel flags as set explicitly.
	Attributes Options
}

func newTarget(c *control, driver, name string) *Target {
	return &Target{
		lunTable: newLunTable(c, targetPath(driver, name), fmt.Sprintf("target %s", name)),
		ctl:      c,
		Driver:   driver,
		Name:     name,
	}
}

func (t *Target) path() string {
	return targetPath(t.Driver, t.Name)
}

func (t *Target) require() error {
	return t.ctl.requireDir(t.path(), "target "+t.Name)
}

// Refresh reloads the target's attributes, LUNs and groups.
func (t *Target) Refresh() error {
	if err := t.require(); err != nil {
		return err
	}
	if err := t.loadAttrs(); err != nil {
		return err
	}
	if err := t.RefreshLuns(); err != nil {
		return err
	}
	return t.RefreshGroups()
}

func (t *Target) setEnabled(enable bool) error {
	if err := t.require(); err != nil {
		return err
	}
	if err := t.ctl.exec(path.Join(t.path(), attrEnabled), enableCmd(enable)); err != nil {
		return err
	}
	t.ctl.log.Infof("target %s enabled=%t", t.Name, enable)

	return t.loadAttrs()
}

// Enable enables the target.
func (t *Target) Enable() error {
	return t.setEnabled(true)
}

// Disable disables the target.
func (t *Target) Disable() error {
	return t.setEnabled(false)
}

// SetRelTgtID sets the target's relative target id. The kernel refuses
// this while the target is enabled.
func (t *Target) SetRelTgtID(id uint64) error {
	if err := t.require(); err != nil {
		return err
	}
	cmd := setAttrCmd(strconv.FormatUint(id, 10), false)
	if err := t.ctl.exec(path.Join(t.path(), attrRelTgtID), cmd); err != nil {
		return err
	}
	return t.loadAttrs()
}

func (t *Target) attribute(add bool, attr, value string) error {
	if err := checkOptionKey(attr); err != nil {
		return err
	}
	if err := checkAttrValue(attr, value); err != nil {
		return err
	}
	if err := t.require(); err != nil {
		return err
	}

	mgmt := path.Join(driverPath(t.Driver), mgmtNode)
	if err := t.ctl.exec(mgmt, targetAttrCmd(add, t.Name, attr, value)); err != nil {
		return err
	}
	return t.loadAttrs()
}

// AddAttribute adds a dynamic target attribute, e.g. allowed_portal.
func (t *Target) AddAttribute(attr, value string) error {
	return t.attribute(true, attr, value)
}

// RemoveAttribute removes a dynamic target attribute.
func (t *Target) RemoveAttribute(attr, value string) error {
	return t.attribute(false, attr, value)
}

func (t *Target) groupsPath() string {
	return path.Join(t.path(), groupsDir)
}

// RefreshGroups reloads the target's initiator groups.
func (t *Target) RefreshGroups() error {
	groups, err := collect(t.ctl, t.groupsPath(), isDir, func(name string) (*Group, error) {
		return loadGroup(t.ctl, t.Driver, t.Name, name)
	})
	if err != nil {
		return err
	}
	t.groups = groups
	return nil
}

// Groups returns the initiator groups found by the last refresh.
func (t *Target) Groups() []*Group {
	return t.groups
}

// Group returns the named group from the last refresh.
func (t *Target) Group(name string) (*Group, error) {
	for _, g := range t.groups {
		if g.Name == name {
			return g, nil
		}
	}
	return nil, errNotFound("group %q not found in target %s", name, t.Name)
}

// CreateGroup creates an initiator group.
func (t *Target) CreateGroup(name string) (*Group, error) {
	if err := checkName("group", name); err != nil {
		return nil, err
	}
	if err := t.require(); err != nil {
		return nil, err
	}
	if t.ctl.tree.Exists(groupPath(t.Driver, t.Name, name)) {
		return nil, errAlreadyExists("group %q already exists in target %s", name, t.Name)
	}

	if err := t.ctl.exec(path.Join(t.groupsPath(), mgmtNode), createGroupCmd(name)); err != nil {
		return nil, err
	}
	t.ctl.log.Infof("created group %s in target %s", name, t.Name)

	if err := t.RefreshGroups(); err != nil {
		return nil, err
	}
	return t.Group(name)
}

// RemoveGroup removes an initiator group along with its mappings.
func (t *Target) RemoveGroup(name string) error {
	if err := checkName("group", name); err != nil {
		return err
	}
	if err := t.require(); err != nil {
		return err
	}

	if err := t.ctl.exec(path.Join(t.groupsPath(), mgmtNode), delGroupCmd(name)); err != nil {
		return err
	}
	t.ctl.log.Infof("removed group %s from target %s", name, t.Name)

	return t.RefreshGroups()
}

// Sessions returns the sessions currently connected to the target. A
// target with no sessions yields an empty slice.
func (t *Target) Sessions() ([]*Session, error) {
	if err := t.require(); err != nil {
		return nil, err
	}

	dir := path.Join(t.path(), sessionsDir)
	if !t.ctl.tree.Exists(dir) {
		return []*Session{}, nil
	}

	return collect(t.ctl, dir, isDir, func(name string) (*Session, error) {
		return loadSession(t.ctl, dir, name)
	})
}

// IOStat returns the target's I/O counters. When the kernel exposes no
// per-target counters the sum over the current sessions is returned.
func (t *Target) IOStat() (*IOStat, error) {
	block, err := readStatBlock(t.ctl, t.path(), ioStatKeys)
	if err != nil {
		return nil, err
	}
	if block.Values.Len() > 0 {
		return block.IOStat()
	}

	sessions, err := t.Sessions()
	if err != nil {
		return nil, err
	}
	total := new(IOStat)
	for _, s := range sessions {
		stat, err := s.IOStat()
		if err != nil {
			if IsNotFound(err) {
				continue
			}
			return nil, err
		}
		total.Add(stat)
	}
	return total, nil
}
