//
// (C) Copyright 2024 Intel Corporation.
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//

package scst

import (
	"path"
)

// Driver is a target driver, such as iscsi, and the targets it owns.
type Driver struct {
	ctl     *control
	targets []*Target

	Name      string
	Enabled   bool
	OpenState string
	Version   string
	// Attributes holds driver-level dynamic attributes, such as
	// IncomingUser, which the kernel flags as set explicitly.
	Attributes Options
}

func (d *Driver) path() string {
	return driverPath(d.Name)
}

func (d *Driver) mgmtPath() string {
	return path.Join(d.path(), mgmtNode)
}

// Refresh reloads the driver's attributes and targets.
func (d *Driver) Refresh() error {
	if err := d.loadAttrs(); err != nil {
		return err
	}
	return d.RefreshTargets()
}

// RefreshTargets reloads the driver's targets.
func (d *Driver) RefreshTargets() error {
	targets, err := collect(d.ctl, d.path(), isDir, func(name string) (*Target, error) {
		return loadTarget(d.ctl, d.Name, name)
	})
	if err != nil {
		return err
	}
	d.targets = targets
	return nil
}

// Targets returns the targets found by the last refresh.
func (d *Driver) Targets() []*Target {
	return d.targets
}

// Target returns the named target from the last refresh.
func (d *Driver) Target(name string) (*Target, error) {
	for _, t := range d.targets {
		if t.Name == name {
			return t, nil
		}
	}
	return nil, errNotFound("target %q not found", name)
}

func (d *Driver) setEnabled(enable bool) error {
	if err := d.ctl.exec(path.Join(d.path(), attrEnabled), enableCmd(enable)); err != nil {
		return err
	}
	return d.loadAttrs()
}

// Enable enables the driver. Enabling an enabled driver succeeds.
func (d *Driver) Enable() error {
	return d.setEnabled(true)
}

// Disable disables the driver. Disabling a disabled driver succeeds.
func (d *Driver) Disable() error {
	return d.setEnabled(false)
}

func (d *Driver) attribute(add bool, attr, value string) error {
	if err := checkOptionKey(attr); err != nil {
		return err
	}
	if err := checkAttrValue(attr, value); err != nil {
		return err
	}
	if err := d.ctl.exec(d.mgmtPath(), driverAttrCmd(add, attr, value)); err != nil {
		return err
	}
	return d.loadAttrs()
}

// AddAttribute adds a driver-level dynamic attribute, e.g.
// IncomingUser "user secret".
func (d *Driver) AddAttribute(attr, value string) error {
	return d.attribute(true, attr, value)
}

// RemoveAttribute removes a driver-level dynamic attribute.
func (d *Driver) RemoveAttribute(attr, value string) error {
	return d.attribute(false, attr, value)
}

// AddTarget creates a target. New targets start disabled.
func (d *Driver) AddTarget(name string, opts Options) (*Target, error) {
	if err := checkIQN("target", name); err != nil {
		return nil, err
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if err := d.ctl.requireDir(d.path(), "target driver "+d.Name); err != nil {
		return nil, err
	}
	if d.ctl.tree.Exists(targetPath(d.Name, name)) {
		return nil, errAlreadyExists("target %q already exists", name)
	}
	if unknown := opts.unknownKeys(knownTargetOptions); len(unknown) > 0 {
		d.ctl.log.Debugf("passing unrecognized target options %v to driver %s", unknown, d.Name)
	}

	if err := d.ctl.exec(d.mgmtPath(), addTargetCmd(name, opts)); err != nil {
		return nil, err
	}
	d.ctl.log.Infof("added target %s", name)

	if err := d.RefreshTargets(); err != nil {
		return nil, err
	}
	return d.Target(name)
}

func (d *Driver) targetEnabled(name string) (bool, error) {
	dir := targetPath(d.Name, name)
	if err := d.ctl.requireDir(dir, "target "+name); err != nil {
		return false, err
	}
	return d.ctl.optBool(dir, attrEnabled)
}

// RemoveTarget removes a disabled target. An enabled target is refused
// with Busy; use ForceRemoveTarget to disable and remove in one call.
func (d *Driver) RemoveTarget(name string) error {
	if err := checkIQN("target", name); err != nil {
		return err
	}

	enabled, err := d.targetEnabled(name)
	if err != nil {
		return err
	}
	if enabled {
		return &Error{
			Kind:    KindBusy,
			Path:    targetPath(d.Name, name),
			Message: "target is enabled; disable it before removal",
		}
	}

	return d.removeTarget(name)
}

// ForceRemoveTarget disables the target if needed and removes it.
func (d *Driver) ForceRemoveTarget(name string) error {
	if err := checkIQN("target", name); err != nil {
		return err
	}

	enabled, err := d.targetEnabled(name)
	if err != nil {
		return err
	}
	if enabled {
		d.ctl.log.Debugf("disabling target %s before removal", name)
		if err := d.ctl.exec(path.Join(targetPath(d.Name, name), attrEnabled), enableCmd(false)); err != nil {
			return err
		}
	}

	return d.removeTarget(name)
}

func (d *Driver) removeTarget(name string) error {
	if err := d.ctl.exec(d.mgmtPath(), delTargetCmd(name)); err != nil {
		return err
	}
	d.ctl.log.Infof("removed target %s", name)

	return d.RefreshTargets()
}
