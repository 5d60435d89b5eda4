//
// (C) Copyright 2024 Intel Corporation.
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//

package scst

import (
	"path"
	"strconv"
)

// Lun maps a device to a logical unit number.
type Lun struct {
	ID       uint64
	Device   string
	ReadOnly bool
	// Attributes holds other attributes the kernel flags as set.
	Attributes Options
}

// lunTable is the set of LUN mappings under a luns directory. It is
// embedded by Target (the default mappings) and Group.
type lunTable struct {
	ctl   *control
	dir   string
	owner string
	luns  []*Lun
}

func newLunTable(c *control, parent, owner string) lunTable {
	return lunTable{
		ctl:   c,
		dir:   path.Join(parent, lunsDir),
		owner: owner,
	}
}

// Luns returns the LUN mappings found by the last refresh.
func (lt *lunTable) Luns() []*Lun {
	return lt.luns
}

// Lun returns the mapping for id from the last refresh.
func (lt *lunTable) Lun(id uint64) (*Lun, error) {
	for _, lun := range lt.luns {
		if lun.ID == id {
			return lun, nil
		}
	}
	return nil, errNotFound("lun %d not found in %s", id, lt.owner)
}

// RefreshLuns reloads the LUN mappings.
func (lt *lunTable) RefreshLuns() error {
	luns, err := collect(lt.ctl, lt.dir, isLunDir, func(name string) (*Lun, error) {
		return loadLun(lt.ctl, lt.dir, name)
	})
	if err != nil {
		return err
	}
	lt.luns = luns
	return nil
}

func (lt *lunTable) checkMapping(device string, id uint64, opts Options) error {
	if err := checkName("device", device); err != nil {
		return err
	}
	if err := checkLunID(id); err != nil {
		return err
	}
	if err := opts.Validate(); err != nil {
		return err
	}
	if err := lt.ctl.requireDir(lt.dir, lt.owner); err != nil {
		return err
	}
	if unknown := opts.unknownKeys(knownLunOptions); len(unknown) > 0 {
		lt.ctl.log.Debugf("passing unrecognized lun options %v to %s", unknown, lt.owner)
	}
	return nil
}

func (lt *lunTable) mgmtPath() string {
	return path.Join(lt.dir, mgmtNode)
}

// AddLun maps device at id. An id already in use is refused with
// AlreadyExists; use ReplaceLun to change an existing mapping.
func (lt *lunTable) AddLun(device string, id uint64, opts Options) (*Lun, error) {
	if err := lt.checkMapping(device, id, opts); err != nil {
		return nil, err
	}
	if lt.ctl.tree.Exists(path.Join(lt.dir, strconv.FormatUint(id, 10))) {
		return nil, errAlreadyExists("lun %d already exists in %s", id, lt.owner)
	}

	if err := lt.ctl.exec(lt.mgmtPath(), addLunCmd(false, device, id, opts)); err != nil {
		return nil, err
	}
	lt.ctl.log.Infof("mapped device %s as lun %d in %s", device, id, lt.owner)

	if err := lt.RefreshLuns(); err != nil {
		return nil, err
	}
	return lt.Lun(id)
}

// ReplaceLun maps device at id, replacing any existing mapping.
func (lt *lunTable) ReplaceLun(device string, id uint64, opts Options) (*Lun, error) {
	if err := lt.checkMapping(device, id, opts); err != nil {
		return nil, err
	}

	if err := lt.ctl.exec(lt.mgmtPath(), addLunCmd(true, device, id, opts)); err != nil {
		return nil, err
	}
	lt.ctl.log.Infof("replaced lun %d in %s with device %s", id, lt.owner, device)

	if err := lt.RefreshLuns(); err != nil {
		return nil, err
	}
	return lt.Lun(id)
}

// RemoveLun removes the mapping at id.
func (lt *lunTable) RemoveLun(id uint64) error {
	if err := checkLunID(id); err != nil {
		return err
	}
	if err := lt.ctl.requireDir(lt.dir, lt.owner); err != nil {
		return err
	}

	if err := lt.ctl.exec(lt.mgmtPath(), delLunCmd(id)); err != nil {
		return err
	}
	lt.ctl.log.Infof("removed lun %d from %s", id, lt.owner)

	return lt.RefreshLuns()
}

// ClearLuns removes every mapping.
func (lt *lunTable) ClearLuns() error {
	if err := lt.ctl.requireDir(lt.dir, lt.owner); err != nil {
		return err
	}

	if err := lt.ctl.exec(lt.mgmtPath(), clearCmd()); err != nil {
		return err
	}
	lt.ctl.log.Infof("cleared luns of %s", lt.owner)

	return lt.RefreshLuns()
}
