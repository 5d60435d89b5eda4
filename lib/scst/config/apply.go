//
// (C) Copyright 2024 Intel Corporation.
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//

package config

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/vine-io/scst/lib/scst"
	"github.com/vine-io/scst/logging"
)

// lunMapper is implemented by targets and groups.
type lunMapper interface {
	Lun(id uint64) (*scst.Lun, error)
	AddLun(device string, id uint64, opts scst.Options) (*scst.Lun, error)
	ReplaceLun(device string, id uint64, opts scst.Options) (*scst.Lun, error)
}

// applier carries the state of a single Apply call.
type applier struct {
	log     logging.Logger
	scst    *scst.Scst
	cfg     *Config
	devices map[string]struct{}
}

// Apply brings the live tree in line with cfg. Missing devices, targets,
// groups, LUNs, initiators and attributes are created and enabled
// states follow the configuration. Nothing absent from cfg is removed.
// When a snapshot of the tree already hashes equal to cfg nothing is
// written.
func Apply(log logging.Logger, s *scst.Scst, cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	live, err := Snapshot(s)
	if err != nil {
		return err
	}
	want, err := cfg.Hash()
	if err != nil {
		return errors.Wrap(err, "hashing configuration")
	}
	have, err := live.Hash()
	if err != nil {
		return errors.Wrap(err, "hashing live configuration")
	}
	if want == have {
		log.Debugf("control tree already matches configuration (hash %x)", want)
		return nil
	}

	a := &applier{
		log:     log,
		scst:    s,
		cfg:     cfg,
		devices: make(map[string]struct{}),
	}
	if err := a.handlers(); err != nil {
		return err
	}
	for _, name := range sortedKeys(cfg.Drivers) {
		if err := a.driver(name, cfg.Drivers[name]); err != nil {
			return err
		}
	}

	return nil
}

func (a *applier) handlers() error {
	for _, name := range sortedKeys(a.cfg.Handlers) {
		h, err := a.scst.Handler(name)
		if err != nil {
			if scst.IsNotFound(err) {
				return FaultConfigUnknownHandler(name)
			}
			return err
		}

		handler := a.cfg.Handlers[name]
		if handler == nil {
			continue
		}
		for _, devName := range sortedKeys(handler.Devices) {
			dev := handler.Devices[devName]
			if dev == nil {
				continue
			}
			if err := a.device(h, devName, dev); err != nil {
				return err
			}
			a.devices[devName] = struct{}{}
		}
	}
	return nil
}

func (a *applier) device(h *scst.Handler, name string, dev *Device) error {
	if cur, err := h.Device(name); err == nil {
		if cur.Filename != dev.Filename {
			a.log.Noticef("device %s/%s is backed by %s, not %s; leaving it unchanged",
				h.Name, name, cur.Filename, dev.Filename)
		}
		return nil
	}

	if _, err := h.AddDevice(name, dev.Filename, toOptions(dev.Options)); err != nil {
		return errors.Wrapf(err, "adding device %s/%s", h.Name, name)
	}
	return nil
}

func (a *applier) knownDevice(name string) bool {
	if _, found := a.devices[name]; found {
		return true
	}
	_, err := a.scst.FindDevice(name)
	return err == nil
}

func (a *applier) driver(name string, drv *Driver) error {
	if drv == nil {
		return nil
	}
	d, err := a.scst.ISCSI()
	if err != nil {
		return err
	}

	for _, attr := range sortedKeys(drv.Attributes) {
		if val, found := d.Attributes.Get(attr); found && val == drv.Attributes[attr] {
			continue
		}
		if err := d.AddAttribute(attr, drv.Attributes[attr]); err != nil {
			return errors.Wrapf(err, "adding %s attribute %s", name, attr)
		}
	}

	for _, tgtName := range sortedKeys(drv.Targets) {
		if err := a.target(d, tgtName, drv.Targets[tgtName]); err != nil {
			return err
		}
	}

	if drv.Enabled != d.Enabled {
		if drv.Enabled {
			err = d.Enable()
		} else {
			err = d.Disable()
		}
		if err != nil {
			return errors.Wrapf(err, "setting %s enabled=%t", name, drv.Enabled)
		}
	}
	return nil
}

func (a *applier) target(d *scst.Driver, name string, tgt *Target) error {
	if tgt == nil {
		tgt = &Target{}
	}

	t, err := d.Target(name)
	if scst.IsNotFound(err) {
		t, err = d.AddTarget(name, toOptions(tgt.Options))
	}
	if err != nil {
		return errors.Wrapf(err, "target %s", name)
	}

	for _, attr := range sortedKeys(tgt.Options) {
		if val, found := t.Attributes.Get(attr); found && val == tgt.Options[attr] {
			continue
		}
		if err := t.AddAttribute(attr, tgt.Options[attr]); err != nil {
			return errors.Wrapf(err, "adding attribute %s to target %s", attr, name)
		}
	}

	// the kernel refuses a new relative id on an enabled target
	if tgt.RelTgtID != 0 && tgt.RelTgtID != t.RelTgtID {
		if t.Enabled {
			a.log.Noticef("target %s is enabled; not changing rel_tgt_id from %d to %d",
				name, t.RelTgtID, tgt.RelTgtID)
		} else if err := t.SetRelTgtID(tgt.RelTgtID); err != nil {
			return errors.Wrapf(err, "setting rel_tgt_id of target %s", name)
		}
	}

	if err := a.luns("target "+name, t, tgt.Luns); err != nil {
		return err
	}

	for _, grpName := range sortedKeys(tgt.Groups) {
		if err := a.group(t, grpName, tgt.Groups[grpName]); err != nil {
			return err
		}
	}

	if tgt.Enabled != t.Enabled {
		if tgt.Enabled {
			err = t.Enable()
		} else {
			err = t.Disable()
		}
		if err != nil {
			return errors.Wrapf(err, "setting target %s enabled=%t", name, tgt.Enabled)
		}
	}
	return nil
}

func (a *applier) group(t *scst.Target, name string, grp *Group) error {
	if grp == nil {
		grp = &Group{}
	}

	g, err := t.Group(name)
	if scst.IsNotFound(err) {
		g, err = t.CreateGroup(name)
	}
	if err != nil {
		return errors.Wrapf(err, "group %s of target %s", name, t.Name)
	}

	owner := fmt.Sprintf("group %s of target %s", name, t.Name)
	if err := a.luns(owner, g, grp.Luns); err != nil {
		return err
	}

	for _, ini := range grp.Initiators {
		if g.HasInitiator(ini) {
			continue
		}
		if err := g.AddInitiator(ini); err != nil {
			return errors.Wrapf(err, "adding initiator %s to %s", ini, owner)
		}
	}
	return nil
}

func (a *applier) luns(owner string, table lunMapper, luns []*Lun) error {
	for _, lun := range luns {
		if !a.knownDevice(lun.Device) {
			return FaultConfigUnknownDevice(owner, lun.Device)
		}

		opts := toOptions(lun.Options)
		cur, err := table.Lun(lun.ID)
		switch {
		case err == nil && cur.Device == lun.Device:
			continue
		case err == nil:
			a.log.Noticef("lun %d of %s maps %s; replacing with %s", lun.ID, owner, cur.Device, lun.Device)
			_, err = table.ReplaceLun(lun.Device, lun.ID, opts)
		case scst.IsNotFound(err):
			_, err = table.AddLun(lun.Device, lun.ID, opts)
		}
		if err != nil {
			return errors.Wrapf(err, "mapping lun %d of %s", lun.ID, owner)
		}
	}
	return nil
}
