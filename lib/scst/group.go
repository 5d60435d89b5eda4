//
// (C) Copyright 2024 Intel Corporation.
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//

package scst

import (
	"fmt"
	"path"
)

// Group is an initiator group: the initiators it lists see the group's
// LUN mappings instead of the target's defaults.
type Group struct {
	lunTable
	ctl        *control
	initiators []string

	Driver string
	Target string
	Name   string
}

func newGroup(c *control, driver, target, name string) *Group {
	dir := groupPath(driver, target, name)
	return &Group{
		lunTable: newLunTable(c, dir, fmt.Sprintf("group %s of target %s", name, target)),
		ctl:      c,
		Driver:   driver,
		Target:   target,
		Name:     name,
	}
}

func (g *Group) path() string {
	return groupPath(g.Driver, g.Target, g.Name)
}

func (g *Group) initiatorsPath() string {
	return path.Join(g.path(), initiatorsDir)
}

func (g *Group) require() error {
	return g.ctl.requireDir(g.path(), g.owner)
}

// Refresh reloads the group's LUN mappings and initiators.
func (g *Group) Refresh() error {
	if err := g.require(); err != nil {
		return err
	}
	if err := g.RefreshLuns(); err != nil {
		return err
	}
	return g.RefreshInitiators()
}

// Initiators returns the initiators found by the last refresh.
func (g *Group) Initiators() []string {
	return g.initiators
}

// HasInitiator returns true if the last refresh listed name.
func (g *Group) HasInitiator(name string) bool {
	return contains(g.initiators, name)
}

// RefreshInitiators reloads the group's initiators.
func (g *Group) RefreshInitiators() error {
	names, err := collect(g.ctl, g.initiatorsPath(), isInitiator, func(name string) (string, error) {
		return name, nil
	})
	if err != nil {
		return err
	}
	g.initiators = names
	return nil
}

func (g *Group) initiatorCmd(cmd Command) error {
	if err := g.require(); err != nil {
		return err
	}
	if err := g.ctl.exec(path.Join(g.initiatorsPath(), mgmtNode), cmd); err != nil {
		return err
	}
	return g.RefreshInitiators()
}

// AddInitiator grants an initiator, or a wildcard pattern, access
// through the group.
func (g *Group) AddInitiator(name string) error {
	if err := checkInitiator(name); err != nil {
		return err
	}
	if g.ctl.tree.Exists(path.Join(g.initiatorsPath(), name)) {
		return errAlreadyExists("initiator %q already in %s", name, g.owner)
	}

	if err := g.initiatorCmd(addInitiatorCmd(name)); err != nil {
		return err
	}
	g.ctl.log.Infof("added initiator %s to %s", name, g.owner)
	return nil
}

// RemoveInitiator removes an initiator from the group.
func (g *Group) RemoveInitiator(name string) error {
	if err := checkInitiator(name); err != nil {
		return err
	}

	if err := g.initiatorCmd(delInitiatorCmd(name)); err != nil {
		return err
	}
	g.ctl.log.Infof("removed initiator %s from %s", name, g.owner)
	return nil
}

// MoveInitiator moves an initiator to another group of the same target.
// Only this group is refreshed; a handle on the destination group sees
// the initiator after its own refresh.
func (g *Group) MoveInitiator(name, dest string) error {
	if err := checkInitiator(name); err != nil {
		return err
	}
	if err := checkName("group", dest); err != nil {
		return err
	}
	if !g.ctl.tree.Exists(groupPath(g.Driver, g.Target, dest)) {
		return errNotFound("group %q not found in target %s", dest, g.Target)
	}

	if err := g.initiatorCmd(moveInitiatorCmd(name, dest)); err != nil {
		return err
	}
	g.ctl.log.Infof("moved initiator %s from %s to group %s", name, g.owner, dest)
	return nil
}

// ClearInitiators removes every initiator from the group.
func (g *Group) ClearInitiators() error {
	if err := g.initiatorCmd(clearCmd()); err != nil {
		return err
	}
	g.ctl.log.Infof("cleared initiators of %s", g.owner)
	return nil
}

