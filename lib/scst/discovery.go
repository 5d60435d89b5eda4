//
// (C) Copyright 2024 Intel Corporation.
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//

package scst

import (
	"path"
	"strconv"

	"github.com/vine-io/scst/lib/sysfs"
)

func handlerPath(handler string) string {
	return path.Join(handlersDir, handler)
}

func driverPath(driver string) string {
	return path.Join(targetsDir, driver)
}

func targetPath(driver, target string) string {
	return path.Join(targetsDir, driver, target)
}

func groupPath(driver, target, group string) string {
	return path.Join(targetsDir, driver, target, groupsDir, group)
}

func isDir(e sysfs.Entry) bool {
	return e.Dir
}

// collect lists dir and loads each child accepted by keep. Children
// which vanish between the listing and the load are skipped, since the
// tree may be changed by others at any time. Results keep the order in
// which the tree enumerates them.
func collect[T any](c *control, dir string, keep func(sysfs.Entry) bool, load func(name string) (T, error)) ([]T, error) {
	entries, err := c.list(dir)
	if err != nil {
		return nil, err
	}

	out := make([]T, 0, len(entries))
	for _, entry := range entries {
		if !keep(entry) {
			continue
		}

		item, err := load(entry.Name)
		if err != nil {
			child := path.Join(dir, entry.Name)
			if IsNotFound(err) && !c.tree.Exists(child) {
				c.log.Debugf("skipping %s: removed during refresh", child)
				continue
			}
			return nil, err
		}
		out = append(out, item)
	}

	return out, nil
}

func loadHandler(c *control, name string) (*Handler, error) {
	dir := handlerPath(name)

	typ, err := c.optString(dir, attrHandlerType)
	if err != nil {
		return nil, err
	}

	h := &Handler{
		ctl:  c,
		Name: name,
		Type: typ,
	}
	if err := h.RefreshDevices(); err != nil {
		return nil, err
	}

	return h, nil
}

func loadDevice(c *control, handler, name string) (*Device, error) {
	dir := path.Join(handlerPath(handler), name)

	dev := &Device{
		Name:    name,
		Handler: handler,
	}

	var err error
	if dev.Filename, err = c.optString(dir, attrFilename); err != nil {
		return nil, err
	}
	if dev.Size, err = c.optUint(dir, attrSize); err != nil {
		return nil, err
	}
	if dev.BlockSize, err = c.optUint(dir, attrBlockSize); err != nil {
		return nil, err
	}
	if dev.ReadOnly, err = c.optBool(dir, attrReadOnly); err != nil {
		return nil, err
	}
	if dev.Active, err = c.optBool(dir, attrActive); err != nil {
		return nil, err
	}
	if dev.Attributes, err = c.keyedAttrs(dir, attrFilename); err != nil {
		return nil, err
	}

	return dev, nil
}

func loadDriver(c *control, name string) (*Driver, error) {
	d := &Driver{
		ctl:  c,
		Name: name,
	}
	if err := d.Refresh(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Driver) loadAttrs() error {
	dir := driverPath(d.Name)
	if err := d.ctl.requireDir(dir, "target driver "+d.Name); err != nil {
		return err
	}

	var err error
	if d.Enabled, err = d.ctl.optBool(dir, attrEnabled); err != nil {
		return err
	}
	if d.OpenState, err = d.ctl.optString(dir, attrOpenState); err != nil {
		return err
	}
	if d.Version, err = d.ctl.optString(dir, attrVersion); err != nil {
		return err
	}
	d.Attributes, err = d.ctl.keyedAttrs(dir, attrEnabled)
	return err
}

func loadTarget(c *control, driver, name string) (*Target, error) {
	t := newTarget(c, driver, name)
	if err := t.Refresh(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Target) loadAttrs() error {
	dir := t.path()

	var err error
	if t.TID, err = t.ctl.optUint(dir, attrTID); err != nil {
		return err
	}
	if t.RelTgtID, err = t.ctl.optUint(dir, attrRelTgtID); err != nil {
		return err
	}
	if t.Enabled, err = t.ctl.optBool(dir, attrEnabled); err != nil {
		return err
	}
	t.Attributes, err = t.ctl.keyedAttrs(dir, attrEnabled, attrRelTgtID)
	return err
}

func loadGroup(c *control, driver, target, name string) (*Group, error) {
	g := newGroup(c, driver, target, name)
	if err := g.Refresh(); err != nil {
		return nil, err
	}
	return g, nil
}

func isLunDir(e sysfs.Entry) bool {
	if !e.Dir {
		return false
	}
	_, err := strconv.ParseUint(e.Name, 10, 64)
	return err == nil
}

func loadLun(c *control, dir, name string) (*Lun, error) {
	lunDir := path.Join(dir, name)

	id, err := parseUint(lunDir, "lun", name)
	if err != nil {
		return nil, err
	}

	lun := &Lun{ID: id}
	if lun.Device, err = c.optLinkName(lunDir, linkLunDevice); err != nil {
		return nil, err
	}
	if lun.ReadOnly, err = c.optBool(lunDir, attrReadOnly); err != nil {
		return nil, err
	}
	if lun.Attributes, err = c.keyedAttrs(lunDir, attrReadOnly); err != nil {
		return nil, err
	}

	return lun, nil
}

func isInitiator(e sysfs.Entry) bool {
	return !e.Dir && e.Name != mgmtNode
}

func loadSession(c *control, dir, name string) (*Session, error) {
	sessDir := path.Join(dir, name)

	block, err := readStatBlock(c, sessDir, sessionKeys)
	if err != nil {
		return nil, err
	}
	s, err := block.Session()
	if err != nil {
		return nil, err
	}
	s.ctl = c
	s.dir = sessDir

	isConn := func(e sysfs.Entry) bool {
		return e.Dir && c.tree.Exists(path.Join(sessDir, e.Name, attrCID))
	}
	s.Connections, err = collect(c, sessDir, isConn, func(conn string) (Connection, error) {
		return loadConnection(c, sessDir, conn)
	})
	if err != nil {
		return nil, err
	}

	return s, nil
}

func loadConnection(c *control, dir, name string) (Connection, error) {
	connDir := path.Join(dir, name)
	conn := Connection{Name: name}

	for _, field := range []struct {
		attr string
		dest *string
	}{
		{attrCID, &conn.CID},
		{attrIP, &conn.IP},
		{attrState, &conn.State},
		{attrTargetIP, &conn.TargetIP},
	} {
		val, err := c.optString(connDir, field.attr)
		if err != nil {
			return Connection{}, err
		}
		*field.dest = val
	}

	return conn, nil
}
