//
// (C) Copyright 2024 Intel Corporation.
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//

// Package scst models the SCST kernel target subsystem's sysfs control
// tree as typed entities.
//
// The tree is the only source of truth. Every collection returned by a
// handle is a snapshot taken by the last refresh of that collection and
// may be stale the moment it is returned; mutating methods refresh just
// the collection they changed. Collections follow the tree's enumeration
// order, which differs between kernels; callers that need a stable order
// must sort by name.
//
// Handles locate themselves in the tree by name and hold no references
// to their parents, so a handle whose parent was removed reports
// NotFound on its next use rather than appearing valid.
//
// Nothing in this package is safe for concurrent mutation of entities
// sharing a parent; callers serialize such sequences themselves.
package scst

import (
	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"github.com/vine-io/scst/lib/sysfs"
	"github.com/vine-io/scst/logging"
)

var defaultRoots = []string{defaultScstRoot, legacyScstRoot}

// Scst is the root of an attached control tree.
type Scst struct {
	ctl      *control
	root     string
	version  string
	handlers []*Handler
	iscsi    *Driver
}

// DetectRoot returns the first SCST control tree root present on fs.
func DetectRoot(fs afero.Fs) (string, error) {
	for _, root := range defaultRoots {
		if ok, _ := afero.DirExists(fs, root); ok {
			return root, nil
		}
	}
	return "", FaultNoModule
}

// Init attaches to the control tree of the running kernel.
func Init(log logging.Logger) (*Scst, error) {
	return InitWithFs(log, afero.NewOsFs())
}

// InitWithFs attaches to the control tree found on fs.
func InitWithFs(log logging.Logger, fs afero.Fs) (*Scst, error) {
	root, err := DetectRoot(fs)
	if err != nil {
		return nil, err
	}
	log.Debugf("using SCST control tree at %s", root)

	return New(log, sysfs.NewProviderWithFs(log, fs, root))
}

// New attaches to the supplied control tree and loads it.
func New(log logging.Logger, tree sysfs.Tree) (*Scst, error) {
	root := "<tree>"
	if p, ok := tree.(interface{ Root() string }); ok {
		root = p.Root()
	}
	if !tree.Exists(handlersDir) || !tree.Exists(targetsDir) {
		return nil, FaultBadRoot(root)
	}

	s := &Scst{
		ctl:  &control{log: log, tree: tree},
		root: root,
	}
	if err := s.Refresh(); err != nil {
		return nil, err
	}

	return s, nil
}

// Root returns the location of the control tree.
func (s *Scst) Root() string {
	return s.root
}

// Version returns the kernel module version read at the last refresh.
func (s *Scst) Version() string {
	return s.version
}

// Refresh reloads the whole tree.
func (s *Scst) Refresh() error {
	var err error
	if s.version, err = s.ctl.optString(".", attrVersion); err != nil {
		return err
	}
	if err := s.RefreshHandlers(); err != nil {
		return err
	}
	return s.refreshISCSI()
}

func (s *Scst) refreshISCSI() error {
	if !s.ctl.tree.Exists(driverPath(iscsiDriverName)) {
		s.iscsi = nil
		return nil
	}

	d, err := loadDriver(s.ctl, iscsiDriverName)
	if err != nil {
		return errors.Wrap(err, "loading iscsi driver")
	}
	s.iscsi = d
	return nil
}

// RefreshHandlers reloads the handlers and their devices.
func (s *Scst) RefreshHandlers() error {
	handlers, err := collect(s.ctl, handlersDir, isDir, func(name string) (*Handler, error) {
		return loadHandler(s.ctl, name)
	})
	if err != nil {
		return err
	}
	s.handlers = handlers
	return nil
}

// Handlers returns the handlers found by the last refresh.
func (s *Scst) Handlers() []*Handler {
	return s.handlers
}

// Handler returns the named handler from the last refresh.
func (s *Scst) Handler(name string) (*Handler, error) {
	for _, h := range s.handlers {
		if h.Name == name {
			return h, nil
		}
	}
	return nil, errNotFound("handler %q not found", name)
}

// ISCSI returns the iSCSI target driver.
func (s *Scst) ISCSI() (*Driver, error) {
	if s.iscsi == nil {
		return nil, FaultNoIscsiDriver
	}
	return s.iscsi, nil
}

// AddDevice adds a device to the named handler.
func (s *Scst) AddDevice(handler, name, filename string, opts Options) (*Device, error) {
	h, err := s.Handler(handler)
	if err != nil {
		return nil, err
	}
	return h.AddDevice(name, filename, opts)
}

// RemoveDevice removes a device from the named handler.
func (s *Scst) RemoveDevice(handler, name string) error {
	h, err := s.Handler(handler)
	if err != nil {
		return err
	}
	return h.RemoveDevice(name)
}

// FindDevice returns the device with the given name from any handler.
func (s *Scst) FindDevice(name string) (*Device, error) {
	for _, h := range s.handlers {
		if dev, err := h.Device(name); err == nil {
			return dev, nil
		}
	}
	return nil, errNotFound("device %q not found", name)
}
