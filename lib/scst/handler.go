//
// (C) Copyright 2024 Intel Corporation.
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//

package scst

import (
	"path"
)

// Handler is a device backend type such as vdisk_blockio. Handlers are
// provided by the kernel and are never created here.
type Handler struct {
	ctl     *control
	devices []*Device

	Name string
	Type string
}

func (h *Handler) path() string {
	return handlerPath(h.Name)
}

// Devices returns the devices found by the last refresh.
func (h *Handler) Devices() []*Device {
	return h.devices
}

// Device returns the named device from the last refresh.
func (h *Handler) Device(name string) (*Device, error) {
	for _, dev := range h.devices {
		if dev.Name == name {
			return dev, nil
		}
	}
	return nil, errNotFound("device %q not found in handler %s", name, h.Name)
}

// RefreshDevices reloads the handler's devices.
func (h *Handler) RefreshDevices() error {
	devices, err := collect(h.ctl, h.path(), isDir, func(name string) (*Device, error) {
		return loadDevice(h.ctl, h.Name, name)
	})
	if err != nil {
		return err
	}
	h.devices = devices
	return nil
}

// AddDevice creates a device backed by filename. Options are passed to
// the kernel after the filename.
func (h *Handler) AddDevice(name, filename string, opts Options) (*Device, error) {
	if err := checkName("device", name); err != nil {
		return nil, err
	}
	if err := checkFilename(filename); err != nil {
		return nil, err
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if opts.Has(optionFilename) {
		return nil, errInvalid("device filename must be passed as an argument, not an option")
	}
	if err := h.ctl.requireDir(h.path(), "handler "+h.Name); err != nil {
		return nil, err
	}
	if h.ctl.tree.Exists(path.Join(h.path(), name)) || h.ctl.tree.Exists(path.Join(devicesDir, name)) {
		return nil, errAlreadyExists("device %q already exists", name)
	}
	if unknown := opts.unknownKeys(knownDeviceOptions); len(unknown) > 0 {
		h.ctl.log.Debugf("passing unrecognized device options %v to handler %s", unknown, h.Name)
	}

	if err := h.ctl.exec(path.Join(h.path(), mgmtNode), addDeviceCmd(name, filename, opts)); err != nil {
		return nil, err
	}
	if err := h.RefreshDevices(); err != nil {
		return nil, err
	}

	dev, err := h.Device(name)
	if err != nil {
		return nil, err
	}
	h.ctl.log.Infof("added device %s", dev)

	return dev, nil
}

// RemoveDevice removes the named device. The kernel refuses with Busy
// while the device is mapped to a LUN.
func (h *Handler) RemoveDevice(name string) error {
	if err := checkName("device", name); err != nil {
		return err
	}
	if err := h.ctl.requireDir(h.path(), "handler "+h.Name); err != nil {
		return err
	}

	if err := h.ctl.exec(path.Join(h.path(), mgmtNode), delDeviceCmd(name)); err != nil {
		return err
	}
	h.ctl.log.Infof("removed device %s/%s", h.Name, name)

	return h.RefreshDevices()
}
