//
// (C) Copyright 2024 Intel Corporation.
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//

package config

import (
	"github.com/pkg/errors"

	"github.com/vine-io/scst/lib/scst"
)

func snapshotLuns(luns []*scst.Lun) []*Lun {
	var out []*Lun
	for _, lun := range luns {
		opts := lun.Attributes.Merge(scst.Options{})
		if lun.ReadOnly {
			opts.Set("read_only", "1")
		}
		out = append(out, &Lun{
			ID:      lun.ID,
			Device:  lun.Device,
			Options: fromOptions(opts),
		})
	}
	return out
}

func snapshotTarget(t *scst.Target) *Target {
	tgt := &Target{
		Enabled:  t.Enabled,
		RelTgtID: t.RelTgtID,
		Options:  fromOptions(t.Attributes),
		Luns:     snapshotLuns(t.Luns()),
	}
	for _, g := range t.Groups() {
		if tgt.Groups == nil {
			tgt.Groups = make(map[string]*Group)
		}
		tgt.Groups[g.Name] = &Group{
			Luns:       snapshotLuns(g.Luns()),
			Initiators: append([]string(nil), g.Initiators()...),
		}
	}
	return tgt
}

// Snapshot refreshes the tree and describes it as a configuration.
// Handlers without devices are left out.
func Snapshot(s *scst.Scst) (*Config, error) {
	if err := s.Refresh(); err != nil {
		return nil, errors.Wrap(err, "refreshing control tree")
	}

	cfg := &Config{
		Version:  CurrentVersion,
		Handlers: make(map[string]*Handler),
		Drivers:  make(map[string]*Driver),
	}

	for _, h := range s.Handlers() {
		if len(h.Devices()) == 0 {
			continue
		}
		handler := &Handler{Devices: make(map[string]*Device)}
		for _, dev := range h.Devices() {
			handler.Devices[dev.Name] = &Device{
				Filename: dev.Filename,
				Size:     dev.Size,
				Options:  fromOptions(dev.Attributes),
			}
		}
		cfg.Handlers[h.Name] = handler
	}

	iscsi, err := s.ISCSI()
	if err != nil {
		// no driver loaded, so nothing to describe
		return cfg, nil
	}
	drv := &Driver{
		Enabled:    iscsi.Enabled,
		Attributes: fromOptions(iscsi.Attributes),
	}
	for _, t := range iscsi.Targets() {
		if drv.Targets == nil {
			drv.Targets = make(map[string]*Target)
		}
		drv.Targets[t.Name] = snapshotTarget(t)
	}
	cfg.Drivers[iscsi.Name] = drv

	return cfg, nil
}
