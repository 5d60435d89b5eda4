//
// (C) Copyright 2024 Intel Corporation.
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//

// Package config holds a declarative description of an SCST setup which
// can be captured from a live tree and applied to one.
package config

import (
	"fmt"
	"os"
	"sort"

	"github.com/mitchellh/hashstructure/v2"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"github.com/vine-io/scst/lib/scst"
)

const (
	// CurrentVersion is the configuration format understood and written.
	CurrentVersion = 1

	defaultConfigPath = "/etc/scst/scst.yaml"
	iscsiDriver       = "iscsi"
)

type (
	// Device describes a device to be created by a handler. Size is
	// recorded by Snapshot for reference and is never applied.
	Device struct {
		Filename string            `yaml:"filename"`
		Size     uint64            `yaml:"size,omitempty" hash:"ignore"`
		Options  map[string]string `yaml:"options,omitempty"`
	}

	// Handler lists the devices owned by a handler.
	Handler struct {
		Devices map[string]*Device `yaml:"devices,omitempty"`
	}

	// Lun maps a device to a LUN number.
	Lun struct {
		ID      uint64            `yaml:"id"`
		Device  string            `yaml:"device"`
		Options map[string]string `yaml:"options,omitempty"`
	}

	// Group is an initiator group and the LUNs its initiators see.
	Group struct {
		Luns       []*Lun   `yaml:"luns,omitempty" hash:"set"`
		Initiators []string `yaml:"initiators,omitempty" hash:"set"`
	}

	// Target is an iSCSI target. A zero RelTgtID leaves the kernel's
	// choice in place.
	Target struct {
		Enabled  bool              `yaml:"enabled"`
		RelTgtID uint64            `yaml:"rel_tgt_id,omitempty"`
		Options  map[string]string `yaml:"options,omitempty"`
		Luns     []*Lun            `yaml:"luns,omitempty" hash:"set"`
		Groups   map[string]*Group `yaml:"groups,omitempty"`
	}

	// Driver is a target driver and its targets.
	Driver struct {
		Enabled    bool               `yaml:"enabled"`
		Attributes map[string]string  `yaml:"attributes,omitempty"`
		Targets    map[string]*Target `yaml:"targets,omitempty"`
	}

	// Config is the top-level configuration.
	Config struct {
		Path     string              `yaml:"-" hash:"ignore"`
		Version  int                 `yaml:"version"`
		Handlers map[string]*Handler `yaml:"handlers,omitempty"`
		Drivers  map[string]*Driver  `yaml:"drivers,omitempty"`
	}
)

// DefaultConfig returns an empty configuration at the default path.
func DefaultConfig() *Config {
	return &Config{
		Path:     defaultConfigPath,
		Version:  CurrentVersion,
		Handlers: make(map[string]*Handler),
		Drivers:  make(map[string]*Driver),
	}
}

// Parse decodes and validates a YAML configuration. Unknown fields are
// rejected.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.UnmarshalStrict(data, cfg); err != nil {
		return nil, err
	}
	if cfg.Version == 0 {
		cfg.Version = CurrentVersion
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Load reads and validates the configuration file at path.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, FaultConfigNoPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WithMessage(err, "reading file")
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, errors.WithMessagef(err, "parse of %q failed", path)
	}
	cfg.Path = path

	return cfg, nil
}

// Save serializes the configuration to path.
func (cfg *Config) Save(path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// Hash returns a digest of the configuration which ignores map and LUN
// ordering, the file path and recorded device sizes.
func (cfg *Config) Hash() (uint64, error) {
	return hashstructure.Hash(cfg, hashstructure.FormatV2, nil)
}

func checkLuns(owner string, luns []*Lun) error {
	seen := make(map[uint64]struct{}, len(luns))
	for _, lun := range luns {
		if _, found := seen[lun.ID]; found {
			return FaultConfigDuplicateLun(owner, lun.ID)
		}
		seen[lun.ID] = struct{}{}
	}
	return nil
}

// Validate checks the configuration for problems which can be found
// without looking at the kernel.
func (cfg *Config) Validate() error {
	if cfg.Version != CurrentVersion {
		return FaultConfigBadVersion(cfg.Version)
	}

	for name, drv := range cfg.Drivers {
		if name != iscsiDriver {
			return FaultConfigBadDriver(name)
		}
		if drv == nil {
			continue
		}
		for tgtName, tgt := range drv.Targets {
			if tgt == nil {
				continue
			}
			if err := checkLuns("target "+tgtName, tgt.Luns); err != nil {
				return err
			}
			for grpName, grp := range tgt.Groups {
				if grp == nil {
					continue
				}
				owner := fmt.Sprintf("group %s of target %s", grpName, tgtName)
				if err := checkLuns(owner, grp.Luns); err != nil {
					return err
				}
			}
		}
	}

	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func toOptions(m map[string]string) scst.Options {
	var opts scst.Options
	for _, k := range sortedKeys(m) {
		opts.Set(k, m[k])
	}
	return opts
}

func fromOptions(opts scst.Options) map[string]string {
	if opts.Len() == 0 {
		return nil
	}
	return opts.Map()
}
