//
// (C) Copyright 2024 Intel Corporation.
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//

package config

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/vine-io/scst/common/test"
	"github.com/vine-io/scst/lib/scst"
	"github.com/vine-io/scst/logging"
)

func newTestScst(t *testing.T, log logging.Logger) (*scst.Scst, *scst.MockKernel) {
	t.Helper()

	mk := scst.NewMockKernel(nil)
	s, err := scst.New(log, mk)
	if err != nil {
		t.Fatal(err)
	}
	return s, mk
}

func TestConfig_Apply(t *testing.T) {
	log, buf := logging.NewTestLogger(t.Name())
	defer test.ShowBufferOnFailure(t, buf)

	s, mk := newTestScst(t, log)

	if err := Apply(log, s, testConfig()); err != nil {
		t.Fatal(err)
	}

	tgtDir := "targets/iscsi/" + testTarget
	expWrites := []scst.MockWrite{
		{Path: "handlers/vdisk_blockio/mgmt", Text: "add_device vol filename=/dev/zvol/tank/vol\n"},
		{Path: "targets/iscsi/mgmt", Text: "add_target " + testTarget + "\n"},
		{Path: tgtDir + "/ini_groups/mgmt", Text: "create vol\n"},
		{Path: tgtDir + "/ini_groups/vol/luns/mgmt", Text: "add vol 0\n"},
		{Path: tgtDir + "/ini_groups/vol/initiators/mgmt", Text: "add " + testInitiator + "\n"},
		{Path: tgtDir + "/enabled", Text: "1\n"},
	}
	if diff := cmp.Diff(expWrites, mk.Writes()); diff != "" {
		t.Fatalf("unexpected writes (-want, +got):\n%s\n", diff)
	}

	live, err := Snapshot(s)
	if err != nil {
		t.Fatal(err)
	}
	expLive := testConfig()
	expLive.Handlers["vdisk_blockio"].Devices["vol"].Size = 1 << 30
	expLive.Drivers["iscsi"].Targets[testTarget].RelTgtID = 1
	if diff := cmp.Diff(expLive, live, cmpopts.EquateEmpty()); diff != "" {
		t.Fatalf("unexpected snapshot (-want, +got):\n%s\n", diff)
	}

	// applying again changes nothing
	if err := Apply(log, s, testConfig()); err != nil {
		t.Fatal(err)
	}
	test.AssertEqual(t, len(expWrites), len(mk.Writes()), "second apply should not write")

	// a snapshot of the tree matches it by hash
	if err := Apply(log, s, live); err != nil {
		t.Fatal(err)
	}
	test.AssertEqual(t, len(expWrites), len(mk.Writes()), "snapshot apply should not write")
	test.AssertTrue(t, strings.Contains(buf.String(), "already matches"), "expected hash short-circuit")
}

func TestConfig_Apply_Partial(t *testing.T) {
	log, buf := logging.NewTestLogger(t.Name())
	defer test.ShowBufferOnFailure(t, buf)

	s, mk := newTestScst(t, log)
	if _, err := s.AddDevice("vdisk_blockio", "vol", "/dev/sdb", scst.Options{}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.AddDevice("vdisk_fileio", "img", "/var/lib/img0", scst.Options{}); err != nil {
		t.Fatal(err)
	}
	iscsi, _ := s.ISCSI()
	tgt, err := iscsi.AddTarget(testTarget, scst.Options{})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := tgt.AddLun("img", 0, scst.Options{}); err != nil {
		t.Fatal(err)
	}
	before := len(mk.Writes())

	cfg := testConfig()
	cfg.Drivers["iscsi"].Targets[testTarget].Luns = []*Lun{
		{ID: 0, Device: "vol"},
		{ID: 1, Device: "img", Options: map[string]string{"read_only": "1"}},
	}
	cfg.Drivers["iscsi"].Targets[testTarget].Options = map[string]string{"allowed_portal": "10.0.0.1"}
	if err := Apply(log, s, cfg); err != nil {
		t.Fatal(err)
	}

	var got []string
	for _, w := range mk.Writes()[before:] {
		got = append(got, w.Path+": "+strings.TrimSpace(w.Text))
	}
	exp := []string{
		"targets/iscsi/mgmt: add_target_attribute " + testTarget + " allowed_portal 10.0.0.1",
		"targets/iscsi/" + testTarget + "/luns/mgmt: replace vol 0",
		"targets/iscsi/" + testTarget + "/luns/mgmt: add img 1 read_only=1",
		"targets/iscsi/" + testTarget + "/ini_groups/mgmt: create vol",
		"targets/iscsi/" + testTarget + "/ini_groups/vol/luns/mgmt: add vol 0",
		"targets/iscsi/" + testTarget + "/ini_groups/vol/initiators/mgmt: add " + testInitiator,
		"targets/iscsi/" + testTarget + "/enabled: 1",
	}
	if diff := cmp.Diff(exp, got); diff != "" {
		t.Fatalf("unexpected writes (-want, +got):\n%s\n", diff)
	}

	// the existing device keeps its backing file
	dev, err := s.FindDevice("vol")
	if err != nil {
		t.Fatal(err)
	}
	test.AssertEqual(t, "/dev/sdb", dev.Filename, "existing device should be untouched")
	test.AssertTrue(t, strings.Contains(buf.String(), "leaving it unchanged"), "expected a notice")
}

func TestConfig_Apply_Faults(t *testing.T) {
	for name, tc := range map[string]struct {
		cfg    func() *Config
		expErr error
	}{
		"unknown handler": {
			cfg: func() *Config {
				cfg := testConfig()
				cfg.Handlers["vdisk_nullio"] = &Handler{
					Devices: map[string]*Device{"null": {Filename: "/dev/null"}},
				}
				return cfg
			},
			expErr: FaultConfigUnknownHandler("vdisk_nullio"),
		},
		"unknown device": {
			cfg: func() *Config {
				cfg := testConfig()
				grp := cfg.Drivers["iscsi"].Targets[testTarget].Groups["vol"]
				grp.Luns = append(grp.Luns, &Lun{ID: 1, Device: "missing"})
				return cfg
			},
			expErr: FaultConfigUnknownDevice("group vol of target "+testTarget, "missing"),
		},
		"bad driver": {
			cfg: func() *Config {
				cfg := testConfig()
				cfg.Drivers["qla2x00t"] = &Driver{}
				return cfg
			},
			expErr: FaultConfigBadDriver("qla2x00t"),
		},
	} {
		t.Run(name, func(t *testing.T) {
			log, buf := logging.NewTestLogger(t.Name())
			defer test.ShowBufferOnFailure(t, buf)

			s, _ := newTestScst(t, log)
			test.CmpErr(t, tc.expErr, Apply(log, s, tc.cfg()))
		})
	}
}
