//
// (C) Copyright 2024 Intel Corporation.
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//

package promexp

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/vine-io/scst/lib/scst"
)

func TestPromExp_sanitizeMetricName(t *testing.T) {
	for input, tc := range map[string]struct {
		expOutput string
	}{
		"": {
			expOutput: "",
		},
		"azAZ09": {
			expOutput: "azAZ09",
		},
		"/a-z A-Z 0-9/": {
			expOutput: "a_z_A_Z_0_9_",
		},
	} {
		t.Run(input, func(t *testing.T) {
			got := sanitizeMetricName(input)
			if got != tc.expOutput {
				t.Errorf("sanitizeMetricName(%q) = %q, want %q", input, got, tc.expOutput)
			}
		})
	}
}

func TestPromExp_metricName(t *testing.T) {
	for name, tc := range map[string]struct {
		parts     []string
		expOutput string
	}{
		"prefix only": {
			expOutput: "scst",
		},
		"simple": {
			parts:     []string{"target", "enabled"},
			expOutput: "scst_target_enabled",
		},
		"empty part": {
			parts:     []string{"", "sessions"},
			expOutput: "scst__sessions",
		},
		"sanitized": {
			parts:     []string{"device", "size-bytes"},
			expOutput: "scst_device_size_bytes",
		},
	} {
		t.Run(name, func(t *testing.T) {
			if got := metricName(tc.parts...); got != tc.expOutput {
				t.Errorf("metricName(%v) = %q, want %q", tc.parts, got, tc.expOutput)
			}
		})
	}
}

func TestPromExp_labelMap_keys(t *testing.T) {
	lm := labelMap{"target": "t", "initiator": "i", "session": "s"}

	if diff := cmp.Diff([]string{"initiator", "session", "target"}, lm.keys()); diff != "" {
		t.Fatalf("unexpected keys (-want, +got):\n%s\n", diff)
	}
}

func TestPromExp_getMetricStats(t *testing.T) {
	for name, tc := range map[string]struct {
		stat     *scst.IOStat
		expStats []*metricStat
	}{
		"nil stat": {},
		"counters": {
			stat: &scst.IOStat{
				ReadCmdCount:  10,
				ReadIOCountKB: 40,
				WriteCmdCount: 2,
			},
			expStats: []*metricStat{
				{name: "scst_target_bidi_cmd_count", desc: "bidirectional commands received"},
				{name: "scst_target_bidi_io_count_kb", desc: "kilobytes transferred by bidirectional commands"},
				{name: "scst_target_bidi_unaligned_cmd_count", desc: "bidirectional commands not aligned to the block size"},
				{name: "scst_target_read_cmd_count", desc: "READ commands received", value: 10},
				{name: "scst_target_read_io_count_kb", desc: "kilobytes read", value: 40},
				{name: "scst_target_read_unaligned_cmd_count", desc: "READ commands not aligned to the block size"},
				{name: "scst_target_write_cmd_count", desc: "WRITE commands received", value: 2},
				{name: "scst_target_write_io_count_kb", desc: "kilobytes written"},
				{name: "scst_target_write_unaligned_cmd_count", desc: "WRITE commands not aligned to the block size"},
			},
		},
	} {
		t.Run(name, func(t *testing.T) {
			got := getMetricStats("target", tc.stat)
			if diff := cmp.Diff(tc.expStats, got, cmp.AllowUnexported(metricStat{})); diff != "" {
				t.Fatalf("(-want, +got)\n%s", diff)
			}
		})
	}
}
