//
// (C) Copyright 2024 Intel Corporation.
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//

package scst

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/vine-io/scst/common/test"
)

const testStatText = `
[1]
sid: 10000003d0200
thread_pid: 4411 4412
initiator_name: iqn.1988-12.com.oracle:d4ebaa45254b
read_cmd_count: 120
read_io_count_kb: 4096
write_cmd_count: 7
queued_cmd_count: 3

2:
write_io_count_kb 2048
bidi_cmd_count 1
`

func TestScst_ParseStatBlocks(t *testing.T) {
	for name, tc := range map[string]struct {
		in        string
		expBlocks []StatBlock
	}{
		"empty": {},
		"unlabeled": {
			in: "read_cmd_count: 1\nwrite_cmd_count: 2\n",
			expBlocks: []StatBlock{
				{Values: NewOptions("read_cmd_count", "1", "write_cmd_count", "2")},
			},
		},
		"labeled blocks": {
			in: testStatText,
			expBlocks: []StatBlock{
				{
					Label: "1",
					Values: NewOptions(
						"sid", "10000003d0200",
						"thread_pid", "4411 4412",
						"initiator_name", "iqn.1988-12.com.oracle:d4ebaa45254b",
						"read_cmd_count", "120",
						"read_io_count_kb", "4096",
						"write_cmd_count", "7",
						"queued_cmd_count", "3",
					),
				},
				{
					Label:  "2",
					Values: NewOptions("write_io_count_kb", "2048", "bidi_cmd_count", "1"),
				},
			},
		},
		"empty value inside block": {
			in: "[s1]\nsid: 1\ninitiator_name:\nread_cmd_count: 5\n",
			expBlocks: []StatBlock{
				{
					Label:  "s1",
					Values: NewOptions("sid", "1", "initiator_name", "", "read_cmd_count", "5"),
				},
			},
		},
		"bare label after blank line": {
			in: "sid: 1\n\nidle:\nread_cmd_count: 5\n",
			expBlocks: []StatBlock{
				{Values: NewOptions("sid", "1")},
				{Label: "idle", Values: NewOptions("read_cmd_count", "5")},
			},
		},
		"label without values": {
			in:        "[idle]\n",
			expBlocks: []StatBlock{{Label: "idle"}},
		},
	} {
		t.Run(name, func(t *testing.T) {
			blocks, err := ParseStatBlocks(strings.NewReader(tc.in))
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(tc.expBlocks, blocks, cmpopts.EquateEmpty()); diff != "" {
				t.Fatalf("unexpected blocks (-want, +got):\n%s\n", diff)
			}
		})
	}
}

func TestScst_ParseStatBlocks_EmptyValueKeepsCounters(t *testing.T) {
	blocks, err := ParseStatBlocks(strings.NewReader("[s1]\nsid: 1\ninitiator_name:\nread_cmd_count: 5\n"))
	if err != nil {
		t.Fatal(err)
	}
	test.AssertEqual(t, 1, len(blocks), "unexpected block count")

	stat, err := blocks[0].IOStat()
	if err != nil {
		t.Fatal(err)
	}
	test.AssertEqual(t, uint64(5), stat.ReadCmdCount, "counter lost after empty value")
}

func TestScst_StatBlock_IOStat(t *testing.T) {
	for name, tc := range map[string]struct {
		block   StatBlock
		expStat *IOStat
		expErr  error
	}{
		"no counters": {
			expStat: &IOStat{},
		},
		"unknown keys ignored": {
			block: StatBlock{
				Values: NewOptions("read_cmd_count", "120", "queued_cmd_count", "3", "bidi_io_count_kb", "8"),
			},
			expStat: &IOStat{ReadCmdCount: 120, BidiIOCountKB: 8},
		},
		"non-numeric counter": {
			block: StatBlock{
				Label:  "1",
				Values: NewOptions("write_cmd_count", "many"),
			},
			expErr: ErrParse,
		},
		"negative counter": {
			block:  StatBlock{Values: NewOptions("read_io_count_kb", "-1")},
			expErr: ErrParse,
		},
	} {
		t.Run(name, func(t *testing.T) {
			stat, err := tc.block.IOStat()
			test.CmpErr(t, tc.expErr, err)
			if tc.expErr != nil {
				return
			}
			if diff := cmp.Diff(tc.expStat, stat); diff != "" {
				t.Fatalf("unexpected stat (-want, +got):\n%s\n", diff)
			}
		})
	}
}

func TestScst_StatBlock_Session(t *testing.T) {
	for name, tc := range map[string]struct {
		block      StatBlock
		expSession *Session
		expErr     error
	}{
		"full": {
			block: StatBlock{
				Label: "1",
				Values: NewOptions(
					"sid", "10000003d0200",
					"thread_pid", "4411 4412",
					"initiator_name", "iqn.1988-12.com.oracle:d4ebaa45254b",
				),
			},
			expSession: &Session{
				Name:          "1",
				SID:           "10000003d0200",
				ThreadPIDs:    []int{4411, 4412},
				InitiatorName: "iqn.1988-12.com.oracle:d4ebaa45254b",
			},
		},
		"missing fields": {
			block:      StatBlock{Label: "2"},
			expSession: &Session{Name: "2"},
		},
		"bad pid": {
			block: StatBlock{
				Label:  "3",
				Values: NewOptions("thread_pid", "4411 main"),
			},
			expErr: ErrParse,
		},
	} {
		t.Run(name, func(t *testing.T) {
			sess, err := tc.block.Session()
			test.CmpErr(t, tc.expErr, err)
			if tc.expErr != nil {
				return
			}
			if diff := cmp.Diff(tc.expSession, sess, cmpopts.IgnoreUnexported(Session{})); diff != "" {
				t.Fatalf("unexpected session (-want, +got):\n%s\n", diff)
			}
		})
	}
}

func TestScst_IOStat_Add(t *testing.T) {
	total := &IOStat{ReadCmdCount: 1, WriteIOCountKB: 4}
	total.Add(&IOStat{ReadCmdCount: 2, BidiUnalignedCmdCount: 1})
	total.Add(nil)

	if diff := cmp.Diff(&IOStat{ReadCmdCount: 3, WriteIOCountKB: 4, BidiUnalignedCmdCount: 1}, total); diff != "" {
		t.Fatalf("unexpected sum (-want, +got):\n%s\n", diff)
	}

	counters := total.Counters()
	test.AssertEqual(t, len(ioStatFields), len(counters), "every counter should be present")
	test.AssertEqual(t, uint64(3), counters["read_cmd_count"], "read_cmd_count")
	test.AssertEqual(t, uint64(4), counters["write_io_count_kb"], "write_io_count_kb")
}
