//
// (C) Copyright 2024 Intel Corporation.
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//

package scst

import (
	"bufio"
	"io"
	"path"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// IOStat holds cumulative I/O counters for a target or session. Values
// are point-in-time readings, never deltas.
type IOStat struct {
	ReadCmdCount           uint64 `json:"read_cmd_count" yaml:"read_cmd_count"`
	ReadIOCountKB          uint64 `json:"read_io_count_kb" yaml:"read_io_count_kb"`
	ReadUnalignedCmdCount  uint64 `json:"read_unaligned_cmd_count" yaml:"read_unaligned_cmd_count"`
	WriteCmdCount          uint64 `json:"write_cmd_count" yaml:"write_cmd_count"`
	WriteIOCountKB         uint64 `json:"write_io_count_kb" yaml:"write_io_count_kb"`
	WriteUnalignedCmdCount uint64 `json:"write_unaligned_cmd_count" yaml:"write_unaligned_cmd_count"`
	BidiCmdCount           uint64 `json:"bidi_cmd_count" yaml:"bidi_cmd_count"`
	BidiIOCountKB          uint64 `json:"bidi_io_count_kb" yaml:"bidi_io_count_kb"`
	BidiUnalignedCmdCount  uint64 `json:"bidi_unaligned_cmd_count" yaml:"bidi_unaligned_cmd_count"`
}

var ioStatFields = []struct {
	key   string
	field func(*IOStat) *uint64
}{
	{"read_cmd_count", func(s *IOStat) *uint64 { return &s.ReadCmdCount }},
	{"read_io_count_kb", func(s *IOStat) *uint64 { return &s.ReadIOCountKB }},
	{"read_unaligned_cmd_count", func(s *IOStat) *uint64 { return &s.ReadUnalignedCmdCount }},
	{"write_cmd_count", func(s *IOStat) *uint64 { return &s.WriteCmdCount }},
	{"write_io_count_kb", func(s *IOStat) *uint64 { return &s.WriteIOCountKB }},
	{"write_unaligned_cmd_count", func(s *IOStat) *uint64 { return &s.WriteUnalignedCmdCount }},
	{"bidi_cmd_count", func(s *IOStat) *uint64 { return &s.BidiCmdCount }},
	{"bidi_io_count_kb", func(s *IOStat) *uint64 { return &s.BidiIOCountKB }},
	{"bidi_unaligned_cmd_count", func(s *IOStat) *uint64 { return &s.BidiUnalignedCmdCount }},
}

var (
	ioStatKeys  = statKeys()
	sessionKeys = []string{attrSID, attrThreadPID, attrInitiatorName}
)

func statKeys() []string {
	keys := make([]string, 0, len(ioStatFields))
	for _, f := range ioStatFields {
		keys = append(keys, f.key)
	}
	return keys
}

// Add accumulates other into s.
func (s *IOStat) Add(other *IOStat) {
	if other == nil {
		return
	}
	for _, f := range ioStatFields {
		*f.field(s) += *f.field(other)
	}
}

// Counters returns the counters keyed by their kernel names.
func (s *IOStat) Counters() map[string]uint64 {
	out := make(map[string]uint64, len(ioStatFields))
	for _, f := range ioStatFields {
		out[f.key] = *f.field(s)
	}
	return out
}

// StatBlock is one labeled group of key/value lines.
type StatBlock struct {
	Label  string
	Values Options
}

func (b *StatBlock) empty() bool {
	return b.Label == "" && b.Values.Len() == 0
}

func (b StatBlock) uint(key string) (uint64, bool, error) {
	val, found := b.Values.Get(key)
	if !found {
		return 0, false, nil
	}
	n, err := strconv.ParseUint(val, 10, 64)
	if err != nil {
		return 0, true, errParse(b.Label, "%s: %q is not an unsigned integer", key, val)
	}
	return n, true, nil
}

// IOStat decodes the block's counters. Unknown keys are ignored and
// missing ones are left at zero.
func (b StatBlock) IOStat() (*IOStat, error) {
	s := new(IOStat)
	for _, f := range ioStatFields {
		n, _, err := b.uint(f.key)
		if err != nil {
			return nil, err
		}
		*f.field(s) = n
	}
	return s, nil
}

// Session decodes the block as a session description. The block label
// becomes the session name.
func (b StatBlock) Session() (*Session, error) {
	s := &Session{Name: b.Label}
	s.SID, _ = b.Values.Get(attrSID)
	s.InitiatorName, _ = b.Values.Get(attrInitiatorName)

	if pids, found := b.Values.Get(attrThreadPID); found {
		for _, field := range strings.Fields(pids) {
			pid, err := strconv.Atoi(field)
			if err != nil {
				return nil, errParse(b.Label, "%s: %q is not a process id", attrThreadPID, field)
			}
			s.ThreadPIDs = append(s.ThreadPIDs, pid)
		}
	}

	return s, nil
}

// parseLabel recognizes "[label]" anywhere and a bare "label:" only at
// the start of a block, since inside a block it is a key with an empty
// value.
func parseLabel(line string, blockStart bool) (string, bool) {
	if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
		return strings.TrimSpace(line[1 : len(line)-1]), true
	}
	if blockStart && strings.HasSuffix(line, ":") && !strings.ContainsAny(line[:len(line)-1], ": \t") {
		return line[:len(line)-1], true
	}
	return "", false
}

func parseKeyValue(line string) (string, string) {
	if key, val, found := strings.Cut(line, ":"); found {
		return strings.TrimSpace(key), strings.TrimSpace(val)
	}
	fields := strings.Fields(line)
	return fields[0], strings.Join(fields[1:], " ")
}

// ParseStatBlocks parses text made of labeled blocks of "key: value"
// lines. A block starts at a "[label]" line, or at a "label:" line at the
// start of the input or after a blank line, and ends at the next label
// or blank line. Inside a block "key:" is a key with an empty value.
// Lines before the first label form a block with an empty label. Lines
// of the form "key value" are accepted too.
func ParseStatBlocks(r io.Reader) ([]StatBlock, error) {
	var blocks []StatBlock
	var cur StatBlock
	blockStart := true

	flush := func() {
		if !cur.empty() {
			blocks = append(blocks, cur)
		}
		cur = StatBlock{}
	}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			flush()
			blockStart = true
			continue
		}

		if label, ok := parseLabel(line, blockStart); ok {
			flush()
			cur.Label = label
			blockStart = false
			continue
		}
		blockStart = false

		key, val := parseKeyValue(line)
		cur.Values.Set(key, val)
	}
	if err := scanner.Err(); err != nil {
		return nil, &Error{Kind: KindParseError, Err: errors.Wrap(err, "reading statistics")}
	}
	flush()

	return blocks, nil
}

// readStatBlock builds a StatBlock from the attribute nodes in dir,
// one node per key. Absent nodes are left out of the block.
func readStatBlock(c *control, dir string, keys []string) (StatBlock, error) {
	block := StatBlock{Label: path.Base(dir)}

	if err := c.requireDir(dir, dir); err != nil {
		return block, err
	}
	for _, key := range keys {
		a, err := c.optAttr(dir, key)
		if err != nil {
			return block, err
		}
		if a.Value != "" {
			block.Values.Set(key, a.Value)
		}
	}

	return block, nil
}
