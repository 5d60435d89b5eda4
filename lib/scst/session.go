//
// (C) Copyright 2024 Intel Corporation.
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//

package scst

// Session is a live initiator login as reported by the kernel. Sessions
// are observed only, never created or removed here.
type Session struct {
	ctl *control
	dir string

	Name          string
	SID           string
	ThreadPIDs    []int
	InitiatorName string
	Connections   []Connection
}

// Connection is one transport connection of a session.
type Connection struct {
	Name     string
	CID      string
	IP       string
	State    string
	TargetIP string
}

// IOStat reads the session's counters afresh.
func (s *Session) IOStat() (*IOStat, error) {
	block, err := readStatBlock(s.ctl, s.dir, ioStatKeys)
	if err != nil {
		return nil, err
	}
	return block.IOStat()
}
