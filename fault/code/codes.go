//
// (C) Copyright 2018-2024 Intel Corporation.
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//

// Package code is a central repository for all fault codes.
package code

import (
	"encoding/json"
	"strconv"
)

// Code represents a stable fault code.
//
// NB: New codes must be added at the bottom of their block so that
// existing values never change.
type Code int

// UnmarshalJSON accepts either an integer or a numeric string.
func (c *Code) UnmarshalJSON(data []byte) (err error) {
	var ic int
	if err = json.Unmarshal(data, &ic); err == nil {
		*c = Code(ic)
		return
	}

	var sc string
	if err = json.Unmarshal(data, &sc); err != nil {
		return
	}

	if ic, err = strconv.Atoi(sc); err == nil {
		*c = Code(ic)
	}
	return
}

const (
	// general fault codes
	Unknown Code = iota
	MissingSoftwareDependency
	PermissionDenied
)

const (
	// control tree fault codes
	ScstUnknown Code = iota + 100
	ScstNoModule
	ScstBadRoot
	ScstNoIscsiDriver
)

const (
	// declarative configuration fault codes
	ScstConfigUnknown Code = iota + 200
	ScstConfigNoPath
	ScstConfigBadVersion
	ScstConfigBadDriver
	ScstConfigUnknownHandler
	ScstConfigDuplicateLun
	ScstConfigUnknownDevice
)

const (
	// telemetry fault codes
	TelemetryUnknown Code = iota + 300
	TelemetryBadPort
)
