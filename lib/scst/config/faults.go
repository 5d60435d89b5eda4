//
// (C) Copyright 2024 Intel Corporation.
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//

package config

import (
	"fmt"

	"github.com/vine-io/scst/fault"
	"github.com/vine-io/scst/fault/code"
)

var (
	// FaultConfigNoPath indicates that no configuration file was named.
	FaultConfigNoPath = configFault(
		code.ScstConfigNoPath,
		"configuration file path not set",
		"supply the path to an SCST configuration file",
	)
)

// FaultConfigBadVersion indicates an unsupported configuration format.
func FaultConfigBadVersion(version int) *fault.Fault {
	return configFault(
		code.ScstConfigBadVersion,
		fmt.Sprintf("unsupported configuration version %d", version),
		fmt.Sprintf("set 'version' to %d or remove it from the configuration", CurrentVersion),
	)
}

// FaultConfigBadDriver indicates a target driver that cannot be configured.
func FaultConfigBadDriver(name string) *fault.Fault {
	return configFault(
		code.ScstConfigBadDriver,
		fmt.Sprintf("target driver %q is not supported", name),
		"only the 'iscsi' target driver may be configured under 'drivers'",
	)
}

// FaultConfigUnknownHandler indicates a handler absent from the kernel.
func FaultConfigUnknownHandler(name string) *fault.Fault {
	return configFault(
		code.ScstConfigUnknownHandler,
		fmt.Sprintf("device handler %q is not loaded", name),
		fmt.Sprintf("load the SCST module providing %s or remove it from the configuration", name),
	)
}

// FaultConfigDuplicateLun indicates a LUN number used twice in one table.
func FaultConfigDuplicateLun(owner string, id uint64) *fault.Fault {
	return configFault(
		code.ScstConfigDuplicateLun,
		fmt.Sprintf("lun %d is mapped more than once in %s", id, owner),
		"give every lun in a target or group a distinct 'id'",
	)
}

// FaultConfigUnknownDevice indicates a LUN referring to no known device.
func FaultConfigUnknownDevice(owner, device string) *fault.Fault {
	return configFault(
		code.ScstConfigUnknownDevice,
		fmt.Sprintf("lun in %s refers to unknown device %q", owner, device),
		"define the device under 'handlers' or create it before applying the configuration",
	)
}

func configFault(c code.Code, desc, res string) *fault.Fault {
	return &fault.Fault{
		Domain:      "scst-config",
		Code:        c,
		Description: desc,
		Resolution:  res,
	}
}
