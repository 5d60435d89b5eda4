//
// (C) Copyright 2024 Intel Corporation.
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//

package scst

import (
	"fmt"
	"strings"

	"github.com/vine-io/scst/fault"
	"github.com/vine-io/scst/fault/code"
)

var (
	// FaultNoModule indicates that no SCST control tree was found.
	FaultNoModule = scstFault(
		code.ScstNoModule,
		fmt.Sprintf("no SCST control tree found at %s", strings.Join(defaultRoots, " or ")),
		"load the scst kernel module (modprobe scst) and ensure sysfs is mounted",
	)
	// FaultNoIscsiDriver indicates that the iSCSI target driver is not loaded.
	FaultNoIscsiDriver = scstFault(
		code.ScstNoIscsiDriver,
		"SCST iSCSI target driver is not loaded",
		"load the iscsi_scst kernel module and start iscsi-scstd",
	)
)

// FaultBadRoot indicates that root does not look like an SCST control tree.
func FaultBadRoot(root string) *fault.Fault {
	return scstFault(
		code.ScstBadRoot,
		fmt.Sprintf("%q is not an SCST control tree", root),
		"point the library at the SCST sysfs root, e.g. "+defaultScstRoot,
	)
}

func scstFault(c code.Code, desc, res string) *fault.Fault {
	return &fault.Fault{
		Domain:      "scst",
		Code:        c,
		Description: desc,
		Resolution:  res,
	}
}
