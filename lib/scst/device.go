//
// (C) Copyright 2024 Intel Corporation.
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//

package scst

import (
	"fmt"

	"github.com/dustin/go-humanize"
)

// Device is a storage object owned by a handler.
type Device struct {
	Name      string
	Handler   string
	Filename  string
	Size      uint64
	BlockSize uint64
	ReadOnly  bool
	Active    bool
	// Attributes holds the attributes the kernel flags as set
	// explicitly, which includes the options given at creation.
	Attributes Options
}

func (d *Device) String() string {
	if d == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s/%s (%s, %s)", d.Handler, d.Name, d.Filename, humanize.IBytes(d.Size))
}
