//
// (C) Copyright 2018-2024 Intel Corporation.
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//

// Package fault provides errors that carry a stable code and, where one
// is known, a resolution the operator can act on.
package fault

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/vine-io/scst/fault/code"
)

const (
	// ResolutionUnknown is shown when a fault has no resolution text.
	ResolutionUnknown = "no known resolution"
	// ResolutionEmpty is used when a fault is raised with an empty
	// resolution string.
	ResolutionEmpty = "no resolution supplied"
)

// UnknownFault is the fault returned when an error has no more
// specific classification.
var UnknownFault = &Fault{
	Code:        code.Unknown,
	Description: "unknown fault",
	Resolution:  ResolutionUnknown,
}

// Fault is an error with a stable code, a human-readable description
// and an optional resolution.
type Fault struct {
	Domain      string    `json:"domain"`
	Code        code.Code `json:"code"`
	Description string    `json:"description"`
	Resolution  string    `json:"resolution"`
}

func sanitizeDomain(domain string) string {
	if domain == "" {
		return "unknown"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', ':':
			return '_'
		}
		return r
	}, domain)
}

func (f *Fault) Error() string {
	if f.Code == code.Unknown && f.Description == "" && f.Resolution == "" && f.Domain == "" {
		return UnknownFault.Error()
	}
	return fmt.Sprintf("%s: code = %d description = %q", sanitizeDomain(f.Domain), f.Code, f.Description)
}

// Equals returns true if the supplied error is a fault with the same
// code and description. Wrapped faults are unwrapped first.
func (f *Fault) Equals(raw error) bool {
	other, ok := errors.Cause(raw).(*Fault)
	if !ok || other == nil {
		return false
	}
	return f.Code == other.Code && f.Description == other.Description
}

// Is implements errors.Is in terms of Equals.
func (f *Fault) Is(raw error) bool {
	return f.Equals(raw)
}

func (f *Fault) resolution() string {
	res := f.Resolution
	if res == "" {
		res = ResolutionUnknown
	}
	return fmt.Sprintf("%s: code = %d resolution = %q", sanitizeDomain(f.Domain), f.Code, res)
}

func getFault(err error) (*Fault, bool) {
	var f *Fault
	if errors.As(err, &f) && f != nil {
		return f, true
	}
	return nil, false
}

// IsFault returns true if the error is, or wraps, a *Fault.
func IsFault(err error) bool {
	_, ok := getFault(err)
	return ok
}

// HasResolution returns true if the error is a fault with a usable
// resolution.
func HasResolution(err error) bool {
	f, ok := getFault(err)
	if !ok {
		return false
	}
	return f.Resolution != "" && f.Resolution != ResolutionUnknown && f.Resolution != ResolutionEmpty
}

// ShowResolutionFor returns the resolution text for the error, or the
// unknown fault's resolution if there is none.
func ShowResolutionFor(err error) string {
	f, ok := getFault(err)
	if !ok {
		return UnknownFault.resolution()
	}
	return f.resolution()
}
