//
// (C) Copyright 2018-2024 Intel Corporation.
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//

// Package test contains helpers shared by unit tests.
package test

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
)

// AssertTrue fails the test if b is false.
func AssertTrue(t *testing.T, b bool, message string) {
	t.Helper()

	if !b {
		t.Fatal(message)
	}
}

// AssertFalse fails the test if b is true.
func AssertFalse(t *testing.T, b bool, message string) {
	t.Helper()

	if b {
		t.Fatal(message)
	}
}

// AssertEqual fails the test if a and b are not deeply equal.
func AssertEqual(t *testing.T, a, b interface{}, message string) {
	t.Helper()

	if reflect.DeepEqual(a, b) {
		return
	}
	if len(message) > 0 {
		message += ", "
	}
	t.Fatalf("%s%#v != %#v", message, a, b)
}

// CmpAny fails the test with a diff if want and got differ.
func CmpAny(t *testing.T, desc string, want, got interface{}, opts ...cmp.Option) {
	t.Helper()

	if diff := cmp.Diff(want, got, opts...); diff != "" {
		t.Fatalf("unexpected %s (-want, +got):\n%s\n", desc, diff)
	}
}

// CmpErrBool compares two errors by presence alone.
func CmpErrBool(want, got error) bool {
	return (want == nil) == (got == nil)
}

// CmpErr fails the test if the errors differ. A non-nil want matches
// when errors.Is succeeds, or when got's message contains want's.
func CmpErr(t *testing.T, want, got error) {
	t.Helper()

	if !CmpErrBool(want, got) {
		t.Fatalf("unexpected error\n(wanted: %v, got: %v)", want, got)
	}
	if want == nil {
		return
	}
	if errors.Is(got, want) {
		return
	}
	if !strings.Contains(got.Error(), want.Error()) {
		t.Fatalf("unexpected error\n(wanted: %v, got: %v)", want, got)
	}
}

// ShowBufferOnFailure dumps the supplied buffer if the test failed.
// Intended to be deferred directly after the buffer is created.
func ShowBufferOnFailure(t *testing.T, buf fmt.Stringer) {
	t.Helper()

	if t.Failed() {
		fmt.Printf("captured log output:\n%s", buf.String())
	}
}

// CreateTestDir creates a temporary directory for the test and returns
// its path along with a cleanup function.
func CreateTestDir(t *testing.T) (string, func()) {
	t.Helper()

	name := strings.ReplaceAll(t.Name(), string(filepath.Separator), "-")
	tmpDir, err := os.MkdirTemp("", name)
	if err != nil {
		t.Fatalf("couldn't create %q: %s", name, err)
	}

	return tmpDir, func() {
		if err := os.RemoveAll(tmpDir); err != nil {
			t.Fatalf("couldn't remove %q: %s", tmpDir, err)
		}
	}
}

// CreateTestFile writes content to a new file under dir and returns
// its path.
func CreateTestFile(t *testing.T, dir, content string) string {
	t.Helper()

	f, err := os.CreateTemp(dir, "")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	if _, err := f.WriteString(content); err != nil {
		t.Fatal(err)
	}
	return f.Name()
}
