//
// (C) Copyright 2024 Intel Corporation.
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//

package scst

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"

	"github.com/vine-io/scst/common/test"
)

func TestScst_ParseOptions(t *testing.T) {
	for name, tc := range map[string]struct {
		in      string
		expKeys []string
		expStr  string
		expErr  error
	}{
		"empty": {
			expStr: "",
		},
		"single": {
			in:      "filename=/dev/zvol/tank/vol",
			expKeys: []string{"filename"},
			expStr:  "filename=/dev/zvol/tank/vol",
		},
		"order preserved": {
			in:      "read_only=1;blocksize=4096;filename=/dev/sdb",
			expKeys: []string{"read_only", "blocksize", "filename"},
			expStr:  "read_only=1;blocksize=4096;filename=/dev/sdb",
		},
		"empty tokens and padding ignored": {
			in:      " read_only=1 ;; nv_cache=0;",
			expKeys: []string{"read_only", "nv_cache"},
			expStr:  "read_only=1;nv_cache=0",
		},
		"later value wins": {
			in:      "read_only=0;read_only=1",
			expKeys: []string{"read_only"},
			expStr:  "read_only=1",
		},
		"empty value": {
			in:      "tst=",
			expKeys: []string{"tst"},
			expStr:  "tst=",
		},
		"missing assignment": {
			in:     "read_only",
			expErr: ErrInvalidArgument,
		},
		"empty key": {
			in:     "=1",
			expErr: ErrInvalidArgument,
		},
		"space in value": {
			in:     "filename=/dev/my disk",
			expErr: ErrInvalidArgument,
		},
	} {
		t.Run(name, func(t *testing.T) {
			opts, err := ParseOptions(tc.in)
			test.CmpErr(t, tc.expErr, err)
			if tc.expErr != nil {
				return
			}

			if diff := cmp.Diff(tc.expKeys, opts.Keys()); diff != "" {
				t.Fatalf("unexpected keys (-want, +got):\n%s\n", diff)
			}
			test.AssertEqual(t, tc.expStr, opts.String(), "unexpected string form")
		})
	}
}

func TestScst_Options(t *testing.T) {
	var zero Options
	test.AssertEqual(t, 0, zero.Len(), "zero value should be empty")
	test.AssertEqual(t, "", zero.String(), "zero value should render empty")
	test.AssertFalse(t, zero.Has("read_only"), "zero value should have no keys")
	test.AssertTrue(t, zero.Equal(Options{}), "zero values should be equal")

	opts := NewOptions("read_only", "1", "nv_cache")
	if val, found := opts.Get("nv_cache"); !found || val != "" {
		t.Fatalf("trailing key: got %q, %t", val, found)
	}

	merged := NewOptions("filename", "/dev/sdb").Merge(opts)
	test.AssertEqual(t, "filename=/dev/sdb;read_only=1;nv_cache=", merged.String(), "merge order")
	test.AssertEqual(t, 2, opts.Len(), "merge must not modify its argument")

	merged.Delete("read_only")
	merged.Delete("missing")
	test.AssertEqual(t, "filename=/dev/sdb;nv_cache=", merged.String(), "after delete")

	reordered := NewOptions("nv_cache", "", "filename", "/dev/sdb")
	test.AssertTrue(t, merged.Equal(reordered), "equality ignores order")
	if diff := cmp.Diff(merged, reordered); diff != "" {
		t.Fatalf("cmp should use Equal (-want, +got):\n%s\n", diff)
	}

	test.AssertEqual(t, map[string]string{"filename": "/dev/sdb", "nv_cache": ""}, merged.Map(), "map form")
	test.AssertEqual(t, []string{"rotational"},
		NewOptions("read_only", "1", "rotational", "0").unknownKeys(knownLunOptions), "unknown keys")
}

func TestScst_Options_CopiesAreIndependent(t *testing.T) {
	orig := NewOptions("read_only", "1")

	added := orig
	added.Set("nv_cache", "1")
	test.AssertFalse(t, orig.Has("nv_cache"), "set on a copy leaked into the original")
	test.AssertEqual(t, 1, orig.Len(), "original length changed")
	test.AssertEqual(t, "read_only=1", orig.String(), "original rendering changed")
	test.AssertEqual(t, "read_only=1;nv_cache=1", added.String(), "copy after set")

	removed := orig
	removed.Delete("read_only")
	test.AssertTrue(t, orig.Has("read_only"), "delete on a copy leaked into the original")
	test.AssertEqual(t, "read_only=1", orig.String(), "original rendering changed")
	test.AssertEqual(t, 0, removed.Len(), "copy after delete")

	// Two copies growing from the same original must not share storage.
	a, b := orig, orig
	a.Set("rotational", "0")
	b.Set("thin_provisioned", "1")
	test.AssertEqual(t, "read_only=1;rotational=0", a.String(), "first copy")
	test.AssertEqual(t, "read_only=1;thin_provisioned=1", b.String(), "second copy")
}

func TestScst_Options_Validate(t *testing.T) {
	for name, tc := range map[string]struct {
		opts   Options
		expErr error
	}{
		"valid": {
			opts: NewOptions("IncomingUser", "joe", "allowed_portal", "10.0.0.*"),
		},
		"semicolon in value": {
			opts:   NewOptions("tst", "1;2"),
			expErr: ErrInvalidArgument,
		},
		"equals in key": {
			opts:   NewOptions("a=b", "1"),
			expErr: ErrInvalidArgument,
		},
		"newline in value": {
			opts:   NewOptions("tst", "1\n"),
			expErr: ErrInvalidArgument,
		},
	} {
		t.Run(name, func(t *testing.T) {
			err := tc.opts.Validate()
			test.CmpErr(t, tc.expErr, err)
			if tc.expErr != nil && !errors.Is(err, ErrInvalidArgument) {
				t.Fatalf("expected an InvalidArgument error, got %v", err)
			}
		})
	}
}
