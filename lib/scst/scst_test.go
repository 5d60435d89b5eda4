//
// (C) Copyright 2024 Intel Corporation.
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//

package scst

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/afero"
	"golang.org/x/sys/unix"

	"github.com/vine-io/scst/common/test"
	"github.com/vine-io/scst/fault"
	"github.com/vine-io/scst/fault/code"
	"github.com/vine-io/scst/logging"
)

const (
	testHandler   = "vdisk_blockio"
	testDevice    = "vol"
	testFilename  = "/dev/zvol/tank/vol"
	testTarget    = "iqn.2018-11.com.vine:vol"
	testInitiator = "iqn.1988-12.com.oracle:d4ebaa45254b"
)

func newTestScst(t *testing.T, log logging.Logger, cfg *MockKernelConfig) (*Scst, *MockKernel) {
	t.Helper()

	mk := NewMockKernel(cfg)
	s, err := New(log, mk)
	if err != nil {
		t.Fatal(err)
	}
	return s, mk
}

func mkTestFs(t *testing.T, root string) afero.Fs {
	t.Helper()

	fs := afero.NewMemMapFs()
	for _, dir := range []string{handlersDir, targetsDir} {
		if err := fs.MkdirAll(filepath.Join(root, dir), 0755); err != nil {
			t.Fatal(err)
		}
	}
	if err := afero.WriteFile(fs, filepath.Join(root, attrVersion), []byte("3.7.0\n"), 0444); err != nil {
		t.Fatal(err)
	}
	return fs
}

func TestScst_DetectRoot(t *testing.T) {
	for name, tc := range map[string]struct {
		fs      afero.Fs
		expRoot string
		expErr  error
	}{
		"no module": {
			fs:     afero.NewMemMapFs(),
			expErr: FaultNoModule,
		},
		"default root": {
			fs:      mkTestFs(t, defaultScstRoot),
			expRoot: defaultScstRoot,
		},
		"legacy root": {
			fs:      mkTestFs(t, legacyScstRoot),
			expRoot: legacyScstRoot,
		},
	} {
		t.Run(name, func(t *testing.T) {
			root, err := DetectRoot(tc.fs)
			test.CmpErr(t, tc.expErr, err)
			test.AssertEqual(t, tc.expRoot, root, "unexpected root")
		})
	}
}

func TestScst_InitWithFs(t *testing.T) {
	log, buf := logging.NewTestLogger(t.Name())
	defer test.ShowBufferOnFailure(t, buf)

	if _, err := InitWithFs(log, afero.NewMemMapFs()); !fault.IsFault(err) {
		t.Fatalf("expected a fault, got %v", err)
	}

	s, err := InitWithFs(log, mkTestFs(t, defaultScstRoot))
	if err != nil {
		t.Fatal(err)
	}
	test.AssertEqual(t, defaultScstRoot, s.Root(), "unexpected root")
	test.AssertEqual(t, "3.7.0", s.Version(), "unexpected version")
	test.AssertEqual(t, 0, len(s.Handlers()), "expected no handlers")

	_, err = s.ISCSI()
	test.CmpErr(t, FaultNoIscsiDriver, err)
}

func TestScst_New_BadRoot(t *testing.T) {
	log, buf := logging.NewTestLogger(t.Name())
	defer test.ShowBufferOnFailure(t, buf)

	mk := NewMockKernel(nil)
	if err := mk.Remove(targetsDir); err != nil {
		t.Fatal(err)
	}

	_, err := New(log, mk)
	f, ok := err.(*fault.Fault)
	if !ok {
		t.Fatalf("expected a fault, got %v", err)
	}
	test.AssertEqual(t, code.ScstBadRoot, f.Code, "unexpected fault code")
}

func TestScst_Refresh(t *testing.T) {
	log, buf := logging.NewTestLogger(t.Name())
	defer test.ShowBufferOnFailure(t, buf)

	s, _ := newTestScst(t, log, &MockKernelConfig{Version: "3.8.0-pre"})

	test.AssertEqual(t, "3.8.0-pre", s.Version(), "unexpected version")

	var names []string
	for _, h := range s.Handlers() {
		names = append(names, h.Name)
		test.AssertEqual(t, mockHandlerType, h.Type, "unexpected handler type")
		test.AssertEqual(t, 0, len(h.Devices()), "expected no devices")
	}
	test.AssertEqual(t, []string{"vdisk_blockio", "vdisk_fileio"}, names, "unexpected handlers")

	iscsi, err := s.ISCSI()
	if err != nil {
		t.Fatal(err)
	}
	test.AssertTrue(t, iscsi.Enabled, "iscsi driver should be enabled")
	test.AssertEqual(t, "established", iscsi.OpenState, "unexpected open state")
	test.AssertEqual(t, 0, len(iscsi.Targets()), "expected no targets")

	_, err = s.Handler("dev_disk")
	test.CmpErr(t, ErrNotFound, err)
}

// Adding a device writes a single add_device command and the device is
// then listed under its handler.
func TestScst_AddDevice(t *testing.T) {
	log, buf := logging.NewTestLogger(t.Name())
	defer test.ShowBufferOnFailure(t, buf)

	s, mk := newTestScst(t, log, nil)

	dev, err := s.AddDevice(testHandler, testDevice, testFilename, Options{})
	if err != nil {
		t.Fatal(err)
	}

	expDev := &Device{
		Name:      testDevice,
		Handler:   testHandler,
		Filename:  testFilename,
		Size:      mockDefaultDeviceSize,
		BlockSize: 512,
		Active:    true,
	}
	if diff := cmp.Diff(expDev, dev); diff != "" {
		t.Fatalf("unexpected device (-want, +got):\n%s\n", diff)
	}

	expWrites := []MockWrite{
		{Path: "handlers/vdisk_blockio/mgmt", Text: "add_device vol filename=/dev/zvol/tank/vol\n"},
	}
	if diff := cmp.Diff(expWrites, mk.Writes()); diff != "" {
		t.Fatalf("unexpected writes (-want, +got):\n%s\n", diff)
	}

	h, err := s.Handler(testHandler)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := h.Device(testDevice); err != nil {
		t.Fatal(err)
	}
	found, err := s.FindDevice(testDevice)
	if err != nil {
		t.Fatal(err)
	}
	test.AssertEqual(t, testFilename, found.Filename, "FindDevice returned the wrong device")
	test.AssertTrue(t, len(dev.String()) > 0, "device should render")

	_, err = s.AddDevice(testHandler, testDevice, "/dev/sdb", Options{})
	test.CmpErr(t, ErrAlreadyExists, err)
	_, err = s.AddDevice("vdisk_fileio", testDevice, "/tmp/vol.img", Options{})
	test.CmpErr(t, ErrAlreadyExists, err)
	test.AssertEqual(t, 1, len(mk.Writes()), "duplicate add should not reach the kernel")
}

func TestScst_AddDevice_Options(t *testing.T) {
	log, buf := logging.NewTestLogger(t.Name())
	defer test.ShowBufferOnFailure(t, buf)

	s, mk := newTestScst(t, log, nil)

	opts := NewOptions("read_only", "1", "blocksize", "4096", "rotational", "0")
	dev, err := s.AddDevice(testHandler, testDevice, testFilename, opts)
	if err != nil {
		t.Fatal(err)
	}

	test.AssertTrue(t, dev.ReadOnly, "device should be read-only")
	test.AssertEqual(t, uint64(4096), dev.BlockSize, "unexpected block size")
	if diff := cmp.Diff(opts, dev.Attributes); diff != "" {
		t.Fatalf("unexpected attributes (-want, +got):\n%s\n", diff)
	}
	test.AssertEqual(t,
		"add_device vol filename=/dev/zvol/tank/vol;read_only=1;blocksize=4096;rotational=0\n",
		mk.Writes()[0].Text, "unexpected command")
}

func TestScst_RemoveDevice(t *testing.T) {
	log, buf := logging.NewTestLogger(t.Name())
	defer test.ShowBufferOnFailure(t, buf)

	s, mk := newTestScst(t, log, nil)

	if _, err := s.AddDevice(testHandler, testDevice, testFilename, Options{}); err != nil {
		t.Fatal(err)
	}
	if err := s.RemoveDevice(testHandler, testDevice); err != nil {
		t.Fatal(err)
	}

	h, _ := s.Handler(testHandler)
	test.AssertEqual(t, 0, len(h.Devices()), "device should be gone")
	test.AssertFalse(t, mk.Exists("devices/vol"), "device should be gone from the tree")

	// the kernel reports the unknown device
	test.CmpErr(t, ErrNotFound, s.RemoveDevice(testHandler, testDevice))
}

// A device mapped to a LUN cannot be removed and stays listed.
func TestScst_RemoveDevice_Mapped(t *testing.T) {
	for name, cfg := range map[string]*MockKernelConfig{
		"diagnostic text":  {},
		"diagnostic errno": {NumericResults: true},
		"write errno":      {SyncErrors: true},
	} {
		t.Run(name, func(t *testing.T) {
			log, buf := logging.NewTestLogger(t.Name())
			defer test.ShowBufferOnFailure(t, buf)

			s, _ := newTestScst(t, log, cfg)
			if _, err := s.AddDevice(testHandler, testDevice, testFilename, Options{}); err != nil {
				t.Fatal(err)
			}
			iscsi, _ := s.ISCSI()
			tgt, err := iscsi.AddTarget(testTarget, Options{})
			if err != nil {
				t.Fatal(err)
			}
			if _, err := tgt.AddLun(testDevice, 0, Options{}); err != nil {
				t.Fatal(err)
			}

			err = s.RemoveDevice(testHandler, testDevice)
			test.CmpErr(t, ErrBusy, err)

			h, _ := s.Handler(testHandler)
			if _, err := h.Device(testDevice); err != nil {
				t.Fatalf("device should still be listed: %s", err)
			}
			if err := h.RefreshDevices(); err != nil {
				t.Fatal(err)
			}
			if _, err := h.Device(testDevice); err != nil {
				t.Fatalf("device should still exist: %s", err)
			}
		})
	}
}

func TestScst_InvalidArguments(t *testing.T) {
	log, buf := logging.NewTestLogger(t.Name())
	defer test.ShowBufferOnFailure(t, buf)

	s, mk := newTestScst(t, log, nil)
	iscsi, _ := s.ISCSI()

	for name, op := range map[string]func() error{
		"device name with slash": func() error {
			_, err := s.AddDevice(testHandler, "tank/vol", testFilename, Options{})
			return err
		},
		"empty filename": func() error {
			_, err := s.AddDevice(testHandler, testDevice, "", Options{})
			return err
		},
		"filename as option": func() error {
			_, err := s.AddDevice(testHandler, testDevice, testFilename, NewOptions("filename", "/dev/sdb"))
			return err
		},
		"option value with separator": func() error {
			_, err := s.AddDevice(testHandler, testDevice, testFilename, NewOptions("tst", "1;2"))
			return err
		},
		"target not an iqn": func() error {
			_, err := iscsi.AddTarget("target0", Options{})
			return err
		},
		"remove target not an iqn": func() error {
			return iscsi.RemoveTarget("target0")
		},
		"driver attribute without value": func() error {
			return iscsi.AddAttribute("IncomingUser", "")
		},
	} {
		t.Run(name, func(t *testing.T) {
			test.CmpErr(t, ErrInvalidArgument, op())
		})
	}

	test.AssertEqual(t, 0, len(mk.Writes()), "invalid requests should not reach the kernel")
}

func TestScst_WriteFailures(t *testing.T) {
	for name, tc := range map[string]struct {
		cfg    *MockKernelConfig
		expErr error
	}{
		"permission denied": {
			cfg: &MockKernelConfig{
				WriteErrors: map[string]error{
					"handlers/vdisk_blockio/mgmt": &os.PathError{Op: "write", Path: "mgmt", Err: unix.EACCES},
				},
			},
			expErr: ErrPermissionDenied,
		},
		"mgmt node vanished": {
			cfg: &MockKernelConfig{
				WriteErrors: map[string]error{
					"handlers/vdisk_blockio/mgmt": &os.PathError{Op: "open", Path: "mgmt", Err: unix.ENOENT},
				},
			},
			expErr: ErrNotFound,
		},
		"unexpected errno": {
			cfg: &MockKernelConfig{
				WriteErrors: map[string]error{
					"handlers/vdisk_blockio/mgmt": &os.PathError{Op: "write", Path: "mgmt", Err: unix.ENOMEM},
				},
			},
			expErr: ErrKernelRejected,
		},
		"no diagnostic node": {
			cfg: &MockKernelConfig{NoDiagnostic: true},
		},
	} {
		t.Run(name, func(t *testing.T) {
			log, buf := logging.NewTestLogger(t.Name())
			defer test.ShowBufferOnFailure(t, buf)

			s, _ := newTestScst(t, log, tc.cfg)

			_, err := s.AddDevice(testHandler, testDevice, testFilename, Options{})
			test.CmpErr(t, tc.expErr, err)
		})
	}
}

// A device which disappears while its handler is being walked is left
// out of the listing rather than failing the refresh.
func TestScst_RefreshSkipsVanishedDevice(t *testing.T) {
	log, buf := logging.NewTestLogger(t.Name())
	defer test.ShowBufferOnFailure(t, buf)

	var removed bool
	mk := NewMockKernel(&MockKernelConfig{
		ReadHook: func(m *MockKernel, p string) {
			if removed || p != "handlers/vdisk_blockio/gone/filename" {
				return
			}
			removed = true
			if err := m.Remove("handlers/vdisk_blockio/gone"); err != nil {
				t.Error(err)
			}
			if err := m.Remove("devices/gone"); err != nil {
				t.Error(err)
			}
		},
	})
	for _, cmd := range []string{
		"add_device vol filename=/dev/zvol/tank/vol",
		"add_device gone filename=/dev/zvol/tank/gone",
	} {
		if err := mk.Write("handlers/vdisk_blockio/mgmt", cmd); err != nil {
			t.Fatal(err)
		}
	}

	s, err := New(log, mk)
	if err != nil {
		t.Fatal(err)
	}
	test.AssertTrue(t, removed, "read hook did not fire")

	h, _ := s.Handler(testHandler)
	var names []string
	for _, dev := range h.Devices() {
		names = append(names, dev.Name)
	}
	test.AssertEqual(t, []string{"vol"}, names, "vanished device should be skipped")
}

func TestScst_RefreshParseError(t *testing.T) {
	log, buf := logging.NewTestLogger(t.Name())
	defer test.ShowBufferOnFailure(t, buf)

	s, mk := newTestScst(t, log, nil)
	if _, err := s.AddDevice(testHandler, testDevice, testFilename, Options{}); err != nil {
		t.Fatal(err)
	}
	if err := mk.Set("devices/vol/size", "huge", false); err != nil {
		t.Fatal(err)
	}

	test.CmpErr(t, ErrParse, s.Refresh())
}
