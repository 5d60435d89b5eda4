//
// (C) Copyright 2024 Intel Corporation.
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//

package scst

import (
	"fmt"
	"os"
	"path"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/vine-io/scst/lib/sysfs"
)

const (
	mockDefaultVersion    = "3.7.0"
	mockDefaultDeviceSize = 1 << 30
	mockDefaultBlockSize  = "512"
	mockHandlerType       = "0 - Direct-access device (e.g., magnetic disk)"
)

type (
	// MockKernelConfig configures a MockKernel.
	MockKernelConfig struct {
		Version    string
		Handlers   []string
		NoIscsi    bool
		DeviceSize uint64
		// SyncErrors makes a rejected command fail the write itself
		// with the errno, in addition to the diagnostic node.
		SyncErrors bool
		// NumericResults reports failures in the diagnostic node as a
		// negative errno instead of message text.
		NumericResults bool
		// NoDiagnostic omits the diagnostic node from the tree.
		NoDiagnostic bool
		WriteErrors  map[string]error
		ReadErrors   map[string]error
		// ReadHook is called before every Read, without the kernel
		// lock held, to let tests change the tree mid-walk.
		ReadHook func(m *MockKernel, path string)
	}

	// MockWrite records a write made to a MockKernel.
	MockWrite struct {
		Path string
		Text string
	}

	// MockSession describes a session to be seeded into a MockKernel.
	MockSession struct {
		SID           string
		ThreadPID     string
		InitiatorName string
		Stats         *IOStat
		Connections   []Connection
	}

	// MockKernel is an in-memory SCST control tree which follows the
	// kernel's mgmt command grammar and refusal rules.
	MockKernel struct {
		sync.Mutex
		cfg     MockKernelConfig
		root    *mockNode
		nextTID uint64
		writes  []MockWrite
	}

	mockNode struct {
		name     string
		dir      bool
		link     string
		value    string
		key      bool
		write    func(cmd string) error
		children []*mockNode
	}

	kernelError struct {
		errno unix.Errno
		msg   string
	}
)

var _ sysfs.Tree = (*MockKernel)(nil)

func (e *kernelError) Error() string {
	return e.msg
}

func kerr(errno unix.Errno, format string, args ...interface{}) error {
	return &kernelError{errno: errno, msg: fmt.Sprintf(format, args...)}
}

func (n *mockNode) child(name string) *mockNode {
	for _, c := range n.children {
		if c.name == name {
			return c
		}
	}
	return nil
}

func (n *mockNode) add(c *mockNode) *mockNode {
	n.children = append(n.children, c)
	return c
}

func (n *mockNode) remove(name string) bool {
	for i, c := range n.children {
		if c.name == name {
			n.children = append(n.children[:i:i], n.children[i+1:]...)
			return true
		}
	}
	return false
}

func (n *mockNode) mkdir(name string) *mockNode {
	if c := n.child(name); c != nil {
		return c
	}
	return n.add(&mockNode{name: name, dir: true})
}

func (n *mockNode) attr(name, value string, key bool) *mockNode {
	if c := n.child(name); c != nil {
		c.value, c.key = value, key
		return c
	}
	return n.add(&mockNode{name: name, value: value, key: key})
}

func (n *mockNode) writable(name, value string, write func(string) error) *mockNode {
	c := n.attr(name, value, false)
	c.write = write
	return c
}

func (n *mockNode) symlink(name, target string) *mockNode {
	return n.add(&mockNode{name: name, link: target})
}

// NewMockKernel returns a MockKernel with the configured handlers and,
// unless disabled, the iscsi target driver.
func NewMockKernel(cfg *MockKernelConfig) *MockKernel {
	if cfg == nil {
		cfg = &MockKernelConfig{}
	}
	m := &MockKernel{
		cfg:     *cfg,
		root:    &mockNode{dir: true},
		nextTID: 1,
	}
	if m.cfg.Version == "" {
		m.cfg.Version = mockDefaultVersion
	}
	if len(m.cfg.Handlers) == 0 {
		m.cfg.Handlers = []string{"vdisk_blockio", "vdisk_fileio"}
	}
	if m.cfg.DeviceSize == 0 {
		m.cfg.DeviceSize = mockDefaultDeviceSize
	}

	m.root.attr(attrVersion, m.cfg.Version, false)
	if !m.cfg.NoDiagnostic {
		m.root.attr(diagnosticNode, "0", false)
	}

	handlers := m.root.mkdir(handlersDir)
	for _, name := range m.cfg.Handlers {
		h := handlers.mkdir(name)
		h.attr(attrHandlerType, mockHandlerType, false)
		h.writable(mgmtNode, "", m.handlerMgmt(name))
	}
	m.root.mkdir(devicesDir)

	targets := m.root.mkdir(targetsDir)
	if !m.cfg.NoIscsi {
		drv := targets.mkdir(iscsiDriverName)
		drv.writable(attrEnabled, valueEnabled, m.enabledWriter(driverPath(iscsiDriverName), "iscsi driver"))
		drv.attr(attrOpenState, "established", false)
		drv.attr(attrVersion, mockDefaultVersion, false)
		drv.writable(mgmtNode, "", m.driverMgmt(iscsiDriverName))
	}

	return m
}

func (m *MockKernel) lookup(p string, follow bool) *mockNode {
	return m.resolve(p, follow, 0)
}

func (m *MockKernel) resolve(p string, follow bool, depth int) *mockNode {
	if depth > 8 {
		return nil
	}

	cur := m.root
	p = strings.Trim(path.Clean(p), "/")
	if p == "." || p == "" {
		return cur
	}

	comps := strings.Split(p, "/")
	for i, comp := range comps {
		if cur.link != "" {
			if cur = m.resolve(cur.link, true, depth+1); cur == nil {
				return nil
			}
		}
		if cur = cur.child(comp); cur == nil {
			return nil
		}
		if i == len(comps)-1 && follow && cur.link != "" {
			return m.resolve(cur.link, true, depth+1)
		}
	}
	return cur
}

func pathError(op, p string, errno unix.Errno) error {
	return &os.PathError{Op: op, Path: p, Err: errno}
}

// Read implements sysfs.Tree.
func (m *MockKernel) Read(p string) (string, error) {
	if m.cfg.ReadHook != nil {
		m.cfg.ReadHook(m, p)
	}

	m.Lock()
	defer m.Unlock()

	if err, found := m.cfg.ReadErrors[p]; found {
		return "", err
	}

	n := m.lookup(p, true)
	switch {
	case n == nil:
		return "", pathError("open", p, unix.ENOENT)
	case n.dir:
		return "", pathError("read", p, unix.EISDIR)
	}

	text := n.value + "\n"
	if n.key {
		text += keyMarker + "\n"
	}
	return text, nil
}

// Write implements sysfs.Tree.
func (m *MockKernel) Write(p, text string) error {
	m.Lock()
	defer m.Unlock()

	m.writes = append(m.writes, MockWrite{Path: p, Text: text})
	if err, found := m.cfg.WriteErrors[p]; found {
		return err
	}

	n := m.lookup(p, true)
	switch {
	case n == nil:
		return pathError("open", p, unix.ENOENT)
	case n.dir:
		return pathError("open", p, unix.EISDIR)
	case n.write == nil:
		return pathError("open", p, unix.EACCES)
	}

	return m.report(p, n.write(strings.TrimSpace(text)))
}

func (m *MockKernel) report(p string, err error) error {
	diag := m.root.child(diagnosticNode)
	setDiag := func(val string) {
		if diag != nil {
			diag.value = val
		}
	}

	if err == nil {
		setDiag("0")
		return nil
	}

	ke, ok := err.(*kernelError)
	if !ok {
		ke = &kernelError{errno: unix.EINVAL, msg: err.Error()}
	}
	if m.cfg.NumericResults {
		setDiag(strconv.Itoa(-int(ke.errno)))
	} else {
		setDiag(ke.msg)
	}
	if m.cfg.SyncErrors {
		return pathError("write", p, ke.errno)
	}
	return nil
}

// List implements sysfs.Tree.
func (m *MockKernel) List(p string) ([]sysfs.Entry, error) {
	m.Lock()
	defer m.Unlock()

	n := m.lookup(p, true)
	switch {
	case n == nil:
		return nil, pathError("open", p, unix.ENOENT)
	case !n.dir:
		return nil, pathError("readdirent", p, unix.ENOTDIR)
	}

	entries := make([]sysfs.Entry, 0, len(n.children))
	for _, c := range n.children {
		entry := sysfs.Entry{Name: c.name}
		switch {
		case c.link != "":
			entry.Mode = os.ModeSymlink | 0777
			target := m.lookup(c.link, true)
			entry.Dir = target != nil && target.dir
		case c.dir:
			entry.Mode = os.ModeDir | 0755
			entry.Dir = true
		case c.write != nil:
			entry.Mode = 0644
		default:
			entry.Mode = 0444
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Readlink implements sysfs.Tree.
func (m *MockKernel) Readlink(p string) (string, error) {
	m.Lock()
	defer m.Unlock()

	n := m.lookup(p, false)
	switch {
	case n == nil:
		return "", pathError("readlink", p, unix.ENOENT)
	case n.link == "":
		return "", pathError("readlink", p, unix.EINVAL)
	}
	return "../../" + n.link, nil
}

// Exists implements sysfs.Tree.
func (m *MockKernel) Exists(p string) bool {
	m.Lock()
	defer m.Unlock()

	return m.lookup(p, true) != nil
}

// Writes returns every write made so far.
func (m *MockKernel) Writes() []MockWrite {
	m.Lock()
	defer m.Unlock()

	return append([]MockWrite(nil), m.writes...)
}

// Diagnostic returns the current contents of the diagnostic node.
func (m *MockKernel) Diagnostic() string {
	m.Lock()
	defer m.Unlock()

	if diag := m.root.child(diagnosticNode); diag != nil {
		return diag.value
	}
	return ""
}

// Set creates or updates an attribute node, as another actor might.
// The parent directory must exist.
func (m *MockKernel) Set(p, value string, key bool) error {
	m.Lock()
	defer m.Unlock()

	parent := m.lookup(path.Dir(p), true)
	if parent == nil || !parent.dir {
		return pathError("open", p, unix.ENOENT)
	}
	parent.attr(path.Base(p), value, key)
	return nil
}

// Remove deletes a node, as another actor might.
func (m *MockKernel) Remove(p string) error {
	m.Lock()
	defer m.Unlock()

	parent := m.lookup(path.Dir(p), true)
	if parent == nil || !parent.remove(path.Base(p)) {
		return pathError("remove", p, unix.ENOENT)
	}
	return nil
}

// AddSession seeds a session under the named iscsi target.
func (m *MockKernel) AddSession(target, name string, s MockSession) error {
	m.Lock()
	defer m.Unlock()

	tgt := m.lookup(targetPath(iscsiDriverName, target), true)
	if tgt == nil {
		return pathError("open", target, unix.ENOENT)
	}

	sess := tgt.mkdir(sessionsDir).mkdir(name)
	sess.attr(attrSID, s.SID, false)
	sess.attr(attrThreadPID, s.ThreadPID, false)
	sess.attr(attrInitiatorName, s.InitiatorName, false)
	stats := s.Stats
	if stats == nil {
		stats = new(IOStat)
	}
	for _, f := range ioStatFields {
		sess.attr(f.key, strconv.FormatUint(*f.field(stats), 10), false)
	}
	for _, c := range s.Connections {
		conn := sess.mkdir(c.Name)
		conn.attr(attrCID, c.CID, false)
		conn.attr(attrIP, c.IP, false)
		conn.attr(attrState, c.State, false)
		conn.attr(attrTargetIP, c.TargetIP, false)
	}
	return nil
}

func splitCommand(cmd string) (string, []string) {
	fields := strings.Fields(cmd)
	if len(fields) == 0 {
		return "", nil
	}
	return fields[0], fields[1:]
}

func parseMockParams(args []string) (Options, error) {
	opts, err := ParseOptions(strings.Join(args, ""))
	if err != nil {
		return opts, kerr(unix.EINVAL, "Invalid parameters %q", strings.Join(args, " "))
	}
	return opts, nil
}

func (m *MockKernel) handlerMgmt(handler string) func(string) error {
	return func(cmd string) error {
		verb, args := splitCommand(cmd)
		if len(args) < 1 {
			return kerr(unix.EINVAL, "Invalid command %q", cmd)
		}
		switch verb {
		case verbAddDevice:
			params, err := parseMockParams(args[1:])
			if err != nil {
				return err
			}
			return m.addDevice(handler, args[0], params)
		case verbDelDevice:
			return m.delDevice(handler, args[0])
		}
		return kerr(unix.EINVAL, "Unknown action %q", verb)
	}
}

func (m *MockKernel) addDevice(handler, name string, params Options) error {
	filename, found := params.Get(optionFilename)
	if !found || filename == "" {
		return kerr(unix.EINVAL, "Invalid parameters: filename required for device %s", name)
	}

	devices := m.root.child(devicesDir)
	if devices.child(name) != nil {
		return kerr(unix.EEXIST, "Device %s already exists", name)
	}

	dev := devices.mkdir(name)
	dev.symlink(linkHandler, handlerPath(handler))
	dev.attr(attrFilename, filename, true)
	dev.attr(attrSize, strconv.FormatUint(m.cfg.DeviceSize, 10), false)
	dev.attr(attrActive, valueEnabled, false)
	dev.attr(attrBlockSize, mockDefaultBlockSize, false)
	dev.attr(attrReadOnly, valueDisabled, false)
	for _, k := range params.Keys() {
		if k == optionFilename {
			continue
		}
		v, _ := params.Get(k)
		dev.attr(k, v, true)
	}

	m.lookup(handlerPath(handler), true).symlink(name, path.Join(devicesDir, name))
	return nil
}

func (m *MockKernel) deviceInUse(name string) bool {
	target := path.Join(devicesDir, name)
	inUse := func(luns *mockNode) bool {
		if luns == nil {
			return false
		}
		for _, lun := range luns.children {
			if link := lun.child(linkLunDevice); link != nil && link.link == target {
				return true
			}
		}
		return false
	}

	drivers := m.root.child(targetsDir)
	for _, drv := range drivers.children {
		for _, tgt := range drv.children {
			if !tgt.dir {
				continue
			}
			if inUse(tgt.child(lunsDir)) {
				return true
			}
			if groups := tgt.child(groupsDir); groups != nil {
				for _, grp := range groups.children {
					if inUse(grp.child(lunsDir)) {
						return true
					}
				}
			}
		}
	}
	return false
}

func (m *MockKernel) delDevice(handler, name string) error {
	h := m.lookup(handlerPath(handler), true)
	if h.child(name) == nil {
		return kerr(unix.ENOENT, "Device %s not found", name)
	}
	if m.deviceInUse(name) {
		return kerr(unix.EBUSY, "Device %s is in use", name)
	}

	h.remove(name)
	m.root.child(devicesDir).remove(name)
	return nil
}

func (m *MockKernel) enabledWriter(dir, what string) func(string) error {
	return func(cmd string) error {
		var want string
		switch cmd {
		case valueEnabled, valueDisabled:
			want = cmd
		default:
			return kerr(unix.EINVAL, "Invalid value %q for %s", cmd, what)
		}

		node := m.lookup(path.Join(dir, attrEnabled), true)
		if node.value == want {
			state := "enabled"
			if want == valueDisabled {
				state = "disabled"
			}
			return kerr(unix.EALREADY, "%s already %s", what, state)
		}
		node.value = want
		return nil
	}
}

func (m *MockKernel) driverMgmt(driver string) func(string) error {
	return func(cmd string) error {
		verb, args := splitCommand(cmd)
		drv := m.lookup(driverPath(driver), true)

		switch verb {
		case verbAddTarget:
			if len(args) < 1 {
				return kerr(unix.EINVAL, "Invalid command %q", cmd)
			}
			params, err := parseMockParams(args[1:])
			if err != nil {
				return err
			}
			return m.addTarget(driver, args[0], params)
		case verbDelTarget:
			if len(args) != 1 {
				return kerr(unix.EINVAL, "Invalid command %q", cmd)
			}
			return m.delTarget(driver, args[0])
		case verbAddTargetAttr, verbDelTargetAttr:
			if len(args) < 3 {
				return kerr(unix.EINVAL, "Invalid command %q", cmd)
			}
			tgt := drv.child(args[0])
			if tgt == nil || !tgt.dir {
				return kerr(unix.ENOENT, "Target %s not found", args[0])
			}
			return m.dynamicAttr(tgt, verb == verbAddTargetAttr, args[1], strings.Join(args[2:], " "))
		case verbAddAttr, verbDelAttr:
			if len(args) < 2 {
				return kerr(unix.EINVAL, "Invalid command %q", cmd)
			}
			return m.dynamicAttr(drv, verb == verbAddAttr, args[0], strings.Join(args[1:], " "))
		}
		return kerr(unix.EINVAL, "Unknown action %q", verb)
	}
}

func (m *MockKernel) dynamicAttr(dir *mockNode, add bool, attr, value string) error {
	cur := dir.child(attr)
	if add {
		if cur != nil && cur.value == value {
			return kerr(unix.EEXIST, "Attribute %s %s already exists", attr, value)
		}
		dir.attr(attr, value, true)
		return nil
	}
	if cur == nil || cur.value != value {
		return kerr(unix.ENOENT, "Attribute %s %s not found", attr, value)
	}
	dir.remove(attr)
	return nil
}

func (m *MockKernel) addTarget(driver, name string, params Options) error {
	drv := m.lookup(driverPath(driver), true)
	if drv.child(name) != nil {
		return kerr(unix.EEXIST, "Target %s already exists", name)
	}

	dir := targetPath(driver, name)
	tid := strconv.FormatUint(m.nextTID, 10)
	m.nextTID++

	tgt := drv.mkdir(name)
	tgt.attr(attrTID, tid, false)
	tgt.writable(attrRelTgtID, tid, m.relTgtIDWriter(dir, name))
	tgt.writable(attrEnabled, valueDisabled, m.enabledWriter(dir, "Target "+name))
	for _, k := range params.Keys() {
		v, _ := params.Get(k)
		tgt.attr(k, v, true)
	}
	tgt.mkdir(lunsDir).writable(mgmtNode, "", m.lunMgmt(path.Join(dir, lunsDir)))
	tgt.mkdir(groupsDir).writable(mgmtNode, "", m.groupMgmt(driver, name))
	tgt.mkdir(sessionsDir)
	return nil
}

func (m *MockKernel) delTarget(driver, name string) error {
	drv := m.lookup(driverPath(driver), true)
	tgt := drv.child(name)
	if tgt == nil || !tgt.dir {
		return kerr(unix.ENOENT, "Target %s not found", name)
	}
	if en := tgt.child(attrEnabled); en != nil && en.value == valueEnabled {
		return kerr(unix.EBUSY, "Target %s is busy: enabled", name)
	}
	drv.remove(name)
	return nil
}

func (m *MockKernel) relTgtIDWriter(dir, name string) func(string) error {
	return func(cmd string) error {
		if _, err := strconv.ParseUint(cmd, 10, 16); err != nil {
			return kerr(unix.EINVAL, "Invalid relative target id %q", cmd)
		}
		if en := m.lookup(path.Join(dir, attrEnabled), true); en.value == valueEnabled {
			return kerr(unix.EBUSY, "Target %s is busy: enabled", name)
		}
		m.lookup(path.Join(dir, attrRelTgtID), true).value = cmd
		return nil
	}
}

func (m *MockKernel) lunMgmt(dir string) func(string) error {
	return func(cmd string) error {
		verb, args := splitCommand(cmd)
		luns := m.lookup(dir, true)

		switch verb {
		case verbAdd, verbReplace:
			if len(args) < 2 {
				return kerr(unix.EINVAL, "Invalid command %q", cmd)
			}
			params, err := parseMockParams(args[2:])
			if err != nil {
				return err
			}
			return m.addLun(luns, verb == verbReplace, args[0], args[1], params)
		case verbDel:
			if len(args) != 1 {
				return kerr(unix.EINVAL, "Invalid command %q", cmd)
			}
			lun := luns.child(args[0])
			if lun == nil || !lun.dir {
				return kerr(unix.ENOENT, "LUN %s not found", args[0])
			}
			luns.remove(args[0])
			return nil
		case verbClear:
			kept := luns.children[:0]
			for _, c := range luns.children {
				if !c.dir {
					kept = append(kept, c)
				}
			}
			luns.children = kept
			return nil
		}
		return kerr(unix.EINVAL, "Unknown action %q", verb)
	}
}

func (m *MockKernel) addLun(luns *mockNode, replace bool, device, id string, params Options) error {
	if m.root.child(devicesDir).child(device) == nil {
		return kerr(unix.ENOENT, "Device %s not found", device)
	}
	n, err := strconv.ParseUint(id, 10, 64)
	if err != nil || n >= maxLunID {
		return kerr(unix.EINVAL, "Invalid LUN %q", id)
	}
	if luns.child(id) != nil {
		if !replace {
			return kerr(unix.EEXIST, "LUN %s already exists", id)
		}
		luns.remove(id)
	}

	lun := luns.mkdir(id)
	lun.symlink(linkLunDevice, path.Join(devicesDir, device))
	lun.attr(attrReadOnly, valueDisabled, false)
	for _, k := range params.Keys() {
		v, _ := params.Get(k)
		lun.attr(k, v, true)
	}
	return nil
}

func (m *MockKernel) groupMgmt(driver, target string) func(string) error {
	return func(cmd string) error {
		verb, args := splitCommand(cmd)
		if len(args) != 1 {
			return kerr(unix.EINVAL, "Invalid command %q", cmd)
		}
		groups := m.lookup(path.Join(targetPath(driver, target), groupsDir), true)
		name := args[0]

		switch verb {
		case verbCreate:
			if groups.child(name) != nil {
				return kerr(unix.EEXIST, "Group %s already exists", name)
			}
			dir := groupPath(driver, target, name)
			grp := groups.mkdir(name)
			grp.mkdir(lunsDir).writable(mgmtNode, "", m.lunMgmt(path.Join(dir, lunsDir)))
			grp.mkdir(initiatorsDir).writable(mgmtNode, "", m.initiatorMgmt(driver, target, name))
			return nil
		case verbDel:
			if grp := groups.child(name); grp == nil || !grp.dir {
				return kerr(unix.ENOENT, "Group %s not found", name)
			}
			groups.remove(name)
			return nil
		}
		return kerr(unix.EINVAL, "Unknown action %q", verb)
	}
}

func (m *MockKernel) initiatorMgmt(driver, target, group string) func(string) error {
	return func(cmd string) error {
		verb, args := splitCommand(cmd)
		groups := m.lookup(path.Join(targetPath(driver, target), groupsDir), true)
		inis := groups.child(group).child(initiatorsDir)

		switch verb {
		case verbAdd:
			if len(args) != 1 {
				return kerr(unix.EINVAL, "Invalid command %q", cmd)
			}
			for _, grp := range groups.children {
				if grp.dir && grp.child(initiatorsDir).child(args[0]) != nil {
					return kerr(unix.EEXIST, "Initiator %s already exists in group %s", args[0], grp.name)
				}
			}
			inis.attr(args[0], "", false)
			return nil
		case verbDel:
			if len(args) != 1 {
				return kerr(unix.EINVAL, "Invalid command %q", cmd)
			}
			if !inis.remove(args[0]) {
				return kerr(unix.ENOENT, "Initiator %s not found", args[0])
			}
			return nil
		case verbMove:
			if len(args) != 2 {
				return kerr(unix.EINVAL, "Invalid command %q", cmd)
			}
			dest := groups.child(args[1])
			if dest == nil || !dest.dir {
				return kerr(unix.ENOENT, "Group %s not found", args[1])
			}
			if inis.child(args[0]) == nil {
				return kerr(unix.ENOENT, "Initiator %s not found", args[0])
			}
			destInis := dest.child(initiatorsDir)
			if destInis.child(args[0]) != nil {
				return kerr(unix.EEXIST, "Initiator %s already exists in group %s", args[0], args[1])
			}
			inis.remove(args[0])
			destInis.attr(args[0], "", false)
			return nil
		case verbClear:
			kept := inis.children[:0]
			for _, c := range inis.children {
				if c.name == mgmtNode {
					kept = append(kept, c)
				}
			}
			inis.children = kept
			return nil
		}
		return kerr(unix.EINVAL, "Unknown action %q", verb)
	}
}
