//
// (C) Copyright 2021-2024 Intel Corporation.
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//

package sysfs

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"github.com/vine-io/scst/logging"
)

// ErrNoReadlink is returned when the underlying filesystem cannot
// resolve links.
var ErrNoReadlink = errors.New("filesystem does not support links")

// NewProvider creates a Provider over the host filesystem, rooted at
// root.
func NewProvider(log logging.Logger, root string) *Provider {
	return NewProviderWithFs(log, afero.NewOsFs(), root)
}

// NewProviderWithFs creates a Provider over the supplied filesystem.
func NewProviderWithFs(log logging.Logger, fs afero.Fs, root string) *Provider {
	return &Provider{
		log:  log,
		fs:   fs,
		root: root,
	}
}

// Provider implements Tree against an afero filesystem.
type Provider struct {
	log  logging.Logger
	fs   afero.Fs
	root string
}

var _ Tree = (*Provider)(nil)

// Root returns the filesystem path the provider is rooted at.
func (p *Provider) Root() string {
	return p.root
}

func (p *Provider) sysPath(treePath string) string {
	return filepath.Join(p.root, filepath.FromSlash(treePath))
}

// Read returns the full text of the node at treePath.
func (p *Provider) Read(treePath string) (string, error) {
	data, err := afero.ReadFile(p.fs, p.sysPath(treePath))
	if err != nil {
		return "", errors.Wrapf(err, "read %s", treePath)
	}
	p.log.Tracef("read %s: %q", treePath, data)

	return string(data), nil
}

// Write writes text to the node at treePath. The node is never created.
func (p *Provider) Write(treePath, text string) error {
	p.log.Tracef("echo %q > %s", text, treePath)

	f, err := p.fs.OpenFile(p.sysPath(treePath), os.O_WRONLY, 0)
	if err != nil {
		return errors.Wrapf(err, "open %s", treePath)
	}
	defer f.Close()

	n, err := f.WriteString(text)
	if err != nil {
		return errors.Wrapf(err, "write %s", treePath)
	}
	if n == 0 && len(text) > 0 {
		return errors.Errorf("write %s: zero bytes written", treePath)
	}

	return nil
}

// List returns the children of the directory at treePath, in the order
// the filesystem enumerates them.
func (p *Provider) List(treePath string) ([]Entry, error) {
	dirPath := p.sysPath(treePath)

	dir, err := p.fs.Open(dirPath)
	if err != nil {
		return nil, errors.Wrapf(err, "list %s", treePath)
	}
	defer dir.Close()

	infos, err := dir.Readdir(-1)
	if err != nil {
		return nil, errors.Wrapf(err, "list %s", treePath)
	}

	entries := make([]Entry, 0, len(infos))
	for _, fi := range infos {
		entry := Entry{
			Name: fi.Name(),
			Mode: fi.Mode(),
			Dir:  fi.IsDir(),
		}
		if entry.IsLink() {
			target, err := p.fs.Stat(filepath.Join(dirPath, fi.Name()))
			if err != nil {
				p.log.Tracef("list %s: dangling link %s: %s", treePath, fi.Name(), err)
			} else {
				entry.Dir = target.IsDir()
			}
		}
		entries = append(entries, entry)
	}

	return entries, nil
}

// Readlink returns the target of the link at treePath.
func (p *Provider) Readlink(treePath string) (string, error) {
	lr, ok := p.fs.(afero.LinkReader)
	if !ok {
		return "", errors.Wrapf(ErrNoReadlink, "readlink %s", treePath)
	}

	target, err := lr.ReadlinkIfPossible(p.sysPath(treePath))
	if err != nil {
		return "", errors.Wrapf(err, "readlink %s", treePath)
	}

	return target, nil
}

// Exists returns true if a node exists at treePath.
func (p *Provider) Exists(treePath string) bool {
	_, err := p.fs.Stat(p.sysPath(treePath))
	return err == nil
}
