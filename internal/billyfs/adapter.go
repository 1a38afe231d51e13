// Copyright 2024 LatentFS Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package billyfs exposes a mounted xipfs volume as a go-billy
// billy.Filesystem, so tooling written against that interface (go-git
// checkouts, the NFS export in internal/netexport) can read and write
// through the Driver without knowing anything about flash pages or
// file directory records.
package billyfs

import (
	"errors"
	"os"
	"path"
	"time"

	"github.com/go-git/go-billy/v5"

	"xipfs/internal/vfs"
)

// ErrNotSupported is returned by operations xipfs has no equivalent
// for (symlinks, truncate).
var ErrNotSupported = errors.New("billyfs: not supported")

// Adapter adapts a mounted Driver to billy.Filesystem.
type Adapter struct {
	d   *vfs.Driver
	uid uint32
	gid uint32
}

// New wraps a mounted Driver.
func New(d *vfs.Driver) *Adapter {
	return &Adapter{d: d, uid: uint32(os.Getuid()), gid: uint32(os.Getgid())}
}

func (a *Adapter) Create(filename string) (billy.File, error) {
	return a.OpenFile(filename, os.O_CREATE|os.O_RDWR|os.O_TRUNC, 0644)
}

func (a *Adapter) Open(filename string) (billy.File, error) {
	return a.OpenFile(filename, os.O_RDONLY, 0)
}

func (a *Adapter) OpenFile(filename string, flag int, perm os.FileMode) (billy.File, error) {
	if flag&os.O_CREATE != 0 {
		if err := a.d.NewFile(filename, 0, false); err != nil && err != vfs.EEXIST {
			return nil, err
		}
	}
	h, err := a.d.Open(filename, flag)
	if err != nil {
		return nil, err
	}
	return &File{adapter: a, handle: h, name: filename, flags: flag}, nil
}

func (a *Adapter) Stat(filename string) (os.FileInfo, error) {
	info, err := a.d.Stat(filename)
	if err != nil {
		return nil, err
	}
	return &FileInfo{name: path.Base(filename), info: info, adapter: a}, nil
}

// Lstat is identical to Stat: xipfs has no symlinks to distinguish.
func (a *Adapter) Lstat(filename string) (os.FileInfo, error) {
	return a.Stat(filename)
}

func (a *Adapter) Rename(oldpath, newpath string) error {
	return a.d.Rename(oldpath, newpath)
}

func (a *Adapter) Remove(filename string) error {
	info, err := a.d.Stat(filename)
	if err != nil {
		return err
	}
	if info.IsDir {
		return a.d.Rmdir(filename)
	}
	return a.d.Unlink(filename)
}

func (a *Adapter) Join(elem ...string) string {
	return path.Join(elem...)
}

// TempFile is not supported: xipfs has no concept of an anonymous
// scratch file outside the page-aligned allocation path.
func (a *Adapter) TempFile(dir, prefix string) (billy.File, error) {
	return nil, os.ErrInvalid
}

func (a *Adapter) ReadDir(dirname string) ([]os.FileInfo, error) {
	h, err := a.d.Opendir(dirname)
	if err != nil {
		return nil, err
	}
	defer a.d.Closedir(h)

	var result []os.FileInfo
	for {
		e, err := a.d.Readdir(h)
		if err != nil {
			return nil, err
		}
		if e == nil {
			break
		}
		result = append(result, &FileInfo{name: e.Name, dirent: e, adapter: a})
	}
	return result, nil
}

func (a *Adapter) MkdirAll(filename string, perm os.FileMode) error {
	for _, p := range intermediatePaths(filename) {
		if err := a.d.Mkdir(p); err != nil && err != vfs.EEXIST {
			return err
		}
	}
	return nil
}

// intermediatePaths returns "/a", "/a/b", "/a/b/c" for "/a/b/c".
func intermediatePaths(filename string) []string {
	clean := path.Clean("/" + filename)
	var out []string
	cur := ""
	for _, part := range splitNonEmpty(clean) {
		cur += "/" + part
		out = append(out, cur)
	}
	return out
}

func splitNonEmpty(p string) []string {
	var parts []string
	start := 0
	for i := 0; i < len(p); i++ {
		if p[i] == '/' {
			if i > start {
				parts = append(parts, p[start:i])
			}
			start = i + 1
		}
	}
	if start < len(p) {
		parts = append(parts, p[start:])
	}
	return parts
}

// xipfs has no symlinks.
func (a *Adapter) Symlink(target, link string) error {
	return ErrNotSupported
}

func (a *Adapter) Readlink(link string) (string, error) {
	return "", ErrNotSupported
}

// Chroot is not supported: a mounted Driver is a single flat volume,
// not a tree that can be re-rooted.
func (a *Adapter) Chroot(p string) (billy.Filesystem, error) {
	return nil, os.ErrInvalid
}

func (a *Adapter) Root() string {
	return "/"
}

// Chmod is a no-op: xipfs tracks an exec bit, not full POSIX
// permission bits, and Exec is set at creation time via new_file.
func (a *Adapter) Chmod(name string, mode os.FileMode) error {
	return nil
}

func (a *Adapter) Lchown(name string, uid, gid int) error          { return nil }
func (a *Adapter) Chown(name string, uid, gid int) error           { return nil }
func (a *Adapter) Chtimes(name string, atime, mtime time.Time) error { return nil }

func (a *Adapter) Capabilities() billy.Capability {
	return billy.WriteCapability | billy.ReadCapability |
		billy.ReadAndWriteCapability | billy.SeekCapability
}
