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

// Package vfs implements the Driver: the POSIX-shaped adapter that
// wires the File Directory, File Object, and Path Classifier together
// behind a single global lock, the way every caller (CLI, billy
// adapter, NFS export) reaches a mounted volume.
package vfs

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"xipfs/internal/common"
	"xipfs/internal/execengine"
	"xipfs/internal/flash"
	"xipfs/internal/fsdir"
	"xipfs/internal/pagebuf"
	"xipfs/internal/pathclass"
	"xipfs/internal/xfile"
)

// infoPath is the virtual file every mount answers stat/open/read on
// without it ever existing as a file directory record.
const infoPath = "/.xipfs_infos"

// FileInfo is the POSIX-shaped metadata stat/fstat returns.
type FileInfo struct {
	Path     string
	Size     uint32
	Reserved uint32
	Exec     bool
	IsDir    bool
}

// Dirent is one entry yielded by ReadDir.
type Dirent struct {
	Name  string
	IsDir bool
}

// VFSStat is the result of statvfs: block accounting in units of one
// erase page.
type VFSStat struct {
	PageSize   int
	Blocks     int
	BlocksFree int
}

// Driver is a mounted xipfs volume. It holds the single global mutex
// the whole spec's concurrency model is built on: every operation
// below takes it for its entire duration, the File Directory and
// File Object beneath it do no locking of their own.
type Driver struct {
	mu sync.Mutex

	dev *flash.Device
	buf *pagebuf.Buffer
	dir *fsdir.Directory

	handles     *HandleManager
	files       map[HandleID]*xfile.File
	dirListings map[HandleID][]Dirent

	registry *execengine.Registry

	hostLock  *flock.Flock
	imagePath string
	mountID   uuid.UUID
}

// Mount opens the image file at imagePath with the given geometry,
// takes the host-level advisory lock (so a second process cannot open
// the same image concurrently — the spec's single global lock
// extended across the process boundary a host build introduces), and
// returns a ready Driver.
func Mount(imagePath string, geo flash.Geometry) (*Driver, error) {
	fl := flock.New(imagePath + ".lock")
	locked, err := fl.TryLock()
	if err != nil {
		return nil, err
	}
	if !locked {
		return nil, common.ErrMountLocked
	}

	dev, err := flash.Open(imagePath, 0, geo)
	if err != nil {
		_ = fl.Unlock()
		return nil, err
	}

	buf := pagebuf.New(dev)
	d := &Driver{
		dev:         dev,
		buf:         buf,
		dir:         fsdir.New(dev, buf),
		handles:     NewHandleManager(),
		files:       make(map[HandleID]*xfile.File),
		dirListings: make(map[HandleID][]Dirent),
		registry:    execengine.NewRegistry(),
		hostLock:    fl,
		imagePath:   imagePath,
		mountID:     uuid.New(),
	}
	log.WithFields(log.Fields{"image": imagePath, "mount_id": d.mountID}).Debug("vfs: mounted")
	return d, nil
}

// Registry returns the mount's syscall-dispatch registry so a caller
// (typically the CLI's run/exec commands) can register entry points
// for executables before calling Execv.
func (d *Driver) Registry() *execengine.Registry { return d.registry }

// MountID returns the diagnostic UUID tagging this open mount.
func (d *Driver) MountID() uuid.UUID { return d.mountID }

// Close flushes any pending page, releases the host-level lock, and
// closes the backing image.
func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handles.Clear()
	if err := d.buf.Flush(); err != nil {
		log.WithError(err).Warn("vfs: flush on close failed")
	}
	if err := d.hostLock.Unlock(); err != nil {
		log.WithError(err).Warn("vfs: host lock release failed")
	}
	return d.dev.Close()
}

// Format erases the entire mount and invalidates every open handle,
// matching fmtbin's original scope.
func (d *Driver) Format() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := d.handles.Clear()
	d.files = make(map[HandleID]*xfile.File)
	d.dirListings = make(map[HandleID][]Dirent)
	if n > 0 {
		log.WithField("count", n).Debug("vfs: format invalidated open handles")
	}
	return ToErrno(d.dir.Format())
}

// NewFile reserves a new file record for path with the given byte
// size and executable bit, the XIPFS-specific operation alongside the
// POSIX surface.
func (d *Driver) NewFile(path string, size int, exec bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	c, err := pathclass.Classify(d.dir, path)
	if err != nil {
		return ToErrno(err)
	}
	switch c.Info {
	case pathclass.Creatable:
		_, err := d.dir.NewFile(path, size, exec)
		return ToErrno(err)
	case pathclass.ExistsAsFile, pathclass.ExistsAsEmptyDir, pathclass.ExistsAsNonEmptyDir:
		return EEXIST
	case pathclass.InvalidBecauseNotDirs:
		return ENOTDIR
	default:
		return ENOENT
	}
}

// Open opens path and returns a handle. flags are stored on the handle
// but not checked: every handle can read and write, whatever access
// mode flags names. It never creates a file: new_file is the only
// allocation path, matching the spec's split between new_file and open.
func (d *Driver) Open(path string, flags int) (HandleID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if path == infoPath {
		return d.handles.Allocate(-1, infoPath, false, flags), nil
	}

	c, err := pathclass.Classify(d.dir, path)
	if err != nil {
		return 0, ToErrno(err)
	}
	switch c.Info {
	case pathclass.ExistsAsFile:
		h := d.handles.Allocate(c.Witness.Addr, path, false, flags)
		d.files[h] = xfile.Open(d.buf, c.Witness)
		return h, nil
	case pathclass.ExistsAsEmptyDir, pathclass.ExistsAsNonEmptyDir:
		return 0, EISDIR
	default:
		return 0, ENOENT
	}
}

// CloseFile releases an open file handle.
func (d *Driver) CloseFile(h HandleID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.files, h)
	d.handles.Release(h)
	return nil
}

func (d *Driver) infoContent() []byte {
	free, _ := d.dir.FreePages()
	payload := struct {
		MountID    string `json:"mount_id"`
		Image      string `json:"image"`
		PageSize   int    `json:"page_size"`
		PageCount  int    `json:"page_count"`
		FreePages  int    `json:"free_pages"`
		PathMax    int    `json:"path_max"`
	}{
		MountID:   d.mountID.String(),
		Image:     d.imagePath,
		PageSize:  d.dev.PageSize,
		PageCount: d.dev.PageCount,
		FreePages: free,
		PathMax:   fsdir.PathMax,
	}
	out, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return []byte(fmt.Sprintf("{\"error\":%q}", err.Error()))
	}
	return append(out, '\n')
}

// Read reads from a file handle at its current cursor and advances it.
func (d *Driver) Read(h HandleID, dest []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	info, ok := d.handles.Get(h)
	if !ok {
		return 0, EBADF
	}
	if info.isDir {
		return 0, EISDIR
	}

	if info.path == infoPath {
		content := d.infoContent()
		if int(info.pos) >= len(content) {
			return 0, nil
		}
		n := copy(dest, content[info.pos:])
		d.handles.Seek(h, info.pos+int64(n))
		return n, nil
	}

	f, ok := d.files[h]
	if !ok {
		return 0, EBADF
	}
	n, err := f.ReadAt(dest, info.pos)
	if err != nil {
		return n, ToErrno(err)
	}
	d.handles.Seek(h, info.pos+int64(n))
	return n, nil
}

// Write writes to a file handle at its current cursor and advances it.
func (d *Driver) Write(h HandleID, src []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	info, ok := d.handles.Get(h)
	if !ok {
		return 0, EBADF
	}
	if info.isDir {
		return 0, EISDIR
	}
	if info.path == infoPath {
		return 0, EROFS
	}

	f, ok := d.files[h]
	if !ok {
		return 0, EBADF
	}
	n, err := f.WriteAt(src, info.pos)
	if err != nil {
		return n, ToErrno(err)
	}
	d.handles.Seek(h, info.pos+int64(n))
	return n, nil
}

// Seek values, matching lseek's whence argument.
const (
	SeekStart   = 0
	SeekCurrent = 1
	SeekEnd     = 2
)

// Seek repositions a file handle's read/write cursor.
func (d *Driver) Seek(h HandleID, offset int64, whence int) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	info, ok := d.handles.Get(h)
	if !ok {
		return 0, EBADF
	}
	if info.isDir {
		return 0, EISDIR
	}

	var base int64
	switch whence {
	case SeekStart:
		base = 0
	case SeekCurrent:
		base = info.pos
	case SeekEnd:
		if info.path == infoPath {
			base = int64(len(d.infoContent()))
		} else if f, ok := d.files[h]; ok {
			base = int64(f.Size())
		}
	default:
		return 0, EINVAL
	}
	newPos := base + offset
	if newPos < 0 {
		return 0, EINVAL
	}
	d.handles.Seek(h, newPos)
	return newPos, nil
}

func recordToInfo(path string, r *fsdir.Record, isDir bool) *FileInfo {
	if isDir {
		return &FileInfo{Path: path, IsDir: true}
	}
	return &FileInfo{
		Path:     path,
		Size:     r.CurrentSize(),
		Reserved: r.Reserved,
		Exec:     r.Exec == 1,
		IsDir:    false,
	}
}

// Stat classifies path and reports its metadata without requiring it
// to be open.
func (d *Driver) Stat(path string) (*FileInfo, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if path == infoPath {
		return &FileInfo{Path: infoPath, Size: uint32(len(d.infoContent()))}, nil
	}

	c, err := pathclass.Classify(d.dir, path)
	if err != nil {
		return nil, ToErrno(err)
	}
	switch c.Info {
	case pathclass.ExistsAsFile:
		return recordToInfo(c.Path, c.Witness, false), nil
	case pathclass.ExistsAsEmptyDir, pathclass.ExistsAsNonEmptyDir:
		return recordToInfo(c.Path, c.Witness, true), nil
	default:
		return nil, ENOENT
	}
}

// Fstat reports metadata for an already-open handle.
func (d *Driver) Fstat(h HandleID) (*FileInfo, error) {
	d.mu.Lock()
	info, ok := d.handles.Get(h)
	d.mu.Unlock()
	if !ok {
		return nil, EBADF
	}
	return d.Stat(info.path)
}

// Statvfs reports whole-mount block accounting.
func (d *Driver) Statvfs() (*VFSStat, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	free, err := d.dir.FreePages()
	if err != nil {
		return nil, ToErrno(err)
	}
	return &VFSStat{
		PageSize:   d.dev.PageSize,
		Blocks:     d.dev.PageCount,
		BlocksFree: free,
	}, nil
}

// Unlink removes a file record. If doing so would orphan its parent
// directory (no other record shares the parent's path prefix and the
// parent is not mount root), a sentinel empty-dir record is created in
// its place so the parent continues to exist.
func (d *Driver) Unlink(path string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	c, err := pathclass.Classify(d.dir, path)
	if err != nil {
		return ToErrno(err)
	}
	switch c.Info {
	case pathclass.ExistsAsFile:
		orphan := c.Parent == 1 && c.Dirname != "/"
		if err := d.dir.Remove(c.Witness); err != nil {
			return ToErrno(err)
		}
		if orphan {
			if _, err := d.dir.NewFile(c.Dirname, 0, false); err != nil {
				log.WithError(err).WithField("dir", c.Dirname).Warn("vfs: could not preserve orphaned parent directory")
				return ToErrno(err)
			}
		}
		return nil
	case pathclass.ExistsAsEmptyDir, pathclass.ExistsAsNonEmptyDir:
		return EISDIR
	default:
		return ENOENT
	}
}

// Mkdir creates an empty-directory sentinel record: a zero-size file
// whose path carries a trailing slash. xipfs has no on-NVM directory
// entries of their own; this is how one is represented.
func (d *Driver) Mkdir(path string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	dirPath := path
	if !strings.HasSuffix(dirPath, "/") {
		dirPath += "/"
	}

	c, err := pathclass.Classify(d.dir, dirPath)
	if err != nil {
		return ToErrno(err)
	}
	switch c.Info {
	case pathclass.Creatable:
		_, err := d.dir.NewFile(dirPath, 0, false)
		return ToErrno(err)
	case pathclass.ExistsAsEmptyDir, pathclass.ExistsAsNonEmptyDir, pathclass.ExistsAsFile:
		return EEXIST
	case pathclass.InvalidBecauseNotDirs:
		return ENOTDIR
	default:
		return ENOENT
	}
}

// Rmdir removes an empty-directory sentinel. A non-empty directory
// returns ENOTEMPTY; a plain file returns ENOTDIR. Like Unlink, an
// orphaned grandparent gets its own sentinel.
func (d *Driver) Rmdir(path string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	dirPath := path
	if !strings.HasSuffix(dirPath, "/") {
		dirPath += "/"
	}

	c, err := pathclass.Classify(d.dir, dirPath)
	if err != nil {
		return ToErrno(err)
	}
	switch c.Info {
	case pathclass.ExistsAsEmptyDir:
		orphan := c.Parent == 1 && c.Dirname != "/"
		if err := d.dir.Remove(c.Witness); err != nil {
			return ToErrno(err)
		}
		if orphan {
			if _, err := d.dir.NewFile(c.Dirname, 0, false); err != nil {
				return ToErrno(err)
			}
		}
		return nil
	case pathclass.ExistsAsNonEmptyDir:
		return ENOTEMPTY
	case pathclass.ExistsAsFile:
		return ENOTDIR
	default:
		return ENOENT
	}
}

// Rename moves from to to. A single file is relocated (removed and
// recreated at the new path with its content copied across) rather
// than rewritten in place: rewriting a path's bytes directly only
// stays correct when the new name's bits are a subset of the old
// one's, a hazard relocation avoids entirely. A directory prefix
// rename instead uses fsdir.RenameAll's bulk in-place rewrite, which
// matches rename_all's documented semantics exactly.
func (d *Driver) Rename(from, to string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	results, err := pathclass.ClassifyAll(d.dir, []string{from, to})
	if err != nil {
		return ToErrno(err)
	}
	fromC, toC := results[0], results[1]

	switch fromC.Info {
	case pathclass.ExistsAsFile:
		if toC.Info != pathclass.Creatable {
			return EEXIST
		}
		f := xfile.Open(d.buf, fromC.Witness)
		size := f.Size()
		data := make([]byte, size)
		if size > 0 {
			if _, err := f.ReadAt(data, 0); err != nil {
				return ToErrno(err)
			}
		}
		exec := f.IsExec()
		if err := d.dir.Remove(fromC.Witness); err != nil {
			return ToErrno(err)
		}
		rec, err := d.dir.NewFile(to, int(size), exec)
		if err != nil {
			return ToErrno(err)
		}
		if size > 0 {
			nf := xfile.Open(d.buf, rec)
			if _, err := nf.WriteAt(data, 0); err != nil {
				return ToErrno(err)
			}
		}
		return nil
	case pathclass.ExistsAsEmptyDir, pathclass.ExistsAsNonEmptyDir:
		if toC.Info != pathclass.Creatable {
			return EEXIST
		}
		fromPrefix := fromC.Path
		toPrefix := toC.Path
		if !strings.HasSuffix(toPrefix, "/") {
			toPrefix += "/"
		}
		_, err := d.dir.RenameAll(fromPrefix, toPrefix)
		return ToErrno(err)
	default:
		return ENOENT
	}
}

func dirPathOf(path string) string {
	if path == "/" {
		return "/"
	}
	if !strings.HasSuffix(path, "/") {
		path += "/"
	}
	return path
}

// directChild reports the immediate child name of recPath relative to
// dirPath, and whether that child is itself a (possibly implicit)
// directory, the way a flat file list stands in for a directory tree.
func directChild(dirPath, recPath string) (name string, isDir bool, ok bool) {
	if !strings.HasPrefix(recPath, dirPath) {
		return "", false, false
	}
	rest := recPath[len(dirPath):]
	if rest == "" {
		return "", false, false
	}
	if idx := strings.Index(rest, "/"); idx >= 0 {
		return rest[:idx], true, true
	}
	return rest, false, true
}

func (d *Driver) listChildren(dirPath string) ([]Dirent, error) {
	seen := make(map[string]bool)
	var out []Dirent

	cur, err := d.dir.Head()
	if err != nil {
		return nil, err
	}
	for cur != nil {
		if cur.Path != dirPath {
			if name, isDir, ok := directChild(dirPath, cur.Path); ok && !seen[name] {
				seen[name] = true
				out = append(out, Dirent{Name: name, IsDir: isDir})
			}
		}
		cur, err = d.dir.Next(cur)
		if err != nil {
			return nil, err
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Opendir opens a directory handle. The mount root always opens
// successfully even on an empty mount.
func (d *Driver) Opendir(path string) (HandleID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	dirPath := dirPathOf(path)
	if dirPath != "/" {
		c, err := pathclass.Classify(d.dir, dirPath)
		if err != nil {
			return 0, ToErrno(err)
		}
		switch c.Info {
		case pathclass.ExistsAsEmptyDir, pathclass.ExistsAsNonEmptyDir:
		case pathclass.ExistsAsFile:
			return 0, ENOTDIR
		default:
			return 0, ENOENT
		}
	}

	entries, err := d.listChildren(dirPath)
	if err != nil {
		return 0, ToErrno(err)
	}
	h := d.handles.Allocate(0, dirPath, true, 0)
	d.dirListings[h] = entries
	return h, nil
}

// Readdir yields the next directory entry, or (nil, nil) once
// enumeration is exhausted.
func (d *Driver) Readdir(h HandleID) (*Dirent, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	info, ok := d.handles.Get(h)
	if !ok {
		return nil, EBADF
	}
	if !info.isDir {
		return nil, ENOTDIR
	}
	entries := d.dirListings[h]
	pos := d.handles.GetDirPos(h)
	if pos >= len(entries) {
		d.handles.SetDirEnumDone(h, true)
		return nil, nil
	}
	d.handles.UpdateDirPos(h, pos+1)
	e := entries[pos]
	return &e, nil
}

// Closedir releases a directory handle.
func (d *Driver) Closedir(h HandleID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.dirListings, h)
	d.handles.Release(h)
	return nil
}

// Execv gates on the exec bit, reads the whole file into memory, and
// hands it to the execution engine's launcher.
func (d *Driver) Execv(path string, argv []string, stdout io.Writer) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	c, err := pathclass.Classify(d.dir, path)
	if err != nil {
		return -1, ToErrno(err)
	}
	switch c.Info {
	case pathclass.ExistsAsFile:
		if c.Witness.Exec != 1 {
			return -1, EACCES
		}
	case pathclass.ExistsAsEmptyDir, pathclass.ExistsAsNonEmptyDir:
		return -1, EISDIR
	default:
		return -1, ENOENT
	}

	f := xfile.Open(d.buf, c.Witness)
	data := make([]byte, f.Size())
	if len(data) > 0 {
		if _, err := f.ReadAt(data, 0); err != nil {
			return -1, ToErrno(err)
		}
	}
	code, err := execengine.Launch(data, c.Witness.DataAddr(), d.dev.Base(), d.dev.End(), argv, d.registry, stdout)
	if err != nil {
		return -1, ToErrno(err)
	}
	return code, nil
}
