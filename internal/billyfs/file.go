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

package billyfs

import (
	"io"

	"xipfs/internal/vfs"
)

// File adapts an open Driver handle to billy.File.
type File struct {
	adapter *Adapter
	handle  vfs.HandleID
	name    string
	flags   int
}

func (f *File) Name() string { return f.name }

func (f *File) Write(p []byte) (int, error) {
	return f.adapter.d.Write(f.handle, p)
}

func (f *File) Read(p []byte) (int, error) {
	n, err := f.adapter.d.Read(f.handle, p)
	if err == nil && n == 0 && len(p) > 0 {
		return 0, io.EOF
	}
	return n, err
}

func (f *File) ReadAt(p []byte, off int64) (int, error) {
	if _, err := f.adapter.d.Seek(f.handle, off, vfs.SeekStart); err != nil {
		return 0, err
	}
	return f.Read(p)
}

func (f *File) Seek(offset int64, whence int) (int64, error) {
	return f.adapter.d.Seek(f.handle, offset, whence)
}

func (f *File) Close() error {
	return f.adapter.d.CloseFile(f.handle)
}

// Lock and Unlock are no-ops: the Driver already serializes every
// operation behind its own mutex.
func (f *File) Lock() error   { return nil }
func (f *File) Unlock() error { return nil }

// Truncate has no xipfs equivalent: a file's NVM reservation is fixed
// at new_file time and its logical size only ever grows via write,
// matching the append-only size history invariant.
func (f *File) Truncate(size int64) error {
	return ErrNotSupported
}
