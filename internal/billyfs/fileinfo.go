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
	"os"
	"time"

	"xipfs/internal/vfs"
)

// FileInfo adapts a Driver FileInfo or Dirent to os.FileInfo.
type FileInfo struct {
	name    string
	info    *vfs.FileInfo
	dirent  *vfs.Dirent
	adapter *Adapter
}

func (fi *FileInfo) Name() string { return fi.name }

func (fi *FileInfo) Size() int64 {
	if fi.info != nil {
		return int64(fi.info.Size)
	}
	return 0
}

func (fi *FileInfo) Mode() os.FileMode {
	if fi.IsDir() {
		return os.ModeDir | 0755
	}
	if fi.info != nil && fi.info.Exec {
		return 0755
	}
	return 0644
}

// ModTime has no backing record in an xipfs file: the on-NVM layout
// tracks a size history, not a modification timestamp.
func (fi *FileInfo) ModTime() time.Time {
	return time.Time{}
}

func (fi *FileInfo) IsDir() bool {
	if fi.info != nil {
		return fi.info.IsDir
	}
	if fi.dirent != nil {
		return fi.dirent.IsDir
	}
	return false
}

func (fi *FileInfo) Sys() interface{} {
	return fi.info
}

// UID and GID report the adapter's own process credentials, since
// xipfs records no per-file ownership.
func (fi *FileInfo) UID() uint32 {
	if fi.adapter != nil {
		return fi.adapter.uid
	}
	return 0
}

func (fi *FileInfo) GID() uint32 {
	if fi.adapter != nil {
		return fi.adapter.gid
	}
	return 0
}
