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

package netexport

import (
	"os"

	"github.com/go-git/go-billy/v5"

	"xipfs/internal/billyfs"
)

// readOnlyFS rejects every mutating billy.Filesystem call, so a
// remote NFS client can read and browse a mounted volume but never
// alter the underlying flash image out from under whatever process
// actually owns the mount.
type readOnlyFS struct {
	*billyfs.Adapter
}

func (r *readOnlyFS) Create(filename string) (billy.File, error) {
	return nil, os.ErrPermission
}

func (r *readOnlyFS) OpenFile(filename string, flag int, perm os.FileMode) (billy.File, error) {
	if flag&(os.O_WRONLY|os.O_RDWR|os.O_CREATE|os.O_TRUNC|os.O_APPEND) != 0 {
		return nil, os.ErrPermission
	}
	return r.Adapter.OpenFile(filename, flag, perm)
}

func (r *readOnlyFS) Rename(oldpath, newpath string) error {
	return os.ErrPermission
}

func (r *readOnlyFS) Remove(filename string) error {
	return os.ErrPermission
}

func (r *readOnlyFS) MkdirAll(filename string, perm os.FileMode) error {
	return os.ErrPermission
}

func (r *readOnlyFS) Symlink(target, link string) error {
	return os.ErrPermission
}

func (r *readOnlyFS) Chmod(name string, mode os.FileMode) error {
	return os.ErrPermission
}

func (r *readOnlyFS) Capabilities() billy.Capability {
	return billy.ReadCapability | billy.SeekCapability
}
