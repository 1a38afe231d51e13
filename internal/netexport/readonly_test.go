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
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"xipfs/internal/billyfs"
	"xipfs/internal/flash"
	"xipfs/internal/vfs"
)

func newTestReadOnlyFS(t *testing.T) *readOnlyFS {
	t.Helper()
	img := filepath.Join(t.TempDir(), "flash.img")
	d, err := vfs.Mount(img, flash.Geometry{PageSize: 512, PageCount: 4, WriteBlockSize: 4})
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	require.NoError(t, d.NewFile("/a", 4, false))
	return &readOnlyFS{Adapter: billyfs.New(d)}
}

func TestReadOnlyFSRejectsCreate(t *testing.T) {
	fs := newTestReadOnlyFS(t)
	_, err := fs.Create("/b")
	require.ErrorIs(t, err, os.ErrPermission)
}

func TestReadOnlyFSRejectsWriteOpen(t *testing.T) {
	fs := newTestReadOnlyFS(t)
	_, err := fs.OpenFile("/a", os.O_RDWR, 0)
	require.ErrorIs(t, err, os.ErrPermission)
}

func TestReadOnlyFSAllowsReadOpen(t *testing.T) {
	fs := newTestReadOnlyFS(t)
	f, err := fs.OpenFile("/a", os.O_RDONLY, 0)
	require.NoError(t, err)
	require.NoError(t, f.Close())
}

func TestReadOnlyFSRejectsRemove(t *testing.T) {
	fs := newTestReadOnlyFS(t)
	require.ErrorIs(t, fs.Remove("/a"), os.ErrPermission)
}

func TestReadOnlyFSRejectsRename(t *testing.T) {
	fs := newTestReadOnlyFS(t)
	require.ErrorIs(t, fs.Rename("/a", "/b"), os.ErrPermission)
}

func TestReadOnlyFSStillAllowsStat(t *testing.T) {
	fs := newTestReadOnlyFS(t)
	info, err := fs.Stat("/a")
	require.NoError(t, err)
	require.Equal(t, "a", info.Name())
}
