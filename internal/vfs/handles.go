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

package vfs

import "sync"

// HandleID is the type for open file/directory handles.
type HandleID uint64

// openHandle represents an open file or directory. Addr is the
// absolute NVM address of the underlying file directory record; a
// directory handle (synthesized from flat file paths, not a record of
// its own) carries Addr zero and IsDir true.
type openHandle struct {
	addr        int
	path        string
	isDir       bool
	flags       int
	pos         int64 // read/write cursor for a file handle
	dirPos      int   // enumeration cursor for ReadDir pagination
	dirEnumDone bool  // true once ReadDir has yielded every entry
}

// HandleManager hands out and tracks the mount's open handles. xipfs
// has no per-handle concurrency model beyond the Driver's single
// mutex, so HandleManager's own lock only protects its map, not the
// underlying flash operations handles reference.
type HandleManager struct {
	mu         sync.RWMutex
	handles    map[HandleID]*openHandle
	nextHandle HandleID
}

// NewHandleManager creates a new handle manager.
func NewHandleManager() *HandleManager {
	return &HandleManager{
		handles:    make(map[HandleID]*openHandle),
		nextHandle: 1,
	}
}

// Allocate creates a new handle for a file at addr, or a directory
// handle when isDir is true (addr is then ignored by convention and
// should be passed as 0).
func (hm *HandleManager) Allocate(addr int, path string, isDir bool, flags int) HandleID {
	hm.mu.Lock()
	defer hm.mu.Unlock()

	handle := hm.nextHandle
	hm.nextHandle++

	hm.handles[handle] = &openHandle{
		addr:  addr,
		path:  path,
		isDir: isDir,
		flags: flags,
	}

	return handle
}

// Get retrieves a handle's info.
func (hm *HandleManager) Get(h HandleID) (*openHandle, bool) {
	hm.mu.RLock()
	defer hm.mu.RUnlock()
	info, ok := hm.handles[h]
	return info, ok
}

// Release frees a handle.
func (hm *HandleManager) Release(h HandleID) {
	hm.mu.Lock()
	defer hm.mu.Unlock()
	delete(hm.handles, h)
}

// Count returns the number of currently open handles.
func (hm *HandleManager) Count() int {
	hm.mu.RLock()
	defer hm.mu.RUnlock()
	return len(hm.handles)
}

// UpdateDirPos updates the directory enumeration cursor for ReadDir.
func (hm *HandleManager) UpdateDirPos(h HandleID, pos int) {
	hm.mu.Lock()
	defer hm.mu.Unlock()
	if info, ok := hm.handles[h]; ok {
		info.dirPos = pos
	}
}

// GetDirPos gets the current directory enumeration cursor.
func (hm *HandleManager) GetDirPos(h HandleID) int {
	hm.mu.RLock()
	defer hm.mu.RUnlock()
	if info, ok := hm.handles[h]; ok {
		return info.dirPos
	}
	return 0
}

// Seek sets a file handle's read/write cursor.
func (hm *HandleManager) Seek(h HandleID, pos int64) {
	hm.mu.Lock()
	defer hm.mu.Unlock()
	if info, ok := hm.handles[h]; ok {
		info.pos = pos
	}
}

// Pos returns a file handle's current read/write cursor.
func (hm *HandleManager) Pos(h HandleID) int64 {
	hm.mu.RLock()
	defer hm.mu.RUnlock()
	if info, ok := hm.handles[h]; ok {
		return info.pos
	}
	return 0
}

// SetDirEnumDone marks directory enumeration as complete.
func (hm *HandleManager) SetDirEnumDone(h HandleID, done bool) {
	hm.mu.Lock()
	defer hm.mu.Unlock()
	if info, ok := hm.handles[h]; ok {
		info.dirEnumDone = done
	}
}

// IsDirEnumDone checks if directory enumeration is complete.
func (hm *HandleManager) IsDirEnumDone(h HandleID) bool {
	hm.mu.RLock()
	defer hm.mu.RUnlock()
	if info, ok := hm.handles[h]; ok {
		return info.dirEnumDone
	}
	return false
}

// Clear removes all handles, returning the count of handles cleared.
// Used when a mount-wide operation (format) invalidates every
// in-flight handle at once.
func (hm *HandleManager) Clear() int {
	hm.mu.Lock()
	defer hm.mu.Unlock()
	count := len(hm.handles)
	hm.handles = make(map[HandleID]*openHandle)
	return count
}
