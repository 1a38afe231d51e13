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

// Package xfile implements the File Object: bounded byte access to a
// single file's data region, its append-only size history, and the
// path/exec-bit bookkeeping a single directory record carries.
package xfile

import (
	"encoding/binary"

	"xipfs/internal/common"
	"xipfs/internal/fsdir"
	"xipfs/internal/pagebuf"
)

// File is a handle onto one directory record's data.
type File struct {
	buf    *pagebuf.Buffer
	Record *fsdir.Record
}

// Open wraps rec for byte-level access through buf.
func Open(buf *pagebuf.Buffer, rec *fsdir.Record) *File {
	return &File{buf: buf, Record: rec}
}

// MaxPos returns the length of the file's data region: the reserved
// span minus the header. Valid byte offsets are 0 to MaxPos()-1.
func (f *File) MaxPos() int64 {
	return int64(f.Record.Reserved) - int64(fsdir.HeaderSize)
}

// Size returns the file's current size, the most recent entry in its
// size history.
func (f *File) Size() uint32 {
	return f.Record.CurrentSize()
}

// SetSize appends size as a new entry in the record's size history.
// It returns common.ErrSizeHistoryFull if every slot is already used;
// callers needing a size after that point must create a new file
// record (the original exhausted the same situation silently, by
// wrapping the slot index back to zero and overwriting the oldest
// entry in place).
func (f *File) SetSize(size uint32) error {
	slot := f.Record.NextSizeSlot()
	if slot < 0 {
		return common.ErrSizeHistoryFull
	}
	word := make([]byte, 4)
	binary.LittleEndian.PutUint32(word, size)
	if err := f.buf.Write(f.Record.SizeSlotAddr(slot), word); err != nil {
		return err
	}
	if err := f.buf.Flush(); err != nil {
		return err
	}
	f.Record.Size[slot] = size
	return nil
}

// checkPos validates pos against the file's reserved capacity.
func (f *File) checkPos(pos int64) error {
	if pos < 0 || pos >= f.MaxPos() {
		return common.ErrMaxOffset
	}
	return nil
}

// ReadByteAt reads the single byte at file-relative offset pos.
func (f *File) ReadByteAt(pos int64) (byte, error) {
	if err := f.checkPos(pos); err != nil {
		return 0, err
	}
	out := make([]byte, 1)
	if err := f.buf.Read(out, f.Record.DataAddr()+int(pos), 1); err != nil {
		return 0, err
	}
	return out[0], nil
}

// WriteByteAt stages the single byte b at file-relative offset pos.
// Callers extending the file are responsible for calling SetSize once
// the write establishes a new high-water mark, matching the
// original's split between xipfs_file_write_8 and xipfs_file_set_size.
func (f *File) WriteByteAt(pos int64, b byte) error {
	if err := f.checkPos(pos); err != nil {
		return err
	}
	return f.buf.Write(f.Record.DataAddr()+int(pos), []byte{b})
}

// ReadAt reads up to len(dest) bytes starting at file-relative offset
// pos, stopping at the file's current size, and returns the number of
// bytes read.
func (f *File) ReadAt(dest []byte, pos int64) (int, error) {
	size := int64(f.Size())
	if pos >= size {
		return 0, nil
	}
	n := int64(len(dest))
	if pos+n > size {
		n = size - pos
	}
	if n <= 0 {
		return 0, nil
	}
	if err := f.checkPos(pos + n - 1); err != nil {
		return 0, err
	}
	if err := f.buf.Read(dest[:n], f.Record.DataAddr()+int(pos), int(n)); err != nil {
		return 0, err
	}
	return int(n), nil
}

// WriteAt stages len(src) bytes at file-relative offset pos and, if
// the write extends past the file's current size, appends the new
// high-water mark to the size history.
func (f *File) WriteAt(src []byte, pos int64) (int, error) {
	if len(src) == 0 {
		return 0, nil
	}
	if err := f.checkPos(pos + int64(len(src)) - 1); err != nil {
		return 0, err
	}
	if err := f.buf.Write(f.Record.DataAddr()+int(pos), src); err != nil {
		return 0, err
	}
	if err := f.buf.Flush(); err != nil {
		return 0, err
	}
	end := uint32(pos) + uint32(len(src))
	if end > f.Size() {
		if err := f.SetSize(end); err != nil {
			return 0, err
		}
	}
	return len(src), nil
}

// IsExec reports whether the file's execution right bit is set.
func (f *File) IsExec() bool {
	return f.Record.Exec == 1
}
