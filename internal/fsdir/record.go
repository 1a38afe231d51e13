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

// Package fsdir implements the File Directory: the singly linked list
// of file records laid contiguously over NVM that gives xipfs its
// allocation and deletion semantics. A mount has no separate
// allocation table; the records themselves form the directory.
package fsdir

import "encoding/binary"

const (
	// PathMax is the maximum length of an xipfs path, including the
	// terminating NUL.
	PathMax = 64
	// SizeSlots bounds the append-only file size history kept in
	// each record's header, so a size change never needs to erase
	// and re-flash the header.
	SizeSlots = 86
)

const (
	offNext     = 0
	offPath     = offNext + 4
	offReserved = offPath + PathMax
	offSize     = offReserved + 4
	offExec     = offSize + SizeSlots*4
	// HeaderSize is the on-NVM size of a record header, before its
	// data bytes.
	HeaderSize = offExec + 4
)

// erasedWord is the 4-byte pattern a freshly erased NVM page decodes
// to; used to recognize header fields that have never been written.
const erasedWord uint32 = 0xFFFFFFFF

// Record is the in-memory view of a file directory entry. Addr is the
// absolute NVM address of the record's header.
type Record struct {
	Addr     int
	Next     uint32
	Path     string
	Reserved uint32
	Size     [SizeSlots]uint32
	Exec     uint32
}

// encode serializes r's header fields (not Addr, which is positional)
// into a HeaderSize byte buffer.
func (r *Record) encode() []byte {
	buf := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(buf[offNext:], r.Next)
	copy(buf[offPath:offPath+PathMax], []byte(r.Path))
	binary.LittleEndian.PutUint32(buf[offReserved:], r.Reserved)
	for i, s := range r.Size {
		binary.LittleEndian.PutUint32(buf[offSize+i*4:], s)
	}
	binary.LittleEndian.PutUint32(buf[offExec:], r.Exec)
	return buf
}

// decodeRecord parses a HeaderSize byte buffer read from addr into a
// Record.
func decodeRecord(addr int, buf []byte) *Record {
	r := &Record{Addr: addr}
	r.Next = binary.LittleEndian.Uint32(buf[offNext:])
	end := offPath
	for end < offPath+PathMax && buf[end] != 0 {
		end++
	}
	r.Path = string(buf[offPath:end])
	r.Reserved = binary.LittleEndian.Uint32(buf[offReserved:])
	for i := range r.Size {
		r.Size[i] = binary.LittleEndian.Uint32(buf[offSize+i*4:])
	}
	r.Exec = binary.LittleEndian.Uint32(buf[offExec:])
	return r
}

// CurrentSize returns the file's current size: the last non-erased
// entry of the size history, or 0 if none has ever been written.
func (r *Record) CurrentSize() uint32 {
	size := uint32(0)
	for _, s := range r.Size {
		if s == erasedWord {
			break
		}
		size = s
	}
	return size
}

// NextSizeSlot returns the index of the first erased (unwritten) slot
// in the size history, or -1 if the history is full. The original
// xipfs computed this index with a loop that wrapped back to slot 0
// once the history filled up, silently overwriting the oldest entry
// with a value flash cannot always reprogram over it; this port
// reports an unwritable history instead of wrapping, see
// common.ErrSizeHistoryFull.
func (r *Record) NextSizeSlot() int {
	for i, s := range r.Size {
		if s == erasedWord {
			return i
		}
	}
	return -1
}

// SizeSlotAddr returns the absolute NVM address of size history slot
// i within this record.
func (r *Record) SizeSlotAddr(i int) int {
	return r.Addr + offSize + i*4
}

// PathAddr returns the absolute NVM address of this record's path
// field.
func (r *Record) PathAddr() int {
	return r.Addr + offPath
}

// DataAddr returns the address of the first byte of file data
// following the header.
func (r *Record) DataAddr() int {
	return r.Addr + HeaderSize
}

// IsTerminal reports whether this record is the self-loop sentinel
// marking a full directory: its own address as its next pointer.
func (r *Record) IsTerminal() bool {
	return int(r.Next) == r.Addr
}
