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

// Package execengine implements the binary-layout contract an xipfs
// executable must satisfy: a CRT0 stub followed by a metadata header
// and the ROM/GOT/ROM-to-RAM data sections. The file system does not
// interpret the stub itself (that is target-CPU machine code); it
// only parses the header and hands control to a registered entry
// point through the syscall-dispatch table.
//
// This host build has no ARM thumb interpreter, so "branching to the
// entry point" is modeled as invoking a Go function registered under
// the header's entry offset (Registry.RegisterEntry).
// The parsed header shape is the part of the contract an MCU port
// keeps unchanged; only the launcher's notion of "executing code"
// differs.
package execengine

import (
	"encoding/binary"

	"xipfs/internal/common"
)

// PatchMax bounds the number of relocation entries a header can carry.
const PatchMax = 32

const (
	offEntry      = 0
	offROMSize    = 4
	offROMToRAM   = 8
	offRAMSize    = 12
	offGOTSize    = 16
	offEndOffset  = 20
	offPatchCount = 24
	offPatchTable = 28
	// HeaderSize is the fixed on-image size of the metadata header.
	HeaderSize = offPatchTable + PatchMax*4
)

// Header is the parsed CRT0 metadata header: entry-point offset, ROM
// section size, ROM-copied-to-RAM section size, RAM section size, GOT
// size, end-of-ROM+RAM offset, and the patch-info table of pointer
// offsets needing relocation.
type Header struct {
	EntryOffset  uint32
	ROMSize      uint32
	ROMToRAMSize uint32
	RAMSize      uint32
	GOTSize      uint32
	EndOffset    uint32
	PatchTable   []uint32
}

// ParseHeader decodes a metadata header from the bytes immediately
// following the CRT0 stub. data must hold at least HeaderSize bytes.
func ParseHeader(data []byte) (*Header, error) {
	if len(data) < HeaderSize {
		return nil, common.ErrBadRecord
	}
	count := binary.LittleEndian.Uint32(data[offPatchCount:])
	if count > PatchMax {
		return nil, common.ErrBadRecord
	}
	h := &Header{
		EntryOffset:  binary.LittleEndian.Uint32(data[offEntry:]),
		ROMSize:      binary.LittleEndian.Uint32(data[offROMSize:]),
		ROMToRAMSize: binary.LittleEndian.Uint32(data[offROMToRAM:]),
		RAMSize:      binary.LittleEndian.Uint32(data[offRAMSize:]),
		GOTSize:      binary.LittleEndian.Uint32(data[offGOTSize:]),
		EndOffset:    binary.LittleEndian.Uint32(data[offEndOffset:]),
		PatchTable:   make([]uint32, count),
	}
	for i := uint32(0); i < count; i++ {
		h.PatchTable[i] = binary.LittleEndian.Uint32(data[offPatchTable+i*4:])
	}
	return h, nil
}

// Encode serializes a header back to its fixed-width on-image form,
// used by test fixtures to produce minimal executables.
func (h *Header) Encode() []byte {
	buf := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(buf[offEntry:], h.EntryOffset)
	binary.LittleEndian.PutUint32(buf[offROMSize:], h.ROMSize)
	binary.LittleEndian.PutUint32(buf[offROMToRAM:], h.ROMToRAMSize)
	binary.LittleEndian.PutUint32(buf[offRAMSize:], h.RAMSize)
	binary.LittleEndian.PutUint32(buf[offGOTSize:], h.GOTSize)
	binary.LittleEndian.PutUint32(buf[offEndOffset:], h.EndOffset)
	binary.LittleEndian.PutUint32(buf[offPatchCount:], uint32(len(h.PatchTable)))
	for i, off := range h.PatchTable {
		binary.LittleEndian.PutUint32(buf[offPatchTable+i*4:], off)
	}
	return buf
}
