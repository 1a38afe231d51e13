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

// Package flash models the low-level NVM management layer of an xipfs
// mount: address-range checks, page alignment, page erase, and
// unaligned write-block programming. It carries no knowledge of files
// or pages beyond alignment — the only place that knows write-block
// granularity.
//
// A real MCU target backs this with a memory-mapped flash controller;
// this host build backs it with an image file so the exact same erase
// and program semantics (bits only clear, writes are read-modify-write
// of aligned blocks) can be exercised and tested off-target.
package flash

import (
	"os"
	"sync"

	log "github.com/sirupsen/logrus"
)

// EraseState is the byte value every byte takes after an erase.
const EraseState byte = 0xFF

// Geometry describes a mount's NVM range and hardware granularity.
type Geometry struct {
	PageSize          int // erase-block size in bytes
	PageCount         int // number of erase pages in the mount
	WriteBlockSize    int // smallest unit that can be programmed, in bytes
}

// Device is a byte-addressable NVM region backed by a host image file.
// It holds the entire mapped region in RAM, guarded by the caller's
// lock (the Driver's single global mutex, per the spec's concurrency
// model); Device's own mutex only serializes Close's write-back.
type Device struct {
	Geometry
	base int // logical base address; offsets into data are addr-base
	data []byte
	file *os.File

	// verifyRetries bounds retry-go's attempts on a program/erase
	// verify mismatch before ErrFlashVerify is surfaced.
	verifyRetries uint

	mu sync.Mutex // guards file flush ordering only, not data access
}

// Open loads (or creates, filled with EraseState) the backing image
// file and returns a Device covering base..base+geometry size.
func Open(path string, base int, geo Geometry) (*Device, error) {
	size := geo.PageSize * geo.PageCount
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	data := make([]byte, size)
	if info.Size() == 0 {
		for i := range data {
			data[i] = EraseState
		}
		if _, err := f.WriteAt(data, 0); err != nil {
			f.Close()
			return nil, err
		}
	} else {
		n, err := f.ReadAt(data, 0)
		if err != nil && n != size {
			f.Close()
			return nil, err
		}
	}
	log.Debugf("[flash] opened image %q base=%#x pages=%d pagesize=%d", path, base, geo.PageCount, geo.PageSize)
	return &Device{
		Geometry:      geo,
		base:          base,
		data:          data,
		file:          f,
		verifyRetries: 3,
	}, nil
}

// Close flushes the in-memory image back to the backing file and
// closes it.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, err := d.file.WriteAt(d.data, 0); err != nil {
		return err
	}
	return d.file.Close()
}

// Base returns the device's logical base address.
func (d *Device) Base() int { return d.base }

// End returns the exclusive end address of the mount.
func (d *Device) End() int { return d.base + d.PageSize*d.PageCount }

// In reports whether addr lies in the device's mapped range.
func (d *Device) In(addr int) bool {
	return addr >= d.base && addr < d.End()
}

// PageAligned reports whether addr falls on a page boundary.
func (d *Device) PageAligned(addr int) bool {
	return (addr-d.base)%d.PageSize == 0
}

// Overflow reports whether [addr, addr+n) exits the mapped range.
func (d *Device) Overflow(addr, n int) bool {
	return !d.In(addr + n - 1)
}

// PageOverflow reports whether [addr, addr+n) crosses a page boundary.
func (d *Device) PageOverflow(addr, n int) bool {
	off := (addr - d.base) % d.PageSize
	return off+n > d.PageSize
}

// PageOf returns the page index containing addr.
func (d *Device) PageOf(addr int) int {
	return (addr - d.base) / d.PageSize
}

// PageAddr returns the base address of page p.
func (d *Device) PageAddr(p int) int {
	return d.base + p*d.PageSize
}

// ReadAt copies n bytes starting at addr directly from the in-memory
// image, bypassing any page buffer. Callers that must observe a
// pending page-buffer write use pagebuf.Buffer.Read instead.
func (d *Device) ReadAt(addr, n int) []byte {
	off := addr - d.base
	out := make([]byte, n)
	copy(out, d.data[off:off+n])
	return out
}

// rawByte and setRawByte give the page buffer direct access to the
// backing array without going through erase/program semantics; the
// page buffer is the only caller allowed to bypass write-block rules,
// since it is itself responsible for enforcing them at flush time.
func (d *Device) rawByte(addr int) byte {
	return d.data[addr-d.base]
}

func (d *Device) setRawBytes(addr int, b []byte) {
	copy(d.data[addr-d.base:], b)
}

// IsErasedPage reports whether every byte of page p equals EraseState.
func (d *Device) IsErasedPage(p int) bool {
	start := p * d.PageSize
	for _, b := range d.data[start : start+d.PageSize] {
		if b != EraseState {
			return false
		}
	}
	return true
}

// IsErasedRange reports whether every byte in [addr, addr+n) equals
// EraseState. Used to check invariant 3 (pages past the tail are
// fully erased) and to decide whether a size[] slot has been written.
func (d *Device) IsErasedRange(addr, n int) bool {
	off := addr - d.base
	for _, b := range d.data[off : off+n] {
		if b != EraseState {
			return false
		}
	}
	return true
}
