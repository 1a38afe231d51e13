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

package fsdir

import (
	log "github.com/sirupsen/logrus"

	"xipfs/internal/common"
	"xipfs/internal/flash"
	"xipfs/internal/pagebuf"
)

// round rounds x up to the next multiple of y, y a power of two.
func round(x, y int) int {
	return (x + y - 1) &^ (y - 1)
}

// Directory is the singly linked list of file records occupying a
// mount's NVM range, starting at its base address.
type Directory struct {
	dev *flash.Device
	buf *pagebuf.Buffer
}

// New returns a Directory over dev, staging writes through buf.
func New(dev *flash.Device, buf *pagebuf.Buffer) *Directory {
	return &Directory{dev: dev, buf: buf}
}

// readRecord loads the record header at addr through the page buffer,
// so a read observes any not-yet-flushed write to the same page.
func (d *Directory) readRecord(addr int) (*Record, error) {
	raw := make([]byte, HeaderSize)
	if err := d.buf.Read(raw, addr, HeaderSize); err != nil {
		return nil, err
	}
	return decodeRecord(addr, raw), nil
}

// validate checks the structural invariants a traversed record must
// satisfy: page alignment, mount containment, and (for a non-terminal
// record) that next is exactly addr+reserved.
func (d *Directory) validate(r *Record) error {
	if !d.dev.PageAligned(r.Addr) || !d.dev.In(r.Addr) {
		return common.ErrBadRecord
	}
	if !r.IsTerminal() {
		next := int(r.Next)
		if !d.dev.PageAligned(next) || !d.dev.In(next) {
			return common.ErrBadRecord
		}
		if r.Addr >= next || r.Addr+int(r.Reserved) != next {
			return common.ErrBadRecord
		}
	}
	if err := common.ValidateFullPath(r.Path, PathMax); err != nil {
		return common.ErrBadRecord
	}
	if r.Exec != 0 && r.Exec != 1 {
		return common.ErrBadRecord
	}
	return nil
}

// Head returns the first record in the directory. It returns
// (nil, nil) if the mount holds no files yet.
func (d *Directory) Head() (*Record, error) {
	head, err := d.readRecord(d.dev.Base())
	if err != nil {
		return nil, err
	}
	if head.Next == erasedWord {
		return nil, nil
	}
	if err := d.validate(head); err != nil {
		return nil, err
	}
	return head, nil
}

// Next returns the record following r, or (nil, nil) if r is the last
// record: either the full-directory self-loop sentinel or the
// directory simply ends there (r.Next's own next field is erased).
func (d *Directory) Next(r *Record) (*Record, error) {
	if err := d.validate(r); err != nil {
		return nil, err
	}
	if r.IsTerminal() {
		return nil, nil
	}
	next, err := d.readRecord(int(r.Next))
	if err != nil {
		return nil, err
	}
	if next.Next == erasedWord {
		return nil, nil
	}
	if err := d.validate(next); err != nil {
		return nil, err
	}
	return next, nil
}

// Tail returns the last record in the directory, or (nil, nil) if
// empty.
func (d *Directory) Tail(headHint ...*Record) (*Record, error) {
	var cur *Record
	var err error
	if len(headHint) > 0 && headHint[0] != nil {
		cur = headHint[0]
	} else {
		cur, err = d.Head()
		if err != nil || cur == nil {
			return nil, err
		}
	}
	tail := cur
	for {
		nxt, err := d.Next(cur)
		if err != nil {
			return nil, err
		}
		if nxt == nil {
			return tail, nil
		}
		tail = nxt
		cur = nxt
	}
}

// TailNext returns the address at which the next new record should
// be written: the mount base if the directory is empty, or the
// address just past the current tail. It returns common.ErrFull if
// the tail is the terminal self-loop.
func (d *Directory) TailNext() (int, error) {
	tail, err := d.Tail()
	if err != nil {
		return 0, err
	}
	if tail == nil {
		return d.dev.Base(), nil
	}
	if tail.IsTerminal() {
		return 0, common.ErrFull
	}
	return int(tail.Next), nil
}

// FreePages returns the number of erase pages not yet claimed by any
// file record.
func (d *Directory) FreePages() (int, error) {
	head, err := d.Head()
	if err != nil {
		return 0, err
	}
	if head == nil {
		return d.dev.PageCount, nil
	}
	tail, err := d.Tail(head)
	if err != nil {
		return 0, err
	}
	used := (tail.Addr + int(tail.Reserved) - head.Addr) / d.dev.PageSize
	return d.dev.PageCount - used, nil
}

// NewFile allocates and writes a new, empty record for path, reserving
// size bytes rounded up to whole pages (one page, if size is 0). The
// record header takes the first HeaderSize bytes of that reservation.
// It returns common.ErrNoSpace if the reservation does not fit in the
// mount's free pages, and common.ErrFull if the directory has already
// reached its terminal self-loop.
func (d *Directory) NewFile(path string, size int, exec bool) (*Record, error) {
	if err := common.ValidateFullPath(path, PathMax); err != nil {
		return nil, err
	}
	addr, err := d.TailNext()
	if err != nil {
		return nil, err
	}
	free, err := d.FreePages()
	if err != nil {
		return nil, err
	}
	reserved := d.dev.PageSize
	if size > 0 {
		reserved = round(size, d.dev.PageSize)
	}
	reservedPages := reserved / d.dev.PageSize

	var next int
	switch {
	case reservedPages < free:
		next = addr + reserved
	case reservedPages == free:
		next = addr
	default:
		return nil, common.ErrNoSpace
	}

	rec := &Record{Addr: addr, Next: uint32(next), Path: path, Reserved: uint32(reserved)}
	for i := range rec.Size {
		rec.Size[i] = erasedWord
	}
	execBit := uint32(0)
	if exec {
		execBit = 1
	}
	rec.Exec = execBit

	if err := d.buf.Write(addr, rec.encode()); err != nil {
		return nil, err
	}
	if err := d.buf.Flush(); err != nil {
		return nil, err
	}
	log.Debugf("[fsdir] new_file %q at %#x reserved=%d exec=%v", path, addr, reserved, exec)
	return rec, nil
}

// erase erases every page reserved by r.
func (d *Directory) erase(r *Record) error {
	start := d.dev.PageOf(r.Addr)
	pages := int(r.Reserved) / d.dev.PageSize
	for i := 0; i < pages; i++ {
		if err := d.dev.ErasePage(start + i); err != nil {
			return err
		}
	}
	return nil
}

// Remove deletes the record at dst and slides every following record
// down to close the gap, so the directory's contiguous-run and
// self-loop-terminal invariants hold afterward. This is the most
// delicate routine in the mount: it copies whole pages of a shifted
// record's data, relinking headers as it goes, one flash page at a
// time.
func (d *Directory) Remove(dst *Record) error {
	next, err := d.Next(dst)
	if err != nil {
		return err
	}
	// Any staged-but-unflushed page must be committed (or discarded,
	// if it belongs to a page we are about to erase directly) before
	// we start manipulating pages through the device instead of the
	// buffer.
	if err := d.buf.Flush(); err != nil {
		return err
	}
	if err := d.erase(dst); err != nil {
		return err
	}

	dstAddr := dst.Addr
	for next != nil {
		src := next
		next, err = d.Next(src)
		if err != nil {
			return err
		}

		// shiftSize is src.next - src.addr, which is src.reserved for
		// an ordinary record and exactly 0 when src is itself the
		// terminal self-loop. In that case dstAddr+0 == dstAddr, so
		// the relocated record becomes the new self-loop terminal at
		// its new address, and no further full-page copy runs below.
		shiftSize := int(src.Next) - src.Addr

		moved := *src
		moved.Addr = dstAddr
		moved.Next = uint32(dstAddr + shiftSize)

		if err := d.dev.WriteUnaligned(dstAddr, moved.encode()); err != nil {
			return err
		}
		tailBytes := d.dev.ReadAt(src.Addr+HeaderSize, d.dev.PageSize-HeaderSize)
		if err := d.dev.WriteUnaligned(dstAddr+HeaderSize, tailBytes); err != nil {
			return err
		}
		if err := d.dev.ErasePage(d.dev.PageOf(src.Addr)); err != nil {
			return err
		}

		dstCursor := dstAddr + d.dev.PageSize
		srcCursor := src.Addr + d.dev.PageSize
		pageCount := shiftSize / d.dev.PageSize
		for i := 1; i < pageCount; i++ {
			page := d.dev.PageOf(srcCursor)
			if !d.dev.IsErasedPage(page) {
				if err := d.dev.WriteUnaligned(dstCursor, d.dev.ReadAt(srcCursor, d.dev.PageSize)); err != nil {
					return err
				}
				if err := d.dev.ErasePage(page); err != nil {
					return err
				}
			}
			dstCursor += d.dev.PageSize
			srcCursor += d.dev.PageSize
		}

		dstAddr += shiftSize
	}
	log.Debugf("[fsdir] removed %q, consolidated trailing records", dst.Path)
	return nil
}

// RenameAll renames every file whose path has the from prefix to
// carry the to prefix instead, returning the number of files renamed.
func (d *Directory) RenameAll(from, to string) (int, error) {
	if len(from) >= PathMax || len(to) >= PathMax {
		return 0, common.ErrNameTooLong
	}
	head, err := d.Head()
	if err != nil {
		return 0, err
	}
	count := 0
	for cur := head; cur != nil; {
		if len(cur.Path) >= len(from) && cur.Path[:len(from)] == from {
			newPath := to + cur.Path[len(from):]
			if len(newPath) >= PathMax {
				newPath = newPath[:PathMax-1]
			}
			if err := d.renamePath(cur, newPath); err != nil {
				return count, err
			}
			count++
		}
		nxt, err := d.Next(cur)
		if err != nil {
			return count, err
		}
		cur = nxt
	}
	return count, nil
}

// Rename changes the path of a single record in place.
func (d *Directory) Rename(r *Record, newPath string) error {
	return d.renamePath(r, newPath)
}

// renamePath overwrites just the path field of the record at r.Addr.
func (d *Directory) renamePath(r *Record, newPath string) error {
	if err := common.ValidateFullPath(newPath, PathMax); err != nil {
		return err
	}
	pathBytes := make([]byte, PathMax)
	copy(pathBytes, []byte(newPath))
	if err := d.buf.Write(r.Addr+offPath, pathBytes); err != nil {
		return err
	}
	return d.buf.Flush()
}

// Format erases every page in the mount, discarding all files.
func (d *Directory) Format() error {
	if err := d.buf.Flush(); err != nil {
		return err
	}
	for p := 0; p < d.dev.PageCount; p++ {
		if err := d.dev.ErasePage(p); err != nil {
			return err
		}
	}
	log.Debugf("[fsdir] format complete, %d pages erased", d.dev.PageCount)
	return nil
}
