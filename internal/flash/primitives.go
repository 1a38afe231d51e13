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

package flash

import (
	retry "github.com/avast/retry-go/v4"
	log "github.com/sirupsen/logrus"

	"xipfs/internal/common"
)

// ErasePage erases page p, if it isn't already erased, and verifies
// the post-condition. A real NOR flash erase pulse can occasionally
// need reissuing; retry-go bounds that without the caller having to
// hand-roll a loop.
func (d *Device) ErasePage(p int) error {
	if d.IsErasedPage(p) {
		return nil
	}
	err := retry.Do(
		func() error {
			start := p * d.PageSize
			for i := range d.data[start : start+d.PageSize] {
				d.data[start+i] = EraseState
			}
			if !d.IsErasedPage(p) {
				return common.ErrFlashVerify
			}
			return nil
		},
		retry.Attempts(d.verifyRetries),
		retry.Delay(0),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		log.Errorf("[flash] erase page %d failed after %d attempts: %v", p, d.verifyRetries, err)
		return common.ErrFlashVerify
	}
	return nil
}

// WriteUnaligned writes n bytes from src to dest one write-block at a
// time: for each byte, it loads the containing aligned write-block,
// clears the target byte lane, sets it to the new value, and verifies
// the result. dest must be in flash, must not overflow the mount, and
// must not cross a page boundary — callers (the page buffer) are
// responsible for splitting writes that would.
func (d *Device) WriteUnaligned(dest int, src []byte) error {
	n := len(src)
	if !d.In(dest) || d.Overflow(dest, n) || d.PageOverflow(dest, n) {
		return common.ErrInvalidPath
	}
	wb := d.WriteBlockSize
	if wb <= 0 {
		wb = 4
	}
	for i, b := range src {
		addr := dest + i
		err := retry.Do(
			func() error {
				mod := (addr - d.base) % wb
				blockAddr := addr - mod
				block := make([]byte, wb)
				copy(block, d.data[blockAddr-d.base:blockAddr-d.base+wb])
				// Program can only clear bits: AND out the erase-state
				// lane, then OR in the new value; the cells keep any
				// bit that is already cleared.
				block[mod] &= ^EraseState
				block[mod] |= b
				block[mod] &= d.rawByte(addr)
				d.setRawBytes(blockAddr, block)
				if d.rawByte(addr) != b {
					return common.ErrFlashVerify
				}
				return nil
			},
			retry.Attempts(d.verifyRetries),
			retry.Delay(0),
			retry.LastErrorOnly(true),
		)
		if err != nil {
			log.Errorf("[flash] write_unaligned at %#x failed verify: %v", addr, err)
			return common.ErrFlashVerify
		}
	}
	return nil
}
