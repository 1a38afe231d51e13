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

package integration

import (
	"path/filepath"
	"strings"
	"testing"

	. "github.com/onsi/gomega"

	"xipfs/internal/flash"
	"xipfs/internal/vfs"
)

// Unlinking a file in the middle of the directory slides the records
// after it down to close the gap: the reclaimed pages come back as
// free space and the surviving files keep their content and relative
// order.
func TestUnlinkConsolidatesTrailingRecords(t *testing.T) {
	g := NewWithT(t)
	img := filepath.Join(t.TempDir(), "flash.img")
	d, err := vfs.Mount(img, flash.Geometry{PageSize: 512, PageCount: 10, WriteBlockSize: 4})
	g.Expect(err).NotTo(HaveOccurred())
	t.Cleanup(func() { _ = d.Close() })
	g.Expect(d.Format()).To(Succeed())

	g.Expect(d.NewFile("/a", 1000, false)).To(Succeed())
	g.Expect(d.NewFile("/b", 1000, false)).To(Succeed())
	g.Expect(d.NewFile("/c", 1000, false)).To(Succeed())

	st, err := d.Statvfs()
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(st.BlocksFree).To(Equal(4)) // 10 pages - 3*2 pages

	payload := []byte(strings.Repeat("A", 100))
	hb, err := d.Open("/b", 0)
	g.Expect(err).NotTo(HaveOccurred())
	n, err := d.Write(hb, payload)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(n).To(Equal(len(payload)))
	g.Expect(d.CloseFile(hb)).To(Succeed())

	g.Expect(d.Unlink("/a")).To(Succeed())

	st, err = d.Statvfs()
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(st.BlocksFree).To(Equal(6)) // /a's 2 pages reclaimed

	hb2, err := d.Open("/b", 0)
	g.Expect(err).NotTo(HaveOccurred())
	buf := make([]byte, len(payload))
	n, err = d.Read(hb2, buf)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(string(buf[:n])).To(Equal(string(payload)))
	g.Expect(d.CloseFile(hb2)).To(Succeed())

	h, err := d.Opendir("/")
	g.Expect(err).NotTo(HaveOccurred())
	defer d.Closedir(h)

	e1, err := d.Readdir(h)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(e1.Name).To(Equal("b"))

	e2, err := d.Readdir(h)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(e2.Name).To(Equal("c"))

	e3, err := d.Readdir(h)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(e3).To(BeNil())
}
