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
	"testing"

	. "github.com/onsi/gomega"
)

// Creating a file, writing bytes, and reading them back round-trips
// exactly, and stat reports the written size.
func TestCreateWriteReadBack(t *testing.T) {
	g := NewWithT(t)
	d := mountScenario(g, t, 10)
	g.Expect(d.Format()).To(Succeed())

	g.Expect(d.NewFile("/a", 100, false)).To(Succeed())

	h, err := d.Open("/a", 0)
	g.Expect(err).NotTo(HaveOccurred())

	n, err := d.Write(h, []byte{0x48, 0x65, 0x6c, 0x6c, 0x6f})
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(n).To(Equal(5))
	g.Expect(d.CloseFile(h)).To(Succeed())

	h2, err := d.Open("/a", 0)
	g.Expect(err).NotTo(HaveOccurred())
	defer d.CloseFile(h2)

	buf := make([]byte, 5)
	n, err = d.Read(h2, buf)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(string(buf[:n])).To(Equal("Hello"))

	info, err := d.Stat("/a")
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(info.Size).To(Equal(uint32(5)))
}
