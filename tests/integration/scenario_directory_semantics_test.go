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

// Directories are synthesized from flat file paths rather than stored
// as their own records: mkdir creates an empty-dir sentinel, a file
// nested under it makes it non-empty, and removing that file leaves
// the sentinel behind so the directory keeps existing.
func TestDirectorySemanticsFromFlatPaths(t *testing.T) {
	g := NewWithT(t)
	d := mountScenario(g, t, 10)
	g.Expect(d.Format()).To(Succeed())

	g.Expect(d.Mkdir("/d")).To(Succeed())
	g.Expect(d.NewFile("/d/f", 10, false)).To(Succeed())

	dirInfo, err := d.Stat("/d")
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(dirInfo.IsDir).To(BeTrue())

	fileInfo, err := d.Stat("/d/f")
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(fileInfo.IsDir).To(BeFalse())

	h, err := d.Opendir("/d")
	g.Expect(err).NotTo(HaveOccurred())
	e, err := d.Readdir(h)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(e.Name).To(Equal("f"))
	e, err = d.Readdir(h)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(e).To(BeNil())
	g.Expect(d.Closedir(h)).To(Succeed())

	g.Expect(d.Unlink("/d/f")).To(Succeed())

	dirInfo, err = d.Stat("/d")
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(dirInfo.IsDir).To(BeTrue())

	h2, err := d.Opendir("/d")
	g.Expect(err).NotTo(HaveOccurred())
	e2, err := d.Readdir(h2)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(e2).To(BeNil())
	g.Expect(d.Closedir(h2)).To(Succeed())
}
