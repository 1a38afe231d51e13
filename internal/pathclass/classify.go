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

// Package pathclass classifies a path against a mount's file
// directory without the caller having to walk the directory itself:
// every path is exactly one of six states (it exists as a file, as an
// empty or non-empty directory synthesized from flat file paths, it
// is creatable, or it is invalid because a parent component is
// missing or is itself a file).
//
// xipfs has no on-NVM directory entries: a "directory" is inferred
// from the common prefixes of flat file paths. Classification walks
// the whole file list once and, for every candidate path, tracks the
// first file record whose path proves its classification (the
// witness).
package pathclass

import (
	"xipfs/internal/common"
	"xipfs/internal/fsdir"
)

// Info is the classification state of a path.
type Info int

const (
	Undefined Info = iota
	Creatable
	ExistsAsFile
	ExistsAsEmptyDir
	ExistsAsNonEmptyDir
	InvalidBecauseNotDirs
	InvalidBecauseNotFound
)

// Classification holds the result of classifying one path, along with
// the path-splitting state the classification needed along the way.
type Classification struct {
	Path      string
	Dirname   string
	Basename  string
	Len       int
	LastSlash int
	// Parent counts the file records whose path shares this path's
	// parent-directory prefix: the path itself, if stored, and its
	// siblings.
	Parent int
	// Witness is the file record that proved this classification, or
	// nil when none was needed (an empty mount, or not-found).
	Witness *fsdir.Record
	Info    Info
}

func byteAt(s string, i int) byte {
	if i < 0 || i >= len(s) {
		return 0
	}
	return s[i]
}

func initClassification(path string) *Classification {
	c := &Classification{}
	if path == "/" {
		c.Path = "/"
		c.LastSlash = 0
		c.Len = 1
	} else {
		lastSlash := 0
		for i := 0; i < len(path); i++ {
			if path[i] == '/' && i+1 < len(path) {
				lastSlash = i
			}
		}
		c.Path = path
		c.LastSlash = lastSlash
		c.Len = len(path)
	}
	if c.Path == "/" {
		c.Basename = "/"
		c.Dirname = "/"
		return c
	}
	start := c.LastSlash + 1
	end := start
	for end < len(c.Path) && c.Path[end] != '/' {
		end++
	}
	c.Basename = c.Path[start:end]
	c.Dirname = c.Path[:c.LastSlash+1]
	return c
}

// appendSlash appends a trailing slash to c.Path if it does not
// already have one, the way the original marks a path identified as a
// directory. It reports common.ErrNameTooLong if the path is already
// at the maximum length.
func (c *Classification) appendSlash() error {
	if len(c.Path) > 0 && c.Path[len(c.Path)-1] == '/' {
		return nil
	}
	if c.Len == fsdir.PathMax-1 {
		return common.ErrNameTooLong
	}
	c.Path += "/"
	c.Len = len(c.Path)
	return nil
}

// comparePaths returns the index of the first differing byte between
// p1 and p2, treating positions past either string's end as the NUL
// terminator the original's fixed-size path buffers carry.
func comparePaths(p1, p2 string) int {
	i := 0
	for i < fsdir.PathMax {
		c1, c2 := byteAt(p1, i), byteAt(p2, i)
		if c1 != c2 {
			break
		}
		if c1 == 0 {
			break
		}
		i++
	}
	return i
}

func existsAsFile(p1, p2 string, i int) bool {
	if i == 0 {
		return false
	}
	return byteAt(p1, i-1) != '/' && byteAt(p1, i-1) != 0 && byteAt(p1, i) == 0 &&
		byteAt(p2, i-1) != '/' && byteAt(p2, i-1) != 0 && byteAt(p2, i) == 0
}

func existsAsEmptyDir(p1, p2 string, i int) bool {
	c0 := i > 0 &&
		byteAt(p1, i-1) == '/' && byteAt(p1, i) == 0 &&
		byteAt(p2, i-1) == '/' && byteAt(p2, i) == 0
	c1 := i > 0 && i < fsdir.PathMax-1 &&
		byteAt(p1, i-1) != '/' && byteAt(p1, i-1) != 0 &&
		byteAt(p1, i) == '/' && byteAt(p1, i+1) == 0 &&
		byteAt(p2, i-1) != '/' && byteAt(p2, i-1) != 0 && byteAt(p2, i) == 0
	return c0 || c1
}

func existsAsNonEmptyDir(p1, p2 string, i int) bool {
	c0 := i > 0 &&
		byteAt(p1, i-1) == '/' && byteAt(p1, i) != '/' && byteAt(p1, i) != 0 &&
		byteAt(p2, i-1) == '/' && byteAt(p2, i) == 0
	c1 := i > 0 && i < fsdir.PathMax-1 &&
		byteAt(p1, i-1) != '/' && byteAt(p1, i-1) != 0 &&
		byteAt(p1, i) == '/' && byteAt(p1, i+1) != '/' && byteAt(p1, i+1) != 0 &&
		byteAt(p2, i-1) != '/' && byteAt(p2, i-1) != 0 && byteAt(p2, i) == 0
	return c0 || c1
}

func invalidBecauseNotDirs(p1, p2 string, i int) bool {
	return i > 0 && i < fsdir.PathMax-1 &&
		byteAt(p1, i-1) != '/' && byteAt(p1, i-1) != 0 && byteAt(p1, i) == 0 &&
		byteAt(p2, i-1) != '/' && byteAt(p2, i-1) != 0 &&
		byteAt(p2, i) == '/' && byteAt(p2, i+1) != '/' && byteAt(p2, i+1) != 0
}

// ncmp reports whether the first n bytes of a and b match, treating
// positions past either string's end as NUL.
func ncmp(a, b string, n int) bool {
	for k := 0; k < n; k++ {
		if byteAt(a, k) != byteAt(b, k) {
			return false
		}
	}
	return true
}

// ClassifyAll classifies every path in paths against the directory in
// a single pass, so traversal cost is paid once regardless of how
// many paths are being resolved (a multi-path rename, for instance,
// needs both the source and destination classified).
func ClassifyAll(d *fsdir.Directory, paths []string) ([]*Classification, error) {
	out := make([]*Classification, len(paths))
	for j, p := range paths {
		if err := common.ValidateFullPath(p, fsdir.PathMax); err != nil {
			return nil, err
		}
		out[j] = initClassification(p)
	}

	head, err := d.Head()
	if err != nil {
		return nil, err
	}

	if head != nil {
		for cur := head; cur != nil; {
			for _, xp := range out {
				if ncmp(xp.Path, cur.Path, xp.LastSlash) {
					xp.Parent++
				}
				if xp.Info == ExistsAsEmptyDir {
					// A record after the sentinel that lies under it
					// makes the directory non-empty.
					if existsAsNonEmptyDir(cur.Path, xp.Path, comparePaths(cur.Path, xp.Path)) {
						xp.Info = ExistsAsNonEmptyDir
						xp.Witness = cur
					}
				}
				if xp.Info == Undefined || xp.Info == Creatable {
					i := comparePaths(cur.Path, xp.Path)
					if i == fsdir.PathMax {
						return nil, common.ErrBadRecord
					}
					switch {
					case existsAsFile(cur.Path, xp.Path, i):
						xp.Info = ExistsAsFile
						xp.Witness = cur
					case existsAsEmptyDir(cur.Path, xp.Path, i):
						if err := xp.appendSlash(); err != nil {
							return nil, err
						}
						xp.Info = ExistsAsEmptyDir
						xp.Witness = cur
					case existsAsNonEmptyDir(cur.Path, xp.Path, i):
						if err := xp.appendSlash(); err != nil {
							return nil, err
						}
						xp.Info = ExistsAsNonEmptyDir
						xp.Witness = cur
					case invalidBecauseNotDirs(cur.Path, xp.Path, i):
						xp.Info = InvalidBecauseNotDirs
						xp.Witness = cur
					case ncmp(cur.Path, xp.Dirname, xp.LastSlash+1):
						xp.Info = Creatable
						xp.Witness = cur
					}
				}
			}
			nxt, err := d.Next(cur)
			if err != nil {
				return nil, err
			}
			cur = nxt
		}
	} else {
		// No file exists yet, so there is no witness: the mount's
		// root is the only thing that "exists", and only paths one
		// level below it are creatable.
		for _, xp := range out {
			if ncmp("/", xp.Path, xp.LastSlash+1) {
				xp.Info = Creatable
				xp.Witness = nil
			}
		}
	}

	for _, xp := range out {
		if xp.Info == Undefined {
			xp.Info = InvalidBecauseNotFound
			xp.Witness = nil
		}
	}
	return out, nil
}

// Classify classifies a single path against the directory.
func Classify(d *fsdir.Directory, path string) (*Classification, error) {
	all, err := ClassifyAll(d, []string{path})
	if err != nil {
		return nil, err
	}
	return all[0], nil
}
