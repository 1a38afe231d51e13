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

// Package common holds sentinel errors and path helpers shared by every
// xipfs layer, from the flash primitives up through the Driver.
package common

import (
	"path/filepath"
	"regexp"
	"strings"
)

// validPathChars is the character class permitted in a path per
// invariant 6: letters, digits, '/', '.', '_', '-'.
var validPathChars = regexp.MustCompile(`^[A-Za-z0-9/._-]+$`)

// ValidateFullPath checks a full mount-relative path against invariant 6:
// it must start with '/', contain no empty components (no "//"), and be
// composed only of the permitted character class. pathMax is the header
// field width including the NUL terminator (default 64).
func ValidateFullPath(path string, pathMax int) error {
	if path == "" || path[0] != '/' {
		return ErrInvalidPath
	}
	if len(path)+1 > pathMax {
		return ErrNameTooLong
	}
	if !validPathChars.MatchString(path) {
		return ErrInvalidPath
	}
	if strings.Contains(path, "//") {
		return ErrInvalidPath
	}
	return nil
}

// IsDirPath reports whether a full path denotes a directory per
// invariant 6 (directory paths end with '/').
func IsDirPath(path string) bool {
	return strings.HasSuffix(path, "/")
}

// NormalizePath cleans and normalizes a path, removing leading/trailing slashes
func NormalizePath(path string) string {
	path = filepath.Clean(path)
	path = strings.TrimPrefix(path, "/")
	path = strings.TrimSuffix(path, "/")
	if path == "." {
		return ""
	}
	return path
}

// SplitPath splits a path into its components
func SplitPath(path string) []string {
	path = NormalizePath(path)
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

// JoinPath joins path components
func JoinPath(parts ...string) string {
	return NormalizePath(filepath.Join(parts...))
}

// ParentPath returns the parent directory of a path
func ParentPath(path string) string {
	path = NormalizePath(path)
	if path == "" {
		return ""
	}
	dir := filepath.Dir(path)
	if dir == "." {
		return ""
	}
	return dir
}

// BaseName returns the base name of a path
func BaseName(path string) string {
	path = NormalizePath(path)
	if path == "" {
		return ""
	}
	return filepath.Base(path)
}
