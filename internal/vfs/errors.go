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

package vfs

import (
	"errors"
	"syscall"

	"xipfs/internal/common"
)

// VFS error codes mapped to syscall errors
var (
	ENOENT       = syscall.ENOENT       // No such file or directory
	EEXIST       = syscall.EEXIST       // File exists
	ENOTDIR      = syscall.ENOTDIR      // Not a directory
	EISDIR       = syscall.EISDIR       // Is a directory
	EBADF        = syscall.EBADF        // Bad file descriptor
	EINVAL       = syscall.EINVAL       // Invalid argument
	ENOTSUP      = syscall.ENOTSUP      // Operation not supported
	ENOSPC       = syscall.ENOSPC       // No space left on device
	EIO          = syscall.EIO          // I/O error
	EACCES       = syscall.EACCES       // Permission denied
	EPERM        = syscall.EPERM        // Operation not permitted
	EROFS        = syscall.EROFS        // Read-only file system
	ENOATTR      = syscall.ENODATA      // Attribute not found (xattr)
	ENOTEMPTY    = syscall.ENOTEMPTY    // Directory not empty
	ENAMETOOLONG = syscall.ENAMETOOLONG // Path exceeds PATH_MAX-1
	EDQUOT       = syscall.EDQUOT       // Mount has no space for the reservation
	EMFILE       = syscall.EMFILE       // Open-handle table is full
	EBUSY        = syscall.EBUSY        // Mount already locked by another process
)

// ToErrno translates a sentinel error from internal/common (or one of
// its own package errors) into the POSIX-style errno the Driver
// returns at its call boundary: internal layers set a descriptive
// sentinel, and this is the single place that turns it into the
// negative -ERRNO callers expect. A nil error maps to nil.
func ToErrno(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, common.ErrNotFound):
		return ENOENT
	case errors.Is(err, common.ErrExists):
		return EEXIST
	case errors.Is(err, common.ErrNotDir):
		return ENOTDIR
	case errors.Is(err, common.ErrIsDir):
		return EISDIR
	case errors.Is(err, common.ErrNotEmpty):
		return ENOTEMPTY
	case errors.Is(err, common.ErrInvalidPath):
		return EINVAL
	case errors.Is(err, common.ErrInvalidHandle):
		return EBADF
	case errors.Is(err, common.ErrReadOnly):
		return EROFS
	case errors.Is(err, common.ErrIO):
		return EIO
	case errors.Is(err, common.ErrNoSpace):
		return EDQUOT
	case errors.Is(err, common.ErrFull):
		return EDQUOT
	case errors.Is(err, common.ErrTooManyOpen):
		return EMFILE
	case errors.Is(err, common.ErrFlashVerify):
		return EIO
	case errors.Is(err, common.ErrNameTooLong):
		return ENAMETOOLONG
	case errors.Is(err, common.ErrBadRecord):
		return EIO
	case errors.Is(err, common.ErrNotExec):
		return EACCES
	case errors.Is(err, common.ErrMaxOffset):
		return EINVAL
	case errors.Is(err, common.ErrSizeHistoryFull):
		return EIO
	case errors.Is(err, common.ErrMountLocked):
		return EBUSY
	default:
		return EIO
	}
}
