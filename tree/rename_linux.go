//go:build linux

package tree

import (
	"errors"
	"os"

	"golang.org/x/sys/unix"
)

// renameNoReplace atomically moves oldpath to newpath, failing with EEXIST
// if newpath exists.
func renameNoReplace(oldpath, newpath string) error {
	err := unix.Renameat2(unix.AT_FDCWD, oldpath, unix.AT_FDCWD, newpath, unix.RENAME_NOREPLACE)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, unix.EINVAL), errors.Is(err, unix.ENOSYS):
		// kernel or filesystem without RENAME_NOREPLACE support
		return renameChecked(oldpath, newpath)
	default:
		return &os.LinkError{Op: "rename", Old: oldpath, New: newpath, Err: err}
	}
}
