package tree

import (
	"errors"
	"io/fs"
	"os"
)

// renameChecked moves oldpath to newpath unless newpath already exists.
// The existence check is not atomic with the rename; it's only used where
// the platform has no no-replace rename.
func renameChecked(oldpath, newpath string) error {
	if _, err := os.Lstat(newpath); err == nil {
		return &os.LinkError{Op: "rename", Old: oldpath, New: newpath, Err: fs.ErrExist}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return os.Rename(oldpath, newpath)
}
