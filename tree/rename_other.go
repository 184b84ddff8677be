//go:build !linux

package tree

func renameNoReplace(oldpath, newpath string) error {
	return renameChecked(oldpath, newpath)
}
