// Package tree implements the folder/file mutations of [filetree.TreeOperator]
// directly against the filesystem below a single root directory.
//
// The filesystem is the only source of truth: nothing is cached and no
// process-wide lock is held, so concurrent requests touching overlapping
// paths may interleave.
package tree

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"syscall"

	"github.com/brettbedarf/filetree"
	"github.com/brettbedarf/filetree/config"
	"github.com/brettbedarf/filetree/internal/util"
	"github.com/google/uuid"
)

// Options tune how new entries are created
type Options struct {
	OverwriteFiles bool        // default for [filetree.CreateFileRequest.Overwrite]
	DirPerms       os.FileMode // mode for new folders, before umask
	FilePerms      os.FileMode // mode for new files, before umask
}

// DefaultOptions mirror the config defaults
func DefaultOptions() Options {
	return Options{
		OverwriteFiles: config.DefaultOverwriteFiles,
		DirPerms:       config.DefaultDirPerms,
		FilePerms:      config.DefaultFilePerms,
	}
}

// Tree is the filesystem-backed [filetree.TreeOperator]
type Tree struct {
	root string // absolute, cleaned; immutable after New
	opts Options
}

var _ filetree.TreeOperator = (*Tree)(nil)

// New returns a Tree confined to root, which must be an existing directory.
func New(root string, opts Options) (*Tree, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root %q: %w", root, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root %q is not a directory", abs)
	}
	if opts.DirPerms == 0 {
		opts.DirPerms = config.DefaultDirPerms
	}
	if opts.FilePerms == 0 {
		opts.FilePerms = config.DefaultFilePerms
	}
	return &Tree{root: abs, opts: opts}, nil
}

// NewFromConfig builds a Tree from a normalized [config.Config]
func NewFromConfig(cfg *config.Config) (*Tree, error) {
	return New(cfg.Root, Options{
		OverwriteFiles: cfg.OverwriteFiles,
		DirPerms:       os.FileMode(cfg.DirPerms),
		FilePerms:      os.FileMode(cfg.FilePerms),
	})
}

// Root returns the absolute root directory
func (t *Tree) Root() string {
	return t.root
}

// CreateFolder implements [filetree.TreeOperator]. The final mkdir is the
// existence check, so two racing creates can't both succeed.
func (t *Tree) CreateFolder(ctx context.Context, req *filetree.CreateFolderRequest) error {
	const op = "CreateFolder"
	logger := util.GetLogger("Tree.CreateFolder")
	logical := filepath.Join(req.FolderPath, req.Name)
	logger.Debug().Str("name", req.Name).Str("folderPath", req.FolderPath).Msg("CreateFolder called")

	if err := ctx.Err(); err != nil {
		return filetree.NewError(filetree.KindInternal, op, logical, "Request cancelled", err)
	}
	if !validName(req.Name) {
		return filetree.NewError(filetree.KindInvalidPath, op, logical, "Folder name must be a single path segment", nil)
	}
	target, ok := t.resolve(req.FolderPath, req.Name)
	if !ok || !IsContained(t.root, target) {
		logger.Warn().Str("path", logical).Msg("Rejected folder outside root")
		return filetree.NewError(filetree.KindInvalidPath, op, logical, "Folder path is invalid", nil)
	}

	if err := os.MkdirAll(filepath.Dir(target), t.opts.DirPerms); err != nil {
		if errors.Is(err, syscall.ENOTDIR) || errors.Is(err, fs.ErrExist) {
			return filetree.NewError(filetree.KindConflict, op, logical, "A file exists along the folder path", err)
		}
		logger.Error().Err(err).Str("path", logical).Msg("Failed to create parent folders")
		return filetree.NewError(filetree.KindInternal, op, logical, "Failed to create folder", err)
	}
	if err := os.Mkdir(target, t.opts.DirPerms); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return filetree.NewError(filetree.KindConflict, op, logical, "Folder already exists", err)
		}
		logger.Error().Err(err).Str("path", logical).Msg("Failed to create folder")
		return filetree.NewError(filetree.KindInternal, op, logical, "Failed to create folder", err)
	}

	logger.Info().Str("path", logical).Msg("Created folder")
	return nil
}

// CreateFile implements [filetree.TreeOperator]. With overwrite disabled the
// file is opened O_EXCL so an existing file is reported as a conflict
// instead of being replaced.
func (t *Tree) CreateFile(ctx context.Context, req *filetree.CreateFileRequest) error {
	const op = "CreateFile"
	logger := util.GetLogger("Tree.CreateFile")
	logical := filepath.Join(req.FolderPath, req.Name)
	overwrite := util.ValueOrDefault(req.Overwrite, t.opts.OverwriteFiles)
	logger.Debug().Str("path", logical).Int("size", len(req.Data)).Bool("overwrite", overwrite).Msg("CreateFile called")

	if err := ctx.Err(); err != nil {
		return filetree.NewError(filetree.KindInternal, op, logical, "Request cancelled", err)
	}
	if !validName(req.Name) {
		return filetree.NewError(filetree.KindInvalidPath, op, logical, "File name must be a single path segment", nil)
	}
	parent, ok := t.resolve(req.FolderPath)
	if !ok || (parent != t.root && !IsContained(t.root, parent)) {
		return filetree.NewError(filetree.KindInvalidPath, op, logical, "File path is invalid", nil)
	}
	if info, err := os.Stat(parent); err != nil || !info.IsDir() {
		return filetree.NewError(filetree.KindNotFound, op, req.FolderPath, "Folder does not exist", err)
	}
	target := filepath.Join(parent, req.Name)
	if !IsContained(t.root, target) {
		return filetree.NewError(filetree.KindInvalidPath, op, logical, "File path is invalid", nil)
	}

	flags := os.O_WRONLY | os.O_CREATE
	if overwrite {
		flags |= os.O_TRUNC
	} else {
		flags |= os.O_EXCL
	}
	f, err := os.OpenFile(target, flags, t.opts.FilePerms)
	if err != nil {
		switch {
		case errors.Is(err, fs.ErrExist):
			return filetree.NewError(filetree.KindConflict, op, logical, "File already exists", err)
		case errors.Is(err, syscall.EISDIR):
			return filetree.NewError(filetree.KindConflict, op, logical, "A folder exists at the file path", err)
		case errors.Is(err, fs.ErrNotExist):
			// parent removed since the stat above
			return filetree.NewError(filetree.KindNotFound, op, req.FolderPath, "Folder does not exist", err)
		}
		logger.Error().Err(err).Str("path", logical).Msg("Failed to open file")
		return filetree.NewError(filetree.KindInternal, op, logical, "Failed to create file", err)
	}
	_, werr := f.Write(req.Data)
	cerr := f.Close()
	if err := errors.Join(werr, cerr); err != nil {
		logger.Error().Err(err).Str("path", logical).Msg("Failed to write file")
		return filetree.NewError(filetree.KindInternal, op, logical, "Failed to write file", err)
	}

	logger.Info().Str("path", logical).Int("size", len(req.Data)).Msg("Created file")
	return nil
}

// DeleteFile implements [filetree.TreeOperator]. Folders are never removed
// by this operation.
func (t *Tree) DeleteFile(ctx context.Context, req *filetree.DeleteFileRequest) error {
	const op = "DeleteFile"
	logger := util.GetLogger("Tree.DeleteFile")
	logger.Debug().Str("path", req.FilePath).Msg("DeleteFile called")

	if err := ctx.Err(); err != nil {
		return filetree.NewError(filetree.KindInternal, op, req.FilePath, "Request cancelled", err)
	}
	target, ok := t.resolve(req.FilePath)
	if !ok || !IsContained(t.root, target) {
		return filetree.NewError(filetree.KindInvalidPath, op, req.FilePath, "File path is invalid", nil)
	}
	info, err := os.Lstat(target)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return filetree.NewError(filetree.KindNotFound, op, req.FilePath, "File does not exist", err)
		}
		return filetree.NewError(filetree.KindInternal, op, req.FilePath, "Failed to delete file", err)
	}
	if info.IsDir() {
		return filetree.NewError(filetree.KindNotFound, op, req.FilePath, "File does not exist", nil)
	}

	if err := os.Remove(target); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return filetree.NewError(filetree.KindNotFound, op, req.FilePath, "File does not exist", err)
		}
		logger.Error().Err(err).Str("path", req.FilePath).Msg("Failed to delete file")
		return filetree.NewError(filetree.KindInternal, op, req.FilePath, "Failed to delete file", err)
	}

	logger.Info().Str("path", req.FilePath).Msg("Deleted file")
	return nil
}

// DeleteFolder implements [filetree.TreeOperator].
//
// The folder is first renamed to a hidden staging name next to it so that a
// child sharing the folder's own name can be lifted without colliding with
// it. Children are then moved into the parent one at a time with no-replace
// renames. If any move fails, the moved children are put back and the
// staging folder is renamed to its original name; the returned error says
// whether that rollback completed. Only the emptied folder shell is removed.
func (t *Tree) DeleteFolder(ctx context.Context, req *filetree.DeleteFolderRequest) error {
	const op = "DeleteFolder"
	logger := util.GetLogger("Tree.DeleteFolder")
	logger.Debug().Str("path", req.FolderPath).Msg("DeleteFolder called")

	if err := ctx.Err(); err != nil {
		return filetree.NewError(filetree.KindInternal, op, req.FolderPath, "Request cancelled", err)
	}
	target, ok := t.resolve(req.FolderPath)
	if ok && target == t.root {
		return filetree.NewError(filetree.KindInvalidPath, op, req.FolderPath, "Cannot delete root folder", nil)
	}
	if !ok || !IsContained(t.root, target) {
		return filetree.NewError(filetree.KindInvalidPath, op, req.FolderPath, "Folder path is invalid", nil)
	}
	info, err := os.Lstat(target)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return filetree.NewError(filetree.KindNotFound, op, req.FolderPath, "Folder does not exist", err)
		}
		return filetree.NewError(filetree.KindInternal, op, req.FolderPath, "Failed to delete folder", err)
	}
	if !info.IsDir() {
		return filetree.NewError(filetree.KindNotFound, op, req.FolderPath, "Folder does not exist", nil)
	}

	parent := filepath.Dir(target)
	// fixed length so folders with names near NAME_MAX can still be staged
	staging := filepath.Join(parent, ".reparent-"+uuid.NewString())
	if err := renameNoReplace(target, staging); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return filetree.NewError(filetree.KindNotFound, op, req.FolderPath, "Folder does not exist", err)
		}
		logger.Error().Err(err).Str("path", req.FolderPath).Msg("Failed to stage folder")
		return filetree.NewError(filetree.KindInternal, op, req.FolderPath, "Failed to delete folder", err)
	}

	entries, err := os.ReadDir(staging)
	if err != nil {
		rbErr := t.rollback(staging, target, parent, nil)
		return t.reparentError(op, req.FolderPath, fmt.Errorf("failed to list children: %w", err), rbErr)
	}

	moved := make([]string, 0, len(entries))
	for _, entry := range entries { // sorted by name
		name := entry.Name()
		var moveErr error
		if err := ctx.Err(); err != nil {
			moveErr = fmt.Errorf("cancelled before moving %q: %w", name, err)
		} else if err := renameNoReplace(filepath.Join(staging, name), filepath.Join(parent, name)); err != nil {
			moveErr = fmt.Errorf("failed to move %q up: %w", name, err)
		}
		if moveErr != nil {
			logger.Error().Err(moveErr).Str("path", req.FolderPath).Int("moved", len(moved)).
				Int("children", len(entries)).Msg("Reparenting failed, rolling back")
			rbErr := t.rollback(staging, target, parent, moved)
			return t.reparentError(op, req.FolderPath, moveErr, rbErr)
		}
		logger.Trace().Str("child", name).Msg("Moved child up")
		moved = append(moved, name)
	}

	if err := os.Remove(staging); err != nil {
		// children are already lifted; leave the empty shell under its own name
		if rerr := renameNoReplace(staging, target); rerr != nil {
			err = errors.Join(err, rerr)
		}
		logger.Error().Err(err).Str("path", req.FolderPath).Msg("Failed to remove emptied folder")
		return filetree.NewError(filetree.KindInternal, op, req.FolderPath,
			"Children were moved up but the folder could not be removed", err)
	}

	logger.Info().Str("path", req.FolderPath).Int("children", len(moved)).Msg("Deleted folder")
	return nil
}

// rollback moves each name in moved from parent back into staging (newest
// first) and renames staging back to target.
func (t *Tree) rollback(staging, target, parent string, moved []string) error {
	var errs []error
	for i := len(moved) - 1; i >= 0; i-- {
		name := moved[i]
		if err := renameNoReplace(filepath.Join(parent, name), filepath.Join(staging, name)); err != nil {
			errs = append(errs, fmt.Errorf("failed to restore %q: %w", name, err))
		}
	}
	if err := renameNoReplace(staging, target); err != nil {
		errs = append(errs, fmt.Errorf("failed to restore folder from %q: %w", filepath.Base(staging), err))
	}
	return errors.Join(errs...)
}

func (t *Tree) reparentError(op, path string, cause, rollbackErr error) error {
	if rollbackErr == nil {
		return filetree.NewError(filetree.KindInternal, op, path,
			"Folder delete failed and was rolled back", cause)
	}
	logger := util.GetLogger("Tree.DeleteFolder")
	logger.Error().Err(rollbackErr).Str("path", path).Msg("Rollback incomplete")
	return filetree.NewError(filetree.KindInternal, op, path,
		"Folder delete failed and rollback was incomplete; re-inspect the tree", errors.Join(cause, rollbackErr))
}
