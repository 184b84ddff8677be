package requests

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/brettbedarf/filetree"
	"github.com/brettbedarf/filetree/internal/util"
)

const op = "ValidateInput"

func badRequest(field, msg string, cause error) error {
	return filetree.NewError(filetree.KindBadRequest, op, field, msg, cause)
}

// decodeStrict unmarshals a single JSON object, rejecting unknown fields and
// trailing data
func decodeStrict(data []byte, v any) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return badRequest("", "Request body is required", nil)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return badRequest("", "Malformed request body", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return badRequest("", "Malformed request body", fmt.Errorf("unexpected data after JSON object"))
	}
	return nil
}

// checkName enforces a single, non-empty path segment for new entries
func checkName(field string, name *string, requiredMsg string) (string, error) {
	if name == nil || *name == "" {
		return "", badRequest(field, requiredMsg, nil)
	}
	n := *name
	if n == "." || n == ".." || strings.ContainsAny(n, "/\\\x00") {
		return "", badRequest(field, fmt.Sprintf("%s must be a single path segment", field), nil)
	}
	return n, nil
}

// checkPath rejects logical paths no filesystem can hold
func checkPath(field string, p *string) error {
	if p != nil && strings.ContainsRune(*p, 0) {
		return badRequest(field, fmt.Sprintf("%s must not contain NUL bytes", field), nil)
	}
	return nil
}

// IsRootPath reports whether a logical path denotes the root itself
func IsRootPath(p string) bool {
	c := path.Clean(p)
	return c == "." || c == "/"
}

// UnmarshalCreateFolder decodes and validates a create-folder body
func UnmarshalCreateFolder(data []byte) (*filetree.CreateFolderRequest, error) {
	var dto CreateFolderDTO
	if err := decodeStrict(data, &dto); err != nil {
		return nil, err
	}
	name, err := checkName("name", dto.Name, "Folder name is required")
	if err != nil {
		return nil, err
	}
	if err := checkPath("folderPath", dto.FolderPath); err != nil {
		return nil, err
	}
	return &filetree.CreateFolderRequest{
		Name:       name,
		FolderPath: util.ValueOrDefault(dto.FolderPath, ""),
	}, nil
}

// UnmarshalCreateFile decodes and validates a create-file body
func UnmarshalCreateFile(data []byte) (*filetree.CreateFileRequest, error) {
	var dto CreateFileDTO
	if err := decodeStrict(data, &dto); err != nil {
		return nil, err
	}
	name, err := checkName("name", dto.Name, "File name is required")
	if err != nil {
		return nil, err
	}
	if err := checkPath("folderPath", dto.FolderPath); err != nil {
		return nil, err
	}
	if dto.Data == nil {
		return nil, badRequest("data", "File data is required", nil)
	}
	return &filetree.CreateFileRequest{
		Name:       name,
		FolderPath: util.ValueOrDefault(dto.FolderPath, ""),
		Data:       []byte(*dto.Data),
		Overwrite:  dto.Overwrite,
	}, nil
}

// UnmarshalDeleteFile decodes and validates a delete-file body
func UnmarshalDeleteFile(data []byte) (*filetree.DeleteFileRequest, error) {
	var dto DeleteFileDTO
	if err := decodeStrict(data, &dto); err != nil {
		return nil, err
	}
	if dto.FilePath == nil || *dto.FilePath == "" {
		return nil, badRequest("filePath", "File path is required", nil)
	}
	if err := checkPath("filePath", dto.FilePath); err != nil {
		return nil, err
	}
	return &filetree.DeleteFileRequest{FilePath: *dto.FilePath}, nil
}

// UnmarshalDeleteFolder decodes and validates a delete-folder body. The root
// can never be deleted, so paths that denote it are rejected here before
// the tree is touched.
func UnmarshalDeleteFolder(data []byte) (*filetree.DeleteFolderRequest, error) {
	var dto DeleteFolderDTO
	if err := decodeStrict(data, &dto); err != nil {
		return nil, err
	}
	if dto.FolderPath == nil {
		return nil, badRequest("folderPath", "Folder path is required", nil)
	}
	if err := checkPath("folderPath", dto.FolderPath); err != nil {
		return nil, err
	}
	if IsRootPath(*dto.FolderPath) {
		return nil, badRequest("folderPath", "Cannot delete root folder", nil)
	}
	return &filetree.DeleteFolderRequest{FolderPath: *dto.FolderPath}, nil
}
