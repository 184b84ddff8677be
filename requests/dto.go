package requests

// DTOs are the JSON bodies accepted by the transport. Pointer fields
// distinguish a missing field from an empty one so required fields can be
// reported by name.

// CreateFolderDTO is the JSON representation of [filetree.CreateFolderRequest]
type CreateFolderDTO struct {
	Name       *string `json:"name"`
	FolderPath *string `json:"folderPath,omitempty"` // Default "" (root)
}

// CreateFileDTO is the JSON representation of [filetree.CreateFileRequest].
// Data is text; it is written to disk byte for byte.
type CreateFileDTO struct {
	Name       *string `json:"name"`
	Data       *string `json:"data"`
	FolderPath *string `json:"folderPath,omitempty"` // Default "" (root)
	Overwrite  *bool   `json:"overwrite,omitempty"`  // Default from server config
}

// DeleteFileDTO is the JSON representation of [filetree.DeleteFileRequest]
type DeleteFileDTO struct {
	FilePath *string `json:"filePath"`
}

// DeleteFolderDTO is the JSON representation of [filetree.DeleteFolderRequest]
type DeleteFolderDTO struct {
	FolderPath *string `json:"folderPath"`
}
