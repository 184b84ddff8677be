package filetree

// Request records are built by entrypoints (http, cli) after input validation
// and passed to a [TreeOperator]. All paths are logical, i.e. relative to the
// configured root; "" means the root itself.

type CreateFolderRequest struct {
	Name       string
	FolderPath string // existing or to-be-created parent folder
}

type CreateFileRequest struct {
	Name       string
	FolderPath string // must reference an existing folder
	Data       []byte
	// Overwrite selects between replacing an existing file and failing with
	// a conflict. nil uses the operator's configured default.
	Overwrite *bool
}

type DeleteFileRequest struct {
	FilePath string
}

type DeleteFolderRequest struct {
	FolderPath string
}
