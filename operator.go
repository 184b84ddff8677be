// Package filetree contains the core domain types and interfaces for a
// virtual folder hierarchy that is stored on disk below a single root directory.
package filetree

import (
	"context"
	"time"
)

// TreeOperator defines the mutations entrypoints may perform on the tree.
// Every failure is an [*Error] tagged with a [Kind].
type TreeOperator interface {
	// CreateFolder creates FolderPath/Name, creating missing ancestors.
	// Fails with KindConflict when anything already exists at the target.
	CreateFolder(ctx context.Context, req *CreateFolderRequest) error

	// CreateFile writes Data to FolderPath/Name. FolderPath must exist.
	CreateFile(ctx context.Context, req *CreateFileRequest) error

	// DeleteFile removes a single file.
	DeleteFile(ctx context.Context, req *DeleteFileRequest) error

	// DeleteFolder removes a folder after lifting each of its direct
	// children one level up into the folder's parent.
	DeleteFolder(ctx context.Context, req *DeleteFolderRequest) error
}

// Authenticator resolves an opaque credential to a [User].
// Unknown credentials fail with KindUnauthorized.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*User, error)
}

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// User is the authenticated identity attached to a request
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type userCtxKey struct{}

// WithUser returns a copy of ctx carrying u
func WithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, userCtxKey{}, u)
}

// UserFromContext returns the user stored by [WithUser], if any
func UserFromContext(ctx context.Context) (*User, bool) {
	u, ok := ctx.Value(userCtxKey{}).(*User)
	return u, ok && u != nil
}
