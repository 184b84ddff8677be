package mocks

import (
	"context"

	"github.com/brettbedarf/filetree"
	"github.com/stretchr/testify/mock"
)

// MockTreeOperator implements filetree.TreeOperator for testing across packages
type MockTreeOperator struct {
	mock.Mock
}

var _ filetree.TreeOperator = (*MockTreeOperator)(nil)

func (m *MockTreeOperator) CreateFolder(ctx context.Context, req *filetree.CreateFolderRequest) error {
	return m.Called(ctx, req).Error(0)
}

func (m *MockTreeOperator) CreateFile(ctx context.Context, req *filetree.CreateFileRequest) error {
	return m.Called(ctx, req).Error(0)
}

func (m *MockTreeOperator) DeleteFile(ctx context.Context, req *filetree.DeleteFileRequest) error {
	return m.Called(ctx, req).Error(0)
}

func (m *MockTreeOperator) DeleteFolder(ctx context.Context, req *filetree.DeleteFolderRequest) error {
	return m.Called(ctx, req).Error(0)
}

// MockAuthenticator implements filetree.Authenticator
type MockAuthenticator struct {
	mock.Mock
}

var _ filetree.Authenticator = (*MockAuthenticator)(nil)

func (m *MockAuthenticator) Authenticate(ctx context.Context, token string) (*filetree.User, error) {
	args := m.Called(ctx, token)

	// Handle nil returns
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*filetree.User), args.Error(1)
}
