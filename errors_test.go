package filetree

import (
	"errors"
	"fmt"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Is(t *testing.T) {
	err := NewError(KindConflict, "CreateFolder", "docs", "Folder already exists", fs.ErrExist)

	assert.ErrorIs(t, err, ErrConflict)
	assert.ErrorIs(t, err, fs.ErrExist)
	assert.NotErrorIs(t, err, ErrNotFound)

	wrapped := fmt.Errorf("handler: %w", err)
	assert.ErrorIs(t, wrapped, ErrConflict)
	assert.Equal(t, KindConflict, KindOf(wrapped))
}

func TestError_Error(t *testing.T) {
	err := NewError(KindNotFound, "DeleteFile", "a/b.txt", "File does not exist", nil)
	assert.Equal(t, `DeleteFile "a/b.txt": File does not exist`, err.Error())

	err = NewError(KindInternal, "DeleteFolder", "", "Rollback failed", errors.New("boom"))
	assert.Equal(t, "DeleteFolder: Rollback failed: boom", err.Error())
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		err  error
		want Kind
		desc string
	}{
		{NewError(KindInvalidPath, "op", "", "m", nil), KindInvalidPath, "tagged error"},
		{fmt.Errorf("wrap: %w", ErrUnauthorized), KindUnauthorized, "bare sentinel"},
		{errors.New("plain"), KindInternal, "foreign error"},
		{fs.ErrNotExist, KindInternal, "os errors are not classified"},
	}
	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestMessageOf(t *testing.T) {
	assert.Equal(t, "Folder does not exist",
		MessageOf(NewError(KindNotFound, "op", "x", "Folder does not exist", fs.ErrNotExist)))
	assert.Equal(t, "Write failed: disk full",
		MessageOf(NewError(KindInternal, "op", "x", "Write failed", errors.New("disk full"))))
	assert.Equal(t, "disk full",
		MessageOf(NewError(KindInternal, "op", "x", "", errors.New("disk full"))))
	assert.Equal(t, "plain", MessageOf(errors.New("plain")))
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "not_found", KindNotFound.String())
	assert.Equal(t, "internal", Kind(99).String())
}

func TestUserFromContext(t *testing.T) {
	_, ok := UserFromContext(t.Context())
	assert.False(t, ok)

	u := &User{ID: "1", Email: "a@b.c"}
	got, ok := UserFromContext(WithUser(t.Context(), u))
	assert.True(t, ok)
	assert.Same(t, u, got)
}
