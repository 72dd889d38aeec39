package storage_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"social-go/internal/config"
	"social-go/internal/storage"
)

func TestLocalStorage_UploadAndDelete(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "uploads")
	svc, err := storage.NewLocalStorageService(config.StorageConfig{LocalPath: dir, BaseURL: "/uploads/"})
	require.NoError(t, err)

	data := "not really a png"
	info, err := svc.UploadFile(ctx, strings.NewReader(data), int64(len(data)), "Avatar.PNG", "image/png")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(info.URL, "/uploads/"), info.URL)
	assert.True(t, strings.HasSuffix(info.URL, ".png"), info.URL)
	assert.Equal(t, "image/png", info.MimeType)
	assert.EqualValues(t, len(data), info.Size)

	stored, err := os.ReadFile(info.Path)
	require.NoError(t, err)
	assert.Equal(t, data, string(stored))

	require.NoError(t, svc.DeleteFile(ctx, info.Path))
	_, err = os.Stat(info.Path)
	assert.True(t, os.IsNotExist(err))
	// 重复删除不报错
	require.NoError(t, svc.DeleteFile(ctx, info.Path))
}

func TestLocalStorage_Rejects(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	svc, err := storage.NewLocalStorageService(config.StorageConfig{LocalPath: dir, BaseURL: "/uploads"})
	require.NoError(t, err)

	_, err = svc.UploadFile(ctx, strings.NewReader("hello"), 5, "notes.txt", "text/plain")
	assert.ErrorIs(t, err, storage.ErrUnsupportedFileType)

	_, err = svc.UploadFile(ctx, strings.NewReader("hello"), 99, "a.gif", "image/gif")
	assert.Error(t, err)
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "short write leaves no file behind")

	outside := filepath.Join(t.TempDir(), "x.png")
	assert.Error(t, svc.DeleteFile(ctx, outside))
}
