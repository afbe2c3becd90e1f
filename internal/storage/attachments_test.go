package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllowedFile(t *testing.T) {
	tests := map[string]bool{
		"report.pdf":     true,
		"photo.JPEG":     true,
		"notes.txt":      true,
		"archive.tar.gz": false,
		"script.sh":      false,
		"noextension":    false,
		"minutes.docx":   true,
	}
	for name, want := range tests {
		assert.Equal(t, want, AllowedFile(name), name)
	}
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "my_report.pdf", SanitizeFilename("my report.pdf"))
	assert.Equal(t, "passwd.txt", SanitizeFilename("../../etc/passwd.txt"))
	assert.Equal(t, "evil.txt", SanitizeFilename(`C:\Windows\evil.txt`))
	assert.Equal(t, "caf.png", SanitizeFilename("café.png"))
	assert.Equal(t, "", SanitizeFilename("..."))
}

func TestStoredName(t *testing.T) {
	tests := map[string]string{
		"screen shot.png": "screen_shot.png",
		"测试.pdf":          "attachment.pdf",
		"отчёт.DOCX":       "attachment.docx",
		".pdf":             "attachment.pdf",
		"café.png":         "caf.png",
	}
	for in, want := range tests {
		assert.Equal(t, want, StoredName(in), in)
	}
}

func TestLocalStore_SaveNonASCIIName(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStore(dir, 1024)
	require.NoError(t, err)

	ref, err := store.Save(context.Background(), "测试.pdf", strings.NewReader("%PDF"))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(ref, "_attachment.pdf"), ref)

	_, err = os.Stat(filepath.Join(dir, strings.TrimPrefix(ref, "uploads/")))
	assert.NoError(t, err)
}

func TestLocalStore_SaveAndRemove(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStore(dir, 1024)
	require.NoError(t, err)

	ref, err := store.Save(context.Background(), "screen shot.png", strings.NewReader("png-bytes"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(ref, "uploads/"))
	assert.True(t, strings.HasSuffix(ref, "_screen_shot.png"))

	stored := filepath.Join(dir, strings.TrimPrefix(ref, "uploads/"))
	content, err := os.ReadFile(stored)
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(content))

	require.NoError(t, store.Remove(ref))
	_, err = os.Stat(stored)
	assert.True(t, os.IsNotExist(err))

	assert.NoError(t, store.Remove(ref))
}

func TestLocalStore_Rejections(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStore(dir, 4)
	require.NoError(t, err)

	_, err = store.Save(context.Background(), "run.exe", strings.NewReader("x"))
	assert.ErrorIs(t, err, ErrExtensionNotAllowed)

	_, err = store.Save(context.Background(), "big.txt", strings.NewReader("too many bytes"))
	assert.ErrorIs(t, err, ErrFileTooLarge)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)

	assert.ErrorIs(t, store.Remove("uploads/../secret"), ErrInvalidFilename)
}
