package storage

import (
	"archive/zip"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirPutCreatesParents(t *testing.T) {
	root := t.TempDir()
	d, err := NewDir(root)
	require.NoError(t, err)

	require.NoError(t, d.Put("one_piece/ch_1/page_001.jpg", []byte("img")))

	data, err := os.ReadFile(filepath.Join(root, "one_piece", "ch_1", "page_001.jpg"))
	require.NoError(t, err)
	assert.Equal(t, []byte("img"), data)
}

func TestDirRemoveDir(t *testing.T) {
	root := t.TempDir()
	d, err := NewDir(root)
	require.NoError(t, err)

	require.NoError(t, d.Put("one_piece/ch_1/page_001.jpg", []byte("img")))
	require.NoError(t, d.RemoveDir("one_piece/ch_1"))

	_, err = os.Stat(filepath.Join(root, "one_piece", "ch_1"))
	assert.True(t, os.IsNotExist(err))
}

func TestBuildCBZ(t *testing.T) {
	blob, err := BuildCBZ(map[string][]byte{
		"page_002.jpg": []byte("two"),
		"page_001.jpg": []byte("one"),
		"page_010.jpg": []byte("ten"),
	})
	require.NoError(t, err)

	zr, err := zip.NewReader(bytes.NewReader(blob), int64(len(blob)))
	require.NoError(t, err)
	require.Len(t, zr.File, 3)

	// Entries are ordered by name so readers page in sequence.
	assert.Equal(t, "page_001.jpg", zr.File[0].Name)
	assert.Equal(t, "page_002.jpg", zr.File[1].Name)
	assert.Equal(t, "page_010.jpg", zr.File[2].Name)

	rc, err := zr.File[0].Open()
	require.NoError(t, err)
	defer rc.Close()
	content, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, []byte("one"), content)
}

func TestBuildCBZEmpty(t *testing.T) {
	_, err := BuildCBZ(nil)
	assert.Error(t, err)
}
