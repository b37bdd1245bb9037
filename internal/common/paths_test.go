package common

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanPath(t *testing.T) {
	cleaned, err := CleanPath("/tmp/a/./b")
	require.NoError(t, err)
	assert.Equal(t, filepath.Clean("/tmp/a/b"), cleaned)

	_, err = CleanPath("../outside")
	assert.Error(t, err)

	// A name that merely contains dots is not traversal.
	cleaned, err = CleanPath("/tmp/report..v2")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/report..v2", cleaned)
}

func TestValidatePath(t *testing.T) {
	_, err := ValidatePath("/data/reports/x.json", "/data/reports")
	assert.NoError(t, err)

	// Sibling directory sharing a prefix must be rejected.
	_, err = ValidatePath("/data/reports-old/x.json", "/data/reports")
	assert.Error(t, err)
}

func TestJoinPath(t *testing.T) {
	base := t.TempDir()

	joined, err := JoinPath(base, "definition/tables/dim_Date.tmdl")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "definition", "tables", "dim_Date.tmdl"), joined)

	_, err = JoinPath(base, "../escape.txt")
	assert.Error(t, err)

	joined, err = JoinPath(base, "a/../b.txt")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "b.txt"), joined)
}

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.js")

	require.NoError(t, WriteFileAtomic(path, []byte("first"), FilePermissionNormal))
	require.NoError(t, WriteFileAtomic(path, []byte("second"), FilePermissionNormal))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")

	err = WriteFileAtomic(filepath.Join(dir, "missing", "x"), []byte("x"), FilePermissionNormal)
	assert.Error(t, err)
}
