package artifact

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestID(t *testing.T) {
	a := ID("sm_SLS MBR")
	assert.Equal(t, a, ID("sm_SLS MBR"))
	assert.NotEqual(t, a, ID("rpt_SLS MBR Report"))
	assert.Len(t, a, 36)
	assert.Equal(t, byte('5'), a[14], "name-based SHA-1 uuid")
}

func TestAddJSON(t *testing.T) {
	fs := FileSet{}
	require.NoError(t, fs.AddJSON("a/b.json", map[string]interface{}{
		"name":  "TI&M <Spend>",
		"count": 2,
	}))
	assert.Equal(t, "{\n  \"count\": 2,\n  \"name\": \"TI&M <Spend>\"\n}", string(fs["a/b.json"]))

	assert.Error(t, fs.AddJSON("bad.json", map[string]interface{}{"f": func() {}}))
}

func TestPathsAndUnder(t *testing.T) {
	fs := FileSet{}
	fs.AddString("definition/model.tmdl", "model")
	fs.AddString(".platform", "{}")
	fs.AddString("./definition/tables/../database.tmdl", "db")

	assert.Equal(t, []string{".platform", "definition/database.tmdl", "definition/model.tmdl"}, fs.Paths())

	under := fs.Under("/fabric/SLS MBR.SemanticModel/")
	assert.Contains(t, under, "fabric/SLS MBR.SemanticModel/.platform")
	assert.Equal(t, 3, len(under))
	assert.Equal(t, fs, fs.Under(""))

	merged := FileSet{}
	merged.Merge(fs)
	merged.Merge(FileSet{".platform": []byte("new")})
	assert.Equal(t, "new", string(merged[".platform"]))
	assert.Equal(t, len("new")+len("model")+len("db"), merged.Size())
}

func TestWrite(t *testing.T) {
	dir := t.TempDir()
	fs := FileSet{}
	fs.AddString("definition/tables/dim_Date.tmdl", "table dim_Date\n")
	fs.AddString(".platform", "{}")

	written, err := fs.Write(dir)
	require.NoError(t, err)
	assert.Len(t, written, 2)

	data, err := os.ReadFile(filepath.Join(dir, "definition", "tables", "dim_Date.tmdl"))
	require.NoError(t, err)
	assert.Equal(t, "table dim_Date\n", string(data))

	info, err := os.Stat(filepath.Join(dir, ".platform"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), info.Mode().Perm())
}

func TestWriteRejectsEscapes(t *testing.T) {
	dir := t.TempDir()
	fs := FileSet{"../outside.txt": []byte("x"), "inside.txt": []byte("y")}

	_, err := fs.Write(dir)
	require.Error(t, err)
	_, statErr := os.Stat(filepath.Join(dir, "inside.txt"))
	assert.True(t, os.IsNotExist(statErr), "nothing written when any path escapes")
}
