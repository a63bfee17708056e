package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type record struct {
	Name  string   `json:"name"`
	Tags  []string `json:"tags"`
	Count int      `json:"count"`
}

func TestLoad_MissingFile(t *testing.T) {
	got := Load[record](filepath.Join(t.TempDir(), "absent.json"))
	require.NotNil(t, got)
	assert.Empty(t, got)
}

func TestLoad_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corrupt.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"M 31": {"name": `), 0644))

	got := Load[record](path)
	require.NotNil(t, got)
	assert.Empty(t, got)
}

func TestLoad_NullDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "null.json")
	require.NoError(t, os.WriteFile(path, []byte(`null`), 0644))

	got := Load[record](path)
	require.NotNil(t, got)
	assert.Empty(t, got)
}

func TestLoad_IgnoresUnknownFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "extra.json")
	doc := `{"M 31": {"name": "Andromeda", "tags": ["galaxy"], "count": 2, "added_later": true}}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0644))

	got := Load[record](path)
	require.Contains(t, got, "M 31")
	assert.Equal(t, record{Name: "Andromeda", Tags: []string{"galaxy"}, Count: 2}, got["M 31"])
}

func TestSave_RoundTripCreatesParents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "cache.json")
	in := map[string]record{
		"M 31":     {Name: "Andromeda", Tags: []string{"galaxy"}},
		"NGC 7000": {Name: "North America", Tags: []string{}},
	}

	require.NoError(t, Save(path, in))
	assert.NoFileExists(t, path+".tmp")

	out := Load[record](path)
	assert.Equal(t, in, out)
}

func TestSave_OverwritesPrevious(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	require.NoError(t, Save(path, map[string]record{"a": {Name: "first"}}))
	require.NoError(t, Save(path, map[string]record{"b": {Name: "second"}}))

	out := Load[record](path)
	assert.NotContains(t, out, "a")
	assert.Equal(t, "second", out["b"].Name)
}

func TestStore_SetPersistReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json")

	s := Open[record](path)
	assert.Equal(t, 0, s.Len())

	s.Set("M 51", record{Name: "Whirlpool"})
	s.Set("IC 342", record{Name: "Hidden Galaxy"})
	require.NoError(t, s.Persist())

	reopened := Open[record](path)
	assert.Equal(t, []string{"IC 342", "M 51"}, reopened.Keys())

	got, ok := reopened.Get("M 51")
	require.True(t, ok)
	assert.Equal(t, "Whirlpool", got.Name)

	reopened.Delete("M 51")
	_, ok = reopened.Get("M 51")
	assert.False(t, ok)
}

func TestStore_Clear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json")
	s := Open[record](path)
	s.Set("x", record{Name: "x"})
	require.NoError(t, s.Persist())
	require.FileExists(t, path)

	require.NoError(t, s.Clear())
	assert.NoFileExists(t, path)
	assert.Equal(t, 0, s.Len())

	// clearing twice is fine
	require.NoError(t, s.Clear())
}

func TestFingerprint(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Stacked_M31.fit")
	require.NoError(t, os.WriteFile(path, []byte("SIMPLE  =                    T"), 0644))

	first, err := Fingerprint(path)
	require.NoError(t, err)

	again, err := Fingerprint(path)
	require.NoError(t, err)
	assert.Equal(t, first, again, "fingerprint must be stable for an untouched file")

	require.NoError(t, os.WriteFile(path, []byte("SIMPLE  =                    T and more bytes"), 0644))
	stamp := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(path, stamp, stamp))

	changed, err := Fingerprint(path)
	require.NoError(t, err)
	assert.NotEqual(t, first, changed)
}

func TestFingerprint_Errors(t *testing.T) {
	_, err := Fingerprint(filepath.Join(t.TempDir(), "missing.fit"))
	assert.Error(t, err)

	_, err = Fingerprint(t.TempDir())
	assert.Error(t, err)
}

func TestCopyFileAndExists(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.png")
	dst := filepath.Join(dir, "out", "copy.png")
	require.NoError(t, os.WriteFile(src, []byte("payload"), 0644))

	assert.False(t, Exists(dst))
	require.NoError(t, CopyFile(src, dst))
	assert.True(t, Exists(dst))
	assert.False(t, Exists(""))
	assert.False(t, Exists(dir))

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
}
