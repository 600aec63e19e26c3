package fsutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

func TestWriteJSONAtomic(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	tmp := filepath.Join(dir, "tmp")
	out := filepath.Join(dir, "out")
	require.NoError(t, EnsureDirs(tmp, out))

	dst := filepath.Join(out, "a.json")
	require.NoError(t, WriteJSONAtomic(tmp, dst, sample{Name: "XAUUSD", Price: 2000.5}))

	var got sample
	require.NoError(t, ReadJSON(dst, &got))
	assert.Equal(t, sample{Name: "XAUUSD", Price: 2000.5}, got)

	leftovers, err := os.ReadDir(tmp)
	require.NoError(t, err)
	assert.Empty(t, leftovers, "temp file must be renamed away")
}

func TestWriteJSONAtomicEncodeError(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	err := WriteJSONAtomic(dir, filepath.Join(dir, "bad.json"), map[string]any{"ch": make(chan int)})
	assert.Error(t, err)

	_, statErr := os.Stat(filepath.Join(dir, "bad.json"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestRemoveIfExists(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	p := filepath.Join(dir, "x")
	require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))

	assert.NoError(t, RemoveIfExists(p))
	assert.NoError(t, RemoveIfExists(p))
}
