package storage

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveOutputPath(t *testing.T) {
	abs, err := ResolveOutputPath("out/../image.png")
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(abs))
	assert.Equal(t, "image.png", filepath.Base(abs))

	wd, err := os.Getwd()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(wd, "image.png"), abs)

	_, err = ResolveOutputPath("  ")
	assert.Error(t, err)
}

func TestEnsureParent(t *testing.T) {
	target := filepath.Join(t.TempDir(), "a", "b", "c.png")
	require.NoError(t, EnsureParent(target))

	info, err := os.Stat(filepath.Dir(target))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestTempPath(t *testing.T) {
	target := filepath.Join("/tmp", "out", "cat.png")
	p1 := TempPath(target, "nowm")
	p2 := TempPath(target, "nowm")

	assert.Equal(t, filepath.Dir(target), filepath.Dir(p1))
	assert.True(t, strings.HasPrefix(filepath.Base(p1), "cat.nowm-"))
	assert.Equal(t, ".png", filepath.Ext(p1))
	assert.NotEqual(t, p1, p2)
}

func TestCommit(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "image.png")
	require.NoError(t, os.WriteFile(target, []byte("old"), 0644))

	tmp := TempPath(target, "part")
	require.NoError(t, os.WriteFile(tmp, []byte("new"), 0644))

	require.NoError(t, Commit(tmp, target))

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))
	assert.NoFileExists(t, tmp)
}

func TestCommitRemovesTempOnFailure(t *testing.T) {
	dir := t.TempDir()
	tmp := filepath.Join(dir, "partial.png")
	require.NoError(t, os.WriteFile(tmp, []byte("x"), 0644))

	err := Commit(tmp, filepath.Join(dir, "missing", "dir", "image.png"))
	require.Error(t, err)
	assert.NoFileExists(t, tmp)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("boom") }

func TestWriteAtomic(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "nested", "meta.json")

	require.NoError(t, WriteAtomic(target, bytes.NewReader([]byte(`{"ok":true}`)), 0644))
	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(data))

	err = WriteAtomic(target, failingReader{}, 0644)
	require.Error(t, err)

	// the previous content survives and no temp files are left behind
	data, err = os.ReadFile(target)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(data))

	entries, err := os.ReadDir(filepath.Dir(target))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestManagerNextPath(t *testing.T) {
	tempDir := t.TempDir()

	manager, err := NewManager(filepath.Join(tempDir, "images"))
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(manager.GetOutputDir()))

	first := manager.NextPath("gemini", "png")
	assert.Equal(t, filepath.Join(manager.GetOutputDir(), "gemini-001.png"), first)

	// reserved but not yet written
	second := manager.NextPath("gemini", ".png")
	assert.Equal(t, filepath.Join(manager.GetOutputDir(), "gemini-002.png"), second)

	// files from an earlier run are skipped
	require.NoError(t, os.WriteFile(filepath.Join(manager.GetOutputDir(), "gemini-003.png"), []byte("x"), 0644))
	third := manager.NextPath("gemini", ".png")
	assert.Equal(t, filepath.Join(manager.GetOutputDir(), "gemini-004.png"), third)

	assert.Equal(t, 3, manager.ReservedCount())
}
