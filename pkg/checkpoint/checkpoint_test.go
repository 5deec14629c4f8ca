package checkpoint

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckpointManager(t *testing.T) {
	prompts := []string{"mountain lake at dawn", "pixel art cat", "pixel art cat"}
	id := BatchID("/tmp/prompts.txt", prompts)

	t.Run("CreateAndLoad", func(t *testing.T) {
		mgr, err := NewManagerIn(t.TempDir(), id)
		require.NoError(t, err)

		cp, err := mgr.Create(id, "/tmp/prompts.txt", len(prompts))
		require.NoError(t, err)
		assert.Equal(t, 3, cp.TotalPrompts)
		assert.True(t, mgr.Exists())

		loaded, err := mgr.Load()
		require.NoError(t, err)
		require.NotNil(t, loaded)
		assert.Equal(t, id, loaded.BatchID)
		assert.Equal(t, "/tmp/prompts.txt", loaded.Source)
		assert.Empty(t, loaded.Generated)
	})

	t.Run("LoadMissing", func(t *testing.T) {
		mgr, err := NewManagerIn(t.TempDir(), id)
		require.NoError(t, err)

		cp, err := mgr.Load()
		assert.NoError(t, err)
		assert.Nil(t, cp)
		assert.False(t, mgr.Exists())
	})

	t.Run("RecordGeneration", func(t *testing.T) {
		mgr, err := NewManagerIn(t.TempDir(), id)
		require.NoError(t, err)
		cp, err := mgr.Create(id, "prompts.txt", len(prompts))
		require.NoError(t, err)

		require.NoError(t, mgr.RecordGeneration(cp, 1, prompts[1], "/out/gemini-001.png"))
		require.NoError(t, mgr.RecordGeneration(cp, 1, prompts[1], "/out/gemini-001.png"))

		loaded, err := mgr.Load()
		require.NoError(t, err)
		assert.Equal(t, 1, loaded.TotalGenerated)
		assert.True(t, loaded.IsGenerated(1, prompts[1]))
		assert.False(t, loaded.IsGenerated(2, prompts[2]), "repeated prompt at another line is separate")
		assert.False(t, loaded.IsGenerated(0, prompts[0]))
	})

	t.Run("Delete", func(t *testing.T) {
		mgr, err := NewManagerIn(t.TempDir(), id)
		require.NoError(t, err)
		_, err = mgr.Create(id, "prompts.txt", 1)
		require.NoError(t, err)

		require.NoError(t, mgr.Delete())
		assert.False(t, mgr.Exists())
		assert.NoError(t, mgr.Delete(), "deleting twice is fine")
	})

	t.Run("CorruptFile", func(t *testing.T) {
		dir := t.TempDir()
		mgr, err := NewManagerIn(dir, id)
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(mgr.Path(), []byte("{not json"), 0644))

		_, err = mgr.Load()
		assert.Error(t, err)
	})

	t.Run("UnknownVersion", func(t *testing.T) {
		dir := t.TempDir()
		mgr, err := NewManagerIn(dir, id)
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(mgr.Path(), []byte(`{"batch_id":"x","version":99}`), 0644))

		_, err = mgr.Load()
		assert.Error(t, err)
	})
}

func TestBatchID(t *testing.T) {
	a := BatchID("prompts.txt", []string{"one", "two"})
	assert.Len(t, a, 16)
	assert.Equal(t, a, BatchID("prompts.txt", []string{"one", "two"}))
	assert.NotEqual(t, a, BatchID("prompts.txt", []string{"one", "three"}))
	assert.NotEqual(t, a, BatchID("other.txt", []string{"one", "two"}))
	assert.NotEqual(t, BatchID("p", []string{"ab", "c"}), BatchID("p", []string{"a", "bc"}))
}

func TestGetDataDirectory(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", t.TempDir())

	dir, err := getDataDirectory()
	require.NoError(t, err)
	assert.NotEmpty(t, dir)
	assert.Equal(t, "gemimg", filepath.Base(dir))

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
