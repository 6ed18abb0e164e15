package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScaffoldSeedsLoadableConfigDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "config")
	require.NoError(t, Scaffold(dir))

	loaded, err := Load(dir)
	require.NoError(t, err)

	kinds := make(map[string]bool)
	for _, m := range loaded.Models {
		kinds[m.Kind] = true
	}
	assert.True(t, kinds[KindStatic], "scaffold must seed a static model")
	assert.True(t, kinds[KindScript], "scaffold must seed a script model")
	assert.True(t, kinds[KindInteractive], "scaffold must seed an interactive model")
	assert.NotEmpty(t, loaded.Catalog.DefaultModel)
}

func TestScaffoldNeverOverwritesExistingFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "config")
	require.NoError(t, Scaffold(dir))

	custom := []byte("listen: \"127.0.0.1:9999\"\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), custom, 0o644))

	require.NoError(t, Scaffold(dir))
	got, err := os.ReadFile(filepath.Join(dir, "config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, custom, got)
}
