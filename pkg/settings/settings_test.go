package settings

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromFileOverlaysDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("model: gpt-4o\nthinking: true\n"), 0o644))

	s := NewSettings()
	require.NoError(t, s.LoadFromFile(path))

	assert.Equal(t, "gpt-4o", s.Model)
	assert.True(t, s.ThinkingEnabled)
	// untouched keys keep their defaults
	assert.Equal(t, "info", s.LogLevel)
	assert.NotEmpty(t, s.DatabasePath)
}

func TestLoadFromFileMissingFileIsNoop(t *testing.T) {
	s := NewSettings()
	require.NoError(t, s.LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml")))
	assert.Equal(t, "gpt-4o-mini", s.Model)
}

func TestLoadFromFileRejectsMalformedYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("model: [unclosed"), 0o644))

	s := NewSettings()
	assert.Error(t, s.LoadFromFile(path))
}
