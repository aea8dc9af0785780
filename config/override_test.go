package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadOverride_Missing(t *testing.T) {
	o, err := LoadOverride(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, o.BranchPrefix)
	assert.Empty(t, o.BaseBranch)
	assert.Nil(t, o.PushOnCreate)
	assert.Empty(t, o.PreservePatterns)
}

func TestLoadOverride(t *testing.T) {
	dir := t.TempDir()
	content := `branch_prefix: team/
base_branch: origin/release
push_on_create: false
preserve_patterns:
  - .env
  - "**/secrets.yaml"
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, OverrideFileName), []byte(content), 0644))

	o, err := LoadOverride(dir)
	require.NoError(t, err)
	assert.Equal(t, "team/", o.BranchPrefix)
	assert.Equal(t, "origin/release", o.BaseBranch)
	require.NotNil(t, o.PushOnCreate)
	assert.False(t, *o.PushOnCreate)
	assert.Equal(t, []string{".env", "**/secrets.yaml"}, o.PreservePatterns)
}

func TestLoadOverride_PartialFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, OverrideFileName), []byte("base_branch: develop\n"), 0644))

	o, err := LoadOverride(dir)
	require.NoError(t, err)
	assert.Equal(t, "develop", o.BaseBranch)
	assert.Empty(t, o.BranchPrefix)
	assert.Nil(t, o.PushOnCreate)
}

func TestLoadOverride_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, OverrideFileName), []byte("branch_prefix: [unclosed\n"), 0644))

	_, err := LoadOverride(dir)
	assert.Error(t, err)
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "arbor/", cfg.BranchPrefix)
	assert.False(t, cfg.PushOnCreate)
	assert.True(t, cfg.ReserveEnabled)
	assert.Contains(t, cfg.PreservePatterns, ".env")
	assert.Contains(t, cfg.ManagedPrefixes, "arbor/")
}

func TestDefaultState(t *testing.T) {
	s := DefaultState()
	assert.Equal(t, "{}", string(s.ProjectsData))
	assert.Empty(t, s.ActiveProject)
}
