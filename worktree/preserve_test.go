package worktree

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchesAny(t *testing.T) {
	tests := []struct {
		name     string
		relPath  string
		patterns []string
		want     bool
	}{
		{
			name:     "basename match at root",
			relPath:  ".env",
			patterns: []string{".env"},
			want:     true,
		},
		{
			name:     "basename match in subdirectory",
			relPath:  "services/api/.env",
			patterns: []string{".env"},
			want:     true,
		},
		{
			name:     "glob on basename",
			relPath:  ".env.local",
			patterns: []string{".env.*"},
			want:     true,
		},
		{
			name:     "suffix glob",
			relPath:  "config.local.json",
			patterns: []string{"*.local.json"},
			want:     true,
		},
		{
			name:     "full relative path pattern",
			relPath:  ".claude/settings.local.json",
			patterns: []string{".claude/settings.local.json"},
			want:     true,
		},
		{
			name:     "path pattern does not match other locations",
			relPath:  "other/.claude/settings.local.json",
			patterns: []string{".claude/settings.local.json"},
			want:     false,
		},
		{
			name:     "recursive pattern matches at any depth",
			relPath:  "a/b/c/secrets.yaml",
			patterns: []string{"**/secrets.yaml"},
			want:     true,
		},
		{
			name:     "recursive pattern with directory component",
			relPath:  "deep/config/api.key",
			patterns: []string{"**/config/*.key"},
			want:     true,
		},
		{
			name:     "no match",
			relPath:  "main.go",
			patterns: []string{".env", "*.local.json"},
			want:     false,
		},
		{
			name:     "empty patterns",
			relPath:  ".env",
			patterns: nil,
			want:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, matchesAny(tt.relPath, tt.patterns))
		})
	}
}

func TestUnderExcludedSegment(t *testing.T) {
	assert.True(t, underExcludedSegment("node_modules/pkg/.env"))
	assert.True(t, underExcludedSegment("services/api/dist/.env"))
	assert.True(t, underExcludedSegment(".git/config"))
	assert.False(t, underExcludedSegment(".env"))
	assert.False(t, underExcludedSegment("src/.env"))
	// Only directory components count, not the file itself.
	assert.False(t, underExcludedSegment("src/dist"))
}

func TestPathSuffixes(t *testing.T) {
	assert.Equal(t, []string{"a/b/c", "b/c", "c"}, pathSuffixes("a/b/c"))
	assert.Equal(t, []string{"c"}, pathSuffixes("c"))
}

func TestPreserveFiles(t *testing.T) {
	tempDir := t.TempDir()
	repoPath := filepath.Join(tempDir, "repo")
	setupTestRepo(t, repoPath, "main")

	require.NoError(t, os.WriteFile(filepath.Join(repoPath, ".gitignore"),
		[]byte(".env\n.env.*\n*.local.json\nnode_modules/\n"), 0644))
	runGit(t, repoPath, "add", ".gitignore")
	runGit(t, repoPath, "commit", "-m", "Add gitignore")

	writeTestFile := func(rel, content string) {
		path := filepath.Join(repoPath, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
	writeTestFile(".env", "SECRET=1")
	writeTestFile(".env.local", "LOCAL=1")
	writeTestFile("sub/config.local.json", "{}")
	writeTestFile("node_modules/pkg/.env", "NOPE=1")

	mgr := newTestManager(defaultStubSettings())
	dstDir := filepath.Join(tempDir, "dst")
	require.NoError(t, os.MkdirAll(dstDir, 0755))

	patterns := []string{".env", ".env.*", "*.local.json"}
	result, err := mgr.PreserveFiles(context.Background(), repoPath, dstDir, patterns)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{".env", ".env.local", "sub/config.local.json"}, result.Copied)
	assert.Empty(t, result.Skipped)

	assert.Equal(t, "SECRET=1", readFile(t, filepath.Join(dstDir, ".env")))
	assert.Equal(t, "{}", readFile(t, filepath.Join(dstDir, "sub", "config.local.json")))
	assert.NoFileExists(t, filepath.Join(dstDir, "node_modules", "pkg", ".env"))
}

func TestPreserveFiles_NeverOverwrites(t *testing.T) {
	tempDir := t.TempDir()
	repoPath := filepath.Join(tempDir, "repo")
	setupTestRepo(t, repoPath, "main")

	require.NoError(t, os.WriteFile(filepath.Join(repoPath, ".gitignore"), []byte(".env\n"), 0644))
	runGit(t, repoPath, "add", ".gitignore")
	runGit(t, repoPath, "commit", "-m", "Add gitignore")
	require.NoError(t, os.WriteFile(filepath.Join(repoPath, ".env"), []byte("SOURCE=1"), 0644))

	dstDir := filepath.Join(tempDir, "dst")
	require.NoError(t, os.MkdirAll(dstDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dstDir, ".env"), []byte("EXISTING=1"), 0644))

	mgr := newTestManager(defaultStubSettings())
	result, err := mgr.PreserveFiles(context.Background(), repoPath, dstDir, []string{".env"})
	require.NoError(t, err)

	assert.Empty(t, result.Copied)
	assert.Equal(t, []string{".env"}, result.Skipped)
	assert.Equal(t, "EXISTING=1", readFile(t, filepath.Join(dstDir, ".env")))
}

func TestPreserveFiles_NoPatterns(t *testing.T) {
	tempDir := t.TempDir()
	repoPath := filepath.Join(tempDir, "repo")
	setupTestRepo(t, repoPath, "main")

	mgr := newTestManager(defaultStubSettings())
	result, err := mgr.PreserveFiles(context.Background(), repoPath, filepath.Join(tempDir, "dst"), nil)
	require.NoError(t, err)
	assert.Empty(t, result.Copied)
	assert.Empty(t, result.Skipped)
}

func TestPreserveFiles_IntoNewWorktree(t *testing.T) {
	tempDir := t.TempDir()
	repoPath := filepath.Join(tempDir, "repo")
	setupTestRepo(t, repoPath, "main")

	require.NoError(t, os.WriteFile(filepath.Join(repoPath, ".gitignore"), []byte(".env\n"), 0644))
	runGit(t, repoPath, "add", ".gitignore")
	runGit(t, repoPath, "commit", "-m", "Add gitignore")
	require.NoError(t, os.WriteFile(filepath.Join(repoPath, ".env"), []byte("TOKEN=abc"), 0644))

	settings := defaultStubSettings()
	settings.settings.PreservePatterns = []string{".env"}
	mgr := newTestManager(settings)

	d, err := mgr.Create(context.Background(), CreateOptions{ProjectPath: repoPath, TaskName: "with secrets"})
	require.NoError(t, err)

	// The new worktree starts with the repo's untracked local config.
	assert.Equal(t, "TOKEN=abc", readFile(t, filepath.Join(d.Path, ".env")))
}
