package worktree

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupMultiRepoProject builds a project root containing two git sub-repos
// and one plain directory.
func setupMultiRepoProject(t *testing.T, tempDir string) string {
	t.Helper()
	projectPath := filepath.Join(tempDir, "platform")
	setupTestRepo(t, filepath.Join(projectPath, "svc-a"), "main")
	setupTestRepo(t, filepath.Join(projectPath, "svc-b"), "main")
	require.NoError(t, os.MkdirAll(filepath.Join(projectPath, "assets"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(projectPath, "assets", "logo.txt"), []byte("logo"), 0644))
	return projectPath
}

func TestManager_CreateMultiRepo(t *testing.T) {
	tempDir := t.TempDir()
	projectPath := setupMultiRepoProject(t, tempDir)

	mgr := newTestManager(defaultStubSettings())
	ctx := context.Background()

	composite, err := mgr.CreateMultiRepo(ctx, MultiRepoOptions{
		ProjectPath:   projectPath,
		ProjectID:     "platform",
		TaskName:      "cross repo fix",
		SubRepos:      []string{"svc-a", "svc-b", "assets"},
		SelectedRepos: []string{"svc-a"},
	})
	require.NoError(t, err)
	require.Len(t, composite.Mappings, 3)

	assert.Equal(t, filepath.Join(tempDir, "worktrees"), filepath.Dir(composite.Path))

	byRel := make(map[string]Mapping)
	for _, m := range composite.Mappings {
		byRel[m.RelativePath] = m
	}

	// Selected repo is a real worktree on its own branch.
	wt := byRel["svc-a"]
	assert.True(t, wt.IsWorktree)
	assert.NotEmpty(t, wt.Branch)
	assert.Equal(t, wt.Branch, runGit(t, wt.TargetPath, "branch", "--show-current"))
	info, err := os.Lstat(wt.TargetPath)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Zero(t, info.Mode()&os.ModeSymlink)

	// The original svc-a checkout keeps its own branch.
	assert.Equal(t, "main", runGit(t, filepath.Join(projectPath, "svc-a"), "branch", "--show-current"))

	// Unselected repo and the plain directory are shared via links.
	for _, rel := range []string{"svc-b", "assets"} {
		link := byRel[rel]
		assert.False(t, link.IsWorktree, "%s should be linked", rel)
		info, err := os.Lstat(link.TargetPath)
		require.NoError(t, err)
		assert.NotZero(t, info.Mode()&os.ModeSymlink)
		resolved, err := filepath.EvalSymlinks(link.TargetPath)
		require.NoError(t, err)
		expected, err := filepath.EvalSymlinks(link.OriginalPath)
		require.NoError(t, err)
		assert.Equal(t, expected, resolved)
	}

	// The composite is registered as one descriptor.
	d, ok := mgr.Store().GetByPath(composite.Path)
	require.True(t, ok)
	assert.Equal(t, "cross repo fix", d.Name)
}

func TestManager_CreateMultiRepo_SelectedNonRepoIsLinked(t *testing.T) {
	tempDir := t.TempDir()
	projectPath := setupMultiRepoProject(t, tempDir)

	mgr := newTestManager(defaultStubSettings())

	composite, err := mgr.CreateMultiRepo(context.Background(), MultiRepoOptions{
		ProjectPath:   projectPath,
		TaskName:      "assets change",
		SubRepos:      []string{"assets"},
		SelectedRepos: []string{"assets"},
	})
	require.NoError(t, err)
	require.Len(t, composite.Mappings, 1)
	assert.False(t, composite.Mappings[0].IsWorktree)
}

func TestManager_CreateMultiRepo_RollbackOnFailure(t *testing.T) {
	tempDir := t.TempDir()
	projectPath := setupMultiRepoProject(t, tempDir)

	mgr := newTestManager(defaultStubSettings())

	// A repo with no commits has no resolvable base ref, so its worktree
	// cannot be built and the whole composite must roll back.
	badRepo := filepath.Join(projectPath, "svc-bad")
	require.NoError(t, os.MkdirAll(badRepo, 0755))
	runGit(t, badRepo, "init")

	_, err := mgr.CreateMultiRepo(context.Background(), MultiRepoOptions{
		ProjectPath:   projectPath,
		TaskName:      "doomed",
		SubRepos:      []string{"svc-a", "svc-bad"},
		SelectedRepos: []string{"svc-a", "svc-bad"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "svc-bad")

	// Nothing is left behind: no composite directory, no stray branch.
	entries, globErr := filepath.Glob(filepath.Join(tempDir, "worktrees", "*"))
	require.NoError(t, globErr)
	assert.Empty(t, entries)

	branches := runGit(t, filepath.Join(projectPath, "svc-a"), "branch", "--list", "arbor/*")
	assert.Empty(t, branches)
}

func TestManager_RemoveMultiRepo(t *testing.T) {
	tempDir := t.TempDir()
	projectPath := setupMultiRepoProject(t, tempDir)

	mgr := newTestManager(defaultStubSettings())
	ctx := context.Background()

	composite, err := mgr.CreateMultiRepo(ctx, MultiRepoOptions{
		ProjectPath:   projectPath,
		ProjectID:     "platform",
		TaskName:      "short lived",
		SubRepos:      []string{"svc-a", "svc-b", "assets"},
		SelectedRepos: []string{"svc-a"},
	})
	require.NoError(t, err)

	var wtBranch string
	for _, m := range composite.Mappings {
		if m.IsWorktree {
			wtBranch = m.Branch
		}
	}
	require.NotEmpty(t, wtBranch)

	require.NoError(t, mgr.RemoveMultiRepo(ctx, composite.Path, []string{"svc-a", "svc-b", "assets"}))
	assert.NoDirExists(t, composite.Path)

	// The worktree branch is cleaned up in the owning repo.
	assert.Empty(t, runGit(t, filepath.Join(projectPath, "svc-a"), "branch", "--list", wtBranch))

	// Originals are untouched.
	assert.DirExists(t, filepath.Join(projectPath, "svc-b"))
	assert.FileExists(t, filepath.Join(projectPath, "assets", "logo.txt"))
	assert.FileExists(t, filepath.Join(projectPath, "svc-b", "README.md"))

	_, ok := mgr.Store().GetByPath(composite.Path)
	assert.False(t, ok)
}

func TestManager_RemoveMultiRepo_UnmanagedPathRefused(t *testing.T) {
	tempDir := t.TempDir()
	projectPath := setupMultiRepoProject(t, tempDir)

	mgr := newTestManager(defaultStubSettings())

	err := mgr.RemoveMultiRepo(context.Background(), projectPath, []string{"svc-a"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a managed worktree path")
	assert.DirExists(t, projectPath)
}

func TestIsGitRepository(t *testing.T) {
	tempDir := t.TempDir()
	repoPath := filepath.Join(tempDir, "repo")
	setupTestRepo(t, repoPath, "main")

	assert.True(t, isGitRepository(repoPath))
	assert.False(t, isGitRepository(tempDir))
	assert.False(t, isGitRepository(filepath.Join(tempDir, "missing")))
}
