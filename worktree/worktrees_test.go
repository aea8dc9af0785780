package worktree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseWorktreeList(t *testing.T) {
	output := `worktree /home/user/code/myrepo
HEAD 1234567890abcdef1234567890abcdef12345678
branch refs/heads/main

worktree /home/user/code/worktrees/fix-a1b
HEAD abcdef1234567890abcdef1234567890abcdef12
branch refs/heads/arbor/fix-a1b

worktree /home/user/code/worktrees/detached-x9y
HEAD fedcba0987654321fedcba0987654321fedcba09
detached
`

	entries := parseWorktreeList(output)
	require.Len(t, entries, 3)

	assert.Equal(t, "/home/user/code/myrepo", entries[0].Path)
	assert.Equal(t, "main", entries[0].Branch)
	assert.False(t, entries[0].Bare)

	assert.Equal(t, "/home/user/code/worktrees/fix-a1b", entries[1].Path)
	assert.Equal(t, "arbor/fix-a1b", entries[1].Branch)
	assert.Equal(t, "abcdef1234567890abcdef1234567890abcdef12", entries[1].Head)

	assert.Equal(t, "/home/user/code/worktrees/detached-x9y", entries[2].Path)
	assert.Empty(t, entries[2].Branch)
}

func TestParseWorktreeList_Bare(t *testing.T) {
	output := `worktree /srv/git/repo.git
bare

worktree /srv/git/worktrees/task-b2c
HEAD abcdef1234567890abcdef1234567890abcdef12
branch refs/heads/arbor/task-b2c
`

	entries := parseWorktreeList(output)
	require.Len(t, entries, 2)
	assert.True(t, entries[0].Bare)
	assert.Empty(t, entries[0].Branch)
	assert.False(t, entries[1].Bare)
}

func TestParseWorktreeList_Empty(t *testing.T) {
	assert.Empty(t, parseWorktreeList(""))
	assert.Empty(t, parseWorktreeList("\n\n"))
}

func TestParseWorktreeList_CarriageReturns(t *testing.T) {
	output := "worktree /w/a\r\nHEAD 1111111111111111111111111111111111111111\r\nbranch refs/heads/arbor/a\r\n"
	entries := parseWorktreeList(output)
	require.Len(t, entries, 1)
	assert.Equal(t, "/w/a", entries[0].Path)
	assert.Equal(t, "arbor/a", entries[0].Branch)
}
