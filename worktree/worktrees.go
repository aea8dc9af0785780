package worktree

import (
	"context"
	"strings"
)

// gitWorktreeEntry is one block of `git worktree list --porcelain` output.
type gitWorktreeEntry struct {
	Path   string
	Head   string
	Branch string
	Bare   bool
}

// listGitWorktrees returns git's own view of the worktrees attached to the
// repository, primary checkout included (it is always the first entry).
func (m *Manager) listGitWorktrees(ctx context.Context, projectPath string) ([]gitWorktreeEntry, error) {
	output, err := m.gw.Run(ctx, projectPath, "worktree", "list", "--porcelain")
	if err != nil {
		return nil, err
	}
	return parseWorktreeList(output), nil
}

// parseWorktreeList parses porcelain output. Each block looks like:
//
//	worktree /path/to/wt
//	HEAD abc123
//	branch refs/heads/branch-name
//
// separated by blank lines.
func parseWorktreeList(output string) []gitWorktreeEntry {
	var entries []gitWorktreeEntry
	var current gitWorktreeEntry

	flush := func() {
		if current.Path != "" {
			entries = append(entries, current)
		}
		current = gitWorktreeEntry{}
	}

	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimRight(line, "\r")
		switch {
		case strings.HasPrefix(line, "worktree "):
			flush()
			current.Path = strings.TrimPrefix(line, "worktree ")
		case strings.HasPrefix(line, "HEAD "):
			current.Head = strings.TrimPrefix(line, "HEAD ")
		case strings.HasPrefix(line, "branch "):
			current.Branch = strings.TrimPrefix(strings.TrimPrefix(line, "branch "), "refs/heads/")
		case line == "bare":
			current.Bare = true
		}
	}
	flush()
	return entries
}
