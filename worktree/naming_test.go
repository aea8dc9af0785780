package worktree

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "simple lowercase string",
			input:    "feature",
			expected: "feature",
		},
		{
			name:     "task name with spaces and case",
			input:    "Fix Login Bug",
			expected: "fix-login-bug",
		},
		{
			name:     "special characters collapse to one dash",
			input:    "add OAuth2.0 (google & github)",
			expected: "add-oauth2-0-google-github",
		},
		{
			name:     "leading and trailing junk trimmed",
			input:    "  --weird name--  ",
			expected: "weird-name",
		},
		{
			name:     "empty string",
			input:    "",
			expected: "",
		},
		{
			name:     "only special characters",
			input:    "!!!",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Slugify(tt.input))
		})
	}
}

func TestSlugify_LongNamesCapped(t *testing.T) {
	long := strings.Repeat("very long task name ", 10)
	slug := Slugify(long)
	assert.LessOrEqual(t, len(slug), 60)
	assert.False(t, strings.HasSuffix(slug, "-"))
	assert.False(t, strings.HasPrefix(slug, "-"))
}

func TestRandomSuffix(t *testing.T) {
	for i := 0; i < 50; i++ {
		s := RandomSuffix()
		assert.Len(t, s, 3)
		for _, c := range s {
			assert.True(t, (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z'), "unexpected char %q", c)
		}
	}
}

func TestSanitizeBranchName(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "simple lowercase string",
			input:    "feature",
			expected: "feature",
		},
		{
			name:     "string with spaces",
			input:    "new feature branch",
			expected: "new-feature-branch",
		},
		{
			name:     "mixed case string",
			input:    "FeAtUrE BrAnCh",
			expected: "feature-branch",
		},
		{
			name:     "string with special characters",
			input:    "feature!@#$%^&*()",
			expected: "feature",
		},
		{
			name:     "string with allowed special characters",
			input:    "feature/sub_branch.v1",
			expected: "feature/sub_branch.v1",
		},
		{
			name:     "string with multiple dashes",
			input:    "feature---branch",
			expected: "feature-branch",
		},
		{
			name:     "string with leading and trailing dashes",
			input:    "-feature-branch-",
			expected: "feature-branch",
		},
		{
			name:     "string with leading and trailing slashes",
			input:    "/feature/branch/",
			expected: "feature/branch",
		},
		{
			name:     "empty string",
			input:    "",
			expected: "",
		},
		{
			name:     "complex mixed case with special chars",
			input:    "USER/Feature Branch!@#$%^&*()/v1.0",
			expected: "user/feature-branch/v1.0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SanitizeBranchName(tt.input))
		})
	}
}

func TestBranchName(t *testing.T) {
	assert.Equal(t, "arbor/fix-login-bug-a1b", BranchName("arbor/", "fix-login-bug", "a1b"))
	assert.Equal(t, "session/task-one-9zz", BranchName("session/", "task-one", "9zz"))

	// A prefix keeps "head" from colliding with the reserved HEAD name.
	assert.Equal(t, "arbor/head-x2a", BranchName("arbor/", "head", "x2a"))

	// A name that sanitizes down to the reserved word is replaced outright.
	assert.Equal(t, "task", BranchName("", "head", ""))
}

func TestDir(t *testing.T) {
	assert.Equal(t,
		filepath.Join("/home/user/code", "worktrees", "fix-a1b"),
		Dir("/home/user/code/myrepo", "fix-a1b"))
	assert.Equal(t,
		filepath.Join("/home/user/code", "worktrees", "fix-a1b"),
		Dir("/home/user/code/myrepo/", "fix-a1b"))
}

func TestIsManagedPath(t *testing.T) {
	tests := []struct {
		path    string
		managed bool
	}{
		{"/home/user/code/worktrees/fix-a1b", true},
		{"/home/user/code/worktrees/fix-a1b/nested", true},
		{"/home/user/code/.worktrees/fix-a1b", true},
		{"/home/user/code/worktrees", false},
		{"/home/user/code/myrepo", false},
		{"/home/user/worktrees-backup/x", false},
		{"/", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.managed, IsManagedPath(tt.path))
		})
	}
}
