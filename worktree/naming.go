package worktree

import (
	"fmt"
	"math/rand"
	"path/filepath"
	"regexp"
	"strings"
)

// WorktreesDirName is the directory holding every managed worktree. It lives
// next to the project root, never inside it, and doubles as the safety oracle
// for direct deletion.
const WorktreesDirName = "worktrees"

// Pre-compiled regexes for name sanitization.
var (
	nonAlnumRegex    = regexp.MustCompile(`[^a-z0-9]+`)
	unsafeCharsRegex = regexp.MustCompile(`[^a-z0-9\-_/.]+`)
	multiDashRegex   = regexp.MustCompile(`-+`)
)

const suffixAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// Slugify lowercases a task name and collapses every non-alphanumeric run to
// a single dash.
func Slugify(taskName string) string {
	s := strings.ToLower(taskName)
	s = nonAlnumRegex.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if len(s) > 60 {
		s = strings.Trim(s[:60], "-")
	}
	return s
}

// RandomSuffix returns a 3 character base-36 suffix for uniqueness.
func RandomSuffix() string {
	b := make([]byte, 3)
	for i := range b {
		b[i] = suffixAlphabet[rand.Intn(len(suffixAlphabet))]
	}
	return string(b)
}

// SanitizeBranchName transforms an arbitrary string into a Git branch name
// friendly string, allowing only a safe subset of characters.
func SanitizeBranchName(s string) string {
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, " ", "-")
	s = unsafeCharsRegex.ReplaceAllString(s, "")
	s = multiDashRegex.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-/.")
	s = strings.TrimSuffix(s, "/")
	s = strings.ReplaceAll(s, "..", "-")
	if len(s) > 100 {
		s = s[:100]
	}
	return s
}

// BranchName builds the worktree branch name from the configured prefix and a
// slug-suffix pair. If sanitization eats the whole name, a synthetic one is
// generated so the branch is never empty or reserved.
func BranchName(prefix, slug, suffix string) string {
	name := SanitizeBranchName(fmt.Sprintf("%s%s-%s", prefix, slug, suffix))
	if name == "" || name == "head" {
		name = SanitizeBranchName(fmt.Sprintf("%stask-%s", prefix, suffix))
	}
	if name == "" {
		name = "task-" + suffix
	}
	return name
}

// Dir returns the target path for a worktree: a child of the worktrees/
// directory sibling to the project root.
func Dir(projectPath, slugSuffix string) string {
	parent := filepath.Dir(filepath.Clean(projectPath))
	return filepath.Join(parent, WorktreesDirName, slugSuffix)
}

// IsManagedPath reports whether path lives under a worktrees/ convention
// directory. It is a defense-in-depth check before any direct deletion, a
// complement to (never a substitute for) the exact primary-repo guard.
func IsManagedPath(path string) bool {
	clean := filepath.Clean(path)
	for _, part := range strings.Split(clean, string(filepath.Separator)) {
		if part == WorktreesDirName || part == ".worktrees" {
			// The worktrees dir itself is not a worktree.
			return filepath.Base(clean) != part
		}
	}
	return false
}
