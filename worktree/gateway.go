package worktree

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"arbor/log"
)

// Gateway invokes the git binary with argument vectors and captures its
// combined output. It never goes through a shell and never retries; callers
// interpret failures, usually via Classify.
type Gateway struct {
	// GitPath overrides the binary name, mostly for tests.
	GitPath string
}

// NewGateway returns a gateway using the git binary from PATH.
func NewGateway() *Gateway {
	return &Gateway{GitPath: "git"}
}

// Run executes a git command in dir and returns its trimmed combined output.
// The returned error wraps the raw git output so diagnostics are not lost.
func (g *Gateway) Run(ctx context.Context, dir string, args ...string) (string, error) {
	baseArgs := []string{}
	if dir != "" {
		baseArgs = append(baseArgs, "-C", dir)
	}
	cmd := exec.CommandContext(ctx, g.gitPath(), append(baseArgs, args...)...)
	if log.IsDebugEnabled() {
		log.DebugLog.Printf("running git %s (in %s)", strings.Join(args, " "), dir)
	}
	output, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("git command failed: %s (%w)", strings.TrimSpace(string(output)), err)
	}
	return strings.TrimSpace(string(output)), nil
}

func (g *Gateway) gitPath() string {
	if g.GitPath != "" {
		return g.GitPath
	}
	return "git"
}
