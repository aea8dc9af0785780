package worktree

import (
	"context"
	"fmt"
	"strings"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"arbor/log"
)

// Resolver turns a user- or project-configured reference string into a
// concrete BaseRef, verified against local branches and configured remotes.
type Resolver struct {
	gw *Gateway
}

// NewResolver returns a resolver backed by the given gateway.
func NewResolver(gw *Gateway) *Resolver {
	return &Resolver{gw: gw}
}

// Resolve computes the base reference for a new worktree. preferred is the
// caller's requested ref (may be empty), configuredBranch the project's stored
// fallback. The returned ref's FullRef is what create/fetch operations use.
func (r *Resolver) Resolve(ctx context.Context, projectPath, preferred, configuredBranch string) (BaseRef, error) {
	remotes, err := r.listRemotes(projectPath)
	if err != nil {
		return BaseRef{}, fmt.Errorf("failed to list remotes for %s: %w", projectPath, err)
	}

	if preferred != "" {
		if ref, ok := r.resolveCandidate(projectPath, preferred, remotes); ok {
			return ref, nil
		}
		log.WarningLog.Printf("base ref %q did not resolve for %s, falling back", preferred, projectPath)
	}

	if configuredBranch != "" && configuredBranch != preferred {
		if ref, ok := r.resolveCandidate(projectPath, configuredBranch, remotes); ok {
			return ref, nil
		}
	}

	return r.DefaultBaseRef(ctx, projectPath)
}

// resolveCandidate applies the resolution algorithm to one candidate string.
func (r *Resolver) resolveCandidate(projectPath, input string, remotes []string) (BaseRef, bool) {
	input = strings.TrimPrefix(input, "refs/remotes/")
	input = strings.TrimPrefix(input, "refs/heads/")
	if input == "" || strings.Contains(input, "://") {
		return BaseRef{}, false
	}

	if idx := strings.Index(input, "/"); idx > 0 {
		candidate, rest := input[:idx], input[idx+1:]
		for _, remote := range remotes {
			if remote == candidate {
				return BaseRef{Remote: candidate, Branch: rest, FullRef: input}, true
			}
		}
		// Not a configured remote: treat the whole string as a local branch
		// name (branch names may legally contain slashes).
	}

	if !r.localBranchExists(projectPath, input) {
		return BaseRef{}, false
	}

	remote := defaultRemote(remotes)
	if remote == "" {
		return BaseRef{Remote: "", Branch: input, FullRef: input}, true
	}
	return BaseRef{Remote: remote, Branch: input, FullRef: remote + "/" + input}, true
}

// NormalizeUserRef normalizes free-text input into a fetchable ref string.
// URLs are rejected; a bare name is prefixed with the default remote when one
// is configured.
func (r *Resolver) NormalizeUserRef(projectPath, input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", fmt.Errorf("empty base reference")
	}
	if strings.Contains(input, "://") {
		return "", fmt.Errorf("base reference %q looks like a URL, expected a branch or remote/branch", input)
	}
	if strings.Contains(input, "/") {
		return input, nil
	}
	remotes, err := r.listRemotes(projectPath)
	if err != nil {
		return "", err
	}
	if remote := defaultRemote(remotes); remote != "" {
		return remote + "/" + input, nil
	}
	return input, nil
}

// DefaultBaseRef returns the remote's advertised default branch, falling back
// to main/master detection and finally to "main".
func (r *Resolver) DefaultBaseRef(ctx context.Context, projectPath string) (BaseRef, error) {
	remotes, err := r.listRemotes(projectPath)
	if err != nil {
		return BaseRef{}, fmt.Errorf("failed to list remotes for %s: %w", projectPath, err)
	}
	remote := defaultRemote(remotes)

	branch := r.defaultBranch(ctx, projectPath, remote)
	if remote == "" {
		return BaseRef{Remote: "", Branch: branch, FullRef: branch}, nil
	}
	return BaseRef{Remote: remote, Branch: branch, FullRef: remote + "/" + branch}, nil
}

// defaultBranch detects the default branch of the repository.
func (r *Resolver) defaultBranch(ctx context.Context, projectPath, remote string) string {
	// Ask the remote which branch HEAD points at.
	if remote != "" {
		output, err := r.gw.Run(ctx, projectPath, "remote", "show", remote)
		if err == nil {
			for _, line := range strings.Split(output, "\n") {
				line = strings.TrimSpace(line)
				if strings.HasPrefix(line, "HEAD branch:") {
					if branch := strings.TrimSpace(strings.TrimPrefix(line, "HEAD branch:")); branch != "" {
						return branch
					}
				}
			}
		} else {
			log.WarningLog.Printf("remote show %s failed for %s: %v", remote, projectPath, err)
		}
	}

	for _, branch := range []string{"main", "master"} {
		if r.localBranchExists(projectPath, branch) {
			return branch
		}
	}
	return "main"
}

// FetchBase fetches ref before use. A "ref not found" class failure triggers
// one retry against the remote's actual default branch; usedFallback reports
// whether that happened so the caller can persist the discovered ref.
func (r *Resolver) FetchBase(ctx context.Context, projectPath string, ref BaseRef) (BaseRef, bool, error) {
	if ref.Remote == "" {
		if _, err := r.gw.Run(ctx, projectPath, "rev-parse", "--verify", ref.FullRef); err != nil {
			return BaseRef{}, false, fmt.Errorf("base reference %s is not resolvable: %w", ref.FullRef, err)
		}
		return ref, false, nil
	}

	_, err := r.gw.Run(ctx, projectPath, "fetch", ref.Remote, ref.Branch)
	if err == nil {
		return ref, false, nil
	}
	if Classify(err) != KindRefNotFound {
		return BaseRef{}, false, fmt.Errorf("failed to fetch %s: %w", ref.FullRef, err)
	}

	fallback, derr := r.DefaultBaseRef(ctx, projectPath)
	if derr != nil {
		return BaseRef{}, false, fmt.Errorf("failed to fetch %s and no fallback available: %w", ref.FullRef, err)
	}
	if fallback.FullRef == ref.FullRef {
		return BaseRef{}, false, fmt.Errorf("failed to fetch %s: %w", ref.FullRef, err)
	}
	log.WarningLog.Printf("base ref %s not found, retrying fetch with default %s", ref.FullRef, fallback.FullRef)

	if _, ferr := r.gw.Run(ctx, projectPath, "fetch", fallback.Remote, fallback.Branch); ferr != nil {
		return BaseRef{}, false, fmt.Errorf("failed to fetch %s (fallback for %s): %w", fallback.FullRef, ref.FullRef, ferr)
	}
	return fallback, true, nil
}

// listRemotes returns the configured remote names for the repository.
func (r *Resolver) listRemotes(projectPath string) ([]string, error) {
	repo, err := git.PlainOpen(projectPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open repository: %w", err)
	}
	remotes, err := repo.Remotes()
	if err != nil {
		return nil, fmt.Errorf("failed to list remotes: %w", err)
	}
	names := make([]string, 0, len(remotes))
	for _, remote := range remotes {
		names = append(names, remote.Config().Name)
	}
	return names, nil
}

// localBranchExists checks whether name resolves to a local branch reference.
func (r *Resolver) localBranchExists(projectPath, name string) bool {
	repo, err := git.PlainOpen(projectPath)
	if err != nil {
		return false
	}
	_, err = repo.Reference(plumbing.NewBranchReferenceName(name), true)
	return err == nil
}

// defaultRemote prefers origin, then the first configured remote.
func defaultRemote(remotes []string) string {
	for _, remote := range remotes {
		if remote == "origin" {
			return "origin"
		}
	}
	if len(remotes) > 0 {
		return remotes[0]
	}
	return ""
}
