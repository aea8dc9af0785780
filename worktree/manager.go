package worktree

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"arbor/log"
	"arbor/project"
)

// SettingsProvider supplies per-project configuration and receives the
// best-effort discovered-fallback persistence side effect. Satisfied by
// *project.Manager.
type SettingsProvider interface {
	Settings(projectID, projectPath string) project.Settings
	UpdateGitBranch(projectID, ref string) error
}

// Manager owns the lifecycle of individual worktrees: creation, listing,
// removal, and the merge helper. It is safe for concurrent use.
type Manager struct {
	gw       *Gateway
	resolver *Resolver
	store    Store
	projects SettingsProvider
}

// NewManager wires a lifecycle manager from its collaborators.
func NewManager(gw *Gateway, resolver *Resolver, store Store, projects SettingsProvider) *Manager {
	return &Manager{gw: gw, resolver: resolver, store: store, projects: projects}
}

// Store exposes the descriptor registry, mainly for the reservation pool.
func (m *Manager) Store() Store {
	return m.store
}

// CreateOptions are the inputs for Create.
type CreateOptions struct {
	ProjectPath string
	TaskName    string
	ProjectID   string
	// BaseRef overrides the project's configured base reference.
	BaseRef string
}

// Create makes a new isolated worktree branched from the resolved base
// reference. Any failure up to and including the worktree creation is fatal;
// preservation, the divergence check, and the initial push are independently
// best-effort.
func (m *Manager) Create(ctx context.Context, opts CreateOptions) (*Descriptor, error) {
	settings := m.projects.Settings(opts.ProjectID, opts.ProjectPath)

	slug := Slugify(opts.TaskName)
	if slug == "" {
		slug = "task"
	}
	suffix := RandomSuffix()
	slugSuffix := slug + "-" + suffix
	branch := BranchName(settings.BranchPrefix, slug, suffix)
	dir := Dir(opts.ProjectPath, slugSuffix)

	if _, err := os.Stat(dir); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrWorktreeExists, dir)
	}

	preferred := opts.BaseRef
	if preferred != "" {
		normalized, err := m.resolver.NormalizeUserRef(opts.ProjectPath, preferred)
		if err != nil {
			return nil, err
		}
		preferred = normalized
	}

	ref, err := m.resolver.Resolve(ctx, opts.ProjectPath, preferred, settings.BaseRef)
	if err != nil {
		return nil, err
	}
	ref, usedFallback, err := m.resolver.FetchBase(ctx, opts.ProjectPath, ref)
	if err != nil {
		return nil, err
	}
	if usedFallback && opts.ProjectID != "" {
		// Persist the discovered default so the next create skips the retry.
		go func(projectID, fullRef string) {
			if perr := m.projects.UpdateGitBranch(projectID, fullRef); perr != nil {
				log.WarningLog.Printf("failed to persist fallback base ref %s for %s: %v", fullRef, projectID, perr)
			}
		}(opts.ProjectID, ref.FullRef)
	}

	if err := os.MkdirAll(filepath.Dir(dir), 0755); err != nil {
		return nil, fmt.Errorf("failed to create worktrees directory: %w", err)
	}

	if _, err := m.gw.Run(ctx, opts.ProjectPath, "worktree", "add", "-b", branch, dir, ref.FullRef); err != nil {
		return nil, fmt.Errorf("failed to create worktree at %s on branch %s: %w", dir, branch, err)
	}

	if result, perr := m.PreserveFiles(ctx, opts.ProjectPath, dir, settings.PreservePatterns); perr != nil {
		log.WarningLog.Printf("failed to preserve files into %s: %v", dir, perr)
	} else if len(result.Copied) > 0 || len(result.Skipped) > 0 {
		log.InfoLog.Printf("preserved files into %s: copied=%v skipped=%v", dir, result.Copied, result.Skipped)
	}

	m.checkDivergence(ctx, opts.ProjectPath, dir, ref)

	if settings.PushOnCreate && ref.Remote != "" {
		if _, perr := m.gw.Run(ctx, dir, "push", "-u", ref.Remote, branch); perr != nil {
			log.WarningLog.Printf("failed to push new branch %s to %s: %v", branch, ref.Remote, perr)
		}
	}

	d := &Descriptor{
		ID:        PathID(dir),
		Name:      opts.TaskName,
		Branch:    branch,
		Path:      dir,
		Base:      ref,
		ProjectID: opts.ProjectID,
		Status:    StatusActive,
		CreatedAt: time.Now(),
	}
	m.store.Put(d)
	return d, nil
}

// checkDivergence compares the new worktree's head against the base ref and
// logs a warning when they differ. Never fatal.
func (m *Manager) checkDivergence(ctx context.Context, projectPath, dir string, ref BaseRef) {
	head, err := m.gw.Run(ctx, dir, "rev-parse", "HEAD")
	if err != nil {
		log.WarningLog.Printf("failed to read head of %s: %v", dir, err)
		return
	}
	want, err := m.gw.Run(ctx, projectPath, "rev-parse", ref.FullRef)
	if err != nil {
		log.WarningLog.Printf("failed to resolve %s for divergence check: %v", ref.FullRef, err)
		return
	}
	if head != want {
		log.WarningLog.Printf("worktree %s head %s diverges from %s (%s)", dir, head, ref.FullRef, want)
	}
}

// List returns the worktrees git knows about for the project, enriched from
// the registry. Worktrees whose branch does not carry a managed prefix are
// hidden unless the registry tracks that exact path, so renamed prefixes stay
// visible while unrelated manual worktrees do not.
func (m *Manager) List(ctx context.Context, projectPath string) ([]*Descriptor, error) {
	entries, err := m.listGitWorktrees(ctx, projectPath)
	if err != nil {
		return nil, fmt.Errorf("failed to list worktrees for %s: %w", projectPath, err)
	}

	root := normalizePath(projectPath)
	settings := m.projects.Settings("", projectPath)

	var out []*Descriptor
	for _, entry := range entries {
		if entry.Bare || normalizePath(entry.Path) == root {
			continue
		}
		if stored, ok := m.store.GetByPath(entry.Path); ok {
			// Enrich a copy; stored descriptors are shared and must not be
			// mutated outside the claim transition.
			d := *stored
			if entry.Branch != "" {
				d.Branch = entry.Branch
			}
			out = append(out, &d)
			continue
		}
		if !hasManagedPrefix(entry.Branch, settings.ManagedPrefixes) {
			continue
		}
		out = append(out, &Descriptor{
			ID:     PathID(entry.Path),
			Name:   filepath.Base(entry.Path),
			Branch: entry.Branch,
			Path:   entry.Path,
			Status: StatusActive,
		})
	}
	return out, nil
}

func hasManagedPrefix(branch string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if prefix != "" && strings.HasPrefix(branch, prefix) {
			return true
		}
	}
	return false
}

// RemoveOptions are the inputs for Remove. ID is resolved against the
// registry; Path and Branch cover descriptors the registry no longer has.
type RemoveOptions struct {
	ProjectPath string
	ID          string
	Path        string
	Branch      string
}

// Remove destroys a worktree and its branch under a strict safety protocol.
// The operation succeeds when the working copy is gone from the filesystem;
// branch and metadata cleanup are independently best-effort after the guards
// pass. Removing an already-removed target is a no-op.
func (m *Manager) Remove(ctx context.Context, opts RemoveOptions) error {
	targetPath := opts.Path
	branch := opts.Branch
	var tracked *Descriptor
	if opts.ID != "" {
		if d, ok := m.store.Get(opts.ID); ok {
			tracked = d
			targetPath = d.Path
			if branch == "" {
				branch = d.Branch
			}
		}
	}

	entries, listErr := m.listGitWorktrees(ctx, opts.ProjectPath)

	if targetPath == "" {
		if opts.ID == "" && opts.Branch == "" {
			return nil
		}
		// The registry does not know the id, but git might: the registry is
		// per-process while worktrees outlive it. Reconcile the locator
		// against git's own listing before concluding there is nothing to do.
		if listErr != nil {
			return fmt.Errorf("cannot locate worktree for removal: %w", listErr)
		}
		for _, entry := range entries {
			if (opts.ID != "" && PathID(entry.Path) == opts.ID) ||
				(opts.Branch != "" && entry.Branch == opts.Branch) {
				targetPath = entry.Path
				if branch == "" {
					branch = entry.Branch
				}
				break
			}
		}
		if targetPath == "" {
			// Neither tracked nor listed: already removed.
			return nil
		}
	}

	// Correctness-critical guard: never treat the primary checkout as a
	// worktree, whatever the descriptor claims.
	if normalizePath(targetPath) == normalizePath(opts.ProjectPath) {
		return fmt.Errorf("%w: %s is the project root", ErrPrimaryRepo, targetPath)
	}

	listed := false
	if listErr == nil {
		for i, entry := range entries {
			if normalizePath(entry.Path) != normalizePath(targetPath) {
				continue
			}
			if i == 0 || entry.Bare {
				return fmt.Errorf("%w: %s is the primary checkout", ErrPrimaryRepo, targetPath)
			}
			listed = true
			if branch == "" {
				branch = entry.Branch
			}
		}
	} else {
		// Listing failed; the exact-path guard above already passed, so
		// proceed cautiously.
		log.WarningLog.Printf("could not confirm %s against git worktree list: %v", targetPath, listErr)
	}

	lock := flock.New(filepath.Join(filepath.Dir(targetPath), ".arbor.lock"))
	if err := lock.Lock(); err != nil {
		log.WarningLog.Printf("failed to lock worktrees directory for %s: %v", targetPath, err)
	} else {
		defer func() { _ = lock.Unlock() }()
	}

	if _, err := m.gw.Run(ctx, opts.ProjectPath, "worktree", "remove", "--force", targetPath); err != nil {
		if _, statErr := os.Stat(targetPath); statErr == nil {
			if IsManagedPath(targetPath) {
				log.WarningLog.Printf("git worktree remove failed for %s, deleting directly: %v", targetPath, err)
				if rmErr := os.RemoveAll(targetPath); rmErr != nil {
					return fmt.Errorf("failed to remove worktree at %s: %w", targetPath, rmErr)
				}
			} else {
				return fmt.Errorf("failed to remove worktree at %s (path is outside the managed worktrees directory): %w", targetPath, err)
			}
		} else if !listed && Classify(err) == KindNotFound {
			log.InfoLog.Printf("worktree %s already gone", targetPath)
		}
	}

	if _, err := m.gw.Run(ctx, opts.ProjectPath, "worktree", "prune"); err != nil {
		log.WarningLog.Printf("failed to prune worktrees for %s: %v", opts.ProjectPath, err)
	}

	if branch != "" {
		m.deleteBranch(ctx, opts.ProjectPath, branch)
	}

	if tracked != nil {
		m.store.Delete(tracked.ID)
	} else {
		m.store.Delete(PathID(targetPath))
	}

	if _, err := os.Stat(targetPath); err == nil {
		return fmt.Errorf("worktree directory %s still present after removal", targetPath)
	}
	return nil
}

// deleteBranch removes the local branch, retrying once through a prune when
// git claims the branch is still checked out, then deletes the remote
// tracking branch when a remote exists. All best-effort.
func (m *Manager) deleteBranch(ctx context.Context, projectPath, branch string) {
	_, err := m.gw.Run(ctx, projectPath, "branch", "-D", branch)
	if err != nil && Classify(err) == KindBranchCheckedOut {
		// Stale worktree metadata can hold the branch; prune and retry once.
		_, _ = m.gw.Run(ctx, projectPath, "worktree", "prune")
		_, err = m.gw.Run(ctx, projectPath, "branch", "-D", branch)
	}
	if err != nil && Classify(err) != KindNotFound {
		log.WarningLog.Printf("failed to delete branch %s: %v", branch, err)
	}

	remotes, rerr := m.resolver.listRemotes(projectPath)
	if rerr != nil {
		return
	}
	remote := defaultRemote(remotes)
	if remote == "" {
		return
	}
	if _, err := m.gw.Run(ctx, projectPath, "push", remote, "--delete", branch); err != nil {
		if Classify(err) == KindNotFound {
			return // already absent upstream
		}
		log.WarningLog.Printf("failed to delete remote branch %s/%s: %v", remote, branch, err)
	}
}

// Merge checks out the project's default branch, merges the worktree's
// branch into it, and removes the worktree. Merge conflicts are fatal and
// leave the primary repository on the default branch with the merge aborted.
func (m *Manager) Merge(ctx context.Context, projectPath, id string) error {
	d, ok := m.store.Get(id)
	if !ok {
		return fmt.Errorf("unknown worktree id %s", id)
	}

	remotes, err := m.resolver.listRemotes(projectPath)
	if err != nil {
		return err
	}
	target := m.resolver.defaultBranch(ctx, projectPath, defaultRemote(remotes))

	if _, err := m.gw.Run(ctx, projectPath, "checkout", target); err != nil {
		return fmt.Errorf("failed to check out %s: %w", target, err)
	}
	if _, err := m.gw.Run(ctx, projectPath, "merge", d.Branch); err != nil {
		if Classify(err) == KindMergeConflict {
			if _, abortErr := m.gw.Run(ctx, projectPath, "merge", "--abort"); abortErr != nil {
				log.ErrorLog.Printf("failed to abort conflicted merge of %s: %v", d.Branch, abortErr)
			}
			return fmt.Errorf("merge of %s into %s has conflicts: %w", d.Branch, target, err)
		}
		return fmt.Errorf("failed to merge %s into %s: %w", d.Branch, target, err)
	}

	return m.Remove(ctx, RemoveOptions{ProjectPath: projectPath, ID: id})
}

// normalizePath resolves symlinks and returns a cleaned absolute path, so
// guard comparisons cannot be defeated by alternate spellings of the same
// directory.
func normalizePath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}
	return filepath.Clean(abs)
}
