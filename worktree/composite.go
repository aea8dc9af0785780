package worktree

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	git "github.com/go-git/go-git/v5"

	"arbor/log"
	"arbor/project"
)

// Mapping is one sub-repository inside a composite worktree. IsWorktree=false
// means the entry is a link to the original checkout: shared, not isolated.
type Mapping struct {
	RelativePath string `json:"relative_path"`
	OriginalPath string `json:"original_path"`
	TargetPath   string `json:"target_path"`
	IsWorktree   bool   `json:"is_worktree"`
	Branch       string `json:"branch,omitempty"`
}

// Composite is a single logical working directory assembled from several
// independent repositories.
type Composite struct {
	Path     string    `json:"path"`
	Mappings []Mapping `json:"mappings"`
}

// MultiRepoOptions are the inputs for CreateMultiRepo. SubRepos are paths
// relative to the project root; SelectedRepos is the subset to isolate via
// real worktrees, everything else is linked.
type MultiRepoOptions struct {
	ProjectPath   string
	ProjectID     string
	TaskName      string
	SubRepos      []string
	SelectedRepos []string
	BaseRef       string
}

// CreateMultiRepo builds a composite working directory. Selected
// version-controlled sub-repos get isolated worktrees with their own branch,
// base-ref resolution, preserved files, and optional push; the rest are
// symlinked to the original checkout. Any per-sub-repo failure rolls the
// whole composite back before the error propagates.
func (m *Manager) CreateMultiRepo(ctx context.Context, opts MultiRepoOptions) (*Composite, error) {
	settings := m.projects.Settings(opts.ProjectID, opts.ProjectPath)

	slug := Slugify(opts.TaskName)
	if slug == "" {
		slug = "task"
	}
	suffix := RandomSuffix()
	compositeDir := Dir(opts.ProjectPath, slug+"-"+suffix)

	if _, err := os.Stat(compositeDir); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrWorktreeExists, compositeDir)
	}
	if err := os.MkdirAll(compositeDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create composite directory: %w", err)
	}

	selected := make(map[string]bool, len(opts.SelectedRepos))
	for _, rel := range opts.SelectedRepos {
		selected[filepath.Clean(rel)] = true
	}

	composite := &Composite{Path: compositeDir}
	for _, rel := range opts.SubRepos {
		rel = filepath.Clean(rel)
		orig := filepath.Join(opts.ProjectPath, rel)
		target := filepath.Join(compositeDir, rel)

		isolate := selected[rel]
		if isolate && !isGitRepository(orig) {
			// Selection of a non-repo is demoted to a link, not an error.
			log.WarningLog.Printf("sub-repo %s selected for isolation but is not a git repository, linking instead", rel)
			isolate = false
		}

		mapping, err := m.addSubRepo(ctx, subRepoSpec{
			relative:  rel,
			original:  orig,
			target:    target,
			isolate:   isolate,
			branch:    BranchName(settings.BranchPrefix, slug+"-"+Slugify(rel), suffix),
			baseRef:   opts.BaseRef,
			settings:  settings,
		})
		if err != nil {
			if terr := m.teardownComposite(ctx, compositeDir, composite.Mappings); terr != nil {
				log.WarningLog.Printf("rollback of %s incomplete: %v", compositeDir, terr)
			}
			return nil, fmt.Errorf("failed to set up sub-repo %s: %w", rel, err)
		}
		composite.Mappings = append(composite.Mappings, mapping)
	}

	m.store.Put(&Descriptor{
		ID:        PathID(compositeDir),
		Name:      opts.TaskName,
		Path:      compositeDir,
		ProjectID: opts.ProjectID,
		Status:    StatusActive,
		CreatedAt: time.Now(),
	})
	return composite, nil
}

type subRepoSpec struct {
	relative  string
	original  string
	target    string
	isolate   bool
	branch    string
	baseRef   string
	settings  project.Settings
}

func (m *Manager) addSubRepo(ctx context.Context, spec subRepoSpec) (Mapping, error) {
	if err := os.MkdirAll(filepath.Dir(spec.target), 0755); err != nil {
		return Mapping{}, err
	}

	if !spec.isolate {
		if err := os.Symlink(spec.original, spec.target); err != nil {
			return Mapping{}, fmt.Errorf("failed to link %s: %w", spec.relative, err)
		}
		return Mapping{
			RelativePath: spec.relative,
			OriginalPath: spec.original,
			TargetPath:   spec.target,
			IsWorktree:   false,
		}, nil
	}

	preferred := spec.baseRef
	if preferred != "" {
		normalized, err := m.resolver.NormalizeUserRef(spec.original, preferred)
		if err != nil {
			return Mapping{}, err
		}
		preferred = normalized
	}
	ref, err := m.resolver.Resolve(ctx, spec.original, preferred, spec.settings.BaseRef)
	if err != nil {
		return Mapping{}, err
	}
	ref, _, err = m.resolver.FetchBase(ctx, spec.original, ref)
	if err != nil {
		return Mapping{}, err
	}

	if _, err := m.gw.Run(ctx, spec.original, "worktree", "add", "-b", spec.branch, spec.target, ref.FullRef); err != nil {
		return Mapping{}, fmt.Errorf("failed to create worktree at %s on branch %s: %w", spec.target, spec.branch, err)
	}

	if result, perr := m.PreserveFiles(ctx, spec.original, spec.target, spec.settings.PreservePatterns); perr != nil {
		log.WarningLog.Printf("failed to preserve files into %s: %v", spec.target, perr)
	} else if len(result.Copied) > 0 {
		log.InfoLog.Printf("preserved files into %s: copied=%v", spec.target, result.Copied)
	}

	if spec.settings.PushOnCreate && ref.Remote != "" {
		if _, perr := m.gw.Run(ctx, spec.target, "push", "-u", ref.Remote, spec.branch); perr != nil {
			log.WarningLog.Printf("failed to push new branch %s to %s: %v", spec.branch, ref.Remote, perr)
		}
	}

	return Mapping{
		RelativePath: spec.relative,
		OriginalPath: spec.original,
		TargetPath:   spec.target,
		IsWorktree:   true,
		Branch:       spec.branch,
	}, nil
}

// RemoveMultiRepo tears a composite down: links are unlinked, worktree
// entries removed with best-effort branch cleanup, then the composite
// directory itself is deleted. Guarded by the managed-path heuristic.
func (m *Manager) RemoveMultiRepo(ctx context.Context, compositePath string, subRepos []string) error {
	if !IsManagedPath(compositePath) {
		return fmt.Errorf("refusing to remove %s: not a managed worktree path", compositePath)
	}

	mappings := make([]Mapping, 0, len(subRepos))
	for _, rel := range subRepos {
		mappings = append(mappings, Mapping{
			RelativePath: rel,
			TargetPath:   filepath.Join(compositePath, filepath.Clean(rel)),
		})
	}
	if err := m.teardownComposite(ctx, compositePath, mappings); err != nil {
		log.WarningLog.Printf("teardown of %s incomplete: %v", compositePath, err)
	}

	m.store.Delete(PathID(compositePath))
	if _, err := os.Stat(compositePath); err == nil {
		return fmt.Errorf("composite directory %s still present after removal", compositePath)
	}
	return nil
}

// teardownComposite undoes composite entries in place. Used both for rollback
// of partial composites and for full removal; every step is attempted so a
// half-broken entry cannot strand the rest, and the failures come back as one
// combined error.
func (m *Manager) teardownComposite(ctx context.Context, compositePath string, mappings []Mapping) error {
	var errs []error
	for _, mapping := range mappings {
		target := mapping.TargetPath
		info, err := os.Lstat(target)
		if err != nil {
			continue
		}

		if info.Mode()&os.ModeSymlink != 0 {
			if err := os.Remove(target); err != nil {
				errs = append(errs, fmt.Errorf("failed to unlink %s: %w", target, err))
			}
			continue
		}

		origRepo, branch := m.inspectWorktree(ctx, target)
		if origRepo != "" {
			if _, err := m.gw.Run(ctx, origRepo, "worktree", "remove", "--force", target); err != nil {
				errs = append(errs, fmt.Errorf("failed to remove worktree %s: %w", target, err))
				_ = os.RemoveAll(target)
			}
			_, _ = m.gw.Run(ctx, origRepo, "worktree", "prune")
			if branch != "" {
				m.deleteBranch(ctx, origRepo, branch)
			}
		} else if err := os.RemoveAll(target); err != nil {
			errs = append(errs, fmt.Errorf("failed to delete %s: %w", target, err))
		}
	}

	if err := os.RemoveAll(compositePath); err != nil {
		errs = append(errs, fmt.Errorf("failed to remove composite directory %s: %w", compositePath, err))
	}
	return combineErrors(errs)
}

// inspectWorktree finds the owning repository and checked-out branch of a
// worktree directory, so teardown can run removal from the right place.
func (m *Manager) inspectWorktree(ctx context.Context, target string) (origRepo, branch string) {
	commonDir, err := m.gw.Run(ctx, target, "rev-parse", "--path-format=absolute", "--git-common-dir")
	if err != nil {
		return "", ""
	}
	if strings.HasSuffix(commonDir, string(filepath.Separator)+".git") || filepath.Base(commonDir) == ".git" {
		origRepo = filepath.Dir(commonDir)
	}
	branch, err = m.gw.Run(ctx, target, "branch", "--show-current")
	if err != nil {
		branch = ""
	}
	return origRepo, branch
}

// isGitRepository reports whether path is the root of a git repository.
func isGitRepository(path string) bool {
	_, err := git.PlainOpen(path)
	return err == nil
}
