package worktree

import (
	"errors"
	"strings"
)

var (
	// ErrPrimaryRepo is returned when a removal would touch the primary
	// repository checkout instead of one of its worktrees.
	ErrPrimaryRepo = errors.New("cannot remove primary repository")
	// ErrWorktreeExists is returned when the target path for a new worktree
	// already exists.
	ErrWorktreeExists = errors.New("worktree path already exists")
	// ErrNoReserve is returned by claim when no standby worktree is ready.
	ErrNoReserve = errors.New("no reserved worktree available")
)

// Kind is a closed classification of git failures this subsystem reacts to.
// Git does not distinguish these cases by exit code, so the raw output has to
// be pattern-matched; all of that matching lives here.
type Kind int

const (
	KindUnknown Kind = iota
	// KindRefNotFound covers fetches and checkouts of refs the remote or the
	// local repository does not have.
	KindRefNotFound
	// KindAlreadyExists covers branch and worktree-path collisions.
	KindAlreadyExists
	// KindBranchCheckedOut covers branch deletion blocked by a (possibly
	// stale) worktree checkout.
	KindBranchCheckedOut
	// KindMergeConflict covers merges git could not complete automatically.
	KindMergeConflict
	// KindNotFound covers operations on branches, worktrees, or remote refs
	// that are already gone.
	KindNotFound
)

var kindPatterns = []struct {
	kind     Kind
	patterns []string
}{
	{KindRefNotFound, []string{
		"couldn't find remote ref",
		"invalid refspec",
		"unknown revision or path not in the working tree",
		"is not a commit and a branch",
		"fatal: invalid reference",
	}},
	{KindAlreadyExists, []string{
		"already exists",
		"already checked out",
		"already used by worktree",
	}},
	{KindBranchCheckedOut, []string{
		"is used by worktree",
		"checked out at",
		"used by worktree at",
	}},
	{KindMergeConflict, []string{
		"automatic merge failed",
		"merge_head exists",
		"fix conflicts",
		"conflict",
	}},
	{KindNotFound, []string{
		"remote ref does not exist",
		"is not a working tree",
		"no such file or directory",
		"not found",
		"did not match any",
	}},
}

// Classify maps a gateway error onto the closed Kind set. The err message
// carries git's combined output verbatim, so matching it here is equivalent
// to matching the subprocess output.
func Classify(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	msg := strings.ToLower(err.Error())
	for _, entry := range kindPatterns {
		for _, p := range entry.patterns {
			if strings.Contains(msg, p) {
				return entry.kind
			}
		}
	}
	return KindUnknown
}

// combineErrors combines multiple errors into a single error
func combineErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}

	errMsg := "multiple errors occurred:"
	for _, err := range errs {
		errMsg += "\n  - " + err.Error()
	}
	return errors.New(errMsg)
}
