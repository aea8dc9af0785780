package worktree

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		msg  string
		kind Kind
	}{
		{
			name: "missing remote ref on fetch",
			msg:  "git command failed: fatal: couldn't find remote ref refs/heads/nope (exit status 128)",
			kind: KindRefNotFound,
		},
		{
			name: "invalid start point for worktree add",
			msg:  "git command failed: fatal: 'origin/nope' is not a commit and a branch 'arbor/x' cannot be created from it",
			kind: KindRefNotFound,
		},
		{
			name: "unknown revision",
			msg:  "git command failed: fatal: ambiguous argument 'nope': unknown revision or path not in the working tree.",
			kind: KindRefNotFound,
		},
		{
			name: "branch already exists",
			msg:  "git command failed: fatal: a branch named 'arbor/x' already exists",
			kind: KindAlreadyExists,
		},
		{
			name: "branch already checked out elsewhere",
			msg:  "git command failed: fatal: 'arbor/x' is already checked out at '/tmp/worktrees/x'",
			kind: KindAlreadyExists,
		},
		{
			name: "branch deletion blocked by worktree",
			msg:  "git command failed: error: cannot delete branch 'arbor/x' used by worktree at '/tmp/worktrees/x'",
			kind: KindBranchCheckedOut,
		},
		{
			name: "merge conflict",
			msg:  "git command failed: Automatic merge failed; fix conflicts and then commit the result.",
			kind: KindMergeConflict,
		},
		{
			name: "not a working tree",
			msg:  "git command failed: fatal: '/tmp/worktrees/x' is not a working tree",
			kind: KindNotFound,
		},
		{
			name: "remote ref already gone",
			msg:  "git command failed: error: unable to delete 'arbor/x': remote ref does not exist",
			kind: KindNotFound,
		},
		{
			name: "local branch already gone",
			msg:  "git command failed: error: branch 'arbor/x' not found.",
			kind: KindNotFound,
		},
		{
			name: "unrelated failure",
			msg:  "git command failed: fatal: unable to access 'https://example.com/repo.git': connection refused",
			kind: KindUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.kind, Classify(errors.New(tt.msg)))
		})
	}
}

func TestClassify_NilError(t *testing.T) {
	assert.Equal(t, KindUnknown, Classify(nil))
}

func TestClassify_WrappedError(t *testing.T) {
	inner := errors.New("git command failed: fatal: couldn't find remote ref refs/heads/gone (exit status 128)")
	wrapped := fmt.Errorf("failed to fetch origin/gone: %w", inner)
	assert.Equal(t, KindRefNotFound, Classify(wrapped))
}

func TestCombineErrors(t *testing.T) {
	assert.NoError(t, combineErrors(nil))
	assert.NoError(t, combineErrors([]error{}))

	single := errors.New("one")
	assert.Equal(t, single, combineErrors([]error{single}))

	combined := combineErrors([]error{errors.New("one"), errors.New("two")})
	assert.Contains(t, combined.Error(), "one")
	assert.Contains(t, combined.Error(), "two")
	assert.Contains(t, combined.Error(), "multiple errors")
}
