package git

import (
	"errors"
	"fmt"
)

// Sentinel errors. go-git errors are translated to these where a caller is
// expected to branch on them.

// ErrAlreadyUpToDate is returned when a push changes nothing on the remote.
var ErrAlreadyUpToDate = errors.New("already up to date")

// ErrAuthRequired is returned when no credentials could be resolved for a remote.
var ErrAuthRequired = errors.New("authentication required")

// ErrTagExists is returned when creating a tag whose name is taken.
var ErrTagExists = errors.New("tag already exists")

// ErrNotFastForward is returned when the remote rejects a non fast-forward push.
var ErrNotFastForward = errors.New("not a fast-forward")

// ErrInvalidRef is returned for malformed names and invalid arguments.
var ErrInvalidRef = errors.New("invalid reference")

// ErrResolveFailed is returned when a revision or remote cannot be resolved.
var ErrResolveFailed = errors.New("cannot resolve revision")

// ErrNothingToCommit is returned when the index matches HEAD.
var ErrNothingToCommit = errors.New("nothing to commit")

// ErrNotRepository is returned when no .git directory is found.
var ErrNotRepository = errors.New("not a git repository")

// ErrOutsideWorktree is returned for paths that do not live under the worktree root.
var ErrOutsideWorktree = errors.New("path is outside the worktree")

// WrapError wraps an error with additional context while preserving
// the ability to check against sentinel errors using errors.Is().
func WrapError(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// WrapErrorf is WrapError with a format string.
func WrapErrorf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}
