package git

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-git/go-billy/v5/util"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// Add stages paths, relative to the worktree root, for the next commit.
// Glob patterns are expanded. Paths that do not exist are skipped, matching
// `git add` on an already-removed file.
func (r *Repo) Add(ctx context.Context, paths ...string) error {
	var pathsToAdd []string
	for _, p := range paths {
		if p == "" {
			continue
		}
		if strings.ContainsAny(p, "*?[") {
			matches, err := util.Glob(r.fs, p)
			if err != nil {
				return WrapErrorf(err, "invalid glob pattern %q", p)
			}
			pathsToAdd = append(pathsToAdd, matches...)
			continue
		}
		if _, err := r.fs.Stat(p); err == nil {
			pathsToAdd = append(pathsToAdd, p)
		}
	}

	for _, p := range pathsToAdd {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := r.worktree.Add(p); err != nil {
			return WrapErrorf(err, "failed to add path %q", p)
		}
		r.options.Logger.Debug("staged path", "path", p)
	}
	return nil
}

// Commit records the index as a new commit on the current branch and returns
// its hash. ErrNothingToCommit is returned for an empty change set unless
// opts.AllowEmpty is set.
func (r *Repo) Commit(ctx context.Context, msg string, sig Signature, opts CommitOpts) (string, error) {
	if strings.TrimSpace(msg) == "" {
		return "", WrapError(ErrInvalidRef, "commit message cannot be empty")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	author := toObjectSignature(sig)
	hash, err := r.worktree.Commit(msg, &git.CommitOptions{
		Author:            author,
		Committer:         author,
		AllowEmptyCommits: opts.AllowEmpty,
	})
	if err != nil {
		if errors.Is(err, git.ErrEmptyCommit) {
			return "", WrapError(ErrNothingToCommit, "failed to commit")
		}
		return "", WrapError(err, "failed to commit")
	}

	r.options.Logger.Info("created commit", "hash", hash.String()[:7], "message", msg)
	return hash.String(), nil
}

func toObjectSignature(sig Signature) *object.Signature {
	when := sig.When
	if when.IsZero() {
		when = time.Now()
	}
	return &object.Signature{Name: sig.Name, Email: sig.Email, When: when}
}
