package git

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
)

// PushBranch pushes branch to remote. With followTags, annotated tags reachable
// from the pushed commits are sent along (`git push --follow-tags`).
// ErrAlreadyUpToDate is returned when the remote already has everything.
func (r *Repo) PushBranch(ctx context.Context, remote, branch string, followTags bool) error {
	if branch == "" {
		return WrapError(ErrInvalidRef, "branch cannot be empty")
	}
	spec := config.RefSpec(fmt.Sprintf("refs/heads/%s:refs/heads/%s", branch, branch))
	return r.push(ctx, remote, &git.PushOptions{
		RefSpecs:   []config.RefSpec{spec},
		FollowTags: followTags,
	})
}

// PushTags pushes every local tag to remote. With force, remote tags of the
// same name are overwritten (`git push -f --tags`).
func (r *Repo) PushTags(ctx context.Context, remote string, force bool) error {
	spec := config.RefSpec("refs/tags/*:refs/tags/*")
	if force {
		spec = "+" + spec
	}
	return r.push(ctx, remote, &git.PushOptions{
		RefSpecs: []config.RefSpec{spec},
		Force:    force,
	})
}

func (r *Repo) push(ctx context.Context, remote string, opts *git.PushOptions) error {
	if remote == "" {
		remote = DefaultRemoteName
	}
	opts.RemoteName = remote

	rem, err := r.repo.Remote(remote)
	if err != nil {
		return WrapErrorf(ErrResolveFailed, "remote %q not found", remote)
	}

	if r.options.Auth != nil {
		urls := rem.Config().URLs
		if len(urls) == 0 {
			return WrapErrorf(ErrResolveFailed, "remote %q has no URL", remote)
		}
		method, authErr := r.options.Auth.Method(urls[0])
		if authErr != nil {
			return WrapError(ErrAuthRequired, authErr.Error())
		}
		opts.Auth = method
	}

	r.options.Logger.Debug("pushing", "remote", remote, "refspecs", opts.RefSpecs)
	err = r.repo.PushContext(ctx, opts)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, git.NoErrAlreadyUpToDate):
		return ErrAlreadyUpToDate
	case errors.Is(err, git.ErrNonFastForwardUpdate):
		return WrapErrorf(ErrNotFastForward, "push to %q", remote)
	default:
		return WrapErrorf(err, "failed to push to %q", remote)
	}
}

