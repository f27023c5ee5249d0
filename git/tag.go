package git

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// TagFilter is a predicate over tag names. A tag must pass every filter.
type TagFilter func(name string, ref *plumbing.Reference) bool

// CreateTag creates an annotated tag named name at target.
// target may be any revision go-git can resolve, e.g. "HEAD".
func (r *Repo) CreateTag(ctx context.Context, name, target, message string, tagger Signature) error {
	if name == "" {
		return WrapError(ErrInvalidRef, "tag name cannot be empty")
	}
	if strings.TrimSpace(message) == "" {
		return WrapError(ErrInvalidRef, "annotated tag message cannot be empty")
	}
	if target == "" {
		target = "HEAD"
	}

	hash, err := r.repo.ResolveRevision(plumbing.Revision(target))
	if err != nil {
		return WrapErrorf(ErrResolveFailed, "failed to resolve %q", target)
	}

	if _, err := r.repo.Reference(plumbing.NewTagReferenceName(name), true); err == nil {
		return WrapErrorf(ErrTagExists, "tag %q", name)
	}

	if _, err := r.repo.CreateTag(name, *hash, &git.CreateTagOptions{
		Tagger:  toObjectSignature(tagger),
		Message: message,
	}); err != nil {
		return WrapErrorf(err, "failed to create tag %q", name)
	}

	r.options.Logger.Info("created tag", "tag", name, "target", hash.String()[:7])
	return nil
}

// Tags returns the sorted names of all tags passing filters.
func (r *Repo) Tags(ctx context.Context, filters ...TagFilter) ([]string, error) {
	refs, err := r.repo.Tags()
	if err != nil {
		return nil, WrapError(err, "failed to list tags")
	}
	defer refs.Close()

	var tags []string
	err = refs.ForEach(func(ref *plumbing.Reference) error {
		name := ref.Name().Short()
		for _, f := range filters {
			if f != nil && !f(name, ref) {
				return nil
			}
		}
		tags = append(tags, name)
		return nil
	})
	if err != nil {
		return nil, WrapError(err, "failed to iterate tags")
	}

	sort.Strings(tags)
	return tags, nil
}

// TagRegexpFilter matches tags against re.
func TagRegexpFilter(re *regexp.Regexp) TagFilter {
	return func(name string, _ *plumbing.Reference) bool {
		return re.MatchString(name)
	}
}
