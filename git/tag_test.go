package git

import (
	"errors"
	"regexp"
	"strings"
	"testing"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateTag(t *testing.T) {
	tr := setupTestRepoWithCommit(t)

	require.NoError(t, tr.repo.CreateTag(tr.ctx, "v1", "HEAD", "Versioning data: v1", testSig))

	ref, err := tr.repo.repo.Reference(plumbing.NewTagReferenceName("v1"), true)
	require.NoError(t, err)
	tag, err := tr.repo.repo.TagObject(ref.Hash())
	require.NoError(t, err, "tag should be annotated")
	assert.Equal(t, "Versioning data: v1", strings.TrimSpace(tag.Message))
	assert.Equal(t, testSig.Name, tag.Tagger.Name)

	err = tr.repo.CreateTag(tr.ctx, "v1", "HEAD", "again", testSig)
	assert.True(t, errors.Is(err, ErrTagExists))
}

func TestCreateTagInvalid(t *testing.T) {
	tr := setupTestRepoWithCommit(t)

	assert.True(t, errors.Is(tr.repo.CreateTag(tr.ctx, "", "HEAD", "m", testSig), ErrInvalidRef))
	assert.True(t, errors.Is(tr.repo.CreateTag(tr.ctx, "v1", "HEAD", "", testSig), ErrInvalidRef))
	assert.True(t, errors.Is(tr.repo.CreateTag(tr.ctx, "v1", "nope", "m", testSig), ErrResolveFailed))

	empty := setupTestRepo(t)
	assert.True(t, errors.Is(empty.repo.CreateTag(empty.ctx, "v1", "", "m", testSig), ErrResolveFailed))
}

func TestTags(t *testing.T) {
	tr := setupTestRepoWithCommit(t)
	for _, name := range []string{"v2", "v10", "release", "v1"} {
		require.NoError(t, tr.repo.CreateTag(tr.ctx, name, "HEAD", "m", testSig))
	}

	all, err := tr.repo.Tags(tr.ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"release", "v1", "v10", "v2"}, all)

	versions, err := tr.repo.Tags(tr.ctx, TagRegexpFilter(regexp.MustCompile(`^v\d+$`)))
	require.NoError(t, err)
	assert.Equal(t, []string{"v1", "v10", "v2"}, versions)

	none, err := setupTestRepo(t).repo.Tags(tr.ctx)
	require.NoError(t, err)
	assert.Empty(t, none)
}
