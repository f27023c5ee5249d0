package git

import (
	"errors"
	"strings"
	"testing"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func osfsAt(t *testing.T, dir string) billy.Filesystem {
	t.Helper()
	return osfs.New(dir)
}

func TestAddAndCommit(t *testing.T) {
	tr := setupTestRepoWithCommit(t)

	tr.writeFile(t, "data/labels_subset.json.dvc", "outs:\n- md5: abc\n")
	tr.writeFile(t, "data/.gitignore", "/labels_subset.json\n")

	require.NoError(t, tr.repo.Add(tr.ctx, "data/labels_subset.json.dvc", "data/.gitignore", "data/missing.dvc"))

	assert.True(t, tr.staged(t, "data/labels_subset.json.dvc"))

	hash, err := tr.repo.Commit(tr.ctx, "Updated data version from v0 to v1", testSig, CommitOpts{})
	require.NoError(t, err)
	assert.Len(t, hash, 40)

	head, msg := tr.head(t)
	assert.Equal(t, hash, head)
	assert.Equal(t, "Updated data version from v0 to v1", strings.TrimSpace(msg))
}

func TestAddGlob(t *testing.T) {
	tr := setupTestRepoWithCommit(t)
	tr.writeFile(t, ".dvc/config", "[core]\n")
	tr.writeFile(t, ".dvc/.gitignore", "/tmp\n")

	require.NoError(t, tr.repo.Add(tr.ctx, ".dvc/*"))

	for _, p := range []string{".dvc/config", ".dvc/.gitignore"} {
		assert.True(t, tr.staged(t, p), p)
	}
}

func TestCommitNothing(t *testing.T) {
	tr := setupTestRepoWithCommit(t)

	_, err := tr.repo.Commit(tr.ctx, "no changes", testSig, CommitOpts{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNothingToCommit))

	_, err = tr.repo.Commit(tr.ctx, "no changes", testSig, CommitOpts{AllowEmpty: true})
	require.NoError(t, err)
}

func TestCommitEmptyMessage(t *testing.T) {
	tr := setupTestRepoWithCommit(t)
	_, err := tr.repo.Commit(tr.ctx, "  ", testSig, CommitOpts{})
	assert.True(t, errors.Is(err, ErrInvalidRef))
}
