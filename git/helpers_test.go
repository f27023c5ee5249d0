package git

import (
	"context"
	"testing"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/stretchr/testify/require"
)

var testSig = Signature{
	Name:  "posepipe",
	Email: "posepipe@localhost",
	When:  time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
}

// testRepo bundles an in-memory repository with its filesystem.
type testRepo struct {
	repo *Repo
	fs   billy.Filesystem
	ctx  context.Context
}

func setupTestRepo(t *testing.T) *testRepo {
	t.Helper()

	ctx := context.Background()
	fsys := memfs.New()
	repo, err := Init(ctx, fsys)
	require.NoError(t, err, "failed to initialize test repository")

	return &testRepo{repo: repo, fs: fsys, ctx: ctx}
}

func setupTestRepoWithCommit(t *testing.T) *testRepo {
	t.Helper()

	tr := setupTestRepo(t)
	tr.writeFile(t, "README.md", "pose estimation\n")
	require.NoError(t, tr.repo.Add(tr.ctx, "README.md"))
	_, err := tr.repo.Commit(tr.ctx, "Initial commit", testSig, CommitOpts{})
	require.NoError(t, err)
	return tr
}

func (tr *testRepo) writeFile(t *testing.T, name, content string) {
	t.Helper()
	require.NoError(t, util.WriteFile(tr.fs, name, []byte(content), 0o644))
}

// head returns the hash and message of the commit HEAD points at.
func (tr *testRepo) head(t *testing.T) (string, string) {
	t.Helper()
	ref, err := tr.repo.repo.Head()
	require.NoError(t, err)
	commit, err := tr.repo.repo.CommitObject(ref.Hash())
	require.NoError(t, err)
	return ref.Hash().String(), commit.Message
}

func (tr *testRepo) staged(t *testing.T, p string) bool {
	t.Helper()
	status, err := tr.repo.worktree.Status()
	require.NoError(t, err)
	fs, ok := status[p]
	return ok && fs.Staging != git.Unmodified && fs.Staging != git.Untracked
}

func (tr *testRepo) addRemote(t *testing.T, name, url string) {
	t.Helper()
	_, err := tr.repo.repo.CreateRemote(&config.RemoteConfig{Name: name, URLs: []string{url}})
	require.NoError(t, err)
}
