package dvc

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cs-gavin-huang/MLOPS-human-pose-estimation/errors"
	"github.com/cs-gavin-huang/MLOPS-human-pose-estimation/executor/executortest"
)

func newTestClient(t *testing.T, rec *executortest.Recorder, argv ...string) *Client {
	t.Helper()
	if len(argv) == 0 {
		argv = []string{"dvc"}
	}
	c, err := New(rec, argv, "/work/project",
		WithFilesystem(memfs.New()),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, err)
	return c
}

func TestCommands(t *testing.T) {
	ctx := context.Background()
	rec := executortest.NewRecorder()
	c := newTestClient(t, rec)

	require.NoError(t, c.Init(ctx))
	require.NoError(t, c.ConfigSet(ctx, "core.analytics", "false"))
	require.NoError(t, c.RemoteAddDefault(ctx, "minio", "s3://dvc"))
	require.NoError(t, c.Add(ctx, "/work/project/data/labels.json"))
	require.NoError(t, c.Push(ctx, "/work/project/data/labels.json.dvc", "minio"))

	assert.Equal(t, []string{
		"dvc init --subdir",
		"dvc config core.analytics false",
		"dvc remote add -d minio s3://dvc",
		"dvc add /work/project/data/labels.json",
		"dvc push /work/project/data/labels.json.dvc --remote minio",
	}, rec.Lines())

	for _, call := range rec.Calls() {
		assert.Equal(t, "/work/project", call.Options.WorkingDir)
	}
}

func TestPrefixArgv(t *testing.T) {
	rec := executortest.NewRecorder()
	c := newTestClient(t, rec, "poetry", "run", "dvc")

	require.NoError(t, c.Init(context.Background()))
	assert.Equal(t, []string{"poetry run dvc init --subdir"}, rec.Lines())
}

func TestStatusAndRemoteList(t *testing.T) {
	ctx := context.Background()
	rec := executortest.NewRecorder().
		Stdout("dvc status", UpToDate).
		Stdout("dvc remote list", "minio\ts3://dvc\n")
	c := newTestClient(t, rec)

	out, err := c.Status(ctx, "data/labels.json.dvc")
	require.NoError(t, err)
	assert.Equal(t, UpToDate, out)

	remotes, err := c.RemoteList(ctx)
	require.NoError(t, err)
	assert.Equal(t, "minio\ts3://dvc", remotes)
}

func TestStatusFailure(t *testing.T) {
	rec := executortest.NewRecorder().Fail("dvc status", 255, "ERROR: failed to get status")
	c := newTestClient(t, rec)

	_, err := c.Status(context.Background(), "data/labels.json.dvc")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeExecutionFailed))
	assert.Contains(t, err.Error(), "dvc status data/labels.json.dvc")
}

func TestValidationRejectsFlags(t *testing.T) {
	rec := executortest.NewRecorder()
	c := newTestClient(t, rec)
	ctx := context.Background()

	assert.Error(t, c.Add(ctx, "--force"))
	assert.Error(t, c.Push(ctx, "x.dvc", ""))
	assert.Error(t, c.RemoteAddDefault(ctx, "-d", "s3://x"))
	assert.Empty(t, rec.Lines(), "nothing may run after a validation failure")
}

func TestIsInitialized(t *testing.T) {
	fsys := memfs.New()
	c, err := New(executortest.NewRecorder(), []string{"dvc"}, "/work/project", WithFilesystem(fsys))
	require.NoError(t, err)

	assert.False(t, c.IsInitialized())
	require.NoError(t, fsys.MkdirAll("/work/project/.dvc", 0o755))
	assert.True(t, c.IsInitialized())
}
