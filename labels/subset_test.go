package labels

import (
	"io"
	"testing"

	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteSubset(t *testing.T) {
	fsys := fixtureFS(t)
	dp, err := Retrieve(fsys, "/data/coco", "t/", "v/", "labels.json")
	require.NoError(t, err)

	out, err := WriteSubset(fsys, Head(dp.Validation.Meta, 2), "/data/coco/subset/labels_subset.json", WithProgress(io.Discard))
	require.NoError(t, err)
	assert.Equal(t, "/data/coco/subset/labels_subset.json", out)

	written, err := ReadFile(fsys, out)
	require.NoError(t, err)
	require.Len(t, written, 2)
	assert.Equal(t, "val2017/000000000139.jpg", written[0].ImagePath)
	assert.Equal(t, "val2017/000000000285.jpg", written[1].ImagePath)

	data, err := util.ReadFile(fsys, out)
	require.NoError(t, err)
	assert.Contains(t, string(data), "\n  \"root\": [\n")
	assert.Contains(t, string(data), `"note": "a<b & c>d"`)
}

func TestWriteSubsetIdempotent(t *testing.T) {
	fsys := fixtureFS(t)
	dp, err := Retrieve(fsys, "/data/coco", "t/", "v/", "labels.json")
	require.NoError(t, err)

	path := "/data/coco/labels_subset.json"
	_, err = WriteSubset(fsys, dp.Validation.Meta, path, WithProgress(io.Discard))
	require.NoError(t, err)
	first, err := util.ReadFile(fsys, path)
	require.NoError(t, err)

	_, err = WriteSubset(fsys, dp.Validation.Meta, path, WithProgress(io.Discard))
	require.NoError(t, err)
	second, err := util.ReadFile(fsys, path)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestEncodeEmpty(t *testing.T) {
	data, err := Encode(nil)
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"root\": []\n}", string(data))
}
