package summary

import (
	stderrors "errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cs-gavin-huang/MLOPS-human-pose-estimation/errors"
	"github.com/cs-gavin-huang/MLOPS-human-pose-estimation/tracking"
)

var now = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func TestInitial(t *testing.T) {
	s := Initial(now)
	assert.True(t, s.IsInitial())
	assert.True(t, math.IsInf(s.ValLoss.Float(), 1))

	data, err := Encode(s)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"val_loss": "inf"`)

	back, err := Decode(data)
	require.NoError(t, err)
	assert.True(t, back.IsInitial())
}

func TestFromRun(t *testing.T) {
	run := &tracking.Run{
		Info: tracking.RunInfo{
			RunID:        "abc",
			RunName:      "2024-05-01_11-00-00",
			ExperimentID: "1",
			Status:       tracking.StatusFinished,
			ArtifactURI:  "mlflow-artifacts:/1/abc/artifacts",
			StartTime:    tracking.Millis(now.Add(-time.Hour).UnixMilli()),
		},
		Data: tracking.RunData{Tags: []tracking.KV{{Key: "val_loss", Value: "0.4"}}},
	}

	s := FromRun(run, 0.4, now)
	assert.False(t, s.IsInitial())
	assert.Equal(t, "abc", s.RunID)
	assert.Equal(t, Loss(0.4), s.ValLoss)
	assert.Equal(t, map[string]string{"val_loss": "0.4"}, s.Tags)
	require.NotNil(t, s.StartTime)
	assert.True(t, s.StartTime.Equal(now.Add(-time.Hour)))
	assert.Nil(t, s.EndTime)
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		want    float64
		wantErr bool
	}{
		{"number", `{"run_id":"a","val_loss":0.25}`, 0.25, false},
		{"quoted number", `{"val_loss":"0.25"}`, 0.25, false},
		{"infinity spelling", `{"val_loss":"Infinity"}`, math.Inf(1), false},
		{"missing loss", `{"run_id":"a"}`, 0, true},
		{"null loss", `{"val_loss":null}`, 0, true},
		{"not a number", `{"val_loss":"low"}`, 0, true},
		{"malformed", `{`, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Decode([]byte(tt.doc))
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.HasCode(err, errors.CodeInvalidInput))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, s.ValLoss.Float())
		})
	}
}

func TestEncodeNaN(t *testing.T) {
	_, err := Encode(&Summary{ValLoss: Loss(math.NaN())})
	require.Error(t, err)
}

func TestStore(t *testing.T) {
	fsys := memfs.New()
	store := NewStore(fsys, "/work/info/summary.json")

	ok, err := store.Exists()
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = store.Load()
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeNotFound))
	assert.Contains(t, err.Error(), "init-summary")

	require.NoError(t, store.Save(Initial(now)))
	first, err := store.Load()
	require.NoError(t, err)
	assert.True(t, first.IsInitial())

	require.NoError(t, store.Save(&Summary{RunID: "b", ValLoss: 0.3, UpdatedAt: now}))
	second, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "b", second.RunID)
	assert.Equal(t, 0.3, second.ValLoss.Float())

	entries, err := fsys.ReadDir("/work/info")
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestStoreInvalidFile(t *testing.T) {
	fsys := memfs.New()
	require.NoError(t, util.WriteFile(fsys, "/summary.json", []byte(`{"run_id":"x"}`), 0o644))

	_, err := NewStore(fsys, "/summary.json").Load()
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeInvalidInput))
}

// renameFS refuses renames onto an existing target. With brokenTarget set it
// refuses every rename onto target except restoring a ".old" backup.
type renameFS struct {
	billy.Filesystem
	target       string
	brokenTarget bool
}

func (f *renameFS) Rename(from, to string) error {
	if to == f.target {
		if f.brokenTarget && !strings.HasSuffix(from, ".old") {
			return stderrors.New("rename refused")
		}
		if _, err := f.Stat(to); err == nil {
			return stderrors.New("file exists")
		}
	}
	return f.Filesystem.Rename(from, to)
}

func TestStoreSaveWithoutOverwritingRename(t *testing.T) {
	fsys := &renameFS{Filesystem: memfs.New(), target: "/info/summary.json"}
	store := NewStore(fsys, "/info/summary.json")

	require.NoError(t, store.Save(&Summary{RunID: "a", ValLoss: 0.5, UpdatedAt: now}))
	require.NoError(t, store.Save(&Summary{RunID: "b", ValLoss: 0.3, UpdatedAt: now}))

	got, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "b", got.RunID)

	entries, err := fsys.ReadDir("/info")
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestStoreSaveFailureKeepsPreviousSummary(t *testing.T) {
	fsys := &renameFS{Filesystem: memfs.New(), target: "/info/summary.json"}
	store := NewStore(fsys, "/info/summary.json")
	require.NoError(t, store.Save(&Summary{RunID: "a", ValLoss: 0.5, UpdatedAt: now}))

	fsys.brokenTarget = true
	err := store.Save(&Summary{RunID: "b", ValLoss: 0.3, UpdatedAt: now})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeStorage))

	got, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "a", got.RunID)
	assert.Equal(t, 0.5, got.ValLoss.Float())

	entries, err := fsys.ReadDir("/info")
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
