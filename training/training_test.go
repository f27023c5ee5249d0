package training

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cs-gavin-huang/MLOPS-human-pose-estimation/config"
	perrors "github.com/cs-gavin-huang/MLOPS-human-pose-estimation/errors"
	"github.com/cs-gavin-huang/MLOPS-human-pose-estimation/executor/executortest"
)

const testConfig = `
data_root_path: /data
train_mask_data_path: /data/mask/train/
val_mask_data_path: /data/mask/val/
label_file: labels.json
label_subset_file: labels_subset.json
dvc_remote_name: minio
dvc_remote_url: s3://dvc
experiment_name: pose-estimation
info_summary_file_path: /weights/info_summary.json
model_weight_path: /weights/best.pth
image_name: registry.example.com/pose/app:latest
train_workdir: /src/pose
train_command: [python, -m, pose.train]
`

func loadConfig(t *testing.T, extra string) *config.Config {
	t.Helper()
	fsys := memfs.New()
	require.NoError(t, util.WriteFile(fsys, "/etc/posepipe/config.yaml", []byte(testConfig+extra), 0o644))
	cfg, err := config.Load(fsys, "/etc/posepipe/config.yaml")
	require.NoError(t, err)
	return cfg
}

var testEnv = &config.Env{
	MinioPort:      9000,
	MinioAccessKey: "minio",
	MinioSecretKey: "minio123",
	BucketName:     "mlflow",
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunName(t *testing.T) {
	now := time.Date(2024, 3, 7, 9, 5, 2, 999, time.UTC)
	assert.Equal(t, "2024-03-07_09-05-02", RunName(now))
}

func TestNewTracking(t *testing.T) {
	cfg := loadConfig(t, "")
	tr := NewTracking(cfg, testEnv)
	assert.Equal(t, "http://localhost:5000", tr.TrackingURI)
	assert.Equal(t, "http://localhost:9000", tr.S3EndpointURL)

	secure := loadConfig(t, "minio_secure: true\nminio_host: minio.internal\n")
	env := *testEnv
	env.TrackingURI = "http://mlflow.internal:5000"
	tr = NewTracking(secure, &env)
	assert.Equal(t, "http://mlflow.internal:5000", tr.TrackingURI)
	assert.Equal(t, "https://minio.internal:9000", tr.S3EndpointURL)
}

type fakeTrainer struct {
	reqs []Request
	err  error
}

func (f *fakeTrainer) Train(_ context.Context, req Request) error {
	f.reqs = append(f.reqs, req)
	return f.err
}

func TestStageRun(t *testing.T) {
	cfg := loadConfig(t, "")
	trainer := &fakeTrainer{}
	clock := func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }
	stage := NewStage(trainer, WithClock(clock), WithLogger(quietLogger()))

	name, err := stage.Run(context.Background(), cfg, testEnv)
	require.NoError(t, err)
	assert.Equal(t, "2024-01-02_03-04-05", name)

	require.Len(t, trainer.reqs, 1)
	req := trainer.reqs[0]
	assert.Equal(t, "pose-estimation", req.ExperimentName)
	assert.Equal(t, name, req.RunName)
	assert.Same(t, cfg, req.Config)
}

func TestStageRunError(t *testing.T) {
	trainer := &fakeTrainer{err: errors.New("CUDA out of memory")}
	stage := NewStage(trainer, WithLogger(quietLogger()))

	_, err := stage.Run(context.Background(), loadConfig(t, ""), testEnv)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CUDA out of memory")
}

func TestCommandTrainer(t *testing.T) {
	cfg := loadConfig(t, "")
	rec := executortest.NewRecorder()
	req := Request{
		Config:         cfg,
		Tracking:       NewTracking(cfg, testEnv),
		ExperimentName: "pose-estimation",
		RunName:        "2024-01-02_03-04-05",
	}

	require.NoError(t, NewCommandTrainer(rec).Train(context.Background(), req))

	calls := rec.Calls()
	require.Len(t, calls, 1)
	call := calls[0]
	assert.Equal(t, "python -m pose.train --experiment-name pose-estimation --run-name 2024-01-02_03-04-05 --config /etc/posepipe/config.yaml", call.Line())
	assert.Equal(t, "/src/pose", call.Options.WorkingDir)
	assert.True(t, call.Options.RedirectToConsole)
	assert.Equal(t, map[string]string{
		"MLFLOW_TRACKING_URI":    "http://localhost:5000",
		"MLFLOW_S3_ENDPOINT_URL": "http://localhost:9000",
		"MLFLOW_EXPERIMENT_NAME": "pose-estimation",
		"AWS_ACCESS_KEY_ID":      "minio",
		"AWS_SECRET_ACCESS_KEY":  "minio123",
	}, call.Options.Env)
}

func TestCommandTrainerFailure(t *testing.T) {
	cfg := loadConfig(t, "")
	rec := executortest.NewRecorder().Fail("python", 1, "Traceback")
	req := Request{Config: cfg, Tracking: NewTracking(cfg, testEnv), ExperimentName: "pose", RunName: "r"}

	err := NewCommandTrainer(rec).Train(context.Background(), req)
	require.Error(t, err)
	assert.True(t, perrors.HasCode(err, perrors.CodeExecutionFailed))
}

func TestPlanContainer(t *testing.T) {
	cfg := loadConfig(t, "train_image: pytorch/pytorch:2.3.0-cuda12.1-cudnn8-runtime\n")
	req := Request{
		Config:         cfg,
		Tracking:       NewTracking(cfg, testEnv),
		ExperimentName: "pose-estimation",
		RunName:        "2024-01-02_03-04-05",
	}

	plan, err := planContainer(req)
	require.NoError(t, err)

	assert.Equal(t, "pytorch/pytorch:2.3.0-cuda12.1-cudnn8-runtime", plan.image)
	assert.Equal(t, []string{
		"python", "-m", "pose.train",
		"--experiment-name", "pose-estimation",
		"--run-name", "2024-01-02_03-04-05",
		"--config", containerConfigPath,
	}, plan.argv)
	assert.Equal(t, "http://mlflow:5000", plan.env["MLFLOW_TRACKING_URI"])
	assert.Equal(t, "http://minio:9000", plan.env["MLFLOW_S3_ENDPOINT_URL"])
	assert.Equal(t, []tunnel{{alias: "mlflow", port: 5000}, {alias: "minio", port: 9000}}, plan.tunnels)
	assert.Equal(t, "minio123", plan.secrets["AWS_SECRET_ACCESS_KEY"])
	assert.NotContains(t, plan.env, "AWS_SECRET_ACCESS_KEY")
}

func TestTunnelURL(t *testing.T) {
	tests := []struct {
		raw    string
		want   string
		tunnel *tunnel
	}{
		{"http://localhost:5000", "http://mlflow:5000", &tunnel{"mlflow", 5000}},
		{"http://127.0.0.1:5000/", "http://mlflow:5000/", &tunnel{"mlflow", 5000}},
		{"https://localhost", "https://mlflow:443", &tunnel{"mlflow", 443}},
		{"http://mlflow.internal:5000", "http://mlflow.internal:5000", nil},
	}
	for _, tt := range tests {
		got, tn, err := tunnelURL(tt.raw, "mlflow")
		require.NoError(t, err, tt.raw)
		assert.Equal(t, tt.want, got, tt.raw)
		assert.Equal(t, tt.tunnel, tn, tt.raw)
	}
}
