// Package training launches a model training run against the experiment
// tracking server. The training routine itself is an external program; this
// package names the run and hands it the tracking handle.
package training

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/cs-gavin-huang/MLOPS-human-pose-estimation/config"
)

// RunNameLayout is the time layout of run names.
const RunNameLayout = "2006-01-02_15-04-05"

// RunName names a run after its start time. Two runs started within the same
// second get the same name.
func RunName(now time.Time) string {
	return now.Format(RunNameLayout)
}

// Tracking is the handle a training run logs to.
type Tracking struct {
	TrackingURI string

	// Object store backing the tracking server's artifacts.
	S3EndpointURL string
	AccessKey     config.Secret
	SecretKey     config.Secret
}

// Env returns the environment variables MLflow clients read.
func (t Tracking) Env(experiment string) map[string]string {
	return map[string]string{
		"MLFLOW_TRACKING_URI":    t.TrackingURI,
		"MLFLOW_S3_ENDPOINT_URL": t.S3EndpointURL,
		"MLFLOW_EXPERIMENT_NAME": experiment,
		"AWS_ACCESS_KEY_ID":      t.AccessKey.Reveal(),
		"AWS_SECRET_ACCESS_KEY":  t.SecretKey.Reveal(),
	}
}

// NewTracking builds the tracking handle from configuration and environment.
// MLFLOW_TRACKING_URI in the environment wins over the configured URI.
func NewTracking(cfg *config.Config, env *config.Env) Tracking {
	uri := cfg.MLflowTrackingURI
	if env.TrackingURI != "" {
		uri = env.TrackingURI
	}
	scheme := "http"
	if cfg.MinioSecure {
		scheme = "https"
	}
	endpoint := url.URL{Scheme: scheme, Host: env.MinioEndpoint(cfg.MinioHost)}
	return Tracking{
		TrackingURI:   uri,
		S3EndpointURL: endpoint.String(),
		AccessKey:     env.MinioAccessKey,
		SecretKey:     env.MinioSecretKey,
	}
}

// Request is everything a Trainer needs for one run.
type Request struct {
	Config         *config.Config
	Tracking       Tracking
	ExperimentName string
	RunName        string
}

// Args returns the flags passed to the training program.
func (r Request) Args() []string {
	args := []string{
		"--experiment-name", r.ExperimentName,
		"--run-name", r.RunName,
	}
	if src := r.Config.Source(); src != "" {
		args = append(args, "--config", src)
	}
	return args
}

// Trainer runs one training run to completion.
type Trainer interface {
	Train(ctx context.Context, req Request) error
}

// Stage names the run and delegates to a Trainer.
type Stage struct {
	trainer Trainer
	now     func() time.Time
	logger  *slog.Logger
}

// StageOption configures a Stage.
type StageOption func(*Stage)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) StageOption {
	return func(s *Stage) { s.logger = l }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) StageOption {
	return func(s *Stage) { s.now = now }
}

// NewStage creates a training stage.
func NewStage(trainer Trainer, opts ...StageOption) *Stage {
	s := &Stage{trainer: trainer, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Run trains under cfg.ExperimentName and returns the run name.
func (s *Stage) Run(ctx context.Context, cfg *config.Config, env *config.Env) (string, error) {
	req := Request{
		Config:         cfg,
		Tracking:       NewTracking(cfg, env),
		ExperimentName: cfg.ExperimentName,
		RunName:        RunName(s.now()),
	}

	s.logger.Info("starting training run",
		"experiment", req.ExperimentName,
		"run", req.RunName,
		"tracking_uri", req.Tracking.TrackingURI)

	if err := s.trainer.Train(ctx, req); err != nil {
		return "", fmt.Errorf("training run %s: %w", req.RunName, err)
	}

	s.logger.Info("training run finished", "run", req.RunName)
	return req.RunName, nil
}
