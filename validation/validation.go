// Package validation decides whether the best finished training run beats the
// deployed weight and, if so, replaces the weight and its summary.
package validation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cs-gavin-huang/MLOPS-human-pose-estimation/config"
	"github.com/cs-gavin-huang/MLOPS-human-pose-estimation/storage"
	"github.com/cs-gavin-huang/MLOPS-human-pose-estimation/summary"
	"github.com/cs-gavin-huang/MLOPS-human-pose-estimation/tracking"
)

// ShouldUpdate reports whether a run with loss current replaces one with loss
// previous. Ties keep the existing weight.
func ShouldUpdate(previous, current float64) bool {
	return current < previous
}

// RunFinder finds the best finished run of an experiment.
type RunFinder interface {
	BestRun(ctx context.Context, experiment, lossTag string) (*tracking.Run, float64, error)
}

// SummaryStore persists the deployed weight's summary.
type SummaryStore interface {
	Load() (*summary.Summary, error)
	Save(*summary.Summary) error
	Path() string
}

// Settings are the names and paths the validator works with.
type Settings struct {
	Experiment         string
	LossTag            string
	Bucket             string
	WeightArtifactPath string
	WeightPath         string
}

// SettingsFromConfig collects Settings from the configuration and environment.
func SettingsFromConfig(cfg *config.Config, env *config.Env) Settings {
	return Settings{
		Experiment:         cfg.ExperimentName,
		LossTag:            cfg.ValLossTag,
		Bucket:             env.BucketName,
		WeightArtifactPath: cfg.WeightArtifactPath,
		WeightPath:         cfg.ModelWeightPath,
	}
}

// Validator runs weight validation.
type Validator struct {
	runs     RunFinder
	store    SummaryStore
	download storage.Downloader
	settings Settings
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures a Validator.
type Option func(*Validator)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(v *Validator) { v.logger = l }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(v *Validator) { v.now = now }
}

// New creates a Validator.
func New(runs RunFinder, store SummaryStore, download storage.Downloader, settings Settings, opts ...Option) *Validator {
	v := &Validator{
		runs:     runs,
		store:    store,
		download: download,
		settings: settings,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	if v.logger == nil {
		v.logger = slog.Default()
	}
	return v
}

// Run compares the best finished run against the summary and reports whether
// the weight was replaced. On replacement the weight is downloaded first and
// the summary written second; a failed summary write leaves the new weight in
// place.
func (v *Validator) Run(ctx context.Context) (bool, error) {
	best, current, err := v.runs.BestRun(ctx, v.settings.Experiment, v.settings.LossTag)
	if err != nil {
		return false, err
	}

	prev, err := v.store.Load()
	if err != nil {
		return false, err
	}

	v.logger.Info("comparing validation loss",
		"run_id", best.Info.RunID,
		"current", current,
		"previous", prev.ValLoss.Float())

	if !ShouldUpdate(prev.ValLoss.Float(), current) {
		v.logger.Info(fmt.Sprintf(
			"No update needed for model weight. Current weight remains unchanged. Summary information available at '%s'.",
			v.store.Path()))
		return false, nil
	}

	key, err := storage.ObjectKey(best.Info.ArtifactURI, v.settings.WeightArtifactPath)
	if err != nil {
		return false, err
	}

	if _, err := v.download.Download(ctx, v.settings.Bucket, key, v.settings.WeightPath); err != nil {
		return false, fmt.Errorf("download weight of run %s: %w", best.Info.RunID, err)
	}

	if err := v.store.Save(summary.FromRun(best, current, v.now())); err != nil {
		return false, fmt.Errorf("save summary of run %s: %w", best.Info.RunID, err)
	}

	v.logger.Info(fmt.Sprintf(
		"Model weight updated successfully. New weight saved to '%s'. Summary information updated and stored in '%s'.",
		v.settings.WeightPath, v.store.Path()))
	return true, nil
}
