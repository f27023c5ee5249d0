// Package pipeline runs the stages in order: data versioning, training,
// weight validation and image publishing. The first failing stage stops the
// run; nothing already done is undone.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cs-gavin-huang/MLOPS-human-pose-estimation/config"
	"github.com/cs-gavin-huang/MLOPS-human-pose-estimation/versioning"
)

// Task names used in stage banners.
const (
	TaskDataVersioning   = "DATA VERSIONING TASK"
	TaskTraining         = "TRAINING TASK"
	TaskWeightValidation = "WEIGHT VALIDATION TASK"
	TaskImagePublishing  = "THE PROCESS OF PUSHING DOCKER IMAGE TO DOCKER HUB"
)

const rule = "==================="

// Banner returns the log line marking the start or end of task.
func Banner(started bool, task string) string {
	verb := "FINISHED"
	if started {
		verb = "STARTING"
	}
	return fmt.Sprintf("%s %s %s. %s", rule, verb, task, rule)
}

// DataVersioner versions the subset label file.
type DataVersioner interface {
	Run(ctx context.Context, artifact string) (*versioning.Result, error)
}

// Trainer runs one training run and returns its name.
type Trainer interface {
	Run(ctx context.Context, cfg *config.Config, env *config.Env) (string, error)
}

// WeightValidator reports whether the deployed weight was replaced.
type WeightValidator interface {
	Run(ctx context.Context) (bool, error)
}

// ImagePublisher builds and pushes the serving image when update is true.
type ImagePublisher interface {
	Run(ctx context.Context, update bool) error
}

// Stages are the pipeline's components. A stage left nil fails when run.
type Stages struct {
	Versioner DataVersioner
	Trainer   Trainer
	Validator WeightValidator
	Publisher ImagePublisher
}

// Pipeline drives the stages.
type Pipeline struct {
	cfg    *config.Config
	env    *config.Env
	stages Stages
	logger *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// New creates a Pipeline.
func New(cfg *config.Config, env *config.Env, stages Stages, opts ...Option) *Pipeline {
	p := &Pipeline{cfg: cfg, env: env, stages: stages}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// Run executes all four stages sequentially.
func (p *Pipeline) Run(ctx context.Context) error {
	if _, err := p.VersionData(ctx); err != nil {
		return err
	}
	if _, err := p.Train(ctx); err != nil {
		return err
	}
	update, err := p.Validate(ctx)
	if err != nil {
		return err
	}
	return p.Publish(ctx, update)
}

// VersionData versions the subset label file.
func (p *Pipeline) VersionData(ctx context.Context) (*versioning.Result, error) {
	if p.stages.Versioner == nil {
		return nil, missingStage(TaskDataVersioning)
	}
	p.logger.Info(Banner(true, TaskDataVersioning))

	res, err := p.stages.Versioner.Run(ctx, p.cfg.LabelSubsetFilePath())
	if err != nil {
		return nil, fmt.Errorf("data versioning: %w", err)
	}
	if res.Versioned {
		p.logger.Info("data versioned", "previous", res.PreviousVersion, "version", res.Version)
	}

	p.logger.Info(Banner(false, TaskDataVersioning))
	return res, nil
}

// Train runs one training run.
func (p *Pipeline) Train(ctx context.Context) (string, error) {
	if p.stages.Trainer == nil {
		return "", missingStage(TaskTraining)
	}
	p.logger.Info(Banner(true, TaskTraining))

	run, err := p.stages.Trainer.Run(ctx, p.cfg, p.env)
	if err != nil {
		return "", fmt.Errorf("training: %w", err)
	}

	p.logger.Info(Banner(false, TaskTraining))
	return run, nil
}

// Validate runs weight validation.
func (p *Pipeline) Validate(ctx context.Context) (bool, error) {
	if p.stages.Validator == nil {
		return false, missingStage(TaskWeightValidation)
	}
	p.logger.Info(Banner(true, TaskWeightValidation))

	update, err := p.stages.Validator.Run(ctx)
	if err != nil {
		return false, fmt.Errorf("weight validation: %w", err)
	}

	p.logger.Info(Banner(false, TaskWeightValidation))
	return update, nil
}

// Publish builds and pushes the image if update is true.
func (p *Pipeline) Publish(ctx context.Context, update bool) error {
	if p.stages.Publisher == nil {
		return missingStage(TaskImagePublishing)
	}
	if !update {
		return p.stages.Publisher.Run(ctx, false)
	}

	p.logger.Info(Banner(true, TaskImagePublishing))
	if err := p.stages.Publisher.Run(ctx, true); err != nil {
		return fmt.Errorf("image publishing: %w", err)
	}
	p.logger.Info(Banner(false, TaskImagePublishing))
	return nil
}
