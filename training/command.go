package training

import (
	"context"

	"github.com/cs-gavin-huang/MLOPS-human-pose-estimation/errors"
	"github.com/cs-gavin-huang/MLOPS-human-pose-estimation/executor"
)

// CommandTrainer runs the training program on the host, streaming its output
// to the console.
type CommandTrainer struct {
	runner executor.Runner
}

// NewCommandTrainer creates a CommandTrainer.
func NewCommandTrainer(runner executor.Runner) *CommandTrainer {
	return &CommandTrainer{runner: runner}
}

// Train implements Trainer.
func (c *CommandTrainer) Train(ctx context.Context, req Request) error {
	if err := executor.ValidateValue("experiment name", req.ExperimentName); err != nil {
		return err
	}

	cmd, err := executor.NewWrappedExecutor(c.runner, req.Config.TrainCommand,
		executor.WithWorkingDir(req.Config.TrainWorkdir),
		executor.WithEnv(req.Tracking.Env(req.ExperimentName)),
		executor.ConsoleOnly(),
	)
	if err != nil {
		return errors.Wrap(err, errors.CodeInvalidConfig, "invalid train_command")
	}

	_, err = cmd.Execute(ctx, req.Args())
	return err
}

var _ Trainer = (*CommandTrainer)(nil)
