package pipeline

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"

	"github.com/cs-gavin-huang/MLOPS-human-pose-estimation/config"
	"github.com/cs-gavin-huang/MLOPS-human-pose-estimation/dvc"
	"github.com/cs-gavin-huang/MLOPS-human-pose-estimation/errors"
	"github.com/cs-gavin-huang/MLOPS-human-pose-estimation/executor"
	"github.com/cs-gavin-huang/MLOPS-human-pose-estimation/git"
	"github.com/cs-gavin-huang/MLOPS-human-pose-estimation/publish"
	"github.com/cs-gavin-huang/MLOPS-human-pose-estimation/storage"
	"github.com/cs-gavin-huang/MLOPS-human-pose-estimation/summary"
	"github.com/cs-gavin-huang/MLOPS-human-pose-estimation/tracking"
	"github.com/cs-gavin-huang/MLOPS-human-pose-estimation/training"
	"github.com/cs-gavin-huang/MLOPS-human-pose-estimation/validation"
	"github.com/cs-gavin-huang/MLOPS-human-pose-estimation/versioning"
)

// Factory builds the production components from configuration.
// Env may be nil when only data versioning or publishing is needed.
type Factory struct {
	Config     *config.Config
	Env        *config.Env
	Runner     executor.Runner
	Filesystem billy.Filesystem
	ProjectDir string
	Logger     *slog.Logger
	Progress   io.Writer
}

func (f *Factory) fs() billy.Filesystem {
	if f.Filesystem == nil {
		return osfs.New("/")
	}
	return f.Filesystem
}

func (f *Factory) logger() *slog.Logger {
	if f.Logger == nil {
		return slog.Default()
	}
	return f.Logger
}

func (f *Factory) runner() executor.Runner {
	if f.Runner == nil {
		return executor.NewLocalRunner(f.logger())
	}
	return f.Runner
}

func (f *Factory) requireEnv(what string) error {
	if f.Env == nil {
		return errors.Newf(errors.CodeInvalidConfig, "%s needs the object store environment", what)
	}
	return nil
}

// Versioner opens the git repository containing the project directory and
// returns the data versioner for it.
func (f *Factory) Versioner(ctx context.Context) (*versioning.Versioner, error) {
	cfg := f.Config
	user, token, sshKey := os.Getenv(config.EnvGitUsername), os.Getenv(config.EnvGitToken), os.Getenv(config.EnvGitSSHKey)
	if f.Env != nil {
		user, token, sshKey = f.Env.GitUsername, f.Env.GitToken.Reveal(), f.Env.GitSSHKey
	}

	repo, err := git.OpenDir(ctx, f.ProjectDir,
		git.WithAuth(git.EnvAuth(user, token, sshKey)),
		git.WithLogger(f.logger()),
	)
	if err != nil {
		return nil, err
	}

	client, err := dvc.New(f.runner(), cfg.DVCCommand, f.ProjectDir,
		dvc.WithLogger(f.logger()),
		dvc.WithFilesystem(f.fs()),
	)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInvalidConfig, "invalid dvc_command")
	}

	return versioning.New(repo, client, versioning.Settings{
		DVCRemoteName: cfg.DVCRemoteName,
		DVCRemoteURL:  cfg.DVCRemoteURL,
		GitRemote:     cfg.GitRemote,
		GitBranch:     cfg.GitBranch,
		Author:        git.Signature{Name: cfg.GitAuthorName, Email: cfg.GitAuthorEmail},
	}, versioning.WithLogger(f.logger())), nil
}

// Trainer returns the training stage for the configured backend.
func (f *Factory) Trainer() (*training.Stage, error) {
	var trainer training.Trainer
	switch f.Config.TrainBackend {
	case config.TrainBackendCommand:
		trainer = training.NewCommandTrainer(f.runner())
	case config.TrainBackendDagger:
		out := f.Progress
		if out == nil {
			out = os.Stderr
		}
		trainer = training.NewDaggerTrainer(
			training.WithDaggerLogOutput(out),
			training.WithDaggerLogger(f.logger()),
		)
	default:
		return nil, errors.Newf(errors.CodeInvalidConfig, "unknown train backend %q", f.Config.TrainBackend)
	}
	return training.NewStage(trainer, training.WithLogger(f.logger())), nil
}

// Validator returns the weight validator.
func (f *Factory) Validator(ctx context.Context) (*validation.Validator, error) {
	if err := f.requireEnv("weight validation"); err != nil {
		return nil, err
	}

	trackingURI := training.NewTracking(f.Config, f.Env).TrackingURI
	runs, err := tracking.New(trackingURI, tracking.WithLogger(f.logger()))
	if err != nil {
		return nil, err
	}

	opts := []storage.Option{storage.WithFilesystem(f.fs()), storage.WithLogger(f.logger())}
	if f.Progress != nil {
		opts = append(opts, storage.WithProgress(f.Progress))
	}
	dl, err := storage.New(ctx, f.Config, f.Env, opts...)
	if err != nil {
		return nil, err
	}

	store := summary.NewStore(f.fs(), f.Config.InfoSummaryFilePath)
	return validation.New(runs, store, dl, validation.SettingsFromConfig(f.Config, f.Env),
		validation.WithLogger(f.logger())), nil
}

// Publisher returns the image publisher.
func (f *Factory) Publisher() *publish.Publisher {
	opts := []publish.Option{
		publish.WithFilesystem(f.fs()),
		publish.WithLogger(f.logger()),
	}
	if f.Config.VerifyPush {
		opts = append(opts, publish.WithVerifier(publish.NewRegistryVerifier()))
	}
	return publish.New(f.runner(), f.Config.ComposeFile, f.Config.ImageName, opts...)
}

// Pipeline builds every stage and returns the full pipeline.
func (f *Factory) Pipeline(ctx context.Context) (*Pipeline, error) {
	if err := f.requireEnv("the pipeline"); err != nil {
		return nil, err
	}

	versioner, err := f.Versioner(ctx)
	if err != nil {
		return nil, err
	}
	trainer, err := f.Trainer()
	if err != nil {
		return nil, err
	}
	validator, err := f.Validator(ctx)
	if err != nil {
		return nil, err
	}

	return New(f.Config, f.Env, Stages{
		Versioner: versioner,
		Trainer:   trainer,
		Validator: validator,
		Publisher: f.Publisher(),
	}, WithLogger(f.logger())), nil
}

var (
	_ DataVersioner   = (*versioning.Versioner)(nil)
	_ Trainer         = (*training.Stage)(nil)
	_ WeightValidator = (*validation.Validator)(nil)
	_ ImagePublisher  = (*publish.Publisher)(nil)
)
