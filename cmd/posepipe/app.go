package main

import (
	"context"
	"flag"
	"io"
	"log/slog"
	"os"

	"github.com/go-git/go-billy/v5"
	"github.com/google/subcommands"

	"github.com/cs-gavin-huang/MLOPS-human-pose-estimation/config"
	"github.com/cs-gavin-huang/MLOPS-human-pose-estimation/errors"
	"github.com/cs-gavin-huang/MLOPS-human-pose-estimation/executor"
	"github.com/cs-gavin-huang/MLOPS-human-pose-estimation/pipeline"
)

// app carries process-wide dependencies into every command.
type app struct {
	logger   *slog.Logger
	fs       billy.Filesystem
	runner   executor.Runner
	stdout   io.Writer
	progress io.Writer
}

// common holds the flags every command accepts.
type common struct {
	configPath string
	dotenvPath string
}

func (c *common) setFlags(f *flag.FlagSet) {
	f.StringVar(&c.configPath, "config", "",
		"configuration file (default: $"+config.PathEnvVar+", "+config.DefaultPath+", then the XDG config dirs)")
	f.StringVar(&c.dotenvPath, "env", config.DefaultDotenvPath, "dotenv file loaded before reading the environment")
}

// load reads the configuration and, if needEnv, the environment.
func (c *common) load(a *app, needEnv bool) (*config.Config, *config.Env, error) {
	path, err := config.Locate(a.fs, c.configPath)
	if err != nil {
		return nil, nil, err
	}
	cfg, err := config.Load(a.fs, path)
	if err != nil {
		return nil, nil, err
	}
	a.logger.Debug("configuration loaded", "path", path)

	if !needEnv {
		return cfg, nil, nil
	}
	env, err := config.LoadEnv(c.dotenvPath)
	if err != nil {
		return nil, nil, err
	}
	a.logger.Debug("environment loaded", "env", env)
	return cfg, env, nil
}

func (a *app) factory(cfg *config.Config, env *config.Env) (*pipeline.Factory, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "failed to get working directory")
	}
	return &pipeline.Factory{
		Config:     cfg,
		Env:        env,
		Runner:     a.runner,
		Filesystem: a.fs,
		ProjectDir: wd,
		Logger:     a.logger,
		Progress:   a.progress,
	}, nil
}

// execute extracts the app from args, runs fn and maps its error to an exit status.
func execute(ctx context.Context, name string, args []interface{}, fn func(context.Context, *app) error) subcommands.ExitStatus {
	if len(args) == 0 {
		return subcommands.ExitFailure
	}
	a, ok := args[0].(*app)
	if !ok {
		return subcommands.ExitFailure
	}

	if err := fn(ctx, a); err != nil {
		a.logger.Error(name+" failed", "error", err, "code", errors.CodeOf(err))
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
