package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/google/subcommands"

	"github.com/cs-gavin-huang/MLOPS-human-pose-estimation/errors"
	"github.com/cs-gavin-huang/MLOPS-human-pose-estimation/labels"
	"github.com/cs-gavin-huang/MLOPS-human-pose-estimation/pipeline"
	"github.com/cs-gavin-huang/MLOPS-human-pose-estimation/summary"
)

type runCmd struct {
	common
}

func (*runCmd) Name() string     { return "run" }
func (*runCmd) Synopsis() string { return "version data, train, validate the weight and publish the image" }
func (*runCmd) Usage() string {
	return `run [-config path] [-env path]:
  Run every stage in order. Stops at the first failure.
`
}
func (c *runCmd) SetFlags(f *flag.FlagSet) { c.setFlags(f) }

func (c *runCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	return execute(ctx, c.Name(), args, func(ctx context.Context, a *app) error {
		cfg, env, err := c.load(a, true)
		if err != nil {
			return err
		}
		fac, err := a.factory(cfg, env)
		if err != nil {
			return err
		}
		p, err := fac.Pipeline(ctx)
		if err != nil {
			return err
		}
		return p.Run(ctx)
	})
}

type subsetCmd struct {
	common
	numSamples int
}

func (*subsetCmd) Name() string     { return "subset" }
func (*subsetCmd) Synopsis() string { return "write the subset label file from the validation records" }
func (*subsetCmd) Usage() string {
	return `subset [-config path] [-num_samples N]:
  Write the first N validation records of the label file to the subset
  label file. N = -1, the default, keeps every record.
`
}

func (c *subsetCmd) SetFlags(f *flag.FlagSet) {
	c.setFlags(f)
	f.IntVar(&c.numSamples, "num_samples", -1, "number of validation records to keep; -1 keeps all")
}

func (c *subsetCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 0 || c.numSamples < -1 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	return execute(ctx, c.Name(), args, func(_ context.Context, a *app) error {
		cfg, _, err := c.load(a, false)
		if err != nil {
			return err
		}

		paths, err := labels.Retrieve(a.fs, cfg.DataRootPath, cfg.TrainMaskDataPath, cfg.ValMaskDataPath, cfg.LabelFile)
		if err != nil {
			return err
		}
		a.logger.Info("label file partitioned", "train", paths.Train.Len(), "validation", paths.Validation.Len())

		subset := labels.Head(paths.Validation.Meta, c.numSamples)
		out, err := labels.WriteSubset(a.fs, subset, cfg.LabelSubsetFilePath(), labels.WithProgress(a.progress))
		if err != nil {
			return err
		}
		fmt.Fprintln(a.stdout, out)
		return nil
	})
}

type versionDataCmd struct {
	common
}

func (*versionDataCmd) Name() string     { return "version-data" }
func (*versionDataCmd) Synopsis() string { return "put the subset label file under data version control" }
func (*versionDataCmd) Usage() string {
	return `version-data [-config path] [-env path]:
  Initialise DVC and its remote if needed, then commit, tag and push a new
  data version when the subset label file changed.
`
}
func (c *versionDataCmd) SetFlags(f *flag.FlagSet) { c.setFlags(f) }

func (c *versionDataCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	return execute(ctx, c.Name(), args, func(ctx context.Context, a *app) error {
		cfg, _, err := c.load(a, false)
		if err != nil {
			return err
		}
		fac, err := a.factory(cfg, nil)
		if err != nil {
			return err
		}
		v, err := fac.Versioner(ctx)
		if err != nil {
			return err
		}
		res, err := pipeline.New(cfg, nil, pipeline.Stages{Versioner: v}, pipeline.WithLogger(a.logger)).VersionData(ctx)
		if err != nil {
			return err
		}
		if res.Versioned {
			fmt.Fprintf(a.stdout, "v%d\n", res.Version)
		}
		return nil
	})
}

type trainCmd struct {
	common
}

func (*trainCmd) Name() string     { return "train" }
func (*trainCmd) Synopsis() string { return "run one training run tracked under the configured experiment" }
func (*trainCmd) Usage() string {
	return `train [-config path] [-env path]:
  Start a training run named after the current time.
`
}
func (c *trainCmd) SetFlags(f *flag.FlagSet) { c.setFlags(f) }

func (c *trainCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	return execute(ctx, c.Name(), args, func(ctx context.Context, a *app) error {
		cfg, env, err := c.load(a, true)
		if err != nil {
			return err
		}
		fac, err := a.factory(cfg, env)
		if err != nil {
			return err
		}
		t, err := fac.Trainer()
		if err != nil {
			return err
		}
		run, err := pipeline.New(cfg, env, pipeline.Stages{Trainer: t}, pipeline.WithLogger(a.logger)).Train(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(a.stdout, run)
		return nil
	})
}

type validateCmd struct {
	common
}

func (*validateCmd) Name() string     { return "validate" }
func (*validateCmd) Synopsis() string { return "replace the deployed weight if the best finished run beats it" }
func (*validateCmd) Usage() string {
	return `validate [-config path] [-env path]:
  Compare the best finished run with the summary file and download its
  weight when its validation loss is lower. Prints true or false.
`
}
func (c *validateCmd) SetFlags(f *flag.FlagSet) { c.setFlags(f) }

func (c *validateCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	return execute(ctx, c.Name(), args, func(ctx context.Context, a *app) error {
		cfg, env, err := c.load(a, true)
		if err != nil {
			return err
		}
		fac, err := a.factory(cfg, env)
		if err != nil {
			return err
		}
		v, err := fac.Validator(ctx)
		if err != nil {
			return err
		}
		update, err := pipeline.New(cfg, env, pipeline.Stages{Validator: v}, pipeline.WithLogger(a.logger)).Validate(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(a.stdout, update)
		return nil
	})
}

type publishCmd struct {
	common
}

func (*publishCmd) Name() string     { return "publish" }
func (*publishCmd) Synopsis() string { return "build and push the serving image" }
func (*publishCmd) Usage() string {
	return `publish [-config path]:
  Build the image with docker compose and push it, regardless of validation.
`
}
func (c *publishCmd) SetFlags(f *flag.FlagSet) { c.setFlags(f) }

func (c *publishCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	return execute(ctx, c.Name(), args, func(ctx context.Context, a *app) error {
		cfg, _, err := c.load(a, false)
		if err != nil {
			return err
		}
		fac, err := a.factory(cfg, nil)
		if err != nil {
			return err
		}
		return pipeline.New(cfg, nil, pipeline.Stages{Publisher: fac.Publisher()}, pipeline.WithLogger(a.logger)).
			Publish(ctx, true)
	})
}

type initSummaryCmd struct {
	common
	force bool
}

func (*initSummaryCmd) Name() string     { return "init-summary" }
func (*initSummaryCmd) Synopsis() string { return "create the summary file meaning \"no weight accepted yet\"" }
func (*initSummaryCmd) Usage() string {
	return `init-summary [-config path] [-force]:
  Write a summary with an infinite validation loss, so the next validation
  accepts any finished run. Refuses to overwrite an existing file unless -force.
`
}

func (c *initSummaryCmd) SetFlags(f *flag.FlagSet) {
	c.setFlags(f)
	f.BoolVar(&c.force, "force", false, "overwrite an existing summary file")
}

func (c *initSummaryCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	return execute(ctx, c.Name(), args, func(_ context.Context, a *app) error {
		cfg, _, err := c.load(a, false)
		if err != nil {
			return err
		}

		store := summary.NewStore(a.fs, cfg.InfoSummaryFilePath)
		exists, err := store.Exists()
		if err != nil {
			return err
		}
		if exists && !c.force {
			return errors.Newf(errors.CodeAlreadyExists, "summary file %s already exists; use -force to overwrite", store.Path())
		}

		if err := store.Save(summary.Initial(time.Now())); err != nil {
			return err
		}
		a.logger.Info("summary initialised", "path", store.Path())
		return nil
	})
}
