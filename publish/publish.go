// Package publish builds the serving image with docker compose and pushes it
// to its registry.
package publish

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/google/go-containerregistry/pkg/name"

	"github.com/cs-gavin-huang/MLOPS-human-pose-estimation/errors"
	"github.com/cs-gavin-huang/MLOPS-human-pose-estimation/executor"
)

// Publisher builds and pushes one image.
type Publisher struct {
	runner      executor.Runner
	docker      []string
	composeFile string
	image       string
	verifier    Verifier
	fs          billy.Filesystem
	logger      *slog.Logger
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Publisher) { p.logger = l }
}

// WithDockerCommand replaces the docker program, e.g. []string{"podman"}.
func WithDockerCommand(argv []string) Option {
	return func(p *Publisher) { p.docker = argv }
}

// WithVerifier checks the registry after each push.
func WithVerifier(v Verifier) Option {
	return func(p *Publisher) { p.verifier = v }
}

// WithFilesystem sets the filesystem the compose file is checked on.
func WithFilesystem(fsys billy.Filesystem) Option {
	return func(p *Publisher) { p.fs = fsys }
}

// New creates a Publisher for image, built from composeFile.
func New(runner executor.Runner, composeFile, image string, opts ...Option) *Publisher {
	p := &Publisher{
		runner:      runner,
		docker:      []string{"docker"},
		composeFile: composeFile,
		image:       image,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.fs == nil {
		p.fs = osfs.New("/")
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// Run builds and pushes the image when update is true. Nothing happens
// otherwise. A failed push leaves the locally built image in place.
func (p *Publisher) Run(ctx context.Context, update bool) error {
	if !update {
		p.logger.Info("No better weight to push")
		return nil
	}

	ref, err := p.validate()
	if err != nil {
		return err
	}

	if err := p.Build(ctx); err != nil {
		return err
	}
	if err := p.Push(ctx, ref); err != nil {
		return err
	}

	if p.verifier != nil {
		digest, err := p.verifier.Digest(ctx, ref)
		if err != nil {
			return errors.WrapWithContext(err, errors.CodePublishFailed, "pushed image not found in registry",
				map[string]interface{}{"image": ref.Name()})
		}
		p.logger.Info("verified pushed image", "image", ref.Name(), "digest", digest)
	}
	return nil
}

// Build runs `docker compose -f <compose file> build`.
func (p *Publisher) Build(ctx context.Context) error {
	p.logger.Info(fmt.Sprintf("Start building image '%s'", p.image))

	cmd, err := executor.NewWrappedExecutor(p.runner, p.docker, executor.ConsoleOnly())
	if err != nil {
		return errors.Wrap(err, errors.CodeInvalidConfig, "invalid docker command")
	}
	if _, err := cmd.Execute(ctx, []string{"compose", "-f", p.composeFile, "build"}); err != nil {
		return errors.WrapWithContext(err, errors.CodeBuildFailed, "image build failed",
			map[string]interface{}{"compose_file": p.composeFile})
	}

	p.logger.Info(fmt.Sprintf("Finish building image '%s'", p.image))
	return nil
}

// Push runs `docker push <image>`.
func (p *Publisher) Push(ctx context.Context, ref name.Reference) error {
	p.logger.Info("Start pushing docker image to Docker Hub.")

	cmd, err := executor.NewWrappedExecutor(p.runner, p.docker, executor.ConsoleOnly())
	if err != nil {
		return errors.Wrap(err, errors.CodeInvalidConfig, "invalid docker command")
	}
	if _, err := cmd.Execute(ctx, []string{"push", p.image}); err != nil {
		return errors.WrapWithContext(err, errors.CodePublishFailed, "image push failed",
			map[string]interface{}{"image": ref.Name()})
	}

	p.logger.Info("Finish pushing docker image to Docker Hub.")
	return nil
}

func (p *Publisher) validate() (name.Reference, error) {
	if err := executor.ValidateValue("image_name", p.image); err != nil {
		return nil, errors.Wrap(err, errors.CodeInvalidConfig, "invalid image name")
	}
	ref, err := name.ParseReference(p.image)
	if err != nil {
		return nil, errors.WrapWithContext(err, errors.CodeInvalidConfig, "invalid image name",
			map[string]interface{}{"image": p.image})
	}

	if err := executor.ValidateValue("compose_file", p.composeFile); err != nil {
		return nil, errors.Wrap(err, errors.CodeInvalidConfig, "invalid compose file")
	}
	if _, err := p.fs.Stat(p.composeFile); err != nil {
		return nil, errors.WrapWithContext(err, errors.CodeInvalidConfig, "compose file not found",
			map[string]interface{}{"path": p.composeFile})
	}
	return ref, nil
}
