// Package storage downloads model weights from the object store backing the
// tracking server's artifact repository.
//
// Two backends are provided: MinIO (minio-go) and S3-compatible endpoints
// (aws-sdk-go-v2). Both write the object to a temporary file next to the
// destination and rename it into place, so the destination never holds a
// partial download.
package storage

import (
	"context"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"

	"github.com/cs-gavin-huang/MLOPS-human-pose-estimation/config"
	"github.com/cs-gavin-huang/MLOPS-human-pose-estimation/errors"
)

// Downloader fetches one object to a local path and returns the bytes written.
type Downloader interface {
	Download(ctx context.Context, bucket, key, dest string) (int64, error)
}

// Option configures a downloader.
type Option func(*options)

type options struct {
	fs       billy.Filesystem
	logger   *slog.Logger
	progress io.Writer
}

// WithFilesystem sets the filesystem the destination is written to.
func WithFilesystem(fsys billy.Filesystem) Option {
	return func(o *options) { o.fs = fsys }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithProgress draws a byte progress bar on w. Nil disables it.
func WithProgress(w io.Writer) Option {
	return func(o *options) { o.progress = w }
}

func newOptions(opts []Option) options {
	o := options{progress: os.Stderr}
	for _, opt := range opts {
		opt(&o)
	}
	if o.fs == nil {
		o.fs = osfs.New("/")
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return o
}

// New returns the downloader selected by cfg.ArtifactStore, connected to the
// object store at cfg.MinioHost:env.MinioPort with env's credentials.
func New(ctx context.Context, cfg *config.Config, env *config.Env, opts ...Option) (Downloader, error) {
	endpoint := env.MinioEndpoint(cfg.MinioHost)

	switch cfg.ArtifactStore {
	case config.ArtifactStoreMinio:
		return NewMinio(endpoint, env.MinioAccessKey, env.MinioSecretKey, cfg.MinioSecure, opts...)
	case config.ArtifactStoreS3:
		scheme := "http"
		if cfg.MinioSecure {
			scheme = "https"
		}
		return NewS3(ctx, scheme+"://"+endpoint, cfg.S3Region, env.MinioAccessKey, env.MinioSecretKey, opts...)
	default:
		return nil, errors.Newf(errors.CodeInvalidConfig, "unknown artifact store %q", cfg.ArtifactStore)
	}
}

// ObjectKey builds the object key of an artifact of a run from the run's
// artifact URI. Only the URI path is used, without its leading slash:
//
//	mlflow-artifacts:/1/abc/artifacts -> 1/abc/artifacts/<artifact>
//	s3://mlflow/1/abc/artifacts       -> 1/abc/artifacts/<artifact>
func ObjectKey(artifactURI, artifact string) (string, error) {
	u, err := url.Parse(artifactURI)
	if err != nil {
		return "", errors.WrapWithContext(err, errors.CodeInvalidInput, "malformed artifact URI",
			map[string]interface{}{"uri": artifactURI})
	}
	p := u.Path
	if p == "" {
		p = u.Opaque
	}
	p = strings.TrimLeft(p, "/")
	if p == "" {
		return "", errors.Newf(errors.CodeInvalidInput, "artifact URI %q has no path", artifactURI)
	}
	return path.Join(p, artifact), nil
}
