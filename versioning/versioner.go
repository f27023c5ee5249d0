package versioning

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/cs-gavin-huang/MLOPS-human-pose-estimation/dvc"
	perrors "github.com/cs-gavin-huang/MLOPS-human-pose-estimation/errors"
	"github.com/cs-gavin-huang/MLOPS-human-pose-estimation/git"
)

// Repository is the subset of git operations versioning needs.
// *git.Repo implements it.
type Repository interface {
	Rel(p string) (string, error)
	Add(ctx context.Context, paths ...string) error
	Commit(ctx context.Context, msg string, sig git.Signature, opts git.CommitOpts) (string, error)
	Tags(ctx context.Context, filters ...git.TagFilter) ([]string, error)
	CreateTag(ctx context.Context, name, target, message string, tagger git.Signature) error
	PushBranch(ctx context.Context, remote, branch string, followTags bool) error
	PushTags(ctx context.Context, remote string, force bool) error
}

// DVC is the subset of dvc operations versioning needs.
// *dvc.Client implements it.
type DVC interface {
	Dir() string
	IsInitialized() bool
	Init(ctx context.Context) error
	ConfigSet(ctx context.Context, key, value string) error
	RemoteList(ctx context.Context) (string, error)
	RemoteAddDefault(ctx context.Context, name, url string) error
	Status(ctx context.Context, target string) (string, error)
	Add(ctx context.Context, target string) error
	Push(ctx context.Context, target, remote string) error
}

// Settings names the remotes and identity used when versioning.
type Settings struct {
	DVCRemoteName string
	DVCRemoteURL  string
	GitRemote     string
	GitBranch     string
	Author        git.Signature
}

// Result describes what Run did.
type Result struct {
	Initialized     bool
	RemoteAdded     bool
	Versioned       bool
	PreviousVersion int
	Version         int
}

// Versioner drives the versioning state machine.
type Versioner struct {
	repo     Repository
	dvc      DVC
	settings Settings
	logger   *slog.Logger
}

// Option configures a Versioner.
type Option func(*Versioner)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(v *Versioner) { v.logger = l }
}

// New creates a Versioner.
func New(repo Repository, client DVC, settings Settings, opts ...Option) *Versioner {
	v := &Versioner{repo: repo, dvc: client, settings: settings}
	for _, opt := range opts {
		opt(v)
	}
	if v.logger == nil {
		v.logger = slog.Default()
	}
	return v
}

// Run makes sure DVC and its default remote are set up, then versions
// artifact if it changed since the last version.
func (v *Versioner) Run(ctx context.Context, artifact string) (*Result, error) {
	var res Result
	var err error

	if res.Initialized, err = v.EnsureInitialized(ctx); err != nil {
		return nil, err
	}
	if res.RemoteAdded, err = v.EnsureRemote(ctx); err != nil {
		return nil, err
	}

	changed, err := v.needsVersion(ctx, artifact)
	if err != nil {
		return nil, err
	}
	if !changed {
		return &res, nil
	}

	res.PreviousVersion, res.Version, err = v.CommitVersion(ctx, artifact)
	if err != nil {
		return nil, err
	}
	res.Versioned = true
	return &res, nil
}

// EnsureInitialized runs `dvc init --subdir` and commits the .dvc directory
// unless the project already has one. Reports whether it initialized.
func (v *Versioner) EnsureInitialized(ctx context.Context) (bool, error) {
	if v.dvc.IsInitialized() {
		v.logger.Info("DVC is already initialized")
		return false, nil
	}

	v.logger.Info("Initializing DVC...")
	if err := v.dvc.Init(ctx); err != nil {
		return false, err
	}
	if err := v.dvc.ConfigSet(ctx, "core.analytics", "false"); err != nil {
		return false, err
	}
	if err := v.dvc.ConfigSet(ctx, "core.autostage", "true"); err != nil {
		return false, err
	}
	if err := v.stageAndCommit(ctx, "feat: Initialize DVC", filepath.Join(v.dvc.Dir(), dvc.DirName)); err != nil {
		return false, err
	}
	return true, nil
}

// EnsureRemote adds the configured remote as the DVC default when no remote
// exists and commits .dvc/config. Reports whether it added one.
func (v *Versioner) EnsureRemote(ctx context.Context) (bool, error) {
	remotes, err := v.dvc.RemoteList(ctx)
	if err != nil {
		return false, err
	}
	if remotes != "" {
		v.logger.Info("DVC storage was already initialized.")
		return false, nil
	}

	v.logger.Info("Initialize DVC storage...", "remote", v.settings.DVCRemoteName, "url", v.settings.DVCRemoteURL)
	if err := v.dvc.RemoteAddDefault(ctx, v.settings.DVCRemoteName, v.settings.DVCRemoteURL); err != nil {
		return false, err
	}
	msg := fmt.Sprintf("Configure remote storage at: %s", v.settings.DVCRemoteURL)
	if err := v.stageAndCommit(ctx, msg, filepath.Join(v.dvc.Dir(), dvc.DirName, "config")); err != nil {
		return false, err
	}
	return true, nil
}

// needsVersion asks dvc whether artifact changed. A failing status query means
// the artifact was never versioned.
func (v *Versioner) needsVersion(ctx context.Context, artifact string) (bool, error) {
	status, err := v.dvc.Status(ctx, artifact+".dvc")
	if err != nil {
		if perrors.HasCode(err, perrors.CodeInvalidInput) {
			return false, err
		}
		v.logger.Info("Versioning data the first time.")
		return true, nil
	}
	if status == dvc.UpToDate {
		v.logger.Info(status)
		return false, nil
	}
	return true, nil
}

// CommitVersion adds artifact to DVC, commits and tags the next data version,
// then pushes data, branch and tags. Returns the previous and new version.
func (v *Versioner) CommitVersion(ctx context.Context, artifact string) (int, int, error) {
	tags, err := v.repo.Tags(ctx, git.TagRegexpFilter(versionTag))
	if err != nil {
		return 0, 0, err
	}
	current, next := NextVersion(tags)
	tag := Tag(next)

	v.logger.Info("Add data to dvc", "artifact", artifact)
	if err := v.dvc.Add(ctx, artifact); err != nil {
		return 0, 0, err
	}

	pointer := artifact + ".dvc"
	gitignore := filepath.Join(filepath.Dir(artifact), ".gitignore")
	msg := fmt.Sprintf("Updated data version from %s to %s", Tag(current), tag)
	if err := v.stageAndCommit(ctx, msg, pointer, gitignore); err != nil {
		return 0, 0, err
	}

	if err := v.repo.CreateTag(ctx, tag, "HEAD", fmt.Sprintf("Versioning data: %s", tag), v.settings.Author); err != nil {
		return 0, 0, err
	}

	v.logger.Info(fmt.Sprintf("Push data version %s to %s", tag, v.settings.DVCRemoteName))
	if err := v.dvc.Push(ctx, pointer, v.settings.DVCRemoteName); err != nil {
		return 0, 0, err
	}
	if err := ignoreUpToDate(v.repo.PushBranch(ctx, v.settings.GitRemote, v.settings.GitBranch, true)); err != nil {
		return 0, 0, err
	}
	if err := ignoreUpToDate(v.repo.PushTags(ctx, v.settings.GitRemote, true)); err != nil {
		return 0, 0, err
	}
	return current, next, nil
}

func (v *Versioner) stageAndCommit(ctx context.Context, msg string, paths ...string) error {
	rel := make([]string, 0, len(paths))
	for _, p := range paths {
		r, err := v.repo.Rel(p)
		if err != nil {
			return err
		}
		rel = append(rel, r)
	}
	if err := v.repo.Add(ctx, rel...); err != nil {
		return err
	}
	if _, err := v.repo.Commit(ctx, msg, v.settings.Author, git.CommitOpts{}); err != nil {
		return err
	}
	return nil
}

func ignoreUpToDate(err error) error {
	if errors.Is(err, git.ErrAlreadyUpToDate) {
		return nil
	}
	return err
}

var (
	_ Repository = (*git.Repo)(nil)
	_ DVC        = (*dvc.Client)(nil)
)
