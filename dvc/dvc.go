// Package dvc is a typed client for the DVC command line.
//
// Every operation builds an argv and runs it through an executor.Runner; no
// shell is involved and caller-supplied values are validated first.
package dvc

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"

	"github.com/cs-gavin-huang/MLOPS-human-pose-estimation/executor"
)

// UpToDate is the exact `dvc status` output for an unchanged target.
const UpToDate = "Data and pipelines are up to date.\n"

// DirName is the DVC project metadata directory.
const DirName = ".dvc"

// Client runs dvc in a project directory.
type Client struct {
	exec   *executor.WrappedExecutor
	dir    string
	fs     billy.Filesystem
	logger *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithFilesystem sets the filesystem used to inspect the project directory.
// Defaults to the OS filesystem.
func WithFilesystem(fsys billy.Filesystem) Option {
	return func(c *Client) { c.fs = fsys }
}

// New creates a client running argv (e.g. ["dvc"] or ["poetry", "run", "dvc"])
// in projectDir.
func New(runner executor.Runner, argv []string, projectDir string, opts ...Option) (*Client, error) {
	wrapped, err := executor.NewWrappedExecutor(runner, argv,
		executor.WithWorkingDir(projectDir),
		executor.WithCapture(true, true, false),
	)
	if err != nil {
		return nil, err
	}

	c := &Client{exec: wrapped, dir: projectDir}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.fs == nil {
		c.fs = osfs.New("/")
	}
	return c, nil
}

// Dir returns the project directory.
func (c *Client) Dir() string {
	return c.dir
}

// IsInitialized reports whether the project directory holds a .dvc directory.
func (c *Client) IsInitialized() bool {
	_, err := c.fs.Stat(filepath.Join(c.dir, DirName))
	return err == nil
}

// Init runs `dvc init --subdir`.
func (c *Client) Init(ctx context.Context) error {
	_, err := c.run(ctx, "init", "--subdir")
	return err
}

// ConfigSet runs `dvc config <key> <value>`.
func (c *Client) ConfigSet(ctx context.Context, key, value string) error {
	if err := validate("config key", key, "config value", value); err != nil {
		return err
	}
	_, err := c.run(ctx, "config", key, value)
	return err
}

// RemoteList runs `dvc remote list` and returns its trimmed output.
func (c *Client) RemoteList(ctx context.Context) (string, error) {
	out, err := c.run(ctx, "remote", "list")
	return strings.TrimSpace(out), err
}

// RemoteAddDefault runs `dvc remote add -d <name> <url>`.
func (c *Client) RemoteAddDefault(ctx context.Context, name, url string) error {
	if err := validate("remote name", name, "remote url", url); err != nil {
		return err
	}
	_, err := c.run(ctx, "remote", "add", "-d", name, url)
	return err
}

// Status runs `dvc status <target>` and returns its raw output.
// A non-zero exit, as for a target that was never added, is returned as an error.
func (c *Client) Status(ctx context.Context, target string) (string, error) {
	if err := validate("status target", target); err != nil {
		return "", err
	}
	return c.run(ctx, "status", target)
}

// Add runs `dvc add <target>`.
func (c *Client) Add(ctx context.Context, target string) error {
	if err := validate("add target", target); err != nil {
		return err
	}
	_, err := c.run(ctx, "add", target)
	return err
}

// Push runs `dvc push <target> --remote <remote>`.
func (c *Client) Push(ctx context.Context, target, remote string) error {
	if err := validate("push target", target, "remote name", remote); err != nil {
		return err
	}
	_, err := c.run(ctx, "push", target, "--remote", remote)
	return err
}

func (c *Client) run(ctx context.Context, args ...string) (string, error) {
	c.logger.Debug("running dvc", "args", args, "dir", c.dir)
	res, err := c.exec.Execute(ctx, args)
	if err != nil {
		return "", err
	}
	return res.Stdout, nil
}

// validate takes field/value pairs.
func validate(pairs ...string) error {
	for i := 0; i+1 < len(pairs); i += 2 {
		if err := executor.ValidateValue(pairs[i], pairs[i+1]); err != nil {
			return err
		}
	}
	return nil
}
