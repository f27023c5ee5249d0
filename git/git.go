package git

import (
	"context"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/cache"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/storage/filesystem"
)

const (
	// DefaultStorerCacheSize is the default size for the LRU object cache.
	DefaultStorerCacheSize = 1000

	// DefaultRemoteName is the default remote name used for operations.
	DefaultRemoteName = "origin"
)

// AuthProvider resolves authentication methods for git operations.
type AuthProvider interface {
	// Method returns the transport.AuthMethod for the given remote URL.
	// A nil method means no authentication is needed or available.
	Method(remoteURL string) (transport.AuthMethod, error)
}

// Options configures how a repository is opened.
type Options struct {
	// Root is the OS path the worktree filesystem is rooted at. It is used by
	// Rel to translate absolute paths. Defaults to "/".
	Root string

	// StorerCacheSize sets the LRU objects cache entries.
	StorerCacheSize int

	// Auth resolves credentials for push. If nil, pushes are unauthenticated.
	Auth AuthProvider

	Logger *slog.Logger
}

// Option configures Options.
type Option func(*Options)

// WithAuth sets the authentication provider.
func WithAuth(p AuthProvider) Option {
	return func(o *Options) { o.Auth = p }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Options) { o.Logger = l }
}

// WithRoot sets the OS path the worktree filesystem corresponds to.
func WithRoot(root string) Option {
	return func(o *Options) { o.Root = root }
}

func newOptions(opts []Option) Options {
	o := Options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.Root == "" {
		o.Root = "/"
	}
	if o.StorerCacheSize <= 0 {
		o.StorerCacheSize = DefaultStorerCacheSize
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Signature identifies the author of commits and tags.
type Signature struct {
	Name  string
	Email string

	// When defaults to time.Now() if zero.
	When time.Time
}

// CommitOpts configures commit creation.
type CommitOpts struct {
	// AllowEmpty allows creating commits with no changes.
	AllowEmpty bool
}

// Repo is an opened non-bare repository.
type Repo struct {
	repo     *git.Repository
	worktree *git.Worktree
	fs       billy.Filesystem
	options  Options
}

// newStorage creates git storage backed by fsys with an LRU object cache.
func newStorage(fsys billy.Filesystem, cacheSize int) *filesystem.Storage {
	return filesystem.NewStorage(fsys, cache.NewObjectLRU(cache.FileSize(cacheSize)))
}

func storageFor(fsys billy.Filesystem, cacheSize int) (*filesystem.Storage, error) {
	dotGit, err := fsys.Chroot(git.GitDirName)
	if err != nil {
		return nil, WrapError(err, "failed to access .git directory")
	}
	return newStorage(dotGit, cacheSize), nil
}

// Init creates a new repository whose worktree is fsys.
func Init(ctx context.Context, fsys billy.Filesystem, opts ...Option) (*Repo, error) {
	o := newOptions(opts)
	storage, err := storageFor(fsys, o.StorerCacheSize)
	if err != nil {
		return nil, err
	}
	repo, err := git.Init(storage, fsys)
	if err != nil {
		return nil, WrapError(err, "failed to initialize repository")
	}
	return newRepo(repo, fsys, o)
}

// Open opens the existing repository whose worktree is fsys.
func Open(ctx context.Context, fsys billy.Filesystem, opts ...Option) (*Repo, error) {
	o := newOptions(opts)
	if _, err := fsys.Stat(git.GitDirName); err != nil {
		return nil, WrapError(ErrNotRepository, "failed to open repository")
	}
	storage, err := storageFor(fsys, o.StorerCacheSize)
	if err != nil {
		return nil, err
	}
	repo, err := git.Open(storage, fsys)
	if err != nil {
		return nil, WrapError(err, "failed to open repository")
	}
	return newRepo(repo, fsys, o)
}

// OpenDir opens the repository containing dir on the OS filesystem, searching
// parent directories for .git the same way the git CLI does.
func OpenDir(ctx context.Context, dir string, opts ...Option) (*Repo, error) {
	root, err := FindRoot(dir)
	if err != nil {
		return nil, err
	}
	return Open(ctx, osfs.New(root), append(opts, WithRoot(root))...)
}

// FindRoot returns the closest ancestor of dir (inclusive) containing .git.
func FindRoot(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", WrapErrorf(err, "failed to resolve %q", dir)
	}
	for cur := abs; ; {
		if _, err := os.Stat(filepath.Join(cur, git.GitDirName)); err == nil {
			return cur, nil
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return "", WrapErrorf(ErrNotRepository, "no .git found above %q", abs)
		}
		cur = parent
	}
}

func newRepo(repo *git.Repository, fsys billy.Filesystem, o Options) (*Repo, error) {
	wt, err := repo.Worktree()
	if err != nil {
		return nil, WrapError(err, "failed to get worktree")
	}
	return &Repo{repo: repo, worktree: wt, fs: fsys, options: o}, nil
}

// Root returns the OS path of the worktree root.
func (r *Repo) Root() string {
	return r.options.Root
}

// Filesystem returns the worktree filesystem.
func (r *Repo) Filesystem() billy.Filesystem {
	return r.fs
}

// Rel converts p to a slash separated path relative to the worktree root.
// Absolute paths are taken relative to Root; relative paths are cleaned and
// returned as is.
func (r *Repo) Rel(p string) (string, error) {
	if !filepath.IsAbs(p) {
		rel := path.Clean(filepath.ToSlash(p))
		if rel == ".." || strings.HasPrefix(rel, "../") {
			return "", WrapErrorf(ErrOutsideWorktree, "path %q", p)
		}
		return rel, nil
	}
	rel, err := filepath.Rel(r.options.Root, p)
	if err != nil {
		return "", WrapErrorf(ErrOutsideWorktree, "path %q", p)
	}
	rel = filepath.ToSlash(rel)
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return "", WrapErrorf(ErrOutsideWorktree, "path %q", p)
	}
	return rel, nil
}
