// Package executor runs external programs (dvc, docker, training scripts) as typed
// argv invocations. Nothing is ever passed through a shell: every argument reaches the
// program verbatim, and user-supplied values are validated before execution.
package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sort"
	"strings"

	perrors "github.com/cs-gavin-huang/MLOPS-human-pose-estimation/errors"
)

// Result holds the output and error from a command execution
type Result struct {
	Stdout   string
	Stderr   string
	Combined string
	ExitCode int
	Err      error
}

// Runner executes a single program invocation.
// It is the seam used by higher-level clients so tests can record invocations
// instead of spawning processes.
type Runner interface {
	Run(ctx context.Context, program string, args []string, opts ...Option) (*Result, error)
}

// Options configures command execution behavior
type Options struct {
	// Output handling
	CaptureStdout     bool
	CaptureStderr     bool
	CaptureCombined   bool
	RedirectToConsole bool

	// Working directory
	WorkingDir string

	// Environment variables (appended to current env)
	Env map[string]string

	// Custom stdout/stderr writers (for advanced use cases)
	StdoutWriter io.Writer
	StderrWriter io.Writer
}

// Option is a function that modifies Options
type Option func(*Options)

// DefaultOptions returns default execution options
func DefaultOptions() *Options {
	return &Options{
		CaptureStdout: true,
		CaptureStderr: true,
		Env:           make(map[string]string),
	}
}

// LocalRunner runs programs on the host with os/exec.
type LocalRunner struct {
	logger *slog.Logger
}

// NewLocalRunner creates a LocalRunner. A nil logger falls back to slog.Default().
func NewLocalRunner(logger *slog.Logger) *LocalRunner {
	if logger == nil {
		logger = slog.Default()
	}
	return &LocalRunner{logger: logger}
}

// Run implements Runner.
func (l *LocalRunner) Run(ctx context.Context, program string, args []string, opts ...Option) (*Result, error) {
	options := DefaultOptions()
	for _, opt := range opts {
		opt(options)
	}

	l.logger.Debug("executing command", "program", program, "args", args, "dir", options.WorkingDir)

	cmd := exec.CommandContext(ctx, program, args...)
	cmd.Dir = options.WorkingDir
	cmd.Env = environ(options.Env)
	out := attach(cmd, options)

	err := cmd.Run()
	result := out.result(err)
	if err != nil {
		return result, perrors.WrapWithContext(err, perrors.CodeExecutionFailed, "command execution failed",
			map[string]interface{}{
				"program":   program,
				"args":      strings.Join(args, " "),
				"exit_code": result.ExitCode,
				"stderr":    tail(result.Stderr+result.Combined, stderrTail),
			})
	}
	return result, nil
}

// stderrTail bounds how much captured error output is attached to an error.
const stderrTail = 512

// environ returns nil (inherit) when extra is empty, otherwise the process
// environment followed by extra in key order.
func environ(extra map[string]string) []string {
	if len(extra) == 0 {
		return nil
	}
	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	env := os.Environ()
	for _, k := range keys {
		env = append(env, k+"="+extra[k])
	}
	return env
}

// outputs are the capture buffers of one invocation.
type outputs struct {
	stdout, stderr, combined bytes.Buffer
}

func attach(cmd *exec.Cmd, o *Options) *outputs {
	out := &outputs{}

	stream := func(captured *bytes.Buffer, capture bool, console, extra io.Writer) io.Writer {
		var ws []io.Writer
		if o.CaptureCombined {
			ws = append(ws, &out.combined)
		} else if capture {
			ws = append(ws, captured)
		}
		if o.RedirectToConsole {
			ws = append(ws, console)
		}
		if extra != nil {
			ws = append(ws, extra)
		}
		if len(ws) == 0 {
			return nil
		}
		return io.MultiWriter(ws...)
	}

	cmd.Stdout = stream(&out.stdout, o.CaptureStdout, os.Stdout, o.StdoutWriter)
	cmd.Stderr = stream(&out.stderr, o.CaptureStderr, os.Stderr, o.StderrWriter)
	return out
}

func (out *outputs) result(err error) *Result {
	r := &Result{
		Stdout:   out.stdout.String(),
		Stderr:   out.stderr.String(),
		Combined: out.combined.String(),
		Err:      err,
	}
	var exitErr *exec.ExitError
	switch {
	case err == nil:
	case errors.As(err, &exitErr):
		r.ExitCode = exitErr.ExitCode()
	default:
		r.ExitCode = -1
	}
	return r
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}

// WrappedExecutor provides a clean interface for a specific program.
// The program may carry a fixed argument prefix, e.g. ["poetry", "run", "dvc"].
type WrappedExecutor struct {
	program string
	prefix  []string
	runner  Runner
	options []Option
}

// NewWrappedExecutor creates an executor for the program named by argv[0],
// with argv[1:] prepended to every invocation.
func NewWrappedExecutor(runner Runner, argv []string, opts ...Option) (*WrappedExecutor, error) {
	if runner == nil {
		return nil, perrors.New(perrors.CodeInvalidInput, "executor runner is required")
	}
	if len(argv) == 0 || strings.TrimSpace(argv[0]) == "" {
		return nil, perrors.New(perrors.CodeInvalidConfig, "program name cannot be empty")
	}
	return &WrappedExecutor{
		program: argv[0],
		prefix:  append([]string(nil), argv[1:]...),
		runner:  runner,
		options: opts,
	}, nil
}

// Execute runs the wrapped program with the given arguments.
func (w *WrappedExecutor) Execute(ctx context.Context, args []string, opts ...Option) (*Result, error) {
	full := make([]string, 0, len(w.prefix)+len(args))
	full = append(full, w.prefix...)
	full = append(full, args...)

	merged := make([]Option, 0, len(w.options)+len(opts))
	merged = append(merged, w.options...)
	merged = append(merged, opts...)

	result, err := w.runner.Run(ctx, w.program, full, merged...)
	if err != nil {
		return result, fmt.Errorf("%s %s: %w", w.program, strings.Join(args, " "), err)
	}
	return result, nil
}

// ValidateValue rejects values that must not reach a program as an argument:
// empty strings, values that would be parsed as flags, and embedded NUL or newlines.
func ValidateValue(field, value string) error {
	switch {
	case strings.TrimSpace(value) == "":
		return perrors.Newf(perrors.CodeInvalidInput, "%s cannot be empty", field)
	case strings.HasPrefix(value, "-"):
		return perrors.Newf(perrors.CodeInvalidInput, "%s %q cannot start with '-'", field, value)
	case strings.ContainsAny(value, "\x00\n\r"):
		return perrors.Newf(perrors.CodeInvalidInput, "%s %q contains control characters", field, value)
	}
	return nil
}

// Option functions for fluent configuration

// WithCapture configures output capture
func WithCapture(stdout, stderr, combined bool) Option {
	return func(o *Options) {
		o.CaptureStdout = stdout
		o.CaptureStderr = stderr
		o.CaptureCombined = combined
	}
}

// WithWorkingDir sets the working directory
func WithWorkingDir(dir string) Option {
	return func(o *Options) {
		o.WorkingDir = dir
	}
}

// WithEnv adds environment variables
func WithEnv(env map[string]string) Option {
	return func(o *Options) {
		if o.Env == nil {
			o.Env = make(map[string]string)
		}
		for k, v := range env {
			o.Env[k] = v
		}
	}
}

// WithStdoutWriter tees stdout to w.
func WithStdoutWriter(w io.Writer) Option {
	return func(o *Options) { o.StdoutWriter = w }
}

// WithStderrWriter tees stderr to w.
func WithStderrWriter(w io.Writer) Option {
	return func(o *Options) { o.StderrWriter = w }
}

// ConsoleOnly redirects to console without capture
func ConsoleOnly() Option {
	return func(o *Options) {
		o.CaptureStdout = false
		o.CaptureStderr = false
		o.RedirectToConsole = true
	}
}
