// Package executortest provides a recording executor.Runner for tests.
package executortest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	perrors "github.com/cs-gavin-huang/MLOPS-human-pose-estimation/errors"
	"github.com/cs-gavin-huang/MLOPS-human-pose-estimation/executor"
)

// Call is one recorded invocation.
type Call struct {
	Program string
	Args    []string
	Options executor.Options
}

// Line returns the invocation as a single space-joined string.
func (c Call) Line() string {
	return strings.TrimSpace(c.Program + " " + strings.Join(c.Args, " "))
}

// Handler produces the result for a matched invocation.
type Handler func(Call) (*executor.Result, error)

type rule struct {
	prefix  string
	handler Handler
}

// Recorder implements executor.Runner. Invocations are matched against registered
// prefixes in registration order; unmatched invocations succeed with empty output.
type Recorder struct {
	mu    sync.Mutex
	rules []rule
	calls []Call
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// On registers a handler for invocations whose Line starts with prefix.
func (r *Recorder) On(prefix string, h Handler) *Recorder {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rules = append(r.rules, rule{prefix: prefix, handler: h})
	return r
}

// Stdout registers a handler returning fixed stdout for prefix.
func (r *Recorder) Stdout(prefix, stdout string) *Recorder {
	return r.On(prefix, func(Call) (*executor.Result, error) {
		return &executor.Result{Stdout: stdout}, nil
	})
}

// Fail registers a handler failing prefix with exitCode and stderr.
func (r *Recorder) Fail(prefix string, exitCode int, stderr string) *Recorder {
	return r.On(prefix, func(c Call) (*executor.Result, error) {
		res := &executor.Result{Stderr: stderr, ExitCode: exitCode}
		return res, perrors.WrapWithContext(fmt.Errorf("exit status %d", exitCode),
			perrors.CodeExecutionFailed, "command execution failed",
			map[string]interface{}{"program": c.Program, "exit_code": exitCode})
	})
}

// Run implements executor.Runner.
func (r *Recorder) Run(_ context.Context, program string, args []string, opts ...executor.Option) (*executor.Result, error) {
	options := executor.DefaultOptions()
	for _, opt := range opts {
		opt(options)
	}
	call := Call{Program: program, Args: append([]string(nil), args...), Options: *options}

	r.mu.Lock()
	r.calls = append(r.calls, call)
	rules := append([]rule(nil), r.rules...)
	r.mu.Unlock()

	line := call.Line()
	for _, rl := range rules {
		if strings.HasPrefix(line, rl.prefix) {
			return rl.handler(call)
		}
	}
	return &executor.Result{}, nil
}

// Calls returns a copy of all recorded invocations.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// Lines returns all recorded invocations as strings.
func (r *Recorder) Lines() []string {
	calls := r.Calls()
	lines := make([]string, len(calls))
	for i, c := range calls {
		lines[i] = c.Line()
	}
	return lines
}

// Count returns how many invocations start with prefix.
func (r *Recorder) Count(prefix string) int {
	n := 0
	for _, line := range r.Lines() {
		if strings.HasPrefix(line, prefix) {
			n++
		}
	}
	return n
}

var _ executor.Runner = (*Recorder)(nil)
