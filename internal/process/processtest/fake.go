// Package processtest provides a scripted process.Runner for tests.
package processtest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"tagnav/internal/process"
)

// Call records one Run invocation.
type Call struct {
	Name string
	Args []string
	Dir  string
}

// String renders the call as a command line, e.g. "global --update".
func (c Call) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// Response is what a scripted run returns.
type Response struct {
	Result process.Result
	Err    error
}

// NotFound is the response of an executable missing from PATH.
func NotFound(name string) Response {
	return Response{Err: fmt.Errorf("%s: %w", name, process.ErrToolNotFound)}
}

// Stdout is a successful run printing out.
func Stdout(out string) Response {
	return Response{Result: process.Result{Stdout: []byte(out)}}
}

// Failed is a run exiting with code and printing stderr.
func Failed(code int, stderr string) Response {
	return Response{Result: process.Result{ExitCode: code, Stderr: []byte(stderr)}}
}

// Runner answers Run by executable name. Unscripted executables succeed
// with no output. Safe for concurrent use.
type Runner struct {
	mu        sync.Mutex
	responses map[string]Response
	hooks     map[string]func(Call)
	calls     []Call
}

// NewRunner creates an empty scripted runner.
func NewRunner() *Runner {
	return &Runner{responses: map[string]Response{}, hooks: map[string]func(Call){}}
}

// On scripts the response for executable name.
func (r *Runner) On(name string, resp Response) *Runner {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.responses[name] = resp
	return r
}

// Hook runs fn (outside the lock) whenever name is invoked, before the
// scripted response is returned.
func (r *Runner) Hook(name string, fn func(Call)) *Runner {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks[name] = fn
	return r
}

// Run implements process.Runner.
func (r *Runner) Run(ctx context.Context, name string, args []string, dir string) (process.Result, error) {
	call := Call{Name: name, Args: append([]string(nil), args...), Dir: dir}

	r.mu.Lock()
	r.calls = append(r.calls, call)
	resp, hook := r.responses[name], r.hooks[name]
	r.mu.Unlock()

	if hook != nil {
		hook(call)
	}
	if err := ctx.Err(); err != nil {
		return process.Result{}, err
	}
	return resp.Result, resp.Err
}

// Calls returns a copy of the recorded calls.
func (r *Runner) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// Commands returns the recorded calls rendered as command lines.
func (r *Runner) Commands() []string {
	var out []string
	for _, c := range r.Calls() {
		out = append(out, c.String())
	}
	return out
}
