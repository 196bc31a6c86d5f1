// Package process runs the external tag tools and classifies how they ended.
package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"strings"
)

// ErrToolNotFound is returned when the executable is not on PATH.
var ErrToolNotFound = errors.New("tool not found")

// ToolFailedError reports a run that exited non-zero or wrote diagnostics
// to stderr.
type ToolFailedError struct {
	Tool     string
	ExitCode int
	Stderr   string
	Err      error // underlying exec error, nil when only stderr was written
}

func (e *ToolFailedError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	switch {
	case e.Err != nil && msg != "":
		return fmt.Sprintf("%s failed (exit %d): %s", e.Tool, e.ExitCode, msg)
	case e.Err != nil:
		return fmt.Sprintf("%s failed: %v", e.Tool, e.Err)
	default:
		return fmt.Sprintf("%s reported: %s", e.Tool, msg)
	}
}

func (e *ToolFailedError) Unwrap() error { return e.Err }

// Result is the captured outcome of one run.
type Result struct {
	ExitCode int
	Stdout   []byte
	Stderr   []byte
}

// Diagnostics returns stderr without surrounding whitespace.
func (r Result) Diagnostics() string {
	return string(bytes.TrimSpace(r.Stderr))
}

// Runner starts an executable in dir and waits for it to exit.
//
// A non-nil error means the process could not be started or exit status could
// not be collected. A non-zero exit is reported in Result, not as an error;
// use Check to classify.
type Runner interface {
	Run(ctx context.Context, name string, args []string, dir string) (Result, error)
}

// ExecRunner runs real processes with os/exec.
//
// Cancelling ctx does not kill the child: Run returns ctx.Err() right away and
// the process is left to finish and be reaped in the background. The tag
// tools mutate an on-disk database and must not be interrupted mid-write.
type ExecRunner struct{}

// Run implements Runner.
func (ExecRunner) Run(ctx context.Context, name string, args []string, dir string) (Result, error) {
	cmd := exec.Command(name, args...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return Result{}, classifyStart(name, err)
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case err := <-done:
		res := Result{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}
		if err == nil {
			return res, nil
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			return res, nil
		}
		return res, fmt.Errorf("waiting for %s: %w", name, err)
	}
}

func classifyStart(name string, err error) error {
	var pathErr *fs.PathError
	if errors.As(err, &pathErr) && pathErr.Op == "chdir" {
		return fmt.Errorf("starting %s: %w", name, err)
	}
	if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%s: %w", name, ErrToolNotFound)
	}
	return fmt.Errorf("starting %s: %w", name, err)
}

// Check turns a Run outcome into the error taxonomy used by callers:
// ErrToolNotFound (wrapped), *ToolFailedError, a context error, or nil.
func Check(name string, res Result, err error) error {
	if err := CheckExit(name, res, err); err != nil {
		return err
	}
	if res.Diagnostics() != "" {
		return &ToolFailedError{Tool: name, Stderr: string(res.Stderr)}
	}
	return nil
}

// CheckExit is Check for tools whose stderr carries warnings: only a start
// failure or a non-zero exit is an error.
func CheckExit(name string, res Result, err error) error {
	if err != nil {
		if errors.Is(err, ErrToolNotFound) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return &ToolFailedError{Tool: name, ExitCode: -1, Err: err}
	}
	if res.ExitCode != 0 {
		return &ToolFailedError{
			Tool:     name,
			ExitCode: res.ExitCode,
			Stderr:   string(res.Stderr),
			Err:      fmt.Errorf("exit status %d", res.ExitCode),
		}
	}
	return nil
}

// IsNotFound reports whether err is (or wraps) ErrToolNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrToolNotFound)
}
