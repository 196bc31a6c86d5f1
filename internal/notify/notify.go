// Package notify is the user-facing message surface: transient status
// messages, informational notices, and choice prompts.
package notify

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"

	"tagnav/internal/logging"
)

// Notifier shows messages to the user.
type Notifier interface {
	// Status shows a transient message; the returned func dismisses it and
	// is safe to call more than once.
	Status(msg string) (dismiss func())

	// Info shows a non-blocking informational notice.
	Info(msg string)

	// Prompt shows msg with a set of choices and waits for one. An empty
	// result means the prompt was dismissed without a choice.
	Prompt(ctx context.Context, msg string, choices ...string) (string, error)
}

// Console reports through a logger and, when attached to a terminal, asks
// prompts interactively on In/Out.
type Console struct {
	Logger *slog.Logger
	In     io.Reader
	Out    io.Writer

	// Interactive forces prompting on or off; nil means "stdin is a tty".
	Interactive *bool

	readOnce sync.Once
	lines    chan string
}

// NewConsole returns a Console on the process's stdin/stderr.
func NewConsole(logger *slog.Logger) *Console {
	return &Console{Logger: logging.OrNop(logger), In: os.Stdin, Out: os.Stderr}
}

// Status implements Notifier.
func (c *Console) Status(msg string) func() {
	c.Logger.Info(msg)
	var once sync.Once
	return func() {
		once.Do(func() { c.Logger.Debug("status cleared", "status", msg) })
	}
}

// Info implements Notifier.
func (c *Console) Info(msg string) {
	c.Logger.Info(msg)
}

// Prompt implements Notifier. Non-interactive consoles log the message and
// return "" as if the prompt had been dismissed.
func (c *Console) Prompt(ctx context.Context, msg string, choices ...string) (string, error) {
	if !c.interactive() || len(choices) == 0 {
		c.Logger.Info(msg, "choices", strings.Join(choices, ", "))
		return "", nil
	}

	fmt.Fprintln(c.Out, msg)
	for i, choice := range choices {
		fmt.Fprintf(c.Out, "  [%d] %s\n", i+1, choice)
	}
	fmt.Fprint(c.Out, "Choose (Enter to dismiss): ")

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case line, ok := <-c.readLines():
		if !ok {
			return "", nil
		}
		n, err := strconv.Atoi(line)
		if err != nil || n < 1 || n > len(choices) {
			return "", nil
		}
		return choices[n-1], nil
	}
}

// readLines starts the single reader of In. A prompt abandoned on ctx leaves
// its line for the next prompt. The channel closes at end of input.
func (c *Console) readLines() <-chan string {
	c.readOnce.Do(func() {
		c.lines = make(chan string)
		go func() {
			defer close(c.lines)
			r := bufio.NewReader(c.In)
			for {
				line, err := r.ReadString('\n')
				if line != "" || err == nil {
					c.lines <- strings.TrimSpace(line)
				}
				if err != nil {
					return
				}
			}
		}()
	})
	return c.lines
}

func (c *Console) interactive() bool {
	if c.Interactive != nil {
		return *c.Interactive
	}
	f, ok := c.In.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Discard drops every message and dismisses every prompt.
type Discard struct{}

func (Discard) Status(string) func() { return func() {} }
func (Discard) Info(string)          {}
func (Discard) Prompt(context.Context, string, ...string) (string, error) {
	return "", nil
}
