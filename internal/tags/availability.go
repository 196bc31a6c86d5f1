package tags

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"tagnav/internal/logging"
	"tagnav/internal/notify"
	"tagnav/internal/process"
)

// Prompt choices offered when the query tool is missing.
const (
	ChoiceMoreInfo      = "More Info"
	ChoiceDontShowAgain = "Don't show again"
)

// DocsURL is the setup section shown when the user asks for more
// information.
const DocsURL = "README.md#code-navigation"

// Preferences persists the user's answer to the missing-tool prompt.
type Preferences interface {
	AskForToolAvailability() bool
	SetAskForToolAvailability(ask bool) error
}

// Availability is the process-wide record of whether the tag tools can be
// run. Create one at startup, call Probe, and share it between Managers.
//
// Until Probe runs or a tool invocation reports the executable missing, the
// tools are assumed available. Once missing, they stay missing for the life
// of the process. The prompt is shown at most once per process and never
// again after "Don't show again".
type Availability struct {
	tool     string
	prefs    Preferences
	notifier notify.Notifier
	logger   *slog.Logger

	mu       sync.Mutex
	missing  bool
	prompted bool
}

// NewAvailability creates the gate for tool (the query executable, whose
// name appears in the prompt).
func NewAvailability(tool string, prefs Preferences, notifier notify.Notifier, logger *slog.Logger) *Availability {
	if notifier == nil {
		notifier = notify.Discard{}
	}
	return &Availability{
		tool:     tool,
		prefs:    prefs,
		notifier: notifier,
		logger:   logging.OrNop(logger),
	}
}

// Probe runs `<tool> --help` in dir. Only a missing executable marks the
// tools unavailable; any other outcome, including a failing exit, counts as
// installed.
func (a *Availability) Probe(ctx context.Context, runner process.Runner, dir string) bool {
	_, err := runner.Run(ctx, a.tool, []string{"--help"}, dir)
	if process.IsNotFound(err) {
		a.ReportMissing(ctx)
		return false
	}
	if err != nil {
		a.logger.Debug("availability probe error ignored", "tool", a.tool, "error", err)
	}
	return a.Available()
}

// Available reports whether tools may be invoked.
func (a *Availability) Available() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return !a.missing
}

// ReportMissing marks the tools unavailable and, policy permitting, asks the
// user once what to do about it.
func (a *Availability) ReportMissing(ctx context.Context) {
	a.mu.Lock()
	a.missing = true
	if a.prompted {
		a.mu.Unlock()
		return
	}
	a.prompted = true
	a.mu.Unlock()

	a.logger.Warn("tag tool not found on PATH", "tool", a.tool)

	if a.prefs != nil && !a.prefs.AskForToolAvailability() {
		return
	}

	msg := fmt.Sprintf("The %q command is not available. Make sure it is on PATH", a.tool)
	choice, err := a.notifier.Prompt(ctx, msg, ChoiceMoreInfo, ChoiceDontShowAgain)
	if err != nil {
		a.logger.Debug("availability prompt abandoned", "error", err)
		return
	}

	switch choice {
	case ChoiceMoreInfo:
		a.notifier.Info("See " + DocsURL + " to set up code navigation")
	case ChoiceDontShowAgain:
		if a.prefs == nil {
			return
		}
		if err := a.prefs.SetAskForToolAvailability(false); err != nil {
			a.logger.Error("saving prompt preference failed", "error", err)
		}
	}
}
