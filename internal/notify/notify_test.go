package notify

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tagnav/internal/logging"
)

func console(in string, interactive bool) (*Console, *bytes.Buffer, *bytes.Buffer) {
	var out, logs bytes.Buffer
	c := &Console{
		Logger:      logging.New(logging.Config{Level: logging.LevelDebug, Output: &logs, Source: "test"}),
		In:          strings.NewReader(in),
		Out:         &out,
		Interactive: &interactive,
	}
	return c, &out, &logs
}

func TestConsolePromptPicksChoice(t *testing.T) {
	c, out, _ := console("2\n", true)

	got, err := c.Prompt(context.Background(), "global missing", "More Info", "Don't show again")
	require.NoError(t, err)
	assert.Equal(t, "Don't show again", got)
	assert.Contains(t, out.String(), "[1] More Info")
	assert.Contains(t, out.String(), "[2] Don't show again")
}

func TestConsolePromptDismissed(t *testing.T) {
	for _, in := range []string{"\n", "7\n", "nope\n", ""} {
		c, _, _ := console(in, true)
		got, err := c.Prompt(context.Background(), "q", "a", "b")
		require.NoError(t, err)
		assert.Empty(t, got, "input %q", in)
	}
}

func TestConsolePromptsShareBufferedInput(t *testing.T) {
	c, _, _ := console("1\n2\n", true)

	first, err := c.Prompt(context.Background(), "q1", "a", "b")
	require.NoError(t, err)
	second, err := c.Prompt(context.Background(), "q2", "a", "b")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, []string{first, second})
}

func TestConsolePromptCancelKeepsInputForNextPrompt(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()
	interactive := true
	c := &Console{Logger: logging.Nop(), In: pr, Out: io.Discard, Interactive: &interactive}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Prompt(ctx, "q1", "a", "b")
	assert.ErrorIs(t, err, context.Canceled)

	go pw.Write([]byte("2\n"))
	got, err := c.Prompt(context.Background(), "q2", "a", "b")
	require.NoError(t, err)
	assert.Equal(t, "b", got)
}

func TestConsoleNonInteractiveLogsAndDismisses(t *testing.T) {
	c, out, logs := console("1\n", false)

	got, err := c.Prompt(context.Background(), "global missing", "More Info")
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Empty(t, out.String())
	assert.Contains(t, logs.String(), "global missing")
}

func TestConsoleStatusDismissIdempotent(t *testing.T) {
	c, _, logs := console("", false)

	dismiss := c.Status("Generating tags...")
	dismiss()
	dismiss()

	assert.Equal(t, 1, strings.Count(logs.String(), "status cleared"))
	assert.Contains(t, logs.String(), "Generating tags...")
}

func TestDiscard(t *testing.T) {
	var n Notifier = Discard{}
	n.Status("x")()
	n.Info("y")
	got, err := n.Prompt(context.Background(), "z", "a")
	assert.NoError(t, err)
	assert.Empty(t, got)
}
