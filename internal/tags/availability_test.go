package tags

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tagnav/internal/notify/notifytest"
	"tagnav/internal/process/processtest"
)

func TestProbe(t *testing.T) {
	tests := []struct {
		name      string
		resp      processtest.Response
		available bool
		prompts   int
	}{
		{"installed", processtest.Stdout("Usage: global ..."), true, 0},
		{"installed but failing", processtest.Failed(2, "bad option"), true, 0},
		{"missing", processtest.NotFound("global"), false, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &notifytest.Recorder{}
			a := NewAvailability("global", &memPrefs{}, rec, nil)
			runner := processtest.NewRunner().On("global", tt.resp)

			assert.Equal(t, tt.available, a.Probe(context.Background(), runner, t.TempDir()))
			assert.Equal(t, tt.available, a.Available())
			assert.Len(t, rec.Prompts(), tt.prompts)
			assert.Equal(t, []string{"global --help"}, runner.Commands())
		})
	}
}

func TestReportMissingPromptsOncePerProcess(t *testing.T) {
	rec := &notifytest.Recorder{}
	a := NewAvailability("global", &memPrefs{}, rec, nil)

	a.ReportMissing(context.Background())
	a.ReportMissing(context.Background())

	require.Len(t, rec.Prompts(), 1)
	assert.Equal(t, `The "global" command is not available. Make sure it is on PATH`, rec.Prompts()[0])
}

func TestDontShowAgainIsPersisted(t *testing.T) {
	prefs := &memPrefs{}

	first := &notifytest.Recorder{Answer: ChoiceDontShowAgain}
	NewAvailability("global", prefs, first, nil).ReportMissing(context.Background())
	assert.Len(t, first.Prompts(), 1)
	assert.False(t, prefs.AskForToolAvailability())

	// A new process reading the same preferences never prompts.
	second := &notifytest.Recorder{}
	a := NewAvailability("global", prefs, second, nil)
	a.ReportMissing(context.Background())
	assert.Empty(t, second.Prompts())
	assert.False(t, a.Available())
}

func TestMoreInfoShowsDocs(t *testing.T) {
	prefs := &memPrefs{}
	rec := &notifytest.Recorder{Answer: ChoiceMoreInfo}

	NewAvailability("global", prefs, rec, nil).ReportMissing(context.Background())

	require.Len(t, rec.Infos(), 1)
	assert.Equal(t, "See README.md#code-navigation to set up code navigation", rec.Infos()[0])
	assert.True(t, prefs.AskForToolAvailability(), "more info does not silence future processes")
}

func TestDismissedPromptKeepsAsking(t *testing.T) {
	prefs := &memPrefs{}
	NewAvailability("global", prefs, &notifytest.Recorder{}, nil).ReportMissing(context.Background())
	assert.True(t, prefs.AskForToolAvailability())
}

func TestNilPreferences(t *testing.T) {
	rec := &notifytest.Recorder{Answer: ChoiceDontShowAgain}
	a := NewAvailability("global", nil, rec, nil)
	a.ReportMissing(context.Background())
	assert.Len(t, rec.Prompts(), 1)
}
