package tags

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tagnav/internal/notify/notifytest"
	"tagnav/internal/process/processtest"
)

type memPrefs struct {
	mu  sync.Mutex
	ask *bool
}

func (p *memPrefs) AskForToolAvailability() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ask == nil || *p.ask
}

func (p *memPrefs) SetAskForToolAvailability(ask bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ask = &ask
	return nil
}

func newManager(t *testing.T, runner *processtest.Runner) (*Manager, *notifytest.Recorder, *Availability) {
	t.Helper()
	rec := &notifytest.Recorder{}
	avail := NewAvailability("global", &memPrefs{}, rec, nil)
	return NewManager(runner, avail, Options{Notifier: rec}), rec, avail
}

func withMarker(t *testing.T) string {
	t.Helper()
	base := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(base, MarkerName), nil, 0644))
	return base
}

func TestEnsureIndexBuildsWhenMarkerMissing(t *testing.T) {
	for _, force := range []bool{false, true} {
		runner := processtest.NewRunner()
		m, rec, _ := newManager(t, runner)
		base := t.TempDir()

		ok, err := m.EnsureIndex(context.Background(), base, force)
		require.NoError(t, err)
		assert.True(t, ok)

		calls := runner.Calls()
		require.Len(t, calls, 1, "force=%v", force)
		assert.Equal(t, "gtags", calls[0].String())
		assert.Equal(t, base, calls[0].Dir)
		assert.Equal(t, []string{"Generating tags..."}, rec.Statuses())
		assert.Zero(t, rec.OpenStatuses())
	}
}

func TestEnsureIndexExistingWithoutForceIsNoop(t *testing.T) {
	runner := processtest.NewRunner()
	m, rec, _ := newManager(t, runner)

	ok, err := m.EnsureIndex(context.Background(), withMarker(t), false)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, runner.Calls())
	assert.Empty(t, rec.Statuses())
}

func TestEnsureIndexForceRunsIncrementalUpdate(t *testing.T) {
	runner := processtest.NewRunner()
	m, _, _ := newManager(t, runner)
	base := withMarker(t)

	ok, err := m.EnsureIndex(context.Background(), base, true)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{"global --update"}, runner.Commands())
	assert.Equal(t, base, runner.Calls()[0].Dir)
}

func TestEnsureIndexToolFailure(t *testing.T) {
	tests := []struct {
		name string
		resp processtest.Response
	}{
		{"non-zero exit", processtest.Failed(1, "gtags: cannot make GTAGS")},
		{"stderr diagnostics", processtest.Failed(0, "Warning: '.tagnav' is a dot directory")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := processtest.NewRunner().On("gtags", tt.resp)
			m, rec, avail := newManager(t, runner)

			ok, err := m.EnsureIndex(context.Background(), t.TempDir(), false)
			require.NoError(t, err)
			assert.False(t, ok)
			require.Len(t, rec.Infos(), 1)
			assert.Contains(t, rec.Infos()[0], "Some error occurred")
			assert.Zero(t, rec.OpenStatuses(), "status must be dismissed on failure")
			assert.True(t, avail.Available(), "a failing tool is still an installed tool")
		})
	}
}

func TestEnsureIndexToolMissingPromptsOnce(t *testing.T) {
	runner := processtest.NewRunner().On("gtags", processtest.NotFound("gtags"))
	m, rec, avail := newManager(t, runner)

	for i := 0; i < 3; i++ {
		ok, err := m.EnsureIndex(context.Background(), t.TempDir(), false)
		require.NoError(t, err)
		assert.False(t, ok)
	}

	assert.False(t, avail.Available())
	assert.Len(t, rec.Prompts(), 1)
	assert.Len(t, runner.Calls(), 1, "no invocations once the tool is known missing")
	assert.Zero(t, rec.OpenStatuses())
}

func TestGenerateAnnouncesSuccess(t *testing.T) {
	runner := processtest.NewRunner()
	m, rec, _ := newManager(t, runner)

	ok, err := m.Generate(context.Background(), withMarker(t), true)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{"global --update"}, runner.Commands())
	assert.Equal(t, []string{"The tags were updated"}, rec.Infos())
}

func TestUpdateSingleFile(t *testing.T) {
	runner := processtest.NewRunner()
	m, _, _ := newManager(t, runner)
	dir := t.TempDir()
	file := filepath.Join(dir, "GTEMP-1.cp")
	require.NoError(t, os.WriteFile(file, []byte("MODULE M; END M."), 0644))

	var manifest []byte
	runner.Hook("gtags", func(c processtest.Call) {
		manifest, _ = os.ReadFile(filepath.Join(c.Dir, ManifestName))
	})

	ok, err := m.UpdateSingleFile(context.Background(), file)
	require.NoError(t, err)
	assert.True(t, ok)

	calls := runner.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, dir, calls[0].Dir)
	assert.Equal(t, []string{"--accept-dotfiles", "-f", filepath.Join(dir, ManifestName)}, calls[0].Args)
	assert.Equal(t, file+"\n", string(manifest))
}

func TestUpdateSingleFileManifestFailure(t *testing.T) {
	runner := processtest.NewRunner()
	m, rec, _ := newManager(t, runner)

	ok, err := m.UpdateSingleFile(context.Background(), filepath.Join(t.TempDir(), "missing-dir", "a.cp"))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, runner.Calls())
	assert.Len(t, rec.Infos(), 1)
}

func TestConcurrentBuildsShareOneInvocation(t *testing.T) {
	release := make(chan struct{})
	runner := processtest.NewRunner().Hook("gtags", func(c processtest.Call) {
		<-release
		os.WriteFile(filepath.Join(c.Dir, MarkerName), nil, 0644)
	})
	m, _, _ := newManager(t, runner)
	base := t.TempDir()

	var wg sync.WaitGroup
	results := make([]bool, 4)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = m.EnsureIndex(context.Background(), base, false)
		}(i)
	}

	require.Eventually(t, func() bool { return len(runner.Calls()) == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Len(t, runner.Calls(), 1)
	assert.Equal(t, []bool{true, true, true, true}, results)
}

func TestEnsureIndexCallerCancel(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	runner := processtest.NewRunner().Hook("gtags", func(processtest.Call) { <-release })
	m, _, _ := newManager(t, runner)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	ok, err := m.EnsureIndex(ctx, t.TempDir(), false)
	assert.False(t, ok)
	assert.ErrorIs(t, err, context.Canceled)
}
