package state

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddWorkspace(t *testing.T) {
	s := openTemp(t)
	ws := t.TempDir()

	require.NoError(t, s.AddWorkspace(ws))
	require.NoError(t, s.AddWorkspace(ws), "re-adding is a no-op")

	list, err := s.Workspaces()
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, ws, list[0].Path)
	assert.Equal(t, filepath.Base(ws), list[0].Name)
	assert.True(t, list[0].WatchEnabled)
	assert.Nil(t, list[0].LastIndexed)
	assert.False(t, list[0].AddedAt.IsZero())
}

func TestWorkspaceLifecycle(t *testing.T) {
	s := openTemp(t)
	a, b := t.TempDir(), t.TempDir()
	require.NoError(t, s.AddWorkspace(a))
	require.NoError(t, s.AddWorkspace(b))

	require.NoError(t, s.SetLastIndexed(a))
	w, err := s.Workspace(a)
	require.NoError(t, err)
	require.NotNil(t, w.LastIndexed)

	require.NoError(t, s.SetWatchEnabled(b, false))
	watched, err := s.WatchedWorkspaces()
	require.NoError(t, err)
	require.Len(t, watched, 1)
	assert.Equal(t, a, watched[0].Path)

	require.NoError(t, s.RemoveWorkspace(a))
	_, err = s.Workspace(a)
	assert.ErrorIs(t, err, ErrWorkspaceNotFound)
}

func TestUnknownWorkspace(t *testing.T) {
	s := openTemp(t)
	missing := filepath.Join(t.TempDir(), "nope")

	assert.ErrorIs(t, s.RemoveWorkspace(missing), ErrWorkspaceNotFound)
	assert.ErrorIs(t, s.SetLastIndexed(missing), ErrWorkspaceNotFound)
	assert.ErrorIs(t, s.SetWatchEnabled(missing, true), ErrWorkspaceNotFound)
}

func TestMaxWorkspaces(t *testing.T) {
	s := openTemp(t)
	root := t.TempDir()
	for i := 0; i < DefaultMaxWorkspaces; i++ {
		require.NoError(t, s.AddWorkspace(filepath.Join(root, fmt.Sprintf("ws-%d", i))))
	}
	assert.Error(t, s.AddWorkspace(filepath.Join(root, "one-too-many")))
}
