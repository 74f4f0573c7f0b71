// File: cmd/replay_test.go
package cmd

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/k-sakQA/Othello-for-Android/internal/mocks"
)

func writeRoute(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "route.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestReplayCmd(t *testing.T) {
	t.Run("replays steps in order", func(t *testing.T) {
		dir := setTestEnv(t)
		path := writeRoute(t, dir, `{"id":"r","createdAt":"2026-01-01T00:00:00Z","steps":[
  {"index":1,"action":"back"},
  {"index":0,"action":"tap","target":{"x":10,"y":20}}
]}`)
		device := new(mocks.MockDevice)
		tap := device.On("Tap", mock.Anything, 10, 20).Return(nil).Once()
		device.On("Back", mock.Anything).Return(nil).Once().NotBefore(tap)
		stubDevice(t, device)
		stubRunner(t, new(mocks.MockRunner))

		out, err := executeCommand(t, "", "replay", "--route", path)

		require.NoError(t, err)
		assert.Contains(t, out, "Replay complete: 2 steps")
		device.AssertExpectations(t)
		device.AssertNotCalled(t, "OpenURL", mock.Anything, mock.Anything)
	})

	t.Run("opens url first", func(t *testing.T) {
		dir := setTestEnv(t)
		path := writeRoute(t, dir, `{"id":"r","createdAt":"2026-01-01T00:00:00Z","steps":[{"index":0,"action":"back"}]}`)
		device := new(mocks.MockDevice)
		open := device.On("OpenURL", mock.Anything, "https://example.com").Return(nil).Once()
		device.On("Back", mock.Anything).Return(nil).Once().NotBefore(open)
		stubDevice(t, device)
		stubRunner(t, new(mocks.MockRunner))

		_, err := executeCommand(t, "", "replay", "-r", path, "--url", "https://example.com")

		require.NoError(t, err)
		device.AssertExpectations(t)
	})

	t.Run("step failure aborts", func(t *testing.T) {
		dir := setTestEnv(t)
		path := writeRoute(t, dir, `{"id":"r","createdAt":"2026-01-01T00:00:00Z","steps":[
  {"index":0,"action":"back"},
  {"index":1,"action":"back"}
]}`)
		device := new(mocks.MockDevice)
		device.On("Back", mock.Anything).Return(errors.New("device offline")).Once()
		stubDevice(t, device)
		stubRunner(t, new(mocks.MockRunner))

		out, err := executeCommand(t, "", "replay", "-r", path)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "step 0 (back)")
		assert.NotContains(t, out, "Replay complete")
		device.AssertNumberOfCalls(t, "Back", 1)
	})

	t.Run("invalid route file", func(t *testing.T) {
		dir := setTestEnv(t)
		path := writeRoute(t, dir, `{"id":"r","steps":[{"index":0,"action":"back"},{"index":0,"action":"back"}]}`)

		_, err := executeCommand(t, "", "replay", "-r", path)

		assert.ErrorContains(t, err, "duplicate step index 0")
	})
}
