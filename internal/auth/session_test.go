package auth

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/k-sakQA/Othello-for-Android/internal/mocks"
	"github.com/k-sakQA/Othello-for-Android/internal/shell"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const (
	probeCmd = "shell run-as com.android.chrome ls"
	stopCmd  = "shell am force-stop com.android.chrome"
	pullCmd  = "exec-out run-as com.android.chrome tar -cf - app_chrome"
	pushCmd  = "exec-in run-as com.android.chrome sh -c"
)

func setupSessionTest(t *testing.T) (*SessionManager, *mocks.MockRunner, string) {
	t.Helper()
	runner := new(mocks.MockRunner)
	path := filepath.Join(t.TempDir(), "auth", "session.bin")
	m := NewSessionManager(zaptest.NewLogger(t), runner, Options{
		ADBPath:     "adb",
		Serial:      "emulator-5554",
		Package:     "com.android.chrome",
		ProfileDir:  "app_chrome",
		SessionPath: path,
	})
	return m, runner, path
}

func writeSession(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o700))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func commandLines(runner *mocks.MockRunner) []string {
	var lines []string
	for _, call := range runner.Calls {
		lines = append(lines, call.Arguments.Get(1).(shell.Command).String())
	}
	return lines
}

func TestProbeCapability(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		m, runner, _ := setupSessionTest(t)
		runner.On("Run", mock.Anything, mocks.CommandContaining(probeCmd)).
			Return(shell.Result{Stdout: []byte("app_chrome\ncache\n")}, nil)

		assert.True(t, m.ProbeCapability(context.Background()))
		assert.Equal(t, []string{"adb -s emulator-5554 " + probeCmd}, commandLines(runner))
	})

	t.Run("command failure", func(t *testing.T) {
		m, runner, _ := setupSessionTest(t)
		runner.On("Run", mock.Anything, mock.Anything).
			Return(shell.Result{}, &shell.ExitError{Command: "adb", ExitCode: 1})

		assert.False(t, m.ProbeCapability(context.Background()))
	})

	t.Run("refused with zero exit", func(t *testing.T) {
		m, runner, _ := setupSessionTest(t)
		runner.On("Run", mock.Anything, mock.Anything).
			Return(shell.Result{Stdout: []byte("run-as: package not debuggable: com.android.chrome")}, nil)

		assert.False(t, m.ProbeCapability(context.Background()))
	})
}

func TestPull(t *testing.T) {
	t.Run("requires capability", func(t *testing.T) {
		m, runner, path := setupSessionTest(t)
		runner.On("Run", mock.Anything, mocks.CommandContaining(probeCmd)).
			Return(shell.Result{}, errors.New("device unauthorized"))

		_, err := m.Pull(context.Background())

		assert.ErrorIs(t, err, ErrCapabilityUnavailable)
		assert.NoFileExists(t, path)
		runner.AssertNotCalled(t, "Run", mock.Anything, mocks.CommandContaining(pullCmd))
	})

	t.Run("writes archive and creates directories", func(t *testing.T) {
		m, runner, path := setupSessionTest(t)
		runner.On("Run", mock.Anything, mocks.CommandContaining(probeCmd)).Return(shell.Result{}, nil)
		runner.On("Run", mock.Anything, mocks.CommandContaining(pullCmd)).
			Return(shell.Result{Stdout: []byte("tar-bytes")}, nil)

		got, err := m.Pull(context.Background())

		require.NoError(t, err)
		assert.Equal(t, path, got)
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "tar-bytes", string(data))
	})

	t.Run("overwrites previous archive", func(t *testing.T) {
		m, runner, path := setupSessionTest(t)
		writeSession(t, path, "old")
		runner.On("Run", mock.Anything, mocks.CommandContaining(probeCmd)).Return(shell.Result{}, nil)
		runner.On("Run", mock.Anything, mocks.CommandContaining(pullCmd)).
			Return(shell.Result{Stdout: []byte("new")}, nil)

		_, err := m.Pull(context.Background())

		require.NoError(t, err)
		data, _ := os.ReadFile(path)
		assert.Equal(t, "new", string(data))
	})

	t.Run("failed transfer keeps previous archive", func(t *testing.T) {
		m, runner, path := setupSessionTest(t)
		writeSession(t, path, "old")
		runner.On("Run", mock.Anything, mocks.CommandContaining(probeCmd)).Return(shell.Result{}, nil)
		runner.On("Run", mock.Anything, mocks.CommandContaining(pullCmd)).
			Return(shell.Result{}, errors.New("connection reset"))

		_, err := m.Pull(context.Background())

		require.Error(t, err)
		assert.Contains(t, err.Error(), "connection reset")
		data, _ := os.ReadFile(path)
		assert.Equal(t, "old", string(data))
		entries, _ := os.ReadDir(filepath.Dir(path))
		assert.Len(t, entries, 1, "temporary file must be cleaned up")
	})

	t.Run("empty archive is rejected", func(t *testing.T) {
		m, runner, path := setupSessionTest(t)
		runner.On("Run", mock.Anything, mocks.CommandContaining(probeCmd)).Return(shell.Result{}, nil)
		runner.On("Run", mock.Anything, mocks.CommandContaining(pullCmd)).Return(shell.Result{}, nil)

		_, err := m.Pull(context.Background())

		require.Error(t, err)
		assert.Contains(t, err.Error(), "empty archive")
		assert.NoFileExists(t, path)
	})
}

func TestPush(t *testing.T) {
	t.Run("requires session file", func(t *testing.T) {
		m, runner, _ := setupSessionTest(t)

		err := m.Push(context.Background())

		assert.ErrorIs(t, err, ErrSessionFileMissing)
		assert.Empty(t, runner.Calls)
	})

	t.Run("requires capability", func(t *testing.T) {
		m, runner, path := setupSessionTest(t)
		writeSession(t, path, "archive")
		runner.On("Run", mock.Anything, mocks.CommandContaining(probeCmd)).
			Return(shell.Result{}, errors.New("not debuggable"))

		err := m.Push(context.Background())

		assert.ErrorIs(t, err, ErrCapabilityUnavailable)
		assert.Len(t, runner.Calls, 1)
	})

	t.Run("probe, stop, replace in order", func(t *testing.T) {
		m, runner, path := setupSessionTest(t)
		writeSession(t, path, "archive")
		runner.On("Run", mock.Anything, mock.Anything).Return(shell.Result{}, nil)

		require.NoError(t, m.Push(context.Background()))

		lines := commandLines(runner)
		require.Len(t, lines, 3)
		assert.Contains(t, lines[0], probeCmd)
		assert.Contains(t, lines[1], stopCmd)
		assert.Contains(t, lines[2], pushCmd)
		assert.Contains(t, lines[2], "tar -xf - -C app_chrome.staging")
		assert.Equal(t, "archive", string(runner.Stdin))
	})

	t.Run("stop failure is tolerated", func(t *testing.T) {
		m, runner, path := setupSessionTest(t)
		writeSession(t, path, "archive")
		runner.On("Run", mock.Anything, mocks.CommandContaining(probeCmd)).Return(shell.Result{}, nil)
		runner.On("Run", mock.Anything, mocks.CommandContaining(stopCmd)).Return(shell.Result{}, errors.New("no such process"))
		runner.On("Run", mock.Anything, mocks.CommandContaining(pushCmd)).Return(shell.Result{}, nil)

		assert.NoError(t, m.Push(context.Background()))
	})

	t.Run("extraction failure surfaces", func(t *testing.T) {
		m, runner, path := setupSessionTest(t)
		writeSession(t, path, "archive")
		runner.On("Run", mock.Anything, mocks.CommandContaining(pushCmd)).
			Return(shell.Result{}, &shell.ExitError{Command: "adb", ExitCode: 2, Stderr: "tar: short read"})
		runner.On("Run", mock.Anything, mock.Anything).Return(shell.Result{}, nil)

		err := m.Push(context.Background())

		require.Error(t, err)
		assert.Contains(t, err.Error(), "short read")
	})
}

func TestPushIfPresent(t *testing.T) {
	t.Run("no session file", func(t *testing.T) {
		m, runner, _ := setupSessionTest(t)

		pushed, err := m.PushIfPresent(context.Background())

		assert.NoError(t, err)
		assert.False(t, pushed)
		assert.Empty(t, runner.Calls, "no device interaction without a session")
	})

	t.Run("probe fails", func(t *testing.T) {
		m, runner, path := setupSessionTest(t)
		writeSession(t, path, "archive")
		runner.On("Run", mock.Anything, mocks.CommandContaining(probeCmd)).
			Return(shell.Result{}, errors.New("run-as: unknown package"))

		pushed, err := m.PushIfPresent(context.Background())

		assert.NoError(t, err)
		assert.False(t, pushed)
		lines := commandLines(runner)
		require.Len(t, lines, 1)
		assert.True(t, strings.HasSuffix(lines[0], probeCmd), "only the probe may run")
	})

	t.Run("pushes when both checks pass", func(t *testing.T) {
		m, runner, path := setupSessionTest(t)
		writeSession(t, path, "archive")
		runner.On("Run", mock.Anything, mock.Anything).Return(shell.Result{}, nil)

		pushed, err := m.PushIfPresent(context.Background())

		assert.NoError(t, err)
		assert.True(t, pushed)
		assert.Len(t, runner.Calls, 3)
	})

	t.Run("transfer failure is returned", func(t *testing.T) {
		m, runner, path := setupSessionTest(t)
		writeSession(t, path, "archive")
		runner.On("Run", mock.Anything, mocks.CommandContaining(pushCmd)).Return(shell.Result{}, errors.New("broken pipe"))
		runner.On("Run", mock.Anything, mock.Anything).Return(shell.Result{}, nil)

		pushed, err := m.PushIfPresent(context.Background())

		assert.Error(t, err)
		assert.False(t, pushed)
	})
}

func TestReplaceScript(t *testing.T) {
	assert.Equal(t,
		"rm -rf app_chrome.staging && mkdir app_chrome.staging && tar -xf - -C app_chrome.staging && "+
			"rm -rf app_chrome && mv app_chrome.staging/app_chrome app_chrome && rm -rf app_chrome.staging",
		replaceScript("app_chrome"))
	assert.Equal(t, `'it'\''s'`, shellQuote("it's"))
}
