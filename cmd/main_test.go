// File: cmd/main_test.go
package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/k-sakQA/Othello-for-Android/api/schemas"
	"github.com/k-sakQA/Othello-for-Android/internal/config"
	"github.com/k-sakQA/Othello-for-Android/internal/observability"
	"github.com/k-sakQA/Othello-for-Android/internal/shell"
)

func TestMain(m *testing.M) {
	// Silence the global logger for the whole package; later
	// InitializeLogger calls from PersistentPreRunE are no-ops.
	observability.InitializeLogger(config.LoggerConfig{Level: "fatal", Format: "console", ServiceName: "test"})
	code := m.Run()
	observability.ResetForTest()
	os.Exit(code)
}

// executeCommand runs a fresh command tree with stdin and returns combined output.
func executeCommand(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return buf.String(), err
}

// setTestEnv points every path at a temp dir and clears API keys. It returns the dir.
func setTestEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("OTHELLO_AUTH_SESSION_PATH", filepath.Join(dir, "auth", "session.bin"))
	t.Setenv("OTHELLO_DEVICE_SCREENSHOT_DIR", filepath.Join(dir, "screenshots"))
	t.Setenv("OTHELLO_EXPLORE_OUTPUT_DIR", filepath.Join(dir, "routes"))
	t.Setenv("OTHELLO_STORIES_OUTPUT_DIR", filepath.Join(dir, "results"))
	t.Setenv("OTHELLO_STORE_DSN", filepath.Join(dir, "history.db"))
	t.Setenv("OTHELLO_LLM_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "")
	return dir
}

func stubDevice(t *testing.T, device schemas.Device) {
	t.Helper()
	orig := newDevice
	newDevice = func(context.Context, *config.Config, *zap.Logger, shell.Runner) (schemas.Device, error) {
		return device, nil
	}
	t.Cleanup(func() { newDevice = orig })
}

func stubRunner(t *testing.T, runner shell.Runner) {
	t.Helper()
	orig := newRunner
	newRunner = func(*zap.Logger, time.Duration) shell.Runner { return runner }
	t.Cleanup(func() { newRunner = orig })
}

func stubLLM(t *testing.T, client schemas.LLMClient) {
	t.Helper()
	orig := newLLMClient
	newLLMClient = func(context.Context, config.LLMConfig, *zap.Logger) (schemas.LLMClient, error) {
		return client, nil
	}
	t.Cleanup(func() { newLLMClient = orig })
}
