package explorer

import (
	"os"
	"testing"

	"go.uber.org/zap/zapcore"

	"github.com/k-sakQA/Othello-for-Android/internal/config"
	"github.com/k-sakQA/Othello-for-Android/internal/observability"
)

// TestMain instantiates the global logger before running tests.
func TestMain(m *testing.M) {
	logConfig := config.NewDefaultConfig().Logger
	logConfig.Level = "debug"
	logConfig.ServiceName = "test-suite"
	logConfig.Format = "console"
	logConfig.LogFile = ""

	observability.Initialize(logConfig, zapcore.Lock(os.Stdout))
	exitCode := m.Run()
	observability.Sync()
	observability.ResetForTest()
	os.Exit(exitCode)
}
