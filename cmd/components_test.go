// File: cmd/components_test.go
package cmd

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/k-sakQA/Othello-for-Android/api/schemas"
	"github.com/k-sakQA/Othello-for-Android/internal/config"
	"github.com/k-sakQA/Othello-for-Android/internal/mocks"
	"github.com/k-sakQA/Othello-for-Android/internal/planner"
	"github.com/k-sakQA/Othello-for-Android/internal/vision"
)

// hierarchyDevice is a device that can also dump its view hierarchy.
type hierarchyDevice struct {
	*mocks.MockDevice
}

func (hierarchyDevice) DumpHierarchy(context.Context) ([]byte, error) {
	return []byte("<hierarchy/>"), nil
}

func TestSelectVision(t *testing.T) {
	logger := zaptest.NewLogger(t)

	tests := []struct {
		name     string
		provider string
		device   schemas.Device
		llm      schemas.LLMClient
		wantType any
		wantErr  string
	}{
		{name: "auto with llm", provider: config.StrategyAuto, llm: new(mocks.MockLLMClient), wantType: &vision.LLM{}},
		{name: "auto without llm", provider: config.StrategyAuto, wantType: vision.Noop{}},
		{name: "none", provider: config.StrategyNone, llm: new(mocks.MockLLMClient), wantType: vision.Noop{}},
		{name: "llm without key", provider: config.StrategyLLM, wantErr: "requires an LLM API key"},
		{name: "uiautomator", provider: config.StrategyUIAutomator, device: hierarchyDevice{new(mocks.MockDevice)}, wantType: &vision.UIAutomator{}},
		{name: "uiautomator unsupported", provider: config.StrategyUIAutomator, wantErr: "not supported"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.NewDefaultConfig()
			cfg.Vision.Provider = tt.provider
			device := tt.device
			if device == nil {
				device = new(mocks.MockDevice)
			}

			got, err := selectVision(cfg, logger, device, tt.llm)

			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.wantType, got)
		})
	}
}

func TestSelectPlanner(t *testing.T) {
	logger := zaptest.NewLogger(t)
	in, out := strings.NewReader(""), new(strings.Builder)

	cfg := config.NewDefaultConfig()
	got, err := selectPlanner(cfg, logger, nil, in, out)
	require.NoError(t, err)
	assert.IsType(t, &planner.Manual{}, got)

	got, err = selectPlanner(cfg, logger, new(mocks.MockLLMClient), in, out)
	require.NoError(t, err)
	assert.IsType(t, &planner.LLM{}, got)

	cfg.Planner.Provider = config.StrategyManual
	got, err = selectPlanner(cfg, logger, new(mocks.MockLLMClient), in, out)
	require.NoError(t, err)
	assert.IsType(t, &planner.Manual{}, got)

	cfg.Planner.Provider = config.StrategyLLM
	_, err = selectPlanner(cfg, logger, nil, in, out)
	assert.ErrorContains(t, err, "requires an LLM API key")
}

func TestComponentsClose(t *testing.T) {
	var order []string
	c := &components{logger: zaptest.NewLogger(t)}
	c.closers = []func() error{
		func() error { order = append(order, "first"); return nil },
		func() error { order = append(order, "second"); return errors.New("boom") },
		func() error { order = append(order, "third"); return nil },
	}

	err := c.Close()

	assert.EqualError(t, err, "boom")
	assert.Equal(t, []string{"third", "second", "first"}, order)
	assert.NoError(t, c.Close())
}

func TestNewComponents_SessionOnlyForADB(t *testing.T) {
	logger := zaptest.NewLogger(t)
	stubRunner(t, new(mocks.MockRunner))

	cfg := config.NewDefaultConfig()
	comps, err := newComponents(context.Background(), cfg, logger, componentOptions{session: true})
	require.NoError(t, err)
	assert.NotNil(t, comps.bootstrapper())

	cfg.Device.Backend = config.BackendPlaywright
	comps, err = newComponents(context.Background(), cfg, logger, componentOptions{session: true})
	require.NoError(t, err)
	assert.Nil(t, comps.bootstrapper())
}

func TestRunWithMetrics(t *testing.T) {
	cfg := config.NewDefaultConfig()
	logger := zaptest.NewLogger(t)

	t.Run("no address runs inline", func(t *testing.T) {
		err := runWithMetrics(context.Background(), cfg, logger, func(context.Context) error {
			return errors.New("run failed")
		})
		assert.EqualError(t, err, "run failed")
	})

	t.Run("server stops with the command", func(t *testing.T) {
		cfg := config.NewDefaultConfig()
		cfg.Metrics.Addr = "127.0.0.1:0"
		called := false
		err := runWithMetrics(context.Background(), cfg, logger, func(context.Context) error {
			called = true
			return nil
		})
		assert.NoError(t, err)
		assert.True(t, called)
	})
}
