package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/k-sakQA/Othello-for-Android/api/schemas"
	"github.com/k-sakQA/Othello-for-Android/internal/auth"
	"github.com/k-sakQA/Othello-for-Android/internal/config"
	"github.com/k-sakQA/Othello-for-Android/internal/device/adb"
	"github.com/k-sakQA/Othello-for-Android/internal/device/cdp"
	"github.com/k-sakQA/Othello-for-Android/internal/device/pw"
	"github.com/k-sakQA/Othello-for-Android/internal/llmclient"
	"github.com/k-sakQA/Othello-for-Android/internal/observability"
	"github.com/k-sakQA/Othello-for-Android/internal/planner"
	"github.com/k-sakQA/Othello-for-Android/internal/shell"
	"github.com/k-sakQA/Othello-for-Android/internal/store"
	"github.com/k-sakQA/Othello-for-Android/internal/vision"
)

// Factories are package variables so command tests can substitute fakes.
var (
	newDevice    = buildDevice
	newLLMClient = llmclient.NewClient
	openStore    = store.Open
	newRunner    = func(logger *zap.Logger, timeout time.Duration) shell.Runner {
		return shell.NewExecRunner(logger, timeout)
	}
)

// componentOptions says which collaborators a command needs.
type componentOptions struct {
	device  bool
	llm     bool
	store   bool
	session bool
}

// components holds the collaborators of one command invocation.
type components struct {
	cfg     *config.Config
	logger  *zap.Logger
	runner  shell.Runner
	device  schemas.Device
	session *auth.SessionManager
	llm     schemas.LLMClient
	store   store.Repository
	closers []func() error
}

func newComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts componentOptions) (*components, error) {
	c := &components{cfg: cfg, logger: logger}
	c.runner = newRunner(logger, cfg.Device.ADB.CommandTimeout)

	if opts.session {
		if cfg.Device.Backend == config.BackendADB {
			c.session = auth.NewSessionManager(logger, c.runner, auth.Options{
				ADBPath:     cfg.Device.ADB.Path,
				Serial:      cfg.Device.ADB.Serial,
				Package:     cfg.Auth.Package,
				ProfileDir:  cfg.Auth.ProfileDir,
				SessionPath: cfg.Auth.SessionPath,
			})
		} else {
			logger.Debug("Session transfer needs the adb backend; the emulated browser keeps its own profile",
				zap.String("backend", cfg.Device.Backend))
		}
	}

	if opts.device {
		device, err := newDevice(ctx, cfg, logger, c.runner)
		if err != nil {
			c.Close()
			return nil, err
		}
		c.device = device
		if closer, ok := device.(schemas.DeviceCloser); ok {
			c.closers = append(c.closers, closer.Close)
		}
	}

	if opts.llm && cfg.HasLLMKey() {
		client, err := newLLMClient(ctx, cfg.LLM, logger)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("failed to initialize LLM client: %w", err)
		}
		c.llm = client
		c.closers = append(c.closers, client.Close)
	}

	if opts.store && cfg.Store.Enabled {
		repo, err := openStore(ctx, cfg.Store, logger)
		if err != nil {
			// Run history is auxiliary; a broken store never blocks a run.
			logger.Warn("Run history unavailable", zap.Error(err))
		} else {
			c.store = repo
			c.closers = append(c.closers, repo.Close)
		}
	}
	return c, nil
}

// Close releases collaborators in reverse creation order.
func (c *components) Close() error {
	var firstErr error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			c.logger.Warn("Failed to release resource", zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	c.closers = nil
	return firstErr
}

// bootstrapper returns the lenient session push, or nil when the backend has none.
func (c *components) bootstrapper() auth.Bootstrapper {
	if c.session == nil {
		return nil
	}
	return c.session
}

// recordRun stores a history entry when the run store is enabled.
func (c *components) recordRun(ctx context.Context, kind schemas.RunKind, url string, started time.Time, steps int, runErr error) {
	if c.store == nil {
		return
	}
	run := schemas.RunRecord{
		Kind:       kind,
		URL:        url,
		Status:     schemas.RunSucceeded,
		Steps:      steps,
		StartedAt:  started,
		FinishedAt: time.Now(),
	}
	if runErr != nil {
		run.Status = schemas.RunFailed
		run.Error = runErr.Error()
	}
	// The run's own ctx may already be cancelled.
	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := c.store.RecordRun(recordCtx, run); err != nil {
		c.logger.Warn("Failed to record run history", zap.Error(err))
	}
}

func buildDevice(ctx context.Context, cfg *config.Config, logger *zap.Logger, runner shell.Runner) (schemas.Device, error) {
	b := cfg.Device.Browser
	switch cfg.Device.Backend {
	case config.BackendADB:
		return adb.New(logger, runner, adb.Options{
			ADBPath:         cfg.Device.ADB.Path,
			Serial:          cfg.Device.ADB.Serial,
			BrowserPackage:  cfg.Device.ADB.BrowserPackage,
			BrowserActivity: cfg.Device.ADB.BrowserActivity,
			ScreenshotDir:   cfg.Device.ScreenshotDir,
			SwipeDuration:   cfg.Device.ADB.SwipeDuration,
		}), nil
	case config.BackendChromedp:
		return cdp.New(logger, cdp.Options{
			Headless:          b.Headless,
			Width:             b.Width,
			Height:            b.Height,
			DeviceScaleFactor: b.DeviceScaleFactor,
			UserAgent:         b.UserAgent,
			UserDataDir:       b.UserDataDir,
			ScreenshotDir:     cfg.Device.ScreenshotDir,
			ActionTimeout:     b.ActionTimeout,
			NavigationTimeout: b.NavigationTimeout,
		})
	case config.BackendPlaywright:
		return pw.New(logger, pw.Options{
			Headless:          b.Headless,
			Width:             b.Width,
			Height:            b.Height,
			DeviceScaleFactor: b.DeviceScaleFactor,
			UserAgent:         b.UserAgent,
			UserDataDir:       b.UserDataDir,
			ScreenshotDir:     cfg.Device.ScreenshotDir,
			ActionTimeout:     b.ActionTimeout,
			NavigationTimeout: b.NavigationTimeout,
			Install:           b.InstallDriver,
		})
	default:
		return nil, fmt.Errorf("unsupported device backend %q", cfg.Device.Backend)
	}
}

// selectVision resolves vision.provider. "auto" uses the LLM when a client
// exists and otherwise reports no elements.
func selectVision(cfg *config.Config, logger *zap.Logger, device schemas.Device, llm schemas.LLMClient) (schemas.Vision, error) {
	switch cfg.Vision.Provider {
	case config.StrategyLLM:
		if llm == nil {
			return nil, fmt.Errorf("vision.provider llm requires an LLM API key")
		}
		return vision.NewLLM(logger, llm), nil
	case config.StrategyUIAutomator:
		source, ok := device.(vision.HierarchySource)
		if !ok {
			return nil, fmt.Errorf("vision.provider uiautomator is not supported by the %s backend", cfg.Device.Backend)
		}
		return vision.NewUIAutomator(logger, source), nil
	case config.StrategyNone:
		return vision.Noop{}, nil
	default:
		if llm != nil {
			return vision.NewLLM(logger, llm), nil
		}
		return vision.Noop{}, nil
	}
}

// selectPlanner resolves planner.provider. The manual planner reads from in
// and prompts on out.
func selectPlanner(cfg *config.Config, logger *zap.Logger, llm schemas.LLMClient, in io.Reader, out io.Writer) (schemas.Planner, error) {
	switch cfg.Planner.Provider {
	case config.StrategyLLM:
		if llm == nil {
			return nil, fmt.Errorf("planner.provider llm requires an LLM API key")
		}
		return planner.NewLLM(logger, llm), nil
	case config.StrategyManual:
		return planner.NewManual(in, out), nil
	default:
		if llm != nil {
			return planner.NewLLM(logger, llm), nil
		}
		return planner.NewManual(in, out), nil
	}
}

// runWithMetrics runs fn, serving Prometheus metrics alongside it when
// metrics.addr is set. The server stops when fn returns.
func runWithMetrics(ctx context.Context, cfg *config.Config, logger *zap.Logger, fn func(ctx context.Context) error) error {
	if cfg.Metrics.Addr == "" {
		return fn(ctx)
	}

	g, gctx := errgroup.WithContext(ctx)
	metricsCtx, stopMetrics := context.WithCancel(gctx)
	g.Go(func() error {
		if err := observability.ServeMetrics(metricsCtx, cfg.Metrics.Addr, logger); err != nil {
			return fmt.Errorf("metrics server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		defer stopMetrics()
		return fn(gctx)
	})
	return g.Wait()
}
