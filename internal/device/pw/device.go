// Package pw emulates a mobile browser with Playwright's Chromium.
package pw

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"

	"github.com/k-sakQA/Othello-for-Android/api/schemas"
)

// Options configures the emulated device.
type Options struct {
	Headless          bool
	Width             int
	Height            int
	DeviceScaleFactor float64
	UserAgent         string
	UserDataDir       string
	ScreenshotDir     string
	ActionTimeout     time.Duration
	NavigationTimeout time.Duration
	// Install downloads the driver and browsers before starting.
	Install bool
}

// Device implements schemas.Device on a single Playwright page. Coordinates
// are CSS pixels.
type Device struct {
	logger *zap.Logger
	opts   Options
	now    func() time.Time

	pw      *playwright.Playwright
	browser playwright.Browser
	context playwright.BrowserContext
	page    playwright.Page
}

var _ schemas.DeviceCloser = (*Device)(nil)

// New starts Playwright and opens a touch-enabled mobile context. A non-empty
// UserDataDir launches a persistent context so logins survive runs.
func New(logger *zap.Logger, opts Options) (*Device, error) {
	if opts.DeviceScaleFactor <= 0 {
		opts.DeviceScaleFactor = 1
	}
	if opts.ActionTimeout <= 0 {
		opts.ActionTimeout = 10 * time.Second
	}
	if opts.NavigationTimeout <= 0 {
		opts.NavigationTimeout = 45 * time.Second
	}
	log := logger.Named("pw_device")
	runOpts := &playwright.RunOptions{
		Browsers: []string{"chromium"},
		Verbose:  false,
		Stdout:   io.Discard,
		Stderr:   io.Discard,
	}
	if opts.Install {
		if err := playwright.Install(runOpts); err != nil {
			return nil, fmt.Errorf("failed to install playwright: %w", err)
		}
	}
	pw, err := playwright.Run(runOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	d := &Device{logger: log, opts: opts, now: time.Now, pw: pw}
	if err := d.open(); err != nil {
		_ = pw.Stop()
		return nil, err
	}
	d.page.SetDefaultTimeout(float64(opts.ActionTimeout.Milliseconds()))
	d.page.SetDefaultNavigationTimeout(float64(opts.NavigationTimeout.Milliseconds()))

	log.Info("Playwright browser started", zap.Int("width", opts.Width), zap.Int("height", opts.Height))
	return d, nil
}

func (d *Device) open() error {
	viewport := &playwright.Size{Width: d.opts.Width, Height: d.opts.Height}
	var ua *string
	if d.opts.UserAgent != "" {
		ua = playwright.String(d.opts.UserAgent)
	}

	if d.opts.UserDataDir != "" {
		bctx, err := d.pw.Chromium.LaunchPersistentContext(d.opts.UserDataDir, playwright.BrowserTypeLaunchPersistentContextOptions{
			Headless:          playwright.Bool(d.opts.Headless),
			Viewport:          viewport,
			DeviceScaleFactor: playwright.Float(d.opts.DeviceScaleFactor),
			IsMobile:          playwright.Bool(true),
			HasTouch:          playwright.Bool(true),
			UserAgent:         ua,
		})
		if err != nil {
			return fmt.Errorf("failed to launch persistent context: %w", err)
		}
		d.context = bctx
	} else {
		browser, err := d.pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
			Headless: playwright.Bool(d.opts.Headless),
		})
		if err != nil {
			return fmt.Errorf("failed to launch browser: %w", err)
		}
		bctx, err := browser.NewContext(playwright.BrowserNewContextOptions{
			Viewport:          viewport,
			DeviceScaleFactor: playwright.Float(d.opts.DeviceScaleFactor),
			IsMobile:          playwright.Bool(true),
			HasTouch:          playwright.Bool(true),
			UserAgent:         ua,
		})
		if err != nil {
			browser.Close()
			return fmt.Errorf("failed to create context: %w", err)
		}
		d.browser = browser
		d.context = bctx
	}

	if pages := d.context.Pages(); len(pages) > 0 {
		d.page = pages[0]
		return nil
	}
	p, err := d.context.NewPage()
	if err != nil {
		d.context.Close()
		if d.browser != nil {
			d.browser.Close()
		}
		return fmt.Errorf("failed to create page: %w", err)
	}
	d.page = p
	return nil
}

func (d *Device) OpenURL(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := d.page.Goto(url); err != nil {
		return fmt.Errorf("failed to open %s: %w", url, err)
	}
	return nil
}

func (d *Device) CaptureScreenshot(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(d.opts.ScreenshotDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create screenshot directory: %w", err)
	}
	path := filepath.Join(d.opts.ScreenshotDir, fmt.Sprintf("screen-%d.png", d.now().UnixMilli()))
	_, err := d.page.Screenshot(playwright.PageScreenshotOptions{
		Path:  playwright.String(path),
		Scale: playwright.ScreenshotScaleCss,
	})
	if err != nil {
		return "", fmt.Errorf("screenshot failed: %w", err)
	}
	return path, nil
}

func (d *Device) Tap(ctx context.Context, x, y int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return d.page.Touchscreen().Tap(x, y)
}

func (d *Device) InputText(ctx context.Context, x, y int, text string) error {
	if err := d.Tap(ctx, x, y); err != nil {
		return err
	}
	if text == "" {
		return nil
	}
	return d.page.Keyboard().InsertText(text)
}

func (d *Device) Scroll(ctx context.Context, direction schemas.ScrollDirection) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	mouse := d.page.Mouse()
	if err := mouse.Move(float64(d.opts.Width)/2, float64(d.opts.Height)/2); err != nil {
		return err
	}
	return mouse.Wheel(0, wheelDelta(direction, d.opts.Height))
}

// wheelDelta scrolls 40% of the viewport; positive values move down the page.
func wheelDelta(direction schemas.ScrollDirection, height int) float64 {
	delta := float64(height) * 0.4
	if direction == schemas.ScrollUp {
		return -delta
	}
	return delta
}

func (d *Device) Back(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := d.page.GoBack()
	return err
}

func (d *Device) ScreenSize(context.Context) (schemas.ScreenSize, error) {
	if size := d.page.ViewportSize(); size != nil {
		return schemas.ScreenSize{Width: size.Width, Height: size.Height}, nil
	}
	return schemas.ScreenSize{Width: d.opts.Width, Height: d.opts.Height}, nil
}

// Close tears down the context, the browser and the driver.
func (d *Device) Close() error {
	var firstErr error
	if err := d.context.Close(); err != nil {
		firstErr = err
	}
	if d.browser != nil {
		if err := d.browser.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := d.pw.Stop(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
