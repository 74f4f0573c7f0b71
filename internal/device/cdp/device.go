// Package cdp emulates a mobile browser in local Chrome over the DevTools protocol.
package cdp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
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
}

// Device implements schemas.Device on a chromedp browser tab. All
// coordinates are CSS pixels and screenshots are captured at CSS resolution
// so vision bounds and taps share one coordinate space.
type Device struct {
	logger *zap.Logger
	opts   Options
	now    func() time.Time

	browserCtx    context.Context
	cancelBrowser context.CancelFunc
	cancelAlloc   context.CancelFunc
}

var _ schemas.DeviceCloser = (*Device)(nil)

// New launches Chrome and applies the mobile viewport, touch and scale emulation.
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
	log := logger.Named("cdp_device")

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.WindowSize(opts.Width, opts.Height),
	)
	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}
	if opts.UserDataDir != "" {
		allocOpts = append(allocOpts, chromedp.UserDataDir(opts.UserDataDir))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx, chromedp.WithLogf(log.Sugar().Debugf))

	// The first Run starts the browser; it must use the unbounded browser context.
	err := chromedp.Run(browserCtx,
		chromedp.EmulateViewport(int64(opts.Width), int64(opts.Height),
			chromedp.EmulateScale(opts.DeviceScaleFactor),
			chromedp.EmulateMobile,
			chromedp.EmulateTouch,
		),
	)
	if err != nil {
		cancelBrowser()
		cancelAlloc()
		return nil, fmt.Errorf("failed to start emulated browser: %w", err)
	}

	log.Info("Emulated browser started",
		zap.Int("width", opts.Width),
		zap.Int("height", opts.Height),
		zap.Bool("headless", opts.Headless))

	return &Device{
		logger:        log,
		opts:          opts,
		now:           time.Now,
		browserCtx:    browserCtx,
		cancelBrowser: cancelBrowser,
		cancelAlloc:   cancelAlloc,
	}, nil
}

// run executes actions on the tab, bounded by timeout and by the caller's ctx.
func (d *Device) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	opCtx, cancel := context.WithTimeout(d.browserCtx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(opCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil && opCtx.Err() == context.DeadlineExceeded {
		return fmt.Errorf("browser action timed out after %v: %w", timeout, opCtx.Err())
	}
	return err
}

func (d *Device) OpenURL(ctx context.Context, url string) error {
	if err := d.run(ctx, d.opts.NavigationTimeout, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("failed to open %s: %w", url, err)
	}
	return nil
}

func (d *Device) CaptureScreenshot(ctx context.Context) (string, error) {
	var buf []byte
	clip := &page.Viewport{
		X:      0,
		Y:      0,
		Width:  float64(d.opts.Width),
		Height: float64(d.opts.Height),
		Scale:  1 / d.opts.DeviceScaleFactor,
	}
	err := d.run(ctx, d.opts.ActionTimeout, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		buf, err = page.CaptureScreenshot().
			WithFormat(page.CaptureScreenshotFormatPng).
			WithClip(clip).
			Do(ctx)
		return err
	}))
	if err != nil {
		return "", fmt.Errorf("screenshot failed: %w", err)
	}

	if err := os.MkdirAll(d.opts.ScreenshotDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create screenshot directory: %w", err)
	}
	path := filepath.Join(d.opts.ScreenshotDir, fmt.Sprintf("screen-%d.png", d.now().UnixMilli()))
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return "", fmt.Errorf("failed to write screenshot: %w", err)
	}
	return path, nil
}

// Tap dispatches a touchStart/touchEnd pair at (x, y).
func (d *Device) Tap(ctx context.Context, x, y int) error {
	point := &input.TouchPoint{X: float64(x), Y: float64(y)}
	return d.run(ctx, d.opts.ActionTimeout,
		input.DispatchTouchEvent(input.TouchStart, []*input.TouchPoint{point}),
		input.DispatchTouchEvent(input.TouchEnd, []*input.TouchPoint{}),
	)
}

func (d *Device) InputText(ctx context.Context, x, y int, text string) error {
	if err := d.Tap(ctx, x, y); err != nil {
		return err
	}
	if text == "" {
		return nil
	}
	return d.run(ctx, d.opts.ActionTimeout, input.InsertText(text))
}

func (d *Device) Scroll(ctx context.Context, direction schemas.ScrollDirection) error {
	cx, cy := float64(d.opts.Width)/2, float64(d.opts.Height)/2
	wheel := input.DispatchMouseEvent(input.MouseWheel, cx, cy).
		WithDeltaX(0).
		WithDeltaY(scrollDelta(direction, d.opts.Height))
	return d.run(ctx, d.opts.ActionTimeout, wheel)
}

func (d *Device) Back(ctx context.Context) error {
	return d.run(ctx, d.opts.NavigationTimeout, chromedp.NavigateBack())
}

// ScreenSize returns the emulated viewport.
func (d *Device) ScreenSize(context.Context) (schemas.ScreenSize, error) {
	return schemas.ScreenSize{Width: d.opts.Width, Height: d.opts.Height}, nil
}

// Close shuts down the tab and the browser process.
func (d *Device) Close() error {
	d.cancelBrowser()
	d.cancelAlloc()
	return nil
}

// scrollDelta moves 40% of the viewport; positive deltas scroll down.
func scrollDelta(direction schemas.ScrollDirection, height int) float64 {
	delta := float64(height) * 0.4
	if direction == schemas.ScrollUp {
		return -delta
	}
	return delta
}
