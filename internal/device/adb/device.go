// Package adb drives Chrome on an Android device through the adb command line.
package adb

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/k-sakQA/Othello-for-Android/api/schemas"
	"github.com/k-sakQA/Othello-for-Android/internal/shell"
	"go.uber.org/zap"
)

const (
	keycodeBack = "4"
	dumpPath    = "/sdcard/othello_window_dump.xml"
)

// Options addresses the device and the browser activity.
type Options struct {
	ADBPath         string
	Serial          string
	BrowserPackage  string
	BrowserActivity string
	ScreenshotDir   string
	SwipeDuration   time.Duration
}

// Device implements schemas.Device over adb.
type Device struct {
	logger *zap.Logger
	runner shell.Runner
	opts   Options
	now    func() time.Time

	mu   sync.Mutex
	size *schemas.ScreenSize
}

var _ schemas.Device = (*Device)(nil)

// New creates an adb device. Commands are issued through runner.
func New(logger *zap.Logger, runner shell.Runner, opts Options) *Device {
	if opts.ADBPath == "" {
		opts.ADBPath = "adb"
	}
	if opts.SwipeDuration <= 0 {
		opts.SwipeDuration = 300 * time.Millisecond
	}
	return &Device{
		logger: logger.Named("adb_device"),
		runner: runner,
		opts:   opts,
		now:    time.Now,
	}
}

func (d *Device) OpenURL(ctx context.Context, url string) error {
	component := d.opts.BrowserPackage + "/" + d.opts.BrowserActivity
	_, err := d.shell(ctx, "am", "start", "-a", "android.intent.action.VIEW", "-n", component, "-d", shellQuote(url))
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", url, err)
	}
	d.logger.Debug("Opened URL", zap.String("url", url))
	return nil
}

// CaptureScreenshot streams a PNG into the screenshot directory and returns its path.
func (d *Device) CaptureScreenshot(ctx context.Context) (string, error) {
	if err := os.MkdirAll(d.opts.ScreenshotDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create screenshot directory: %w", err)
	}
	path := filepath.Join(d.opts.ScreenshotDir, fmt.Sprintf("screen-%d.png", d.now().UnixMilli()))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create screenshot file: %w", err)
	}

	_, runErr := d.runner.Run(ctx, shell.Command{
		Name:   d.opts.ADBPath,
		Args:   d.args("exec-out", "screencap", "-p"),
		Stdout: f,
	})
	if closeErr := f.Close(); runErr == nil {
		runErr = closeErr
	}
	if runErr != nil {
		os.Remove(path)
		return "", fmt.Errorf("screencap failed: %w", runErr)
	}
	return path, nil
}

func (d *Device) Tap(ctx context.Context, x, y int) error {
	_, err := d.shell(ctx, "input", "tap", strconv.Itoa(x), strconv.Itoa(y))
	return err
}

// InputText taps (x, y) to focus the field, then types text.
func (d *Device) InputText(ctx context.Context, x, y int, text string) error {
	if err := d.Tap(ctx, x, y); err != nil {
		return err
	}
	if text == "" {
		return nil
	}
	_, err := d.shell(ctx, "input", "text", escapeInputText(text))
	return err
}

// Scroll swipes along the vertical center line between 70% and 30% of the
// screen height. Scrolling down moves the finger up.
func (d *Device) Scroll(ctx context.Context, direction schemas.ScrollDirection) error {
	size, err := d.ScreenSize(ctx)
	if err != nil {
		return err
	}
	x := size.Width / 2
	low, high := size.Height*7/10, size.Height*3/10
	from, to := low, high
	if direction == schemas.ScrollUp {
		from, to = high, low
	}
	_, err = d.shell(ctx, "input", "swipe",
		strconv.Itoa(x), strconv.Itoa(from), strconv.Itoa(x), strconv.Itoa(to),
		strconv.FormatInt(d.opts.SwipeDuration.Milliseconds(), 10))
	return err
}

func (d *Device) Back(ctx context.Context) error {
	_, err := d.shell(ctx, "input", "keyevent", keycodeBack)
	return err
}

var sizePattern = regexp.MustCompile(`(Physical|Override) size:\s*(\d+)x(\d+)`)

// ScreenSize parses `wm size`; an override size wins over the physical one.
// The result is cached for the lifetime of the Device.
func (d *Device) ScreenSize(ctx context.Context) (schemas.ScreenSize, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.size != nil {
		return *d.size, nil
	}

	res, err := d.shell(ctx, "wm", "size")
	if err != nil {
		return schemas.ScreenSize{}, err
	}
	size, err := parseWMSize(string(res.Stdout))
	if err != nil {
		return schemas.ScreenSize{}, err
	}
	d.size = &size
	return size, nil
}

func parseWMSize(out string) (schemas.ScreenSize, error) {
	var size schemas.ScreenSize
	found := false
	for _, m := range sizePattern.FindAllStringSubmatch(out, -1) {
		w, _ := strconv.Atoi(m[2])
		h, _ := strconv.Atoi(m[3])
		if m[1] == "Override" || !found {
			size = schemas.ScreenSize{Width: w, Height: h}
		}
		found = true
	}
	if !found {
		return size, fmt.Errorf("unexpected wm size output: %q", strings.TrimSpace(out))
	}
	return size, nil
}

// DumpHierarchy returns the uiautomator XML of the current window.
func (d *Device) DumpHierarchy(ctx context.Context) ([]byte, error) {
	if _, err := d.shell(ctx, "uiautomator", "dump", dumpPath); err != nil {
		return nil, fmt.Errorf("uiautomator dump failed: %w", err)
	}
	res, err := d.runner.Run(ctx, shell.Command{Name: d.opts.ADBPath, Args: d.args("exec-out", "cat", dumpPath)})
	if err != nil {
		return nil, fmt.Errorf("failed to read hierarchy dump: %w", err)
	}
	return res.Stdout, nil
}

func (d *Device) shell(ctx context.Context, args ...string) (shell.Result, error) {
	return d.runner.Run(ctx, shell.Command{
		Name: d.opts.ADBPath,
		Args: d.args(append([]string{"shell"}, args...)...),
	})
}

func (d *Device) args(args ...string) []string {
	if d.opts.Serial == "" {
		return args
	}
	return append([]string{"-s", d.opts.Serial}, args...)
}

// escapeInputText encodes text for `input text`: spaces become %s and
// characters the device shell would interpret are backslash-escaped.
func escapeInputText(text string) string {
	var b strings.Builder
	for _, r := range text {
		switch {
		case r == ' ':
			b.WriteString("%s")
		case strings.ContainsRune(`()<>|;&*\~"'$`+"`?#[]{}!%", r):
			b.WriteByte('\\')
			b.WriteRune(r)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
